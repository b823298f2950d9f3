package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Send delivers one intent to the recorder listening on the unix socket at
// path and waits for the transport ack. It returns an error when the
// recorder rejected the intent at the decode boundary.
func Send(path string, intent Intent) error {
	if err := intent.Validate(); err != nil {
		return fmt.Errorf("invalid intent: %w", err)
	}

	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to recorder at %s: %w", path, err)
	}
	defer conn.Close() //nolint:errcheck // best-effort close on command connection

	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode intent: %w", err)
	}
	data = append(data, '\n')

	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send intent: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("failed to read ack: %w", err)
	}
	var a ack
	if err := json.Unmarshal(line, &a); err != nil {
		return fmt.Errorf("malformed ack: %w", err)
	}
	if !a.OK {
		return fmt.Errorf("recorder rejected intent: %s", a.Error)
	}
	return nil
}
