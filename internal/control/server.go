package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
)

// ack is the minimal reply written for every received line. Delivery to
// the recorder is fire-and-forget; the ack only confirms the transport
// accepted (or rejected) the message.
type ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Handler receives validated intents from the control listener.
type Handler func(Intent)

// Server listens on a unix socket for JSON-line encoded control intents
// and forwards the valid ones to its handler. Malformed lines and unknown
// gesture types are logged and dropped without reaching the handler.
type Server struct {
	listener net.Listener
	handler  Handler
	logger   *zap.Logger
}

// NewServer binds the unix socket at path, removing any stale socket file
// left behind by a previous run.
func NewServer(path string, handler Handler, logger *zap.Logger) (*Server, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	return &Server{listener: l, handler: handler, logger: logger}, nil
}

// Addr returns the socket address the server is listening on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until the context is cancelled. Each
// connection may carry any number of intent lines.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go s.handleConn(conn)
	}
}

// Close releases the listener. Safe to call after Serve has returned.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close() //nolint:errcheck // best-effort close on command connection

	scanner := bufio.NewScanner(conn)
	writer := bufio.NewWriter(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var intent Intent
		if err := json.Unmarshal(line, &intent); err != nil {
			s.logger.Warn("dropping malformed control line", zap.Error(err))
			s.reply(writer, ack{OK: false, Error: "malformed intent"})
			continue
		}
		if err := intent.Validate(); err != nil {
			// Invalid command arguments are dropped, never forwarded.
			s.logger.Warn("dropping invalid intent",
				zap.String("kind", string(intent.Kind)), zap.Error(err))
			s.reply(writer, ack{OK: false, Error: err.Error()})
			continue
		}

		s.handler(intent)
		s.reply(writer, ack{OK: true})
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("control connection read ended", zap.Error(err))
	}
}

func (s *Server) reply(w *bufio.Writer, a ack) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return
	}
	_ = w.Flush()
}
