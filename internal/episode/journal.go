package episode

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JournalFile is the per-episode append-only action log. Each accepted
// action is journaled immediately, so a crash mid-episode still leaves a
// readable trace of everything recorded up to that point.
const JournalFile = "actions.jsonl"

// JournalEntry is one line of the action journal.
type JournalEntry struct {
	Timestamp string `json:"timestamp"`
	Step      int    `json:"step"`
	Action    Action `json:"action"`
}

// appendJournal writes one entry to the journal at path.
func appendJournal(path string, step int, action Action, at time.Time) error {
	entry := JournalEntry{
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Step:      step,
		Action:    action,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // journal path is derived
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close() //nolint:errcheck // append-only journal close

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// ReadJournal parses the journal at path. A missing file yields an empty
// slice, matching an episode with no recorded actions.
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path) //nolint:gosec // journal path is derived
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file close

	var entries []JournalEntry
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		var entry JournalEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("invalid journal entry at line %d: %w", lineNum, err)
		}
		if err := entry.Action.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading journal: %w", err)
	}
	return entries, nil
}
