package uitree

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Document is the parsed form of one traversal document. It exists for the
// offline dataset checker and for tests; the recorder itself only produces
// documents.
type Document struct {
	Traversal Traversal
	Windows   []WindowRecord
}

// WindowRecord is one parsed window header plus the node records under it.
type WindowRecord struct {
	Index   int
	Bounds  string
	Type    string
	Active  bool
	Focused bool
	// Empty is true when the window carried the empty-tree marker.
	Empty bool
	Nodes []NodeRecord
}

// NodeRecord is one parsed node line. Fields holds every raw attribute
// keyed by name, with quoted string values unescaped.
type NodeRecord struct {
	ID       int
	Depth    int
	Children []int
	Fields   map[string]string
}

// ParseDocument parses a serialized traversal document back into records.
func ParseDocument(doc string) (*Document, error) {
	scanner := bufio.NewScanner(strings.NewReader(doc))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var d Document
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "traversal="):
			mode := Traversal(strings.TrimPrefix(line, "traversal="))
			if mode != TraversalDFS && mode != TraversalBFS {
				return nil, fmt.Errorf("line %d: unknown traversal mode %q", lineNum, mode)
			}
			d.Traversal = mode
		case strings.HasPrefix(line, "window "):
			w, err := parseWindowLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			d.Windows = append(d.Windows, w)
		case line == EmptyTreeMarker:
			if len(d.Windows) == 0 {
				return nil, fmt.Errorf("line %d: empty-tree marker before any window", lineNum)
			}
			d.Windows[len(d.Windows)-1].Empty = true
		case strings.HasPrefix(line, "node "):
			if len(d.Windows) == 0 {
				return nil, fmt.Errorf("line %d: node record before any window", lineNum)
			}
			n, err := parseNodeLine(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			w := &d.Windows[len(d.Windows)-1]
			w.Nodes = append(w.Nodes, n)
		default:
			return nil, fmt.Errorf("line %d: unrecognized record %q", lineNum, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading document: %w", err)
	}
	if d.Traversal == "" {
		return nil, fmt.Errorf("document has no traversal header")
	}
	return &d, nil
}

// Validate checks the per-document invariants: every node id appears in
// exactly one record, and every child id references a node present in the
// same document.
func (d *Document) Validate() error {
	ids := make(map[int]bool)
	for _, w := range d.Windows {
		for _, n := range w.Nodes {
			if ids[n.ID] {
				return fmt.Errorf("node id %d appears in more than one record", n.ID)
			}
			ids[n.ID] = true
		}
	}
	for _, w := range d.Windows {
		for _, n := range w.Nodes {
			for _, c := range n.Children {
				if !ids[c] {
					return fmt.Errorf("node %d references child id %d not present in document", n.ID, c)
				}
			}
		}
	}
	return nil
}

// NodeCount returns the total number of node records across all windows.
func (d *Document) NodeCount() int {
	count := 0
	for _, w := range d.Windows {
		count += len(w.Nodes)
	}
	return count
}

func parseWindowLine(line string) (WindowRecord, error) {
	fields, err := splitFields(strings.TrimPrefix(line, "window "))
	if err != nil {
		return WindowRecord{}, err
	}
	var w WindowRecord
	if w.Index, err = fieldInt(fields, "index"); err != nil {
		return WindowRecord{}, err
	}
	w.Bounds = fields["bounds"]
	w.Type = fields["type"]
	if w.Active, err = fieldBool(fields, "active"); err != nil {
		return WindowRecord{}, err
	}
	if w.Focused, err = fieldBool(fields, "focused"); err != nil {
		return WindowRecord{}, err
	}
	return w, nil
}

func parseNodeLine(line string) (NodeRecord, error) {
	fields, err := splitFields(strings.TrimPrefix(line, "node "))
	if err != nil {
		return NodeRecord{}, err
	}
	var n NodeRecord
	if n.ID, err = fieldInt(fields, "id"); err != nil {
		return NodeRecord{}, err
	}
	if n.Depth, err = fieldInt(fields, "depth"); err != nil {
		return NodeRecord{}, err
	}
	if n.Children, err = parseIntList(fields["children"]); err != nil {
		return NodeRecord{}, fmt.Errorf("children: %w", err)
	}
	n.Fields = fields
	return n, nil
}

// splitFields tokenizes "key=value key=value" pairs, honoring Go-quoted
// string values that may contain spaces.
func splitFields(s string) (map[string]string, error) {
	fields := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed field near %q", s[i:])
		}
		key := s[i : i+eq]
		i += eq + 1
		var value string
		if i < len(s) && s[i] == '"' {
			end, err := quotedEnd(s, i)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			unquoted, err := strconv.Unquote(s[i : end+1])
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			value = unquoted
			i = end + 1
		} else {
			end := strings.IndexByte(s[i:], ' ')
			if end < 0 {
				end = len(s) - i
			}
			value = s[i : i+end]
			i += end
		}
		fields[key] = value
	}
	return fields, nil
}

// quotedEnd returns the index of the closing quote of the Go-quoted string
// starting at s[start].
func quotedEnd(s string, start int) (int, error) {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i, nil
		}
	}
	return 0, fmt.Errorf("unterminated quoted value")
}

func parseIntList(s string) ([]int, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed list %q", s)
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return []int{}, nil
	}
	parts := strings.Split(inner, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("malformed list element %q", p)
		}
		out[i] = v
	}
	return out, nil
}

func fieldInt(fields map[string]string, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %s", key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}

func fieldBool(fields map[string]string, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok {
		return false, fmt.Errorf("missing field %s", key)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("field %s: %w", key, err)
	}
	return v, nil
}
