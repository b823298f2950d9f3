package gesture

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
)

// eventLine matches the output of `adb shell getevent`:
// /dev/input/event2: 0003 0035 000001f4
var eventLine = regexp.MustCompile(`^/dev/input/(\w+): ([0-9a-f]{4}) ([0-9a-f]{4}) ([0-9a-f]{8})`)

// ParseEventLine parses one getevent output line. Lines that are not
// event triplets (device headers, blank lines) return ok=false.
func ParseEventLine(line string) (RawEvent, bool) {
	m := eventLine.FindStringSubmatch(line)
	if m == nil {
		return RawEvent{}, false
	}
	typ, err := strconv.ParseUint(m[2], 16, 32)
	if err != nil {
		return RawEvent{}, false
	}
	code, err := strconv.ParseUint(m[3], 16, 32)
	if err != nil {
		return RawEvent{}, false
	}
	value, err := strconv.ParseUint(m[4], 16, 32)
	if err != nil {
		return RawEvent{}, false
	}
	return RawEvent{
		Device: m[1],
		Type:   int(typ),
		Code:   int(code),
		Value:  int(value),
	}, true
}

// Run pumps a getevent stream through the classifier until the reader is
// exhausted. Unparseable lines are skipped.
func (c *Classifier) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ev, ok := ParseEventLine(scanner.Text()); ok {
			c.Process(ev)
		}
	}
	return scanner.Err()
}
