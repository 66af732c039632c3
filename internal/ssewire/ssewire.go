// Package ssewire implements the text/event-stream framing shared by the
// SSE transport and the streamable HTTP transport's SSE-formatted POST
// bodies.
package ssewire

import (
	"bufio"
	"io"
	"strings"
)

// Event is one parsed text/event-stream frame. Data is already joined with
// "\n" when the source repeated the "data:" field across multiple lines.
type Event struct {
	Event string
	Data  string
	ID    string
}

// Scanner reads successive frames off an underlying stream, one blank-line
// terminated block at a time.
type Scanner struct {
	s *bufio.Scanner
}

// NewScanner wraps r for frame-at-a-time reading.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Scanner{s: sc}
}

// Next reads and returns the next frame, or (nil, false) at EOF. A frame
// consisting only of comment lines (":...") is skipped and the following
// frame is returned instead; io errors are surfaced via Err.
func (sc *Scanner) Next() (*Event, bool) {
	for {
		ev, sawAnyField, ok := sc.readOne()
		if !ok {
			return nil, false
		}
		if !sawAnyField {
			continue
		}
		return ev, true
	}
}

// Err returns the first non-EOF error encountered by the underlying
// scanner, if any.
func (sc *Scanner) Err() error {
	return sc.s.Err()
}

func (sc *Scanner) readOne() (*Event, bool, bool) {
	var ev Event
	var dataLines []string
	sawField := false
	for sc.s.Scan() {
		line := sc.s.Text()
		if line == "" {
			if !sawField {
				continue
			}
			ev.Data = strings.Join(dataLines, "\n")
			return &ev, true, true
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value := splitField(line)
		switch field {
		case "event":
			ev.Event = value
			sawField = true
		case "data":
			dataLines = append(dataLines, value)
			sawField = true
		case "id":
			ev.ID = value
			sawField = true
		default:
			// Unknown fields (e.g. "retry") are accepted and ignored.
			sawField = true
		}
	}
	if sawField {
		ev.Data = strings.Join(dataLines, "\n")
		return &ev, true, false
	}
	return nil, false, false
}

// splitField splits a "field: value" or "field:value" line. A line with no
// colon is a field name with an empty value, per the living standard.
func splitField(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	value = strings.TrimPrefix(value, " ")
	return field, value
}

// Format renders ev back into wire form, one "field: value" line per field
// (multi-line Data becomes one "data:" line per "\n"-separated segment),
// terminated by a blank line. Used by tests to check that scanning
// Format(e) with a Scanner yields e, and can also be used to build fixtures.
func Format(ev Event) string {
	var b strings.Builder
	if ev.Event != "" {
		b.WriteString("event: ")
		b.WriteString(ev.Event)
		b.WriteByte('\n')
	}
	if ev.Data != "" {
		for _, line := range strings.Split(ev.Data, "\n") {
			b.WriteString("data: ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if ev.ID != "" {
		b.WriteString("id: ")
		b.WriteString(ev.ID)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}
