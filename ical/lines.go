package ical

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// maxLineSize bounds a single physical line.
const maxLineSize = 1 << 20

// Line is one unfolded content line.
type Line struct {
	// Num is the physical line number the logical line started on.
	Num  int
	Text string
}

// LineScanner unfolds iCalendar text into logical content lines.
//
// A physical line that starts with a single space or horizontal tab
// continues the previous line; the leading whitespace character is removed
// and the rest is appended. Use it like a bufio.Scanner:
//
//	s := NewLineScanner(r)
//	for s.Scan() {
//		line := s.Line()
//	}
//	if err := s.Err(); err != nil {
//		...
//	}
type LineScanner struct {
	sc       *bufio.Scanner
	physical int

	pending    strings.Builder
	pendingNum int
	hasPending bool

	line Line
	err  error
	done bool
}

// NewLineScanner returns a LineScanner reading from r.
func NewLineScanner(r io.Reader) *LineScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	// bufio.ScanLines already drops the '\r' of a CRLF pair and accepts a
	// final line without terminator.
	sc.Split(bufio.ScanLines)
	return &LineScanner{sc: sc}
}

// Scan advances to the next logical line. It returns false at the end of
// input or on error.
func (s *LineScanner) Scan() bool {
	if s.done {
		return false
	}

	for s.sc.Scan() {
		s.physical++
		text := s.sc.Text()
		if s.physical == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if text == "" {
			continue
		}

		if text[0] == ' ' || text[0] == '\t' {
			if s.hasPending {
				s.pending.WriteString(text[1:])
				continue
			}
			// Continuation with nothing to continue: take it as a new line.
			text = text[1:]
			if text == "" {
				continue
			}
		}

		if s.hasPending {
			s.line = Line{Num: s.pendingNum, Text: s.pending.String()}
			s.start(text)
			return true
		}
		s.start(text)
	}

	s.done = true
	if err := s.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			s.err = errorf(s.physical+1, "line longer than %d bytes", maxLineSize)
		} else {
			s.err = err
		}
		return false
	}

	if s.hasPending {
		s.line = Line{Num: s.pendingNum, Text: s.pending.String()}
		s.hasPending = false
		return true
	}
	return false
}

func (s *LineScanner) start(text string) {
	s.pending.Reset()
	s.pending.WriteString(text)
	s.pendingNum = s.physical
	s.hasPending = true
}

// Line returns the most recent logical line produced by Scan.
func (s *LineScanner) Line() Line {
	return s.line
}

// Err returns the first non-EOF error encountered by Scan.
func (s *LineScanner) Err() error {
	return s.err
}
