// Package tagfile splits RFC 822 style control files (Debian Packages and
// status files) into stanzas, keeping the byte position of each.
package tagfile

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrStanzaTooLarge is returned for a stanza longer than the scanner limit.
var ErrStanzaTooLarge = errors.New("tagfile: stanza too large")

// DefaultMaxStanza bounds the size of one stanza.
const DefaultMaxStanza = 4 << 20

// Scanner reads stanzas: runs of non-blank lines separated by blank lines.
// Lines starting with '#' are dropped; a run of comment lines alone is no
// stanza.
type Scanner struct {
	r   *bufio.Reader
	max int

	pos    uint64
	offset uint64
	size   uint64
	stanza []byte
	err    error
}

// NewScanner returns a scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64<<10), max: DefaultMaxStanza}
}

// SetMaxStanza changes the stanza size limit.
func (s *Scanner) SetMaxStanza(n int) {
	if n > 0 {
		s.max = n
	}
}

func isBlank(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}

// Scan advances to the next stanza. It returns false at the end of the
// input or on error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	s.stanza = s.stanza[:0]
	s.size = 0
	started := false

	for {
		line, err := s.r.ReadBytes('\n')
		if len(line) > 0 {
			switch {
			case isBlank(line) && started && len(s.stanza) == 0:
				// Only comments; not a stanza.
				s.pos += uint64(len(line))
				started = false
				s.size = 0
			case isBlank(line) && started:
				s.pos += uint64(len(line))
				return true
			case isBlank(line):
				s.pos += uint64(len(line))
			default:
				if !started {
					started = true
					s.offset = s.pos
				}
				s.pos += uint64(len(line))
				s.size = s.pos - s.offset
				if line[0] != '#' {
					if len(s.stanza)+len(line) > s.max {
						s.err = ErrStanzaTooLarge
						return false
					}
					s.stanza = append(s.stanza, line...)
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
				return false
			}
			if started && len(s.stanza) > 0 {
				// Unterminated last stanza.
				if s.stanza[len(s.stanza)-1] != '\n' {
					s.stanza = append(s.stanza, '\n')
				}
				return true
			}
			return false
		}
	}
}

// Stanza returns the current stanza. The slice is reused by the next Scan.
func (s *Scanner) Stanza() []byte { return s.stanza }

// Offset returns the byte offset of the current stanza in the input.
func (s *Scanner) Offset() uint64 { return s.offset }

// Size returns the length of the current stanza in the input, excluding the
// separating blank line.
func (s *Scanner) Size() uint64 { return s.size }

// Err returns the first read error other than io.EOF.
func (s *Scanner) Err() error { return s.err }
