package elements

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyPayload means the payload had no content at all.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrStructuredPayload means the payload is JSON, HTML, or a quoted
	// message instead of element text. Space-Track reports failures this way.
	ErrStructuredPayload = errors.New("structured error payload")
	// ErrNoElements means the payload is text but carries no line 1/line 2
	// pair, as with "No records found".
	ErrNoElements = errors.New("no element lines")
)

// Validate checks that raw has the shape of three-line element text. It
// looks at structure only, so a satellite whose name happens to contain
// "error" is still accepted.
func Validate(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ErrEmptyPayload
	}
	switch s[0] {
	case '"', '{', '[', '<':
		return ErrStructuredPayload
	}

	lines := nonEmptyLines(s)
	for i := 0; i+1 < len(lines); i++ {
		l1 := strings.TrimSpace(lines[i])
		l2 := strings.TrimSpace(lines[i+1])
		if strings.HasPrefix(l1, "1 ") && strings.HasPrefix(l2, "2 ") {
			return nil
		}
	}
	return ErrNoElements
}
