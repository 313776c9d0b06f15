// Package elements parses three-line orbital element payloads into a set of
// propagatable records keyed by satellite identity. Parsing is fail-soft:
// bad groups are logged and skipped, and an empty or error payload yields an
// empty set rather than an error.
package elements

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/akhenakh/sgp4"
)

// Record is one decoded element set.
type Record struct {
	Name      string    `json:"name"`
	CatalogID string    `json:"catalog_id"`
	NoradID   int       `json:"norad_id"`
	Epoch     time.Time `json:"epoch"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2"`

	TLE *sgp4.TLE `json:"-"`
}

// Key is the satellite identity: cleaned display name plus catalog id.
func (r Record) Key() string {
	return r.Name + " " + r.CatalogID
}

// Set maps satellite identity to its authoritative record.
type Set map[string]Record

// Keys returns the identities in lexical order so scans are reproducible.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Parse decodes raw three-line text. A nil logger discards warnings.
func Parse(raw string, logger *log.Logger) Set {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	set := make(Set)

	if err := Validate(raw); err != nil {
		logger.Printf("elements: ignoring payload: %v", err)
		return set
	}

	lines := nonEmptyLines(raw)
	for i := 0; i+2 < len(lines); i += 3 {
		rec, err := decode(lines[i], lines[i+1], lines[i+2])
		if err != nil {
			logger.Printf("elements: skipping record at line %d: %v", i+1, err)
			continue
		}

		if prev, ok := set[rec.Key()]; ok && prev.Epoch.After(rec.Epoch) {
			continue
		}
		set[rec.Key()] = rec
	}

	if rem := len(lines) % 3; rem != 0 {
		logger.Printf("elements: ignoring %d trailing line(s)", rem)
	}
	return set
}

// ParseFile reads and parses path. A missing file is an empty set.
func ParseFile(path string, logger *log.Logger) (Set, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(Set), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read elements: %w", err)
	}
	return Parse(string(b), logger), nil
}

// decode builds a Record from a name line and its two data lines.
func decode(name, line1, line2 string) (Record, error) {
	name = cleanName(name)
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if err := checkLine(line1, '1'); err != nil {
		return Record{}, fmt.Errorf("%s: line 1: %w", name, err)
	}
	if err := checkLine(line2, '2'); err != nil {
		return Record{}, fmt.Errorf("%s: line 2: %w", name, err)
	}

	fields := strings.Fields(line2)
	if len(fields) < 2 {
		return Record{}, fmt.Errorf("%s: missing catalog id", name)
	}
	catalogID := fields[1]

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", name, err)
	}

	tle, err := sgp4.ParseTLE(name + "\n" + line1 + "\n" + line2)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", name, err)
	}

	norad, _ := strconv.Atoi(strings.TrimSpace(line1[2:7]))

	return Record{
		Name:      name,
		CatalogID: catalogID,
		NoradID:   norad,
		Epoch:     epoch,
		Line1:     line1,
		Line2:     line2,
		TLE:       tle,
	}, nil
}

// cleanName drops the "0 " marker that three-line element feeds put in
// front of the satellite name.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0 ")
	return strings.TrimSpace(s)
}

// checkLine verifies length, line number, and the modulo-10 checksum.
func checkLine(line string, num byte) error {
	if len(line) != 69 {
		return fmt.Errorf("length %d, expected 69", len(line))
	}
	if line[0] != num || line[1] != ' ' {
		return fmt.Errorf("must start with %q", string(num)+" ")
	}
	want := line[68]
	if want < '0' || want > '9' {
		return fmt.Errorf("checksum %q is not a digit", want)
	}
	if got := checksum(line[:68]); got != int(want-'0') {
		return fmt.Errorf("checksum mismatch: got %d, want %c", got, want)
	}
	return nil
}

// checksum sums digits, counting '-' as one.
func checksum(s string) int {
	sum := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

// parseEpoch converts a YYDDD.DDDDDDDD epoch. Years 57-99 are 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch %q too short", s)
	}
	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}
	if day < 1 || day >= 367 {
		return time.Time{}, fmt.Errorf("epoch day %v out of range", day)
	}

	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((day - 1) * float64(24*time.Hour))).Round(time.Microsecond), nil
}

func nonEmptyLines(raw string) []string {
	var out []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimRight(l, "\r ")
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
