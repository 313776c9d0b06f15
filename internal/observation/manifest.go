package observation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andres-luengo/SatCheck/internal/sky"
)

var manifestColumns = []string{"path", "tstart", "src_raj", "src_dej"}

// Manifest maps observation paths to headers supplied out of band, for
// formats whose headers are not read natively.
type Manifest map[string]Header

// Lookup finds path by exact match, cleaned path, then base name.
func (m Manifest) Lookup(path string) (Header, bool) {
	if m == nil {
		return Header{}, false
	}
	for _, k := range []string{path, filepath.Clean(path), filepath.Base(path)} {
		if h, ok := m[k]; ok {
			return h, true
		}
	}
	return Header{}, false
}

// ReadManifest loads a CSV with columns path, tstart (MJD), src_raj and
// src_dej. Coordinates may be sexagesimal strings or packed numbers.
func ReadManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseManifest(f)
}

func parseManifest(r io.Reader) (Manifest, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("manifest header: %w", err)
	}
	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range manifestColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("manifest is missing column %q", c)
		}
	}

	m := make(Manifest)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		mjd, err := strconv.ParseFloat(strings.TrimSpace(row[idx["tstart"]]), 64)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: bad tstart: %w", line, err)
		}
		key := strings.TrimSpace(row[idx["path"]])
		if key == "" {
			return nil, fmt.Errorf("manifest line %d: empty path", line)
		}
		m[filepath.Clean(key)] = Header{
			Start: sky.MJDToTime(mjd),
			RA:    coordinate(row[idx["src_raj"]], "h"),
			Dec:   coordinate(row[idx["src_dej"]], "d"),
		}
	}
	return m, nil
}

func coordinate(s, unit string) string {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return FormatPacked(v, unit)
	}
	return s
}
