// Package catalog supplies the NORAD catalog numbers to search. The default
// source is the UCS satellite database, a Windows-1252 tab-separated file
// that is downloaded once into the work directory and reused afterwards.
package catalog

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/andres-luengo/SatCheck/internal/dataset"
)

// Filename is the cached database name inside the work directory.
const Filename = "UCS-Satellite-Database.txt"

const (
	colNorad  = "NORAD Number"
	colLaunch = "Date of Launch"
	colName   = "Name of Satellite, Alternate Names"
)

// ErrNoNoradColumn means the table header has no NORAD Number column.
var ErrNoNoradColumn = errors.New("catalog has no " + colNorad + " column")

// Entry is one catalog row. Launch is zero when the date is missing or
// unreadable.
type Entry struct {
	NoradID int
	Name    string
	Launch  time.Time
}

// Download fetches the database at url, transcodes it from Windows-1252
// to UTF-8 and writes it atomically to dst.
func Download(ctx context.Context, client *http.Client, url, dst string) error {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download catalog: HTTP %d", resp.StatusCode)
	}

	b, err := io.ReadAll(charmap.Windows1252.NewDecoder().Reader(resp.Body))
	if err != nil {
		return fmt.Errorf("download catalog: %w", err)
	}
	return dataset.WriteFile(dst, b)
}

// Parse reads a tab-separated catalog with a header row. Rows whose NORAD
// number is missing or not numeric are dropped; a missing launch column is
// not an error.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoNoradColumn
		}
		return nil, err
	}
	cols := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	noradCol, ok := cols[colNorad]
	if !ok {
		return nil, ErrNoNoradColumn
	}
	launchCol, hasLaunch := cols[colLaunch]
	nameCol, hasName := cols[colName]

	var out []Entry
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		id, ok := parseNorad(field(row, noradCol))
		if !ok {
			continue
		}
		e := Entry{NoradID: id}
		if hasName {
			e.Name = strings.TrimSpace(field(row, nameCol))
		}
		if hasLaunch {
			e.Launch = parseLaunch(field(row, launchCol))
		}
		out = append(out, e)
	}
	return out, nil
}

// Filter keeps positive NORAD numbers launched in or before cutoffYear,
// plus those with an unknown launch date. Order is preserved. A cutoff of
// zero disables the launch filter.
func Filter(entries []Entry, cutoffYear int) []int {
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		if e.NoradID <= 0 {
			continue
		}
		if cutoffYear > 0 && !e.Launch.IsZero() && e.Launch.Year() > cutoffYear {
			continue
		}
		ids = append(ids, e.NoradID)
	}
	return ids
}

// ReadIDs reads catalog numbers from a plain text file. Numbers may be
// separated by newlines, commas or spaces; '#' starts a comment.
func ReadIDs(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []int
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, tok := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
			id, err := strconv.Atoi(tok)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("%s:%d: bad catalog number %q", path, lineNo, tok)
			}
			ids = append(ids, id)
		}
	}
	return ids, sc.Err()
}

// Source says where Load gets its ids from. Explicit IDs win over IDsFile,
// which wins over the UCS database.
type Source struct {
	IDs        []int
	IDsFile    string
	URL        string
	WorkDir    string
	CutoffYear int
	Client     *http.Client
	Log        *log.Logger
}

// Load resolves the catalog numbers to query.
func Load(ctx context.Context, src Source) ([]int, error) {
	logger := src.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if len(src.IDs) > 0 {
		logger.Printf("catalog: using %d configured ids", len(src.IDs))
		return src.IDs, nil
	}
	if src.IDsFile != "" {
		ids, err := ReadIDs(src.IDsFile)
		if err != nil {
			return nil, fmt.Errorf("read ids file: %w", err)
		}
		logger.Printf("catalog: read %d ids from %s", len(ids), src.IDsFile)
		return ids, nil
	}

	path := filepath.Join(src.WorkDir, Filename)
	if !dataset.Exists(path) {
		logger.Printf("catalog: downloading UCS database from %s", src.URL)
		if err := Download(ctx, src.Client, src.URL, path); err != nil {
			return nil, err
		}
	} else {
		logger.Printf("catalog: reusing %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ids := Filter(entries, src.CutoffYear)
	logger.Printf("catalog: %d of %d satellites launched by %d or undated", len(ids), len(entries), src.CutoffYear)
	return ids, nil
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// parseNorad accepts "25544" as well as float renderings like "25544.0".
func parseNorad(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if id, err := strconv.Atoi(s); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

var launchLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"2006/01/02",
	"1/2/06",
	"January 2, 2006",
	"2-Jan-2006",
	"2006",
}

func parseLaunch(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range launchLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
