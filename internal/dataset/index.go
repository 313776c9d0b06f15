package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sort"
	"time"

	"github.com/andres-luengo/SatCheck/internal/elements"
)

// ErrNoParts is returned by Merge when no batch files exist for a date.
var ErrNoParts = errors.New("no batch files to merge")

// Dataset is the set of files holding elements for one date: the merged
// file, or its batch parts in batch order when no merge has happened.
type Dataset struct {
	Date  Date
	Paths []string
}

// Merged reports whether the dataset is a single merged file.
func (d Dataset) Merged() bool {
	return len(d.Paths) == 1 && filepathBatch(d.Paths[0]) == Merged
}

// Read concatenates the dataset files byte for byte.
func (d Dataset) Read() ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range d.Paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read dataset %s: %w", p, err)
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// Load reads and parses the dataset.
func (d Dataset) Load(logger *log.Logger) (elements.Set, error) {
	b, err := d.Read()
	if err != nil {
		return nil, err
	}
	return elements.Parse(string(b), logger), nil
}

type entry struct {
	merged string
	parts  map[int]string
}

// Index maps dates to the dataset files found in a directory.
type Index struct {
	dir     string
	entries map[Date]*entry
}

// Scan indexes the dataset files in dir. A missing directory is an empty
// index.
func Scan(dir string) (*Index, error) {
	ix := &Index{dir: dir, entries: make(map[Date]*entry)}

	des, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return ix, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan datasets: %w", err)
	}

	for _, de := range des {
		if de.IsDir() {
			continue
		}
		ix.add(de.Name())
	}
	return ix, nil
}

func (ix *Index) add(name string) {
	d, batch, ok := ParseFilename(name)
	if !ok {
		return
	}
	e, ok := ix.entries[d]
	if !ok {
		e = &entry{parts: make(map[int]string)}
		ix.entries[d] = e
	}
	if batch == Merged {
		e.merged = Path(ix.dir, d, Merged)
	} else {
		e.parts[batch] = Path(ix.dir, d, batch)
	}
}

// Dir returns the indexed directory.
func (ix *Index) Dir() string { return ix.dir }

// Dates returns the indexed dates in ascending order.
func (ix *Index) Dates() []Date {
	out := make([]Date, 0, len(ix.entries))
	for d := range ix.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time().Before(out[j].Time()) })
	return out
}

// Lookup returns the dataset for d. The merged file wins; otherwise any
// batch parts are returned in batch order.
func (ix *Index) Lookup(d Date) (Dataset, bool) {
	e, ok := ix.entries[d]
	if !ok {
		return Dataset{}, false
	}
	if e.merged != "" {
		return Dataset{Date: d, Paths: []string{e.merged}}, true
	}
	if len(e.parts) == 0 {
		return Dataset{}, false
	}
	batches := make([]int, 0, len(e.parts))
	for b := range e.parts {
		batches = append(batches, b)
	}
	sort.Ints(batches)
	paths := make([]string, len(batches))
	for i, b := range batches {
		paths[i] = e.parts[b]
	}
	return Dataset{Date: d, Paths: paths}, true
}

// Select returns the dataset for the UTC date of start. Only that exact
// date matches.
func (ix *Index) Select(start time.Time) (Dataset, bool) {
	return ix.Lookup(DateOf(start))
}

// Merge concatenates the batch files for d in batch order into the merged
// file, then deletes them. Missing batches are skipped.
func Merge(dir string, d Date, batches int) (string, error) {
	var buf bytes.Buffer
	var merged []string
	for i := 0; i < batches; i++ {
		p := Path(dir, d, i)
		b, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("merge %s: %w", d, err)
		}
		buf.Write(b)
		merged = append(merged, p)
	}
	if len(merged) == 0 {
		return "", fmt.Errorf("merge %s: %w", d, ErrNoParts)
	}

	out := Path(dir, d, Merged)
	if err := WriteFile(out, buf.Bytes()); err != nil {
		return "", fmt.Errorf("merge %s: %w", d, err)
	}
	for _, p := range merged {
		if err := os.Remove(p); err != nil {
			return out, fmt.Errorf("remove batch file: %w", err)
		}
	}
	return out, nil
}

func filepathBatch(p string) int {
	_, b, ok := ParseFilename(p)
	if !ok {
		return 0
	}
	return b
}
