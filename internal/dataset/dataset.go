// Package dataset names, indexes, merges, and selects the per-date element
// files kept in the work directory. Files are keyed by a Date value, never
// by a formatted path, so a lookup cannot miss because of a directory
// prefix or a batch suffix.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Merged is the batch index of the per-date file that has no suffix.
const Merged = -1

const suffix = "_TLEs"

var months = [12]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// Date is a UTC calendar date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) String() string {
	return d.Time().Format(time.DateOnly)
}

// Filename returns "{mon}_{dd}_{yyyy}_TLEs.txt" for the merged file, or
// "{mon}_{dd}_{yyyy}_TLEs_{batch}.txt" for one batch.
func (d Date) Filename(batch int) string {
	base := fmt.Sprintf("%s_%02d_%04d%s", months[d.Month-1], d.Day, d.Year, suffix)
	if batch == Merged {
		return base + ".txt"
	}
	return base + "_" + strconv.Itoa(batch) + ".txt"
}

// ParseFilename is the inverse of Filename. It accepts a bare name or a
// path and reports ok=false for anything that is not a dataset file.
func ParseFilename(name string) (d Date, batch int, ok bool) {
	name = filepath.Base(name)
	stem, found := strings.CutSuffix(name, ".txt")
	if !found {
		return Date{}, 0, false
	}

	parts := strings.Split(stem, "_")
	if len(parts) != 4 && len(parts) != 5 {
		return Date{}, 0, false
	}
	if parts[3] != strings.TrimPrefix(suffix, "_") {
		return Date{}, 0, false
	}

	month := time.Month(0)
	for i, m := range months {
		if parts[0] == m {
			month = time.Month(i + 1)
			break
		}
	}
	if month == 0 || len(parts[1]) != 2 || len(parts[2]) != 4 {
		return Date{}, 0, false
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return Date{}, 0, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return Date{}, 0, false
	}
	d = Date{Year: year, Month: month, Day: day}
	if DateOf(d.Time()) != d {
		return Date{}, 0, false
	}

	batch = Merged
	if len(parts) == 5 {
		batch, err = strconv.Atoi(parts[4])
		if err != nil || batch < 0 {
			return Date{}, 0, false
		}
	}
	return d, batch, true
}

// Path joins dir and the file name for d and batch.
func Path(dir string, d Date, batch int) string {
	return filepath.Join(dir, d.Filename(batch))
}

// WriteFile writes data to path through a temp file and rename so readers
// never see a partial dataset.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".satcheck-*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// Exists reports whether path is present.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
