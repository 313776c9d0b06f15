package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andres-luengo/SatCheck/internal/testutils"
)

func TestFilename(t *testing.T) {
	d := DateOf(time.Date(2020, 6, 21, 23, 59, 59, 0, time.UTC))
	if got := d.Filename(Merged); got != "jun_21_2020_TLEs.txt" {
		t.Errorf("Filename(Merged) = %q", got)
	}
	if got := d.Filename(3); got != "jun_21_2020_TLEs_3.txt" {
		t.Errorf("Filename(3) = %q", got)
	}
	jan := Date{Year: 2021, Month: time.January, Day: 5}
	if got := jan.Filename(Merged); got != "jan_05_2021_TLEs.txt" {
		t.Errorf("Filename = %q", got)
	}
}

func TestDateOfUsesUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	got := DateOf(time.Date(2020, 6, 21, 22, 0, 0, 0, est))
	want := Date{Year: 2020, Month: time.June, Day: 22}
	if got != want {
		t.Errorf("DateOf = %v, want %v", got, want)
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name  string
		date  Date
		batch int
		ok    bool
	}{
		{"jun_21_2020_TLEs.txt", Date{2020, time.June, 21}, Merged, true},
		{"/work/dir/jun_21_2020_TLEs_0.txt", Date{2020, time.June, 21}, 0, true},
		{"dec_31_1999_TLEs_12.txt", Date{1999, time.December, 31}, 12, true},
		{"feb_30_2020_TLEs.txt", Date{}, 0, false},
		{"jun_21_2020_TLEs.csv", Date{}, 0, false},
		{"xyz_21_2020_TLEs.txt", Date{}, 0, false},
		{"jun_21_2020_TLEs_x.txt", Date{}, 0, false},
		{"files_affected_by_sats.csv", Date{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, b, ok := ParseFilename(tt.name)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if d != tt.date || b != tt.batch {
				t.Errorf("got (%v, %d), want (%v, %d)", d, b, tt.date, tt.batch)
			}
		})
	}
}

func TestSelectExactDate(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs.txt", testutils.ISS())
	testutils.WriteFile(t, dir, "notes.txt", "unrelated")

	ix, err := Scan(dir)
	if err != nil {
		t.Fatal(err)
	}

	ds, ok := ix.Select(time.Date(2020, 6, 21, 6, 0, 12, 500000000, time.UTC))
	if !ok {
		t.Fatal("Select did not find jun_21_2020_TLEs.txt")
	}
	want := filepath.Join(dir, "jun_21_2020_TLEs.txt")
	if len(ds.Paths) != 1 || ds.Paths[0] != want {
		t.Errorf("Paths = %v, want [%s]", ds.Paths, want)
	}
	if !ds.Merged() {
		t.Error("Merged() = false")
	}

	if _, ok := ix.Select(time.Date(2020, 6, 22, 0, 0, 0, 0, time.UTC)); ok {
		t.Error("Select matched a different date")
	}
}

// A date whose batch files were never merged is still found.
func TestSelectBatchSuffixedFile(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs_0.txt", testutils.ISS())

	ix, err := Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	ds, ok := ix.Select(time.Date(2020, 6, 21, 6, 0, 0, 0, time.UTC))
	if !ok {
		t.Fatal("Select did not find jun_21_2020_TLEs_0.txt")
	}
	if ds.Merged() {
		t.Error("Merged() = true for a batch part")
	}
	set, err := ds.Load(testutils.Logger(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 1 {
		t.Errorf("Load returned %d records, want 1", len(set))
	}
}

func TestLookupPartsInBatchOrder(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs_10.txt", "c")
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs_2.txt", "b")
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs_0.txt", "a")

	ix, err := Scan(dir)
	if err != nil {
		t.Fatal(err)
	}
	ds, ok := ix.Lookup(Date{2020, time.June, 21})
	if !ok {
		t.Fatal("Lookup failed")
	}
	b, err := ds.Read()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "abc" {
		t.Errorf("Read = %q, want abc", b)
	}
}

func TestScanMissingDir(t *testing.T) {
	ix, err := Scan(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.Dates()) != 0 {
		t.Errorf("Dates = %v, want none", ix.Dates())
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	d := Date{2020, time.June, 21}
	testutils.WriteFile(t, dir, d.Filename(0), testutils.ISS())
	testutils.WriteFile(t, dir, d.Filename(2), testutils.Starlink())
	testutils.WriteFile(t, dir, d.Filename(1), testutils.NOAA20())

	out, err := Merge(dir, d, 3)
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join(dir, "jun_21_2020_TLEs.txt") {
		t.Errorf("Merge path = %s", out)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := testutils.ISS() + testutils.NOAA20() + testutils.Starlink()
	if string(b) != want {
		t.Errorf("merged content out of order:\n%s", b)
	}

	for i := 0; i < 3; i++ {
		if Exists(Path(dir, d, i)) {
			t.Errorf("batch %d not removed", i)
		}
	}
}

func TestMergeNoParts(t *testing.T) {
	_, err := Merge(t.TempDir(), Date{2020, time.June, 21}, 4)
	if !errors.Is(err, ErrNoParts) {
		t.Errorf("Merge err = %v, want ErrNoParts", err)
	}
}
