// Package testutils holds element-set fixtures and small helpers shared by
// package tests.
package testutils

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Element sets dated 2020-06-21 (day 173). Checksums are valid.
const (
	ISSName  = "0 ISS (ZARYA)"
	ISSLine1 = "1 25544U 98067A   20173.00000000  .00000000  00000-0  00000-0 0  9993"
	ISSLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01"

	// ISSOlderLine1 is the same satellite half a day earlier.
	ISSOlderLine1 = "1 25544U 98067A   20172.50000000  .00000000  00000-0  00000-0 0  9997"

	NOAA20Name  = "0 NOAA 20"
	NOAA20Line1 = "1 43013U 17073A   20173.25000000  .00000000  00000-0  00000-0 0  9999"
	NOAA20Line2 = "2 43013  98.7400 200.0000 0001000  90.0000 270.0000 14.19500000    02"

	StarlinkName  = "0 STARLINK-1007"
	StarlinkLine1 = "1 44713U 19074A   20173.50000000  .00000000  00000-0  00000-0 0  9998"
	StarlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    07"
)

// ThreeLine joins name and data lines into one three-line record.
func ThreeLine(name, line1, line2 string) string {
	return name + "\n" + line1 + "\n" + line2 + "\n"
}

// ISS returns the ISS record as three-line text.
func ISS() string { return ThreeLine(ISSName, ISSLine1, ISSLine2) }

// NOAA20 returns the NOAA 20 record as three-line text.
func NOAA20() string { return ThreeLine(NOAA20Name, NOAA20Line1, NOAA20Line2) }

// Starlink returns the Starlink record as three-line text.
func Starlink() string { return ThreeLine(StarlinkName, StarlinkLine1, StarlinkLine2) }

// Catalog joins several records.
func Catalog(records ...string) string {
	return strings.Join(records, "")
}

// Logger returns a logger that writes to the test log.
func Logger(t testing.TB) *log.Logger {
	return log.New(testWriter{t}, "", 0)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
