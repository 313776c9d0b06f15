// Package observation finds observation files and reads the three header
// fields the check needs: start time, and the RA/Dec the telescope was
// pointed at.
package observation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNoInput means none of directory, list file or paths was given.
	ErrNoInput = errors.New("no observation input: give a directory, a list file, or paths")
	// ErrNoHeader means nothing could supply a header for a file.
	ErrNoHeader = errors.New("no header source for observation")
)

// Observation is one file's pointing. RA and Dec keep the header's
// sexagesimal notation, e.g. "17h45m40.04s" and "-29d00m28.1s".
type Observation struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	RA    string    `json:"ra"`
	Dec   string    `json:"dec"`
}

// Header is the part of a file header the check consumes.
type Header struct {
	Start time.Time
	RA    string
	Dec   string
}

// Input names where observation files come from. The first non-empty of
// Dir, ListFile and Paths is used.
type Input struct {
	Dir      string
	Pattern  string
	ListFile string
	Paths    []string
}

// Discover expands in into file paths, in glob, list, or argument order.
func Discover(in Input) ([]string, error) {
	switch {
	case in.Dir != "":
		pattern := in.Pattern
		if pattern == "" {
			pattern = "*.h5"
		}
		paths, err := filepath.Glob(filepath.Join(in.Dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		return paths, nil
	case in.ListFile != "":
		return readList(in.ListFile)
	case len(in.Paths) > 0:
		return append([]string(nil), in.Paths...), nil
	}
	return nil, ErrNoInput
}

func readList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, sc.Err()
}

// Result is the outcome of reading one file. Err is set when the header
// could not be read; Observation then carries only the ID.
type Result struct {
	Observation Observation
	Err         error
}

// Reader resolves headers: manifest entries first, then the SIGPROC
// header of .fil files.
type Reader struct {
	Manifest Manifest
}

// Read returns the observation for path.
func (r Reader) Read(path string) (Observation, error) {
	obs := Observation{ID: path}

	if h, ok := r.Manifest.Lookup(path); ok {
		obs.Start, obs.RA, obs.Dec = h.Start, h.RA, h.Dec
		return obs, nil
	}

	if strings.EqualFold(filepath.Ext(path), ".fil") {
		f, err := os.Open(path)
		if err != nil {
			return obs, err
		}
		defer f.Close()

		fh, err := ReadFilterbankHeader(bufio.NewReader(f))
		if err != nil {
			return obs, fmt.Errorf("%s: %w", path, err)
		}
		h := fh.Header()
		obs.Start, obs.RA, obs.Dec = h.Start, h.RA, h.Dec
		return obs, nil
	}

	return obs, fmt.Errorf("%s: %w (add it to the manifest)", path, ErrNoHeader)
}

// Load reads every path in order. Failures are logged and returned in the
// matching Result rather than aborting.
func Load(paths []string, r Reader, logger *log.Logger) []Result {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	out := make([]Result, 0, len(paths))
	for _, p := range paths {
		obs, err := r.Read(p)
		if err != nil {
			logger.Printf("observation: skipping header of %s: %v", p, err)
		}
		out = append(out, Result{Observation: obs, Err: err})
	}
	return out
}
