// Package report turns close approaches into the CSV artifacts of a run:
// one detail file per satellite and observation, and the per-run summary.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/andres-luengo/SatCheck/internal/dataset"
	"github.com/andres-luengo/SatCheck/internal/predict"
	"github.com/andres-luengo/SatCheck/internal/sky"
)

// File names written into the work directory.
const (
	SummaryFile = "files_affected_by_sats.csv"
	FlaggedFile = "files_flagged.csv"
)

// NA fills the summary columns of observations with no close approach.
const NA = "N/A"

var (
	detailHeader  = []string{"RA", "DEC", "Separation", "Time after start"}
	summaryHeader = []string{"filepath", "satellite?", "minSeparation", "minTime", "csvPaths"}
)

// Summary is the closest point of one satellite's pass.
type Summary struct {
	Satellite     string  `json:"satellite"`
	MinSeparation float64 `json:"min_separation"`
	MinTime       int     `json:"min_time"`
	DetailPath    string  `json:"detail_path"`
}

// Row is one observation in the summary report.
type Row struct {
	ObservationID string    `json:"observation_id"`
	Satellite     bool      `json:"satellite"`
	Summaries     []Summary `json:"summaries,omitempty"`
}

// Summarize returns the smallest separation and the elapsed seconds at
// which it occurred. The first minimum in scan order wins ties. ok is
// false when ca has no samples.
func Summarize(ca predict.CloseApproach) (minSep float64, minTime int, ok bool) {
	for i, s := range ca.Samples {
		if i == 0 || s.Separation < minSep {
			minSep, minTime = s.Separation, s.Elapsed
		}
	}
	return minSep, minTime, len(ca.Samples) > 0
}

var nameReplacer = strings.NewReplacer(" ", "_", "(", "-", ")", "-", "/", "-")

// DetailName is the detail file name for a satellite and observation:
// the sanitized satellite identity, "_separation_", and the last two
// underscore fields of the observation's base name with .h5 turned into
// .csv.
func DetailName(satellite, observationID string) string {
	base := filepath.Base(observationID)
	fields := strings.Split(base, "_")
	frag := base
	if len(fields) >= 2 {
		frag = fields[len(fields)-2] + "_" + fields[len(fields)-1]
	}
	ext := filepath.Ext(frag)
	switch strings.ToLower(ext) {
	case ".h5", ".fil":
		frag = strings.TrimSuffix(frag, ext) + ".csv"
	case ".csv":
	default:
		frag += ".csv"
	}
	return nameReplacer.Replace(satellite) + "_separation_" + frag
}

// WriteDetail persists the samples of ca to path. An existing file is
// left alone and written reports false.
func WriteDetail(path string, ca predict.CloseApproach) (written bool, err error) {
	if dataset.Exists(path) {
		return false, nil
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(detailHeader)
	for _, s := range ca.Samples {
		_ = w.Write([]string{
			sky.FormatRA(s.Position.RA),
			sky.FormatDec(s.Position.Dec),
			formatFloat(s.Separation),
			strconv.Itoa(s.Elapsed),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, err
	}
	if err := dataset.WriteFile(path, []byte(sb.String())); err != nil {
		return false, fmt.Errorf("write detail: %w", err)
	}
	return true, nil
}

// Aggregate builds the report row for one observation, writing a detail
// file into dir for every satellite in hits. Satellites are ordered by
// identity.
func Aggregate(dir, observationID string, hits map[string]predict.CloseApproach, logger *log.Logger) (Row, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	row := Row{ObservationID: observationID}
	if len(hits) == 0 {
		return row, nil
	}

	keys := make([]string, 0, len(hits))
	for k := range hits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		ca := hits[k]
		minSep, minTime, ok := Summarize(ca)
		if !ok {
			continue
		}
		path := filepath.Join(dir, DetailName(k, observationID))
		written, err := WriteDetail(path, ca)
		if err != nil {
			return row, err
		}
		if written {
			logger.Printf("report: wrote %s", path)
		}
		row.Summaries = append(row.Summaries, Summary{
			Satellite:     k,
			MinSeparation: minSep,
			MinTime:       minTime,
			DetailPath:    path,
		})
	}
	row.Satellite = len(row.Summaries) > 0
	return row, nil
}

// Unchecked is the row for an observation that could not be evaluated.
func Unchecked(observationID string) Row {
	return Row{ObservationID: observationID}
}

// WriteSummary writes every row to path.
func WriteSummary(path string, rows []Row) error {
	return writeRows(path, rows)
}

// WriteFlagged writes only the rows with at least one close approach.
func WriteFlagged(path string, rows []Row) error {
	var flagged []Row
	for _, r := range rows {
		if r.Satellite {
			flagged = append(flagged, r)
		}
	}
	return writeRows(path, flagged)
}

func writeRows(path string, rows []Row) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(summaryHeader)
	for _, r := range rows {
		_ = w.Write(r.record())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := dataset.WriteFile(path, []byte(sb.String())); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (r Row) record() []string {
	if !r.Satellite {
		return []string{r.ObservationID, "false", NA, NA, NA}
	}
	seps := make([]string, len(r.Summaries))
	times := make([]string, len(r.Summaries))
	paths := make([]string, len(r.Summaries))
	for i, s := range r.Summaries {
		seps[i] = formatFloat(s.MinSeparation)
		times[i] = strconv.Itoa(s.MinTime)
		paths[i] = s.DetailPath
	}
	return []string{
		r.ObservationID,
		"true",
		strings.Join(seps, ";"),
		strings.Join(times, ";"),
		strings.Join(paths, ";"),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
