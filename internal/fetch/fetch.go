// Package fetch downloads per-date element datasets in catalog batches and
// merges the batch files into one file per date.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/andres-luengo/SatCheck/internal/dataset"
	"github.com/andres-luengo/SatCheck/internal/metrics"
	"github.com/andres-luengo/SatCheck/internal/observation"
	"github.com/andres-luengo/SatCheck/internal/spacetrack"
)

// Source answers element queries for a set of catalog numbers over an
// epoch window. *spacetrack.Client satisfies it.
type Source interface {
	Elements(ctx context.Context, ids []int, from, to dataset.Date) ([]byte, error)
}

// Progress is reported after every batch of every date.
type Progress struct {
	Date  dataset.Date
	Batch int
	Done  int
	Total int
}

// Fetcher owns the dataset files in Dir.
type Fetcher struct {
	Source     Source
	Dir        string
	Overwrite  bool
	Log        *log.Logger
	Metrics    *metrics.Collector
	OnProgress func(Progress)
}

// Summary describes what a FetchDatasets call did. A failed batch other
// than an empty answer keeps its date unmerged so the next run re-queries
// just that batch.
type Summary struct {
	Dates      []dataset.Date // dates that needed fetching
	Skipped    []dataset.Date // dates whose merged file already existed
	Merged     []string       // merged files written
	Incomplete []dataset.Date // dates left unmerged after a failed batch
	Queries    int
	Reused     int
	Failed     int
}

// Partition splits ids into n contiguous slices, keeping order. The first
// len(ids)%n slices get one extra element. Slices may be empty when n is
// larger than len(ids).
func Partition(ids []int, n int) [][]int {
	if n < 1 {
		n = 1
	}
	out := make([][]int, n)
	size, extra := len(ids)/n, len(ids)%n
	pos := 0
	for i := range out {
		k := size
		if i < extra {
			k++
		}
		out[i] = ids[pos : pos+k : pos+k]
		pos += k
	}
	return out
}

// Dates returns the unique UTC observation dates in first-seen order.
func Dates(obs []observation.Observation) []dataset.Date {
	seen := make(map[dataset.Date]bool)
	var out []dataset.Date
	for _, o := range obs {
		d := dataset.DateOf(o.Start)
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// FetchDatasets makes sure a merged dataset exists for every observation
// date. Each batch is queried over [date, date+1]; existing batch files
// are reused unless Overwrite is set. Query failures are logged and
// counted and never abort the run; only context cancellation does.
func (f *Fetcher) FetchDatasets(ctx context.Context, obs []observation.Observation, ids []int, batches int) (Summary, error) {
	logger := f.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var sum Summary
	for _, d := range Dates(obs) {
		if !f.Overwrite && dataset.Exists(dataset.Path(f.Dir, d, dataset.Merged)) {
			logger.Printf("fetch: %s already downloaded, skipping", d.Filename(dataset.Merged))
			sum.Skipped = append(sum.Skipped, d)
			continue
		}
		sum.Dates = append(sum.Dates, d)
	}
	if len(sum.Dates) == 0 {
		return sum, nil
	}

	parts := Partition(ids, batches)
	total := len(parts) * len(sum.Dates)
	done := 0
	gaps := make(map[dataset.Date]bool)

	for batch, batchIDs := range parts {
		for _, d := range sum.Dates {
			if err := ctx.Err(); err != nil {
				return sum, err
			}

			gap, err := f.fetchOne(ctx, logger, &sum, d, batch, batchIDs)
			if err != nil {
				return sum, err
			}
			if gap {
				gaps[d] = true
			}

			done++
			if f.OnProgress != nil {
				f.OnProgress(Progress{Date: d, Batch: batch, Done: done, Total: total})
			}
		}
	}

	for _, d := range sum.Dates {
		if gaps[d] {
			logger.Printf("fetch: WARNING %s is missing batches, leaving parts unmerged for the next run", d)
			sum.Incomplete = append(sum.Incomplete, d)
			continue
		}
		out, err := dataset.Merge(f.Dir, d, len(parts))
		if errors.Is(err, dataset.ErrNoParts) {
			logger.Printf("fetch: no element data for %s in any batch", d)
			continue
		}
		if err != nil {
			return sum, err
		}
		logger.Printf("fetch: merged %s", out)
		sum.Merged = append(sum.Merged, out)
	}
	return sum, nil
}

// fetchOne returns an error only for cancellation or a failed write. gap
// reports a failed query that a later run should retry.
func (f *Fetcher) fetchOne(ctx context.Context, logger *log.Logger, sum *Summary, d dataset.Date, batch int, ids []int) (gap bool, err error) {
	path := dataset.Path(f.Dir, d, batch)

	if len(ids) == 0 {
		return false, nil
	}
	if !f.Overwrite && dataset.Exists(path) {
		logger.Printf("fetch: reusing %s", path)
		sum.Reused++
		f.Metrics.Query(metrics.QueryReused)
		return false, nil
	}

	logger.Printf("fetch: batch %d (%d ids) for %s", batch, len(ids), d)
	sum.Queries++
	body, err := f.Source.Elements(ctx, ids, d, d.AddDays(1))
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logger.Printf("fetch: batch %d for %s failed: %v", batch, d, err)
		sum.Failed++
		f.Metrics.Query(metrics.QueryFailed)
		return !errors.Is(err, spacetrack.ErrNoData), nil
	}

	if err := dataset.WriteFile(path, body); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	f.Metrics.Query(metrics.QueryOK)
	return false, nil
}
