package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/andres-luengo/SatCheck/internal/dataset"
	"github.com/andres-luengo/SatCheck/internal/observation"
	"github.com/andres-luengo/SatCheck/internal/spacetrack"
	"github.com/andres-luengo/SatCheck/internal/testutils"
)

type call struct {
	ids      []int
	from, to dataset.Date
}

type fakeSource struct {
	calls []call
	fail  map[int]error // keyed by first id in the batch
	body  func(ids []int) string
}

func (f *fakeSource) Elements(_ context.Context, ids []int, from, to dataset.Date) ([]byte, error) {
	f.calls = append(f.calls, call{ids: append([]int(nil), ids...), from: from, to: to})
	if err, ok := f.fail[ids[0]]; ok {
		return nil, err
	}
	if f.body != nil {
		return []byte(f.body(ids)), nil
	}
	return []byte(fmt.Sprintf("batch %v\n", ids)), nil
}

func obsAt(ts ...string) []observation.Observation {
	var out []observation.Observation
	for i, s := range ts {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			panic(err)
		}
		out = append(out, observation.Observation{ID: fmt.Sprintf("obs%d.h5", i), Start: t})
	}
	return out
}

var june21 = dataset.Date{Year: 2020, Month: time.June, Day: 21}

func TestPartition(t *testing.T) {
	tests := []struct {
		ids  []int
		n    int
		want [][]int
	}{
		{[]int{1, 2, 3, 4, 5, 6, 7}, 3, [][]int{{1, 2, 3}, {4, 5}, {6, 7}}},
		{[]int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{[]int{1, 2}, 4, [][]int{{1}, {2}, {}, {}}},
		{[]int{1, 2, 3}, 0, [][]int{{1, 2, 3}}},
	}
	for _, tt := range tests {
		got := Partition(tt.ids, tt.n)
		if len(got) != len(tt.want) {
			t.Errorf("Partition(%v, %d) = %v", tt.ids, tt.n, got)
			continue
		}
		for i := range got {
			if len(got[i]) != len(tt.want[i]) || (len(got[i]) > 0 && !reflect.DeepEqual(got[i], tt.want[i])) {
				t.Errorf("Partition(%v, %d)[%d] = %v, want %v", tt.ids, tt.n, i, got[i], tt.want[i])
			}
		}
	}
}

func TestDatesFirstSeenOrder(t *testing.T) {
	got := Dates(obsAt("2020-06-22T01:00:00Z", "2020-06-21T23:59:59Z", "2020-06-22T05:00:00Z"))
	if len(got) != 2 || got[0].Day != 22 || got[1].Day != 21 {
		t.Errorf("Dates = %v", got)
	}
}

func TestFetchDatasetsQueriesAndMerges(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{}
	var progress []Progress
	f := &Fetcher{
		Source:     src,
		Dir:        dir,
		Log:        testutils.Logger(t),
		OnProgress: func(p Progress) { progress = append(progress, p) },
	}

	sum, err := f.FetchDatasets(context.Background(), obsAt("2020-06-21T06:00:00Z", "2020-06-21T07:00:00Z"), []int{1, 2, 3, 4, 5}, 2)
	if err != nil {
		t.Fatalf("FetchDatasets: %v", err)
	}

	if len(src.calls) != 2 {
		t.Fatalf("calls = %+v, want 2", src.calls)
	}
	if !reflect.DeepEqual(src.calls[0].ids, []int{1, 2, 3}) || !reflect.DeepEqual(src.calls[1].ids, []int{4, 5}) {
		t.Errorf("batches = %v, %v", src.calls[0].ids, src.calls[1].ids)
	}
	if src.calls[0].from != june21 || src.calls[0].to != june21.AddDays(1) {
		t.Errorf("window = %v..%v", src.calls[0].from, src.calls[0].to)
	}
	if sum.Queries != 2 || sum.Failed != 0 || len(sum.Merged) != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if len(progress) != 2 || progress[1].Done != 2 || progress[1].Total != 2 {
		t.Errorf("progress = %+v", progress)
	}

	b, err := os.ReadFile(filepath.Join(dir, "jun_21_2020_TLEs.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if want := "batch [1 2 3]\nbatch [4 5]\n"; string(b) != want {
		t.Errorf("merged = %q, want %q", b, want)
	}
	for i := 0; i < 2; i++ {
		if dataset.Exists(dataset.Path(dir, june21, i)) {
			t.Errorf("batch file %d not removed", i)
		}
	}

	// A second run finds the merged file and does nothing.
	src.calls = nil
	sum, err = f.FetchDatasets(context.Background(), obsAt("2020-06-21T08:00:00Z"), []int{1, 2, 3, 4, 5}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(src.calls) != 0 || len(sum.Skipped) != 1 {
		t.Errorf("second run: calls = %v, summary = %+v", src.calls, sum)
	}
}

func TestFetchDatasetsReusesBatchFiles(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs_0.txt", "kept\n")

	src := &fakeSource{}
	f := &Fetcher{Source: src, Dir: dir}
	sum, err := f.FetchDatasets(context.Background(), obsAt("2020-06-21T06:00:00Z"), []int{1, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Reused != 1 || sum.Queries != 1 || len(src.calls) != 1 || src.calls[0].ids[0] != 2 {
		t.Errorf("summary = %+v, calls = %+v", sum, src.calls)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "jun_21_2020_TLEs.txt"))
	if string(b) != "kept\nbatch [2]\n" {
		t.Errorf("merged = %q", b)
	}
}

func TestFetchDatasetsOverwrite(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs.txt", "old\n")
	testutils.WriteFile(t, dir, "jun_21_2020_TLEs_0.txt", "stale\n")

	src := &fakeSource{}
	f := &Fetcher{Source: src, Dir: dir, Overwrite: true}
	if _, err := f.FetchDatasets(context.Background(), obsAt("2020-06-21T06:00:00Z"), []int{7}, 1); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "jun_21_2020_TLEs.txt"))
	if string(b) != "batch [7]\n" {
		t.Errorf("merged = %q", b)
	}
}

func TestFetchDatasetsFailuresDoNotAbort(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{fail: map[int]error{
		1: spacetrack.ErrAuth,
		3: fmt.Errorf("wrapped: %w", spacetrack.ErrNoData),
	}}
	f := &Fetcher{Source: src, Dir: dir, Log: testutils.Logger(t)}

	sum, err := f.FetchDatasets(context.Background(), obsAt("2020-06-21T06:00:00Z", "2020-06-22T06:00:00Z"), []int{1, 2, 3}, 3)
	if err != nil {
		t.Fatalf("FetchDatasets: %v", err)
	}
	// Batches 0 and 2 fail on both dates; batch 1 succeeds. The auth
	// failure leaves both dates incomplete.
	if sum.Queries != 6 || sum.Failed != 4 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Merged) != 0 || len(sum.Incomplete) != 2 {
		t.Errorf("merged = %v, incomplete = %v", sum.Merged, sum.Incomplete)
	}
	b, _ := os.ReadFile(filepath.Join(dir, "jun_22_2020_TLEs_1.txt"))
	if string(b) != "batch [2]\n" {
		t.Errorf("batch 1 = %q", b)
	}
}

func TestFetchDatasetsRetriesIncompleteDate(t *testing.T) {
	dir := t.TempDir()
	obs := obsAt("2020-06-21T06:00:00Z")

	first := &fakeSource{fail: map[int]error{1: errors.New("HTTP 500")}}
	f := &Fetcher{Source: first, Dir: dir, Log: testutils.Logger(t)}
	sum, err := f.FetchDatasets(context.Background(), obs, []int{1, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Incomplete) != 1 || dataset.Exists(dataset.Path(dir, june21, dataset.Merged)) {
		t.Fatalf("first run merged a date with a failed batch: %+v", sum)
	}

	second := &fakeSource{}
	f.Source = second
	sum, err = f.FetchDatasets(context.Background(), obs, []int{1, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.calls) != 1 || second.calls[0].ids[0] != 1 || sum.Reused != 1 {
		t.Errorf("second run calls = %+v, summary = %+v", second.calls, sum)
	}
	b, _ := os.ReadFile(dataset.Path(dir, june21, dataset.Merged))
	if string(b) != "batch [1]\nbatch [2]\n" {
		t.Errorf("merged = %q", b)
	}
}

func TestFetchDatasetsEmptyBatchStillMerges(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{fail: map[int]error{2: fmt.Errorf("wrapped: %w", spacetrack.ErrNoData)}}
	f := &Fetcher{Source: src, Dir: dir}
	sum, err := f.FetchDatasets(context.Background(), obsAt("2020-06-21T06:00:00Z"), []int{1, 2}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Merged) != 1 || len(sum.Incomplete) != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestFetchDatasetsNothingFetched(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{fail: map[int]error{1: spacetrack.ErrNoData}}
	f := &Fetcher{Source: src, Dir: dir}
	sum, err := f.FetchDatasets(context.Background(), obsAt("2020-06-21T06:00:00Z"), []int{1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(sum.Merged) != 0 || dataset.Exists(dataset.Path(dir, june21, dataset.Merged)) {
		t.Errorf("unexpected merged output: %+v", sum)
	}
}

func TestFetchDatasetsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &Fetcher{Source: &fakeSource{}, Dir: t.TempDir()}
	_, err := f.FetchDatasets(ctx, obsAt("2020-06-21T06:00:00Z"), []int{1}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
