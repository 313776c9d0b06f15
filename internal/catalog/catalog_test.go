package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/andres-luengo/SatCheck/internal/testutils"
)

// ucsTable is a trimmed UCS export. The 0xE9 byte is a Windows-1252 'é'.
var ucsTable = "Name of Satellite, Alternate Names\tCountry of Operator/Owner\tDate of Launch\tNORAD Number\t\n" +
	"International Space Station (ISS [first element Zarya])\tMultinational\t11/20/1998\t25544\t\n" +
	"NOAA 20\tUSA\t11/18/2017\t43013\t\n" +
	"Sat\xe9lite Nuevo\tSpain\t3/1/2022\t51000\t\n" +
	"Undated\tUSA\t\t48000\t\n" +
	"No Number\tUSA\t1/1/2010\t\t\n" +
	"Bad Number\tUSA\t1/1/2010\tn/a\t\n" +
	"Float Number\tUSA\t1/1/2015\t40000.0\t\n"

func TestParseAndFilter(t *testing.T) {
	entries, err := Parse(strings.NewReader(ucsTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5: %+v", len(entries), entries)
	}
	if entries[0].NoradID != 25544 || entries[0].Launch.Year() != 1998 {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if !entries[3].Launch.IsZero() {
		t.Errorf("undated entry has launch %v", entries[3].Launch)
	}

	got := Filter(entries, 2021)
	want := []int{25544, 43013, 48000, 40000}
	if len(got) != len(want) {
		t.Fatalf("Filter = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Filter[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	if all := Filter(entries, 0); len(all) != 5 {
		t.Errorf("Filter with no cutoff kept %d, want 5", len(all))
	}
}

func TestParseRequiresNoradColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("Name\tCountry\nISS\tMultinational\n"))
	if !errors.Is(err, ErrNoNoradColumn) {
		t.Errorf("err = %v, want ErrNoNoradColumn", err)
	}
	if _, err := Parse(strings.NewReader("")); !errors.Is(err, ErrNoNoradColumn) {
		t.Errorf("empty input err = %v, want ErrNoNoradColumn", err)
	}
}

func TestLoadDownloadsOnceAndTranscodes(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		_, _ = w.Write([]byte(ucsTable))
	}))
	defer srv.Close()

	work := t.TempDir()
	src := Source{URL: srv.URL, WorkDir: work, CutoffYear: 2021, Log: testutils.Logger(t)}

	ids, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 4 {
		t.Errorf("ids = %v, want 4 entries", ids)
	}

	cached, err := os.ReadFile(filepath.Join(work, Filename))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(cached), "Satélite Nuevo") {
		t.Error("cached database was not transcoded to UTF-8")
	}

	if _, err := Load(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestLoadDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	work := t.TempDir()
	_, err := Load(context.Background(), Source{URL: srv.URL, WorkDir: work})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("err = %v, want HTTP 404", err)
	}
	if _, statErr := os.Stat(filepath.Join(work, Filename)); !os.IsNotExist(statErr) {
		t.Error("a failed download left a cache file behind")
	}
}

func TestLoadOverrides(t *testing.T) {
	ids, err := Load(context.Background(), Source{IDs: []int{1, 2}, IDsFile: "ignored"})
	if err != nil || len(ids) != 2 {
		t.Fatalf("Load(IDs) = %v, %v", ids, err)
	}

	dir := t.TempDir()
	p := testutils.WriteFile(t, dir, "ids.txt", "# stations\n25544, 43013\n44713 48000\n\n")
	ids, err = Load(context.Background(), Source{IDsFile: p})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{25544, 43013, 44713, 48000}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}

	bad := testutils.WriteFile(t, dir, "bad.txt", "25544\nISS\n")
	if _, err := Load(context.Background(), Source{IDsFile: bad}); err == nil || !strings.Contains(err.Error(), ":2:") {
		t.Errorf("err = %v, want line 2 reported", err)
	}
}
