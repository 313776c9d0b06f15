package predict

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/soniakeys/unit"

	"github.com/andres-luengo/SatCheck/internal/elements"
	"github.com/andres-luengo/SatCheck/internal/sky"
	"github.com/andres-luengo/SatCheck/internal/testutils"
)

var gbt = Location{Lat: 38.432987, Lon: -79.839857, Alt: 807}

// pointedState places a fake satellite rangeKm from the observer along a
// direction that may drift with time.
type pointedState struct {
	loc     Location
	start   time.Time
	rangeKm float64
	dir     func(elapsed float64) sky.Equatorial
}

func (p pointedState) PositionAt(t time.Time) (Vector, error) {
	d := p.dir(t.Sub(p.start).Seconds())
	ra, dec := float64(d.RA), float64(d.Dec)
	o := p.loc.Position(t)
	return Vector{
		X: o.X + p.rangeKm*math.Cos(dec)*math.Cos(ra),
		Y: o.Y + p.rangeKm*math.Cos(dec)*math.Sin(ra),
		Z: o.Z + p.rangeKm*math.Sin(dec),
	}, nil
}

type fakeEngine map[string]State

func (fakeEngine) Name() string { return "fake" }

func (e fakeEngine) NewState(rec elements.Record) (State, error) {
	s, ok := e[rec.Key()]
	if !ok {
		return nil, errors.New("no state")
	}
	return s, nil
}

func synthSet(names ...string) elements.Set {
	set := make(elements.Set)
	for i, n := range names {
		rec := elements.Record{Name: n, CatalogID: string(rune('1' + i))}
		set[rec.Key()] = rec
	}
	return set
}

func mustTarget(t *testing.T, ra, dec string) sky.Equatorial {
	t.Helper()
	eq, err := sky.Parse(ra, dec)
	if err != nil {
		t.Fatal(err)
	}
	return eq
}

func TestPropagateZenith(t *testing.T) {
	at := time.Date(2020, 6, 21, 6, 0, 0, 0, time.UTC)
	lat := gbt.Lat * math.Pi / 180
	lon := gbt.Lon * math.Pi / 180
	theta := sky.GMST(at)

	// Straight up along the ellipsoid normal.
	n := Vector{math.Cos(lat) * math.Cos(lon+theta), math.Cos(lat) * math.Sin(lon+theta), math.Sin(lat)}
	o := gbt.Position(at)
	state := staticState{Vector{o.X + 1000*n.X, o.Y + 1000*n.Y, o.Z + 1000*n.Z}}

	pos, err := Propagate(state, gbt, at)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pos.Dec.Deg()-gbt.Lat) > 1e-9 {
		t.Errorf("Dec = %v, want %v", pos.Dec.Deg(), gbt.Lat)
	}
	wantRA := math.Mod(lon+theta+4*math.Pi, 2*math.Pi)
	if math.Abs(float64(pos.RA)-wantRA) > 1e-9 {
		t.Errorf("RA = %v, want %v", float64(pos.RA), wantRA)
	}
}

type staticState struct{ v Vector }

func (s staticState) PositionAt(time.Time) (Vector, error) { return s.v, nil }

func TestScanStationaryAtTarget(t *testing.T) {
	start := time.Date(2020, 6, 21, 6, 0, 0, 250000000, time.UTC)
	target := mustTarget(t, "17h45m40.04s", "-29d00m28.17s")

	set := synthSet("SYNTH")
	engine := fakeEngine{"SYNTH 1": pointedState{
		loc: gbt, start: start, rangeKm: 20000,
		dir: func(float64) sky.Equatorial { return target },
	}}

	hits, err := NewScanner(engine, testutils.Logger(t)).Scan(set, "17h45m40.04s", "-29d00m28.17s", start, gbt)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d close approaches, want 1", len(hits))
	}
	rec := hits["SYNTH 1"]
	if len(rec.Samples) != WindowSteps {
		t.Fatalf("got %d samples, want %d", len(rec.Samples), WindowSteps)
	}
	for i, s := range rec.Samples {
		if s.Elapsed != i+1 {
			t.Fatalf("sample %d elapsed = %d, want %d", i, s.Elapsed, i+1)
		}
		if s.Separation > 1e-6 {
			t.Fatalf("sample %d separation = %v, want ~0", i, s.Separation)
		}
	}
}

func TestScanNeverClose(t *testing.T) {
	start := time.Date(2020, 6, 21, 6, 0, 0, 0, time.UTC)
	target := mustTarget(t, "06h00m00s", "+10d00m00s")
	away := sky.Equatorial{RA: target.RA, Dec: target.Dec + unit.AngleFromDeg(5)}

	set := synthSet("FAR")
	engine := fakeEngine{"FAR 1": pointedState{
		loc: gbt, start: start, rangeKm: 1000,
		dir: func(float64) sky.Equatorial { return away },
	}}

	hits := NewScanner(engine, nil).ScanTarget(set, target, start, gbt)
	if len(hits) != 0 {
		t.Errorf("got %d close approaches, want 0", len(hits))
	}
}

func TestScanPartialPass(t *testing.T) {
	start := time.Date(2020, 6, 21, 6, 0, 0, 0, time.UTC)
	target := mustTarget(t, "06h00m00s", "+10d00m00s")

	set := synthSet("DRIFT", "FAR")
	engine := fakeEngine{
		"DRIFT 1": pointedState{
			loc: gbt, start: start, rangeKm: 1500,
			dir: func(el float64) sky.Equatorial {
				return sky.Equatorial{RA: target.RA, Dec: target.Dec + unit.AngleFromDeg((el-150)*0.07)}
			},
		},
		"FAR 2": pointedState{
			loc: gbt, start: start, rangeKm: 1500,
			dir: func(float64) sky.Equatorial {
				return sky.Equatorial{RA: target.RA, Dec: target.Dec + unit.AngleFromDeg(-20)}
			},
		},
	}

	hits := NewScanner(engine, testutils.Logger(t)).ScanTarget(set, target, start, gbt)
	if len(hits) != 1 {
		t.Fatalf("got %d close approaches, want 1", len(hits))
	}
	rec, ok := hits["DRIFT 1"]
	if !ok {
		t.Fatal("DRIFT missing")
	}
	if len(rec.Samples) != 85 {
		t.Errorf("got %d samples, want 85", len(rec.Samples))
	}
	if rec.Samples[0].Elapsed != 108 || rec.Samples[len(rec.Samples)-1].Elapsed != 192 {
		t.Errorf("window = %d..%d, want 108..192", rec.Samples[0].Elapsed, rec.Samples[len(rec.Samples)-1].Elapsed)
	}
	for _, s := range rec.Samples {
		if s.Separation >= ThresholdDeg {
			t.Errorf("sample at %ds has separation %v >= threshold", s.Elapsed, s.Separation)
		}
	}
}

func TestScanSkipsStateErrors(t *testing.T) {
	set := synthSet("MISSING")
	hits := NewScanner(fakeEngine{}, testutils.Logger(t)).ScanTarget(set, sky.Equatorial{}, time.Now(), gbt)
	if len(hits) != 0 {
		t.Errorf("got %d close approaches, want 0", len(hits))
	}
}

func TestScanRejectsBadTarget(t *testing.T) {
	_, err := NewScanner(fakeEngine{}, nil).Scan(synthSet("X"), "not-an-angle", "+10d00m00s", time.Now(), gbt)
	if err == nil {
		t.Error("expected error for unparseable RA")
	}
}

func TestScanRealEnginesFarFromPole(t *testing.T) {
	set := elements.Parse(testutils.ISS(), testutils.Logger(t))
	if len(set) != 1 {
		t.Fatalf("fixture parse returned %d records", len(set))
	}
	start := time.Date(2020, 6, 21, 6, 0, 0, 0, time.UTC)

	for _, name := range []string{EngineSGP4, EngineGoSatellite} {
		t.Run(name, func(t *testing.T) {
			engine, err := EngineByName(name)
			if err != nil {
				t.Fatal(err)
			}
			state, err := engine.NewState(set["ISS (ZARYA) 25544"])
			if err != nil {
				t.Fatal(err)
			}
			v, err := state.PositionAt(start)
			if err != nil {
				t.Fatal(err)
			}
			if r := v.norm(); r < 6500 || r > 7000 {
				t.Errorf("ISS radius = %.1f km, want low Earth orbit", r)
			}

			// The ISS cannot appear near the celestial pole from Green Bank.
			hits, err := NewScanner(engine, testutils.Logger(t)).Scan(set, "00h00m00s", "+89d00m00s", start, gbt)
			if err != nil {
				t.Fatal(err)
			}
			if len(hits) != 0 {
				t.Errorf("got %d close approaches, want 0", len(hits))
			}
		})
	}
}

func TestEngineByName(t *testing.T) {
	for _, name := range []string{"", "sgp4", "SGP4", "go-satellite"} {
		if _, err := EngineByName(name); err != nil {
			t.Errorf("EngineByName(%q): %v", name, err)
		}
	}
	if _, err := EngineByName("kepler"); err == nil {
		t.Error("EngineByName(kepler) expected error")
	}
}
