// Package predict propagates element sets to topocentric sky positions and
// scans the window after an observation starts for satellites that pass
// close to the telescope pointing.
package predict

import (
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/soniakeys/unit"

	"github.com/andres-luengo/SatCheck/internal/elements"
	"github.com/andres-luengo/SatCheck/internal/metrics"
	"github.com/andres-luengo/SatCheck/internal/sky"
)

// Scan parameters. These match the historical reports and are not
// configurable.
const (
	ThresholdDeg = 3.0
	WindowSteps  = 300
	StepSize     = time.Second
)

// Sample is one scan step at which a satellite was inside the threshold.
type Sample struct {
	Elapsed    int            // seconds after observation start
	Separation float64        // degrees
	Position   sky.Equatorial // satellite topocentric RA/Dec
}

// CloseApproach is every in-threshold sample of one satellite, in scan
// order.
type CloseApproach struct {
	Satellite string
	Samples   []Sample
}

// Propagate returns the topocentric RA/Dec of the satellite described by
// state, seen from loc at t.
func Propagate(state State, loc Location, t time.Time) (sky.Equatorial, error) {
	sat, err := state.PositionAt(t)
	if err != nil {
		return sky.Equatorial{}, err
	}

	rho := sat.sub(loc.Position(t))
	r := rho.norm()
	if r == 0 {
		return sky.Equatorial{}, fmt.Errorf("satellite coincides with observer")
	}

	ra := math.Atan2(rho.Y, rho.X)
	if ra < 0 {
		ra += 2 * math.Pi
	}
	dec := math.Asin(rho.Z / r)

	return sky.Equatorial{RA: unit.RA(ra), Dec: unit.Angle(dec)}, nil
}

// Scanner runs the separation scan over an element set.
type Scanner struct {
	Engine  Engine
	Log     *log.Logger
	Metrics *metrics.Collector
}

// NewScanner returns a scanner using engine. A nil logger discards output.
func NewScanner(engine Engine, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scanner{Engine: engine, Log: logger}
}

// Scan parses the target pointing and runs ScanTarget. ra and dec use
// letter separators ("17h45m40.04s", "-29d00m28.17s") or colons.
func (s *Scanner) Scan(set elements.Set, ra, dec string, start time.Time, loc Location) (map[string]CloseApproach, error) {
	target, err := sky.Parse(ra, dec)
	if err != nil {
		return nil, err
	}
	return s.ScanTarget(set, target, start, loc), nil
}

// ScanTarget steps from start+1s to start+300s for every satellite in set
// and keeps the steps whose separation from target is under the
// threshold. Satellites that never get that close are absent from the
// result.
func (s *Scanner) ScanTarget(set elements.Set, target sky.Equatorial, start time.Time, loc Location) map[string]CloseApproach {
	hits := make(map[string]CloseApproach)

	for _, key := range set.Keys() {
		state, err := s.Engine.NewState(set[key])
		if err != nil {
			s.Log.Printf("predict: skipping %s: %v", key, err)
			continue
		}

		var samples []Sample
		failures := 0
		for step := 1; step <= WindowSteps; step++ {
			at := start.Add(time.Duration(step) * StepSize)
			pos, err := Propagate(state, loc, at)
			if err != nil {
				failures++
				s.Metrics.StepFailure()
				continue
			}
			sep := sky.Separation(pos, target).Deg()
			if sep < ThresholdDeg {
				samples = append(samples, Sample{Elapsed: step, Separation: sep, Position: pos})
			}
		}

		if failures > 0 {
			s.Log.Printf("predict: %s: %d of %d steps failed to propagate", key, failures, WindowSteps)
		}
		if len(samples) > 0 {
			hits[key] = CloseApproach{Satellite: key, Samples: samples}
		}
	}

	return hits
}
