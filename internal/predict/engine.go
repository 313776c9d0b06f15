package predict

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/andres-luengo/SatCheck/internal/elements"
)

// State yields a satellite's inertial (TEME) position at an instant.
type State interface {
	PositionAt(t time.Time) (Vector, error)
}

// Engine builds propagatable states from element records.
type Engine interface {
	Name() string
	NewState(rec elements.Record) (State, error)
}

// Engine names accepted by EngineByName.
const (
	EngineSGP4        = "sgp4"
	EngineGoSatellite = "go-satellite"
)

// EngineByName resolves a configured engine name.
func EngineByName(name string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineSGP4:
		return SGP4Engine{}, nil
	case EngineGoSatellite:
		return SatelliteEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown propagation engine %q", name)
	}
}

// SGP4Engine propagates with github.com/akhenakh/sgp4.
type SGP4Engine struct{}

func (SGP4Engine) Name() string { return EngineSGP4 }

func (SGP4Engine) NewState(rec elements.Record) (State, error) {
	if rec.TLE == nil {
		return nil, fmt.Errorf("%s: record has no decoded element set", rec.Key())
	}
	return sgp4State{rec: rec}, nil
}

type sgp4State struct {
	rec elements.Record
}

func (s sgp4State) PositionAt(t time.Time) (Vector, error) {
	eci, err := s.rec.TLE.FindPositionAtTime(t.UTC())
	if err != nil {
		return Vector{}, fmt.Errorf("%s: %w", s.rec.Key(), err)
	}
	v := Vector{X: eci.Position.X, Y: eci.Position.Y, Z: eci.Position.Z}
	if err := sanityCheck(v); err != nil {
		return Vector{}, fmt.Errorf("%s: %w", s.rec.Key(), err)
	}
	return v, nil
}

// SatelliteEngine propagates with github.com/joshuaferrara/go-satellite.
// That library takes whole seconds, so sub-second start times are
// truncated.
type SatelliteEngine struct{}

func (SatelliteEngine) Name() string { return EngineGoSatellite }

// NewState relies on the record having passed the length, prefix, and
// checksum checks in elements.Parse; go-satellite calls log.Fatal on
// lines it cannot read.
func (SatelliteEngine) NewState(rec elements.Record) (State, error) {
	if len(rec.Line1) != 69 || len(rec.Line2) != 69 {
		return nil, fmt.Errorf("%s: element lines must be 69 characters", rec.Key())
	}
	sat := satellite.TLEToSat(rec.Line1, rec.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%s: sgp4 init failed: code=%d %s", rec.Key(), sat.Error, sat.ErrorStr)
	}
	return satelliteState{key: rec.Key(), sat: sat}, nil
}

type satelliteState struct {
	key string
	sat satellite.Satellite
}

func (s satelliteState) PositionAt(t time.Time) (Vector, error) {
	t = t.UTC()
	pos, _ := satellite.Propagate(s.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	v := Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if err := sanityCheck(v); err != nil {
		return Vector{}, fmt.Errorf("%s: %w", s.key, err)
	}
	return v, nil
}

// sanityCheck rejects NaN output and positions inside the Earth or
// beyond any tracked orbit.
func sanityCheck(v Vector) error {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
		math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
		return fmt.Errorf("propagation produced NaN/Inf")
	}
	if mag := v.norm(); mag < 6200 || mag > 500000 {
		return fmt.Errorf("unreasonable position magnitude %.1f km", mag)
	}
	return nil
}
