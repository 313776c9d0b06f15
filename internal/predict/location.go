package predict

import (
	"math"
	"time"

	"github.com/andres-luengo/SatCheck/internal/sky"
)

// WGS-84 ellipsoid, kilometres.
const (
	wgs84A  = 6378.137
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Location is a ground observer.
type Location struct {
	Lat float64 // degrees North
	Lon float64 // degrees East
	Alt float64 // meters above the ellipsoid
}

// Vector is a cartesian position in kilometres.
type Vector struct {
	X, Y, Z float64
}

func (v Vector) sub(o Vector) Vector { return Vector{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vector) norm() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// ECEF returns the observer's Earth-fixed position.
func (l Location) ECEF() Vector {
	lat := l.Lat * math.Pi / 180
	lon := l.Lon * math.Pi / 180
	alt := l.Alt / 1000

	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Vector{
		X: (n + alt) * cosLat * cosLon,
		Y: (n + alt) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + alt) * sinLat,
	}
}

// Position returns the observer in the same inertial frame as SGP4 output,
// rotating the Earth-fixed position by Greenwich sidereal time.
func (l Location) Position(t time.Time) Vector {
	e := l.ECEF()
	sinT, cosT := math.Sincos(sky.GMST(t))
	return Vector{
		X: e.X*cosT - e.Y*sinT,
		Y: e.X*sinT + e.Y*cosT,
		Z: e.Z,
	}
}
