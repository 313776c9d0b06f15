package sky

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// mjdUnixEpoch is the Modified Julian Date of 1970-01-01T00:00:00Z.
const mjdUnixEpoch = 40587

// JulianDate converts a UTC instant to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	h := float64(t.Hour())
	min := float64(t.Minute())
	s := float64(t.Second()) + float64(t.Nanosecond())/1e9

	if m <= 2 {
		y -= 1
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	jd := math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5
	jd += (h + min/60.0 + s/3600.0) / 24.0
	return jd
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, UT1≈UTC).
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	// 876600h expressed in seconds.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}

// MJDToTime converts a Modified Julian Date to a UTC time with
// microsecond resolution.
func MJDToTime(mjd float64) time.Time {
	days := math.Floor(mjd)
	frac := mjd - days
	t := time.Unix(0, 0).UTC().AddDate(0, 0, int(days)-mjdUnixEpoch)
	return t.Add(time.Duration(math.Round(frac*86400e6)) * time.Microsecond)
}

// TimeToMJD converts t to a Modified Julian Date.
func TimeToMJD(t time.Time) float64 {
	return float64(t.UTC().UnixNano())/86400e9 + mjdUnixEpoch
}
