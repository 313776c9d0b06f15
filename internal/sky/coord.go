// Package sky holds the angle parsing, formatting, and great-circle
// geometry shared by the propagator, the separation scan, and the report
// writer. Right ascension and declination travel as soniakeys/unit values
// so radians never get mixed up with degrees or hours.
package sky

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/soniakeys/unit"
)

// Equatorial is a position on the celestial sphere.
type Equatorial struct {
	RA  unit.RA
	Dec unit.Angle
}

// Normalize rewrites a sexagesimal string that uses letter separators
// ("17h45m40.04s", "-29d00m28.17s") into colon form ("17:45:40.04").
// Strings that are already colon or space separated pass through with
// spaces turned into colons.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	r := strings.NewReplacer(
		"h", ":", "H", ":",
		"d", ":", "D", ":", "°", ":",
		"m", ":", "M", ":", "'", ":",
		"s", "", "S", "", "\"", "",
	)
	s = r.Replace(s)
	s = strings.Join(strings.Fields(s), ":")
	return strings.TrimSuffix(s, ":")
}

// ParseRA parses an hour-angle string into a right ascension.
func ParseRA(s string) (unit.RA, error) {
	h, err := parseSexagesimal(Normalize(s))
	if err != nil {
		return 0, fmt.Errorf("parse ra %q: %w", s, err)
	}
	if h < 0 || h >= 24 {
		return 0, fmt.Errorf("parse ra %q: hours out of range", s)
	}
	return unit.RA(h * math.Pi / 12), nil
}

// ParseDec parses a degree string into a declination.
func ParseDec(s string) (unit.Angle, error) {
	d, err := parseSexagesimal(Normalize(s))
	if err != nil {
		return 0, fmt.Errorf("parse dec %q: %w", s, err)
	}
	if d < -90 || d > 90 {
		return 0, fmt.Errorf("parse dec %q: degrees out of range", s)
	}
	return unit.AngleFromDeg(d), nil
}

// Parse parses a target pointing given as RA and Dec strings.
func Parse(ra, dec string) (Equatorial, error) {
	r, err := ParseRA(ra)
	if err != nil {
		return Equatorial{}, err
	}
	d, err := ParseDec(dec)
	if err != nil {
		return Equatorial{}, err
	}
	return Equatorial{RA: r, Dec: d}, nil
}

// parseSexagesimal reads "a[:b[:c]]" with an optional leading sign that
// applies to the whole value, so "-00:30:00" is half a unit negative.
func parseSexagesimal(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("too many fields")
	}

	var v float64
	scale := 1.0
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, err
		}
		if f < 0 {
			return 0, fmt.Errorf("negative field %q", p)
		}
		if i > 0 && f >= 60 {
			return 0, fmt.Errorf("field %q must be < 60", p)
		}
		v += f / scale
		scale *= 60
	}

	if neg {
		v = -v
	}
	return v, nil
}

// Separation returns the great-circle angle between a and b, using the
// atan2 form of the Vincenty formula which stays accurate for both tiny
// and near-antipodal separations.
func Separation(a, b Equatorial) unit.Angle {
	ra1, dec1 := float64(a.RA), float64(a.Dec)
	ra2, dec2 := float64(b.RA), float64(b.Dec)

	dra := ra2 - ra1
	sinD1, cosD1 := math.Sincos(dec1)
	sinD2, cosD2 := math.Sincos(dec2)
	sinDRA, cosDRA := math.Sincos(dra)

	x := cosD2 * sinDRA
	y := cosD1*sinD2 - sinD1*cosD2*cosDRA
	num := math.Hypot(x, y)
	den := sinD1*sinD2 + cosD1*cosD2*cosDRA

	return unit.Angle(math.Atan2(num, den))
}

// FormatRA renders ra as "HH:MM:SS.ss".
func FormatRA(ra unit.RA) string {
	h := float64(ra) * 12 / math.Pi
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	// Work in hundredths of a second so rounding carries into minutes.
	cs := int64(math.Round(h * 3600 * 100))
	cs %= 24 * 3600 * 100
	hh := cs / (3600 * 100)
	mm := cs / (60 * 100) % 60
	ss := float64(cs%(60*100)) / 100
	return fmt.Sprintf("%02d:%02d:%05.2f", hh, mm, ss)
}

// FormatDec renders dec as "+DD:MM:SS.s".
func FormatDec(dec unit.Angle) string {
	d := dec.Deg()
	sign := "+"
	if d < 0 {
		sign = "-"
		d = -d
	}
	ds := int64(math.Round(d * 3600 * 10))
	dd := ds / (3600 * 10)
	mm := ds / (60 * 10) % 60
	ss := float64(ds%(60*10)) / 10
	return fmt.Sprintf("%s%02d:%02d:%04.1f", sign, dd, mm, ss)
}
