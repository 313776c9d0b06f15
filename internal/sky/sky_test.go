package sky

import (
	"math"
	"testing"
	"time"

	"github.com/soniakeys/unit"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"17h45m40.04s", "17:45:40.04"},
		{"-29d00m28.17s", "-29:00:28.17"},
		{"+41d16m09s", "+41:16:09"},
		{"12 30 45.5", "12:30:45.5"},
		{"05:34:31.94", "05:34:31.94"},
		{"17h45m", "17:45"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRA(t *testing.T) {
	ra, err := ParseRA("18h00m00s")
	if err != nil {
		t.Fatalf("ParseRA: %v", err)
	}
	if math.Abs(float64(ra)-1.5*math.Pi) > 1e-12 {
		t.Errorf("ParseRA(18h) = %v rad, want %v", float64(ra), 1.5*math.Pi)
	}

	ra, err = ParseRA("12h30m45s")
	if err != nil {
		t.Fatalf("ParseRA: %v", err)
	}
	wantHours := 12 + 30.0/60 + 45.0/3600
	if got := float64(ra) * 12 / math.Pi; math.Abs(got-wantHours) > 1e-12 {
		t.Errorf("ParseRA(12h30m45s) = %v h, want %v h", got, wantHours)
	}

	for _, bad := range []string{"", "25h00m00s", "12h61m00s", "abc", "1:2:3:4"} {
		if _, err := ParseRA(bad); err == nil {
			t.Errorf("ParseRA(%q) expected error", bad)
		}
	}
}

func TestParseDec(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"-29d00m28.17s", -(29 + 28.17/3600)},
		{"+41d16m09s", 41 + 16.0/60 + 9.0/3600},
		{"-00d30m00s", -0.5},
		{"90d00m00s", 90},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDec(tt.in)
			if err != nil {
				t.Fatalf("ParseDec: %v", err)
			}
			if math.Abs(d.Deg()-tt.want) > 1e-9 {
				t.Errorf("ParseDec(%q) = %v deg, want %v", tt.in, d.Deg(), tt.want)
			}
		})
	}

	if _, err := ParseDec("91d00m00s"); err == nil {
		t.Error("ParseDec(91d) expected error")
	}
}

func TestSeparation(t *testing.T) {
	deg := func(ra, dec float64) Equatorial {
		return Equatorial{RA: unit.RA(ra * math.Pi / 180), Dec: unit.AngleFromDeg(dec)}
	}

	tests := []struct {
		name string
		a, b Equatorial
		want float64
	}{
		{"identical", deg(120, -30), deg(120, -30), 0},
		{"quarter turn on equator", deg(0, 0), deg(90, 0), 90},
		{"pole to equator", deg(0, 90), deg(217, 0), 90},
		{"antipodal", deg(0, 0), deg(180, 0), 180},
		{"small offset in dec", deg(10, 20), deg(10, 22.5), 2.5},
		{"ra wraps", deg(359, 0), deg(1, 0), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Separation(tt.a, tt.b).Deg()
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Separation = %.12f deg, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	ra, err := ParseRA("17h45m40.04s")
	if err != nil {
		t.Fatal(err)
	}
	if got := FormatRA(ra); got != "17:45:40.04" {
		t.Errorf("FormatRA = %q, want 17:45:40.04", got)
	}

	dec, err := ParseDec("-29d00m28.17s")
	if err != nil {
		t.Fatal(err)
	}
	if got := FormatDec(dec); got != "-29:00:28.2" {
		t.Errorf("FormatDec = %q, want -29:00:28.2", got)
	}

	// 59.999 seconds must carry into the next minute.
	carry := unit.RA((1 + 59.0/60 + 59.999/3600) * math.Pi / 12)
	if got := FormatRA(carry); got != "02:00:00.00" {
		t.Errorf("FormatRA carry = %q, want 02:00:00.00", got)
	}
}

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want float64
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC), 2451545.0},
		{"Unix epoch", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), 2440587.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JulianDate(tt.time); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("JulianDate = %.8f, want %.8f", got, tt.want)
			}
		})
	}
}

func TestGMSTAtJ2000(t *testing.T) {
	got := GMST(time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)) * 180 / math.Pi
	want := 67310.54841 / 86400 * 360
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("GMST(J2000) = %.8f deg, want %.8f", got, want)
	}
}

func TestMJDToTime(t *testing.T) {
	got := MJDToTime(58849.5)
	want := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("MJDToTime(58849.5) = %v, want %v", got, want)
	}

	// 2020-06-21 plus a quarter day and a few seconds.
	mjd := 59021.25 + 12.5/86400
	got = MJDToTime(mjd)
	want = time.Date(2020, 6, 21, 6, 0, 12, 500000000, time.UTC)
	if d := got.Sub(want); d > time.Microsecond || d < -time.Microsecond {
		t.Errorf("MJDToTime(%v) = %v, want %v", mjd, got, want)
	}

	if back := TimeToMJD(want); math.Abs(back-mjd) > 1e-9 {
		t.Errorf("TimeToMJD = %v, want %v", back, mjd)
	}
}
