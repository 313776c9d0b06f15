package observation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/andres-luengo/SatCheck/internal/sky"
)

// ErrNotFilterbank means the stream does not open with HEADER_START.
var ErrNotFilterbank = errors.New("not a SIGPROC filterbank header")

const maxKeyword = 80

type valueKind int

const (
	kindInt valueKind = iota
	kindDouble
	kindString
)

var keywords = map[string]valueKind{
	"telescope_id":  kindInt,
	"machine_id":    kindInt,
	"data_type":     kindInt,
	"nchans":        kindInt,
	"nbits":         kindInt,
	"nifs":          kindInt,
	"nbeams":        kindInt,
	"ibeam":         kindInt,
	"barycentric":   kindInt,
	"pulsarcentric": kindInt,
	"nsamples":      kindInt,
	"tstart":        kindDouble,
	"tsamp":         kindDouble,
	"fch1":          kindDouble,
	"foff":          kindDouble,
	"src_raj":       kindDouble,
	"src_dej":       kindDouble,
	"az_start":      kindDouble,
	"za_start":      kindDouble,
	"refdm":         kindDouble,
	"period":        kindDouble,
	"source_name":   kindString,
	"rawdatafile":   kindString,
}

// FilterbankHeader holds the SIGPROC header fields. SrcRAJ and SrcDEJ use
// the packed hhmmss.s / ddmmss.s encoding.
type FilterbankHeader struct {
	SourceName  string
	TStart      float64 // MJD
	TSamp       float64
	FCh1        float64
	FOff        float64
	SrcRAJ      float64
	SrcDEJ      float64
	NChans      int
	NBits       int
	NIFs        int
	TelescopeID int
}

// Header converts the packed fields into an observation header.
func (h FilterbankHeader) Header() Header {
	return Header{
		Start: sky.MJDToTime(h.TStart),
		RA:    FormatPacked(h.SrcRAJ, "h"),
		Dec:   FormatPacked(h.SrcDEJ, "d"),
	}
}

// ReadFilterbankHeader decodes a little-endian SIGPROC header up to and
// including HEADER_END.
func ReadFilterbankHeader(r io.Reader) (FilterbankHeader, error) {
	var h FilterbankHeader

	first, err := readString(r)
	if err != nil || first != "HEADER_START" {
		return h, ErrNotFilterbank
	}

	for {
		key, err := readString(r)
		if err != nil {
			return h, fmt.Errorf("read keyword: %w", err)
		}
		if key == "HEADER_END" {
			return h, nil
		}

		kind, ok := keywords[key]
		if !ok {
			return h, fmt.Errorf("unknown header keyword %q", key)
		}

		switch kind {
		case kindInt:
			var v int32
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return h, fmt.Errorf("read %s: %w", key, err)
			}
			switch key {
			case "nchans":
				h.NChans = int(v)
			case "nbits":
				h.NBits = int(v)
			case "nifs":
				h.NIFs = int(v)
			case "telescope_id":
				h.TelescopeID = int(v)
			}
		case kindDouble:
			var v float64
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return h, fmt.Errorf("read %s: %w", key, err)
			}
			switch key {
			case "tstart":
				h.TStart = v
			case "tsamp":
				h.TSamp = v
			case "fch1":
				h.FCh1 = v
			case "foff":
				h.FOff = v
			case "src_raj":
				h.SrcRAJ = v
			case "src_dej":
				h.SrcDEJ = v
			}
		case kindString:
			s, err := readString(r)
			if err != nil {
				return h, fmt.Errorf("read %s: %w", key, err)
			}
			if key == "source_name" {
				h.SourceName = s
			}
		}
	}
}

func readString(r io.Reader) (string, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n <= 0 || n > maxKeyword {
		return "", fmt.Errorf("bad string length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatPacked renders a packed sexagesimal value such as 174540.04 as
// "17h45m40.04s". unit is the first separator: "h" for RA, "d" for Dec.
func FormatPacked(v float64, unit string) string {
	sign := ""
	if v < 0 || (v == 0 && math.Signbit(v)) {
		sign = "-"
		v = -v
	}
	whole := math.Floor(v / 10000)
	rest := v - whole*10000
	mins := math.Floor(rest / 100)
	secs := rest - mins*100

	// Round in ten-thousandths of a second so a 59.99999 carries upward.
	const perSec = 10000
	ticks := int64(math.Round((whole*3600 + mins*60 + secs) * perSec))
	if unit == "h" {
		ticks %= 24 * 3600 * perSec
	}
	hd := ticks / (3600 * perSec)
	mm := ticks / (60 * perSec) % 60
	st := ticks % (60 * perSec)

	s := fmt.Sprintf("%02d", st/perSec)
	if frac := st % perSec; frac != 0 {
		s += strings.TrimRight(fmt.Sprintf(".%04d", frac), "0")
	}
	return fmt.Sprintf("%s%02d%s%02dm%ss", sign, hd, unit, mm, s)
}
