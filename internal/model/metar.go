package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// UnlimitedCeilingFt is reported when no BKN, OVC or VV layer is present.
const UnlimitedCeilingFt = 12000

// METARVisibility extracts the prevailing visibility in statute miles from
// a raw METAR. Handles "10SM", "P6SM", "M1/4SM", "3/4SM" and "1 1/2SM".
func METARVisibility(raw string) (float64, error) {
	fields := strings.Fields(raw)
	for i, f := range fields {
		if !strings.HasSuffix(f, "SM") {
			continue
		}
		v, err := parseSM(strings.TrimSuffix(f, "SM"))
		if err != nil {
			// Not a visibility group, e.g. a station identifier ending in SM.
			continue
		}
		// A whole-mile prefix such as "1" in "1 1/2SM".
		if i > 0 && strings.Contains(f, "/") {
			if whole, err := strconv.Atoi(fields[i-1]); err == nil && whole < 10 {
				v += float64(whole)
			}
		}
		return v, nil
	}
	return -1, eris.Errorf("metar: no visibility in %q", raw)
}

func parseSM(s string) (float64, error) {
	s = strings.TrimPrefix(s, "P")
	s = strings.TrimPrefix(s, "M")
	if num, denom, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, err
		}
		d, err := strconv.Atoi(denom)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, eris.New("zero denominator")
		}
		return float64(n) / float64(d), nil
	}
	return strconv.ParseFloat(s, 64)
}

// METARCeiling returns the lowest broken, overcast or vertical-visibility
// layer in feet AGL, or UnlimitedCeilingFt when there is none.
func METARCeiling(raw string) (int, error) {
	for _, f := range strings.Fields(raw) {
		var height string
		switch {
		case strings.HasPrefix(f, "BKN"), strings.HasPrefix(f, "OVC"):
			height = f[3:]
		case strings.HasPrefix(f, "VV"):
			height = f[2:]
		default:
			continue
		}
		if len(height) < 3 {
			return -1, eris.Errorf("metar: layer %q too short", f)
		}
		alt, err := strconv.Atoi(height[:3])
		if err != nil {
			return -1, eris.Wrapf(err, "metar: layer %q", f)
		}
		return alt * 100, nil
	}
	return UnlimitedCeilingFt, nil
}

// CategoryFromMETAR derives the flight category from raw METAR text.
func CategoryFromMETAR(raw string) (FlightCategory, error) {
	vis, err := METARVisibility(raw)
	if err != nil {
		return "", err
	}
	ceil, err := METARCeiling(raw)
	if err != nil {
		return "", err
	}
	return CategoryFor(ceil, vis), nil
}
