package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
)

func TestParseFlightCategory(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want FlightCategory
	}{
		{"VFR", CategoryVFR},
		{"mvfr", CategoryMVFR},
		{" IFR ", CategoryIFR},
		{"Lifr", CategoryLIFR},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseFlightCategory(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlightCategory_Unknown(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "SVFR", "unknown"} {
		_, err := ParseFlightCategory(in)
		assert.True(t, efberr.IsInvalidInput(err), "input %q", in)
	}
}

func TestCategoryFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ceiling int
		vis     float64
		want    FlightCategory
	}{
		{"clear", 12000, 10, CategoryVFR},
		{"ceiling at 3000 is mvfr", 3000, 10, CategoryMVFR},
		{"vis 5 is mvfr", 12000, 5, CategoryMVFR},
		{"ceiling 900 ifr", 900, 10, CategoryIFR},
		{"vis 2 ifr", 12000, 2, CategoryIFR},
		{"ceiling 400 lifr", 400, 10, CategoryLIFR},
		{"vis half lifr", 5000, 0.5, CategoryLIFR},
		{"lower of the two wins", 2500, 0.75, CategoryLIFR},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CategoryFor(tt.ceiling, tt.vis))
		})
	}
}

func TestWeatherObservation_Raw(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", WeatherObservation{}.Raw())
	raw := "KPAO 121853Z 31008KT 10SM CLR 22/09 A3002"
	assert.Equal(t, raw, WeatherObservation{RawMETAR: &raw}.Raw())
}
