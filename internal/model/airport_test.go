package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
)

func TestNormalizeICAO(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "KPAO", NormalizeICAO("  kpao "))
}

func TestValidateStationID(t *testing.T) {
	t.Parallel()
	for _, id := range []string{"KPAO", "PAO", "O69", "EGLL"} {
		assert.NoError(t, ValidateStationID(id), id)
	}
	for _, id := range []string{"", "KP", "KPAOX", "K PA", "kpao", "K-PA"} {
		err := ValidateStationID(id)
		assert.True(t, efberr.IsKind(err, efberr.InvalidInput), id)
	}
}

func TestAirportUsable(t *testing.T) {
	t.Parallel()
	a := Airport{ICAO: "KPAO", Coordinate: geodesy.NewCoordinate(37.46, -122.11)}
	assert.True(t, a.Usable())
	a.ICAO = ""
	assert.False(t, a.Usable())
	a = Airport{ICAO: "XXXX", Coordinate: geodesy.NewCoordinate(91, 0)}
	assert.False(t, a.Usable())
}
