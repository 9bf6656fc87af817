package route

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

var (
	kpao = model.Airport{ICAO: "KPAO", Name: "Palo Alto", Coordinate: geodesy.NewCoordinate(37.4611, -122.1150), ElevationFt: 7}
	ksql = model.Airport{ICAO: "KSQL", Name: "San Carlos", Coordinate: geodesy.NewCoordinate(37.5119, -122.2495), ElevationFt: 5}
	ksjc = model.Airport{ICAO: "KSJC", Name: "San Jose", Coordinate: geodesy.NewCoordinate(37.3626, -121.9291), ElevationFt: 62}
	kmry = model.Airport{ICAO: "KMRY", Name: "Monterey", Coordinate: geodesy.NewCoordinate(36.5870, -121.8430), ElevationFt: 257}
)

func TestBuildPlan_SingleLeg(t *testing.T) {
	t.Parallel()
	plan, err := BuildPlan([]model.Airport{kpao, ksql}, 100, 10)
	require.NoError(t, err)

	require.Len(t, plan.Legs, 1)
	leg := plan.Legs[0]
	assert.Equal(t, "KPAO", leg.From)
	assert.Equal(t, "KSQL", leg.To)
	assert.InDelta(t, 7.09, leg.DistanceNM, 0.05)
	assert.InDelta(t, 295.5, leg.BearingDeg, 0.5)
	assert.InDelta(t, leg.DistanceNM, plan.TotalDistanceNM, 1e-12)

	hours := plan.TotalDistanceNM / 100
	assert.InDelta(t, hours*float64(time.Hour), float64(plan.EstimatedTime), float64(time.Millisecond))
	assert.InDelta(t, hours*10, plan.EstimatedFuelGal, 1e-9)
}

func TestBuildPlan_MultiLegSumsInOrder(t *testing.T) {
	t.Parallel()
	plan, err := BuildPlan([]model.Airport{kpao, ksjc, kmry, kpao}, 120, 8.5)
	require.NoError(t, err)
	require.Len(t, plan.Legs, 3)
	assert.Len(t, plan.Waypoints, 4)

	var sum float64
	for i, leg := range plan.Legs {
		assert.Equal(t, plan.Waypoints[i].ICAO, leg.From)
		assert.Equal(t, plan.Waypoints[i+1].ICAO, leg.To)
		assert.GreaterOrEqual(t, leg.BearingDeg, 0.0)
		assert.Less(t, leg.BearingDeg, 360.0)
		sum += leg.DistanceNM
	}
	assert.InDelta(t, sum, plan.TotalDistanceNM, 1e-9)
}

func TestBuildPlan_ZeroBurnAllowed(t *testing.T) {
	t.Parallel()
	plan, err := BuildPlan([]model.Airport{kpao, ksql}, 90, 0)
	require.NoError(t, err)
	assert.Zero(t, plan.EstimatedFuelGal)
	assert.Positive(t, plan.EstimatedTime)
}

func TestBuildPlan_SameAirportTwice(t *testing.T) {
	t.Parallel()
	plan, err := BuildPlan([]model.Airport{kpao, kpao}, 90, 5)
	require.NoError(t, err)
	assert.Zero(t, plan.TotalDistanceNM)
	assert.Zero(t, plan.Legs[0].BearingDeg)
	assert.Zero(t, plan.EstimatedTime)
}

func TestBuildPlan_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		waypoints []model.Airport
		cruise    float64
		burn      float64
		want      error
	}{
		{"no waypoints", nil, 100, 10, efberr.ErrInsufficientWaypoints},
		{"one waypoint", []model.Airport{kpao}, 100, 10, efberr.ErrInsufficientWaypoints},
		{"zero cruise", []model.Airport{kpao, ksql}, 0, 10, efberr.ErrInvalidPerformance},
		{"negative cruise", []model.Airport{kpao, ksql}, -5, 10, efberr.ErrInvalidPerformance},
		{"nan cruise", []model.Airport{kpao, ksql}, math.NaN(), 10, efberr.ErrInvalidPerformance},
		{"inf cruise", []model.Airport{kpao, ksql}, math.Inf(1), 10, efberr.ErrInvalidPerformance},
		{"negative burn", []model.Airport{kpao, ksql}, 100, -1, efberr.ErrInvalidPerformance},
		{"nan burn", []model.Airport{kpao, ksql}, 100, math.NaN(), efberr.ErrInvalidPerformance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPlan(tt.waypoints, tt.cruise, tt.burn)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, efberr.IsInvalidInput(err))
		})
	}
}

func TestBuildPlan_InvalidCoordinate(t *testing.T) {
	t.Parallel()
	bad := model.Airport{ICAO: "XXXX", Coordinate: geodesy.NewCoordinate(95, 0)}
	_, err := BuildPlan([]model.Airport{kpao, bad}, 100, 10)
	assert.True(t, efberr.IsInvalidInput(err))
}

func TestBuildPlan_DoesNotAliasInput(t *testing.T) {
	t.Parallel()
	in := []model.Airport{kpao, ksql}
	plan, err := BuildPlan(in, 100, 10)
	require.NoError(t, err)
	in[0] = kmry
	assert.Equal(t, "KPAO", plan.Waypoints[0].ICAO)
}

func TestEdits(t *testing.T) {
	t.Parallel()
	base, err := BuildPlan([]model.Airport{kpao, kmry}, 110, 9)
	require.NoError(t, err)

	inserted, err := InsertWaypoint(base, 1, ksjc)
	require.NoError(t, err)
	assert.Equal(t, []string{"KPAO", "KSJC", "KMRY"}, idents(inserted))
	assert.Len(t, inserted.Legs, 2)
	assert.Greater(t, inserted.TotalDistanceNM, base.TotalDistanceNM)
	assert.Len(t, base.Waypoints, 2, "original plan untouched")

	appended, err := InsertWaypoint(inserted, 3, ksql)
	require.NoError(t, err)
	assert.Equal(t, []string{"KPAO", "KSJC", "KMRY", "KSQL"}, idents(appended))

	moved, err := MoveWaypoint(appended, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"KSQL", "KPAO", "KSJC", "KMRY"}, idents(moved))
	assert.Equal(t, "KSQL", moved.Legs[0].From)

	removed, err := RemoveWaypoint(moved, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"KSQL", "KPAO", "KMRY"}, idents(removed))

	faster, err := WithPerformance(removed, 220, 9)
	require.NoError(t, err)
	assert.InDelta(t, float64(removed.EstimatedTime)/2, float64(faster.EstimatedTime), float64(time.Millisecond))
	assert.InDelta(t, removed.TotalDistanceNM, faster.TotalDistanceNM, 1e-12)

	_, err = RemoveWaypoint(base, 0)
	assert.ErrorIs(t, err, efberr.ErrInsufficientWaypoints)
	_, err = InsertWaypoint(base, 5, ksql)
	assert.True(t, efberr.IsInvalidInput(err))
	_, err = MoveWaypoint(base, 0, 2)
	assert.True(t, efberr.IsInvalidInput(err))
	_, err = WithPerformance(base, 0, 1)
	assert.ErrorIs(t, err, efberr.ErrInvalidPerformance)
}

func idents(p *model.RoutePlan) []string {
	out := make([]string, len(p.Waypoints))
	for i, w := range p.Waypoints {
		out[i] = w.ICAO
	}
	return out
}

type lookup map[string]model.Airport

func (l lookup) GetAirport(_ context.Context, icao string) (*model.Airport, error) {
	a, ok := l[icao]
	if !ok {
		return nil, efberr.New(efberr.NotFound, "store", "airport "+icao+" not found")
	}
	return &a, nil
}

func TestPlanner(t *testing.T) {
	t.Parallel()
	pl := Planner{Airports: lookup{"KPAO": kpao, "KSQL": ksql}}

	plan, err := pl.Plan(context.Background(), []string{"kpao", " KSQL "}, 100, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"KPAO", "KSQL"}, idents(plan))

	_, err = pl.Plan(context.Background(), []string{"KPAO", "KZZZ"}, 100, 10)
	assert.True(t, efberr.IsNotFound(err))

	_, err = pl.Plan(context.Background(), []string{"KPAO"}, 100, 10)
	assert.ErrorIs(t, err, efberr.ErrInsufficientWaypoints)
}
