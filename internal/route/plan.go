// Package route computes flight plans: per-leg great-circle distance and
// initial bearing, total distance, time en route and fuel.
//
// Plans are values. Every edit returns a new plan recomputed from its
// waypoints; nothing is patched incrementally.
package route

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// BuildPlan computes a plan through waypoints in order. At least two
// waypoints are required, cruise speed must be positive and burn rate
// non-negative.
func BuildPlan(waypoints []model.Airport, cruiseSpeedKts, burnRateGPH float64) (*model.RoutePlan, error) {
	if len(waypoints) < 2 {
		return nil, efberr.ErrInsufficientWaypoints
	}
	if !finite(cruiseSpeedKts) || cruiseSpeedKts <= 0 || !finite(burnRateGPH) || burnRateGPH < 0 {
		return nil, efberr.ErrInvalidPerformance
	}
	for i, w := range waypoints {
		if !w.Coordinate.Valid() {
			return nil, efberr.New(efberr.InvalidInput, "route", fmt.Sprintf("waypoint %d (%s) has invalid coordinates", i, w.ICAO))
		}
	}

	plan := &model.RoutePlan{
		Waypoints:      slices.Clone(waypoints),
		Legs:           make([]model.Leg, 0, len(waypoints)-1),
		CruiseSpeedKts: cruiseSpeedKts,
		BurnRateGPH:    burnRateGPH,
	}
	for i := 1; i < len(waypoints); i++ {
		from, to := waypoints[i-1], waypoints[i]
		leg := model.Leg{
			From:       from.ICAO,
			To:         to.ICAO,
			DistanceNM: geodesy.DistanceNM(from.Coordinate, to.Coordinate),
			BearingDeg: geodesy.BearingDeg(from.Coordinate, to.Coordinate),
		}
		plan.Legs = append(plan.Legs, leg)
		plan.TotalDistanceNM += leg.DistanceNM
	}

	hours := plan.TotalDistanceNM / cruiseSpeedKts
	plan.EstimatedTime = time.Duration(hours * float64(time.Hour))
	plan.EstimatedFuelGal = hours * burnRateGPH
	return plan, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func outOfRange(op string, i, n int) error {
	return efberr.New(efberr.InvalidInput, "route: "+op, fmt.Sprintf("index %d out of range [0,%d]", i, n))
}

// InsertWaypoint returns a plan with a inserted before position i.
// i == len(Waypoints) appends.
func InsertWaypoint(p *model.RoutePlan, i int, a model.Airport) (*model.RoutePlan, error) {
	if i < 0 || i > len(p.Waypoints) {
		return nil, outOfRange("insert", i, len(p.Waypoints))
	}
	return BuildPlan(slices.Insert(slices.Clone(p.Waypoints), i, a), p.CruiseSpeedKts, p.BurnRateGPH)
}

// RemoveWaypoint returns a plan without the waypoint at i.
func RemoveWaypoint(p *model.RoutePlan, i int) (*model.RoutePlan, error) {
	if i < 0 || i >= len(p.Waypoints) {
		return nil, outOfRange("remove", i, len(p.Waypoints)-1)
	}
	return BuildPlan(slices.Delete(slices.Clone(p.Waypoints), i, i+1), p.CruiseSpeedKts, p.BurnRateGPH)
}

// MoveWaypoint returns a plan with the waypoint at from moved to index to.
func MoveWaypoint(p *model.RoutePlan, from, to int) (*model.RoutePlan, error) {
	n := len(p.Waypoints)
	if from < 0 || from >= n {
		return nil, outOfRange("move", from, n-1)
	}
	if to < 0 || to >= n {
		return nil, outOfRange("move", to, n-1)
	}
	w := slices.Clone(p.Waypoints)
	a := w[from]
	w = slices.Delete(w, from, from+1)
	w = slices.Insert(w, to, a)
	return BuildPlan(w, p.CruiseSpeedKts, p.BurnRateGPH)
}

// WithPerformance returns the same route recomputed for new performance
// figures.
func WithPerformance(p *model.RoutePlan, cruiseSpeedKts, burnRateGPH float64) (*model.RoutePlan, error) {
	return BuildPlan(p.Waypoints, cruiseSpeedKts, burnRateGPH)
}

// AirportLookup resolves identifiers, such as the persistent store.
type AirportLookup interface {
	GetAirport(ctx context.Context, icao string) (*model.Airport, error)
}

// Planner builds plans from airport identifiers.
type Planner struct {
	Airports AirportLookup
}

// Plan resolves each identifier and builds the plan. An unknown
// identifier fails with NotFound.
func (pl Planner) Plan(ctx context.Context, idents []string, cruiseSpeedKts, burnRateGPH float64) (*model.RoutePlan, error) {
	if len(idents) < 2 {
		return nil, efberr.ErrInsufficientWaypoints
	}
	waypoints := make([]model.Airport, 0, len(idents))
	for _, id := range idents {
		a, err := pl.Airports.GetAirport(ctx, model.NormalizeICAO(id))
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, *a)
	}
	return BuildPlan(waypoints, cruiseSpeedKts, burnRateGPH)
}
