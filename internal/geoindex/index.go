// Package geoindex answers nearest-airport and radius queries over the
// airport table.
//
// Two strategies sit behind the same API: a linear scan and a 1 degree
// grid prefiltered with go-geom bounds. Results are identical; the grid
// only narrows the candidate set.
package geoindex

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vanboompow/efb-212-sub001/internal/efberr"
	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

const (
	StrategyScan = "scan"
	StrategyGrid = "grid"
)

// Options selects the strategy. Default grid.
type Options struct {
	Strategy string
}

// Stats describes the last build.
type Stats struct {
	Strategy string `json:"strategy"`
	Indexed  int    `json:"indexed"`
	Skipped  int    `json:"skipped"`
}

// Match is an airport with its distance and bearing from the query point.
type Match struct {
	Airport    model.Airport `json:"airport"`
	DistanceNM float64       `json:"distance_nm"`
	BearingDeg float64       `json:"bearing_deg"`
}

// strategy narrows the airports that could lie within radiusNM of p. The
// returned indexes are a superset of the true answer.
type strategy interface {
	candidates(p geodesy.Coordinate, radiusNM float64) []int
}

// Index is an immutable spatial index. Safe for concurrent use.
type Index struct {
	airports []model.Airport
	strat    strategy
	stats    Stats
}

// Source lists every airport, such as the persistent store.
type Source interface {
	ListAirports(ctx context.Context) ([]model.Airport, error)
}

// Load builds an index from src.
func Load(ctx context.Context, src Source, opts Options) (*Index, error) {
	airports, err := src.ListAirports(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "geoindex: list airports")
	}
	return New(airports, opts)
}

// New builds an index. Rows without an identifier or with invalid
// coordinates, and repeated identifiers, are skipped and counted.
func New(airports []model.Airport, opts Options) (*Index, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyGrid
	}

	kept := make([]model.Airport, 0, len(airports))
	seen := make(map[string]bool, len(airports))
	skipped := 0
	for _, a := range airports {
		a.ICAO = model.NormalizeICAO(a.ICAO)
		if !a.Usable() || seen[a.ICAO] {
			skipped++
			continue
		}
		seen[a.ICAO] = true
		kept = append(kept, a)
	}

	idx := &Index{
		airports: kept,
		stats:    Stats{Strategy: opts.Strategy, Indexed: len(kept), Skipped: skipped},
	}
	switch opts.Strategy {
	case StrategyScan:
		idx.strat = scan{n: len(kept)}
	case StrategyGrid:
		idx.strat = newGrid(kept)
	default:
		return nil, efberr.New(efberr.InvalidInput, "geoindex", "unknown strategy "+strconv.Quote(opts.Strategy))
	}

	if skipped > 0 {
		zap.L().Info("geoindex: skipped unusable rows", zap.Int("skipped", skipped), zap.Int("indexed", len(kept)))
	}
	return idx, nil
}

// Stats reports build counters.
func (idx *Index) Stats() Stats {
	return idx.stats
}

// Len returns the number of indexed airports.
func (idx *Index) Len() int {
	return len(idx.airports)
}

func validPoint(p geodesy.Coordinate) error {
	if !p.Valid() {
		return efberr.New(efberr.InvalidInput, "geoindex", "invalid query point")
	}
	return nil
}

// Within returns every airport no farther than radiusNM from p, nearest
// first with ties broken by identifier.
func (idx *Index) Within(p geodesy.Coordinate, radiusNM float64) ([]model.Airport, error) {
	matches, err := idx.WithinWithDistance(p, radiusNM)
	if err != nil {
		return nil, err
	}
	return airportsOf(matches), nil
}

// WithinWithDistance is Within with distance and bearing attached.
func (idx *Index) WithinWithDistance(p geodesy.Coordinate, radiusNM float64) ([]Match, error) {
	if err := validPoint(p); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusNM) || radiusNM < 0 {
		return nil, efberr.New(efberr.InvalidInput, "geoindex", "radius must be non-negative")
	}
	return idx.collect(p, radiusNM, idx.strat.candidates(p, radiusNM)), nil
}

// Nearest returns up to count airports ordered by distance from p, ties
// broken by identifier.
func (idx *Index) Nearest(p geodesy.Coordinate, count int) ([]model.Airport, error) {
	matches, err := idx.NearestWithDistance(p, count)
	if err != nil {
		return nil, err
	}
	return airportsOf(matches), nil
}

// NearestWithDistance is Nearest with distance and bearing attached.
func (idx *Index) NearestWithDistance(p geodesy.Coordinate, count int) ([]Match, error) {
	if err := validPoint(p); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, efberr.New(efberr.InvalidInput, "geoindex", "count must be positive")
	}
	if count > len(idx.airports) {
		count = len(idx.airports)
	}
	if count == 0 {
		return []Match{}, nil
	}

	// Grow the search radius until it holds count airports. Every airport
	// closer than the count-th match is inside that radius, so the answer
	// is exact.
	for radius := 25.0; radius < maxRadiusNM; radius *= 2 {
		matches := idx.collect(p, radius, idx.strat.candidates(p, radius))
		if len(matches) >= count {
			return matches[:count], nil
		}
	}
	all := idx.collect(p, math.Inf(1), scan{n: len(idx.airports)}.candidates(p, 0))
	return all[:count], nil
}

// maxRadiusNM is half the earth's circumference; any larger radius covers
// everything.
var maxRadiusNM = math.Pi * geodesy.MetersToNM(geodesy.EarthRadiusMeters)

func (idx *Index) collect(p geodesy.Coordinate, radiusNM float64, cand []int) []Match {
	out := make([]Match, 0, len(cand))
	for _, i := range cand {
		a := idx.airports[i]
		d := geodesy.DistanceNM(p, a.Coordinate)
		if d > radiusNM {
			continue
		}
		out = append(out, Match{Airport: a, DistanceNM: d, BearingDeg: geodesy.BearingDeg(p, a.Coordinate)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceNM != out[j].DistanceNM {
			return out[i].DistanceNM < out[j].DistanceNM
		}
		return out[i].Airport.ICAO < out[j].Airport.ICAO
	})
	return out
}

func airportsOf(matches []Match) []model.Airport {
	out := make([]model.Airport, len(matches))
	for i, m := range matches {
		out[i] = m.Airport
	}
	return out
}

// scan considers every airport.
type scan struct{ n int }

func (s scan) candidates(geodesy.Coordinate, float64) []int {
	out := make([]int, s.n)
	for i := range out {
		out[i] = i
	}
	return out
}
