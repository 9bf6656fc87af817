package geoindex

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/vanboompow/efb-212-sub001/internal/geodesy"
	"github.com/vanboompow/efb-212-sub001/internal/model"
)

type cell struct{ lat, lon int }

// grid buckets airports into 1 degree cells.
type grid struct {
	n      int
	cells  map[cell][]int
	coords []geom.Coord
}

func newGrid(airports []model.Airport) *grid {
	g := &grid{
		n:      len(airports),
		cells:  make(map[cell][]int),
		coords: make([]geom.Coord, len(airports)),
	}
	for i, a := range airports {
		g.coords[i] = geom.Coord{a.Coordinate.Lon, a.Coordinate.Lat}
		c := cellOf(a.Coordinate.Lat, a.Coordinate.Lon)
		g.cells[c] = append(g.cells[c], i)
	}
	return g
}

func cellOf(lat, lon float64) cell {
	return cell{lat: int(math.Floor(lat)), lon: int(math.Floor(lon))}
}

// searchBounds returns the lon/lat box enclosing the radius around p, or
// nil when the box would cross a pole or the antimeridian.
func searchBounds(p geodesy.Coordinate, radiusNM float64) *geom.Bounds {
	// Pad slightly so points exactly on the radius survive rounding.
	r := radiusNM*1.001 + 1e-6
	delta := geodesy.NMToMeters(r) / geodesy.EarthRadiusMeters
	latRad := p.Lat * math.Pi / 180
	if delta >= math.Pi/2-math.Abs(latRad) {
		return nil
	}
	north := geodesy.Destination(p, 0, r)
	south := geodesy.Destination(p, 180, r)
	// The widest longitude of the circle is not on the 090 radial.
	dLon := math.Asin(math.Sin(delta)/math.Cos(latRad)) * 180 / math.Pi

	minLon, maxLon := p.Lon-dLon, p.Lon+dLon
	if minLon < -180 || maxLon > 180 {
		return nil
	}
	return geom.NewBounds(geom.XY).Set(minLon, south.Lat, maxLon, north.Lat)
}

func (g *grid) candidates(p geodesy.Coordinate, radiusNM float64) []int {
	b := searchBounds(p, radiusNM)
	if b == nil {
		return scan{n: g.n}.candidates(p, radiusNM)
	}

	lo := cellOf(b.Min(1), b.Min(0))
	hi := cellOf(b.Max(1), b.Max(0))
	var out []int
	for lat := lo.lat; lat <= hi.lat; lat++ {
		for lon := lo.lon; lon <= hi.lon; lon++ {
			for _, i := range g.cells[cell{lat, lon}] {
				if b.OverlapsPoint(geom.XY, g.coords[i]) {
					out = append(out, i)
				}
			}
		}
	}
	return out
}
