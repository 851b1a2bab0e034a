// Package cluster groups map markers into grid cells for the current
// viewport. Everything here is pure and safe for concurrent use.
package cluster

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

// Kind tells a lone marker from a grouped one.
type Kind string

const (
	KindSingle  Kind = "single"
	KindCluster Kind = "cluster"
)

// MaxClusterZoom is the zoom level from which every point is shown on its own.
const MaxClusterZoom = 14.5

// maxMercatorLat keeps projections finite near the poles.
const maxMercatorLat = 85.05112878

// Point is one marker to cluster, carrying its payload.
type Point[T any] struct {
	Geo   domain.Geo
	Value T
}

// Viewport is the visible map region as a center and a span in degrees.
type Viewport struct {
	Center  domain.Geo `json:"center"`
	SpanLat float64    `json:"span_lat"`
	SpanLon float64    `json:"span_lon"`
}

// Zoom derives a zoom level from the longitude span: log2(360 / spanLon).
// A non-positive span is treated as fully zoomed in.
func (v Viewport) Zoom() float64 {
	if !(v.SpanLon > 0) {
		return math.Inf(1)
	}
	return math.Log2(360 / v.SpanLon)
}

// Item is one marker to draw: a single point or a cluster of Count points
// positioned at their centroid. Representative is the first member.
type Item[T any] struct {
	Kind           Kind       `json:"kind"`
	Geo            domain.Geo `json:"geo"`
	Count          int        `json:"count"`
	Representative T          `json:"representative"`
}

// GridSize returns the grid cell edge in projected meters for a zoom level.
// Cells shrink as the view gets closer.
func GridSize(zoom float64) float64 {
	switch {
	case zoom < 5:
		return 150_000
	case zoom < 7:
		return 50_000
	case zoom < 9:
		return 12_000
	case zoom < 11:
		return 3_000
	case zoom < 13:
		return 800
	default:
		return 250
	}
}

type cellKey struct{ x, y int64 }

// Cluster buckets points into grid cells anchored at the viewport's
// south-west corner. Items come out in the order their first member appears
// in points, so identical input always yields identical output.
func Cluster[T any](points []Point[T], vp Viewport) []Item[T] {
	if len(points) == 0 {
		return nil
	}
	zoom := vp.Zoom()
	if zoom >= MaxClusterZoom || math.IsNaN(zoom) {
		return singles(points)
	}

	grid := GridSize(zoom)
	origin := mercator(domain.Geo{
		Lat: vp.Center.Lat - vp.SpanLat/2,
		Lon: vp.Center.Lon - vp.SpanLon/2,
	})

	var order []cellKey
	buckets := make(map[cellKey][]Point[T])
	for _, p := range points {
		xy := mercator(p.Geo)
		key := cellKey{
			x: int64(math.Floor((xy.X() - origin.X()) / grid)),
			y: int64(math.Floor((xy.Y() - origin.Y()) / grid)),
		}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], p)
	}

	items := make([]Item[T], 0, len(order))
	for _, key := range order {
		items = append(items, collapse(buckets[key]))
	}
	return items
}

func singles[T any](points []Point[T]) []Item[T] {
	items := make([]Item[T], len(points))
	for i, p := range points {
		items[i] = Item[T]{Kind: KindSingle, Geo: p.Geo, Count: 1, Representative: p.Value}
	}
	return items
}

func collapse[T any](members []Point[T]) Item[T] {
	if len(members) == 1 {
		p := members[0]
		return Item[T]{Kind: KindSingle, Geo: p.Geo, Count: 1, Representative: p.Value}
	}
	var lat, lon float64
	for _, m := range members {
		lat += m.Geo.Lat
		lon += m.Geo.Lon
	}
	n := float64(len(members))
	return Item[T]{
		Kind:           KindCluster,
		Geo:            domain.Geo{Lat: lat / n, Lon: lon / n},
		Count:          len(members),
		Representative: members[0].Value,
	}
}

func mercator(g domain.Geo) orb.Point {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, g.Lat))
	return project.WGS84.ToMercator(orb.Point{g.Lon, lat})
}

// Points turns plottable records into cluster input, skipping records
// without a position.
func Points(records []domain.Plottable) []Point[domain.Plottable] {
	out := make([]Point[domain.Plottable], 0, len(records))
	for _, r := range records {
		if g, ok := r.Position(); ok {
			out = append(out, Point[domain.Plottable]{Geo: g, Value: r})
		}
	}
	return out
}
