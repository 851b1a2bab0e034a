package cluster

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

var rio = domain.Geo{Lat: -22.9068, Lon: -43.1729}

// viewportAt returns a viewport centred on rio at the given zoom.
func viewportAt(zoom float64) Viewport {
	span := 360 / math.Pow(2, zoom)
	return Viewport{Center: rio, SpanLat: span / 2, SpanLon: span}
}

// cellPoint returns the WGS-84 point offset (dx, dy) meters from the centre
// of the grid cell containing rio.
func cellPoint(vp Viewport, dx, dy float64) domain.Geo {
	grid := GridSize(vp.Zoom())
	origin := mercator(domain.Geo{Lat: vp.Center.Lat - vp.SpanLat/2, Lon: vp.Center.Lon - vp.SpanLon/2})
	c := mercator(rio)
	cx := origin.X() + (math.Floor((c.X()-origin.X())/grid)+0.5)*grid
	cy := origin.Y() + (math.Floor((c.Y()-origin.Y())/grid)+0.5)*grid
	p := project.Mercator.ToWGS84(orb.Point{cx + dx, cy + dy})
	return domain.Geo{Lat: p.Lat(), Lon: p.Lon()}
}

func TestViewport_Zoom(t *testing.T) {
	assert.InDelta(t, 0.0, Viewport{SpanLon: 360}.Zoom(), 1e-9)
	assert.InDelta(t, 10.0, Viewport{SpanLon: 360.0 / 1024}.Zoom(), 1e-9)
	assert.True(t, math.IsInf(Viewport{}.Zoom(), 1))
	assert.True(t, math.IsInf(Viewport{SpanLon: -1}.Zoom(), 1))
}

func TestGridSize_ShrinksWithZoom(t *testing.T) {
	prev := math.Inf(1)
	bands := 0
	for z := 0.0; z < MaxClusterZoom; z += 0.5 {
		g := GridSize(z)
		require.LessOrEqual(t, g, prev, "zoom %.1f", z)
		if g < prev {
			bands++
		}
		prev = g
	}
	assert.GreaterOrEqual(t, bands, 5)
}

func TestCluster_Empty(t *testing.T) {
	assert.Empty(t, Cluster[string](nil, viewportAt(10)))
}

func TestCluster_ZoomedInReturnsSingles(t *testing.T) {
	vp := viewportAt(15)
	points := []Point[string]{
		{Geo: rio, Value: "a"},
		{Geo: rio, Value: "b"},
		{Geo: domain.Geo{Lat: rio.Lat + 0.0001, Lon: rio.Lon}, Value: "c"},
	}

	items := Cluster(points, vp)

	require.Len(t, items, len(points))
	for i, item := range items {
		assert.Equal(t, KindSingle, item.Kind)
		assert.Equal(t, 1, item.Count)
		assert.Equal(t, points[i].Geo, item.Geo)
		assert.Equal(t, points[i].Value, item.Representative)
	}
}

func TestCluster_InvalidViewportReturnsSingles(t *testing.T) {
	points := []Point[int]{{Geo: rio, Value: 1}, {Geo: rio, Value: 2}}
	items := Cluster(points, Viewport{Center: rio})
	assert.Len(t, items, 2)
}

func TestCluster_GroupsWithinCell(t *testing.T) {
	vp := viewportAt(10)
	a := cellPoint(vp, -300, 200)
	b := cellPoint(vp, 100, -400)
	c := cellPoint(vp, 250, 350)
	far := domain.Geo{Lat: rio.Lat - 0.5, Lon: rio.Lon + 0.5}

	points := []Point[string]{
		{Geo: a, Value: "a"},
		{Geo: far, Value: "far"},
		{Geo: b, Value: "b"},
		{Geo: c, Value: "c"},
	}

	items := Cluster(points, vp)

	want := []Item[string]{
		{
			Kind:           KindCluster,
			Geo:            domain.Geo{Lat: (a.Lat + b.Lat + c.Lat) / 3, Lon: (a.Lon + b.Lon + c.Lon) / 3},
			Count:          3,
			Representative: "a",
		},
		{Kind: KindSingle, Geo: far, Count: 1, Representative: "far"},
	}
	if diff := cmp.Diff(want, items, cmp.Comparer(func(x, y float64) bool {
		return math.Abs(x-y) < 1e-9
	})); diff != "" {
		t.Errorf("Cluster() mismatch (-want +got):\n%s", diff)
	}
}

func TestCluster_Idempotent(t *testing.T) {
	vp := viewportAt(8)
	var points []Point[int]
	for i := range 200 {
		points = append(points, Point[int]{
			Geo:   domain.Geo{Lat: rio.Lat + float64(i%17)*0.013, Lon: rio.Lon + float64(i%23)*0.011},
			Value: i,
		})
	}

	first := Cluster(points, vp)
	second := Cluster(points, vp)
	assert.Empty(t, cmp.Diff(first, second))

	total := 0
	for _, item := range first {
		total += item.Count
	}
	assert.Equal(t, len(points), total, "every point lands in exactly one item")
}

func TestCluster_CoarserGridMergesMore(t *testing.T) {
	var points []Point[int]
	for i := range 50 {
		points = append(points, Point[int]{
			Geo:   domain.Geo{Lat: rio.Lat + float64(i)*0.01, Lon: rio.Lon + float64(i)*0.01},
			Value: i,
		})
	}
	near := Cluster(points, viewportAt(12))
	far := Cluster(points, viewportAt(4))
	assert.Less(t, len(far), len(near))
}

func TestCluster_PolarLatitudeStaysFinite(t *testing.T) {
	points := []Point[int]{{Geo: domain.Geo{Lat: 89.9, Lon: 10}, Value: 1}, {Geo: domain.Geo{Lat: 90, Lon: 10}, Value: 2}}
	items := Cluster(points, Viewport{Center: domain.Geo{Lat: 80, Lon: 10}, SpanLat: 10, SpanLon: 20})
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Count)
}

type marker struct {
	name string
	geo  *domain.Geo
}

func (marker) Shape() domain.Shape { return domain.ShapeCamera }

func (m marker) Position() (domain.Geo, bool) {
	if m.geo == nil {
		return domain.Geo{}, false
	}
	return *m.geo, true
}

func TestPoints_SkipsUnplottable(t *testing.T) {
	recs := []domain.Plottable{
		marker{name: "a", geo: &rio},
		marker{name: "b"},
	}
	points := Points(recs)
	require.Len(t, points, 1)
	assert.Equal(t, rio, points[0].Geo)
}
