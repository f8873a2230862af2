package geospatial_test

import (
	"math"
	"testing"

	"github.com/lertxundi/anchorage/internal/pkg/geospatial"
)

func TestHaversine_KnownDistance(t *testing.T) {
	// One thousandth of a degree of latitude is ~111.2 m at the equator.
	d := geospatial.Haversine(0, 0, 0.001, 0)
	if d < 110 || d > 112 {
		t.Errorf("expected ~111m, got %.2f", d)
	}
}

func TestHaversine_ZeroDistance(t *testing.T) {
	d := geospatial.Haversine(43.263, -2.935, 43.263, -2.935)
	if d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestHaversine_Symmetry(t *testing.T) {
	a := geospatial.Haversine(43.263, -2.935, 43.264, -2.934)
	b := geospatial.Haversine(43.264, -2.934, 43.263, -2.935)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestBoundingBox_ContainsCenterRing(t *testing.T) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(43.263, -2.935, 100)
	if minLat >= 43.263 || maxLat <= 43.263 {
		t.Errorf("latitude bounds do not bracket center: [%f, %f]", minLat, maxLat)
	}
	if minLon >= -2.935 || maxLon <= -2.935 {
		t.Errorf("longitude bounds do not bracket center: [%f, %f]", minLon, maxLon)
	}

	// A point 100m due north must sit inside the box.
	north := 43.263 + 100/111320.0
	if north > maxLat {
		t.Errorf("point 100m north escapes box: %f > %f", north, maxLat)
	}
}

func TestENUOffset_Signs(t *testing.T) {
	east, north := geospatial.ENUOffset(43.263, -2.935, 43.264, -2.934)
	if east <= 0 {
		t.Errorf("target east of origin must give positive east, got %f", east)
	}
	if north <= 0 {
		t.Errorf("target north of origin must give positive north, got %f", north)
	}

	east, north = geospatial.ENUOffset(43.263, -2.935, 43.262, -2.936)
	if east >= 0 || north >= 0 {
		t.Errorf("southwest target must give negative offsets, got %f, %f", east, north)
	}
}

func TestENUOffset_MatchesHaversineNorth(t *testing.T) {
	// Due-north displacement: ENU north component should agree with the
	// great-circle distance to well under a meter at this range.
	_, north := geospatial.ENUOffset(43.263, -2.935, 43.2635, -2.935)
	d := geospatial.Haversine(43.263, -2.935, 43.2635, -2.935)
	if math.Abs(north-d) > 0.5 {
		t.Errorf("north offset %f deviates from haversine %f", north, d)
	}
}
