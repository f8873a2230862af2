package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/lertxundi/anchorage/internal/core/domain"
)

func TestAnchorRecord_JSONRoundTrip(t *testing.T) {
	orig := domain.AnchorRecord{
		Latitude:  43.263012,
		Longitude: -2.935103,
		Altitude:  107.5,
		QX:        0.1,
		QY:        -0.2,
		QZ:        0.3,
		QW:        0.927,
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatal(err)
	}

	var got domain.AnchorRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got != orig {
		t.Errorf("round trip mismatch:\n  got  %+v\n  want %+v", got, orig)
	}
}

func TestNewAnchorRecord_IdentityOrientation(t *testing.T) {
	rec := domain.NewAnchorRecord(43.26, -2.93, 10)

	if rec.Orientation() != domain.IdentityQuaternion() {
		t.Errorf("expected identity orientation, got %+v", rec.Orientation())
	}
	if rec.Location() != (domain.GeoPoint{Lat: 43.26, Lon: -2.93}) {
		t.Errorf("unexpected location: %+v", rec.Location())
	}
}

func TestBounds_Contains(t *testing.T) {
	b := domain.Bounds{MinLat: 43.0, MinLon: -3.0, MaxLat: 43.5, MaxLon: -2.5}

	if !b.Contains(domain.GeoPoint{Lat: 43.26, Lon: -2.93}) {
		t.Error("expected point inside bounds")
	}
	if b.Contains(domain.GeoPoint{Lat: 44.0, Lon: -2.93}) {
		t.Error("expected point outside bounds")
	}
}
