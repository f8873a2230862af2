package tracking_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lertxundi/anchorage/internal/adapters/tracking"
	"github.com/lertxundi/anchorage/internal/core/domain"
)

func observedDevice(lat, lon, alt float64) *tracking.Device {
	d := tracking.NewDevice()
	d.Observe(&domain.CameraPose{Latitude: lat, Longitude: lon, Altitude: alt}, true)
	return d
}

func TestDevice_NotTrackingBeforeFirstFrame(t *testing.T) {
	d := tracking.NewDevice()
	if d.IsTracking() {
		t.Error("fresh device must not be tracking")
	}
	if _, err := d.CameraPose(); !errors.Is(err, tracking.ErrNoPose) {
		t.Errorf("expected ErrNoPose, got %v", err)
	}
	if _, err := d.CreateAnchor(context.Background(), domain.NewAnchorRecord(0, 0, 0)); err == nil {
		t.Error("anchor creation before the first frame must fail")
	}
}

func TestDevice_ObserveTogglesTracking(t *testing.T) {
	d := observedDevice(43.263, -2.935, 10)
	if !d.IsTracking() {
		t.Fatal("device should be tracking after an observed frame")
	}

	// Tracking lost but pose retained.
	d.Observe(nil, false)
	if d.IsTracking() {
		t.Error("device should not be tracking")
	}
	if _, err := d.CameraPose(); err != nil {
		t.Errorf("last pose must survive a tracking loss: %v", err)
	}
}

func TestAnchor_PoseMatrixTranslation(t *testing.T) {
	d := observedDevice(0, 0, 10)
	// Anchor ~11.1m north of the camera, 1m below it.
	h, err := d.CreateAnchor(context.Background(), domain.NewAnchorRecord(0.0001, 0, 9))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m, err := h.PoseMatrix()
	if err != nil {
		t.Fatalf("pose: %v", err)
	}

	if math.Abs(float64(m[12])) > 0.01 {
		t.Errorf("no east displacement expected, got %f", m[12])
	}
	if math.Abs(float64(m[13])+1) > 0.01 {
		t.Errorf("expected y (up) = -1, got %f", m[13])
	}
	// North maps to -z in the east-up-south frame.
	if m[14] > -11 || m[14] < -12 {
		t.Errorf("expected z ~ -11.1 for an anchor to the north, got %f", m[14])
	}
	if m[15] != 1 {
		t.Errorf("homogeneous w must be 1, got %f", m[15])
	}
}

func TestAnchor_PoseMatrixIdentityRotation(t *testing.T) {
	d := observedDevice(0, 0, 10)
	h, _ := d.CreateAnchor(context.Background(), domain.NewAnchorRecord(0, 0, 10))

	m, err := h.PoseMatrix()
	if err != nil {
		t.Fatalf("pose: %v", err)
	}

	// Identity orientation: rotation block is the identity.
	want := map[int]float32{0: 1, 5: 1, 10: 1}
	for i := 0; i < 12; i++ {
		expected := want[i]
		if m[i] != expected {
			t.Errorf("m[%d] = %f, want %f", i, m[i], expected)
		}
	}
}

func TestAnchor_PoseFollowsCamera(t *testing.T) {
	d := observedDevice(0, 0, 10)
	h, _ := d.CreateAnchor(context.Background(), domain.NewAnchorRecord(0.0001, 0, 10))

	first, _ := h.PoseMatrix()

	// Camera walks onto the anchor: translation collapses to zero.
	d.Observe(&domain.CameraPose{Latitude: 0.0001, Longitude: 0, Altitude: 10}, true)
	second, err := h.PoseMatrix()
	if err != nil {
		t.Fatalf("pose: %v", err)
	}

	if first[14] == second[14] {
		t.Error("pose matrix did not follow the camera")
	}
	if math.Abs(float64(second[14])) > 0.01 {
		t.Errorf("expected zero displacement after walking onto the anchor, got %f", second[14])
	}
}

func TestAnchor_DetachStopsPoses(t *testing.T) {
	d := observedDevice(0, 0, 10)
	h, _ := d.CreateAnchor(context.Background(), domain.NewAnchorRecord(0, 0, 10))

	h.Detach()
	if _, err := h.PoseMatrix(); !errors.Is(err, tracking.ErrDetached) {
		t.Errorf("expected ErrDetached, got %v", err)
	}
}
