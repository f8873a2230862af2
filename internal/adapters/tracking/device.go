// Package tracking implements the device tracking contract on top of
// per-frame pose reports from the device's AR+GPS fusion.
package tracking

import (
	"context"
	"errors"
	"sync"

	"github.com/lertxundi/anchorage/internal/core/domain"
	"github.com/lertxundi/anchorage/internal/core/ports"
	"github.com/lertxundi/anchorage/internal/pkg/geospatial"
)

// ErrNoPose is returned before the first frame with a camera pose arrives.
var ErrNoPose = errors.New("no camera pose observed yet")

// ErrDetached is returned when a pose matrix is requested from a detached
// anchor handle.
var ErrDetached = errors.New("anchor handle detached")

// Device implements ports.DeviceTracker for one session. It holds the last
// reported camera pose and hands out live anchor handles whose pose
// matrices are computed relative to the current camera position.
type Device struct {
	mu       sync.Mutex
	pose     *domain.CameraPose
	tracking bool
}

// NewDevice creates a tracker with no pose and tracking off.
func NewDevice() *Device {
	return &Device{}
}

// Observe records the camera pose and tracking state reported with the
// current frame. A nil pose clears nothing; the last known pose is kept for
// anchors already attached.
func (d *Device) Observe(pose *domain.CameraPose, tracking bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pose != nil {
		p := *pose
		d.pose = &p
	}
	d.tracking = tracking
}

// IsTracking reports whether the device said it is actively tracking.
func (d *Device) IsTracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracking && d.pose != nil
}

// CameraPose returns a copy of the last reported camera pose.
func (d *Device) CameraPose() (*domain.CameraPose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pose == nil {
		return nil, ErrNoPose
	}
	p := *d.pose
	return &p, nil
}

// CreateAnchor attaches a live anchor at the record's position and
// orientation. Fails when the device is not tracking.
func (d *Device) CreateAnchor(ctx context.Context, rec domain.AnchorRecord) (ports.AnchorHandle, error) {
	if !d.IsTracking() {
		return nil, ErrNoPose
	}
	return &anchor{dev: d, rec: rec}, nil
}

// anchor is a live handle tied to its device. Its pose matrix is
// recomputed from the current camera position on every request.
type anchor struct {
	dev *Device

	mu       sync.Mutex
	rec      domain.AnchorRecord
	detached bool
}

// Detach releases the handle. Detached handles keep their record but stop
// producing pose matrices.
func (a *anchor) Detach() {
	a.mu.Lock()
	a.detached = true
	a.mu.Unlock()
}

// PoseMatrix returns the column-major model matrix placing the anchor in
// the camera-relative east-up-south render frame: x east, y up, z south.
func (a *anchor) PoseMatrix() (domain.PoseMatrix, error) {
	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return domain.PoseMatrix{}, ErrDetached
	}
	rec := a.rec
	a.mu.Unlock()

	cam, err := a.dev.CameraPose()
	if err != nil {
		return domain.PoseMatrix{}, err
	}

	east, north := geospatial.ENUOffset(cam.Latitude, cam.Longitude, rec.Latitude, rec.Longitude)
	up := rec.Altitude - cam.Altitude

	m := rotationMatrix(rec.Orientation())
	// Translation column.
	m[12] = float32(east)
	m[13] = float32(up)
	m[14] = float32(-north)
	m[15] = 1
	return m, nil
}

// rotationMatrix expands a unit quaternion into the upper-left 3x3 block of
// a column-major 4x4 matrix.
func rotationMatrix(q domain.Quaternion) domain.PoseMatrix {
	x, y, z, w := q.X, q.Y, q.Z, q.W

	var m domain.PoseMatrix
	m[0] = 1 - 2*(y*y+z*z)
	m[1] = 2 * (x*y + z*w)
	m[2] = 2 * (x*z - y*w)

	m[4] = 2 * (x*y - z*w)
	m[5] = 1 - 2*(x*x+z*z)
	m[6] = 2 * (y*z + x*w)

	m[8] = 2 * (x*z + y*w)
	m[9] = 2 * (y*z - x*w)
	m[10] = 1 - 2*(x*x+y*y)

	return m
}
