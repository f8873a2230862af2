package domain

import (
	"time"
)

// SlotCount is the fixed number of anchor slots a session owns. Slots are
// cycled round-robin: the oldest anchor is replaced when all slots are taken.
const SlotCount = 3

// AnchorRecord is the persisted form of a geospatial anchor: a WGS 84
// position plus an orientation quaternion. Anchors placed interactively
// carry the identity orientation; restored anchors keep whatever was stored.
type AnchorRecord struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	QX        float32 `json:"qx"`
	QY        float32 `json:"qy"`
	QZ        float32 `json:"qz"`
	QW        float32 `json:"qw"`
}

// NewAnchorRecord builds a record at the given position with the identity
// orientation.
func NewAnchorRecord(lat, lon, alt float64) AnchorRecord {
	return AnchorRecord{Latitude: lat, Longitude: lon, Altitude: alt, QW: 1}
}

// Location returns the record's position as a GeoPoint.
func (r AnchorRecord) Location() GeoPoint {
	return GeoPoint{Lat: r.Latitude, Lon: r.Longitude}
}

// Orientation returns the record's quaternion.
func (r AnchorRecord) Orientation() Quaternion {
	return Quaternion{X: r.QX, Y: r.QY, Z: r.QZ, W: r.QW}
}

// Quaternion is a unit rotation quaternion.
type Quaternion struct {
	X float32 `json:"qx"`
	Y float32 `json:"qy"`
	Z float32 `json:"qz"`
	W float32 `json:"qw"`
}

// IdentityQuaternion returns the no-rotation quaternion {0,0,0,1}.
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// CameraPose is the device camera's geospatial pose for one frame, as
// reported by the device's AR+GPS fusion.
type CameraPose struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
	Heading   float64 `json:"heading"` // degrees clockwise from true north
}

// PoseMatrix is a column-major 4x4 model matrix positioning an anchor in
// the camera-relative east-up-south render frame.
type PoseMatrix [16]float32

// AnchorStatus is a read-only snapshot of one slot.
type AnchorStatus struct {
	Slot     int          `json:"slot"`
	Record   AnchorRecord `json:"record"`
	Near     bool         `json:"near"`
	Distance float64      `json:"distance_m"`
}

// StoredAnchor is an anchor record as it sits in durable storage, with its
// owning session and slot key.
type StoredAnchor struct {
	SessionID string       `json:"session_id"`
	Slot      int          `json:"slot"`
	Record    AnchorRecord `json:"record"`
	Distance  *float64     `json:"distance_m,omitempty"` // computed field
	UpdatedAt time.Time    `json:"updated_at"`
}

// SlotState is the per-slot outcome of one frame.
type SlotState struct {
	Occupied bool    `json:"occupied"`
	Near     bool    `json:"near"`
	Distance float64 `json:"distance_m"`
}

// DrawCommand tells the device renderer to draw one anchor marker.
type DrawCommand struct {
	Slot int        `json:"slot"`
	Pose PoseMatrix `json:"pose"`
}

// FrameResult is returned for every processed frame: the recomputed
// near-flags plus the draw list for anchors inside the proximity gate.
type FrameResult struct {
	Slots [SlotCount]SlotState `json:"slots"`
	Draws []DrawCommand        `json:"draws"`
}

// Session is one device app launch. Sessions never share anchors; each
// owns exactly SlotCount slots in its own storage namespace.
type Session struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
