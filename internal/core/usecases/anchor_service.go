package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lertxundi/anchorage/internal/core/domain"
	"github.com/lertxundi/anchorage/internal/core/ports"
	"github.com/lertxundi/anchorage/internal/pkg/geospatial"
)

// NearDistanceMeters is the proximity gate: an anchor's marker is drawn only
// while the camera is within this great-circle distance of it. The flag is
// recomputed unconditionally every frame, so an anchor sitting exactly on
// the boundary may flicker near/far.
const NearDistanceMeters = 15.0

// ErrNotTracking is returned when a frame arrives while the device tracker
// has no usable camera pose. The frame is skipped; the client surfaces the
// error to the user.
var ErrNotTracking = errors.New("tracking unavailable")

type anchorSlot struct {
	handle   ports.AnchorHandle
	record   *domain.AnchorRecord
	near     bool
	distance float64
}

// AnchorService owns one session's fixed ring of anchor slots and the
// round-robin cursor. Slots are only ever overwritten, never cleared: a
// placement at an occupied slot detaches the old handle and replaces it.
type AnchorService struct {
	mu        sync.Mutex
	sessionID string
	store     ports.AnchorStore // nil when storage is degraded
	tracker   ports.Tracker
	markers   ports.MarkerView
	events    ports.EventPublisher

	slots    [domain.SlotCount]anchorSlot
	cursor   int
	restored bool
}

// NewAnchorService creates the anchor manager for one session. store,
// markers, and events may be nil; the service then runs degraded
// (non-persisting, silent) rather than failing.
func NewAnchorService(sessionID string, store ports.AnchorStore, tracker ports.Tracker, markers ports.MarkerView, events ports.EventPublisher) *AnchorService {
	return &AnchorService{
		sessionID: sessionID,
		store:     store,
		tracker:   tracker,
		markers:   markers,
		events:    events,
	}
}

// PlaceNew places a fresh anchor at the tapped coordinates. The record is
// derived from the current camera pose: anchor altitude is camera altitude
// minus one meter, orientation is identity. Returns (false, nil) without
// touching slots or storage when the tracker is not tracking; that is a
// deliberate no-op, not a failure.
func (s *AnchorService) PlaceNew(ctx context.Context, pt domain.GeoPoint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracker.IsTracking() {
		return false, nil
	}
	pose, err := s.tracker.CameraPose()
	if err != nil {
		return false, nil
	}

	rec := domain.NewAnchorRecord(pt.Lat, pt.Lon, pose.Altitude-1)
	if err := s.placeLocked(ctx, rec, true); err != nil {
		return false, err
	}
	return true, nil
}

// PlaceRestored re-attaches a previously persisted record verbatim. The
// restore path never re-persists, so re-running it with the same stored
// data leaves storage untouched.
func (s *AnchorService) PlaceRestored(ctx context.Context, rec domain.AnchorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placeLocked(ctx, rec, false)
}

// placeLocked runs one placement at the cursor slot and advances the cursor.
// Caller holds s.mu.
func (s *AnchorService) placeLocked(ctx context.Context, rec domain.AnchorRecord, persist bool) error {
	if !s.tracker.IsTracking() {
		return nil
	}

	i := s.cursor
	if s.slots[i].handle != nil {
		s.slots[i].handle.Detach()
	}

	h, err := s.tracker.CreateAnchor(ctx, rec)
	if err != nil {
		// The old handle is already detached; leave the slot without one.
		s.slots[i].handle = nil
		return fmt.Errorf("create anchor: %w", err)
	}

	rc := rec
	s.slots[i] = anchorSlot{handle: h, record: &rc}

	if persist {
		if s.store == nil {
			if s.markers != nil {
				s.markers.ShowError(s.sessionID, "storage unavailable, anchor will not survive restart")
			}
		} else if err := s.store.Save(ctx, i, rec); err != nil {
			slog.Warn("anchor record not persisted",
				"session", s.sessionID, "slot", i, "error", err)
			if s.markers != nil {
				s.markers.ShowError(s.sessionID, "anchor will not survive restart")
			}
		}
	}

	if s.markers != nil {
		s.markers.UpdateMarker(s.sessionID, i, rec)
	}
	if s.events != nil {
		_ = s.events.PublishAnchorPlaced(ctx, s.sessionID, i, rec, !persist)
	}

	s.cursor = (i + 1) % domain.SlotCount
	return nil
}

// restoreLocked replays persisted records into live anchors, once per
// session. Slots with no saved record still advance the cursor so stored
// slot indices stay aligned with the ring. Caller holds s.mu.
func (s *AnchorService) restoreLocked(ctx context.Context) {
	if s.restored {
		return
	}
	s.restored = true

	if s.store == nil {
		return
	}

	n := 0
	for i := 0; i < domain.SlotCount; i++ {
		rec, err := s.store.Load(ctx, i)
		if err != nil {
			slog.Warn("anchor record unreadable", "session", s.sessionID, "slot", i, "error", err)
			rec = nil
		}
		if rec == nil {
			s.cursor = (s.cursor + 1) % domain.SlotCount
			continue
		}
		if err := s.placeLocked(ctx, *rec, false); err != nil {
			slog.Warn("anchor restore failed", "session", s.sessionID, "slot", i, "error", err)
			continue
		}
		n++
	}

	if n > 0 && s.markers != nil {
		s.markers.ShowStatus(s.sessionID, fmt.Sprintf("restored %d saved anchor(s)", n))
	}
}

// Frame processes one render frame: restores saved anchors on the first
// frame with a usable camera pose, then recomputes the proximity gate for
// every occupied slot and builds the draw list for anchors inside it.
// Returns ErrNotTracking when the frame must be skipped.
func (s *AnchorService) Frame(ctx context.Context) (domain.FrameResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res domain.FrameResult

	if !s.tracker.IsTracking() {
		return res, ErrNotTracking
	}
	pose, err := s.tracker.CameraPose()
	if err != nil {
		return res, ErrNotTracking
	}

	if !s.restored {
		s.restoreLocked(ctx)
	}

	for i := range s.slots {
		sl := &s.slots[i]
		if sl.record == nil {
			continue
		}

		d := geospatial.Haversine(pose.Latitude, pose.Longitude, sl.record.Latitude, sl.record.Longitude)
		wasNear := sl.near
		sl.near = d <= NearDistanceMeters
		sl.distance = d
		res.Slots[i] = domain.SlotState{Occupied: true, Near: sl.near, Distance: d}

		if sl.near != wasNear && s.events != nil {
			_ = s.events.PublishProximity(ctx, s.sessionID, i, sl.near, d)
		}

		if sl.near && sl.handle != nil {
			m, err := sl.handle.PoseMatrix()
			if err != nil {
				slog.Warn("pose matrix unavailable", "session", s.sessionID, "slot", i, "error", err)
				continue
			}
			res.Draws = append(res.Draws, domain.DrawCommand{Slot: i, Pose: m})
		}
	}

	return res, nil
}

// Snapshot returns the occupied slots with their current near-flags and
// last computed distances.
func (s *AnchorService) Snapshot() []domain.AnchorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AnchorStatus
	for i := range s.slots {
		sl := s.slots[i]
		if sl.record == nil {
			continue
		}
		out = append(out, domain.AnchorStatus{
			Slot:     i,
			Record:   *sl.record,
			Near:     sl.near,
			Distance: sl.distance,
		})
	}
	return out
}
