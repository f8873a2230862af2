package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lertxundi/anchorage/internal/core/domain"
	"github.com/lertxundi/anchorage/internal/core/ports"
	"github.com/lertxundi/anchorage/internal/core/usecases"
)

// --- Mock tracker ---

type mockHandle struct {
	detached bool
	poseErr  error
}

func (h *mockHandle) Detach() { h.detached = true }

func (h *mockHandle) PoseMatrix() (domain.PoseMatrix, error) {
	if h.poseErr != nil {
		return domain.PoseMatrix{}, h.poseErr
	}
	return domain.PoseMatrix{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, nil
}

type mockTracker struct {
	tracking  bool
	pose      *domain.CameraPose
	createErr error
	handles   []*mockHandle
}

func (t *mockTracker) IsTracking() bool { return t.tracking }

func (t *mockTracker) CameraPose() (*domain.CameraPose, error) {
	if t.pose == nil {
		return nil, errors.New("no pose yet")
	}
	p := *t.pose
	return &p, nil
}

func (t *mockTracker) CreateAnchor(ctx context.Context, rec domain.AnchorRecord) (ports.AnchorHandle, error) {
	if t.createErr != nil {
		return nil, t.createErr
	}
	h := &mockHandle{}
	t.handles = append(t.handles, h)
	return h, nil
}

// --- Mock store ---

type memStore struct {
	records map[int]domain.AnchorRecord
	saves   []int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int]domain.AnchorRecord)}
}

func (s *memStore) Save(ctx context.Context, slot int, rec domain.AnchorRecord) error {
	s.records[slot] = rec
	s.saves = append(s.saves, slot)
	return nil
}

func (s *memStore) Load(ctx context.Context, slot int) (*domain.AnchorRecord, error) {
	rec, ok := s.records[slot]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// --- Mock marker view ---

type mockMarkers struct {
	markers  []int
	statuses []string
	errs     []string
}

func (m *mockMarkers) UpdateMarker(sessionID string, slot int, rec domain.AnchorRecord) {
	m.markers = append(m.markers, slot)
}
func (m *mockMarkers) ShowStatus(sessionID, text string) { m.statuses = append(m.statuses, text) }
func (m *mockMarkers) ShowError(sessionID, msg string)   { m.errs = append(m.errs, msg) }

func trackingAt(lat, lon, alt float64) *mockTracker {
	return &mockTracker{
		tracking: true,
		pose:     &domain.CameraPose{Latitude: lat, Longitude: lon, Altitude: alt},
	}
}

// --- Tests ---

func TestAnchorService_RoundRobinWraparound(t *testing.T) {
	tracker := trackingAt(0, 0, 10)
	store := newMemStore()
	svc := usecases.NewAnchorService("s1", store, tracker, nil, nil)

	for i := 0; i < 4; i++ {
		ok, err := svc.PlaceNew(context.Background(), domain.GeoPoint{Lat: 0, Lon: float64(i) * 0.0001})
		if err != nil {
			t.Fatalf("placement %d: unexpected error: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("placement %d: expected ok", i+1)
		}
	}

	if len(tracker.handles) != 4 {
		t.Fatalf("expected 4 live handles created, got %d", len(tracker.handles))
	}
	// The 4th placement wraps to slot 0 and must detach the 1st handle only.
	if !tracker.handles[0].detached {
		t.Error("4th placement did not detach the 1st handle")
	}
	for i := 1; i < 4; i++ {
		if tracker.handles[i].detached {
			t.Errorf("handle %d unexpectedly detached", i)
		}
	}
	// Slot 0 now holds the 4th record.
	snap := svc.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 occupied slots, got %d", len(snap))
	}
	if snap[0].Record.Longitude != 0.0003 {
		t.Errorf("slot 0 should hold the 4th record, got lon %f", snap[0].Record.Longitude)
	}
}

func TestAnchorService_PlaceWhileNotTracking(t *testing.T) {
	tracker := trackingAt(0, 0, 10)
	tracker.tracking = false
	store := newMemStore()
	svc := usecases.NewAnchorService("s1", store, tracker, nil, nil)

	ok, err := svc.PlaceNew(context.Background(), domain.GeoPoint{Lat: 1, Lon: 1})
	if err != nil {
		t.Fatalf("not-tracking placement must be a silent no-op, got error: %v", err)
	}
	if ok {
		t.Error("not-tracking placement reported success")
	}
	if len(store.saves) != 0 {
		t.Errorf("storage changed: %v", store.saves)
	}
	if len(svc.Snapshot()) != 0 {
		t.Error("slots changed")
	}
	if len(tracker.handles) != 0 {
		t.Error("anchor handle created while not tracking")
	}
}

func TestAnchorService_FreshRecordDerivation(t *testing.T) {
	tracker := trackingAt(43.263, -2.935, 107.5)
	store := newMemStore()
	svc := usecases.NewAnchorService("s1", store, tracker, nil, nil)

	if _, err := svc.PlaceNew(context.Background(), domain.GeoPoint{Lat: 43.2631, Lon: -2.9352}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, ok := store.records[0]
	if !ok {
		t.Fatal("record not persisted at slot 0")
	}
	if rec.Latitude != 43.2631 || rec.Longitude != -2.9352 {
		t.Errorf("coordinates not taken from tap: %+v", rec)
	}
	if rec.Altitude != 106.5 {
		t.Errorf("altitude must be camera altitude minus 1, got %f", rec.Altitude)
	}
	if rec.Orientation() != domain.IdentityQuaternion() {
		t.Errorf("fresh anchors must carry identity orientation, got %+v", rec.Orientation())
	}
}

func TestAnchorService_ProximityGate(t *testing.T) {
	tracker := trackingAt(0, 0, 10)
	svc := usecases.NewAnchorService("s1", newMemStore(), tracker, nil, nil)

	if _, err := svc.PlaceNew(context.Background(), domain.GeoPoint{Lat: 0, Lon: 0}); err != nil {
		t.Fatalf("place: %v", err)
	}

	// Camera on top of the anchor: near, one draw.
	res, err := svc.Frame(context.Background())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if !res.Slots[0].Near {
		t.Error("anchor at camera position must be near")
	}
	if len(res.Draws) != 1 || res.Draws[0].Slot != 0 {
		t.Errorf("expected one draw for slot 0, got %+v", res.Draws)
	}

	// ~111 m north: outside the 15 m gate, no draw.
	tracker.pose = &domain.CameraPose{Latitude: 0.001, Longitude: 0, Altitude: 10}
	res, err = svc.Frame(context.Background())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if res.Slots[0].Near {
		t.Errorf("anchor %.1fm away must not be near", res.Slots[0].Distance)
	}
	if len(res.Draws) != 0 {
		t.Errorf("expected no draws, got %+v", res.Draws)
	}

	// ~11 m north: back inside the gate. No hysteresis, flag flips right back.
	tracker.pose = &domain.CameraPose{Latitude: 0.0001, Longitude: 0, Altitude: 10}
	res, err = svc.Frame(context.Background())
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if !res.Slots[0].Near {
		t.Errorf("anchor %.1fm away must be near", res.Slots[0].Distance)
	}
	if len(res.Draws) != 1 {
		t.Errorf("expected one draw, got %d", len(res.Draws))
	}
}

func TestAnchorService_FrameSkippedWhileNotTracking(t *testing.T) {
	tracker := trackingAt(0, 0, 10)
	tracker.tracking = false
	svc := usecases.NewAnchorService("s1", newMemStore(), tracker, nil, nil)

	if _, err := svc.Frame(context.Background()); !errors.Is(err, usecases.ErrNotTracking) {
		t.Errorf("expected ErrNotTracking, got %v", err)
	}

	// Tracking but no pose yet: still skipped.
	tracker.tracking = true
	tracker.pose = nil
	if _, err := svc.Frame(context.Background()); !errors.Is(err, usecases.ErrNotTracking) {
		t.Errorf("expected ErrNotTracking without a pose, got %v", err)
	}
}

func TestAnchorService_RestoreOnFirstFrame(t *testing.T) {
	store := newMemStore()
	store.records[0] = domain.AnchorRecord{Latitude: 0.00001, Longitude: 0, Altitude: 9, QW: 1}
	store.records[1] = domain.AnchorRecord{Latitude: 0, Longitude: 0.00001, Altitude: 9, QX: 0.1, QY: 0.2, QZ: 0.3, QW: 0.9}

	tracker := trackingAt(0, 0, 10)
	markers := &mockMarkers{}
	svc := usecases.NewAnchorService("s1", store, tracker, markers, nil)

	if _, err := svc.Frame(context.Background()); err != nil {
		t.Fatalf("frame: %v", err)
	}

	snap := svc.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 restored anchors, got %d", len(snap))
	}
	// Restored records are used verbatim, orientation included.
	if snap[1].Record != store.records[1] {
		t.Errorf("restored record mutated: %+v", snap[1].Record)
	}
	if len(markers.markers) != 2 {
		t.Errorf("expected 2 marker updates, got %d", len(markers.markers))
	}
}

func TestAnchorService_RestoreIdempotentForStorage(t *testing.T) {
	store := newMemStore()
	store.records[0] = domain.NewAnchorRecord(0.00001, 0, 9)
	store.records[2] = domain.NewAnchorRecord(0, 0.00001, 9)

	// Two consecutive "launches" against the same storage.
	for launch := 0; launch < 2; launch++ {
		tracker := trackingAt(0, 0, 10)
		svc := usecases.NewAnchorService("s1", store, tracker, nil, nil)
		if _, err := svc.Frame(context.Background()); err != nil {
			t.Fatalf("launch %d frame: %v", launch, err)
		}
	}

	if len(store.saves) != 0 {
		t.Errorf("restore must not write to storage, saw saves for slots %v", store.saves)
	}
	if len(store.records) != 2 {
		t.Errorf("storage contents changed: %d records", len(store.records))
	}
}

func TestAnchorService_RestoreRunsOnce(t *testing.T) {
	store := newMemStore()
	store.records[0] = domain.NewAnchorRecord(0.00001, 0, 9)

	tracker := trackingAt(0, 0, 10)
	svc := usecases.NewAnchorService("s1", store, tracker, nil, nil)

	if _, err := svc.Frame(context.Background()); err != nil {
		t.Fatalf("frame: %v", err)
	}
	// A record appearing in storage after launch must not be picked up.
	store.records[1] = domain.NewAnchorRecord(0, 0.00001, 9)
	if _, err := svc.Frame(context.Background()); err != nil {
		t.Fatalf("frame: %v", err)
	}

	if got := len(svc.Snapshot()); got != 1 {
		t.Errorf("restore ran more than once: %d occupied slots", got)
	}
}

func TestAnchorService_RestoreKeepsSlotAlignment(t *testing.T) {
	// Gap at slot 1: the cursor must still advance past it so the ring ends
	// up back at slot 0 after the restore loop.
	store := newMemStore()
	store.records[0] = domain.NewAnchorRecord(0.00001, 0, 9)
	store.records[2] = domain.NewAnchorRecord(0, 0.00001, 9)

	tracker := trackingAt(0, 0, 10)
	svc := usecases.NewAnchorService("s1", store, tracker, nil, nil)

	if _, err := svc.Frame(context.Background()); err != nil {
		t.Fatalf("frame: %v", err)
	}

	restoredSlot0 := tracker.handles[0]

	// The next fresh placement must land on slot 0, replacing its handle.
	if _, err := svc.PlaceNew(context.Background(), domain.GeoPoint{Lat: 0.00002, Lon: 0}); err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(store.saves) != 1 || store.saves[0] != 0 {
		t.Errorf("expected fresh placement persisted at slot 0, got saves %v", store.saves)
	}
	if !restoredSlot0.detached {
		t.Error("placement into slot 0 did not detach the restored handle")
	}
}

func TestAnchorService_DegradedWithoutStore(t *testing.T) {
	tracker := trackingAt(0, 0, 10)
	markers := &mockMarkers{}
	svc := usecases.NewAnchorService("s1", nil, tracker, markers, nil)

	ok, err := svc.PlaceNew(context.Background(), domain.GeoPoint{Lat: 0, Lon: 0})
	if err != nil || !ok {
		t.Fatalf("degraded placement should still attach a live anchor: ok=%v err=%v", ok, err)
	}
	if len(markers.errs) != 1 {
		t.Errorf("expected one surfaced storage error, got %v", markers.errs)
	}
	if _, err := svc.Frame(context.Background()); err != nil {
		t.Errorf("degraded frame should still run: %v", err)
	}
}
