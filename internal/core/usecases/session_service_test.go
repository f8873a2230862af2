package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lertxundi/anchorage/internal/core/domain"
	"github.com/lertxundi/anchorage/internal/core/ports"
	"github.com/lertxundi/anchorage/internal/core/usecases"
)

// fakeDevice is a minimal ports.DeviceTracker for registry tests.
type fakeDevice struct {
	mu       sync.Mutex
	pose     *domain.CameraPose
	tracking bool
	handles  []*mockHandle
}

func (d *fakeDevice) Observe(pose *domain.CameraPose, tracking bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pose = pose
	d.tracking = tracking
}

func (d *fakeDevice) IsTracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracking
}

func (d *fakeDevice) CameraPose() (*domain.CameraPose, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pose == nil {
		return nil, errors.New("no pose")
	}
	p := *d.pose
	return &p, nil
}

func (d *fakeDevice) CreateAnchor(ctx context.Context, rec domain.AnchorRecord) (ports.AnchorHandle, error) {
	h := &mockHandle{}
	d.handles = append(d.handles, h)
	return h, nil
}

type memProvider struct {
	mu     sync.Mutex
	stores map[string]*memStore
}

func newMemProvider() *memProvider {
	return &memProvider{stores: make(map[string]*memStore)}
}

func (p *memProvider) ForSession(sessionID string) ports.AnchorStore {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.stores[sessionID]
	if !ok {
		st = newMemStore()
		p.stores[sessionID] = st
	}
	return st
}

func newRegistry(provider ports.AnchorStoreProvider) *usecases.SessionService {
	return usecases.NewSessionService(provider, nil, nil, nil, nil, func() ports.DeviceTracker {
		return &fakeDevice{}
	})
}

func TestSessionService_OpenAndGet(t *testing.T) {
	svc := newRegistry(newMemProvider())

	sess, err := svc.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("session has no ID")
	}
	if sess.CreatedAt.IsZero() || time.Since(sess.CreatedAt) > time.Minute {
		t.Errorf("bad created_at: %v", sess.CreatedAt)
	}

	if _, err := svc.Get(sess.ID); err != nil {
		t.Errorf("get: %v", err)
	}
	if svc.Count() != 1 {
		t.Errorf("expected 1 live session, got %d", svc.Count())
	}
}

func TestSessionService_UnknownSession(t *testing.T) {
	svc := newRegistry(newMemProvider())

	if _, err := svc.Frame(context.Background(), "nope", &domain.CameraPose{}, true); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("frame: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Place(context.Background(), "nope", domain.GeoPoint{}); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("place: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Anchors(context.Background(), "nope"); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("anchors: expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionService_FrameThenPlace(t *testing.T) {
	provider := newMemProvider()
	svc := newRegistry(provider)

	sess, err := svc.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	pose := &domain.CameraPose{Latitude: 43.263, Longitude: -2.935, Altitude: 12}
	if _, err := svc.Frame(context.Background(), sess.ID, pose, true); err != nil {
		t.Fatalf("frame: %v", err)
	}

	ok, err := svc.Place(context.Background(), sess.ID, domain.GeoPoint{Lat: 43.263, Lon: -2.935})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if !ok {
		t.Fatal("placement while tracking must succeed")
	}

	anchors, err := svc.Anchors(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("anchors: %v", err)
	}
	if len(anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %d", len(anchors))
	}
	if anchors[0].Record.Altitude != 11 {
		t.Errorf("anchor altitude should be camera altitude minus 1, got %f", anchors[0].Record.Altitude)
	}

	// The record lands in this session's own storage namespace.
	store := provider.stores[sess.ID]
	if store == nil || len(store.records) != 1 {
		t.Error("record not persisted under the session namespace")
	}
}

func TestSessionService_PlaceBeforeAnyFrame(t *testing.T) {
	svc := newRegistry(newMemProvider())
	sess, _ := svc.Open(context.Background())

	// No frame observed yet: the tracker is not tracking, so the placement
	// is a silent no-op.
	ok, err := svc.Place(context.Background(), sess.ID, domain.GeoPoint{Lat: 1, Lon: 1})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if ok {
		t.Error("placement before the first frame should no-op")
	}
}

func TestSessionService_SessionsAreIsolated(t *testing.T) {
	svc := newRegistry(newMemProvider())

	a, _ := svc.Open(context.Background())
	b, _ := svc.Open(context.Background())

	pose := &domain.CameraPose{Latitude: 0, Longitude: 0, Altitude: 10}
	if _, err := svc.Frame(context.Background(), a.ID, pose, true); err != nil {
		t.Fatalf("frame: %v", err)
	}
	if ok, _ := svc.Place(context.Background(), a.ID, domain.GeoPoint{}); !ok {
		t.Fatal("place in session a failed")
	}

	anchorsB, err := svc.Anchors(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("anchors: %v", err)
	}
	if len(anchorsB) != 0 {
		t.Errorf("session b sees session a's anchors: %+v", anchorsB)
	}
}

func TestSessionService_Evict(t *testing.T) {
	svc := newRegistry(newMemProvider())
	sess, _ := svc.Open(context.Background())

	svc.Evict(sess.ID)

	if _, err := svc.Get(sess.ID); !errors.Is(err, usecases.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after evict, got %v", err)
	}
	if svc.Count() != 0 {
		t.Errorf("expected 0 live sessions, got %d", svc.Count())
	}
}
