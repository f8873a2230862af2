package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lertxundi/anchorage/internal/core/domain"
	"github.com/lertxundi/anchorage/internal/core/ports"
)

// ErrSessionNotFound is returned for operations against unknown or already
// evicted sessions.
var ErrSessionNotFound = errors.New("session not found")

// SessionState is one live device session: its tracker fed by frame reports
// and the anchor manager bound to its storage namespace.
type SessionState struct {
	Session domain.Session
	Tracker ports.DeviceTracker
	Anchors *AnchorService
}

// SessionService is the in-memory registry of live sessions. Anchors are
// never shared between sessions.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*SessionState

	stores     ports.AnchorStoreProvider // nil when storage is degraded
	repo       ports.SessionRepository   // nil tolerated
	cache      ports.CacheService        // nil tolerated
	markers    ports.MarkerView
	events     ports.EventPublisher
	newTracker func() ports.DeviceTracker
}

// NewSessionService creates the registry. newTracker is called once per
// opened session.
func NewSessionService(
	stores ports.AnchorStoreProvider,
	repo ports.SessionRepository,
	cache ports.CacheService,
	markers ports.MarkerView,
	events ports.EventPublisher,
	newTracker func() ports.DeviceTracker,
) *SessionService {
	return &SessionService{
		sessions:   make(map[string]*SessionState),
		stores:     stores,
		repo:       repo,
		cache:      cache,
		markers:    markers,
		events:     events,
		newTracker: newTracker,
	}
}

// Open starts a new session and returns it.
func (s *SessionService) Open(ctx context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	sess := domain.Session{ID: uuid.NewString(), CreatedAt: now, LastSeenAt: now}

	var store ports.AnchorStore
	if s.stores != nil {
		store = s.stores.ForSession(sess.ID)
	}

	tracker := s.newTracker()
	state := &SessionState{
		Session: sess,
		Tracker: tracker,
		Anchors: NewAnchorService(sess.ID, store, tracker, s.markers, s.events),
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, &sess); err != nil {
			slog.Warn("session not persisted", "session", sess.ID, "error", err)
		}
	}

	s.mu.Lock()
	s.sessions[sess.ID] = state
	s.mu.Unlock()

	return &sess, nil
}

// Get returns the live state of a session.
func (s *SessionService) Get(id string) (*SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return state, nil
}

// Frame feeds one device frame into the session's tracker and runs the
// anchor manager's per-frame pass (restore-on-first-frame, proximity gate,
// draw list).
func (s *SessionService) Frame(ctx context.Context, id string, pose *domain.CameraPose, tracking bool) (domain.FrameResult, error) {
	state, err := s.Get(id)
	if err != nil {
		return domain.FrameResult{}, err
	}

	state.Tracker.Observe(pose, tracking)
	if s.repo != nil {
		if err := s.repo.Touch(ctx, id, time.Now().UTC()); err != nil {
			slog.Warn("session touch failed", "session", id, "error", err)
		}
	}

	return state.Anchors.Frame(ctx)
}

// Place requests an anchor placement at the tapped coordinates. Returns
// false without error when the session is not tracking.
func (s *SessionService) Place(ctx context.Context, id string, pt domain.GeoPoint) (bool, error) {
	state, err := s.Get(id)
	if err != nil {
		return false, err
	}

	ok, err := state.Anchors.PlaceNew(ctx, pt)
	if ok && s.cache != nil {
		_ = s.cache.Delete(ctx, inventoryKey(id))
	}
	return ok, err
}

// Anchors returns the session's slot inventory, read through the cache.
func (s *SessionService) Anchors(ctx context.Context, id string) ([]domain.AnchorStatus, error) {
	key := inventoryKey(id)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var snap []domain.AnchorStatus
			if err := json.Unmarshal(data, &snap); err == nil {
				return snap, nil
			}
		}
	}

	state, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	snap := state.Anchors.Snapshot()

	// Near-flags go stale within a frame or two, so keep the TTL short.
	if s.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, key, data, 5)
		}
	}

	return snap, nil
}

// Evict drops a session from the live registry. Stored records are left to
// the janitor.
func (s *SessionService) Evict(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func inventoryKey(sessionID string) string {
	return "anchors:inv:" + sessionID
}
