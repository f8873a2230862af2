package ports

import (
	"context"
	"time"

	"github.com/lertxundi/anchorage/internal/core/domain"
)

// AnchorStore persists anchor records for one session, keyed by slot index
// 0..domain.SlotCount-1. A record can exist in storage while no live anchor
// is attached; the restore path re-attaches it on launch.
type AnchorStore interface {
	// Save writes the record for a slot, overwriting any previous one.
	Save(ctx context.Context, slot int, rec domain.AnchorRecord) error
	// Load returns the record for a slot, or (nil, nil) when the slot has
	// never been persisted.
	Load(ctx context.Context, slot int) (*domain.AnchorRecord, error)
}

// AnchorStoreProvider hands out session-scoped store views over a shared
// backing store.
type AnchorStoreProvider interface {
	ForSession(sessionID string) AnchorStore
}

// AnchorQueryRepository answers cross-session queries over stored records.
type AnchorQueryRepository interface {
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.StoredAnchor, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.StoredAnchor, error)
}

// SessionRepository persists session lifecycle metadata.
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Touch(ctx context.Context, id string, at time.Time) error
	ListIdle(ctx context.Context, idleSince time.Time) ([]domain.Session, error)
	Delete(ctx context.Context, id string) error
	// PurgeAnchors removes every stored record in the session's namespace.
	PurgeAnchors(ctx context.Context, sessionID string) (int, error)
}
