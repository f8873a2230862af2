package workflows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lertxundi/anchorage/internal/core/ports"
)

// CachePurger drops every cache entry under a key prefix.
type CachePurger interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// JanitorActivities holds the activity implementations for the janitor workflow.
type JanitorActivities struct {
	Sessions ports.SessionRepository
	Cache    CachePurger          // nil tolerated
	Events   ports.EventPublisher // nil tolerated
}

// ListIdleSessions returns the IDs of sessions with no frame activity for
// the given TTL.
func (a *JanitorActivities) ListIdleSessions(ctx context.Context, idleTTLMinutes int) ([]string, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(idleTTLMinutes) * time.Minute)
	sessions, err := a.Sessions.ListIdle(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list idle sessions: %w", err)
	}
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// PurgeSessionAnchors removes every stored anchor record in the session's
// namespace and returns how many were deleted.
func (a *JanitorActivities) PurgeSessionAnchors(ctx context.Context, sessionID string) (int, error) {
	n, err := a.Sessions.PurgeAnchors(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("purge anchors for %s: %w", sessionID, err)
	}
	return n, nil
}

// DropSessionCache invalidates the session's cached inventory.
func (a *JanitorActivities) DropSessionCache(ctx context.Context, sessionID string) error {
	if a.Cache == nil {
		return nil
	}
	if err := a.Cache.DeleteByPrefix(ctx, "anchors:inv:"+sessionID); err != nil {
		return fmt.Errorf("drop cache for %s: %w", sessionID, err)
	}
	return nil
}

// DeleteSession removes the session row itself.
func (a *JanitorActivities) DeleteSession(ctx context.Context, sessionID string) error {
	if err := a.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// AnnounceExpiry tells running API instances to evict the session from
// their live registries.
func (a *JanitorActivities) AnnounceExpiry(ctx context.Context, sessionID string) error {
	if a.Events == nil {
		log.Printf("EXPIRY (no publisher) → session=%s", sessionID)
		return nil
	}
	return a.Events.PublishSessionExpired(ctx, sessionID)
}
