package ports

import (
	"context"

	"github.com/lertxundi/anchorage/internal/core/domain"
)

// AnchorHandle is a live anchor held by the tracking runtime. Detach releases
// it; a detached handle no longer produces pose matrices.
type AnchorHandle interface {
	Detach()
	PoseMatrix() (domain.PoseMatrix, error)
}

// Tracker is the device tracking contract the anchor manager consumes.
type Tracker interface {
	IsTracking() bool
	CameraPose() (*domain.CameraPose, error)
	CreateAnchor(ctx context.Context, rec domain.AnchorRecord) (AnchorHandle, error)
}

// DeviceTracker is a Tracker fed by per-frame device reports.
type DeviceTracker interface {
	Tracker
	// Observe records the camera pose and tracking state for the current frame.
	Observe(pose *domain.CameraPose, tracking bool)
}

// MarkerView receives one-way UI updates: map markers, status text, and
// error snackbars. Implementations must not block; no return value is
// consumed by the core.
type MarkerView interface {
	UpdateMarker(sessionID string, slot int, rec domain.AnchorRecord)
	ShowStatus(sessionID, text string)
	ShowError(sessionID, msg string)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishAnchorPlaced(ctx context.Context, sessionID string, slot int, rec domain.AnchorRecord, restored bool) error
	PublishProximity(ctx context.Context, sessionID string, slot int, near bool, distanceMeters float64) error
	PublishSessionExpired(ctx context.Context, sessionID string) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSessionExpired(ctx context.Context, handler func(ctx context.Context, sessionID string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
