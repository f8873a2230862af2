package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lertxundi/anchorage/internal/core/domain"
)

// Subject layout:
//
//	ar.anchor.<session>    anchor placements/restores (JetStream)
//	ar.session.expired     janitor purge notices (JetStream)
//	ar.ui.<session>        one-way UI events: markers, status, errors, near-flags
//
// UI events ride the plain connection; the device either sees them or it
// doesn't, replay is useless after the frame has passed.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// AnchorPlacedEvent is published for every placement, fresh or restored.
type AnchorPlacedEvent struct {
	SessionID string              `json:"session_id"`
	Slot      int                 `json:"slot"`
	Record    domain.AnchorRecord `json:"record"`
	Restored  bool                `json:"restored"`
	Time      time.Time           `json:"time"`
}

// UIEvent is a one-way marker/status/error/near update for the device UI.
type UIEvent struct {
	SessionID string               `json:"session_id"`
	Kind      string               `json:"kind"` // marker | status | error | proximity
	Slot      *int                 `json:"slot,omitempty"`
	Record    *domain.AnchorRecord `json:"record,omitempty"`
	Text      string               `json:"text,omitempty"`
	Near      *bool                `json:"near,omitempty"`
	Distance  *float64             `json:"distance_m,omitempty"`
}

// NewPublisher connects to NATS and ensures the streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "ANCHOR_EVENTS",
			Subjects:  []string{"ar.anchor.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "SESSION_EVENTS",
			Subjects:  []string{"ar.session.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishAnchorPlaced implements ports.EventPublisher.
func (p *Publisher) PublishAnchorPlaced(ctx context.Context, sessionID string, slot int, rec domain.AnchorRecord, restored bool) error {
	data, err := json.Marshal(AnchorPlacedEvent{
		SessionID: sessionID,
		Slot:      slot,
		Record:    rec,
		Restored:  restored,
		Time:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = p.js.Publish("ar.anchor."+sessionID, data)
	return err
}

// PublishProximity implements ports.EventPublisher.
func (p *Publisher) PublishProximity(ctx context.Context, sessionID string, slot int, near bool, distanceMeters float64) error {
	return p.publishUI(UIEvent{
		SessionID: sessionID,
		Kind:      "proximity",
		Slot:      &slot,
		Near:      &near,
		Distance:  &distanceMeters,
	})
}

// PublishSessionExpired implements ports.EventPublisher.
func (p *Publisher) PublishSessionExpired(ctx context.Context, sessionID string) error {
	_, err := p.js.Publish("ar.session.expired", []byte(sessionID))
	return err
}

// UpdateMarker implements ports.MarkerView.
func (p *Publisher) UpdateMarker(sessionID string, slot int, rec domain.AnchorRecord) {
	_ = p.publishUI(UIEvent{SessionID: sessionID, Kind: "marker", Slot: &slot, Record: &rec})
}

// ShowStatus implements ports.MarkerView.
func (p *Publisher) ShowStatus(sessionID, text string) {
	_ = p.publishUI(UIEvent{SessionID: sessionID, Kind: "status", Text: text})
}

// ShowError implements ports.MarkerView.
func (p *Publisher) ShowError(sessionID, msg string) {
	_ = p.publishUI(UIEvent{SessionID: sessionID, Kind: "error", Text: msg})
}

func (p *Publisher) publishUI(ev UIEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish("ar.ui."+ev.SessionID, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
