package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/lertxundi/anchorage/internal/core/domain"
	"github.com/lertxundi/anchorage/internal/core/ports"
	"github.com/lertxundi/anchorage/internal/pkg/geospatial"
)

// AnchorRepo persists anchor records keyed (session, slot) and answers
// cross-session nearby queries. It implements ports.AnchorStoreProvider
// and ports.AnchorQueryRepository.
type AnchorRepo struct {
	db *DB
}

// NewAnchorRepo creates a new AnchorRepo.
func NewAnchorRepo(db *DB) *AnchorRepo {
	return &AnchorRepo{db: db}
}

// ForSession returns the slot store scoped to one session's namespace.
func (r *AnchorRepo) ForSession(sessionID string) ports.AnchorStore {
	return &sessionStore{repo: r, sessionID: sessionID}
}

type sessionStore struct {
	repo      *AnchorRepo
	sessionID string
}

// Save overwrites the record held at a slot.
func (s *sessionStore) Save(ctx context.Context, slot int, rec domain.AnchorRecord) error {
	if slot < 0 || slot >= domain.SlotCount {
		return fmt.Errorf("slot %d out of range", slot)
	}
	_, err := s.repo.db.Pool.Exec(ctx, `
		INSERT INTO anchor_records (session_id, slot, latitude, longitude, altitude, qx, qy, qz, qw, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (session_id, slot) DO UPDATE
		SET latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
		    altitude = EXCLUDED.altitude,
		    qx = EXCLUDED.qx, qy = EXCLUDED.qy, qz = EXCLUDED.qz, qw = EXCLUDED.qw,
		    updated_at = now()
	`, s.sessionID, slot, rec.Latitude, rec.Longitude, rec.Altitude,
		rec.QX, rec.QY, rec.QZ, rec.QW)
	return err
}

// Load returns the record at a slot, or (nil, nil) when the slot was never
// persisted.
func (s *sessionStore) Load(ctx context.Context, slot int) (*domain.AnchorRecord, error) {
	var rec domain.AnchorRecord
	err := s.repo.db.Pool.QueryRow(ctx, `
		SELECT latitude, longitude, altitude, qx, qy, qz, qw
		FROM anchor_records
		WHERE session_id = $1 AND slot = $2
	`, s.sessionID, slot).Scan(
		&rec.Latitude, &rec.Longitude, &rec.Altitude,
		&rec.QX, &rec.QY, &rec.QZ, &rec.QW,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListBySession returns all stored records in a session's namespace.
func (r *AnchorRepo) ListBySession(ctx context.Context, sessionID string) ([]domain.StoredAnchor, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_id, slot, latitude, longitude, altitude, qx, qy, qz, qw, updated_at
		FROM anchor_records
		WHERE session_id = $1
		ORDER BY slot
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanStoredAnchors(rows)
}

// FindNearby returns stored records within radiusMeters of a point, nearest
// first. A bounding-box prefilter keeps the scan on the lat/lon index; the
// exact great-circle cut happens here.
func (r *AnchorRepo) FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.StoredAnchor, error) {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(lat, lon, radiusMeters)

	rows, err := r.db.Pool.Query(ctx, `
		SELECT session_id, slot, latitude, longitude, altitude, qx, qy, qz, qw, updated_at
		FROM anchor_records
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
	`, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	anchors, err := scanStoredAnchors(rows)
	if err != nil {
		return nil, err
	}

	var out []domain.StoredAnchor
	for i := range anchors {
		d := geospatial.Haversine(lat, lon, anchors[i].Record.Latitude, anchors[i].Record.Longitude)
		if d > radiusMeters {
			continue
		}
		anchors[i].Distance = &d
		out = append(out, anchors[i])
	}

	sort.Slice(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func scanStoredAnchors(rows pgx.Rows) ([]domain.StoredAnchor, error) {
	var anchors []domain.StoredAnchor
	for rows.Next() {
		var a domain.StoredAnchor
		if err := rows.Scan(
			&a.SessionID, &a.Slot,
			&a.Record.Latitude, &a.Record.Longitude, &a.Record.Altitude,
			&a.Record.QX, &a.Record.QY, &a.Record.QZ, &a.Record.QW,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		anchors = append(anchors, a)
	}
	return anchors, rows.Err()
}
