package pgjournal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/BearBump/ParcelDesk/internal/broker/messages"
	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type Entry struct {
	ID              int64               `json:"id"`
	Event           string              `json:"event"`
	ParcelID        string              `json:"parcelId"`
	TrackingID      string              `json:"trackingId"`
	Status          models.ParcelStatus `json:"status"`
	ParcelUpdatedAt *time.Time          `json:"parcelUpdatedAt,omitempty"`
	Payload         json.RawMessage     `json:"payload"`
	ReceivedAt      time.Time           `json:"receivedAt"`
}

// dedupKey identifies a redelivery of the same event. Without updatedAt the
// payload digest stands in for it.
func dedupKey(ev messages.ParcelEvent, payload []byte) string {
	p := ev.Parcel
	var ver string
	if p.UpdatedAt != nil {
		ver = p.UpdatedAt.UTC().Format(time.RFC3339Nano)
	} else {
		sum := sha256.Sum256(payload)
		ver = hex.EncodeToString(sum[:8])
	}
	return strings.Join([]string{ev.Name, p.ID, string(p.Status), ver}, "|")
}

// Append stores ev unless the same event was journaled before.
func (s *Storage) Append(ctx context.Context, ev messages.ParcelEvent, receivedAt time.Time) (bool, error) {
	_, payload, err := ev.Encode()
	if err != nil {
		return false, err
	}
	p := ev.Parcel
	tag, err := s.db.Exec(ctx, `
INSERT INTO parcel_events (dedup_key, event, parcel_id, tracking_id, status, parcel_updated_at, payload, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT DO NOTHING
`, dedupKey(ev, payload), ev.Name, p.ID, p.TrackingID, string(p.Status), p.UpdatedAt, payload, receivedAt.UTC())
	if err != nil {
		return false, errors.Wrap(err, "insert event")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) ListByTracking(ctx context.Context, trackingID string, limit, offset int) ([]*Entry, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.db.Query(ctx, `
SELECT id, event, parcel_id, tracking_id, status, parcel_updated_at, payload, received_at
FROM parcel_events
WHERE tracking_id = $1
ORDER BY received_at DESC, id DESC
LIMIT $2 OFFSET $3
`, trackingID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	return scanEntries(rows)
}

func (s *Storage) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	limit, _ = clampPage(limit, 0)
	rows, err := s.db.Query(ctx, `
SELECT id, event, parcel_id, tracking_id, status, parcel_updated_at, payload, received_at
FROM parcel_events
ORDER BY received_at DESC, id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select recent events")
	}
	return scanEntries(rows)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanEntries(rows pgx.Rows) ([]*Entry, error) {
	defer rows.Close()

	out := []*Entry{}
	for rows.Next() {
		var (
			e       Entry
			status  string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &e.ParcelID, &e.TrackingID, &status, &e.ParcelUpdatedAt, &payload, &e.ReceivedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Status = models.ParcelStatus(status)
		e.Payload = payload
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
