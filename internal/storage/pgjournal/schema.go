package pgjournal

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS parcel_events (
  id BIGSERIAL PRIMARY KEY,
  dedup_key TEXT NOT NULL,
  event TEXT NOT NULL,
  parcel_id TEXT NOT NULL,
  tracking_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  parcel_updated_at TIMESTAMPTZ NULL,
  payload JSONB NOT NULL,
  received_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_parcel_events_dedup ON parcel_events(dedup_key)`,
		`CREATE INDEX IF NOT EXISTS idx_parcel_events_tracking_id ON parcel_events(tracking_id, received_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_parcel_events_received_at ON parcel_events(received_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
