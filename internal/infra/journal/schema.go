package journal

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

// schema returns the DDL for driver. Timestamps are stored as RFC 3339 text
// on both drivers so rows read back identically.
func schema(driver string) []string {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == DriverPostgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS requests (
            id            TEXT PRIMARY KEY,
            title         TEXT NOT NULL,
            requester_ref TEXT NOT NULL,
            submitted_at  TEXT NOT NULL,
            payment_state TEXT NOT NULL,
            status        TEXT NOT NULL,
            updated_at    TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status)`,
		`CREATE TABLE IF NOT EXISTS transitions (
            ` + seq + `,
            request_id TEXT NOT NULL,
            status     TEXT NOT NULL,
            at         TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_request ON transitions(request_id)`,
		`CREATE TABLE IF NOT EXISTS settings (
            key        TEXT PRIMARY KEY,
            value      TEXT NOT NULL,
            kind       TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )`,
	}
}

func applySchema(ctx context.Context, db *sqlx.DB, driver string) error {
	for _, stmt := range schema(driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply schema")
		}
	}
	return nil
}

const upsertRequest = `
INSERT INTO requests (id, title, requester_ref, submitted_at, payment_state, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    payment_state = excluded.payment_state,
    status        = excluded.status,
    updated_at    = excluded.updated_at`

const insertTransition = `
INSERT INTO transitions (request_id, status, at) VALUES (?, ?, ?)`

const upsertSetting = `
INSERT INTO settings (key, value, kind, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    value      = excluded.value,
    kind       = excluded.kind,
    updated_at = excluded.updated_at`

const selectRequests = `
SELECT id, title, requester_ref, submitted_at, payment_state, status
FROM requests WHERE status IN (?)`

const selectSettings = `
SELECT key, value, kind FROM settings ORDER BY key`

const selectTransitions = `
SELECT status, at FROM transitions WHERE request_id = ? ORDER BY seq`
