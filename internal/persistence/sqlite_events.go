package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// SQLiteHistory is an append-only run event log backed by SQLite. It can
// share a database with SQLiteStore.
type SQLiteHistory struct {
	db *sql.DB
}

var _ api.History = (*SQLiteHistory)(nil)

// NewSQLiteHistory initializes the event table and returns a SQLiteHistory.
func NewSQLiteHistory(db *sql.DB) (*SQLiteHistory, error) {
	h := &SQLiteHistory{db: db}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id TEXT NOT NULL,
			at TIMESTAMP NOT NULL,
			type TEXT NOT NULL,
			node TEXT,
			step INTEGER,
			detail TEXT
		);
		CREATE INDEX IF NOT EXISTS run_events_thread ON run_events (thread_id, id);`,
	); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *SQLiteHistory) Append(ctx context.Context, ev api.RunEvent) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO run_events (thread_id, at, type, node, step, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ThreadID, ev.At.UTC(), string(ev.Type), ev.Node, ev.Step, ev.Detail,
	)
	return err
}

func (h *SQLiteHistory) List(ctx context.Context, threadID string) ([]api.RunEvent, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT at, type, node, step, detail
		FROM run_events
		WHERE thread_id = ?
		ORDER BY id`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.RunEvent
	for rows.Next() {
		ev := api.RunEvent{ThreadID: threadID}
		var at time.Time
		var typ string
		if err := rows.Scan(&at, &typ, &ev.Node, &ev.Step, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = at
		ev.Type = api.RunEventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}
