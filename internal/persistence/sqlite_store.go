package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/grafo/pkg/api"
)

// SQLiteStore is a Store backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ api.Store = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			thread_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			state BLOB,
			metadata BLOB,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (thread_id, step)
		);`,
	)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, threadID string, values map[string]any, step int, metadata map[string]any) error {
	state, err := encodeValues(values)
	if err != nil {
		return err
	}
	meta, err := encodeValues(metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, step, state, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(thread_id, step) DO UPDATE
		SET state = excluded.state, metadata = excluded.metadata, created_at = excluded.created_at`,
		threadID, step, state, meta, time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, threadID string) (*api.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT step, state, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ?
		ORDER BY step DESC
		LIMIT 1`,
		threadID,
	)
	cp, err := s.scan(row, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, api.ErrThreadNotFound
	}
	return cp, err
}

func (s *SQLiteStore) LoadStep(ctx context.Context, threadID string, step int) (*api.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT step, state, metadata, created_at
		FROM checkpoints
		WHERE thread_id = ? AND step = ?`,
		threadID, step,
	)
	cp, err := s.scan(row, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		steps, lerr := s.ListSteps(ctx, threadID)
		if lerr != nil || len(steps) == 0 {
			return nil, api.ErrThreadNotFound
		}
		return nil, api.ErrStepNotFound
	}
	return cp, err
}

func (s *SQLiteStore) scan(row *sql.Row, threadID string) (*api.Checkpoint, error) {
	var (
		step        int
		state, meta []byte
		createdAt   time.Time
	)
	if err := row.Scan(&step, &state, &meta, &createdAt); err != nil {
		return nil, err
	}

	values, err := decodeValues(state)
	if err != nil {
		return nil, err
	}
	metadata, err := decodeValues(meta)
	if err != nil {
		return nil, err
	}

	return &api.Checkpoint{
		ThreadID:  threadID,
		Step:      step,
		Values:    values,
		Timestamp: createdAt,
		Metadata:  metadata,
	}, nil
}

func (s *SQLiteStore) ListThreads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT thread_id FROM checkpoints ORDER BY thread_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSteps(ctx context.Context, threadID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step FROM checkpoints WHERE thread_id = ? ORDER BY step`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var step int
		if err := rows.Scan(&step); err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, api.ErrThreadNotFound
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	return err
}
