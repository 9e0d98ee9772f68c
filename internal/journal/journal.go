// Package journal keeps a local history of dispatch attempts. It is
// informational only, the roster file stays the source of truth for who is
// still waiting for a message.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"playermail/internal/components/assert"
	"playermail/internal/components/telemetry"
	"playermail/internal/db"
	"playermail/internal/dispatch"
	"time"

	_ "modernc.org/sqlite"
)

const report_journal_record = "journal.record"

// Attempt is a single journaled dispatch attempt.
type Attempt struct {
	RunID     string
	Recipient string
	Outcome   string
	Reason    string
	At        time.Time
}

// Run aggregates the attempts made by one dispatch run.
type Run struct {
	ID        string
	StartedAt time.Time
	Sent      int64
	Failed    int64
}

var _ dispatch.Recorder = (*Store)(nil)

type Store struct {
	db  *sql.DB
	tel telemetry.API
}

// Open opens (or creates) the sqlite journal at `path`.
func Open(path string, tel telemetry.API) (*Store, error) {
	assert.NotEmptyStr(path)

	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite only supports a single writer
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	store, err := NewStore(context.Background(), database, tel)
	if err != nil {
		database.Close()
		return nil, err
	}
	return store, nil
}

// NewStore migrates `database` and wraps it.
func NewStore(ctx context.Context, database *sql.DB, tel telemetry.API) (*Store, error) {
	assert.NotNil(database)
	assert.NotNil(tel)

	_, err := database.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}
	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Store{
		db:  database,
		tel: telemetry.NewScopedAPI("journal", tel),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record implements dispatch.Recorder.
func (s *Store) Record(ctx context.Context, entry dispatch.Entry) error {
	err := db.WithTx(ctx, s.db, func(qry *db.Queries) error {
		err := qry.CreateRun(ctx, db.CreateRunParams{
			ID:        entry.RunID,
			StartedAt: entry.At.UnixMilli(),
		})
		if err != nil {
			return err
		}

		err = qry.CreateAttempt(ctx, db.CreateAttemptParams{
			RunID:     entry.RunID,
			Recipient: entry.Recipient,
			Outcome:   entry.Outcome.String(),
			Reason: sql.NullString{
				String: entry.Reason,
				Valid:  entry.Reason != "",
			},
			AttemptedAt: entry.At.UnixMilli(),
		})
		if err != nil {
			return err
		}

		if entry.Outcome.Delivered() {
			return qry.IncrementRunSent(ctx, entry.RunID)
		}
		return qry.IncrementRunFailed(ctx, entry.RunID)
	})
	if err != nil {
		s.tel.ReportBroken(report_journal_record, err, entry.Recipient)
		return err
	}
	return nil
}

// Recent returns up to `limit` attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	rows, err := db.New(s.db).GetRecentAttempts(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Attempt, len(rows))
	for i, row := range rows {
		out[i] = Attempt{
			RunID:     row.RunID,
			Recipient: row.Recipient,
			Outcome:   row.Outcome,
			Reason:    row.Reason.String,
			At:        time.UnixMilli(row.AttemptedAt),
		}
	}
	return out, nil
}

// Runs returns up to `limit` runs, most recently started first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.New(s.db).GetRecentRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	out := make([]Run, len(rows))
	for i, row := range rows {
		out[i] = Run{
			ID:        row.ID,
			StartedAt: time.UnixMilli(row.StartedAt),
			Sent:      row.Sent,
			Failed:    row.Failed,
		}
	}
	return out, nil
}
