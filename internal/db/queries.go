package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type DispatchRun struct {
	ID        string
	StartedAt int64
	Sent      int64
	Failed    int64
}

type DispatchAttempt struct {
	ID          int64
	RunID       string
	Recipient   string
	Outcome     string
	Reason      sql.NullString
	AttemptedAt int64
}

const createRun = `insert or ignore into DispatchRun(id, started_at) values (?, ?)`

type CreateRunParams struct {
	ID        string
	StartedAt int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun, arg.ID, arg.StartedAt)
	return err
}

const createAttempt = `insert into DispatchAttempt(run_id, recipient, outcome, reason, attempted_at)
values (?, ?, ?, ?, ?)`

type CreateAttemptParams struct {
	RunID       string
	Recipient   string
	Outcome     string
	Reason      sql.NullString
	AttemptedAt int64
}

func (q *Queries) CreateAttempt(ctx context.Context, arg CreateAttemptParams) error {
	_, err := q.db.ExecContext(ctx, createAttempt,
		arg.RunID,
		arg.Recipient,
		arg.Outcome,
		arg.Reason,
		arg.AttemptedAt,
	)
	return err
}

const incrementRunSent = `update DispatchRun set sent = sent + 1 where id = ?`

func (q *Queries) IncrementRunSent(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, incrementRunSent, id)
	return err
}

const incrementRunFailed = `update DispatchRun set failed = failed + 1 where id = ?`

func (q *Queries) IncrementRunFailed(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, incrementRunFailed, id)
	return err
}

const getRecentAttempts = `select id, run_id, recipient, outcome, reason, attempted_at
from DispatchAttempt
order by attempted_at desc, id desc
limit ?`

func (q *Queries) GetRecentAttempts(ctx context.Context, limit int64) ([]DispatchAttempt, error) {
	rows, err := q.db.QueryContext(ctx, getRecentAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DispatchAttempt
	for rows.Next() {
		var i DispatchAttempt
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.Recipient,
			&i.Outcome,
			&i.Reason,
			&i.AttemptedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRecentRuns = `select id, started_at, sent, failed
from DispatchRun
order by started_at desc
limit ?`

func (q *Queries) GetRecentRuns(ctx context.Context, limit int64) ([]DispatchRun, error) {
	rows, err := q.db.QueryContext(ctx, getRecentRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DispatchRun
	for rows.Next() {
		var i DispatchRun
		if err := rows.Scan(
			&i.ID,
			&i.StartedAt,
			&i.Sent,
			&i.Failed,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
