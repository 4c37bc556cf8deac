package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/qubitpage/qbp/internal/backend"
)

// ExchangeRepo stores settled exchanges. It satisfies backend.Recorder.
type ExchangeRepo struct {
	db *sql.DB
}

func NewExchangeRepo(db *sql.DB) *ExchangeRepo { return &ExchangeRepo{db: db} }

func (r *ExchangeRepo) RecordExchange(ctx context.Context, ex backend.Exchange) error {
	var success sql.NullBool
	if ex.Success != nil {
		success = sql.NullBool{Bool: *ex.Success, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO exchanges(id, op, target, success, error, started_at, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING;
	`, ex.ID, ex.Op, ex.Target, success, ex.Error, ex.StartedAt.UTC(), ex.Duration.Milliseconds())
	return err
}

// Recent returns up to limit exchanges, newest first.
func (r *ExchangeRepo) Recent(ctx context.Context, limit int) ([]ExchangeRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, op, target, success, error, started_at, duration_ms
	FROM exchanges ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExchangeRecord
	for rows.Next() {
		var (
			rec     ExchangeRecord
			success sql.NullBool
			ms      int64
		)
		if err := rows.Scan(&rec.ID, &rec.Op, &rec.Target, &success, &rec.Error, &rec.StartedAt, &ms); err != nil {
			return nil, err
		}
		if success.Valid {
			v := success.Bool
			rec.Success = &v
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune drops exchanges older than cutoff and reports how many went.
func (r *ExchangeRepo) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exchanges WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
