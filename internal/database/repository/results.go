package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/qubitpage/qbp/internal/results"
)

// ResultRepo keeps the last measurement rendered into each target.
type ResultRepo struct {
	db *sql.DB
}

func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{db: db} }

func (r *ResultRepo) Save(ctx context.Context, target string, m results.Measurement) error {
	counts, err := json.Marshal(m.Counts)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO results(target, counts, shots, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(target) DO UPDATE SET counts=excluded.counts, shots=excluded.shots, updated_at=excluded.updated_at;
	`, target, string(counts), m.Shots, time.Now().UTC())
	return err
}

// Get returns the stored measurement, or ok=false when the target has none.
func (r *ResultRepo) Get(ctx context.Context, target string) (m results.Measurement, ok bool, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT counts, shots FROM results WHERE target = ?`, target)
	var counts string
	if err := row.Scan(&counts, &m.Shots); err != nil {
		if err == sql.ErrNoRows {
			return results.Measurement{}, false, nil
		}
		return results.Measurement{}, false, err
	}
	if err := json.Unmarshal([]byte(counts), &m.Counts); err != nil {
		return results.Measurement{}, false, err
	}
	return m, true, nil
}

func (r *ResultRepo) List(ctx context.Context) ([]StoredResult, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT target, counts, shots, updated_at FROM results ORDER BY target`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredResult
	for rows.Next() {
		var s StoredResult
		if err := rows.Scan(&s.Target, &s.Counts, &s.Shots, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
