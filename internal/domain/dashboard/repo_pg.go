package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/db"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{db: q} }

func (r *repoPG) Count(ctx context.Context, m Measure, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, m.SQL, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("measure %s: %w", m.ID, err)
	}
	return n, nil
}

func (r *repoPG) Mean(ctx context.Context, m Measure, args ...any) (float64, error) {
	var v float64
	if err := r.db.QueryRow(ctx, m.SQL, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("measure %s: %w", m.ID, err)
	}
	return v, nil
}

func (r *repoPG) UserGrowth(ctx context.Context, since time.Time, loc *time.Location) ([]MonthCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT to_char(date_trunc('month', created_at AT TIME ZONE $2), 'YYYY-MM') AS month, COUNT(*)
		FROM users WHERE created_at >= $1
		GROUP BY 1 ORDER BY 1`, since, loc.String())
	if err != nil {
		return nil, fmt.Errorf("user growth: %w", err)
	}
	defer rows.Close()
	var out []MonthCount
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

func (r *repoPG) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
