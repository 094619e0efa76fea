package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/db"
	"github.com/spacedreammer/vaccineSchedule/pkg/pagination"
)

type repoPG struct{ db db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{db: q} }

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const feedbackCols = `f.id, f.user_id, f.appointment_id, f.provider_id, f.rating, f.comment, f.created_at`

func scanFeedback(row pgx.Row) (*Feedback, error) {
	var f Feedback
	err := row.Scan(&f.ID, &f.UserID, &f.AppointmentID, &f.ProviderID, &f.Rating, &f.Comment, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *repoPG) Appointment(ctx context.Context, id uuid.UUID) (*appointmentRef, error) {
	var a appointmentRef
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, user_id, provider_id, status FROM appointments WHERE id = $1 FOR SHARE`, id,
	).Scan(&a.ID, &a.UserID, &a.ProviderID, &a.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repoPG) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM feedbacks WHERE appointment_id = $1)`, appointmentID,
	).Scan(&exists)
	return exists, err
}

func (r *repoPG) Create(ctx context.Context, f *Feedback) error {
	f.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO feedbacks (id, user_id, appointment_id, provider_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		f.ID, f.UserID, f.AppointmentID, f.ProviderID, f.Rating, f.Comment,
	).Scan(&f.CreatedAt)
	if db.IsPgError(err, db.UniqueViolation) {
		return apperr.Wrap(apperr.CodeDuplicateFeedback, "feedback already submitted for this appointment", err)
	}
	return err
}

func (r *repoPG) ListForProvider(ctx context.Context, providerID uuid.UUID, after pagination.Cursor, limit int) ([]*ProviderFeedback, error) {
	query := `SELECT ` + feedbackCols + `, u.first_name || ' ' || u.last_name
		FROM feedbacks f JOIN users u ON u.id = f.user_id
		WHERE f.provider_id = $1`
	args := []any{providerID}
	if !after.IsZero() {
		query += ` AND (f.created_at, f.id) < ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY f.created_at DESC, f.id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ProviderFeedback
	for rows.Next() {
		var pf ProviderFeedback
		f := &pf.Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.AppointmentID, &f.ProviderID, &f.Rating, &f.Comment, &f.CreatedAt,
			&pf.SubmitterName); err != nil {
			return nil, err
		}
		items = append(items, &pf)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Feedback, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM feedbacks WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+feedbackCols+` FROM feedbacks f WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

func (r *repoPG) AverageRating(ctx context.Context, providerID uuid.UUID) (float64, int, error) {
	var avg float64
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(AVG(rating), 0)::float8, COUNT(*) FROM feedbacks WHERE provider_id = $1`, providerID,
	).Scan(&avg, &count)
	return avg, count, err
}
