package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/db"
)

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ db db.Querier }

func NewScheduleRepoPG(q db.Querier) ScheduleRepository { return &scheduleRepoPG{db: q} }

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const schedCols = `id, health_officer_id, title, description, "date", "time", location,
	capacity, booked_slots, vaccine_category_id, status, created_at, updated_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.HealthOfficerID, &s.Title, &s.Description, &s.Date, &s.Time, &s.Location,
		&s.Capacity, &s.BookedSlots, &s.VaccineCategoryID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("schedule")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSchedules(rows pgx.Rows) ([]*Schedule, error) {
	defer rows.Close()
	var items []*Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *Schedule) error {
	s.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedules (id, health_officer_id, title, description, "date", "time", location,
			capacity, booked_slots, vaccine_category_id, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,'active')
		RETURNING booked_slots, status, created_at, updated_at`,
		s.ID, s.HealthOfficerID, s.Title, s.Description, s.Date, s.Time, s.Location,
		s.Capacity, s.VaccineCategoryID,
	).Scan(&s.BookedSlots, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if db.IsPgError(err, db.ForeignKeyViolation) {
		return apperr.Validation("vaccine_category_id", "unknown vaccine category")
	}
	return err
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+schedCols+` FROM schedules WHERE id = $1`, id))
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *Schedule) error {
	updated, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedules SET title = $2, description = $3, "date" = $4, "time" = $5, location = $6,
			capacity = $7, vaccine_category_id = $8,
			status = CASE
				WHEN status = 'cancelled' THEN status
				WHEN booked_slots >= $7 THEN 'full'
				ELSE 'active'
			END,
			updated_at = NOW()
		WHERE id = $1 AND booked_slots <= $7
		RETURNING `+schedCols,
		s.ID, s.Title, s.Description, s.Date, s.Time, s.Location, s.Capacity, s.VaccineCategoryID))
	if db.IsPgError(err, db.ForeignKeyViolation) {
		return apperr.Validation("vaccine_category_id", "unknown vaccine category")
	}
	if errors.Is(err, apperr.ErrNotFound) {
		// Either the row is gone or the capacity guard rejected the update.
		current, getErr := r.GetByID(ctx, s.ID)
		if getErr != nil {
			return getErr
		}
		return apperr.Newf(apperr.CodeCapacityExceeded,
			"capacity %d is below the %d slots already booked", s.Capacity, current.BookedSlots)
	}
	if err != nil {
		return err
	}
	*s = *updated
	return nil
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("schedule")
	}
	return nil
}

func (r *scheduleRepoPG) Cancel(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedules SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1
		RETURNING `+schedCols, id))
}

// LockForUpdate loads the schedule and holds its row lock until the
// transaction ends.
func (r *scheduleRepoPG) LockForUpdate(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `SELECT `+schedCols+` FROM schedules WHERE id = $1 FOR UPDATE`, id))
}

// Reserve takes one slot with a single conditional UPDATE so concurrent
// reservations cannot overbook. When no row matches, a follow-up read tells
// a missing schedule apart from a full, cancelled or past one.
func (r *scheduleRepoPG) Reserve(ctx context.Context, id uuid.UUID, asOf time.Time) (*Schedule, error) {
	s, err := scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedules SET
			booked_slots = booked_slots + 1,
			status = CASE WHEN booked_slots + 1 >= capacity THEN 'full' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND booked_slots < capacity AND "date" >= $2
		RETURNING `+schedCols, id, asOf))
	if !errors.Is(err, apperr.ErrNotFound) {
		return s, err
	}

	var status string
	var booked, capacity int
	var date time.Time
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT status, booked_slots, capacity, "date" FROM schedules WHERE id = $1`, id,
	).Scan(&status, &booked, &capacity, &date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("schedule")
	}
	if err != nil {
		return nil, err
	}
	return nil, unavailable(ScheduleStatus(status), booked, capacity, date, asOf)
}

// Release returns one slot. The counter never goes below zero and a
// cancelled schedule stays cancelled.
func (r *scheduleRepoPG) Release(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return scanSchedule(r.conn(ctx).QueryRow(ctx, `
		UPDATE schedules SET
			booked_slots = GREATEST(booked_slots - 1, 0),
			status = CASE
				WHEN status = 'full' AND GREATEST(booked_slots - 1, 0) < capacity THEN 'active'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+schedCols, id))
}

func (r *scheduleRepoPG) list(ctx context.Context, where, order string, args []any, limit, offset int) ([]*Schedule, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM schedules WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM schedules WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
			schedCols, where, order, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := scanSchedules(rows)
	return items, total, err
}

func (r *scheduleRepoPG) ListAvailable(ctx context.Context, asOf time.Time, limit, offset int) ([]*Schedule, int, error) {
	return r.list(ctx, `status = 'active' AND "date" >= $1 AND booked_slots < capacity`,
		`"date" ASC, "time" ASC, id ASC`, []any{asOf}, limit, offset)
}

func (r *scheduleRepoPG) ListUpcoming(ctx context.Context, asOf time.Time, limit, offset int) ([]*Schedule, int, error) {
	return r.list(ctx, `status <> 'cancelled' AND "date" >= $1`,
		`"date" ASC, "time" ASC, id ASC`, []any{asOf}, limit, offset)
}

func (r *scheduleRepoPG) ListByOfficer(ctx context.Context, officerID *uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	if officerID == nil {
		return r.list(ctx, `TRUE`, `"date" DESC, "time" DESC, id`, nil, limit, offset)
	}
	return r.list(ctx, `health_officer_id = $1`, `"date" DESC, "time" DESC, id`, []any{*officerID}, limit, offset)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ db db.Querier }

func NewAppointmentRepoPG(q db.Querier) AppointmentRepository { return &appointmentRepoPG{db: q} }

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.db)
}

const apptCols = `id, user_id, schedule_id, provider_id, child_name, vaccine_type,
	preferred_date, preferred_time, notes, status, created_at, updated_at`

const apptViewCols = `a.id, a.user_id, a.schedule_id, a.provider_id, a.child_name, a.vaccine_type,
	a.preferred_date, a.preferred_time, a.notes, a.status, a.created_at, a.updated_at,
	u.first_name || ' ' || u.last_name, u.email, u.phone,
	p.first_name || ' ' || p.last_name, p.email, p.phone`

const apptViewFrom = ` FROM appointments a
	JOIN users u ON u.id = a.user_id
	LEFT JOIN users p ON p.id = a.provider_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.ScheduleID, &a.ProviderID, &a.ChildName, &a.VaccineType,
		&a.PreferredDate, &a.PreferredTime, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanAppointmentView(row pgx.Row) (*AppointmentView, error) {
	var v AppointmentView
	var providerName, providerEmail, providerPhone *string
	a := &v.Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.ScheduleID, &a.ProviderID, &a.ChildName, &a.VaccineType,
		&a.PreferredDate, &a.PreferredTime, &a.Notes, &a.Status, &a.CreatedAt, &a.UpdatedAt,
		&v.Patient.Name, &v.Patient.Email, &v.Patient.Phone,
		&providerName, &providerEmail, &providerPhone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment")
	}
	if err != nil {
		return nil, err
	}
	v.Patient.ID = a.UserID
	if a.ProviderID != nil && providerName != nil {
		v.Provider = &Person{ID: *a.ProviderID, Name: *providerName, Phone: providerPhone}
		if providerEmail != nil {
			v.Provider.Email = *providerEmail
		}
	}
	return &v, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, user_id, schedule_id, provider_id, child_name, vaccine_type,
			preferred_date, preferred_time, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.ScheduleID, a.ProviderID, a.ChildName, a.VaccineType,
		a.PreferredDate, a.PreferredTime, a.Notes, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetView(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	return scanAppointmentView(r.conn(ctx).QueryRow(ctx, `SELECT `+apptViewCols+apptViewFrom+` WHERE a.id = $1`, id))
}

func (r *appointmentRepoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, providerID *uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $3, provider_id = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols, id, from, to, providerID))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, invalidTransition(from, to)
	}
	return a, err
}

func (r *appointmentRepoPG) AssignProvider(ctx context.Context, id uuid.UUID, providerID uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET provider_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'approved'
		RETURNING `+apptCols, id, providerID))
	if !errors.Is(err, apperr.ErrNotFound) {
		return a, err
	}
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Newf(apperr.CodeInvalidTransition,
		"providers can only be assigned to approved appointments, this one is %s", current.Status)
}

func (r *appointmentRepoPG) ListOpenBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE schedule_id = $1 AND status IN ('pending', 'approved')
		ORDER BY created_at, id
		FOR UPDATE`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments WHERE user_id = $1
		ORDER BY preferred_date DESC, created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) listViews(ctx context.Context, where, order string, args []any, limit, offset int) ([]*AppointmentView, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments a WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s%s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
			apptViewCols, apptViewFrom, where, order, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*AppointmentView
	for rows.Next() {
		v, err := scanAppointmentView(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) ListPendingReview(ctx context.Context, limit, offset int) ([]*AppointmentView, int, error) {
	return r.listViews(ctx, `a.status = 'pending'`,
		`a.preferred_date ASC, a.preferred_time ASC, a.created_at ASC`, nil, limit, offset)
}

func (r *appointmentRepoPG) ListReadyToComplete(ctx context.Context, providerID uuid.UUID, asOf time.Time, limit, offset int) ([]*AppointmentView, int, error) {
	return r.listViews(ctx, `a.provider_id = $1 AND a.status = 'approved' AND a.preferred_date <= $2`,
		`a.preferred_date ASC, a.preferred_time ASC`, []any{providerID, asOf}, limit, offset)
}

func (r *appointmentRepoPG) ListIncoming(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]*AppointmentView, int, error) {
	return r.listViews(ctx, `a.status = 'pending' AND (a.provider_id IS NULL OR a.provider_id = $1)`,
		`a.preferred_date ASC, a.preferred_time ASC, a.created_at ASC`, []any{providerID}, limit, offset)
}

func (r *appointmentRepoPG) Search(ctx context.Context, status *AppointmentStatus, limit, offset int) ([]*AppointmentView, int, error) {
	if status == nil {
		return r.listViews(ctx, `TRUE`, `a.created_at DESC, a.id`, nil, limit, offset)
	}
	return r.listViews(ctx, `a.status = $1`, `a.created_at DESC, a.id`, []any{*status}, limit, offset)
}
