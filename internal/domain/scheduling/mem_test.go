package scheduling

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

// memStore backs the in-memory repositories. WithTx serializes callers the
// way row locks would and restores the snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	schedules    map[uuid.UUID]Schedule
	appointments map[uuid.UUID]Appointment
	roles        map[uuid.UUID]auth.Role
	seq          int
	// locks records row locks taken, in order.
	locks []string
}

func newMemStore() *memStore {
	return &memStore{
		schedules:    make(map[uuid.UUID]Schedule),
		appointments: make(map[uuid.UUID]Appointment),
		roles:        make(map[uuid.UUID]auth.Role),
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	scheds := make(map[uuid.UUID]Schedule, len(m.schedules))
	for k, v := range m.schedules {
		scheds[k] = v
	}
	appts := make(map[uuid.UUID]Appointment, len(m.appointments))
	for k, v := range m.appointments {
		appts[k] = v
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.schedules, m.appointments = scheds, appts
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) RoleOf(_ context.Context, id uuid.UUID) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return "", apperr.NotFound("user")
	}
	return r, nil
}

func (m *memStore) lock(kind string) {
	m.mu.Lock()
	m.locks = append(m.locks, kind)
	m.mu.Unlock()
}

func (m *memStore) lockOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.locks...)
}

func (m *memStore) schedule(id uuid.UUID) Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schedules[id]
}

func (m *memStore) appointment(id uuid.UUID) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[id]
}

func (m *memStore) appointmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appointments)
}

func page[T any](items []T, limit, offset int) ([]T, int) {
	total := len(items)
	if offset >= total {
		return nil, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return items[offset:end], total
}

// -- schedules --

type memSchedules struct{ m *memStore }

func (r memSchedules) Create(_ context.Context, s *Schedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s.ID = uuid.New()
	s.BookedSlots = 0
	s.Status = ScheduleActive
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	r.m.schedules[s.ID] = *s
	return nil
}

func (r memSchedules) GetByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.schedules[id]
	if !ok {
		return nil, apperr.NotFound("schedule")
	}
	return &s, nil
}

func (r memSchedules) Update(_ context.Context, s *Schedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.schedules[s.ID]
	if !ok {
		return apperr.NotFound("schedule")
	}
	if cur.BookedSlots > s.Capacity {
		return apperr.New(apperr.CodeCapacityExceeded, "capacity below booked slots")
	}
	s.BookedSlots = cur.BookedSlots
	s.Status = derivedStatus(cur.Status, cur.BookedSlots, s.Capacity)
	r.m.schedules[s.ID] = *s
	return nil
}

func (r memSchedules) Delete(_ context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.schedules[id]; !ok {
		return apperr.NotFound("schedule")
	}
	delete(r.m.schedules, id)
	for k, a := range r.m.appointments {
		if a.ScheduleID != nil && *a.ScheduleID == id {
			a.ScheduleID = nil
			r.m.appointments[k] = a
		}
	}
	return nil
}

func (r memSchedules) Cancel(_ context.Context, id uuid.UUID) (*Schedule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.schedules[id]
	if !ok {
		return nil, apperr.NotFound("schedule")
	}
	s.Status = ScheduleCancelled
	r.m.schedules[id] = s
	return &s, nil
}

func (r memSchedules) LockForUpdate(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	r.m.lock("schedule")
	return r.GetByID(ctx, id)
}

func (r memSchedules) Reserve(_ context.Context, id uuid.UUID, asOf time.Time) (*Schedule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.schedules[id]
	if !ok {
		return nil, apperr.NotFound("schedule")
	}
	if s.Status != ScheduleActive || s.BookedSlots >= s.Capacity || s.Date.Before(asOf) {
		return nil, unavailable(s.Status, s.BookedSlots, s.Capacity, s.Date, asOf)
	}
	s.BookedSlots++
	s.Status = derivedStatus(s.Status, s.BookedSlots, s.Capacity)
	r.m.schedules[id] = s
	return &s, nil
}

func (r memSchedules) Release(_ context.Context, id uuid.UUID) (*Schedule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.schedules[id]
	if !ok {
		return nil, apperr.NotFound("schedule")
	}
	if s.BookedSlots > 0 {
		s.BookedSlots--
	}
	s.Status = derivedStatus(s.Status, s.BookedSlots, s.Capacity)
	r.m.schedules[id] = s
	return &s, nil
}

func (r memSchedules) filter(keep func(Schedule) bool, limit, offset int) ([]*Schedule, int, error) {
	r.m.mu.Lock()
	var out []*Schedule
	for _, s := range r.m.schedules {
		if keep(s) {
			s := s
			out = append(out, &s)
		}
	}
	r.m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	items, total := page(out, limit, offset)
	return items, total, nil
}

func (r memSchedules) ListAvailable(_ context.Context, asOf time.Time, limit, offset int) ([]*Schedule, int, error) {
	return r.filter(func(s Schedule) bool {
		return s.Status == ScheduleActive && s.BookedSlots < s.Capacity && !s.Date.Before(asOf)
	}, limit, offset)
}

func (r memSchedules) ListByOfficer(_ context.Context, officerID *uuid.UUID, limit, offset int) ([]*Schedule, int, error) {
	return r.filter(func(s Schedule) bool {
		return officerID == nil || s.HealthOfficerID == *officerID
	}, limit, offset)
}

func (r memSchedules) ListUpcoming(_ context.Context, asOf time.Time, limit, offset int) ([]*Schedule, int, error) {
	return r.filter(func(s Schedule) bool {
		return s.Status != ScheduleCancelled && !s.Date.Before(asOf)
	}, limit, offset)
}

// -- appointments --

type memAppointments struct{ m *memStore }

func (r memAppointments) Create(_ context.Context, a *Appointment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.seq++
	a.ID = uuid.New()
	a.CreatedAt = time.Now().Add(time.Duration(r.m.seq) * time.Microsecond)
	a.UpdatedAt = a.CreatedAt
	r.m.appointments[a.ID] = *a
	return nil
}

func (r memAppointments) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.appointments[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	return &a, nil
}

func (r memAppointments) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.m.lock("appointment")
	return r.GetByID(ctx, id)
}

func view(a Appointment) *AppointmentView {
	v := &AppointmentView{Appointment: a, Patient: Person{ID: a.UserID, Name: "patient"}}
	if a.ProviderID != nil {
		v.Provider = &Person{ID: *a.ProviderID, Name: "provider"}
	}
	return v
}

func (r memAppointments) GetView(ctx context.Context, id uuid.UUID) (*AppointmentView, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return view(*a), nil
}

func (r memAppointments) UpdateStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, providerID *uuid.UUID) (*Appointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.appointments[id]
	if !ok || a.Status != from {
		return nil, invalidTransition(from, to)
	}
	a.Status = to
	a.ProviderID = providerID
	a.UpdatedAt = time.Now()
	r.m.appointments[id] = a
	return &a, nil
}

func (r memAppointments) AssignProvider(_ context.Context, id uuid.UUID, providerID uuid.UUID) (*Appointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.appointments[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	if a.Status != StatusApproved {
		return nil, apperr.Newf(apperr.CodeInvalidTransition, "appointment is %s", a.Status)
	}
	a.ProviderID = &providerID
	r.m.appointments[id] = a
	return &a, nil
}

func (r memAppointments) ListOpenBySchedule(_ context.Context, scheduleID uuid.UUID) ([]*Appointment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*Appointment
	for _, a := range r.m.appointments {
		if a.ScheduleID != nil && *a.ScheduleID == scheduleID &&
			(a.Status == StatusPending || a.Status == StatusApproved) {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (r memAppointments) ListByPatient(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	r.m.mu.Lock()
	var out []*Appointment
	for _, a := range r.m.appointments {
		if a.UserID == userID {
			a := a
			out = append(out, &a)
		}
	}
	r.m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PreferredDate.After(out[j].PreferredDate) })
	items, total := page(out, limit, offset)
	return items, total, nil
}

func (r memAppointments) views(keep func(Appointment) bool, limit, offset int) ([]*AppointmentView, int, error) {
	r.m.mu.Lock()
	var out []*AppointmentView
	for _, a := range r.m.appointments {
		if keep(a) {
			out = append(out, view(a))
		}
	}
	r.m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	items, total := page(out, limit, offset)
	return items, total, nil
}

func (r memAppointments) ListPendingReview(_ context.Context, limit, offset int) ([]*AppointmentView, int, error) {
	return r.views(func(a Appointment) bool { return a.Status == StatusPending }, limit, offset)
}

func (r memAppointments) ListReadyToComplete(_ context.Context, providerID uuid.UUID, asOf time.Time, limit, offset int) ([]*AppointmentView, int, error) {
	return r.views(func(a Appointment) bool {
		return a.Status == StatusApproved && a.ProviderID != nil && *a.ProviderID == providerID &&
			!a.PreferredDate.After(asOf)
	}, limit, offset)
}

func (r memAppointments) ListIncoming(_ context.Context, providerID uuid.UUID, limit, offset int) ([]*AppointmentView, int, error) {
	return r.views(func(a Appointment) bool {
		return a.Status == StatusPending && (a.ProviderID == nil || *a.ProviderID == providerID)
	}, limit, offset)
}

func (r memAppointments) Search(_ context.Context, status *AppointmentStatus, limit, offset int) ([]*AppointmentView, int, error) {
	return r.views(func(a Appointment) bool { return status == nil || a.Status == *status }, limit, offset)
}

// -- fixture --

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// day returns the calendar date offset days from testNow.
func day(offset int) time.Time {
	return time.Date(2026, 3, 10+offset, 0, 0, 0, 0, time.UTC)
}

func text(s string) *string { return &s }

type fixture struct {
	svc      *Service
	store    *memStore
	patient  auth.Actor
	officer  auth.Actor
	provider auth.Actor
	admin    auth.Actor
}

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store:    store,
		patient:  auth.Actor{ID: uuid.New(), Role: auth.RolePatient},
		officer:  auth.Actor{ID: uuid.New(), Role: auth.RoleHealthOfficer},
		provider: auth.Actor{ID: uuid.New(), Role: auth.RoleServiceProvider},
		admin:    auth.Actor{ID: uuid.New(), Role: auth.RoleAdmin},
	}
	for _, a := range []auth.Actor{f.patient, f.officer, f.provider, f.admin} {
		store.roles[a.ID] = a.Role
	}
	f.svc = NewService(memSchedules{store}, memAppointments{store}, store, store,
		WithClock(func() time.Time { return testNow }))
	return f
}

func (f *fixture) newSchedule(capacity int) *Schedule {
	s, err := f.svc.CreateSchedule(context.Background(), f.officer, ScheduleInput{
		Title:    "Measles drive",
		Date:     day(2),
		Time:     "10:00",
		Location: "Ward 3 clinic",
		Capacity: capacity,
	})
	if err != nil {
		panic(fmt.Sprintf("create schedule: %v", err))
	}
	return s
}

func (f *fixture) book(patient auth.Actor, scheduleID *uuid.UUID) (*Appointment, error) {
	return f.svc.CreateAppointment(context.Background(), patient, NewAppointment{
		ScheduleID:    scheduleID,
		ChildName:     text("Amani"),
		VaccineType:   text("MMR"),
		PreferredDate: day(2),
		PreferredTime: "10:00",
	})
}
