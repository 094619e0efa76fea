package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/spacedreammer/vaccineSchedule/internal/domain/feedback"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/scheduling"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/cache"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/telemetry"
)

const (
	analyticsKey    = "dashboard:analytics"
	growthMonths    = 12
	feedbackWindow  = 7 * 24 * time.Hour
	defaultCacheTTL = 30 * time.Second
)

var appointmentStatuses = []scheduling.AppointmentStatus{
	scheduling.StatusPending, scheduling.StatusApproved, scheduling.StatusRejected,
	scheduling.StatusCompleted, scheduling.StatusCancelled,
}

// Service computes the per-role dashboard counters. Every read goes
// straight to the database or the cache; nothing here writes core state.
type Service struct {
	repo   Repository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
	loc    *time.Location
	now    func() time.Time
}

type Option func(*Service)

func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		cache:  cache.Noop{},
		ttl:    defaultCacheTTL,
		logger: zerolog.Nop(),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today returns the local calendar date as midnight UTC, the form DATE
// columns compare against.
func (s *Service) today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// localDay returns the bounds of the current day in the service timezone.
func (s *Service) localDay() (time.Time, time.Time) {
	y, m, d := s.now().In(s.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func unavailable(err error) error {
	return apperr.Wrap(apperr.CodeUnavailable, "dashboard statistics are temporarily unavailable", err)
}

func count(g *errgroup.Group, ctx context.Context, repo Repository, dst *int, m Measure, args ...any) {
	g.Go(func() error {
		n, err := repo.Count(ctx, m, args...)
		*dst = n
		return err
	})
}

// cached serves key from the cache when present, otherwise computes it with
// load and stores the result. Cache failures are logged and bypassed.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (*T, error)) (*T, error) {
	var v T
	hit, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache read failed")
	}
	telemetry.RecordDashboardCache(hit)
	if hit {
		return &v, nil
	}
	out, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, out, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dashboard cache write failed")
	}
	return out, nil
}

// ForActor returns the stats block for the caller's role.
func (s *Service) ForActor(ctx context.Context, actor auth.Actor) (any, error) {
	switch actor.Role {
	case auth.RolePatient:
		return s.Patient(ctx, actor.ID)
	case auth.RoleHealthOfficer:
		return s.Officer(ctx)
	case auth.RoleServiceProvider:
		return s.Provider(ctx, actor.ID)
	case auth.RoleAdmin:
		return s.Admin(ctx)
	}
	return nil, apperr.Newf(apperr.CodeForbidden, "no dashboard for role %q", actor.Role)
}

func (s *Service) Patient(ctx context.Context, userID uuid.UUID) (*PatientStats, error) {
	return cached(ctx, s, "dashboard:patient:"+userID.String(), func(ctx context.Context) (*PatientStats, error) {
		var st PatientStats
		g, gctx := errgroup.WithContext(ctx)
		count(g, gctx, s.repo, &st.PendingAppointments, measurePatientPending, userID)
		count(g, gctx, s.repo, &st.CompletedAppointments, measurePatientCompleted, userID)
		count(g, gctx, s.repo, &st.FeedbackGiven, measurePatientFeedback, userID)
		if err := g.Wait(); err != nil {
			return nil, unavailable(err)
		}
		return &st, nil
	})
}

func (s *Service) Officer(ctx context.Context) (*OfficerStats, error) {
	return cached(ctx, s, "dashboard:officer", func(ctx context.Context) (*OfficerStats, error) {
		var st OfficerStats
		g, gctx := errgroup.WithContext(ctx)
		count(g, gctx, s.repo, &st.PendingAppointments, measurePendingTotal)
		count(g, gctx, s.repo, &st.TotalVaccinations, measureCompletedTotal)
		count(g, gctx, s.repo, &st.ActiveSchedules, measureActiveSchedules, s.today())
		count(g, gctx, s.repo, &st.NewFeedback, measureFeedbackSince, s.now().Add(-feedbackWindow))
		if err := g.Wait(); err != nil {
			return nil, unavailable(err)
		}
		return &st, nil
	})
}

func (s *Service) Provider(ctx context.Context, providerID uuid.UUID) (*ProviderStats, error) {
	return cached(ctx, s, "dashboard:provider:"+providerID.String(), func(ctx context.Context) (*ProviderStats, error) {
		var st ProviderStats
		dayStart, dayEnd := s.localDay()
		g, gctx := errgroup.WithContext(ctx)
		count(g, gctx, s.repo, &st.PendingRequests, measureIncomingPending)
		count(g, gctx, s.repo, &st.CompletedToday, measureCompletedBetween, providerID, dayStart, dayEnd)
		count(g, gctx, s.repo, &st.UpcomingAppointments, measureUpcomingApproved, providerID, s.today())
		g.Go(func() error {
			avg, err := s.repo.Mean(gctx, measureProviderRating, providerID)
			st.AverageRating = feedback.Round2(avg)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, unavailable(err)
		}
		return &st, nil
	})
}

func (s *Service) Admin(ctx context.Context) (*AdminStats, error) {
	return cached(ctx, s, "dashboard:admin", func(ctx context.Context) (*AdminStats, error) {
		var st AdminStats
		g, gctx := errgroup.WithContext(ctx)
		count(g, gctx, s.repo, &st.TotalUsers, measureUsers)
		count(g, gctx, s.repo, &st.ServiceProviders, measureProviders)
		count(g, gctx, s.repo, &st.TotalAppointments, measureAppointments)
		count(g, gctx, s.repo, &st.ActiveCategories, measureActiveCategories)
		if err := g.Wait(); err != nil {
			return nil, unavailable(err)
		}
		return &st, nil
	})
}

// Analytics returns the system-wide charts. Only admins may read them.
func (s *Service) Analytics(ctx context.Context, actor auth.Actor) (*Analytics, error) {
	if !auth.Permits(actor.Role, auth.PermViewAnalytics) {
		return nil, apperr.Newf(apperr.CodeForbidden, "%s may not view analytics", actor.Role)
	}
	return cached(ctx, s, analyticsKey, s.computeAnalytics)
}

// RefreshAnalytics recomputes the analytics and overwrites the cached copy.
func (s *Service) RefreshAnalytics(ctx context.Context) error {
	a, err := s.computeAnalytics(ctx)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, analyticsKey, a, s.ttl)
}

func (s *Service) computeAnalytics(ctx context.Context) (*Analytics, error) {
	now := s.now()
	first := firstMonth(now.In(s.loc), growthMonths)
	a := &Analytics{GeneratedAt: now.UTC()}

	var growth []MonthCount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		growth, err = s.repo.UserGrowth(gctx, first, s.loc)
		return err
	})
	g.Go(func() error {
		var err error
		a.StatusCounts, err = s.repo.StatusCounts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable(err)
	}

	a.UserGrowth = fillMonths(first, growthMonths, growth)
	if a.StatusCounts == nil {
		a.StatusCounts = make(map[string]int, len(appointmentStatuses))
	}
	for _, st := range appointmentStatuses {
		n := a.StatusCounts[string(st)]
		a.StatusCounts[string(st)] = n
		a.TotalRequests += n
	}
	return a, nil
}

// firstMonth returns the start of the month n-1 months before t, so that
// [firstMonth, t] spans n calendar months.
func firstMonth(t time.Time, n int) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, -(n - 1), 0)
}

// fillMonths expands a sparse series into n consecutive months starting at
// first, with zero counts for missing months.
func fillMonths(first time.Time, n int, sparse []MonthCount) []MonthCount {
	byMonth := make(map[string]int, len(sparse))
	for _, mc := range sparse {
		byMonth[mc.Month] = mc.Count
	}
	out := make([]MonthCount, n)
	for i := range out {
		month := first.AddDate(0, i, 0).Format("2006-01")
		out[i] = MonthCount{Month: month, Count: byMonth[month]}
	}
	return out
}
