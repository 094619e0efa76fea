package feedback

import (
	"context"
	"iter"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spacedreammer/vaccineSchedule/internal/platform/apperr"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/telemetry"
	"github.com/spacedreammer/vaccineSchedule/pkg/pagination"
)

const (
	maxCommentLen   = 1000
	defaultPageSize = 50
)

// Service is the feedback gate: it accepts one rating per completed
// appointment from the patient who booked it.
type Service struct {
	repo     Repository
	tx       TxRunner
	logger   zerolog.Logger
	pageSize int
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithPageSize sets how many rows each keyset page fetches while iterating.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func NewService(repo Repository, tx TxRunner, opts ...Option) *Service {
	s := &Service{repo: repo, tx: tx, logger: zerolog.Nop(), pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateSubmission(in *Submission) error {
	if in.Rating < 1 || in.Rating > 5 {
		return apperr.Validation("rating", "rating must be between 1 and 5")
	}
	if in.Comment != nil {
		c := strings.TrimSpace(*in.Comment)
		if utf8.RuneCountInString(c) > maxCommentLen {
			return apperr.Validation("comment", "comment must be at most 1000 characters")
		}
		if c == "" {
			in.Comment = nil
		} else {
			in.Comment = &c
		}
	}
	return nil
}

// Submit records the actor's feedback on a completed appointment they own.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, in Submission) (fb *Feedback, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = strings.ToLower(string(apperr.CodeOf(err)))
		}
		telemetry.RecordFeedback(result)
	}()

	if !auth.Permits(actor.Role, auth.PermSubmitFeedback) {
		return nil, apperr.Newf(apperr.CodeForbidden, "%s may not submit feedback", actor.Role)
	}
	if err := validateSubmission(&in); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		appt, err := s.repo.Appointment(ctx, in.AppointmentID)
		if err != nil {
			return err
		}
		if appt.UserID != actor.ID {
			return apperr.New(apperr.CodeNotEligible, "only the patient who booked the appointment may rate it")
		}
		if appt.Status != "completed" {
			return apperr.Newf(apperr.CodeNotEligible, "appointment is %s, feedback opens once it is completed", appt.Status)
		}
		exists, err := s.repo.ExistsForAppointment(ctx, appt.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.CodeDuplicateFeedback, "feedback already submitted for this appointment")
		}
		fb = &Feedback{
			UserID:        actor.ID,
			AppointmentID: appt.ID,
			ProviderID:    appt.ProviderID,
			Rating:        in.Rating,
			Comment:       in.Comment,
		}
		return s.repo.Create(ctx, fb)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("feedback_id", fb.ID.String()).
		Str("appointment_id", fb.AppointmentID.String()).
		Int("rating", fb.Rating).
		Msg("feedback submitted")
	return fb, nil
}

// canViewProvider lets providers see their own feedback and officers or
// admins see anyone's.
func canViewProvider(actor auth.Actor, providerID uuid.UUID) error {
	if !auth.Permits(actor.Role, auth.PermViewProviderFeedback) {
		return apperr.Newf(apperr.CodeForbidden, "%s may not view provider feedback", actor.Role)
	}
	if actor.Role == auth.RoleServiceProvider && actor.ID != providerID {
		return apperr.New(apperr.CodeForbidden, "providers may only view their own feedback")
	}
	return nil
}

// ListForProvider returns every feedback entry for providerID, newest first.
// Rows are fetched a page at a time as the caller ranges; each range starts
// over from the newest entry.
func (s *Service) ListForProvider(ctx context.Context, actor auth.Actor, providerID uuid.UUID) (iter.Seq2[ProviderFeedback, error], error) {
	if err := canViewProvider(actor, providerID); err != nil {
		return nil, err
	}
	return s.all(ctx, providerID), nil
}

func (s *Service) all(ctx context.Context, providerID uuid.UUID) iter.Seq2[ProviderFeedback, error] {
	return func(yield func(ProviderFeedback, error) bool) {
		var after pagination.Cursor
		for {
			page, err := s.repo.ListForProvider(ctx, providerID, after, s.pageSize)
			if err != nil {
				yield(ProviderFeedback{}, err)
				return
			}
			for _, pf := range page {
				if !yield(*pf, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			last := page[len(page)-1]
			after = pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
		}
	}
}

// ProviderPage returns one keyset page of providerID's feedback and the
// cursor for the next page, zero when there is none.
func (s *Service) ProviderPage(ctx context.Context, actor auth.Actor, providerID uuid.UUID, p pagination.KeysetParams) ([]*ProviderFeedback, pagination.Cursor, error) {
	if err := canViewProvider(actor, providerID); err != nil {
		return nil, pagination.Cursor{}, err
	}
	// One extra row tells us whether another page exists.
	items, err := s.repo.ListForProvider(ctx, providerID, p.After, p.Limit+1)
	if err != nil {
		return nil, pagination.Cursor{}, err
	}
	if len(items) <= p.Limit {
		return items, pagination.Cursor{}, nil
	}
	items = items[:p.Limit]
	last := items[len(items)-1]
	return items, pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}

// ListMine is the calling patient's feedback history.
func (s *Service) ListMine(ctx context.Context, actor auth.Actor, limit, offset int) ([]*Feedback, int, error) {
	if !auth.Permits(actor.Role, auth.PermSubmitFeedback) {
		return nil, 0, apperr.Newf(apperr.CodeForbidden, "%s has no feedback history", actor.Role)
	}
	return s.repo.ListByUser(ctx, actor.ID, limit, offset)
}

// AverageRating returns providerID's mean rating rounded to two places.
func (s *Service) AverageRating(ctx context.Context, actor auth.Actor, providerID uuid.UUID) (*Rating, error) {
	if err := canViewProvider(actor, providerID); err != nil {
		return nil, err
	}
	avg, count, err := s.repo.AverageRating(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return &Rating{ProviderID: providerID, Average: Round2(avg), Count: count}, nil
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
