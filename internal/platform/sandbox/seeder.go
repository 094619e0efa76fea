// Package sandbox loads demo data for development environments: one account
// per role, the standard vaccine categories, some extra patients and a set
// of upcoming vaccination sessions. Every step is idempotent so the seed
// command can be re-run against the same database.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/spacedreammer/vaccineSchedule/internal/domain/catalog"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/identity"
	"github.com/spacedreammer/vaccineSchedule/internal/domain/scheduling"
	"github.com/spacedreammer/vaccineSchedule/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls how much demo data is generated on top of the fixed
// accounts and categories.
type SeedConfig struct {
	ExtraPatients  int    `json:"extraPatients"`
	ExtraProviders int    `json:"extraProviders"`
	EmailDomain    string `json:"emailDomain"`
	Seed           int64  `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		ExtraPatients:  10,
		ExtraProviders: 2,
		EmailDomain:    "example.com",
	}
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

type accountDef struct {
	first, last, local, phone string
	role                      auth.Role
}

var fixedAccounts = []accountDef{
	{"System", "Admin", "admin", "0712345678", auth.RoleAdmin},
	{"Health", "Officer", "hofficer", "0712345679", auth.RoleHealthOfficer},
	{"Service", "Provider", "provider", "0712345680", auth.RoleServiceProvider},
	{"Patient", "User", "patient", "0712345681", auth.RolePatient},
}

type categoryDef struct {
	name, description string
}

var vaccineCategories = []categoryDef{
	{"MMR", "Measles, Mumps, and Rubella vaccine."},
	{"DTP", "Diphtheria, Tetanus, and Pertussis (whooping cough) vaccine."},
	{"Polio", "Poliovirus vaccine (Oral Polio Vaccine or Inactivated Polio Vaccine)."},
	{"Hepatitis B", "Vaccine for Hepatitis B virus."},
	{"Flu Vaccine", "Annual influenza vaccine."},
	{"HPV", "Human Papillomavirus vaccine."},
}

type sessionDef struct {
	title, description, time, location string
	daysAhead, capacity                int
	category                           string
}

var upcomingSessions = []sessionDef{
	{"Morning Vaccination Session", "General vaccination session for all ages.", "09:00", "Community Health Center A", 7, 20, "MMR"},
	{"Afternoon Pediatric Session", "Dedicated session for child vaccinations.", "14:00", "Childrens Clinic B", 8, 15, "DTP"},
	{"Polio Drive Day 1", "Special polio vaccination drive.", "10:30", "Local School Hall", 10, 30, "Polio"},
	{"Small Test Session", "A two-seat session for exercising the full state.", "10:00", "Test Clinic", 5, 2, "MMR"},
}

var (
	firstNames = []string{
		"Amina", "Baraka", "Neema", "Juma", "Rehema", "Daudi", "Zawadi", "Imani",
		"Faraji", "Upendo", "Salma", "Hamisi", "Aisha", "Tumaini", "Mwajuma", "Said",
	}
	lastNames = []string{
		"Mushi", "Kweka", "Mrema", "Lyimo", "Massawe", "Temba", "Shirima", "Kimaro",
		"Mollel", "Swai", "Minja", "Urio",
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic demo users.
type DataGenerator struct {
	rng     *rand.Rand
	counter int
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("07%08d", g.rng.Intn(100000000))
}

// GenerateUser returns a user with a random name. Emails are numbered in
// generation order, so the same config yields the same addresses.
func (g *DataGenerator) GenerateUser(role auth.Role, domain string) *identity.User {
	g.counter++
	first, last := g.pick(firstNames), g.pick(lastNames)
	phone := g.randomPhone()
	return &identity.User{
		FirstName: first,
		LastName:  last,
		Email:     fmt.Sprintf("%s%02d@%s", emailPrefix(role), g.counter, domain),
		Phone:     &phone,
		Role:      role,
	}
}

func emailPrefix(r auth.Role) string {
	switch r {
	case auth.RoleServiceProvider:
		return "provider"
	case auth.RoleHealthOfficer:
		return "officer"
	}
	return string(r)
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

type UserStore interface {
	Upsert(ctx context.Context, u *identity.User) error
}

type CategoryStore interface {
	Upsert(ctx context.Context, c *catalog.Category) error
}

// ScheduleStore is satisfied by *scheduling.Service. Sessions go through the
// service so they pass the same validation as API-created schedules.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, actor auth.Actor, in scheduling.ScheduleInput) (*scheduling.Schedule, error)
	ListSchedules(ctx context.Context, actor auth.Actor, limit, offset int) ([]*scheduling.Schedule, int, error)
	Today() time.Time
}

// SeedResult summarizes a seed run.
type SeedResult struct {
	Users      int           `json:"users"`
	Categories int           `json:"categories"`
	Schedules  int           `json:"schedules"`
	Duration   time.Duration `json:"duration"`

	// Accounts maps the fixed account emails to their ids, for minting dev
	// tokens.
	Accounts map[string]uuid.UUID `json:"accounts"`
}

type Seeder struct {
	generator  *DataGenerator
	config     SeedConfig
	users      UserStore
	categories CategoryStore
	schedules  ScheduleStore
	logger     zerolog.Logger
}

func NewSeeder(config SeedConfig, users UserStore, categories CategoryStore, schedules ScheduleStore, logger zerolog.Logger) *Seeder {
	if config.EmailDomain == "" {
		config.EmailDomain = DefaultSeedConfig().EmailDomain
	}
	return &Seeder{
		generator:  NewDataGenerator(config.Seed),
		config:     config,
		users:      users,
		categories: categories,
		schedules:  schedules,
		logger:     logger,
	}
}

// Run seeds accounts, then categories, then sessions owned by the fixed
// health officer. Sessions are only created when that officer has none yet.
func (s *Seeder) Run(ctx context.Context) (*SeedResult, error) {
	start := time.Now()
	result := &SeedResult{Accounts: make(map[string]uuid.UUID, len(fixedAccounts))}

	var officer auth.Actor
	for _, a := range fixedAccounts {
		phone := a.phone
		u := &identity.User{
			FirstName: a.first,
			LastName:  a.last,
			Email:     a.local + "@" + s.config.EmailDomain,
			Phone:     &phone,
			Role:      a.role,
		}
		if err := s.users.Upsert(ctx, u); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		result.Accounts[u.Email] = u.ID
		result.Users++
		if a.role == auth.RoleHealthOfficer {
			officer = u.Actor()
		}
	}

	extra := []struct {
		role auth.Role
		n    int
	}{
		{auth.RolePatient, s.config.ExtraPatients},
		{auth.RoleServiceProvider, s.config.ExtraProviders},
	}
	for _, e := range extra {
		for i := 0; i < e.n; i++ {
			u := s.generator.GenerateUser(e.role, s.config.EmailDomain)
			if err := s.users.Upsert(ctx, u); err != nil {
				return nil, fmt.Errorf("seed user %s: %w", u.Email, err)
			}
			result.Users++
		}
	}

	categoryIDs := make(map[string]uuid.UUID, len(vaccineCategories))
	for _, def := range vaccineCategories {
		desc := def.description
		c := &catalog.Category{Name: def.name, Description: &desc, IsActive: true}
		if err := s.categories.Upsert(ctx, c); err != nil {
			return nil, fmt.Errorf("seed category %s: %w", def.name, err)
		}
		categoryIDs[def.name] = c.ID
		result.Categories++
	}

	_, existing, err := s.schedules.ListSchedules(ctx, officer, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("list seeded schedules: %w", err)
	}
	if existing == 0 {
		today := s.schedules.Today()
		for _, def := range upcomingSessions {
			desc := def.description
			in := scheduling.ScheduleInput{
				Title:       def.title,
				Description: &desc,
				Date:        today.AddDate(0, 0, def.daysAhead),
				Time:        def.time,
				Location:    def.location,
				Capacity:    def.capacity,
			}
			if id, ok := categoryIDs[def.category]; ok {
				in.VaccineCategoryID = &id
			}
			if _, err := s.schedules.CreateSchedule(ctx, officer, in); err != nil {
				return nil, fmt.Errorf("seed schedule %q: %w", def.title, err)
			}
			result.Schedules++
		}
	} else {
		s.logger.Info().Int("existing", existing).Msg("officer already has schedules, skipping sessions")
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Int("users", result.Users).
		Int("categories", result.Categories).
		Int("schedules", result.Schedules).
		Dur("took", result.Duration).
		Msg("seed complete")
	return result, nil
}
