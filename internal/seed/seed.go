// Package seed fills an empty store with a superuser, managers, communities and
// claimable projects for local development.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/pkg/auth"
	"github.com/editorhub/editors/pkg/logging"
)

const (
	SuperuserName   = "test"
	DefaultPassword = "test"
	SampleVideo     = "sample.mp4"
	ProjectReward   = 200
	managerCount    = 10
	lockLead        = 3 * 24 * time.Hour
)

// ErrAlreadySeeded is returned when the superuser already exists
var ErrAlreadySeeded = errors.New("store already seeded")

// Store is what seeding writes to
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	CreateCommunity(ctx context.Context, community *models.Community) error
	CreateProject(ctx context.Context, project *models.Project) error
}

// Summary counts what was created
type Summary struct {
	Users       int
	Communities int
	Projects    int
}

// Seeder creates the fixture data
type Seeder struct {
	store Store
	rng   *rand.Rand
	now   func() time.Time
}

// New creates a Seeder. A zero seed picks one from the clock.
func New(store Store, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		store: store,
		rng:   rand.New(rand.NewSource(seed)),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var (
	companyWords = []string{"Northwind", "Bluebird", "Copperleaf", "Lumen", "Harbor", "Pinecrest", "Quarry", "Meridian"}
	phraseWords  = []string{"Reactive", "Seamless", "Focused", "Adaptive", "Open", "Layered", "Balanced", "Grounded"}
	nounWords    = []string{"montage", "interview cut", "trailer", "highlight reel", "tutorial", "recap"}
)

func (s *Seeder) pick(words []string) string {
	return words[s.rng.Intn(len(words))]
}

// Seed creates the superuser and managerCount managers, each owning one
// community with one to three projects whose locks expire three days out.
func (s *Seeder) Seed(ctx context.Context) (*Summary, error) {
	existing, err := s.store.GetUserByUsername(ctx, SuperuserName)
	if err != nil {
		return nil, fmt.Errorf("failed to check for superuser: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadySeeded
	}

	password, err := auth.HashPassword(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	summary := &Summary{}
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		summary = &Summary{}
		admin := &models.User{
			Username:    SuperuserName,
			Email:       SuperuserName + "@test.com",
			Password:    password,
			IsSuperuser: true,
			IsActive:    true,
			DateJoined:  s.now(),
		}
		if err := s.store.CreateUser(ctx, admin); err != nil {
			return fmt.Errorf("failed to create superuser: %w", err)
		}
		summary.Users++

		for i := 0; i < managerCount; i++ {
			projects, err := s.seedManager(ctx, i, password)
			if err != nil {
				return err
			}
			summary.Users++
			summary.Communities++
			summary.Projects += projects
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.GetLogger().Info("Seeded store",
		zap.Int("users", summary.Users),
		zap.Int("communities", summary.Communities),
		zap.Int("projects", summary.Projects))
	return summary, nil
}

func (s *Seeder) seedManager(ctx context.Context, num int, password string) (int, error) {
	manager := &models.User{
		Username:   fmt.Sprintf("manager%d", num),
		Email:      fmt.Sprintf("manager%d@test.com", num),
		Password:   password,
		IsActive:   true,
		DateJoined: s.now(),
	}
	if err := s.store.CreateUser(ctx, manager); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", manager.Username, err)
	}

	community := &models.Community{
		Name:    fmt.Sprintf("%s %s", s.pick(companyWords), s.pick(companyWords)),
		OwnerID: manager.ID,
	}
	if err := s.store.CreateCommunity(ctx, community); err != nil {
		return 0, fmt.Errorf("failed to create community for %s: %w", manager.Username, err)
	}

	count := 1 + s.rng.Intn(3)
	expire := s.now().Add(lockLead)
	for j := 0; j < count; j++ {
		project := &models.Project{
			CommunityID: community.ID,
			Title:       fmt.Sprintf("%s %s", s.pick(phraseWords), s.pick(nounWords)),
			Description: fmt.Sprintf("%s %s for %s", s.pick(phraseWords), s.pick(nounWords), community.Name),
			Reward:      ProjectReward,
			Video:       SampleVideo,
			LockExpire:  sql.NullTime{Time: expire, Valid: true},
		}
		if err := s.store.CreateProject(ctx, project); err != nil {
			return 0, fmt.Errorf("failed to create project: %w", err)
		}
	}
	return count, nil
}
