// Package lock grants editors time-boxed exclusive claims on projects.
//
// A claim is honored while lock_expire is in the future. Expiry is evaluated
// lazily on every read and claim; nothing sweeps stale locks and there is no
// explicit release. The store's conditional update is the only arbiter between
// concurrent claimers.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/internal/policy"
	"github.com/editorhub/editors/pkg/logging"
	"github.com/editorhub/editors/pkg/telemetry"
)

var (
	// ErrNotFound is returned when the project does not exist
	ErrNotFound = errors.New("project not found")
	// ErrConflict is returned when another unexpired claim holds the project
	ErrConflict = errors.New("project already claimed")
	// ErrNoIdentity is returned when no requester is supplied
	ErrNoIdentity = errors.New("missing requester")
)

// Store is the subset of the entity store the lock manager needs.
type Store interface {
	// GetProject returns nil, nil when the project does not exist.
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	// ClaimProject sets lock_user/lock_expire only if the project is available
	// at now, as one atomic conditional update. It reports whether a row changed.
	ClaimProject(ctx context.Context, projectID, userID int64, now, expire time.Time) (bool, error)
	ListAvailableProjects(ctx context.Context, now time.Time, page models.Page) ([]*models.Project, error)
	ListProjectsLockedBy(ctx context.Context, userID int64, now time.Time, page models.Page) ([]*models.Project, error)
}

// Claim is a granted lock
type Claim struct {
	Project *models.Project
	UserID  int64
	Expires time.Time
}

// Manager implements claim and the availability queries
type Manager struct {
	store    Store
	duration time.Duration
	now      func() time.Time
	logger   *zap.Logger
	claims   metric.Int64Counter
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger overrides the component logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a lock manager granting claims of the given duration
func NewManager(store Store, duration time.Duration, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		duration: duration,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logging.WithComponent("lock"),
	}
	for _, opt := range opts {
		opt(m)
	}

	claims, err := telemetry.Meter().Int64Counter("editors.lock.claims",
		metric.WithDescription("Project claim attempts by result"))
	if err != nil {
		m.logger.Warn("Failed to create claim counter", zap.Error(err))
		claims = noop.Int64Counter{}
	}
	m.claims = claims

	return m
}

// Duration returns how long a granted claim lasts
func (m *Manager) Duration() time.Duration {
	return m.duration
}

// Claim grants requester an exclusive lock on the project for the configured
// duration. It fails with ErrNotFound or ErrConflict; a conflict never changes
// the existing lock.
func (m *Manager) Claim(ctx context.Context, projectID int64, requester *models.User) (*Claim, error) {
	ctx, span := telemetry.StartSpan(ctx, "lock.claim")
	defer span.End()
	span.SetAttributes(attribute.Int64("project.id", projectID))

	claim, err := m.claim(ctx, projectID, requester)
	m.claims.Add(ctx, 1, metric.WithAttributes(attribute.String("result", claimResult(err))))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return claim, nil
}

func (m *Manager) claim(ctx context.Context, projectID int64, requester *models.User) (*Claim, error) {
	if requester == nil {
		return nil, ErrNoIdentity
	}
	logger := logging.FromContext(ctx).With(
		zap.String("component", "lock"),
		zap.Int64("project_id", projectID),
		zap.Int64("user_id", requester.ID),
	)

	project, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, projectID)
	}

	now := m.now()
	if d := policy.CanClaim(project, requester, now); !d.Allowed {
		logger.Debug("Claim rejected", zap.String("reason", d.Reason))
		return nil, fmt.Errorf("%w: %s", ErrConflict, d.Reason)
	}

	// The read above is advisory; the conditional update decides the race.
	expire := now.Add(m.duration)
	ok, err := m.store.ClaimProject(ctx, projectID, requester.ID, now, expire)
	if err != nil {
		return nil, fmt.Errorf("failed to claim project %d: %w", projectID, err)
	}
	if !ok {
		logger.Debug("Claim lost race")
		return nil, fmt.Errorf("%w: %s", ErrConflict, policy.ReasonAlreadyClaimed)
	}

	project, err = m.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload project %d: %w", projectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, projectID)
	}

	logger.Info("Project claimed", zap.Time("lock_expire", expire))
	return &Claim{Project: project, UserID: requester.ID, Expires: expire}, nil
}

// ListAvailable returns projects nobody holds an unexpired claim on, most
// recently expired first and never-claimed projects last.
func (m *Manager) ListAvailable(ctx context.Context, page models.Page) ([]*models.Project, error) {
	ctx, span := telemetry.StartSpan(ctx, "lock.list_available")
	defer span.End()

	projects, err := m.store.ListAvailableProjects(ctx, m.now(), page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list available projects: %w", err)
	}
	return projects, nil
}

// ListMine returns projects userID holds an unexpired claim on.
func (m *Manager) ListMine(ctx context.Context, userID int64, page models.Page) ([]*models.Project, error) {
	ctx, span := telemetry.StartSpan(ctx, "lock.list_mine")
	defer span.End()

	projects, err := m.store.ListProjectsLockedBy(ctx, userID, m.now(), page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list claimed projects: %w", err)
	}
	return projects, nil
}

func claimResult(err error) string {
	switch {
	case err == nil:
		return "claimed"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
