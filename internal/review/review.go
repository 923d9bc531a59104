// Package review moves edits out of Pending and applies approved videos to
// their project.
package review

import (
	"context"
	"errors"
	"fmt"

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
	// ErrBadRequest is returned for missing or invalid input
	ErrBadRequest = errors.New("bad request")
	// ErrNotFound is returned when the project or edit does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the reviewer may not review the project
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyReviewed is returned when a resolved edit receives a different decision
	ErrAlreadyReviewed = errors.New("edit already reviewed")
)

// Store is the subset of the entity store the review service needs.
// Getters return nil, nil when the row does not exist.
type Store interface {
	// WithinTx runs fn in one transaction; store calls made with the ctx passed
	// to fn take part in it.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetCommunity(ctx context.Context, id int64) (*models.Community, error)
	GetEdit(ctx context.Context, id int64) (*models.Edit, error)
	CreateEdit(ctx context.Context, edit *models.Edit) error
	// TransitionEdit changes status from -> to only if the edit is still in from.
	TransitionEdit(ctx context.Context, editID int64, from, to models.EditStatus) (bool, error)
	SetProjectVideo(ctx context.Context, projectID int64, video string) error
	ListEditsByProject(ctx context.Context, projectID int64, page models.Page) ([]*models.Edit, error)
	ListEditsByUser(ctx context.Context, userID int64, page models.Page) ([]*models.Edit, error)
}

// Request is a reviewer's decision on one edit
type Request struct {
	ProjectID int64
	EditID    int64
	Reviewer  *models.User
	Status    models.EditStatus
}

// Outcome describes a completed review
type Outcome struct {
	Edit    *models.Edit
	Project *models.Project
	// Applied is false when the edit already carried the requested decision.
	Applied bool
}

// Service implements submit and review
type Service struct {
	store     Store
	logger    *zap.Logger
	decisions metric.Int64Counter
}

// NewService creates a review service
func NewService(store Store) *Service {
	s := &Service{
		store:  store,
		logger: logging.WithComponent("review"),
	}
	decisions, err := telemetry.Meter().Int64Counter("editors.review.decisions",
		metric.WithDescription("Edit review decisions by status"))
	if err != nil {
		s.logger.Warn("Failed to create review counter", zap.Error(err))
		decisions = noop.Int64Counter{}
	}
	s.decisions = decisions
	return s
}

// Submit records finished work against a project as a Pending edit. A project
// may collect any number of pending edits.
func (s *Service) Submit(ctx context.Context, projectID int64, submitter *models.User, video string) (*models.Edit, error) {
	ctx, span := telemetry.StartSpan(ctx, "review.submit")
	defer span.End()

	if submitter == nil {
		return nil, fmt.Errorf("%w: missing submitter", ErrBadRequest)
	}
	if projectID == 0 {
		return nil, fmt.Errorf("%w: project_id is required", ErrBadRequest)
	}
	if video == "" {
		return nil, fmt.Errorf("%w: video is required", ErrBadRequest)
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", projectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %d", ErrNotFound, projectID)
	}

	edit := &models.Edit{
		ProjectID: projectID,
		UserID:    submitter.ID,
		Status:    models.EditPending,
		Video:     video,
	}
	if err := s.store.CreateEdit(ctx, edit); err != nil {
		return nil, fmt.Errorf("failed to create edit: %w", err)
	}

	logging.FromContext(ctx).Info("Edit submitted",
		zap.Int64("edit_id", edit.ID),
		zap.Int64("project_id", projectID),
		zap.Int64("user_id", submitter.ID))
	return edit, nil
}

// Review resolves a pending edit. Approval copies the edit's video onto the
// project in the same transaction as the status change.
func (s *Service) Review(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "review.review")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("project.id", req.ProjectID),
		attribute.Int64("edit.id", req.EditID),
		attribute.String("edit.status", req.Status.String()),
	)

	out, err := s.review(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if out.Applied {
		s.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", req.Status.String())))
	}
	return out, nil
}

func (s *Service) review(ctx context.Context, req Request) (*Outcome, error) {
	if req.ProjectID == 0 {
		return nil, fmt.Errorf("%w: project_id is required", ErrBadRequest)
	}
	if req.EditID == 0 {
		return nil, fmt.Errorf("%w: edit_id is required", ErrBadRequest)
	}
	if !req.Status.IsDecision() {
		return nil, fmt.Errorf("%w: status must be approved (%d) or rejected (%d)",
			ErrBadRequest, models.EditApproved, models.EditRejected)
	}

	project, err := s.store.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", req.ProjectID, err)
	}
	if project == nil {
		return nil, fmt.Errorf("%w: project %d", ErrNotFound, req.ProjectID)
	}
	community, err := s.store.GetCommunity(ctx, project.CommunityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load community %d: %w", project.CommunityID, err)
	}
	if d := policy.CanReview(community, req.Reviewer); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	edit, err := s.store.GetEdit(ctx, req.EditID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edit %d: %w", req.EditID, err)
	}
	if edit == nil || edit.ProjectID != project.ID {
		return nil, fmt.Errorf("%w: edit %d", ErrNotFound, req.EditID)
	}

	out := &Outcome{Edit: edit, Project: project}
	err = s.store.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.store.TransitionEdit(ctx, edit.ID, models.EditPending, req.Status)
		if err != nil {
			return fmt.Errorf("failed to update edit status: %w", err)
		}
		if !ok {
			current, err := s.store.GetEdit(ctx, edit.ID)
			if err != nil {
				return fmt.Errorf("failed to reload edit %d: %w", edit.ID, err)
			}
			if current == nil {
				return fmt.Errorf("%w: edit %d", ErrNotFound, edit.ID)
			}
			if current.Status != req.Status {
				return fmt.Errorf("%w: edit %d is %s", ErrAlreadyReviewed, edit.ID, current.Status)
			}
			out.Edit = current
			return nil
		}

		out.Applied = true
		out.Edit.Status = req.Status
		if req.Status == models.EditApproved {
			if err := s.store.SetProjectVideo(ctx, project.ID, edit.Video); err != nil {
				return fmt.Errorf("failed to apply edit video: %w", err)
			}
			out.Project.Video = edit.Video
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("Edit reviewed",
		zap.Int64("edit_id", edit.ID),
		zap.Int64("project_id", project.ID),
		zap.Int64("reviewer_id", req.Reviewer.ID),
		zap.Stringer("status", req.Status),
		zap.Bool("applied", out.Applied))
	return out, nil
}

// ListForProject returns a project's edits, newest first
func (s *Service) ListForProject(ctx context.Context, projectID int64, page models.Page) ([]*models.Edit, error) {
	if projectID == 0 {
		return nil, fmt.Errorf("%w: project is required", ErrBadRequest)
	}
	edits, err := s.store.ListEditsByProject(ctx, projectID, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list edits: %w", err)
	}
	return edits, nil
}

// ListBySubmitter returns edits submitted by userID, newest first
func (s *Service) ListBySubmitter(ctx context.Context, userID int64, page models.Page) ([]*models.Edit, error) {
	edits, err := s.store.ListEditsByUser(ctx, userID, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("failed to list edits: %w", err)
	}
	return edits, nil
}
