package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/editorhub/editors/internal/models"
)

// Store is the GORM-backed entity store
type Store struct {
	*Repository
	database *DB
}

// NewStore creates a store over an open connection
func NewStore(database *DB) *Store {
	return &Store{
		Repository: NewRepository(database.DB),
		database:   database,
	}
}

// Migrate creates or updates the schema
func (s *Store) Migrate(ctx context.Context) error {
	return s.database.Migrate(ctx)
}

// Health checks database health
func (s *Store) Health(ctx context.Context) error {
	return s.database.Health(ctx)
}

// Close closes the underlying connection
func (s *Store) Close() error {
	return s.database.Close()
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	ok, err := s.first(ctx, &user, id)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	return s.conn(ctx).Create(user).Error
}

// ListCommunities lists communities by ID
func (s *Store) ListCommunities(ctx context.Context, page models.Page) ([]*models.Community, error) {
	var communities []*models.Community
	if err := s.conn(ctx).
		Order("id ASC").
		Scopes(paginate(page)).
		Find(&communities).Error; err != nil {
		return nil, err
	}
	return communities, nil
}

// GetCommunity retrieves a community by ID
func (s *Store) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	var community models.Community
	ok, err := s.first(ctx, &community, id)
	if err != nil || !ok {
		return nil, err
	}
	return &community, nil
}

// CreateCommunity creates a new community
func (s *Store) CreateCommunity(ctx context.Context, community *models.Community) error {
	return s.conn(ctx).Create(community).Error
}

// GetProject retrieves a project by ID
func (s *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	var project models.Project
	ok, err := s.first(ctx, &project, id)
	if err != nil || !ok {
		return nil, err
	}
	return &project, nil
}

// CreateProject creates a new project
func (s *Store) CreateProject(ctx context.Context, project *models.Project) error {
	return s.conn(ctx).Create(project).Error
}

// ListProjectsByCommunity lists the projects of one community
func (s *Store) ListProjectsByCommunity(ctx context.Context, communityID int64, page models.Page) ([]*models.Project, error) {
	var projects []*models.Project
	if err := s.conn(ctx).
		Where("community_id = ?", communityID).
		Order("id ASC").
		Scopes(paginate(page)).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// ListProjectsOwnedBy lists projects in communities owned by ownerID
func (s *Store) ListProjectsOwnedBy(ctx context.Context, ownerID int64, page models.Page) ([]*models.Project, error) {
	var projects []*models.Project
	if err := s.conn(ctx).
		Select("projects.*").
		Joins("JOIN communities ON communities.id = projects.community_id").
		Where("communities.owner_id = ?", ownerID).
		Order("projects.id ASC").
		Scopes(paginate(page)).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// availableAt matches projects nobody holds an unexpired claim on.
const availableAt = "(lock_user_id IS NULL OR lock_expire IS NULL OR lock_expire <= ?)"

// ListAvailableProjects lists projects without an unexpired claim, most
// recently expired first, never-claimed last
func (s *Store) ListAvailableProjects(ctx context.Context, now time.Time, page models.Page) ([]*models.Project, error) {
	var projects []*models.Project
	if err := s.conn(ctx).
		Where(availableAt, now).
		Order("lock_expire IS NULL").
		Order("lock_expire DESC").
		Order("id ASC").
		Scopes(paginate(page)).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// ListProjectsLockedBy lists projects userID holds an unexpired claim on
func (s *Store) ListProjectsLockedBy(ctx context.Context, userID int64, now time.Time, page models.Page) ([]*models.Project, error) {
	var projects []*models.Project
	if err := s.conn(ctx).
		Where("lock_user_id = ? AND lock_expire > ?", userID, now).
		Order("lock_expire DESC").
		Order("id ASC").
		Scopes(paginate(page)).
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// claimQuery builds the conditional update used by ClaimProject
func claimQuery(tx *gorm.DB, projectID, userID int64, now, expire time.Time) *gorm.DB {
	return tx.Model(&models.Project{}).
		Where("id = ?", projectID).
		Where(availableAt, now).
		Updates(map[string]interface{}{
			"lock_user_id": userID,
			"lock_expire":  expire,
		})
}

// ClaimProject locks the project for userID until expire if it is available at
// now. The availability check and the write are one UPDATE statement, so of
// two concurrent claimers exactly one sees a changed row.
func (s *Store) ClaimProject(ctx context.Context, projectID, userID int64, now, expire time.Time) (bool, error) {
	result := claimQuery(s.conn(ctx), projectID, userID, now, expire)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetProjectVideo replaces the canonical project video
func (s *Store) SetProjectVideo(ctx context.Context, projectID int64, video string) error {
	return s.conn(ctx).
		Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("video", video).Error
}

// ListProjectVideos lists reference videos for a project, newest first
func (s *Store) ListProjectVideos(ctx context.Context, projectID int64, page models.Page) ([]*models.ProjectVideo, error) {
	var videos []*models.ProjectVideo
	if err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("id DESC").
		Scopes(paginate(page)).
		Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// CreateProjectVideo creates a reference video
func (s *Store) CreateProjectVideo(ctx context.Context, video *models.ProjectVideo) error {
	return s.conn(ctx).Create(video).Error
}

// GetEdit retrieves an edit by ID
func (s *Store) GetEdit(ctx context.Context, id int64) (*models.Edit, error) {
	var edit models.Edit
	ok, err := s.first(ctx, &edit, id)
	if err != nil || !ok {
		return nil, err
	}
	return &edit, nil
}

// CreateEdit creates a new edit
func (s *Store) CreateEdit(ctx context.Context, edit *models.Edit) error {
	return s.conn(ctx).Create(edit).Error
}

// TransitionEdit moves an edit from one status to another. It reports false
// when the edit is no longer in from.
func (s *Store) TransitionEdit(ctx context.Context, editID int64, from, to models.EditStatus) (bool, error) {
	if from == to {
		return false, fmt.Errorf("edit %d: transition to the same status %s", editID, to)
	}
	result := s.conn(ctx).
		Model(&models.Edit{}).
		Where("id = ? AND status = ?", editID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListEditsByProject lists edits for a project, newest first
func (s *Store) ListEditsByProject(ctx context.Context, projectID int64, page models.Page) ([]*models.Edit, error) {
	var edits []*models.Edit
	if err := s.conn(ctx).
		Where("project_id = ?", projectID).
		Order("id DESC").
		Scopes(paginate(page)).
		Find(&edits).Error; err != nil {
		return nil, err
	}
	return edits, nil
}

// ListEditsByUser lists edits a user submitted, newest first
func (s *Store) ListEditsByUser(ctx context.Context, userID int64, page models.Page) ([]*models.Edit, error) {
	var edits []*models.Edit
	if err := s.conn(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Scopes(paginate(page)).
		Find(&edits).Error; err != nil {
		return nil, err
	}
	return edits, nil
}
