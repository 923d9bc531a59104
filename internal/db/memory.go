package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/editorhub/editors/internal/models"
)

type memTxKey struct{}

// MemoryStore is an in-process entity store with the same claim and
// transition semantics as Store. Every operation runs under one mutex, and
// WithinTx holds it for the whole callback, so transactions are serialized.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[int64]models.User
	communities map[int64]models.Community
	projects    map[int64]models.Project
	videos      map[int64]models.ProjectVideo
	edits       map[int64]models.Edit
	seq         map[string]int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]models.User),
		communities: make(map[int64]models.Community),
		projects:    make(map[int64]models.Project),
		videos:      make(map[int64]models.ProjectVideo),
		edits:       make(map[int64]models.Edit),
		seq:         make(map[string]int64),
	}
}

// acquire takes the store mutex unless ctx already runs inside this store's
// transaction.
func (m *MemoryStore) acquire(ctx context.Context) func() {
	if owner, ok := ctx.Value(memTxKey{}).(*MemoryStore); ok && owner == m {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *MemoryStore) next(table string) int64 {
	m.seq[table]++
	return m.seq[table]
}

// WithinTx runs fn with exclusive access and restores the previous state if
// fn fails.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	release := m.acquire(ctx)
	defer release()

	snapshot := m.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, m)); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memSnapshot struct {
	users       map[int64]models.User
	communities map[int64]models.Community
	projects    map[int64]models.Project
	videos      map[int64]models.ProjectVideo
	edits       map[int64]models.Edit
	seq         map[string]int64
}

func (m *MemoryStore) snapshot() memSnapshot {
	return memSnapshot{
		users:       copyMap(m.users),
		communities: copyMap(m.communities),
		projects:    copyMap(m.projects),
		videos:      copyMap(m.videos),
		edits:       copyMap(m.edits),
		seq:         copyMap(m.seq),
	}
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.users = s.users
	m.communities = s.communities
	m.projects = s.projects
	m.videos = s.videos
	m.edits = s.edits
	m.seq = s.seq
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// page slices sorted rows
func page[T any](rows []T, p models.Page) []T {
	p = p.Normalize()
	if p.Offset >= len(rows) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[p.Offset:end]
}

// Migrate is a no-op
func (m *MemoryStore) Migrate(ctx context.Context) error {
	return nil
}

// Health always succeeds
func (m *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// GetUser retrieves a user by ID
func (m *MemoryStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	defer m.acquire(ctx)()
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username
func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	defer m.acquire(ctx)()
	for _, user := range m.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// CreateUser creates a new user
func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	defer m.acquire(ctx)()
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return fmt.Errorf("duplicate username %q", user.Username)
		}
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now().UTC()
	}
	user.ID = m.next("users")
	m.users[user.ID] = *user
	return nil
}

// ListCommunities lists communities by ID
func (m *MemoryStore) ListCommunities(ctx context.Context, p models.Page) ([]*models.Community, error) {
	defer m.acquire(ctx)()
	rows := make([]*models.Community, 0, len(m.communities))
	for _, c := range m.communities {
		c := c
		rows = append(rows, &c)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return page(rows, p), nil
}

// GetCommunity retrieves a community by ID
func (m *MemoryStore) GetCommunity(ctx context.Context, id int64) (*models.Community, error) {
	defer m.acquire(ctx)()
	c, ok := m.communities[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// CreateCommunity creates a new community
func (m *MemoryStore) CreateCommunity(ctx context.Context, community *models.Community) error {
	defer m.acquire(ctx)()
	if _, ok := m.users[community.OwnerID]; !ok {
		return fmt.Errorf("community owner %d does not exist", community.OwnerID)
	}
	community.ID = m.next("communities")
	stored := *community
	stored.Owner = nil
	m.communities[community.ID] = stored
	return nil
}

// GetProject retrieves a project by ID
func (m *MemoryStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	defer m.acquire(ctx)()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// CreateProject creates a new project
func (m *MemoryStore) CreateProject(ctx context.Context, project *models.Project) error {
	defer m.acquire(ctx)()
	if _, ok := m.communities[project.CommunityID]; !ok {
		return fmt.Errorf("community %d does not exist", project.CommunityID)
	}
	project.ID = m.next("projects")
	stored := *project
	stored.Community = nil
	stored.LockUser = nil
	m.projects[project.ID] = stored
	return nil
}

func (m *MemoryStore) filterProjects(keep func(p *models.Project) bool) []*models.Project {
	rows := make([]*models.Project, 0)
	for _, p := range m.projects {
		p := p
		if keep(&p) {
			rows = append(rows, &p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// ListProjectsByCommunity lists the projects of one community
func (m *MemoryStore) ListProjectsByCommunity(ctx context.Context, communityID int64, p models.Page) ([]*models.Project, error) {
	defer m.acquire(ctx)()
	rows := m.filterProjects(func(pr *models.Project) bool { return pr.CommunityID == communityID })
	return page(rows, p), nil
}

// ListProjectsOwnedBy lists projects in communities owned by ownerID
func (m *MemoryStore) ListProjectsOwnedBy(ctx context.Context, ownerID int64, p models.Page) ([]*models.Project, error) {
	defer m.acquire(ctx)()
	rows := m.filterProjects(func(pr *models.Project) bool {
		c, ok := m.communities[pr.CommunityID]
		return ok && c.OwnerID == ownerID
	})
	return page(rows, p), nil
}

func available(p *models.Project, now time.Time) bool {
	return !p.LockUserID.Valid || !p.LockExpire.Valid || !p.LockExpire.Time.After(now)
}

// byLockExpireDesc orders by lock_expire descending with NULLs last, then ID.
func byLockExpireDesc(rows []*models.Project) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].LockExpire, rows[j].LockExpire
		switch {
		case a.Valid && b.Valid && !a.Time.Equal(b.Time):
			return a.Time.After(b.Time)
		case a.Valid != b.Valid:
			return a.Valid
		default:
			return rows[i].ID < rows[j].ID
		}
	})
}

// ListAvailableProjects lists projects without an unexpired claim
func (m *MemoryStore) ListAvailableProjects(ctx context.Context, now time.Time, p models.Page) ([]*models.Project, error) {
	defer m.acquire(ctx)()
	rows := m.filterProjects(func(pr *models.Project) bool { return available(pr, now) })
	byLockExpireDesc(rows)
	return page(rows, p), nil
}

// ListProjectsLockedBy lists projects userID holds an unexpired claim on
func (m *MemoryStore) ListProjectsLockedBy(ctx context.Context, userID int64, now time.Time, p models.Page) ([]*models.Project, error) {
	defer m.acquire(ctx)()
	rows := m.filterProjects(func(pr *models.Project) bool { return pr.IsLockedBy(userID, now) })
	byLockExpireDesc(rows)
	return page(rows, p), nil
}

// ClaimProject locks the project for userID until expire if it is available at now
func (m *MemoryStore) ClaimProject(ctx context.Context, projectID, userID int64, now, expire time.Time) (bool, error) {
	defer m.acquire(ctx)()
	p, ok := m.projects[projectID]
	if !ok || !available(&p, now) {
		return false, nil
	}
	p.LockUserID = sql.NullInt64{Int64: userID, Valid: true}
	p.LockExpire = sql.NullTime{Time: expire, Valid: true}
	m.projects[projectID] = p
	return true, nil
}

// SetProjectVideo replaces the canonical project video
func (m *MemoryStore) SetProjectVideo(ctx context.Context, projectID int64, video string) error {
	defer m.acquire(ctx)()
	p, ok := m.projects[projectID]
	if !ok {
		return nil
	}
	p.Video = video
	m.projects[projectID] = p
	return nil
}

// ListProjectVideos lists reference videos for a project, newest first
func (m *MemoryStore) ListProjectVideos(ctx context.Context, projectID int64, p models.Page) ([]*models.ProjectVideo, error) {
	defer m.acquire(ctx)()
	rows := make([]*models.ProjectVideo, 0)
	for _, v := range m.videos {
		v := v
		if v.ProjectID == projectID {
			rows = append(rows, &v)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return page(rows, p), nil
}

// CreateProjectVideo creates a reference video
func (m *MemoryStore) CreateProjectVideo(ctx context.Context, video *models.ProjectVideo) error {
	defer m.acquire(ctx)()
	if _, ok := m.projects[video.ProjectID]; !ok {
		return fmt.Errorf("project %d does not exist", video.ProjectID)
	}
	video.ID = m.next("project_videos")
	stored := *video
	stored.Project = nil
	m.videos[video.ID] = stored
	return nil
}

// GetEdit retrieves an edit by ID
func (m *MemoryStore) GetEdit(ctx context.Context, id int64) (*models.Edit, error) {
	defer m.acquire(ctx)()
	e, ok := m.edits[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// CreateEdit creates a new edit
func (m *MemoryStore) CreateEdit(ctx context.Context, edit *models.Edit) error {
	defer m.acquire(ctx)()
	if _, ok := m.projects[edit.ProjectID]; !ok {
		return fmt.Errorf("project %d does not exist", edit.ProjectID)
	}
	edit.ID = m.next("edits")
	stored := *edit
	stored.Project = nil
	stored.User = nil
	m.edits[edit.ID] = stored
	return nil
}

// TransitionEdit moves an edit from one status to another if it is still in from
func (m *MemoryStore) TransitionEdit(ctx context.Context, editID int64, from, to models.EditStatus) (bool, error) {
	if from == to {
		return false, fmt.Errorf("edit %d: transition to the same status %s", editID, to)
	}
	defer m.acquire(ctx)()
	e, ok := m.edits[editID]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	m.edits[editID] = e
	return true, nil
}

func (m *MemoryStore) filterEdits(keep func(e *models.Edit) bool, p models.Page) []*models.Edit {
	rows := make([]*models.Edit, 0)
	for _, e := range m.edits {
		e := e
		if keep(&e) {
			rows = append(rows, &e)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return page(rows, p)
}

// ListEditsByProject lists edits for a project, newest first
func (m *MemoryStore) ListEditsByProject(ctx context.Context, projectID int64, p models.Page) ([]*models.Edit, error) {
	defer m.acquire(ctx)()
	return m.filterEdits(func(e *models.Edit) bool { return e.ProjectID == projectID }, p), nil
}

// ListEditsByUser lists edits a user submitted, newest first
func (m *MemoryStore) ListEditsByUser(ctx context.Context, userID int64, p models.Page) ([]*models.Edit, error) {
	defer m.acquire(ctx)()
	return m.filterEdits(func(e *models.Edit) bool { return e.UserID == userID }, p), nil
}
