package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/editorhub/editors/internal/api/objects"
	"github.com/editorhub/editors/internal/cache"
	"github.com/editorhub/editors/internal/events"
	"github.com/editorhub/editors/internal/lock"
	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/internal/review"
	"github.com/editorhub/editors/internal/storage"
	"github.com/editorhub/editors/pkg/auth"
	"github.com/editorhub/editors/pkg/logging"
	"github.com/editorhub/editors/pkg/telemetry"
)

// Store is the entity access the handlers need beyond lock and review
type Store interface {
	UserLoader
	Health(ctx context.Context) error
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	ListCommunities(ctx context.Context, page models.Page) ([]*models.Community, error)
	GetCommunity(ctx context.Context, id int64) (*models.Community, error)
	CreateCommunity(ctx context.Context, community *models.Community) error

	GetProject(ctx context.Context, id int64) (*models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) error
	ListProjectsByCommunity(ctx context.Context, communityID int64, page models.Page) ([]*models.Project, error)
	ListProjectsOwnedBy(ctx context.Context, ownerID int64, page models.Page) ([]*models.Project, error)
	SetProjectVideo(ctx context.Context, projectID int64, video string) error

	ListProjectVideos(ctx context.Context, projectID int64, page models.Page) ([]*models.ProjectVideo, error)
	CreateProjectVideo(ctx context.Context, video *models.ProjectVideo) error
}

// Deps are the collaborators a Router serves requests with
type Deps struct {
	Store   Store
	Locks   *lock.Manager
	Reviews *review.Service
	Blobs   storage.BlobStore
	Tokens  *auth.Tokens
	// Cache and Events may be nil.
	Cache  *cache.Cache
	Events events.Publisher
}

// Router sets up API routes
type Router struct {
	store   Store
	locks   *lock.Manager
	reviews *review.Service
	blobs   storage.BlobStore
	tokens  *auth.Tokens
	cache   *cache.Cache
	events  events.Publisher
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(deps Deps) *Router {
	publisher := deps.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Router{
		store:   deps.Store,
		locks:   deps.Locks,
		reviews: deps.Reviews,
		blobs:   deps.Blobs,
		tokens:  deps.Tokens,
		cache:   deps.Cache,
		events:  publisher,
		logger:  logging.WithComponent("api-router"),
	}
}

// NewEngine returns a gin engine with the standard middleware and all routes
func (r *Router) NewEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), Tracing(), AccessLog())
	r.SetupRoutes(engine)
	return engine
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	engine.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	if local, ok := r.blobs.(*storage.LocalStore); ok {
		engine.Static("/media", local.Root())
	}

	authed := engine.Group("/", Authenticate(r.tokens, r.store))

	community := authed.Group("/community")
	community.GET("/", r.listCommunities)
	community.POST("/", r.createCommunity)
	community.GET("/:id/", r.getCommunity)
	community.GET("/:id/projects/", r.listCommunityProjects)

	project := authed.Group("/project")
	project.GET("/", r.listAvailableProjects)
	project.POST("/", r.createProject)
	project.GET("/my_projects/", r.listOwnedProjects)
	project.GET("/mine/", r.listClaimedProjects)
	project.POST("/claim/", r.claimProject)
	project.GET("/:id/", r.getProject)

	video := authed.Group("/project-video")
	video.GET("/", r.listProjectVideos)
	video.POST("/", r.createProjectVideo)

	edit := authed.Group("/edit")
	edit.GET("/", r.listEdits)
	edit.POST("/", r.submitEdit)
	edit.GET("/mine/", r.listOwnEdits)
	edit.POST("/handle/", r.handleEdit)
}

// urls resolves stored references through the blob store
func (r *Router) urls() objects.URLFunc {
	if r.blobs == nil {
		return nil
	}
	return r.blobs.URL
}

// publish emits event after a successful write. Delivery failures are logged
// and do not fail the request.
func (r *Router) publish(c *gin.Context, event events.Event) {
	if err := r.events.Publish(c.Request.Context(), event); err != nil {
		logging.FromContext(c.Request.Context()).Warn("Failed to publish event",
			zap.String("type", event.Type), zap.Error(err))
	}
}

// healthHandler handles health check requests. The cache is optional, so its
// state is reported without failing the check.
func (r *Router) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()
	cacheStatus := "OK"
	if err := r.cache.Health(ctx); err != nil {
		if errors.Is(err, cache.ErrCacheDisabled) {
			cacheStatus = "DISABLED"
		} else {
			r.logger.Warn("Cache health check failed", zap.Error(err))
			cacheStatus = "UNAVAILABLE"
		}
	}

	if err := r.store.Health(ctx); err != nil {
		r.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "UNAVAILABLE",
			"service": "editors-api",
			"cache":   cacheStatus,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "editors-api",
		"cache":   cacheStatus,
	})
}
