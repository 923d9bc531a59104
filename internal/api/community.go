package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/editorhub/editors/internal/api/objects"
	"github.com/editorhub/editors/internal/cache"
	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/pkg/logging"
)

const (
	communityCachePrefix = "communities:"
	communityCacheTTL    = 30 * time.Second
)

type createCommunityRequest struct {
	Name string `json:"name" form:"name"`
}

func communityCacheKey(page models.Page) string {
	return communityCachePrefix + cache.HashKey(strconv.Itoa(page.Limit), strconv.Itoa(page.Offset))
}

func (r *Router) listCommunities(c *gin.Context) {
	ctx := c.Request.Context()
	page, err := pageFrom(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	key := communityCacheKey(page)
	var cached []*objects.Community
	err = r.cache.GetJSON(ctx, key, &cached)
	if err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}
	if !errors.Is(err, cache.ErrMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		logging.FromContext(ctx).Debug("Community cache read failed", zap.Error(err))
	}

	rows, err := r.store.ListCommunities(ctx, page)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to list communities: %w", err))
		return
	}
	out := objects.NewCommunities(rows)
	if err := r.cache.SetJSON(ctx, key, out, communityCacheTTL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		logging.FromContext(ctx).Debug("Community cache write failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, out)
}

func (r *Router) createCommunity(c *gin.Context) {
	ctx := c.Request.Context()
	var req createCommunityRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, badRequest("invalid body: %v", err))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		abortWithError(c, badRequest("name is required"))
		return
	}

	community := &models.Community{Name: name, OwnerID: CurrentUser(c).ID}
	if err := r.store.CreateCommunity(ctx, community); err != nil {
		abortWithError(c, fmt.Errorf("failed to create community: %w", err))
		return
	}
	if err := r.cache.DeletePrefix(ctx, communityCachePrefix); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		logging.FromContext(ctx).Warn("Community cache invalidation failed", zap.Error(err))
	}
	c.JSON(http.StatusCreated, objects.NewCommunity(community))
}

func (r *Router) loadCommunity(c *gin.Context) (*models.Community, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	community, err := r.store.GetCommunity(c.Request.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load community %d: %w", id, err)
	}
	if community == nil {
		return nil, fmt.Errorf("%w: community %d", ErrNotFound, id)
	}
	return community, nil
}

func (r *Router) getCommunity(c *gin.Context) {
	community, err := r.loadCommunity(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, objects.NewCommunity(community))
}

func (r *Router) listCommunityProjects(c *gin.Context) {
	community, err := r.loadCommunity(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	page, err := pageFrom(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := r.store.ListProjectsByCommunity(c.Request.Context(), community.ID, page)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to list projects: %w", err))
		return
	}
	c.JSON(http.StatusOK, objects.NewProjects(rows, r.urls()))
}
