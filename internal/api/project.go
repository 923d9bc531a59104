package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/editorhub/editors/internal/api/objects"
	"github.com/editorhub/editors/internal/events"
	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/internal/policy"
)

type createProjectRequest struct {
	Community   int64  `json:"community" form:"community"`
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Reward      uint32 `json:"reward" form:"reward"`
	Hidden      bool   `json:"hidden" form:"hidden"`
	Video       string `json:"video" form:"-"`
}

type claimRequest struct {
	ProjectID *int64 `json:"project_id" form:"project_id"`
}

func (r *Router) listAvailableProjects(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := r.locks.ListAvailable(c.Request.Context(), page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, objects.NewProjects(rows, r.urls()))
}

// managedCommunity loads a community the caller may manage
func (r *Router) managedCommunity(c *gin.Context, communityID int64) (*models.Community, error) {
	community, err := r.store.GetCommunity(c.Request.Context(), communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load community %d: %w", communityID, err)
	}
	if community == nil {
		return nil, fmt.Errorf("%w: community %d", ErrNotFound, communityID)
	}
	if d := policy.CanManage(community, CurrentUser(c)); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	return community, nil
}

func (r *Router) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, badRequest("invalid body: %v", err))
		return
	}
	if req.Community <= 0 {
		abortWithError(c, badRequest("community is required"))
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		abortWithError(c, badRequest("title is required"))
		return
	}
	community, err := r.managedCommunity(c, req.Community)
	if err != nil {
		abortWithError(c, err)
		return
	}

	project := &models.Project{
		CommunityID: community.ID,
		Title:       title,
		Description: req.Description,
		Reward:      req.Reward,
		Hidden:      req.Hidden,
	}
	// The upload key needs the project ID, so the insert and the attach share a
	// transaction and a failed upload leaves no project behind.
	err = r.store.WithinTx(c.Request.Context(), func(ctx context.Context) error {
		if err := r.store.CreateProject(ctx, project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		video, err := r.uploadedVideo(c, "projects", project.ID, req.Video)
		if err != nil {
			return err
		}
		if video == "" {
			return nil
		}
		if err := r.store.SetProjectVideo(ctx, project.ID, video); err != nil {
			return fmt.Errorf("failed to attach project video: %w", err)
		}
		project.Video = video
		return nil
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, objects.NewProject(project, r.urls()))
}

func (r *Router) getProject(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		abortWithError(c, err)
		return
	}
	project, err := r.store.GetProject(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to load project %d: %w", id, err))
		return
	}
	if project == nil {
		abortWithError(c, fmt.Errorf("%w: project %d", ErrNotFound, id))
		return
	}
	c.JSON(http.StatusOK, objects.NewProject(project, r.urls()))
}

func (r *Router) listOwnedProjects(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := r.store.ListProjectsOwnedBy(c.Request.Context(), CurrentUser(c).ID, page)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to list owned projects: %w", err))
		return
	}
	c.JSON(http.StatusOK, objects.NewProjects(rows, r.urls()))
}

func (r *Router) listClaimedProjects(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := r.locks.ListMine(c.Request.Context(), CurrentUser(c).ID, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, objects.NewProjects(rows, r.urls()))
}

func (r *Router) claimProject(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, badRequest("invalid body: %v", err))
		return
	}
	if deref(req.ProjectID) <= 0 {
		abortWithError(c, badRequest("project_id is required"))
		return
	}

	claim, err := r.locks.Claim(c.Request.Context(), *req.ProjectID, CurrentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	r.publish(c, events.Event{
		Type:      events.ProjectClaimed,
		ProjectID: claim.Project.ID,
		UserID:    claim.UserID,
		Data:      map[string]interface{}{"lock_expire": claim.Expires},
	})
	c.JSON(http.StatusCreated, objects.Claim{
		Project:    objects.NewProject(claim.Project, r.urls()),
		LockUser:   claim.UserID,
		LockExpire: claim.Expires,
	})
}
