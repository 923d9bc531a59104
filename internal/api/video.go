package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/editorhub/editors/internal/api/objects"
	"github.com/editorhub/editors/internal/models"
)

type createVideoRequest struct {
	Project     int64  `json:"project" form:"project"`
	Video       string `json:"video" form:"-"`
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
}

func (r *Router) listProjectVideos(c *gin.Context) {
	projectID, err := requiredQueryID(c, "project")
	if err != nil {
		abortWithError(c, err)
		return
	}
	page, err := pageFrom(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := r.store.ListProjectVideos(c.Request.Context(), projectID, page)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to list project videos: %w", err))
		return
	}
	c.JSON(http.StatusOK, objects.NewProjectVideos(rows, r.urls()))
}

func (r *Router) createProjectVideo(c *gin.Context) {
	var req createVideoRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, badRequest("invalid body: %v", err))
		return
	}
	projectID := req.Project
	if projectID == 0 {
		id, err := requiredQueryID(c, "project")
		if err != nil {
			abortWithError(c, err)
			return
		}
		projectID = id
	}

	ctx := c.Request.Context()
	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to load project %d: %w", projectID, err))
		return
	}
	if project == nil {
		abortWithError(c, fmt.Errorf("%w: project %d", ErrNotFound, projectID))
		return
	}
	if _, err := r.managedCommunity(c, project.CommunityID); err != nil {
		abortWithError(c, err)
		return
	}

	ref, err := r.uploadedVideo(c, "project-videos", project.ID, req.Video)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if ref == "" {
		abortWithError(c, badRequest("video is required"))
		return
	}

	video := &models.ProjectVideo{
		ProjectID:   project.ID,
		Video:       ref,
		Title:       req.Title,
		Description: req.Description,
	}
	if err := r.store.CreateProjectVideo(ctx, video); err != nil {
		abortWithError(c, fmt.Errorf("failed to create project video: %w", err))
		return
	}
	c.JSON(http.StatusCreated, objects.NewProjectVideo(video, r.urls()))
}
