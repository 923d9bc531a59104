package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/editorhub/editors/internal/api/objects"
	"github.com/editorhub/editors/internal/events"
	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/internal/review"
)

type submitEditRequest struct {
	ProjectID *int64 `json:"project_id" form:"project_id"`
	Video     string `json:"video" form:"-"`
}

type handleEditRequest struct {
	ProjectID *int64 `json:"project_id" form:"project_id"`
	EditID    *int64 `json:"edit_id" form:"edit_id"`
	Status    *int16 `json:"status" form:"status"`
}

func (r *Router) listEdits(c *gin.Context) {
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
	rows, err := r.reviews.ListForProject(c.Request.Context(), projectID, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, objects.NewEdits(rows, r.urls()))
}

func (r *Router) listOwnEdits(c *gin.Context) {
	page, err := pageFrom(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rows, err := r.reviews.ListBySubmitter(c.Request.Context(), CurrentUser(c).ID, page)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, objects.NewEdits(rows, r.urls()))
}

func (r *Router) submitEdit(c *gin.Context) {
	var req submitEditRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, badRequest("invalid body: %v", err))
		return
	}
	projectID := deref(req.ProjectID)
	if projectID <= 0 {
		abortWithError(c, badRequest("project_id is required"))
		return
	}

	// Reject unknown projects before anything is uploaded.
	project, err := r.store.GetProject(c.Request.Context(), projectID)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to load project %d: %w", projectID, err))
		return
	}
	if project == nil {
		abortWithError(c, fmt.Errorf("%w: project %d", ErrNotFound, projectID))
		return
	}

	video, err := r.uploadedVideo(c, "edits", projectID, req.Video)
	if err != nil {
		abortWithError(c, err)
		return
	}
	edit, err := r.reviews.Submit(c.Request.Context(), projectID, CurrentUser(c), video)
	if err != nil {
		abortWithError(c, err)
		return
	}
	r.publish(c, events.Event{
		Type:      events.EditSubmitted,
		ProjectID: edit.ProjectID,
		UserID:    edit.UserID,
		Data:      map[string]interface{}{"edit_id": edit.ID},
	})
	c.JSON(http.StatusCreated, objects.NewEdit(edit, r.urls()))
}

func (r *Router) handleEdit(c *gin.Context) {
	var req handleEditRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, badRequest("invalid body: %v", err))
		return
	}
	if req.Status == nil {
		abortWithError(c, badRequest("status is required"))
		return
	}

	outcome, err := r.reviews.Review(c.Request.Context(), review.Request{
		ProjectID: deref(req.ProjectID),
		EditID:    deref(req.EditID),
		Reviewer:  CurrentUser(c),
		Status:    models.EditStatus(*req.Status),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	if outcome.Applied {
		r.publish(c, events.Event{
			Type:      events.EditReviewed,
			ProjectID: outcome.Project.ID,
			UserID:    CurrentUser(c).ID,
			Data: map[string]interface{}{
				"edit_id": outcome.Edit.ID,
				"status":  outcome.Edit.Status.String(),
			},
		})
	}
	c.JSON(http.StatusCreated, objects.Review{
		Edit:    objects.NewEdit(outcome.Edit, r.urls()),
		Project: objects.NewProject(outcome.Project, r.urls()),
		Applied: outcome.Applied,
	})
}
