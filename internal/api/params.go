package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/internal/storage"
)

// pageFrom reads limit and offset query params
func pageFrom(c *gin.Context) (models.Page, error) {
	var page models.Page
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, badRequest("invalid limit %q", v)
		}
		page.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, badRequest("invalid offset %q", v)
		}
		page.Offset = n
	}
	return page.Normalize(), nil
}

func parseID(name, v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return id, nil
}

// pathID reads a positive integer path param
func pathID(c *gin.Context, name string) (int64, error) {
	return parseID(name, c.Param(name))
}

// requiredQueryID reads a positive integer query param that must be present
func requiredQueryID(c *gin.Context, name string) (int64, error) {
	v, ok := c.GetQuery(name)
	if !ok || v == "" {
		return 0, badRequest("%s query parameter is required", name)
	}
	return parseID(name, v)
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// uploadedVideo stores a multipart "video" file and returns its reference.
// JSON requests return fallback. Multipart requests without a file return the
// plain "video" form value. The request structs do not bind "video" from
// forms, since the part may be a file.
func (r *Router) uploadedVideo(c *gin.Context, kind string, projectID int64, fallback string) (string, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return fallback, nil
	}
	header, err := c.FormFile("video")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return strings.TrimSpace(c.PostForm("video")), nil
		}
		return "", badRequest("invalid video upload: %v", err)
	}
	if r.blobs == nil {
		return "", errors.New("blob storage is not configured")
	}

	f, err := header.Open()
	if err != nil {
		return "", badRequest("invalid video upload: %v", err)
	}
	defer f.Close()

	contentType, err := storage.ContentType(header.Header.Get("Content-Type"), f)
	if err != nil {
		return "", badRequest("invalid video upload: %v", err)
	}
	return r.blobs.Put(c.Request.Context(),
		storage.VideoKey(kind, projectID, header.Filename), contentType, f)
}
