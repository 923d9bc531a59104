// Package objects renders models into the JSON shapes the API returns.
package objects

import (
	"time"

	"github.com/editorhub/editors/internal/models"
)

// URLFunc resolves a stored video reference to a fetchable URL
type URLFunc func(ref string) string

// Community is the API form of models.Community
type Community struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Owner int64  `json:"owner"`
}

// Project is the API form of models.Project
type Project struct {
	ID          int64      `json:"id"`
	Community   int64      `json:"community"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Reward      uint32     `json:"reward"`
	Hidden      bool       `json:"hidden"`
	LastPost    *time.Time `json:"last_post"`
	Video       string     `json:"video"`
	VideoURL    string     `json:"video_url,omitempty"`
	LockUser    *int64     `json:"lock_user"`
	LockExpire  *time.Time `json:"lock_expire"`
}

// ProjectVideo is the API form of models.ProjectVideo
type ProjectVideo struct {
	ID          int64  `json:"id"`
	Project     int64  `json:"project"`
	Video       string `json:"video"`
	VideoURL    string `json:"video_url,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Edit is the API form of models.Edit
type Edit struct {
	ID         int64  `json:"id"`
	Project    int64  `json:"project"`
	User       int64  `json:"user"`
	Status     int16  `json:"status"`
	StatusName string `json:"status_name"`
	Video      string `json:"video"`
	VideoURL   string `json:"video_url,omitempty"`
}

// Claim is the response to a successful claim
type Claim struct {
	Project    *Project  `json:"project"`
	LockUser   int64     `json:"lock_user"`
	LockExpire time.Time `json:"lock_expire"`
}

// Review is the response to a handled edit
type Review struct {
	Edit    *Edit    `json:"edit"`
	Project *Project `json:"project"`
	Applied bool     `json:"applied"`
}

func resolve(urls URLFunc, ref string) string {
	if urls == nil || ref == "" {
		return ""
	}
	return urls(ref)
}

// NewCommunity converts a community
func NewCommunity(c *models.Community) *Community {
	return &Community{ID: c.ID, Name: c.Name, Owner: c.OwnerID}
}

// NewCommunities converts a list of communities
func NewCommunities(rows []*models.Community) []*Community {
	out := make([]*Community, 0, len(rows))
	for _, c := range rows {
		out = append(out, NewCommunity(c))
	}
	return out
}

// NewProject converts a project; SQL NULLs become JSON nulls.
func NewProject(p *models.Project, urls URLFunc) *Project {
	out := &Project{
		ID:          p.ID,
		Community:   p.CommunityID,
		Title:       p.Title,
		Description: p.Description,
		Reward:      p.Reward,
		Hidden:      p.Hidden,
		Video:       p.Video,
		VideoURL:    resolve(urls, p.Video),
	}
	if p.LastPost.Valid {
		t := p.LastPost.Time
		out.LastPost = &t
	}
	if p.LockUserID.Valid {
		id := p.LockUserID.Int64
		out.LockUser = &id
	}
	if p.LockExpire.Valid {
		t := p.LockExpire.Time
		out.LockExpire = &t
	}
	return out
}

// NewProjects converts a list of projects
func NewProjects(rows []*models.Project, urls URLFunc) []*Project {
	out := make([]*Project, 0, len(rows))
	for _, p := range rows {
		out = append(out, NewProject(p, urls))
	}
	return out
}

// NewProjectVideo converts a project video
func NewProjectVideo(v *models.ProjectVideo, urls URLFunc) *ProjectVideo {
	return &ProjectVideo{
		ID:          v.ID,
		Project:     v.ProjectID,
		Video:       v.Video,
		VideoURL:    resolve(urls, v.Video),
		Title:       v.Title,
		Description: v.Description,
	}
}

// NewProjectVideos converts a list of project videos
func NewProjectVideos(rows []*models.ProjectVideo, urls URLFunc) []*ProjectVideo {
	out := make([]*ProjectVideo, 0, len(rows))
	for _, v := range rows {
		out = append(out, NewProjectVideo(v, urls))
	}
	return out
}

// NewEdit converts an edit
func NewEdit(e *models.Edit, urls URLFunc) *Edit {
	return &Edit{
		ID:         e.ID,
		Project:    e.ProjectID,
		User:       e.UserID,
		Status:     int16(e.Status),
		StatusName: e.Status.String(),
		Video:      e.Video,
		VideoURL:   resolve(urls, e.Video),
	}
}

// NewEdits converts a list of edits
func NewEdits(rows []*models.Edit, urls URLFunc) []*Edit {
	out := make([]*Edit, 0, len(rows))
	for _, e := range rows {
		out = append(out, NewEdit(e, urls))
	}
	return out
}
