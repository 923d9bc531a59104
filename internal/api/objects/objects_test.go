package objects

import (
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/editorhub/editors/internal/models"
)

func TestNewProject_Nulls(t *testing.T) {
	p := &models.Project{ID: 1, CommunityID: 2, Title: "t", Video: "sample.mp4"}

	out := NewProject(p, func(ref string) string { return "/media/" + ref })
	if out.LockUser != nil || out.LockExpire != nil || out.LastPost != nil {
		t.Fatalf("unset nullable fields should be nil: %+v", out)
	}
	if out.VideoURL != "/media/sample.mp4" {
		t.Errorf("VideoURL = %q", out.VideoURL)
	}

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(raw), `"lock_user":null`) {
		t.Errorf("expected explicit null lock_user in %s", raw)
	}
}

func TestNewProject_Lock(t *testing.T) {
	expire := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	p := &models.Project{
		ID:         1,
		LockUserID: sql.NullInt64{Int64: 7, Valid: true},
		LockExpire: sql.NullTime{Time: expire, Valid: true},
	}

	out := NewProject(p, nil)
	if out.LockUser == nil || *out.LockUser != 7 {
		t.Errorf("LockUser = %v, want 7", out.LockUser)
	}
	if out.LockExpire == nil || !out.LockExpire.Equal(expire) {
		t.Errorf("LockExpire = %v, want %v", out.LockExpire, expire)
	}
	if out.VideoURL != "" {
		t.Errorf("VideoURL without resolver = %q, want empty", out.VideoURL)
	}
}

func TestNewEdit_StatusName(t *testing.T) {
	out := NewEdit(&models.Edit{ID: 3, Status: models.EditApproved}, nil)
	if out.Status != 1 || out.StatusName != "approved" {
		t.Errorf("got status %d %q", out.Status, out.StatusName)
	}
}
