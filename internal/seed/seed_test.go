package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/editorhub/editors/internal/db"
	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/pkg/auth"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(store, 1)
	s.now = func() time.Time { return now }

	summary, err := s.Seed(ctx)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if summary.Users != 11 || summary.Communities != 10 {
		t.Errorf("summary = %+v, want 11 users and 10 communities", summary)
	}
	if summary.Projects < 10 || summary.Projects > 30 {
		t.Errorf("projects = %d, want between 10 and 30", summary.Projects)
	}

	admin, err := store.GetUserByUsername(ctx, SuperuserName)
	if err != nil || admin == nil {
		t.Fatalf("superuser missing: %v", err)
	}
	if !admin.IsSuperuser || !admin.IsActive {
		t.Errorf("superuser flags = %+v", admin)
	}
	if err := auth.CheckPassword(admin.Password, DefaultPassword); err != nil {
		t.Errorf("superuser password does not verify: %v", err)
	}

	projects, err := store.ListProjectsOwnedBy(ctx, mustUser(t, store, "manager0").ID, models.Page{})
	if err != nil {
		t.Fatalf("ListProjectsOwnedBy() error = %v", err)
	}
	if len(projects) == 0 {
		t.Fatal("manager0 owns no projects")
	}
	for _, p := range projects {
		if p.Reward != ProjectReward || p.Video != SampleVideo {
			t.Errorf("project = %+v", p)
		}
		if !p.LockExpire.Valid || !p.LockExpire.Time.Equal(now.Add(lockLead)) {
			t.Errorf("lock_expire = %v, want %v", p.LockExpire, now.Add(lockLead))
		}
		if p.IsClaimed(now) {
			t.Error("seeded projects must not be claimed")
		}
	}

	if _, err := s.Seed(ctx); !errors.Is(err, ErrAlreadySeeded) {
		t.Errorf("second Seed() error = %v, want ErrAlreadySeeded", err)
	}
}

func mustUser(t *testing.T, store *db.MemoryStore, username string) *models.User {
	t.Helper()
	u, err := store.GetUserByUsername(context.Background(), username)
	if err != nil || u == nil {
		t.Fatalf("user %s missing: %v", username, err)
	}
	return u
}
