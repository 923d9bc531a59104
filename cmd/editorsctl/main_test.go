package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/editorhub/editors/internal/app"
	"github.com/editorhub/editors/pkg/config"
)

func newTestContext(t *testing.T) *commandContext {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Auth:     config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
		Lock:     config.LockConfig{Duration: config.DefaultLockDuration},
		Storage:  config.StorageConfig{Driver: "local", MediaDir: t.TempDir()},
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	return &commandContext{cfg: cfg, app: a}
}

func run(t *testing.T, ctx *commandContext, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(ctx)
	// Keep the app open across invocations in one test.
	cmd.PersistentPostRun = nil
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateUserAndToken(t *testing.T) {
	ctx := newTestContext(t)

	out, err := run(t, ctx, "createuser", "--username", "alice", "--password", "pw", "--superuser")
	if err != nil {
		t.Fatalf("createuser error = %v", err)
	}
	if !strings.Contains(out, "alice") {
		t.Errorf("createuser output missing username: %s", out)
	}

	if _, err := run(t, ctx, "createuser", "--username", "alice", "--password", "pw"); err == nil {
		t.Error("duplicate createuser should fail")
	}
	if _, err := run(t, ctx, "createuser", "--username", "bob"); err == nil {
		t.Error("createuser without password should fail")
	}

	out, err = run(t, ctx, "token", "1")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}
	claims, err := ctx.app.Tokens.Parse(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != 1 {
		t.Errorf("token user = %d, want 1", claims.UserID)
	}

	if _, err := run(t, ctx, "token", "99"); err == nil {
		t.Error("token for unknown user should fail")
	}
}

func TestSeedCommand(t *testing.T) {
	ctx := newTestContext(t)

	out, err := run(t, ctx, "seed", "--rand-seed", "7")
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	if !strings.Contains(out, "Superuser test") {
		t.Errorf("seed output = %s", out)
	}
	if _, err := run(t, ctx, "seed"); err == nil {
		t.Error("second seed should fail")
	}
	if _, err := run(t, ctx, "migrate"); err != nil {
		t.Errorf("migrate on memory store error = %v", err)
	}
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := parseUserID(tt.arg)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseUserID(%q) = %d, %v", tt.arg, got, err)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}})
	if !strings.Contains(out, "A") || !strings.Contains(out, "1") {
		t.Errorf("renderTable() = %s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Error("renderTable() without headers should be empty")
	}
}
