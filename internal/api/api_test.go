package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/editorhub/editors/internal/api/objects"
	"github.com/editorhub/editors/internal/db"
	"github.com/editorhub/editors/internal/events"
	"github.com/editorhub/editors/internal/lock"
	"github.com/editorhub/editors/internal/models"
	"github.com/editorhub/editors/internal/review"
	"github.com/editorhub/editors/internal/storage"
	"github.com/editorhub/editors/pkg/auth"
	"github.com/editorhub/editors/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testServer struct {
	t         *testing.T
	engine    *gin.Engine
	store     *db.MemoryStore
	tokens    *auth.Tokens
	events    *recordingPublisher
	mediaDir  string
	owner     *models.User
	editor    *models.User
	other     *models.User
	superuser *models.User
	community *models.Community
	project   *models.Project
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemoryStore()

	s := &testServer{
		t:         t,
		store:     store,
		tokens:    auth.NewTokens("test-secret", time.Hour),
		events:    &recordingPublisher{},
		mediaDir:  t.TempDir(),
		owner:     &models.User{Username: "owner", IsActive: true},
		editor:    &models.User{Username: "editor", IsActive: true},
		other:     &models.User{Username: "other", IsActive: true},
		superuser: &models.User{Username: "admin", IsActive: true, IsSuperuser: true},
	}
	for _, u := range []*models.User{s.owner, s.editor, s.other, s.superuser} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser() error = %v", err)
		}
	}
	s.community = &models.Community{Name: "community", OwnerID: s.owner.ID}
	if err := store.CreateCommunity(ctx, s.community); err != nil {
		t.Fatalf("CreateCommunity() error = %v", err)
	}
	s.project = &models.Project{CommunityID: s.community.ID, Title: "project", Reward: 200, Video: "sample.mp4"}
	if err := store.CreateProject(ctx, s.project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}

	blobs, err := storage.NewLocalStore(s.mediaDir)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	router := NewRouter(Deps{
		Store:   store,
		Locks:   lock.NewManager(store, 7*24*time.Hour),
		Reviews: review.NewService(store),
		Blobs:   blobs,
		Tokens:  s.tokens,
		Events:  s.events,
	})
	s.engine = router.NewEngine()
	return s
}

func (s *testServer) token(u *models.User) string {
	s.t.Helper()
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		s.t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func (s *testServer) do(req *http.Request, as *models.User) *httptest.ResponseRecorder {
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(as))
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(path string, as *models.User) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), as)
}

func (s *testServer) post(path string, body interface{}, as *models.User) *httptest.ResponseRecorder {
	s.t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		s.t.Fatalf("Marshal() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, as)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", w.Code, want, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/health", "/.well-known/healthcheck.json"} {
		w := s.get(path, nil)
		expectStatus(t, w, http.StatusOK)

		var body map[string]string
		decode(t, w, &body)
		if body["status"] != "OK" || body["cache"] != "DISABLED" {
			t.Errorf("%s body = %v, want status OK and cache DISABLED", path, body)
		}
	}
}

func TestAccessLog_UserIDOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	previous := logging.Logger
	logging.Logger = zap.New(core)
	t.Cleanup(func() { logging.Logger = previous })

	s := newTestServer(t)
	expectStatus(t, s.get("/project/", s.editor), http.StatusOK)

	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 1 {
		t.Fatalf("access log entries = %d, want 1", len(entries))
	}
	count := 0
	for _, f := range entries[0].Context {
		if f.Key == "user_id" {
			count++
			if f.Integer != s.editor.ID {
				t.Errorf("user_id = %d, want %d", f.Integer, s.editor.ID)
			}
		}
	}
	if count != 1 {
		t.Errorf("user_id appears %d times, want 1", count)
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestServer(t)

	w := s.get("/project/", nil)
	expectStatus(t, w, http.StatusUnauthorized)
	var body struct {
		Error Error `json:"error"`
	}
	decode(t, w, &body)
	if body.Error.Code != http.StatusUnauthorized {
		t.Errorf("error code = %d, want 401", body.Error.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/project/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	expectStatus(t, s.do(req, nil), http.StatusUnauthorized)

	inactive := &models.User{Username: "inactive"}
	if err := s.store.CreateUser(context.Background(), inactive); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	expectStatus(t, s.get("/project/", inactive), http.StatusUnauthorized)

	w = s.get("/project/", s.editor)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

// Claim, conflicting claim, submit, approve: the video lands on the project.
func TestClaimSubmitApprove(t *testing.T) {
	s := newTestServer(t)

	w := s.post("/project/claim/", gin.H{"project_id": s.project.ID}, s.editor)
	expectStatus(t, w, http.StatusCreated)
	var claim objects.Claim
	decode(t, w, &claim)
	if claim.LockUser != s.editor.ID {
		t.Errorf("lock_user = %d, want %d", claim.LockUser, s.editor.ID)
	}
	if d := time.Until(claim.LockExpire); d < 6*24*time.Hour || d > 7*24*time.Hour {
		t.Errorf("lock_expire %v is not about seven days out", claim.LockExpire)
	}

	w = s.post("/project/claim/", gin.H{"project_id": s.project.ID}, s.other)
	expectStatus(t, w, http.StatusForbidden)

	var mine []objects.Project
	decode(t, s.get("/project/mine/", s.editor), &mine)
	if len(mine) != 1 || mine[0].ID != s.project.ID {
		t.Errorf("mine = %+v, want the claimed project", mine)
	}

	w = s.post("/edit/", gin.H{"project_id": s.project.ID, "video": "edits/final.mp4"}, s.editor)
	expectStatus(t, w, http.StatusCreated)
	var edit objects.Edit
	decode(t, w, &edit)
	if edit.Status != int16(models.EditPending) {
		t.Errorf("new edit status = %d, want pending", edit.Status)
	}

	w = s.post("/edit/handle/", gin.H{
		"project_id": s.project.ID,
		"edit_id":    edit.ID,
		"status":     models.EditApproved,
	}, s.owner)
	expectStatus(t, w, http.StatusCreated)
	var outcome objects.Review
	decode(t, w, &outcome)
	if !outcome.Applied || outcome.Edit.Status != int16(models.EditApproved) {
		t.Errorf("outcome = %+v, want applied approval", outcome)
	}

	var project objects.Project
	decode(t, s.get(fmt.Sprintf("/project/%d/", s.project.ID), s.editor), &project)
	if project.Video != "edits/final.mp4" {
		t.Errorf("project video = %q, want the edit's video", project.Video)
	}

	var edits []objects.Edit
	decode(t, s.get(fmt.Sprintf("/edit/?project=%d", s.project.ID), s.owner), &edits)
	if len(edits) != 1 || edits[0].StatusName != "approved" {
		t.Errorf("edits = %+v", edits)
	}

	want := []string{events.ProjectClaimed, events.EditSubmitted, events.EditReviewed}
	if got := s.events.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestClaim_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"missing project_id", gin.H{}, http.StatusBadRequest},
		{"unknown project", gin.H{"project_id": 999}, http.StatusNotFound},
		{"malformed project_id", gin.H{"project_id": "abc"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.post("/project/claim/", tt.body, s.editor), tt.want)
		})
	}
}

func TestHandleEdit_Errors(t *testing.T) {
	s := newTestServer(t)
	w := s.post("/edit/", gin.H{"project_id": s.project.ID, "video": "cut.mp4"}, s.editor)
	expectStatus(t, w, http.StatusCreated)
	var edit objects.Edit
	decode(t, w, &edit)

	tests := []struct {
		name string
		body gin.H
		as   *models.User
		want int
	}{
		{"missing status", gin.H{"project_id": s.project.ID, "edit_id": edit.ID}, s.owner, http.StatusBadRequest},
		{"pending status", gin.H{"project_id": s.project.ID, "edit_id": edit.ID, "status": 0}, s.owner, http.StatusBadRequest},
		{"missing edit_id", gin.H{"project_id": s.project.ID, "status": 1}, s.owner, http.StatusBadRequest},
		{"unknown project", gin.H{"project_id": 999, "edit_id": edit.ID, "status": 1}, s.owner, http.StatusNotFound},
		{"unknown edit", gin.H{"project_id": s.project.ID, "edit_id": 999, "status": 1}, s.owner, http.StatusNotFound},
		{"not the owner", gin.H{"project_id": s.project.ID, "edit_id": edit.ID, "status": 1}, s.other, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.post("/edit/handle/", tt.body, tt.as), tt.want)
		})
	}

	// None of the failures above touched the edit or the project.
	stored, _ := s.store.GetEdit(context.Background(), edit.ID)
	if stored.Status != models.EditPending {
		t.Errorf("edit status = %s, want pending", stored.Status)
	}

	// A superuser may review any community; a conflicting decision afterwards is refused.
	expectStatus(t, s.post("/edit/handle/", gin.H{"project_id": s.project.ID, "edit_id": edit.ID, "status": 2}, s.superuser), http.StatusCreated)
	expectStatus(t, s.post("/edit/handle/", gin.H{"project_id": s.project.ID, "edit_id": edit.ID, "status": 1}, s.owner), http.StatusForbidden)
	project, _ := s.store.GetProject(context.Background(), s.project.ID)
	if project.Video != "sample.mp4" {
		t.Errorf("rejected edit changed project video to %q", project.Video)
	}
}

func TestProjectQueryRequired(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/project-video/", "/edit/", "/edit/?project=abc"} {
		t.Run(path, func(t *testing.T) {
			expectStatus(t, s.get(path, s.editor), http.StatusBadRequest)
		})
	}
}

func TestProjectVideos(t *testing.T) {
	s := newTestServer(t)
	path := fmt.Sprintf("/project-video/?project=%d", s.project.ID)

	expectStatus(t, s.post(path, gin.H{"video": "ref.mp4", "title": "reference"}, s.other), http.StatusForbidden)
	expectStatus(t, s.post(path, gin.H{"title": "no video"}, s.owner), http.StatusBadRequest)
	expectStatus(t, s.post(path, gin.H{"video": "ref-1.mp4"}, s.owner), http.StatusCreated)
	expectStatus(t, s.post(path, gin.H{"video": "ref-2.mp4"}, s.owner), http.StatusCreated)

	var videos []objects.ProjectVideo
	decode(t, s.get(path, s.editor), &videos)
	if len(videos) != 2 || videos[0].Video != "ref-2.mp4" {
		t.Errorf("videos = %+v, want newest first", videos)
	}
	if videos[0].VideoURL != "/media/ref-2.mp4" {
		t.Errorf("video_url = %q", videos[0].VideoURL)
	}
}

// postMultipart sends fields as a multipart form. A non-empty file is sent as
// the "video" file part.
func (s *testServer) postMultipart(path string, fields map[string]string, filename, file string, as *models.User) *httptest.ResponseRecorder {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			s.t.Fatalf("WriteField(%s) error = %v", k, err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("video", filename)
		if err != nil {
			s.t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write([]byte(file))
	}
	if err := mw.Close(); err != nil {
		s.t.Fatalf("Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req, as)
}

func TestSubmitEdit_Multipart(t *testing.T) {
	s := newTestServer(t)

	w := s.postMultipart("/edit/", map[string]string{"project_id": fmt.Sprint(s.project.ID)},
		"final.MP4", "not really a video", s.editor)
	expectStatus(t, w, http.StatusCreated)

	var edit objects.Edit
	decode(t, w, &edit)
	prefix := fmt.Sprintf("edits/%d/", s.project.ID)
	if !strings.HasPrefix(edit.Video, prefix) || !strings.HasSuffix(edit.Video, ".mp4") {
		t.Fatalf("video ref = %q, want %s<uuid>.mp4", edit.Video, prefix)
	}
	data, err := os.ReadFile(filepath.Join(s.mediaDir, filepath.FromSlash(edit.Video)))
	if err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}
	if string(data) != "not really a video" {
		t.Errorf("stored content = %q", data)
	}
}

func TestSubmitEdit_MultipartPlainField(t *testing.T) {
	s := newTestServer(t)
	w := s.postMultipart("/edit/", map[string]string{
		"project_id": fmt.Sprint(s.project.ID),
		"video":      "cut.mp4",
	}, "", "", s.editor)
	expectStatus(t, w, http.StatusCreated)

	var edit objects.Edit
	decode(t, w, &edit)
	if edit.Video != "cut.mp4" {
		t.Errorf("video = %q, want cut.mp4", edit.Video)
	}

	w = s.postMultipart("/edit/", map[string]string{"project_id": fmt.Sprint(s.project.ID)}, "", "", s.editor)
	expectStatus(t, w, http.StatusBadRequest)
}

func TestProjectVideos_Multipart(t *testing.T) {
	s := newTestServer(t)
	w := s.postMultipart("/project-video/", map[string]string{
		"project": fmt.Sprint(s.project.ID),
		"title":   "reference",
	}, "ref.mp4", "reference cut", s.owner)
	expectStatus(t, w, http.StatusCreated)

	var video objects.ProjectVideo
	decode(t, w, &video)
	prefix := fmt.Sprintf("project-videos/%d/", s.project.ID)
	if !strings.HasPrefix(video.Video, prefix) || video.Title != "reference" {
		t.Fatalf("video = %+v, want ref under %s", video, prefix)
	}
	if video.VideoURL != "/media/"+video.Video {
		t.Errorf("video_url = %q", video.VideoURL)
	}
}

func TestCreateProject_Multipart(t *testing.T) {
	s := newTestServer(t)
	w := s.postMultipart("/project/", map[string]string{
		"community": fmt.Sprint(s.community.ID),
		"title":     "uploaded",
	}, "raw.mp4", "raw footage", s.owner)
	expectStatus(t, w, http.StatusCreated)

	var project objects.Project
	decode(t, w, &project)
	if !strings.HasPrefix(project.Video, fmt.Sprintf("projects/%d/", project.ID)) {
		t.Fatalf("video = %q", project.Video)
	}
	stored, err := s.store.GetProject(context.Background(), project.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetProject() = %v, %v", stored, err)
	}
	if stored.Video != project.Video {
		t.Errorf("stored video = %q, want %q", stored.Video, project.Video)
	}
}

func TestCreateProject_UploadFailureLeavesNoRow(t *testing.T) {
	s := newTestServer(t)
	// A regular file where the projects directory belongs makes every upload fail.
	if err := os.WriteFile(filepath.Join(s.mediaDir, "projects"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	w := s.postMultipart("/project/", map[string]string{
		"community": fmt.Sprint(s.community.ID),
		"title":     "doomed",
	}, "raw.mp4", "raw footage", s.owner)
	expectStatus(t, w, http.StatusInternalServerError)

	rows, err := s.store.ListProjectsByCommunity(context.Background(), s.community.ID, models.Page{}.Normalize())
	if err != nil {
		t.Fatalf("ListProjectsByCommunity() error = %v", err)
	}
	if len(rows) != 1 || rows[0].ID != s.project.ID {
		t.Errorf("projects = %+v, want only the fixture project", rows)
	}
}

func TestSubmitEdit_Errors(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.post("/edit/", gin.H{"video": "cut.mp4"}, s.editor), http.StatusBadRequest)
	expectStatus(t, s.post("/edit/", gin.H{"project_id": s.project.ID}, s.editor), http.StatusBadRequest)
	expectStatus(t, s.post("/edit/", gin.H{"project_id": 999, "video": "cut.mp4"}, s.editor), http.StatusNotFound)
}

func TestCommunities(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.post("/community/", gin.H{"name": " "}, s.editor), http.StatusBadRequest)
	w := s.post("/community/", gin.H{"name": "second"}, s.editor)
	expectStatus(t, w, http.StatusCreated)
	var created objects.Community
	decode(t, w, &created)
	if created.Owner != s.editor.ID {
		t.Errorf("owner = %d, want caller %d", created.Owner, s.editor.ID)
	}

	var list []objects.Community
	decode(t, s.get("/community/", s.other), &list)
	if len(list) != 2 {
		t.Errorf("communities = %d, want 2", len(list))
	}

	expectStatus(t, s.get("/community/999/", s.other), http.StatusNotFound)
	expectStatus(t, s.get("/community/abc/", s.other), http.StatusBadRequest)

	var projects []objects.Project
	decode(t, s.get(fmt.Sprintf("/community/%d/projects/", s.community.ID), s.other), &projects)
	if len(projects) != 1 || projects[0].ID != s.project.ID {
		t.Errorf("community projects = %+v", projects)
	}
}

func TestCreateProject(t *testing.T) {
	s := newTestServer(t)
	body := gin.H{"community": s.community.ID, "title": "new", "reward": 50, "video": "raw.mp4"}

	expectStatus(t, s.post("/project/", body, s.other), http.StatusForbidden)
	expectStatus(t, s.post("/project/", gin.H{"community": s.community.ID}, s.owner), http.StatusBadRequest)
	expectStatus(t, s.post("/project/", gin.H{"community": 999, "title": "x"}, s.owner), http.StatusNotFound)

	w := s.post("/project/", body, s.owner)
	expectStatus(t, w, http.StatusCreated)
	var project objects.Project
	decode(t, w, &project)
	if project.Video != "raw.mp4" || project.Reward != 50 || project.LockUser != nil {
		t.Errorf("project = %+v", project)
	}

	var owned []objects.Project
	decode(t, s.get("/project/my_projects/", s.owner), &owned)
	if len(owned) != 2 {
		t.Errorf("owned projects = %d, want 2", len(owned))
	}
	decode(t, s.get("/project/my_projects/", s.other), &owned)
	if len(owned) != 0 {
		t.Errorf("other user owns %d projects, want 0", len(owned))
	}
}

func TestPagination(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.get("/project/?limit=abc", s.editor), http.StatusBadRequest)
	expectStatus(t, s.get("/project/?offset=-1", s.editor), http.StatusBadRequest)

	var projects []objects.Project
	decode(t, s.get("/project/?limit=1000&offset=1", s.editor), &projects)
	if len(projects) != 0 {
		t.Errorf("offset past the only project returned %d rows", len(projects))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{review.ErrBadRequest, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", ErrBadRequest), http.StatusBadRequest},
		{lock.ErrConflict, http.StatusForbidden},
		{review.ErrForbidden, http.StatusForbidden},
		{review.ErrAlreadyReviewed, http.StatusForbidden},
		{lock.ErrNotFound, http.StatusNotFound},
		{review.ErrNotFound, http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{NewError(http.StatusTeapot, "teapot"), http.StatusTeapot},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
