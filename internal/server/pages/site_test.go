package pages

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/kennan/folio/internal/authoring"
	"github.com/kennan/folio/internal/server/handlers"
	"github.com/kennan/folio/internal/server/ratelimit"
	"github.com/kennan/folio/internal/storage"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/identity"
	"github.com/kennan/folio/internal/storage/uploads"
)

const testPassword = "s3cret"

type testSite struct {
	server   *httptest.Server
	client   *http.Client
	projects *content.ProjectService
	store    *content.MemoryStorage
}

func newTestSite(t *testing.T, seed ...*entity.Project) *testSite {
	t.Helper()
	dir := t.TempDir()
	store := content.NewMemoryStorage(seed...)
	projects := content.NewProjectService(store, nil)

	sessions, err := identity.NewSessionService(filepath.Join(dir, "sessions.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	gate, err := identity.NewGate([]byte("0123456789abcdef0123456789abcdef"), string(hash), sessions, 0)
	if err != nil {
		t.Fatal(err)
	}
	up, err := uploads.New(filepath.Join(dir, "uploads"), 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	site, err := New(Options{
		Studio:   "Atölye",
		Projects: projects,
		Gate:     gate,
		Drafts:   authoring.NewDrafts(0),
		Uploads:  up,
		Limiters: ratelimit.New(storage.DefaultRateLimits()),
	})
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	site.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &testSite{server: server, client: client, projects: projects, store: store}
}

func (s *testSite) get(t *testing.T, path, token string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, s.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s.send(t, req, token)
}

func (s *testSite) post(t *testing.T, path, token string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, s.server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.send(t, req, token)
}

func (s *testSite) send(t *testing.T, req *http.Request, token string) (*http.Response, string) {
	t.Helper()
	if token != "" {
		req.AddCookie(&http.Cookie{Name: handlers.SessionCookie, Value: token})
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(b)
}

func (s *testSite) login(t *testing.T) string {
	t.Helper()
	resp, _ := s.post(t, "/admin/login", "", url.Values{"password": {testPassword}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin" {
		t.Fatalf("login: status = %d, location = %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	for _, c := range resp.Cookies() {
		if c.Name == handlers.SessionCookie {
			return c.Value
		}
	}
	t.Fatal("login did not set the session cookie")
	return ""
}

func villa() *entity.Project {
	return &entity.Project{
		ID:       "villa",
		Name:     "Villa Ege",
		Location: "Bodrum",
		Year:     "2023",
		Category: entity.Residential,
		Story:    []string{"Stone and light."},
		Gallery:  []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
	}
}

func TestPublicPages(t *testing.T) {
	office := &entity.Project{ID: "office", Name: "Port Office", Category: entity.Commercial}
	s := newTestSite(t, villa(), office)

	resp, body := s.get(t, "/", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Villa Ege") || !strings.Contains(body, "Atölye") {
		t.Errorf("home: status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}

	_, body = s.get(t, "/projects?category=Commercial", "")
	if !strings.Contains(body, "Port Office") || strings.Contains(body, "Villa Ege") {
		t.Error("category filter not applied")
	}
	resp, body = s.get(t, "/projects?category=castle", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Port Office") || !strings.Contains(body, "Villa Ege") {
		t.Error("unknown category should list every project")
	}

	resp, body = s.get(t, "/projects/villa", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Stone and light.") {
		t.Errorf("project: status = %d", resp.StatusCode)
	}
	if strings.Contains(body, "/projects/villa/tour") {
		t.Error("a project without scenes must not link to a tour")
	}
}

func TestNotFound(t *testing.T) {
	s := newTestSite(t, villa())
	for _, path := range []string{"/nope", "/projects/missing", "/projects/missing/tour", "/projects/villa/gallery/x"} {
		resp, body := s.get(t, path, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
		}
		if !strings.Contains(body, "Not found") {
			t.Errorf("%s: not the not found page", path)
		}
	}
}

func TestLoadFailure(t *testing.T) {
	s := newTestSite(t, villa())
	s.store.ReadErr = content.ErrStorageIO
	resp, body := s.get(t, "/projects", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(body, "could not be loaded") {
		t.Error("missing error message")
	}
}

func TestGalleryWrapsAround(t *testing.T) {
	s := newTestSite(t, villa())
	for _, tc := range []struct {
		n     string
		image string
		pos   string
	}{
		{"0", "a.jpg", "1 / 2"},
		{"1", "b.jpg", "2 / 2"},
		{"2", "a.jpg", "1 / 2"},
		{"-1", "b.jpg", "2 / 2"},
	} {
		resp, body := s.get(t, "/projects/villa/gallery/"+tc.n, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("gallery/%s: status = %d", tc.n, resp.StatusCode)
			continue
		}
		if !strings.Contains(body, "https://cdn.example.com/"+tc.image) || !strings.Contains(body, tc.pos) {
			t.Errorf("gallery/%s: want %s at %s", tc.n, tc.image, tc.pos)
		}
	}

	empty := &entity.Project{ID: "bare", Name: "Bare"}
	s = newTestSite(t, empty)
	if resp, _ := s.get(t, "/projects/bare/gallery/0", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("empty gallery: status = %d, want 404", resp.StatusCode)
	}
}

func TestTour(t *testing.T) {
	p := villa()
	p.TopView = "https://cdn.example.com/plan.png"
	p.PanoramaScenes = []entity.PanoramaScene{
		{
			ID:       "hall",
			Name:     "Hall",
			ImageURL: "https://cdn.example.com/hall.jpg",
			Position: entity.Point{X: 25, Y: 40},
			Hotspots: []entity.Hotspot{{ID: "h1", TargetSceneID: "garden", Yaw: 90, Label: "To the garden"}},
		},
		{
			ID:       "garden",
			Name:     "Garden",
			ImageURL: "/uploads/villa/garden.jpg",
			Position: entity.Point{X: 75, Y: 60},
		},
	}
	bare := &entity.Project{ID: "bare", Name: "Bare"}
	route := &entity.Project{
		ID:             "route",
		Name:           "Route Only",
		PanoramaScenes: []entity.PanoramaScene{},
		TourScenes: []entity.TourScene{
			{ID: "a", Title: "Entrance", Image: "https://cdn.example.com/a.jpg", Next: []string{"b"}},
			{ID: "b", Title: "Court", Image: "https://cdn.example.com/b.jpg"},
		},
	}
	s := newTestSite(t, p, bare, route)

	t.Run("placeholder", func(t *testing.T) {
		resp, body := s.get(t, "/projects/bare/tour", "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, "no virtual tour") {
			t.Errorf("status = %d, placeholder missing", resp.StatusCode)
		}
	})

	t.Run("waypoints without panoramas", func(t *testing.T) {
		resp, body := s.get(t, "/projects/route/tour", "")
		if resp.StatusCode != http.StatusOK || !strings.Contains(body, "no virtual tour") {
			t.Errorf("status = %d, placeholder missing", resp.StatusCode)
		}
		if strings.Contains(body, "cdn.example.com/a.jpg") {
			t.Error("waypoint scene rendered")
		}
		_, body = s.get(t, "/projects/route", "")
		if strings.Contains(body, "/projects/route/tour") {
			t.Error("detail page links to an unavailable tour")
		}
	})

	t.Run("first scene", func(t *testing.T) {
		_, body := s.get(t, "/projects/villa/tour", "")
		for _, want := range []string{"hall.jpg", "To the garden", "?scene=garden", "left: 25%"} {
			if !strings.Contains(body, want) {
				t.Errorf("missing %q", want)
			}
		}
	})

	t.Run("unknown scene", func(t *testing.T) {
		resp, body := s.get(t, "/projects/villa/tour?scene=attic", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !strings.Contains(body, "That scene does not exist") || !strings.Contains(body, "hall.jpg") {
			t.Error("want a notice and the first scene")
		}
	})

	t.Run("missing image", func(t *testing.T) {
		_, body := s.get(t, "/projects/villa/tour?scene=garden", "")
		if !strings.Contains(body, "This panorama could not be loaded.") {
			t.Error("missing upload not reported")
		}
	})
}

func TestAdminRequiresLogin(t *testing.T) {
	s := newTestSite(t, villa())
	for _, path := range []string{"/admin", "/admin/projects/new", "/admin/projects/villa/edit", "/admin/drafts/abc"} {
		resp, _ := s.get(t, path, "")
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin/login" {
			t.Errorf("%s: status = %d, location = %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
	resp, _ := s.post(t, "/admin/projects/villa/delete", "forged", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("delete with a bad session: status = %d", resp.StatusCode)
	}
	if _, err := s.projects.Get(t.Context(), "villa"); err != nil {
		t.Errorf("project deleted without a session: %v", err)
	}
}

func TestLogin(t *testing.T) {
	s := newTestSite(t)
	resp, body := s.post(t, "/admin/login", "", url.Values{"password": {"wrong"}})
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "Wrong password.") {
		t.Errorf("wrong password: status = %d", resp.StatusCode)
	}

	token := s.login(t)
	resp, body = s.get(t, "/admin", token)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "New project") {
		t.Errorf("dashboard: status = %d", resp.StatusCode)
	}
	if resp, _ := s.get(t, "/admin/login", token); resp.StatusCode != http.StatusSeeOther {
		t.Errorf("login page while logged in: status = %d", resp.StatusCode)
	}

	resp, _ = s.post(t, "/admin/logout", token, nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Errorf("logout: status = %d", resp.StatusCode)
	}
	if resp, _ := s.get(t, "/admin", token); resp.StatusCode != http.StatusSeeOther {
		t.Error("token still valid after logout")
	}
}

func TestLoginRateLimited(t *testing.T) {
	s := newTestSite(t)
	for range storage.DefaultRateLimits().AuthRatePerMin {
		s.post(t, "/admin/login", "", url.Values{"password": {"wrong"}})
	}
	resp, body := s.post(t, "/admin/login", "", url.Values{"password": {testPassword}})
	if resp.StatusCode != http.StatusTooManyRequests || !strings.Contains(body, "Too many attempts") {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}

func TestWizardCreate(t *testing.T) {
	s := newTestSite(t)
	token := s.login(t)

	resp, _ := s.get(t, "/admin/projects/new", token)
	draft := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusSeeOther || !strings.HasPrefix(draft, "/admin/drafts/") {
		t.Fatalf("new: status = %d, location = %q", resp.StatusCode, draft)
	}

	step := func(form url.Values) {
		t.Helper()
		resp, body := s.post(t, draft, token, form)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != draft {
			t.Fatalf("post %v: status = %d\n%s", form, resp.StatusCode, body)
		}
	}

	// Submitting without a name keeps the draft and reports the error.
	resp, body := s.post(t, draft, token, url.Values{"name": {""}, "action": {"submit"}})
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(body, "Could not save") {
		t.Errorf("nameless submit: status = %d", resp.StatusCode)
	}

	step(url.Values{"name": {"Kule Evi"}, "location": {"Ankara"}, "year": {"2022"}, "category": {"Urban"}, "action": {"next"}})
	step(url.Values{"heroImage": {"https://cdn.example.com/hero.jpg"}, "thumbnail": {""}, "topView": {""}, "action": {"next"}})
	step(url.Values{"action": {"story-add"}})
	step(url.Values{"story": {"First paragraph."}, "action": {"story-add"}})
	step(url.Values{"story": {"First paragraph.", "   "}, "action": {"next"}})
	step(url.Values{"action": {"scene-add"}})
	step(url.Values{"scene-0-title": {"Entrance"}, "scene-0-image": {"https://cdn.example.com/e.jpg"}, "action": {"next"}})

	_, body = s.get(t, draft, token)
	if !strings.Contains(body, "Kule Evi") || !strings.Contains(body, "Create project") {
		t.Error("review step does not show the draft")
	}

	resp, _ = s.post(t, draft, token, url.Values{"action": {"submit"}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin?saved=kule-evi" {
		t.Fatalf("submit: status = %d, location = %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	p, err := s.projects.Get(t.Context(), "kule-evi")
	if err != nil {
		t.Fatal(err)
	}
	if p.Category != entity.Urban || p.HeroImage != "https://cdn.example.com/hero.jpg" || len(p.Story) != 1 || len(p.TourScenes) != 1 {
		t.Errorf("stored project = %+v", p)
	}

	// The draft is gone once saved.
	resp, _ = s.get(t, draft, token)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("draft after submit: status = %d, want 404", resp.StatusCode)
	}
}

func TestWizardEditKeepsID(t *testing.T) {
	s := newTestSite(t, villa())
	token := s.login(t)

	resp, _ := s.get(t, "/admin/projects/villa/edit", token)
	draft := resp.Header.Get("Location")
	_, body := s.get(t, draft, token)
	if !strings.Contains(body, `value="Villa Ege"`) {
		t.Error("edit form not prefilled")
	}
	resp, _ = s.post(t, draft, token, url.Values{"name": {"Villa Deniz"}, "category": {"Residential"}, "action": {"submit"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("submit: status = %d", resp.StatusCode)
	}
	p, err := s.projects.Get(t.Context(), "villa")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Villa Deniz" || len(p.Gallery) != 2 {
		t.Errorf("edited project = %+v", p)
	}
}

func TestDashboardDelete(t *testing.T) {
	s := newTestSite(t, villa())
	token := s.login(t)
	resp, _ := s.post(t, "/admin/projects/villa/delete", token, nil)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/admin?deleted=villa" {
		t.Fatalf("delete: status = %d, location = %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	resp, body := s.post(t, "/admin/projects/villa/delete", token, nil)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "Delete failed") {
		t.Errorf("second delete: status = %d", resp.StatusCode)
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestSite(t)
	resp, body := s.get(t, "/static/site.css", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "--accent") {
		t.Errorf("site.css: status = %d", resp.StatusCode)
	}
}
