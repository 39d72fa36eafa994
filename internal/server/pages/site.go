// Package pages renders the public portfolio and the admin area as server
// side HTML.
//
// Every page is a layout plus one content template, all embedded in the
// binary. Failures are rendered inline; a page never answers with a bare
// error string.
package pages

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kennan/folio/internal/authoring"
	"github.com/kennan/folio/internal/server/ratelimit"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/identity"
	"github.com/kennan/folio/internal/storage/uploads"
)

// featuredCount is how many projects the home page shows.
const featuredCount = 3

//go:embed templates static
var files embed.FS

var pageNames = []string{
	"home", "projects", "project", "gallery", "tour", "notfound", "error",
	"login", "dashboard", "wizard",
}

// Options are the dependencies of a Site.
type Options struct {
	Studio       string
	Projects     *content.ProjectService
	Gate         *identity.Gate
	Drafts       *authoring.Drafts
	Uploads      *uploads.Store
	Limiters     *ratelimit.Limiters // may be nil
	SecureCookie bool
	// MaxUploadBatch caps a multipart wizard request.
	MaxUploadBatch int64
}

// Site serves the HTML pages.
type Site struct {
	opts  Options
	pages map[string]*template.Template
}

// New parses the embedded templates.
func New(opts Options) (*Site, error) {
	if opts.Studio == "" {
		opts.Studio = "Studio"
	}
	funcs := template.FuncMap{
		"inc":  func(i int) int { return i + 1 },
		"join": strings.Join,
		"pct":  func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) + "%" },
	}
	s := &Site{opts: opts, pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		s.pages[name] = t
	}
	return s, nil
}

// Register adds the page routes to mux.
func (s *Site) Register(mux *http.ServeMux) {
	static, _ := fs.Sub(files, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /{$}", s.home)
	mux.HandleFunc("GET /projects", s.projects)
	mux.HandleFunc("GET /projects/{id}", s.project)
	mux.HandleFunc("GET /projects/{id}/gallery/{n}", s.gallery)
	mux.HandleFunc("GET /projects/{id}/tour", s.tour)

	mux.HandleFunc("GET /admin/login", s.loginForm)
	mux.HandleFunc("POST /admin/login", s.login)
	mux.HandleFunc("POST /admin/logout", s.logout)
	mux.HandleFunc("GET /admin", s.requireAdmin(s.dashboard))
	mux.HandleFunc("GET /admin/{$}", s.requireAdmin(s.dashboard))
	mux.HandleFunc("POST /admin/projects/{id}/delete", s.requireAdmin(s.deleteProject))
	mux.HandleFunc("GET /admin/projects/new", s.requireAdmin(s.newProject))
	mux.HandleFunc("GET /admin/projects/{id}/edit", s.requireAdmin(s.editProject))
	mux.HandleFunc("GET /admin/drafts/{key}", s.requireAdmin(s.wizardStep))
	mux.HandleFunc("POST /admin/drafts/{key}", s.requireAdmin(s.wizardPost))

	mux.HandleFunc("/", s.notFound)
}

// base holds the fields every template uses.
type base struct {
	Studio string
	Title  string
	Admin  bool
	Error  string
}

func (s *Site) base(r *http.Request, title string) base {
	return base{
		Studio: s.opts.Studio,
		Title:  title,
		Admin:  s.opts.Gate.IsAuthenticated(sessionToken(r)),
	}
}

// render executes page into a buffer first so a template error never leaves
// a half written page.
func (s *Site) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render page", "page", page, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.DebugContext(r.Context(), "Failed to write page", "err", err)
	}
}

type messagePage struct {
	base
	Message string
}

func (s *Site) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "notfound", messagePage{base: s.base(r, "Not found"), Message: "This page does not exist."})
}

// failed renders a load failure inline. A missing project is a 404, anything
// else a 500.
func (s *Site) failed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, content.ErrNotFound) {
		s.render(w, r, http.StatusNotFound, "notfound", messagePage{base: s.base(r, "Not found"), Message: "This project does not exist."})
		return
	}
	slog.ErrorContext(r.Context(), "Page failed", "path", r.URL.Path, "err", err)
	s.render(w, r, http.StatusInternalServerError, "error", messagePage{
		base:    s.base(r, "Error"),
		Message: "The projects could not be loaded. Please try again later.",
	})
}

type homePage struct {
	base
	Featured []*entity.Project
}

func (s *Site) home(w http.ResponseWriter, r *http.Request) {
	projects, err := s.opts.Projects.List(r.Context())
	if err != nil {
		s.failed(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "home", homePage{
		base:     s.base(r, ""),
		Featured: projects[:min(featuredCount, len(projects))],
	})
}

type categoryLink struct {
	Label  string
	Value  string
	Active bool
}

type projectsPage struct {
	base
	Categories []categoryLink
	Projects   []*entity.Project
}

func (s *Site) projects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.opts.Projects.List(r.Context())
	if err != nil {
		s.failed(w, r, err)
		return
	}
	var filter entity.Category
	if q := r.URL.Query().Get("category"); q != "" {
		// Unknown categories fall back to All.
		filter, _ = entity.ParseCategory(q)
	}
	links := []categoryLink{{Label: "All", Active: filter == ""}}
	for _, c := range entity.Categories {
		links = append(links, categoryLink{Label: string(c), Value: string(c), Active: c == filter})
	}
	shown := make([]*entity.Project, 0, len(projects))
	for _, p := range projects {
		if filter == "" || p.Category == filter {
			shown = append(shown, p)
		}
	}
	s.render(w, r, http.StatusOK, "projects", projectsPage{
		base:       s.base(r, "Projects"),
		Categories: links,
		Projects:   shown,
	})
}

type projectPage struct {
	base
	Project *entity.Project
	HasTour bool
}

func (s *Site) project(w http.ResponseWriter, r *http.Request) {
	p, err := s.opts.Projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failed(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "project", projectPage{base: s.base(r, p.Name), Project: p, HasTour: p.HasTour()})
}

type galleryPage struct {
	base
	Project *entity.Project
	Image   string
	Index   int
	Count   int
	Prev    int
	Next    int
}

// gallery shows one image full screen. Navigation wraps around both ends.
func (s *Site) gallery(w http.ResponseWriter, r *http.Request) {
	p, err := s.opts.Projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failed(w, r, err)
		return
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	count := len(p.Gallery)
	if err != nil || count == 0 {
		s.notFound(w, r)
		return
	}
	n = ((n % count) + count) % count
	s.render(w, r, http.StatusOK, "gallery", galleryPage{
		base:    s.base(r, p.Name),
		Project: p,
		Image:   p.Gallery[n],
		Index:   n,
		Count:   count,
		Prev:    (n - 1 + count) % count,
		Next:    (n + 1) % count,
	})
}
