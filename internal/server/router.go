// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"
	"strings"

	"github.com/kennan/folio/internal/server/handlers"
	"github.com/kennan/folio/internal/server/pages"
	"github.com/kennan/folio/internal/server/ratelimit"
	"github.com/kennan/folio/internal/storage/uploads"
)

// NewRouter creates and configures the HTTP router.
// Serves API endpoints at /api/*, uploaded images at /uploads/* and the
// server rendered site everywhere else. site may be nil for an API only
// server.
func NewRouter(svc *handlers.Services, cfg *handlers.Config, limiters *ratelimit.Limiters, site *pages.Site) http.Handler {
	mux := &http.ServeMux{}
	ph := handlers.NewProjectHandler(svc.Projects, svc.History)
	ah := handlers.NewAuthHandler(svc.Gate, cfg.SecureCookie, limiters.LoginTier())
	uh := handlers.NewUploadHandler(svc.Uploads, cfg.Quotas.MaxUploadBatchBytes)

	// Health check
	hh := handlers.NewHealthHandler(cfg.Version, svc.Projects)
	mux.Handle("GET /api/health", Wrap(hh.Health, cfg, limiters))

	// Auth endpoints
	mux.Handle("POST /api/auth", Wrap(ah.Auth, cfg, limiters))
	mux.Handle("GET /api/auth", Wrap(ah.Status, cfg, limiters))

	// Project endpoints
	mux.Handle("GET /api/projects", Wrap(ph.List, cfg, limiters))
	mux.Handle("GET /api/projects/schema", Wrap(ph.Schema, cfg, limiters))
	mux.Handle("GET /api/projects/history", WrapAuth(ph.History, svc, cfg, limiters))
	mux.Handle("GET /api/projects/{id}", Wrap(ph.Get, cfg, limiters))
	mux.Handle("POST /api/projects", WrapAuth(ph.Create, svc, cfg, limiters))
	mux.Handle("PUT /api/projects/{id}", WrapAuth(ph.Update, svc, cfg, limiters))
	mux.Handle("DELETE /api/projects/{id}", WrapAuth(ph.Delete, svc, cfg, limiters))

	// Uploads
	mux.Handle("POST /api/upload", RequireAuth(http.HandlerFunc(uh.Upload), svc.Gate, limiters))
	mux.Handle("GET "+uploads.URLPrefix+"/", http.StripPrefix(uploads.URLPrefix, fileServer(svc.Uploads.Dir())))

	if site != nil {
		site.Register(mux)
	}
	return recoverPanics(securityHeaders(logRequests(mux)))
}

// fileServer serves files from dir without directory listings.
func fileServer(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		h := w.Header()
		// Upload names are unique, the content never changes.
		h.Set("Cache-Control", "public, max-age=31536000, immutable")
		h.Set("Content-Security-Policy", "sandbox; default-src 'none'")
		fs.ServeHTTP(w, r)
	})
}
