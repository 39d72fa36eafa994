package pages

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/kennan/folio/internal/server/handlers"
	"github.com/kennan/folio/internal/server/ratelimit"
	"github.com/kennan/folio/internal/server/reqctx"
	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/identity"
)

type adminHandler func(w http.ResponseWriter, r *http.Request, session *identity.Session)

func sessionToken(r *http.Request) string {
	return handlers.TokenFromRequest(r)
}

// requireAdmin redirects to the login page unless the request carries a
// valid session.
func (s *Site) requireAdmin(fn adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := s.opts.Gate.Verify(sessionToken(r))
		if err != nil {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		fn(w, r, session)
	}
}

type loginPage struct {
	base
	Enabled bool
}

func (s *Site) loginForm(w http.ResponseWriter, r *http.Request) {
	if s.opts.Gate.IsAuthenticated(sessionToken(r)) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", loginPage{base: s.base(r, "Admin login"), Enabled: s.opts.Gate.Enabled()})
}

func (s *Site) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := reqctx.ClientIP(r)
	page := loginPage{base: s.base(r, "Admin login"), Enabled: s.opts.Gate.Enabled()}
	failures := s.opts.Limiters.LoginTier()
	if res := failures.Peek(ip); !res.Allowed {
		ratelimit.WriteHeaders(w, res)
		page.Error = "Too many attempts. Please wait a minute."
		s.render(w, r, http.StatusTooManyRequests, "login", page)
		return
	}
	token, expiresAt, err := s.opts.Gate.Login(ctx, r.PostFormValue("password"), ip, r.UserAgent())
	if errors.Is(err, identity.ErrUnauthorized) {
		failures.Allow(ip)
		page.Error = "Wrong password."
		s.render(w, r, http.StatusUnauthorized, "login", page)
		return
	}
	if err != nil {
		s.failed(w, r, err)
		return
	}
	http.SetCookie(w, handlers.NewSessionCookie(token, expiresAt, s.opts.SecureCookie))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (s *Site) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Gate.Logout(r.Context(), sessionToken(r)); err != nil {
		s.failed(w, r, err)
		return
	}
	http.SetCookie(w, handlers.ClearSessionCookie(s.opts.SecureCookie))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type dashboardPage struct {
	base
	Projects []*entity.Project
	Notice   string
}

func (s *Site) dashboard(w http.ResponseWriter, r *http.Request, _ *identity.Session) {
	s.renderDashboard(w, r, http.StatusOK, "")
}

func (s *Site) renderDashboard(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	page := dashboardPage{base: s.base(r, "Admin")}
	page.Error = errMsg
	q := r.URL.Query()
	switch {
	case q.Get("saved") != "":
		page.Notice = "Saved " + q.Get("saved") + "."
	case q.Get("deleted") != "":
		page.Notice = "Deleted " + q.Get("deleted") + "."
	}
	projects, err := s.opts.Projects.List(r.Context())
	if err != nil {
		page.Error = "The projects could not be loaded: " + err.Error()
		status = http.StatusInternalServerError
	}
	page.Projects = projects
	s.render(w, r, status, "dashboard", page)
}

func (s *Site) deleteProject(w http.ResponseWriter, r *http.Request, _ *identity.Session) {
	id := r.PathValue("id")
	if err := s.opts.Projects.Delete(r.Context(), id); err != nil {
		s.renderDashboard(w, r, statusFor(err), "Delete failed: "+err.Error())
		return
	}
	http.Redirect(w, r, "/admin?deleted="+url.QueryEscape(id), http.StatusSeeOther)
}

func (s *Site) newProject(w http.ResponseWriter, r *http.Request, session *identity.Session) {
	key, _ := s.opts.Drafts.Start(session.ID.String(), nil)
	http.Redirect(w, r, "/admin/drafts/"+key, http.StatusSeeOther)
}

func (s *Site) editProject(w http.ResponseWriter, r *http.Request, session *identity.Session) {
	p, err := s.opts.Projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failed(w, r, err)
		return
	}
	key, _ := s.opts.Drafts.Start(session.ID.String(), p)
	http.Redirect(w, r, "/admin/drafts/"+key, http.StatusSeeOther)
}
