package pages

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/kennan/folio/internal/authoring"
	"github.com/kennan/folio/internal/storage/content"
	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/identity"
	"github.com/kennan/folio/internal/storage/uploads"
)

// multipartMemory is how much of a wizard upload is buffered in memory.
const multipartMemory = 32 << 20

var stepKinds = map[authoring.Step]string{
	authoring.StepBasics: "basics",
	authoring.StepImages: "images",
	authoring.StepStory:  "story",
	authoring.StepTour:   "tour",
	authoring.StepReview: "review",
}

type stepLink struct {
	Index  int
	Title  string
	Active bool
}

type nextOption struct {
	ID      string
	Title   string
	Checked bool
}

type sceneForm struct {
	Index int
	Scene entity.TourScene
	Next  []nextOption
}

type wizardPage struct {
	base
	Key        string
	Kind       string
	Step       int
	Last       int
	Steps      []stepLink
	Editing    bool
	Draft      *entity.Project
	Categories []entity.Category
	Scenes     []sceneForm
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, content.ErrValidation), errors.Is(err, authoring.ErrNameRequired),
		errors.Is(err, uploads.ErrNoFiles), errors.Is(err, uploads.ErrTooLarge), errors.Is(err, uploads.ErrNotImage):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// draft returns the wizard of the request, or renders the dashboard with an
// error when it expired.
func (s *Site) draft(w http.ResponseWriter, r *http.Request, session *identity.Session) (string, *authoring.Wizard, bool) {
	key := r.PathValue("key")
	wiz, ok := s.opts.Drafts.Get(session.ID.String(), key)
	if !ok {
		s.renderDashboard(w, r, http.StatusNotFound, "This draft expired. Please start again.")
		return "", nil, false
	}
	return key, wiz, true
}

func (s *Site) wizardStep(w http.ResponseWriter, r *http.Request, session *identity.Session) {
	key, wiz, ok := s.draft(w, r, session)
	if !ok {
		return
	}
	s.renderWizard(w, r, http.StatusOK, key, wiz, "")
}

func (s *Site) renderWizard(w http.ResponseWriter, r *http.Request, status int, key string, wiz *authoring.Wizard, errMsg string) {
	draft := wiz.Draft()
	step := wiz.Step()
	title := "New project"
	if wiz.Editing() {
		title = "Edit " + wiz.InitialID()
	}
	page := wizardPage{
		base:       s.base(r, title),
		Key:        key,
		Kind:       stepKinds[step],
		Step:       int(step),
		Last:       int(authoring.StepReview),
		Editing:    wiz.Editing(),
		Draft:      draft,
		Categories: entity.Categories,
	}
	page.Error = errMsg
	for _, st := range authoring.Steps {
		page.Steps = append(page.Steps, stepLink{Index: int(st), Title: st.String(), Active: st == step})
	}
	for i, sc := range draft.TourScenes {
		f := sceneForm{Index: i, Scene: sc}
		for _, other := range draft.TourScenes {
			if other.ID == sc.ID {
				continue
			}
			f.Next = append(f.Next, nextOption{ID: other.ID, Title: other.Title, Checked: slices.Contains(sc.Next, other.ID)})
		}
		page.Scenes = append(page.Scenes, f)
	}
	s.render(w, r, status, "wizard", page)
}

// wizardPost applies the fields of the step shown, then performs the action
// of the button pressed.
func (s *Site) wizardPost(w http.ResponseWriter, r *http.Request, session *identity.Session) {
	key, wiz, ok := s.draft(w, r, session)
	if !ok {
		return
	}
	ctx := r.Context()
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		if s.opts.MaxUploadBatch > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBatch)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			s.renderWizard(w, r, http.StatusBadRequest, key, wiz, "The upload is too large or malformed.")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	} else if err := r.ParseForm(); err != nil {
		s.renderWizard(w, r, http.StatusBadRequest, key, wiz, "Invalid form.")
		return
	}

	if err := s.applyStep(r, wiz); err != nil {
		s.renderWizard(w, r, statusFor(err), key, wiz, "Upload failed: "+err.Error())
		return
	}

	action, arg := parseAction(r.PostFormValue("action"))
	switch action {
	case "next":
		wiz.Next()
	case "prev":
		wiz.Prev()
	case "goto":
		wiz.Goto(authoring.Step(arg))
	case "story-add":
		wiz.AddStoryParagraph()
	case "story-remove":
		wiz.RemoveStoryParagraph(arg)
	case "gallery-remove":
		wiz.RemoveGalleryImage(arg)
	case "scene-add":
		wiz.AddScene()
	case "scene-remove":
		_ = wiz.RemoveScene(arg)
	case "submit":
		p, err := wiz.Submit(ctx, s.opts.Projects)
		if err != nil {
			s.renderWizard(w, r, statusFor(err), key, wiz, "Could not save: "+err.Error())
			return
		}
		s.opts.Drafts.Discard(session.ID.String(), key)
		http.Redirect(w, r, "/admin?saved="+url.QueryEscape(p.ID), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin/drafts/"+key, http.StatusSeeOther)
}

// parseAction splits "story-remove-2" into ("story-remove", 2).
func parseAction(v string) (string, int) {
	i := strings.LastIndexByte(v, '-')
	if i < 0 {
		return v, 0
	}
	n, err := strconv.Atoi(v[i+1:])
	if err != nil {
		return v, 0
	}
	return v[:i], n
}

// applyStep copies the fields of the current step from the form into the
// draft, uploading attached files first.
func (s *Site) applyStep(r *http.Request, wiz *authoring.Wizard) error {
	form := r.PostForm
	switch wiz.Step() {
	case authoring.StepBasics:
		if !form.Has("name") {
			return nil
		}
		wiz.Edit(func(p *entity.Project) {
			p.Name = strings.TrimSpace(form.Get("name"))
			p.Location = strings.TrimSpace(form.Get("location"))
			p.Year = strings.TrimSpace(form.Get("year"))
			if c, err := entity.ParseCategory(form.Get("category")); err == nil {
				p.Category = c
			}
			p.Area = strings.TrimSpace(form.Get("area"))
			p.Role = strings.TrimSpace(form.Get("role"))
			p.Software = strings.TrimSpace(form.Get("software"))
		})

	case authoring.StepImages:
		sub := entity.Slugify(wiz.Draft().Name)
		single := map[string]string{}
		for _, field := range []string{"heroImage", "thumbnail", "topView"} {
			single[field] = strings.TrimSpace(form.Get(field))
			urls, err := s.upload(r, field+"File", sub)
			if err != nil {
				return err
			}
			if len(urls) != 0 {
				single[field] = urls[0]
			}
		}
		gallery, err := s.upload(r, "galleryFiles", sub)
		if err != nil {
			return err
		}
		if form.Has("heroImage") {
			wiz.Edit(func(p *entity.Project) {
				p.HeroImage = single["heroImage"]
				p.Thumbnail = single["thumbnail"]
				p.TopView = single["topView"]
			})
		}
		wiz.AddGalleryImages(gallery...)

	case authoring.StepStory:
		if !form.Has("story") {
			return nil
		}
		story := form["story"]
		wiz.Edit(func(p *entity.Project) { p.Story = slices.Clone(story) })

	case authoring.StepTour:
		sub := entity.Slugify(wiz.Draft().Name)
		for i := range wiz.Draft().TourScenes {
			prefix := "scene-" + strconv.Itoa(i) + "-"
			if !form.Has(prefix + "title") {
				continue
			}
			image := strings.TrimSpace(form.Get(prefix + "image"))
			urls, err := s.upload(r, prefix+"file", sub)
			if err != nil {
				return err
			}
			if len(urls) != 0 {
				image = urls[0]
			}
			next := form[prefix+"next"]
			_ = wiz.UpdateScene(i, func(sc *entity.TourScene) {
				sc.Title = strings.TrimSpace(form.Get(prefix + "title"))
				sc.Image = image
				sc.Next = slices.Clone(next)
			})
		}
	}
	return nil
}

// upload stores the files of a multipart field. It returns nil when the
// field is absent or empty.
func (s *Site) upload(r *http.Request, field, subfolder string) ([]string, error) {
	if r.MultipartForm == nil || s.opts.Uploads == nil {
		return nil, nil
	}
	var hdrs []*multipart.FileHeader
	for _, h := range r.MultipartForm.File[field] {
		if h.Size > 0 && h.Filename != "" {
			hdrs = append(hdrs, h)
		}
	}
	if len(hdrs) == 0 {
		return nil, nil
	}
	return s.opts.Uploads.Upload(r.Context(), uploads.FromMultipart(hdrs), subfolder)
}
