package pages

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/kennan/folio/internal/storage/entity"
	"github.com/kennan/folio/internal/storage/uploads"
	"github.com/kennan/folio/internal/tour"
)

// errImageMissing is returned by pageRenderer for an upload that is gone
// from disk.
var errImageMissing = errors.New("image file is missing")

// pageRenderer is the tour.Renderer of a single page view. It checks that
// uploaded panoramas exist and collects the markers of the scene shown.
type pageRenderer struct {
	uploadsDir string
	imageURL   string
	markers    []tour.Marker
}

func (p *pageRenderer) Render(_ context.Context, imageURL string) error {
	if rel, ok := strings.CutPrefix(imageURL, uploads.URLPrefix+"/"); ok && p.uploadsDir != "" {
		if _, err := os.Stat(filepath.Join(p.uploadsDir, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("%w: %s", errImageMissing, imageURL)
		}
	}
	p.imageURL = imageURL
	return nil
}

func (p *pageRenderer) PlaceMarkers(markers []tour.Marker) {
	p.markers = markers
}

// OnMarkerActivated is a no-op: on a page, a marker is a link.
func (p *pageRenderer) OnMarkerActivated(func(tour.Marker)) {}

func (p *pageRenderer) Close() error {
	return nil
}

type sceneLink struct {
	ID       string
	Name     string
	Active   bool
	Position tour.Point
}

type tourPage struct {
	base
	Project   *entity.Project
	Available bool
	Scene     tour.Scene
	Image     string
	Markers   []tour.Marker
	Scenes    []sceneLink
	Minimap   bool
	Notice    string
}

// tour renders the scene named by ?scene=, the first scene by default. An
// unknown scene keeps the first one and says so.
func (s *Site) tour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := s.opts.Projects.Get(ctx, r.PathValue("id"))
	if err != nil {
		s.failed(w, r, err)
		return
	}
	data := tourPage{base: s.base(r, p.Name+" tour"), Project: p}
	rend := &pageRenderer{}
	if s.opts.Uploads != nil {
		rend.uploadsDir = s.opts.Uploads.Dir()
	}
	nav := tour.New(p.Tour(), "", rend)
	defer func() { _ = nav.Close() }()
	if !p.HasTour() || !nav.Available() {
		s.render(w, r, http.StatusOK, "tour", data)
		return
	}
	data.Available = true

	startErr := nav.Start(ctx)
	if want := r.URL.Query().Get("scene"); want != "" && want != nav.CurrentID() {
		if err := nav.NavigateTo(ctx, want); err != nil {
			data.Notice = noticeFor(err)
		} else {
			startErr = nil
		}
	}
	if data.Notice == "" && startErr != nil {
		data.Notice = noticeFor(startErr)
	}

	data.Scene, _ = nav.Current()
	data.Image = rend.imageURL
	data.Markers = rend.markers
	if data.Image == "" {
		// The current scene failed to render; still offer its exits.
		data.Markers = nav.HotspotsFor(data.Scene.ID)
	}
	for _, sc := range nav.Graph().Scenes() {
		data.Scenes = append(data.Scenes, sceneLink{ID: sc.ID, Name: sc.Name, Active: sc.ID == data.Scene.ID, Position: sc.Position})
	}
	data.Minimap = p.TopView != "" && len(p.PanoramaScenes) != 0
	s.render(w, r, http.StatusOK, "tour", data)
}

func noticeFor(err error) string {
	switch {
	case errors.Is(err, tour.ErrUnknownScene):
		return "That scene does not exist; showing the current one instead."
	case errors.Is(err, tour.ErrMissingImage), errors.Is(err, errImageMissing):
		return "This panorama could not be loaded."
	}
	return "The tour could not be loaded."
}
