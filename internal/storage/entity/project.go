package entity

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kennan/folio/internal/tour"
)

// Point is a position in percent of the project's top-view plan.
type Point struct {
	X float64 `json:"x" jsonschema:"minimum=0,maximum=100"`
	Y float64 `json:"y" jsonschema:"minimum=0,maximum=100"`
}

// Hotspot is a clickable exit on a panorama.
type Hotspot struct {
	ID            string  `json:"id"`
	TargetSceneID string  `json:"targetSceneId"`
	Yaw           float64 `json:"yaw" jsonschema:"description=Horizontal angle in degrees"`
	Pitch         float64 `json:"pitch" jsonschema:"description=Vertical angle in degrees"`
	Label         string  `json:"label,omitempty"`
}

// PanoramaScene is a 360° image with angular hotspots.
type PanoramaScene struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	ImageURL string    `json:"imageUrl"`
	Position Point     `json:"position"`
	Hotspots []Hotspot `json:"hotspots"`
}

// TourScene is the simple waypoint format: an image and the ids of the scenes
// reachable from it.
type TourScene struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Image string   `json:"image"`
	Next  []string `json:"next,omitempty"`
}

// Project is one portfolio entry.
type Project struct {
	ID             string          `json:"id" jsonschema:"description=URL slug derived from the name at creation"`
	Name           string          `json:"name"`
	Location       string          `json:"location"`
	Year           string          `json:"year"`
	Category       Category        `json:"category" jsonschema:"enum=Residential,enum=Commercial,enum=Interior,enum=Urban"`
	HeroImage      string          `json:"heroImage"`
	Thumbnail      string          `json:"thumbnail"`
	Area           string          `json:"area"`
	Role           string          `json:"role"`
	Software       string          `json:"software"`
	Story          []string        `json:"story"`
	Gallery        []string        `json:"gallery"`
	TopView        string          `json:"topView"`
	TourScenes     []TourScene     `json:"tourScenes"`
	PanoramaScenes []PanoramaScene `json:"panoramaScenes"`
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	c := *p
	c.Story = slices.Clone(p.Story)
	c.Gallery = slices.Clone(p.Gallery)
	c.TourScenes = make([]TourScene, len(p.TourScenes))
	for i, s := range p.TourScenes {
		s.Next = slices.Clone(s.Next)
		c.TourScenes[i] = s
	}
	c.PanoramaScenes = make([]PanoramaScene, len(p.PanoramaScenes))
	for i, s := range p.PanoramaScenes {
		s.Hotspots = slices.Clone(s.Hotspots)
		c.PanoramaScenes[i] = s
	}
	return &c
}

// ApplyDefaults fills the values a new project gets when left empty.
func (p *Project) ApplyDefaults(now time.Time) {
	if strings.TrimSpace(p.Year) == "" {
		p.Year = strconv.Itoa(now.Year())
	}
	if p.Category == "" {
		p.Category = Residential
	}
	p.Normalize()
}

// Normalize replaces nil lists with empty ones so they encode as [].
func (p *Project) Normalize() {
	if p.Story == nil {
		p.Story = []string{}
	}
	if p.Gallery == nil {
		p.Gallery = []string{}
	}
	if p.TourScenes == nil {
		p.TourScenes = []TourScene{}
	}
	if p.PanoramaScenes == nil {
		p.PanoramaScenes = []PanoramaScene{}
	}
	for i := range p.PanoramaScenes {
		if p.PanoramaScenes[i].Hotspots == nil {
			p.PanoramaScenes[i].Hotspots = []Hotspot{}
		}
	}
}

// ValidationError lists every problem found in a project.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid project: " + strings.Join(e.Problems, "; ")
}

// Validate checks the category and that every scene reference resolves
// within the same representation.
func (p *Project) Validate() error {
	var problems []string
	if !p.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", p.Category))
	}
	problems = append(problems, p.sceneProblems()...)
	if len(problems) != 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (p *Project) sceneProblems() []string {
	var problems []string
	ids := map[string]bool{}
	for i, s := range p.TourScenes {
		switch {
		case s.ID == "":
			problems = append(problems, fmt.Sprintf("tourScenes[%d]: id is required", i))
		case ids[s.ID]:
			problems = append(problems, fmt.Sprintf("tourScenes: duplicate id %q", s.ID))
		}
		ids[s.ID] = true
	}
	for _, s := range p.TourScenes {
		for _, n := range s.Next {
			if !ids[n] {
				problems = append(problems, fmt.Sprintf("tourScenes %q: next references unknown scene %q", s.ID, n))
			}
		}
	}

	ids = map[string]bool{}
	for i, s := range p.PanoramaScenes {
		switch {
		case s.ID == "":
			problems = append(problems, fmt.Sprintf("panoramaScenes[%d]: id is required", i))
		case ids[s.ID]:
			problems = append(problems, fmt.Sprintf("panoramaScenes: duplicate id %q", s.ID))
		}
		ids[s.ID] = true
	}
	for _, s := range p.PanoramaScenes {
		for _, h := range s.Hotspots {
			if !ids[h.TargetSceneID] {
				problems = append(problems, fmt.Sprintf("panoramaScenes %q: hotspot %q targets unknown scene %q", s.ID, h.ID, h.TargetSceneID))
			}
		}
	}
	return problems
}

// HasTour reports whether the interactive tour can be offered. It needs
// panorama scenes; waypoint scenes alone only describe the route.
func (p *Project) HasTour() bool {
	return len(p.PanoramaScenes) != 0
}

// Tour returns the navigable graph of the project: the panorama scenes when
// present, the waypoint scenes otherwise.
func (p *Project) Tour() tour.Graph {
	if len(p.PanoramaScenes) != 0 {
		scenes := make([]tour.Scene, 0, len(p.PanoramaScenes))
		for _, s := range p.PanoramaScenes {
			ts := tour.Scene{
				ID:       s.ID,
				Name:     s.Name,
				ImageURL: s.ImageURL,
				Position: tour.Point{X: s.Position.X, Y: s.Position.Y},
			}
			for _, h := range s.Hotspots {
				ts.Exits = append(ts.Exits, tour.Exit{
					ID:            h.ID,
					TargetSceneID: h.TargetSceneID,
					Yaw:           h.Yaw,
					Pitch:         h.Pitch,
					Label:         h.Label,
				})
			}
			scenes = append(scenes, ts)
		}
		return tour.NewGraph(scenes)
	}
	wps := make([]tour.Waypoint, 0, len(p.TourScenes))
	for _, s := range p.TourScenes {
		wps = append(wps, tour.Waypoint{ID: s.ID, Title: s.Title, Image: s.Image, Next: s.Next})
	}
	return tour.FromWaypoints(wps)
}

// Patch is a field-wise update. Nil fields keep their current value; a
// non-nil empty list clears the field.
type Patch struct {
	Name           *string          `json:"name,omitempty"`
	Location       *string          `json:"location,omitempty"`
	Year           *string          `json:"year,omitempty"`
	Category       *Category        `json:"category,omitempty"`
	HeroImage      *string          `json:"heroImage,omitempty"`
	Thumbnail      *string          `json:"thumbnail,omitempty"`
	Area           *string          `json:"area,omitempty"`
	Role           *string          `json:"role,omitempty"`
	Software       *string          `json:"software,omitempty"`
	Story          *[]string        `json:"story,omitempty"`
	Gallery        *[]string        `json:"gallery,omitempty"`
	TopView        *string          `json:"topView,omitempty"`
	TourScenes     *[]TourScene     `json:"tourScenes,omitempty"`
	PanoramaScenes *[]PanoramaScene `json:"panoramaScenes,omitempty"`
}

// IsEmpty reports whether the patch sets no field.
func (u *Patch) IsEmpty() bool {
	return *u == Patch{}
}

// PatchFrom returns a patch setting every field of p except its id.
func PatchFrom(p *Project) Patch {
	c := p.Clone()
	return Patch{
		Name:           &c.Name,
		Location:       &c.Location,
		Year:           &c.Year,
		Category:       &c.Category,
		HeroImage:      &c.HeroImage,
		Thumbnail:      &c.Thumbnail,
		Area:           &c.Area,
		Role:           &c.Role,
		Software:       &c.Software,
		Story:          &c.Story,
		Gallery:        &c.Gallery,
		TopView:        &c.TopView,
		TourScenes:     &c.TourScenes,
		PanoramaScenes: &c.PanoramaScenes,
	}
}

// Apply merges the patch into p. The id is never modified.
func (u *Patch) Apply(p *Project) {
	setString(&p.Name, u.Name)
	setString(&p.Location, u.Location)
	setString(&p.Year, u.Year)
	if u.Category != nil {
		p.Category = *u.Category
	}
	setString(&p.HeroImage, u.HeroImage)
	setString(&p.Thumbnail, u.Thumbnail)
	setString(&p.Area, u.Area)
	setString(&p.Role, u.Role)
	setString(&p.Software, u.Software)
	if u.Story != nil {
		p.Story = slices.Clone(*u.Story)
	}
	if u.Gallery != nil {
		p.Gallery = slices.Clone(*u.Gallery)
	}
	setString(&p.TopView, u.TopView)
	if u.TourScenes != nil {
		p.TourScenes = (&Project{TourScenes: *u.TourScenes}).Clone().TourScenes
	}
	if u.PanoramaScenes != nil {
		p.PanoramaScenes = (&Project{PanoramaScenes: *u.PanoramaScenes}).Clone().PanoramaScenes
	}
	p.Normalize()
}

func setString(dst, src *string) {
	if src != nil {
		*dst = *src
	}
}
