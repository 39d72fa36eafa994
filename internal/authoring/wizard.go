// Package authoring implements the multi-step project editor used by the
// admin pages.
//
// A Wizard holds an in-memory draft while the admin moves freely between
// steps; nothing is stored until Submit.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maruel/ksid"

	"github.com/kennan/folio/internal/storage/entity"
)

// Step is a page of the wizard.
type Step int

// Wizard steps in order.
const (
	StepBasics Step = iota
	StepImages
	StepStory
	StepTour
	StepReview
)

// Steps lists every step in order.
var Steps = []Step{StepBasics, StepImages, StepStory, StepTour, StepReview}

var stepTitles = [...]string{"Basics", "Images", "Story", "360° Tour", "Review"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepTitles) {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepTitles[s]
}

// ErrNameRequired is returned by Submit when the draft has no name.
var ErrNameRequired = errors.New("project name is required")

// ErrNoScene is returned when editing a scene index that does not exist.
var ErrNoScene = errors.New("no such scene")

// Submitter stores the result of a wizard.
type Submitter interface {
	Create(ctx context.Context, draft *entity.Project) (*entity.Project, error)
	Update(ctx context.Context, id string, patch *entity.Patch) (*entity.Project, error)
}

// Wizard is the state of one editing session.
type Wizard struct {
	mu        sync.Mutex
	step      Step
	draft     *entity.Project
	initialID string
	err       error
}

// NewWizard starts editing initial, or a blank project when initial is nil.
func NewWizard(initial *entity.Project, now time.Time) *Wizard {
	w := &Wizard{}
	if initial != nil {
		w.draft = initial.Clone()
		w.initialID = initial.ID
	} else {
		w.draft = &entity.Project{Story: []string{""}}
		w.draft.ApplyDefaults(now)
	}
	return w
}

// Editing reports whether the wizard edits an existing project.
func (w *Wizard) Editing() bool {
	return w.initialID != ""
}

// InitialID returns the id of the project being edited, if any.
func (w *Wizard) InitialID() string {
	return w.initialID
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Goto jumps to s, clamped to the valid range.
func (w *Wizard) Goto(s Step) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = max(StepBasics, min(s, StepReview))
}

// Next moves one step forward.
func (w *Wizard) Next() {
	w.Goto(w.Step() + 1)
}

// Prev moves one step back.
func (w *Wizard) Prev() {
	w.Goto(w.Step() - 1)
}

// Err returns the error of the last Submit, if it failed.
func (w *Wizard) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Draft returns a copy of the draft.
func (w *Wizard) Draft() *entity.Project {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Clone()
}

// Edit calls fn with the draft. The id cannot be changed.
func (w *Wizard) Edit(fn func(p *entity.Project)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.draft.ID
	fn(w.draft)
	w.draft.ID = id
}

// AddStoryParagraph appends an empty paragraph.
func (w *Wizard) AddStoryParagraph() {
	w.Edit(func(p *entity.Project) { p.Story = append(p.Story, "") })
}

// SetStoryParagraph replaces paragraph i. Out of range indexes are ignored.
func (w *Wizard) SetStoryParagraph(i int, text string) {
	w.Edit(func(p *entity.Project) {
		if i >= 0 && i < len(p.Story) {
			p.Story[i] = text
		}
	})
}

// RemoveStoryParagraph removes paragraph i.
func (w *Wizard) RemoveStoryParagraph(i int) {
	w.Edit(func(p *entity.Project) {
		if i >= 0 && i < len(p.Story) {
			p.Story = slices.Delete(p.Story, i, i+1)
		}
	})
}

// AddGalleryImages appends image URLs to the gallery.
func (w *Wizard) AddGalleryImages(urls ...string) {
	w.Edit(func(p *entity.Project) { p.Gallery = append(p.Gallery, urls...) })
}

// RemoveGalleryImage removes gallery image i.
func (w *Wizard) RemoveGalleryImage(i int) {
	w.Edit(func(p *entity.Project) {
		if i >= 0 && i < len(p.Gallery) {
			p.Gallery = slices.Delete(p.Gallery, i, i+1)
		}
	})
}

// AddScene appends an empty waypoint scene with a generated id and returns
// its index.
func (w *Wizard) AddScene() int {
	n := 0
	w.Edit(func(p *entity.Project) {
		p.TourScenes = append(p.TourScenes, entity.TourScene{ID: "scene-" + ksid.NewID().String()})
		n = len(p.TourScenes) - 1
	})
	return n
}

// UpdateScene calls fn on scene i. Renaming a scene updates the references
// to it.
func (w *Wizard) UpdateScene(i int, fn func(s *entity.TourScene)) error {
	var err error
	w.Edit(func(p *entity.Project) {
		if i < 0 || i >= len(p.TourScenes) {
			err = ErrNoScene
			return
		}
		old := p.TourScenes[i].ID
		fn(&p.TourScenes[i])
		if id := p.TourScenes[i].ID; id != old {
			for j := range p.TourScenes {
				for k, n := range p.TourScenes[j].Next {
					if n == old {
						p.TourScenes[j].Next[k] = id
					}
				}
			}
		}
	})
	return err
}

// RemoveScene removes scene i and every reference to it.
func (w *Wizard) RemoveScene(i int) error {
	var err error
	w.Edit(func(p *entity.Project) {
		if i < 0 || i >= len(p.TourScenes) {
			err = ErrNoScene
			return
		}
		id := p.TourScenes[i].ID
		p.TourScenes = slices.Delete(p.TourScenes, i, i+1)
		for j := range p.TourScenes {
			p.TourScenes[j].Next = slices.DeleteFunc(p.TourScenes[j].Next, func(n string) bool { return n == id })
		}
	})
	return err
}

// Submit stores the draft: Create for a new project, Update otherwise. A
// blank name fails with ErrNameRequired and moves back to the first step.
// On any failure the draft and the step are kept.
func (w *Wizard) Submit(ctx context.Context, sub Submitter) (*entity.Project, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = nil
	if strings.TrimSpace(w.draft.Name) == "" {
		w.err = ErrNameRequired
		w.step = StepBasics
		return nil, w.err
	}
	draft := w.draft.Clone()
	draft.Story = slices.DeleteFunc(draft.Story, func(s string) bool { return strings.TrimSpace(s) == "" })

	var p *entity.Project
	var err error
	if w.initialID == "" {
		p, err = sub.Create(ctx, draft)
	} else {
		patch := entity.PatchFrom(draft)
		p, err = sub.Update(ctx, w.initialID, &patch)
	}
	if err != nil {
		w.err = err
		return nil, err
	}
	return p, nil
}
