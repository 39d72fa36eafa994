// Drives scene-to-scene navigation on top of a Renderer.

package tour

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

var (
	// ErrUnknownScene is returned when navigating to an id absent from the graph.
	ErrUnknownScene = errors.New("unknown scene")
	// ErrSuperseded is returned by a navigation overtaken by a later one.
	ErrSuperseded = errors.New("navigation superseded")
	// ErrMissingImage is returned when the target scene has no image URL.
	ErrMissingImage = errors.New("scene has no image")
	// ErrUnavailable is returned when the tour has no scene at all.
	ErrUnavailable = errors.New("tour not available")
)

// Marker is a clickable hotspot as handed to a Renderer.
type Marker struct {
	ID            string
	TargetSceneID string
	Yaw           float64
	Pitch         float64
	Label         string
}

// Renderer displays one panorama at a time.
//
// Render blocks until the image is displayed or failed to load. It may be
// called again before a previous call returned; the Navigator discards stale
// results itself. Callbacks registered with OnMarkerActivated must not be
// invoked while Render or PlaceMarkers are on the stack.
type Renderer interface {
	Render(ctx context.Context, imageURL string) error
	PlaceMarkers(markers []Marker)
	OnMarkerActivated(fn func(Marker))
	Close() error
}

// Navigator tracks the active scene of a Graph.
//
// NavigateTo is the only path that changes the active scene. Concurrent
// requests supersede each other: the last one issued wins, whatever order the
// renderer completes them in.
type Navigator struct {
	graph    Graph
	renderer Renderer

	mu        sync.Mutex
	current   string
	pending   string
	gen       uint64
	loading   bool
	err       error
	listeners []func(sceneID string)
}

// New creates a navigator positioned on startSceneID, or on the first scene
// when startSceneID is empty or unknown.
//
// An empty graph yields a navigator for which Available returns false; every
// navigation then fails with ErrUnavailable.
func New(g Graph, startSceneID string, r Renderer) *Navigator {
	n := &Navigator{graph: g, renderer: r}
	s, ok := g.Resolve(startSceneID)
	if !ok {
		return n
	}
	n.current = s.ID
	if r != nil {
		r.OnMarkerActivated(func(m Marker) {
			if err := n.NavigateTo(context.Background(), m.TargetSceneID); err != nil && !errors.Is(err, ErrSuperseded) {
				slog.Warn("Hotspot navigation failed", "target", m.TargetSceneID, "err", err)
			}
		})
	}
	return n
}

// Available reports whether the tour has at least one scene.
func (n *Navigator) Available() bool {
	return !n.graph.Empty()
}

// Graph returns the underlying graph.
func (n *Navigator) Graph() Graph {
	return n.graph
}

// Start renders the initial scene.
func (n *Navigator) Start(ctx context.Context) error {
	if !n.Available() {
		return ErrUnavailable
	}
	n.mu.Lock()
	id := n.current
	n.mu.Unlock()
	s, _ := n.graph.Scene(id)
	return n.load(ctx, s)
}

// NavigateTo switches to sceneID.
//
// An unknown id is a no-op: the current scene and the loading flag are left
// untouched and ErrUnknownScene is returned.
func (n *Navigator) NavigateTo(ctx context.Context, sceneID string) error {
	if !n.Available() {
		return ErrUnavailable
	}
	s, ok := n.graph.Scene(sceneID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownScene, sceneID)
	}
	return n.load(ctx, s)
}

// Sync reconciles an externally supplied current scene, such as a deep link
// or a minimap click, by navigating to it unless it is already showing or
// being loaded.
func (n *Navigator) Sync(ctx context.Context, sceneID string) error {
	n.mu.Lock()
	settled := (sceneID == n.current && !n.loading) || (n.loading && sceneID == n.pending)
	n.mu.Unlock()
	if settled {
		return nil
	}
	return n.NavigateTo(ctx, sceneID)
}

func (n *Navigator) load(ctx context.Context, s Scene) error {
	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.pending = s.ID
	n.loading = true
	n.mu.Unlock()

	var err error
	if s.ImageURL == "" {
		err = ErrMissingImage
	} else if n.renderer != nil {
		err = n.renderer.Render(ctx, s.ImageURL)
	}

	n.mu.Lock()
	if gen != n.gen {
		n.mu.Unlock()
		return ErrSuperseded
	}
	n.loading = false
	n.pending = ""
	if err != nil {
		n.err = fmt.Errorf("scene %q: %w", s.ID, err)
		err = n.err
		n.mu.Unlock()
		return err
	}
	n.current = s.ID
	n.err = nil
	if n.renderer != nil {
		n.renderer.PlaceMarkers(n.graph.HotspotsFor(s.ID))
	}
	listeners := slices.Clone(n.listeners)
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(s.ID)
	}
	return nil
}

// CurrentID returns the id of the active scene, empty on an unavailable tour.
func (n *Navigator) CurrentID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Current returns the active scene.
func (n *Navigator) Current() (Scene, bool) {
	return n.graph.Scene(n.CurrentID())
}

// Loading reports whether a scene transition is in flight.
func (n *Navigator) Loading() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loading
}

// Err returns the error of the last completed navigation, if it failed.
func (n *Navigator) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// HotspotsFor returns the markers of a scene.
func (n *Navigator) HotspotsFor(sceneID string) []Marker {
	return n.graph.HotspotsFor(sceneID)
}

// OnSceneChange registers fn to be called after each successful navigation.
func (n *Navigator) OnSceneChange(fn func(sceneID string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// Close destroys the renderer.
func (n *Navigator) Close() error {
	if n.renderer == nil {
		return nil
	}
	return n.renderer.Close()
}
