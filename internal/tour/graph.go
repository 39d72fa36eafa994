// Package tour models a walkable set of 360° scenes as a directed graph and
// drives navigation between them.
//
// The package knows nothing about projection or viewport math: displaying a
// single panorama is delegated to a Renderer. A Graph is immutable once built;
// a Navigator holds the mutable "which scene is showing" state on top of it.
package tour

import (
	"fmt"
)

// Point is a position in percent of the top-view map.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Exit is a directed edge from one scene to another, placed at angular
// coordinates (degrees) on the source panorama.
type Exit struct {
	ID            string  `json:"id"`
	TargetSceneID string  `json:"targetSceneId"`
	Yaw           float64 `json:"yaw"`
	Pitch         float64 `json:"pitch"`
	Label         string  `json:"label,omitempty"`
}

// Scene is one panorama plus its exits.
type Scene struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Position Point  `json:"position"`
	Exits    []Exit `json:"exits"`
}

// Waypoint is the simple tour format: a titled image with a list of next
// scene ids and no angular placement.
type Waypoint struct {
	ID    string
	Title string
	Image string
	Next  []string
}

// DanglingExit describes an exit whose target does not exist in the graph.
type DanglingExit struct {
	SceneID       string
	ExitID        string
	TargetSceneID string
}

func (d DanglingExit) String() string {
	return fmt.Sprintf("scene %q exit %q targets unknown scene %q", d.SceneID, d.ExitID, d.TargetSceneID)
}

// Graph is an immutable set of scenes.
type Graph struct {
	scenes   []Scene
	index    map[string]int
	dangling []DanglingExit
}

// NewGraph builds a graph from scenes in order.
//
// Duplicate scene ids keep the first occurrence. Exits pointing at unknown
// scenes are dropped and reported by Dangling.
func NewGraph(scenes []Scene) Graph {
	g := Graph{index: make(map[string]int, len(scenes))}
	for _, s := range scenes {
		if s.ID == "" {
			continue
		}
		if _, dup := g.index[s.ID]; dup {
			continue
		}
		g.index[s.ID] = len(g.scenes)
		g.scenes = append(g.scenes, s)
	}
	for i := range g.scenes {
		src := g.scenes[i].Exits
		exits := make([]Exit, 0, len(src))
		for _, e := range src {
			if _, ok := g.index[e.TargetSceneID]; !ok {
				g.dangling = append(g.dangling, DanglingExit{SceneID: g.scenes[i].ID, ExitID: e.ID, TargetSceneID: e.TargetSceneID})
				continue
			}
			exits = append(exits, e)
		}
		g.scenes[i].Exits = exits
	}
	return g
}

// FromWaypoints converts the simple tour format into a graph.
//
// Next edges have no angular placement in that format, so they are spread
// evenly around the horizon.
func FromWaypoints(wps []Waypoint) Graph {
	scenes := make([]Scene, 0, len(wps))
	for _, w := range wps {
		s := Scene{ID: w.ID, Name: w.Title, ImageURL: w.Image}
		for i, next := range w.Next {
			s.Exits = append(s.Exits, Exit{
				ID:            fmt.Sprintf("%s-%d", w.ID, i),
				TargetSceneID: next,
				Yaw:           360 * float64(i) / float64(len(w.Next)),
			})
		}
		scenes = append(scenes, s)
	}
	return NewGraph(scenes)
}

// Len returns the number of scenes.
func (g Graph) Len() int {
	return len(g.scenes)
}

// Empty reports whether the graph has no scene. An empty graph is a valid
// "tour not available yet" state.
func (g Graph) Empty() bool {
	return len(g.scenes) == 0
}

// Scenes returns a copy of the scenes in order.
func (g Graph) Scenes() []Scene {
	out := make([]Scene, len(g.scenes))
	copy(out, g.scenes)
	return out
}

// Scene returns the scene with the given id.
func (g Graph) Scene(id string) (Scene, bool) {
	i, ok := g.index[id]
	if !ok {
		return Scene{}, false
	}
	return g.scenes[i], true
}

// First returns the first scene, or false on an empty graph.
func (g Graph) First() (Scene, bool) {
	if len(g.scenes) == 0 {
		return Scene{}, false
	}
	return g.scenes[0], true
}

// Resolve returns the scene named id, falling back to the first scene.
func (g Graph) Resolve(id string) (Scene, bool) {
	if s, ok := g.Scene(id); ok {
		return s, true
	}
	return g.First()
}

// Dangling returns the exits dropped while building the graph.
func (g Graph) Dangling() []DanglingExit {
	return g.dangling
}

// HotspotsFor returns the clickable markers of a scene. Markers without a
// label take the target scene's name.
func (g Graph) HotspotsFor(sceneID string) []Marker {
	s, ok := g.Scene(sceneID)
	if !ok {
		return nil
	}
	markers := make([]Marker, 0, len(s.Exits))
	for _, e := range s.Exits {
		label := e.Label
		if label == "" {
			if t, ok := g.Scene(e.TargetSceneID); ok {
				label = t.Name
			}
		}
		markers = append(markers, Marker{
			ID:            e.ID,
			TargetSceneID: e.TargetSceneID,
			Yaw:           e.Yaw,
			Pitch:         e.Pitch,
			Label:         label,
		})
	}
	return markers
}
