package entity

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleProject() *Project {
	return &Project{
		ID:       "sahil-yalisi",
		Name:     "Sahil Yalısı",
		Category: Residential,
		Story:    []string{"One.", "Two."},
		TourScenes: []TourScene{
			{ID: "giris", Title: "Giriş", Image: "/uploads/g.jpg", Next: []string{"salon"}},
			{ID: "salon", Title: "Salon", Image: "/uploads/s.jpg"},
		},
	}
}

func TestProjectClone(t *testing.T) {
	p := sampleProject()
	c := p.Clone()
	c.Story[0] = "changed"
	c.TourScenes[0].Next[0] = "changed"
	if p.Story[0] != "One." || p.TourScenes[0].Next[0] != "salon" {
		t.Errorf("Clone shares memory with the original: %+v", p)
	}
}

func TestProjectValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Project)
		want   string
	}{
		{"valid", func(*Project) {}, ""},
		{"category", func(p *Project) { p.Category = "Industrial" }, `unknown category "Industrial"`},
		{"dangling next", func(p *Project) { p.TourScenes[1].Next = []string{"mutfak"} }, `unknown scene "mutfak"`},
		{"duplicate scene", func(p *Project) { p.TourScenes[1].ID = "giris" }, `duplicate id "giris"`},
		{"dangling hotspot", func(p *Project) {
			p.PanoramaScenes = []PanoramaScene{{ID: "a", Hotspots: []Hotspot{{ID: "h", TargetSceneID: "b"}}}}
		}, `hotspot "h" targets unknown scene "b"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleProject()
			tt.mutate(p)
			err := p.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestProjectCategoryAlias(t *testing.T) {
	var p Project
	if err := json.Unmarshal([]byte(`{"id":"x","category":"İç Mekân"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Category != Interior {
		t.Errorf("Category = %q, want %q", p.Category, Interior)
	}
	if err := json.Unmarshal([]byte(`{"id":"x","category":"Barn"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Validate() == nil {
		t.Error("Validate() accepted unknown category")
	}
}

func TestProjectApplyDefaults(t *testing.T) {
	p := &Project{Name: "Yeni"}
	p.ApplyDefaults(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if p.Year != "2024" {
		t.Errorf("Year = %q, want 2024", p.Year)
	}
	if p.Category != Residential {
		t.Errorf("Category = %q, want %q", p.Category, Residential)
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"gallery":[]`) || !strings.Contains(string(b), `"panoramaScenes":[]`) {
		t.Errorf("lists not encoded as []: %s", b)
	}
}

func TestPatch(t *testing.T) {
	t.Run("empty patch is a no-op", func(t *testing.T) {
		var u Patch
		if !u.IsEmpty() {
			t.Fatal("IsEmpty() = false")
		}
		p := sampleProject()
		u.Apply(p)
		if p.Name != "Sahil Yalısı" || len(p.Story) != 2 {
			t.Errorf("empty patch changed the project: %+v", p)
		}
	})

	t.Run("merge keeps id", func(t *testing.T) {
		var u Patch
		if err := json.Unmarshal([]byte(`{"name":"Yalı","story":[],"category":"Ticari"}`), &u); err != nil {
			t.Fatal(err)
		}
		p := sampleProject()
		u.Apply(p)
		if p.ID != "sahil-yalisi" {
			t.Errorf("ID = %q", p.ID)
		}
		if p.Name != "Yalı" || p.Category != Commercial {
			t.Errorf("fields not merged: %+v", p)
		}
		if p.Story == nil || len(p.Story) != 0 {
			t.Errorf("Story = %#v, want empty", p.Story)
		}
		if len(p.TourScenes) != 2 {
			t.Errorf("TourScenes dropped: %+v", p.TourScenes)
		}
	})

	t.Run("PatchFrom copies", func(t *testing.T) {
		src := sampleProject()
		u := PatchFrom(src)
		src.Story[0] = "mutated"
		dst := &Project{ID: "other"}
		u.Apply(dst)
		if dst.ID != "other" || dst.Name != src.Name || dst.Story[0] != "One." {
			t.Errorf("PatchFrom result = %+v", dst)
		}
	})
}

func TestProjectTour(t *testing.T) {
	p := sampleProject()
	g := p.Tour()
	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}
	if p.HasTour() {
		t.Error("HasTour() = true with waypoint scenes only")
	}
	m := g.HotspotsFor("giris")
	if len(m) != 1 || m[0].TargetSceneID != "salon" || m[0].Label != "Salon" {
		t.Errorf("HotspotsFor(giris) = %+v", m)
	}

	p.PanoramaScenes = []PanoramaScene{
		{ID: "p1", Name: "Hall", ImageURL: "/uploads/p1.jpg", Hotspots: []Hotspot{{ID: "h1", TargetSceneID: "p2", Yaw: 45}}},
		{ID: "p2", Name: "Deck", ImageURL: "/uploads/p2.jpg"},
	}
	g = p.Tour()
	if s, ok := g.First(); !ok || s.ID != "p1" {
		t.Errorf("panorama scenes not preferred: %+v", s)
	}
	if !p.HasTour() {
		t.Error("HasTour() = false with panorama scenes")
	}

	if (&Project{}).HasTour() {
		t.Error("HasTour() = true on empty project")
	}
	if !(&Project{}).Tour().Empty() {
		t.Error("Tour() not empty on empty project")
	}
}
