package entity

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sahil Yalısı", "sahil-yalisi"},
		{"İstanbul Çarşı Ofisi", "istanbul-carsi-ofisi"},
		{"  Göl Evi!!  ", "gol-evi"},
		{"Şişli -- Ğ Konut", "sisli-g-konut"},
		{"Café Øresund", "cafe-oresund"},
		{"---", DefaultSlug},
		{"", DefaultSlug},
		{"Loft 42", "loft-42"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"sahil-yalisi": true, "sahil-yalisi-1": true}
	isTaken := func(s string) bool { return taken[s] }
	if got := UniqueSlug("sahil-yalisi", isTaken); got != "sahil-yalisi-2" {
		t.Errorf("UniqueSlug() = %q, want %q", got, "sahil-yalisi-2")
	}
	if got := UniqueSlug("kent-meydani", isTaken); got != "kent-meydani" {
		t.Errorf("UniqueSlug() = %q, want %q", got, "kent-meydani")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Salon Görünümü", "salon-gorunumu"},
		{"plan_v2.final", "plan_v2.final"},
		{"../../etc/passwd", "-..-etc-passwd"},
		{"..hidden", "hidden"},
		{"a  b", "a-b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"Residential", Residential, false},
		{"commercial", Commercial, false},
		{"Konut", Residential, false},
		{"Ticari", Commercial, false},
		{"İç Mekân", Interior, false},
		{"Kentsel", Urban, false},
		{"Industrial", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
