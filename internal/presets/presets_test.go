package presets

import "testing"

func TestAll(t *testing.T) {
	all := All()
	if len(all) != 3 {
		t.Fatalf("All() returned %d presets, want 3", len(all))
	}

	all[0].Name = "changed"
	if got, _ := Get(BottomCentered); got.Name != "Bottom Centered" {
		t.Error("All() exposed the catalog for mutation")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       string
		position string
		wantErr  bool
	}{
		{BottomCentered, "bottom", false},
		{TopBar, "top", false},
		{Karaoke, "center", false},
		{"neon", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, err := Get(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get(%s) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if p.Style.Position != tt.position {
				t.Errorf("Get(%s) position = %s, want %s", tt.id, p.Style.Position, tt.position)
			}
		})
	}
}

func TestIsKaraoke(t *testing.T) {
	k, _ := Get(Karaoke)
	b, _ := Get(BottomCentered)
	if !IsKaraoke(k) || IsKaraoke(b) {
		t.Error("IsKaraoke() misclassified presets")
	}
}
