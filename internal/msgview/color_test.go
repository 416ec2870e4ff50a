package msgview

import "testing"

func TestPaletteIndexFormula(t *testing.T) {
	// sum of char codes mod palette size
	cases := []struct {
		id   string
		want int
	}{
		{"", 0},
		{"99", (57 + 57) % len(Palette)},
		{"123", (49 + 50 + 51) % len(Palette)},
		{"user2", (117 + 115 + 101 + 114 + 50) % len(Palette)},
	}
	for _, tc := range cases {
		if got := PaletteIndex(tc.id); got != tc.want {
			t.Fatalf("PaletteIndex(%q) = %d, want %d", tc.id, got, tc.want)
		}
	}
}

func TestSchemeForIsStable(t *testing.T) {
	a := SchemeFor("99")
	b := SchemeFor("99")
	if a != b {
		t.Fatalf("same sender must get the same scheme: %#v vs %#v", a, b)
	}
}

func TestPaletteIndexInRange(t *testing.T) {
	ids := []string{"", "0", "123456789", "user0", "user41", "未知用户", "Алиса", "😀"}
	for _, id := range ids {
		idx := PaletteIndex(id)
		if idx < 0 || idx >= len(Palette) {
			t.Fatalf("PaletteIndex(%q) = %d out of range", id, idx)
		}
	}
}

func TestPaletteSize(t *testing.T) {
	if len(Palette) != 12 {
		t.Fatalf("palette size is part of the color contract, got %d", len(Palette))
	}
}
