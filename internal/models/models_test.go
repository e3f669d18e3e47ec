package models

import "testing"

func TestNormalizeShowID(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Les 12 Coups de Midi!", "les-12-coups-de-midi"},
		{"Koh-Lanta", "koh-lanta"},
		{"  N'oubliez pas les paroles  ", "n-oubliez-pas-les-paroles"},
		{"---", "unknown"},
		{"", "unknown"},
		{"ABC123", "abc123"},
	}

	for _, c := range cases {
		got := NormalizeShowID(c.title)
		if got != c.want {
			t.Errorf("NormalizeShowID(%q) = %q, want %q", c.title, got, c.want)
		}
	}
}

func TestNormalizeShowID_SameTitleCollides(t *testing.T) {
	a := NormalizeShowID("Les 12 Coups de Midi")
	b := NormalizeShowID("LES 12 COUPS DE MIDI")
	if a != b {
		t.Errorf("same title should produce the same id: %q vs %q", a, b)
	}
}
