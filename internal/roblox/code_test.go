package roblox

import "testing"

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"BB-77FF", "bb77ff"},
		{"Hello, World!", "helloworld"},
		{"under_score", "underscore"},
		{"  spaced  out  ", "spacedout"},
		{"ünïcödé", "ünïcödé"},
		{"123-456", "123456"},
	}
	for _, c := range cases {
		if got := NormalizeText(c.in); got != c.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestContainsCode(t *testing.T) {
	cases := []struct {
		name     string
		haystack string
		code     string
		want     bool
	}{
		{"exact", "BB-77FF", "BB-77FF", true},
		{"case and punctuation stripped", "my code is bb77ff thanks", "BB-77FF", true},
		{"embedded with emoji noise", "verify: ✅ B B - 7 7 F F ✅", "BB-77FF", true},
		{"status text", "playing | bb_77_ff", "BB-77FF", true},
		{"absent", "no code here", "BB-77FF", false},
		{"partial", "bb77", "BB-77FF", false},
		{"empty haystack", "", "BB-77FF", false},
		{"empty code", "bb77ff", "", false},
		{"punctuation-only haystack", "---___---", "BB-77FF", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ContainsCode(c.haystack, c.code); got != c.want {
				t.Errorf("ContainsCode(%q, %q) = %v, want %v", c.haystack, c.code, got, c.want)
			}
		})
	}
}
