package validators

import "testing"

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  damaged box \n", 0, "damaged box"},
		{"drops control chars", "late\x00 de\x07livery", 0, "late delivery"},
		{"keeps newlines", "line one\nline two", 0, "line one\nline two"},
		{"cuts on rune boundary", "caña rota", 3, "cañ"},
		{"no trailing space after cut", "ab cd", 3, "ab"},
	}
	for _, tc := range cases {
		if got := CleanText(tc.in, tc.max); got != tc.want {
			t.Errorf("%s: CleanText(%q, %d) = %q, want %q", tc.name, tc.in, tc.max, got, tc.want)
		}
	}
}
