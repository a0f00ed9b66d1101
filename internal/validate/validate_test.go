package validate

import "testing"

func TestIsSyntacticallyValid(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"plain name", "notes.txt", true},
		{"no extension", "Makefile", true},
		{"dotfile", ".gitignore", true},
		{"spaces inside", "my notes.txt", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"tab only", "\t", false},
		{"forward slash", "dir/notes.txt", false},
		{"backslash", `dir\notes.txt`, false},
		{"traversal", "../notes.txt", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSyntacticallyValid(tc.input); got != tc.want {
				t.Errorf("IsSyntacticallyValid(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}
