package engine

import "testing"

func TestExtReplace(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		old    string
		new    string
		want   string
	}{
		{"basic swap", []string{"foo.c", "bar.c"}, "c", "o", "foo.o bar.o"},
		{"leading dot stripped", []string{"foo.c"}, ".c", ".o", "foo.o"},
		{"non-matching left alone", []string{"foo.h", "bar.c"}, "c", "o", "foo.h bar.o"},
		{"no extension left alone", []string{"Makefile"}, "c", "o", "Makefile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtReplace(tt.tokens, tt.old, tt.new); got != tt.want {
				t.Fatalf("ExtReplace(%v, %q, %q) = %q, want %q", tt.tokens, tt.old, tt.new, got, tt.want)
			}
		})
	}
}
