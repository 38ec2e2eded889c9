package workflow

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{name: "short", s: "abc", n: 5, want: "abc"},
		{name: "exact", s: "abcde", n: 5, want: "abcde"},
		{name: "cut", s: "abcdefg", n: 3, want: "abc..."},
		{name: "disabled", s: "abcdefg", n: 0, want: "abcdefg"},
		{name: "multibyte", s: strings.Repeat("é", 10), n: 5, want: strings.Repeat("é", 5) + "..."},
		{name: "mixed", s: "a→b→c→d", n: 4, want: "a→b→..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := excerpt(tt.s, tt.n)
			if got != tt.want {
				t.Errorf("excerpt(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("excerpt(%q, %d) = %q is not valid UTF-8", tt.s, tt.n, got)
			}
		})
	}
}
