package version

import "testing"

func TestShortRevision(t *testing.T) {
	cases := []struct {
		rev   string
		dirty bool
		want  string
	}{
		{"", false, ""},
		{"", true, ""},
		{"0123456789abcdef", false, "0123456"},
		{"0123456789abcdef", true, "0123456-dirty"},
		{"abc", false, "abc"},
	}
	for _, c := range cases {
		if got := shortRevision(c.rev, c.dirty); got != c.want {
			t.Errorf("shortRevision(%q, %v) = %q, want %q", c.rev, c.dirty, got, c.want)
		}
	}
}

func TestString(t *testing.T) {
	if got := String("steelpan-play"); len(got) <= len("steelpan-play ") {
		t.Fatalf("String returned %q, expected a version after the program name", got)
	}
}
