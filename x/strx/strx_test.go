package strx

import "testing"

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "d"); got != "d" {
		t.Fatalf("got %q", got)
	}
	if got := Coalesce("s", "d"); got != "s" {
		t.Fatalf("got %q", got)
	}
}

func TestAfter(t *testing.T) {
	cases := map[string]string{
		"/dev/serial0": "serial0",
		"uart0":        "uart0",
		"trailing/":    "",
	}
	for in, want := range cases {
		if got := After(in, '/'); got != want {
			t.Errorf("After(%q) = %q, want %q", in, got, want)
		}
	}
}
