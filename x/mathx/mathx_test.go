package mathx

import (
	"testing"
	"time"
)

func TestClamp(t *testing.T) {
	if got := Clamp(120, 0, 100); got != 100 {
		t.Fatalf("Clamp hi=%d", got)
	}
	if got := Clamp(-3, 0, 100); got != 0 {
		t.Fatalf("Clamp lo=%d", got)
	}
	if got := Clamp(7, 100, 0); got != 7 {
		t.Fatalf("Clamp swapped=%d", got)
	}
	if Min(3*time.Millisecond, time.Second) != 3*time.Millisecond {
		t.Fatal("Min on durations")
	}
}

func TestScalePercent(t *testing.T) {
	cases := []struct {
		pct  uint8
		full uint32
		want uint32
	}{
		{0, 20000, 0},
		{12, 20000, 2400},
		{4, 20000, 800},
		{100, 20000, 20000},
		{150, 20000, 20000},
		{33, 10, 3},
	}
	for _, c := range cases {
		if got := ScalePercent(c.pct, c.full); got != c.want {
			t.Fatalf("ScalePercent(%d,%d)=%d want %d", c.pct, c.full, got, c.want)
		}
	}
	if RoundDiv(uint32(7), 2) != 4 || RoundDiv(uint32(5), 0) != 0 {
		t.Fatal("int div mismatch")
	}
}
