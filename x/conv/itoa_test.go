package conv

import "testing"

func TestItoa(t *testing.T) {
	var buf [20]byte
	for _, c := range []struct {
		n    int64
		want string
	}{{0, "0"}, {7, "7"}, {-42, "-42"}, {115200, "115200"}} {
		if got := string(Itoa(buf[:], c.n)); got != c.want {
			t.Fatalf("Itoa(%d)=%q", c.n, got)
		}
	}
	if Istr(17) != "17" {
		t.Fatal("Istr mismatch")
	}
}
