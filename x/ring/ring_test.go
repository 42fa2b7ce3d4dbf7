package ring

import (
	"testing"
)

// fakeIO models partial producer progress (accept up to k bytes).
type fakeIO struct{ k int }

func (f fakeIO) write(p []byte) int {
	if len(p) > f.k {
		return f.k
	}
	return len(p)
}

func TestOrderAcrossWrapWithPartialProgress(t *testing.T) {
	r := New(64)
	prod := fakeIO{k: 7}

	const N = 2000
	src := make([]byte, N)
	for i := range src {
		src[i] = byte(i)
	}

	p := src
	dst := make([]byte, N)
	off := 0

	for off < N {
		if len(p) > 0 {
			step := prod.write(p)
			if step > 0 {
				step = r.TryWriteFrom(p[:step])
				p = p[step:]
			}
		}

		var tmp [17]byte
		n := r.TryReadInto(tmp[:])
		if n > 0 {
			copy(dst[off:], tmp[:n])
			off += n
		}
	}

	for i := 0; i < N; i++ {
		if dst[i] != src[i] {
			t.Fatalf("mismatch at %d: got=%d want=%d", i, dst[i], src[i])
		}
	}
}

func TestReadableWritableEdges(t *testing.T) {
	r := New(4)
	select {
	case <-r.Readable():
		t.Fatal("unexpected Readable on empty ring")
	default:
	}
	if n := r.TryWriteFrom([]byte{1, 2, 3, 4, 5}); n != 4 {
		t.Fatalf("write 5 into cap 4 -> %d", n)
	}
	select {
	case <-r.Readable():
	default:
		t.Fatal("expected Readable")
	}
	select {
	case <-r.Readable():
		t.Fatal("unexpected extra Readable")
	default:
	}
	if r.PutByte(9) {
		t.Fatal("PutByte on full ring should fail")
	}
	if b, ok := r.GetByte(); !ok || b != 1 {
		t.Fatalf("GetByte=%d,%v", b, ok)
	}
	select {
	case <-r.Writable():
	default:
		t.Fatal("expected Writable after full -> non-full")
	}
}

func TestSingleByteOpsAndDiscard(t *testing.T) {
	r := New(8)
	for _, b := range []byte("hi\n") {
		if !r.PutByte(b) {
			t.Fatal("PutByte failed")
		}
	}
	if r.Available() != 3 || r.Space() != 5 || r.Cap() != 8 {
		t.Fatalf("avail=%d space=%d", r.Available(), r.Space())
	}
	if n := r.Discard(); n != 3 {
		t.Fatalf("Discard=%d", n)
	}
	if _, ok := r.GetByte(); ok {
		t.Fatal("expected empty after Discard")
	}
}

func TestValidSize(t *testing.T) {
	for _, tc := range []struct {
		n  int
		ok bool
	}{{0, false}, {1, false}, {2, true}, {3, false}, {256, true}, {300, false}} {
		if got := ValidSize(tc.n); got != tc.ok {
			t.Fatalf("ValidSize(%d)=%v", tc.n, got)
		}
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for bad size")
		}
	}()
	New(3)
}
