package echo

// Line is one completed line, terminating line feed included.
type Line struct {
	Data      []byte
	Truncated uint32 // bytes dropped because the buffer was full
}

// Framer accumulates bytes into a fixed-capacity buffer until a line feed.
// The cursor never exceeds the capacity: bytes that do not fit are counted
// and dropped, and the line feed still completes the line.
type Framer struct {
	buf     []byte
	n       int
	dropped uint32
}

func NewFramer(capacity int) *Framer {
	if capacity < 1 {
		capacity = 1
	}
	return &Framer{buf: make([]byte, capacity)}
}

// Feed appends b. On a line feed it returns the buffered bytes plus '\n' in
// a fresh slice and resets the buffer.
func (f *Framer) Feed(b byte) (Line, bool) {
	if b == '\n' {
		out := make([]byte, f.n+1)
		copy(out, f.buf[:f.n])
		out[f.n] = '\n'
		l := Line{Data: out, Truncated: f.dropped}
		f.Reset()
		return l, true
	}
	if f.n == len(f.buf) {
		f.dropped++
		return Line{}, false
	}
	f.buf[f.n] = b
	f.n++
	return Line{}, false
}

// Len is the write cursor.
func (f *Framer) Len() int { return f.n }

func (f *Framer) Cap() int { return len(f.buf) }

// Dropped counts bytes discarded from the line in progress.
func (f *Framer) Dropped() uint32 { return f.dropped }

// Buffered returns the bytes of the line in progress. The slice aliases the
// framer's buffer.
func (f *Framer) Buffered() []byte { return f.buf[:f.n] }

func (f *Framer) Reset() {
	f.n = 0
	f.dropped = 0
}
