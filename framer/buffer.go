package framer

// DefaultCapacity is the console frame buffer size.
const DefaultCapacity = 256

// Buffer is a fixed-capacity append-only byte accumulator. It is allocated
// once and reused for every frame.
type Buffer struct {
	data []byte
	n    int
}

// NewBuffer returns an empty buffer holding at most capacity bytes.
// A non-positive capacity selects DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Append stores c and reports whether there was room for it.
func (b *Buffer) Append(c byte) bool {
	if b.n == len(b.data) {
		return false
	}
	b.data[b.n] = c
	b.n++
	return true
}

// Bytes returns the accumulated bytes. The slice aliases the buffer and is
// only valid until the next Append or Reset.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

func (b *Buffer) Len() int   { return b.n }
func (b *Buffer) Cap() int   { return len(b.data) }
func (b *Buffer) Full() bool { return b.n == len(b.data) }

// Reset empties the buffer and clears its previous contents.
func (b *Buffer) Reset() {
	clear(b.data[:b.n])
	b.n = 0
}
