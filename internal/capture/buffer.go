package capture

import "sync"

// DefaultMaxBytes caps a single recording. Two minutes of Opus at typical
// bitrates is well under a megabyte; the cap only guards runaway inputs.
const DefaultMaxBytes = 64 << 20

// Buffer is a bounded, append-only sequence of chunks. It is safe for
// concurrent use so streams can flush into it from their own goroutines.
type Buffer struct {
	mu      sync.Mutex
	chunks  [][]byte
	size    int
	limit   int
	dropped int
}

// NewBuffer returns an empty buffer holding at most limit bytes. A limit of
// zero or less means DefaultMaxBytes.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	return &Buffer{limit: limit}
}

// Append copies p onto the end of the buffer. Empty chunks are ignored.
// A chunk that would exceed the limit is dropped whole and Append reports
// false.
func (b *Buffer) Append(p []byte) bool {
	if len(p) == 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size+len(p) > b.limit {
		b.dropped++
		return false
	}
	b.chunks = append(b.chunks, append([]byte(nil), p...))
	b.size += len(p)
	return true
}

// Chunks returns a deep copy of the stored chunks in order.
func (b *Buffer) Chunks() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		return nil
	}
	out := make([][]byte, len(b.chunks))
	for i, c := range b.chunks {
		out[i] = append([]byte(nil), c...)
	}
	return out
}

// Bytes assembles every chunk into one slice.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// Len returns the number of stored chunks.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Size returns the number of stored bytes.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Dropped returns how many chunks were refused because of the limit.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
