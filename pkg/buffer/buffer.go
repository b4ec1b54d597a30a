// Package buffer implements the growable byte store that connection parsing
// and response assembly operate on.
//
// A Buffer keeps two cursors over one backing slice:
//
//	+-----------------+------------------+------------------+
//	|  consumed space |  readable bytes  |  writable space  |
//	+-----------------+------------------+------------------+
//	0               read              write             cap
//
// Readers see exactly [read, write). Producers append into [write, cap).
// Consumed space at the front is only reclaimed by compaction, which moves the
// readable region to offset 0 before the buffer is grown.
//
// A Buffer is owned by a single connection and is not safe for concurrent use.
package buffer

import (
	"bytes"
	"errors"
	"io"

	"github.com/marmos91/mediaforge/pkg/bufpool"
)

const (
	// InitialSize is the capacity of a fresh buffer.
	InitialSize = 4 << 10

	// minReadSpace is the free space ensured before each transport read.
	minReadSpace = 2 << 10
)

// ErrNegativeRead is returned when a reader reports a negative count.
var ErrNegativeRead = errors.New("buffer: reader returned negative count")

// Buffer is a byte store with independent read and write cursors.
type Buffer struct {
	buf   []byte
	read  int
	write int
}

// New returns an empty buffer with InitialSize capacity.
func New() *Buffer {
	return NewSize(InitialSize)
}

// NewSize returns an empty buffer with at least size bytes of capacity.
func NewSize(size int) *Buffer {
	b := bufpool.Get(size)
	return &Buffer{buf: b[:cap(b)]}
}

// ReadableBytes is the number of unconsumed bytes.
func (b *Buffer) ReadableBytes() int { return b.write - b.read }

// WritableBytes is the free space after the write cursor.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.write }

// PrependableBytes is the consumed space before the read cursor.
func (b *Buffer) PrependableBytes() int { return b.read }

// Cap returns the size of the backing slice.
func (b *Buffer) Cap() int { return len(b.buf) }

// Peek returns the readable bytes without consuming them. The slice aliases
// the buffer and is invalidated by the next write or compaction.
func (b *Buffer) Peek() []byte { return b.buf[b.read:b.write] }

// Retrieve consumes n bytes. Consuming everything resets both cursors.
func (b *Buffer) Retrieve(n int) {
	if n < 0 {
		return
	}
	if n >= b.ReadableBytes() {
		b.RetrieveAll()
		return
	}
	b.read += n
}

// RetrieveUntil consumes up to end, an offset into the slice returned by
// Peek. It is the cursor form of "consume through this position".
func (b *Buffer) RetrieveUntil(end int) {
	b.Retrieve(end)
}

// RetrieveAll discards all readable bytes and resets both cursors to zero.
func (b *Buffer) RetrieveAll() {
	b.read = 0
	b.write = 0
}

// RetrieveAllString consumes everything and returns it as a string.
func (b *Buffer) RetrieveAllString() string {
	s := string(b.Peek())
	b.RetrieveAll()
	return s
}

// IndexCRLF returns the offset of the first "\r\n" in the readable bytes, or -1.
func (b *Buffer) IndexCRLF() int {
	return bytes.Index(b.Peek(), crlf)
}

var crlf = []byte("\r\n")

// Append copies p after the readable bytes.
func (b *Buffer) Append(p []byte) {
	b.EnsureWritable(len(p))
	b.write += copy(b.buf[b.write:], p)
}

// AppendString copies s after the readable bytes.
func (b *Buffer) AppendString(s string) {
	b.EnsureWritable(len(s))
	b.write += copy(b.buf[b.write:], s)
}

// Write implements io.Writer so formatted output can target the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// EnsureWritable makes room for at least n more bytes, first by compacting
// consumed space and then by growing the backing slice.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	b.makeSpace(n)
}

func (b *Buffer) makeSpace(n int) {
	readable := b.ReadableBytes()

	if b.WritableBytes()+b.PrependableBytes() >= n {
		copy(b.buf, b.buf[b.read:b.write])
		b.read = 0
		b.write = readable
		return
	}

	size := len(b.buf) * 2
	for size < readable+n {
		size *= 2
	}
	next := bufpool.Get(size)
	next = next[:cap(next)]
	copy(next, b.buf[b.read:b.write])
	bufpool.Put(b.buf)

	b.buf = next
	b.read = 0
	b.write = readable
}

// AppendFrom performs one read from r into free space, growing or compacting
// first so at least a small chunk is available. It returns the number of
// bytes appended. A zero-byte read with no error is reported as io.EOF:
// on a readable socket that means the peer closed its sending half.
func (b *Buffer) AppendFrom(r io.Reader) (int, error) {
	b.EnsureWritable(minReadSpace)

	n, err := r.Read(b.buf[b.write:])
	if n < 0 {
		return 0, ErrNegativeRead
	}
	b.write += n
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

// Release returns the backing slice to the pool. The buffer is unusable
// afterwards.
func (b *Buffer) Release() {
	if b.buf != nil {
		bufpool.Put(b.buf)
	}
	b.buf = nil
	b.read = 0
	b.write = 0
}
