// Package chunkio provides exact-size reads over byte sources that
// deliver data in arbitrary, unaligned chunks. Both the cipher reader
// and the container parser need "exactly n bytes, or tell me the stream
// ended" semantics that io.Reader alone does not give.
package chunkio

import "io"

// readSize is the pull granularity from the underlying source.
const readSize = 32 * 1024

// Buffer is a pull-based accumulator over an io.Reader.
//
// Buffered bytes preserve source order; Consume, Skip and Read are the
// only ways bytes leave the buffer. A Buffer owns its accumulator state
// and must not be shared across readers.
type Buffer struct {
	src io.Reader
	buf []byte
	off int
	err error // sticky source error, io.EOF included
}

// New creates a Buffer reading from src.
func New(src io.Reader) *Buffer {
	return &Buffer{src: src}
}

// Buffered returns the number of bytes currently buffered.
func (b *Buffer) Buffered() int {
	return len(b.buf) - b.off
}

// Ensure pulls from the source until at least n bytes are buffered or
// the source is exhausted. It reports whether the requirement was met.
// The error is non-nil only for real read failures, never for a clean
// end of the source.
func (b *Buffer) Ensure(n int) (bool, error) {
	for b.Buffered() < n {
		if b.err != nil {
			if b.err == io.EOF {
				return false, nil
			}
			return false, b.err
		}
		b.fill()
	}
	return true, nil
}

// Peek returns a view of the next n buffered bytes without consuming
// them. The caller must have called Ensure(n) successfully first; the
// view is valid until the next Buffer operation.
func (b *Buffer) Peek(n int) []byte {
	return b.buf[b.off : b.off+n]
}

// Consume removes and returns exactly n buffered bytes. The caller must
// have called Ensure(n) successfully first. The returned slice aliases
// the internal buffer and is valid until the next Buffer operation.
func (b *Buffer) Consume(n int) []byte {
	p := b.buf[b.off : b.off+n]
	b.off += n
	return p
}

// Skip discards n bytes without retaining them, preferring buffered
// bytes before pulling more. It returns io.ErrUnexpectedEOF when the
// source ends before n bytes were discarded.
func (b *Buffer) Skip(n int64) error {
	for n > 0 {
		if have := int64(b.Buffered()); have > 0 {
			take := min(have, n)
			b.off += int(take)
			n -= take
			continue
		}
		if b.err != nil {
			if b.err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return b.err
		}
		b.fill()
	}
	return nil
}

// Read implements io.Reader, draining buffered bytes before falling
// through to the source. It lets a partially consumed Buffer stand in
// for the remainder of the original stream.
func (b *Buffer) Read(p []byte) (int, error) {
	if b.Buffered() == 0 {
		if b.err != nil {
			return 0, b.err
		}
		b.fill()
	}
	if have := b.Buffered(); have > 0 {
		n := copy(p, b.buf[b.off:])
		b.off += n
		return n, nil
	}
	return 0, b.err
}

// fill performs one pull from the source, compacting consumed space
// first so the buffer does not grow without bound.
func (b *Buffer) fill() {
	if b.off > 0 {
		b.buf = append(b.buf[:0], b.buf[b.off:]...)
		b.off = 0
	}
	start := len(b.buf)
	b.buf = append(b.buf, make([]byte, readSize)...)
	n, err := b.src.Read(b.buf[start:])
	b.buf = b.buf[:start+n]
	if err != nil {
		b.err = err
	}
}
