package ustar

import (
	"io"
	"strings"

	"github.com/plasma4/littleexport/internal/chunkio"
)

// Header describes one decoded entry.
type Header struct {
	Path  string
	Size  uint64
	IsDir bool
}

// Reader parses a container stream into a lazy, finite, non-restartable
// sequence of entries.
//
// After Next returns a header, the Reader serves that entry's payload
// through Read. Payload bytes left unread when Next is called again are
// skipped along with the block padding, so callers choose per entry
// whether to materialize, stream, or skip.
type Reader struct {
	b       *chunkio.Buffer
	lenient bool   // tolerate a missing end-of-archive marker
	remain  uint64 // unread payload bytes of the current entry
	padding int64  // padding after the current entry
	done    bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTruncationTolerance makes a source that ends without the
// end-of-archive marker a clean stop instead of ErrTruncated.
func WithTruncationTolerance(enabled bool) ReaderOption {
	return func(tr *Reader) {
		tr.lenient = enabled
	}
}

// NewReader creates a container parser over src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	tr := &Reader{b: chunkio.New(src)}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

// Next advances to the next entry, skipping whatever remains of the
// current one. It returns io.EOF at the end of the archive: an all-zero
// header block, or a header whose size field is not a number (a
// deliberate leniency for malformed trailers — see the package's design
// notes).
func (tr *Reader) Next() (Header, error) {
	if tr.done {
		return Header{}, io.EOF
	}

	// Drain the previous entry's unread payload and padding.
	if skip := int64(tr.remain) + tr.padding; skip > 0 {
		if err := tr.b.Skip(skip); err != nil {
			tr.done = true
			if err == io.ErrUnexpectedEOF {
				return Header{}, ErrTruncated
			}
			return Header{}, err
		}
		tr.remain, tr.padding = 0, 0
	}

	ok, err := tr.b.Ensure(BlockSize)
	if err != nil {
		tr.done = true
		return Header{}, err
	}
	if !ok {
		tr.done = true
		// Leniency covers only a stream that stops cleanly on a block
		// boundary; a partial header block is damage either way.
		if tr.lenient && tr.b.Buffered() == 0 {
			return Header{}, io.EOF
		}
		return Header{}, ErrTruncated
	}

	var h block
	copy(h[:], tr.b.Consume(BlockSize))
	if h.isZero() {
		tr.done = true
		return Header{}, io.EOF
	}

	size, ok := h.getOctal(fieldSize)
	if !ok {
		// Non-numeric size: treated as end-of-archive, not an error.
		tr.done = true
		return Header{}, io.EOF
	}

	path := joinName(h.getString(fieldName), h.getString(fieldPrefix))
	isDir := h[fieldTypeflag.off] == typeDirectory || strings.HasSuffix(path, "/")

	tr.remain = uint64(size)
	tr.padding = int64(BlockSize-size%BlockSize) % BlockSize
	return Header{Path: path, Size: uint64(size), IsDir: isDir}, nil
}

// Read serves the current entry's payload, returning io.EOF once the
// declared size is exhausted. A source that ends mid-payload yields
// io.ErrUnexpectedEOF regardless of truncation tolerance: the header
// promised bytes the stream does not have.
func (tr *Reader) Read(p []byte) (int, error) {
	if tr.remain == 0 {
		return 0, io.EOF
	}
	if uint64(len(p)) > tr.remain {
		p = p[:tr.remain]
	}
	n, err := tr.b.Read(p)
	tr.remain -= uint64(n)
	if err == io.EOF && tr.remain > 0 {
		err = io.ErrUnexpectedEOF
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}
