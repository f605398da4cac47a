package littleexport

import (
	"context"
	"io"
	"iter"
)

// Entry is one named payload produced by a Source during export.
//
// Paths are POSIX-style, forward-slash separated, relative to the
// source's area prefix, and must be unique within one archive. Entries
// are written in the order the source yields them.
type Entry struct {
	// Path is the area-relative path of the entry. For an exact-file
	// area (one whose prefix does not end in "/") it must be empty.
	Path string

	// Size is the payload size in bytes. Required when Data is set;
	// ignored when Bytes is set.
	Size uint64

	// IsDir marks a directory entry. Directory entries carry no payload.
	IsDir bool

	// Bytes is a fully-buffered payload. Takes precedence over Data.
	Bytes []byte

	// Data is a pull-based payload stream delivering exactly Size bytes.
	// It is drained during the yield that produced the entry, so sources
	// may close it as soon as the yield returns.
	Data io.Reader
}

// EntryInfo describes one decoded archive entry during import.
type EntryInfo struct {
	// Path is the entry path. Consumers receive it relative to their
	// area prefix; Inspect reports it in full.
	Path string

	// Size is the payload size in bytes.
	Size uint64

	// IsDir marks a directory entry.
	IsDir bool
}

// Source produces the entries of one state category during export.
//
// Implementations are out of the engine's scope; anything that can turn
// its state into named byte payloads can be archived.
type Source interface {
	// Area returns the path prefix this source owns (one of the Area
	// constants, or a custom prefix agreed with the importing side).
	Area() string

	// Entries returns a lazy sequence of entries. The sequence is
	// consumed exactly once, in order; yielding an error aborts the
	// whole export.
	Entries(ctx context.Context) iter.Seq2[Entry, error]
}

// Consumer restores the entries of one state category during import.
type Consumer interface {
	// Area returns the path prefix this consumer owns.
	Area() string

	// Consume restores one entry. The reader delivers exactly
	// entry.Size payload bytes; whatever the consumer leaves unread is
	// skipped before the next entry is decoded, so returning early is
	// an explicit skip, not an error.
	Consume(ctx context.Context, entry EntryInfo, r io.Reader) error
}

// PasswordFunc supplies a password on demand. Import calls it only
// after sniffing determines the archive is encrypted.
type PasswordFunc func() (string, error)

// Aborter is implemented by sinks that can discard partially written
// output. When an export fails mid-stream, the orchestrator calls Abort
// on the sink (if supported) so no unflagged partial archive survives.
type Aborter interface {
	Abort() error
}
