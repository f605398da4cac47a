package littleexport

import (
	"context"
	"io"

	"github.com/plasma4/littleexport/internal/ustar"
)

// Info describes an archive without restoring it.
type Info struct {
	// Encrypted reports whether the archive carries the encryption
	// layer.
	Encrypted bool

	// Compressed reports whether a compression layer was detected. It
	// is always true for encrypted archives and false only for bare
	// containers.
	Compressed bool

	// Entries lists the archive's contents in order. Nil when the
	// archive is encrypted and no password was supplied.
	Entries []EntryInfo
}

// Inspect sniffs the archive format and, when readable, walks the
// container listing entries without materializing any payload.
//
// For an encrypted archive with no password configured, Inspect
// reports the format and leaves Entries nil rather than failing.
func Inspect(ctx context.Context, r io.Reader, opts ...ImportOption) (*Info, error) {
	var cfg importConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	op := &importer{cfg: cfg}

	stream, encrypted, compressed, err := op.openStream(r)
	if err == ErrNoPassword {
		return &Info{Encrypted: true, Compressed: true}, nil
	}
	if err != nil {
		return nil, err
	}

	info := &Info{Encrypted: encrypted, Compressed: compressed, Entries: []EntryInfo{}}
	tr := ustar.NewReader(stream, ustar.WithTruncationTolerance(cfg.tolerateEOF))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return info, nil
		}
		if err != nil {
			return nil, err
		}
		info.Entries = append(info.Entries, EntryInfo{Path: hdr.Path, Size: hdr.Size, IsDir: hdr.IsDir})
	}
}
