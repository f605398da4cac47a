package littleexport

import (
	"errors"

	"github.com/plasma4/littleexport/internal/encstream"
	"github.com/plasma4/littleexport/internal/ustar"
)

// Errors re-exported from the encryption layer.
var (
	// ErrIncorrectPassword is returned when chunk authentication fails
	// during import. A wrong password and a tampered archive are
	// deliberately indistinguishable at this surface.
	ErrIncorrectPassword = encstream.ErrIncorrectPassword

	// ErrNotEncrypted is returned when a source claims the encryption
	// signature but the signature bytes do not match.
	ErrNotEncrypted = encstream.ErrNotEncrypted

	// ErrTooSmall is returned when an encrypted source ends before the
	// signature and salt are complete.
	ErrTooSmall = encstream.ErrTooSmall

	// ErrCorruptChunk is returned when an encrypted chunk declares more
	// ciphertext than the source provides, or an impossible length.
	ErrCorruptChunk = encstream.ErrCorruptChunk
)

// Errors re-exported from the container layer.
var (
	// ErrTruncated is returned when the container ends before its
	// end-of-archive marker. ImportWithTruncationTolerance downgrades
	// this to a clean stop.
	ErrTruncated = ustar.ErrTruncated
)

// Errors owned by the orchestrator.
var (
	// ErrNoPassword is returned when an import encounters an encrypted
	// archive and neither a password nor a password callback was set.
	ErrNoPassword = errors.New("littleexport: archive is encrypted and no password was provided")
)
