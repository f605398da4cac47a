// Package ustar encodes and decodes the POSIX tape-archive container
// format used by the export engine: 512-byte headers, octal ASCII
// numerics, a space-blanked checksum, name/prefix splitting for long
// paths, and a two-zero-block terminator. PAX extensions, sparse files
// and hard links are not modeled.
package ustar

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BlockSize is the container's framing unit. Headers occupy exactly one
// block; payloads are zero-padded to the next block boundary.
const BlockSize = 512

// Sentinel errors.
var (
	// ErrTruncated is returned when the source ends before the
	// end-of-archive marker.
	ErrTruncated = errors.New("ustar: truncated archive")

	// ErrClosed is returned when writing to a closed writer.
	ErrClosed = errors.New("ustar: writer is closed")
)

// field is a byte range inside a header block.
type field struct {
	off, len int
}

// Header field layout. Offsets are fixed by the USTAR format.
var (
	fieldName     = field{0, 100}
	fieldMode     = field{100, 8}
	fieldUID      = field{108, 8}
	fieldGID      = field{116, 8}
	fieldSize     = field{124, 12}
	fieldMtime    = field{136, 12}
	fieldChecksum = field{148, 8}
	fieldTypeflag = field{156, 1}
	fieldMagic    = field{257, 6}
	fieldVersion  = field{263, 2}
	fieldPrefix   = field{345, 155}
)

// Fixed field values. Ownership metadata is not state this format
// cares about, so every entry gets the same constants.
const (
	magic    = "ustar\x00"
	version  = "00"
	fileMode = 0o644
	dirMode  = 0o755
	uid      = 0
	gid      = 0

	typeRegular   = '0'
	typeDirectory = '5'
)

// block is one 512-byte header record under construction or decode.
type block [BlockSize]byte

// setString writes s into f, leaving the remainder NUL-filled. s must
// already fit; splitName guarantees that for paths.
func (b *block) setString(f field, s string) {
	copy(b[f.off:f.off+f.len], s)
}

// setOctal writes v as octal ASCII into f, zero-padded to the field
// width minus one with a terminating NUL.
func (b *block) setOctal(f field, v int64) {
	s := strconv.FormatInt(v, 8)
	pad := f.len - 1 - len(s)
	p := b[f.off : f.off+f.len]
	for i := 0; i < pad; i++ {
		p[i] = '0'
	}
	copy(p[pad:], s)
	p[f.len-1] = 0
}

// setChecksum computes and stores the header checksum: the sum of all
// 512 bytes as unsigned octets with the checksum field itself
// space-filled. Must be called after every other field is set.
func (b *block) setChecksum() {
	b.setString(fieldChecksum, "        ")
	sum := b.sum()
	// Conventional encoding: six octal digits, NUL, space.
	s := strconv.FormatInt(sum, 8)
	p := b[fieldChecksum.off : fieldChecksum.off+fieldChecksum.len]
	for i := 0; i < 6-len(s); i++ {
		p[i] = '0'
	}
	copy(p[6-len(s):], s)
	p[6] = 0
	p[7] = ' '
}

// sum adds all 512 header bytes with the checksum field space-filled.
func (b *block) sum() int64 {
	var sum int64
	for i, c := range b {
		if i >= fieldChecksum.off && i < fieldChecksum.off+fieldChecksum.len {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// getString decodes f as a string trimmed at the first NUL byte.
func (b *block) getString(f field) string {
	p := b[f.off : f.off+f.len]
	if i := bytes.IndexByte(p, 0); i >= 0 {
		p = p[:i]
	}
	return string(p)
}

// getOctal decodes f as an octal ASCII integer, tolerating leading
// spaces and trailing NUL/space. ok is false when the field holds no
// parseable number.
func (b *block) getOctal(f field) (v int64, ok bool) {
	s := strings.Trim(b.getString(f), " ")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 8, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// isZero reports whether every byte of the block is zero, the
// end-of-archive condition.
func (b *block) isZero() bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// splitName splits path into the header's name and prefix fields. For
// paths up to 100 bytes the prefix stays empty. Longer paths split at
// the last "/" at or before byte offset 154 when the tail still fits
// the 100-byte name field; rejoining prefix + "/" + name then
// reconstructs the path exactly. Paths with no qualifying separator
// fall back to a raw byte split, and paths beyond 255 bytes are
// truncated from the tail.
func splitName(path string) (name, prefix string) {
	if len(path) <= fieldName.len {
		return path, ""
	}
	limit := min(len(path)-1, fieldPrefix.len)
	if i := strings.LastIndex(path[:limit], "/"); i > 0 && len(path)-i-1 <= fieldName.len {
		return path[i+1:], path[:i]
	}
	if len(path) > fieldPrefix.len+fieldName.len {
		path = path[:fieldPrefix.len+fieldName.len]
	}
	// Keep the name field full; whatever precedes it becomes the
	// prefix. path is longer than the name field here, so cut >= 1.
	cut := len(path) - fieldName.len
	return path[cut:], path[:cut]
}

// buildHeader assembles a complete header block for one entry.
func buildHeader(path string, size uint64, mtime int64, isDir bool) (*block, error) {
	if path == "" {
		return nil, errors.New("ustar: empty entry path")
	}
	if strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("ustar: absolute entry path %q", path)
	}
	// 11 octal digits: the size field's representable maximum.
	if size >= 1<<33 {
		return nil, fmt.Errorf("ustar: entry %q exceeds the format's 8 GiB size limit", path)
	}

	b := new(block)
	name, prefix := splitName(path)
	b.setString(fieldName, name)
	b.setString(fieldPrefix, prefix)

	mode := int64(fileMode)
	typeflag := byte(typeRegular)
	if isDir {
		mode = dirMode
		typeflag = typeDirectory
	}
	b.setOctal(fieldMode, mode)
	b.setOctal(fieldUID, uid)
	b.setOctal(fieldGID, gid)
	b.setOctal(fieldSize, int64(size))
	b.setOctal(fieldMtime, mtime)
	b[fieldTypeflag.off] = typeflag
	b.setString(fieldMagic, magic)
	b.setString(fieldVersion, version)
	b.setChecksum()
	return b, nil
}

// joinName reconstructs the entry path from decoded name and prefix
// fields.
func joinName(name, prefix string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
