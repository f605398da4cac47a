package encstream

import (
	"crypto/cipher"
	"encoding/binary"
	"io"

	"github.com/plasma4/littleexport/internal/chunkio"
)

// Reader decrypts a chunked encrypted stream incrementally, surfacing
// every authentication failure as ErrIncorrectPassword.
//
// Construction validates the signature, derives the key from the salt,
// and decrypts the verification chunk, so a wrong password is reported
// before any real payload is delivered downstream.
type Reader struct {
	b     *chunkio.Buffer
	aead  cipher.AEAD
	plain []byte // decrypted bytes not yet delivered
	off   int
	err   error // sticky: io.EOF after the final chunk, or a failure
}

// Interface compliance.
var _ io.Reader = (*Reader)(nil)

// NewReader reads the stream header from src, derives the key, and
// verifies the password against the verification chunk.
func NewReader(src io.Reader, password string) (*Reader, error) {
	b := chunkio.New(src)
	ok, err := b.Ensure(headerSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTooSmall
	}
	if !IsEncrypted(b.Peek(len(Signature))) {
		return nil, ErrNotEncrypted
	}
	b.Consume(len(Signature))
	salt := b.Consume(SaltSize)

	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	er := &Reader{b: b, aead: aead}
	// The verification chunk is an ordinary chunk with empty plaintext:
	// decrypting it proves the password without consuming real data.
	if err := er.nextChunk(); err != nil {
		if err == io.EOF {
			err = ErrCorruptChunk
		}
		return nil, err
	}
	return er, nil
}

// Read delivers decrypted plaintext, pulling and decrypting chunks on
// demand. The whole ciphertext is never held in memory at once.
func (er *Reader) Read(p []byte) (int, error) {
	for er.off == len(er.plain) {
		if er.err != nil {
			return 0, er.err
		}
		if err := er.nextChunk(); err != nil {
			er.err = err
			return 0, err
		}
	}
	n := copy(p, er.plain[er.off:])
	er.off += n
	return n, nil
}

// nextChunk reads and decrypts one chunk into the plaintext buffer.
// A source with no further chunk header is a clean end of stream; a
// source that ends inside a chunk is corrupt.
func (er *Reader) nextChunk() error {
	ok, err := er.b.Ensure(NonceSize + lenSize)
	if err != nil {
		return err
	}
	if !ok {
		// No further chunk header at all is the clean end of the
		// stream; a partial one means the stream was cut mid-chunk.
		if er.b.Buffered() > 0 {
			return ErrCorruptChunk
		}
		return io.EOF
	}
	// Copy the nonce out: Ensure below may compact the buffer and
	// invalidate views into it.
	var nonce [NonceSize]byte
	copy(nonce[:], er.b.Consume(NonceSize))
	ctLen := int(binary.LittleEndian.Uint32(er.b.Consume(lenSize)))
	if ctLen < tagSize || ctLen > ChunkSize+tagSize {
		return ErrCorruptChunk
	}

	ok, err = er.b.Ensure(ctLen)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCorruptChunk
	}

	plain, err := er.aead.Open(er.plain[:0], nonce[:], er.b.Consume(ctLen), nil)
	if err != nil {
		// Wrong password and tampering are deliberately reported the
		// same way; distinguishing them is not attempted.
		return ErrIncorrectPassword
	}
	er.plain, er.off = plain, 0
	return nil
}
