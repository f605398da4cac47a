package encstream

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// errClosed guards against writes after Close.
var errClosed = errors.New("encstream: writer is closed")

// Writer encrypts everything written to it into the chunked stream
// format, emitting the signature, salt and verification chunk up front.
//
// Plaintext accumulates in a residual buffer; every full ChunkSize
// worth is sealed and emitted immediately, so memory stays bounded
// regardless of the total stream size. Close seals whatever remains.
type Writer struct {
	sealer *chunkSealer
	buf    []byte // residual plaintext, always < ChunkSize after Write
	err    error  // sticky: any failure is fatal to the stream
}

// Interface compliance.
var _ io.WriteCloser = (*Writer)(nil)

// NewWriter derives a key from password and a fresh random salt, then
// emits the stream header and verification chunk. The Writer owns the
// derived key exclusively for the lifetime of one export.
func NewWriter(w io.Writer, password string) (*Writer, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("encstream: generating salt: %w", err)
	}
	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, fmt.Errorf("encstream: deriving key: %w", err)
	}

	sealer := &chunkSealer{w: w, aead: aead}
	if _, err := w.Write(Signature[:]); err != nil {
		return nil, err
	}
	if _, err := w.Write(salt); err != nil {
		return nil, err
	}
	// Verification chunk: empty plaintext, rejected fast on a wrong
	// password by the reader.
	if err := sealer.seal(nil); err != nil {
		return nil, err
	}
	return &Writer{sealer: sealer}, nil
}

// Write buffers p, sealing and emitting full chunks as they complete.
func (ew *Writer) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	total := len(p)
	for len(ew.buf)+len(p) >= ChunkSize {
		take := ChunkSize - len(ew.buf)
		ew.buf = append(ew.buf, p[:take]...)
		p = p[take:]
		if err := ew.sealer.seal(ew.buf); err != nil {
			ew.err = err
			return 0, err
		}
		ew.buf = ew.buf[:0]
	}
	ew.buf = append(ew.buf, p...)
	return total, nil
}

// Close seals the residual buffer (possibly empty) as the final chunk.
// It does not close the underlying sink.
func (ew *Writer) Close() error {
	if ew.err != nil {
		if ew.err == errClosed {
			return nil
		}
		return ew.err
	}
	ew.err = errClosed
	return ew.sealer.seal(ew.buf)
}

// chunkSealer emits one encrypted chunk per call.
type chunkSealer struct {
	w    io.Writer
	aead cipher.AEAD
	head [NonceSize + lenSize]byte
	ct   []byte // ciphertext scratch, reused across chunks
}

// seal encrypts plain under a fresh random nonce and emits
// nonce || length || ciphertext+tag.
func (cs *chunkSealer) seal(plain []byte) error {
	nonce := cs.head[:NonceSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("encstream: generating nonce: %w", err)
	}
	cs.ct = cs.aead.Seal(cs.ct[:0], nonce, plain, nil)
	binary.LittleEndian.PutUint32(cs.head[NonceSize:], uint32(len(cs.ct)))
	if _, err := cs.w.Write(cs.head[:]); err != nil {
		return err
	}
	_, err := cs.w.Write(cs.ct)
	return err
}
