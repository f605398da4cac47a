// Package encstream wraps a byte stream in chunked authenticated
// encryption with a password-derived key.
//
// Stream layout:
//
//	signature (6 bytes)
//	salt (16 bytes)
//	verification chunk: an encrypted empty payload
//	chunks: nonce (12 bytes) || ciphertext length (uint32 LE) || ciphertext+tag
//
// Every chunk carries a fresh random nonce; plaintext chunks are
// bounded to 4 MiB so decryption never needs the whole stream in
// memory. The verification chunk lets a reader reject a wrong password
// before touching real data.
//
// All parameters below are fixed constants shared by writer and reader;
// changing any of them is a breaking format version change.
package encstream

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/pbkdf2"
)

// Signature identifies an encrypted stream. The first byte can never
// begin a gzip stream (0x1f), which keeps format sniffing unambiguous.
var Signature = [6]byte{'L', 'E', 'X', 'E', 'N', 'C'}

const (
	// SaltSize is the length of the random key-derivation salt.
	SaltSize = 16

	// NonceSize is the per-chunk GCM nonce length.
	NonceSize = 12

	// KeySize selects AES-256.
	KeySize = 32

	// Iterations is the PBKDF2 iteration count.
	Iterations = 600_000

	// ChunkSize bounds one plaintext chunk.
	ChunkSize = 4 << 20

	// lenSize is the width of the ciphertext length prefix.
	lenSize = 4

	// headerSize is signature plus salt, the minimum for any valid
	// stream.
	headerSize = len(Signature) + SaltSize

	// tagSize is the GCM authentication tag appended to ciphertext.
	tagSize = 16
)

// Sentinel errors.
var (
	// ErrTooSmall is returned when the source ends inside the signature
	// or salt.
	ErrTooSmall = errors.New("encstream: file too small")

	// ErrNotEncrypted is returned when the signature does not match.
	ErrNotEncrypted = errors.New("encstream: not an encrypted archive")

	// ErrCorruptChunk is returned when a chunk declares an impossible
	// ciphertext length or the source ends inside the ciphertext.
	ErrCorruptChunk = errors.New("encstream: corrupt chunk")

	// ErrIncorrectPassword is returned when chunk authentication fails.
	// A wrong password and tampered ciphertext are intentionally
	// indistinguishable here.
	ErrIncorrectPassword = errors.New("encstream: incorrect password")
)

// IsEncrypted reports whether p (at least len(Signature) bytes) starts
// with the encryption signature.
func IsEncrypted(p []byte) bool {
	if len(p) < len(Signature) {
		return false
	}
	for i, c := range Signature {
		if p[i] != c {
			return false
		}
	}
	return true
}

// newAEAD derives the symmetric key from password and salt and returns
// the AEAD cipher bound to it. The derived key lives only inside the
// returned cipher; it is never persisted or shared.
func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
