package encstream

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encrypt seals plaintext under password and returns the full stream.
func encrypt(t *testing.T, plaintext []byte, password string) []byte {
	t.Helper()
	var buf bytes.Buffer
	ew, err := NewWriter(&buf, password)
	require.NoError(t, err)
	_, err = ew.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, ew.Close())
	return buf.Bytes()
}

// decrypt opens a stream and drains its plaintext.
func decrypt(stream []byte, password string) ([]byte, error) {
	er, err := NewReader(bytes.NewReader(stream), password)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(er)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"tiny", 5},
		{"one byte short of a chunk", ChunkSize - 1},
		{"exactly one chunk", ChunkSize},
		{"spans several chunks", 2*ChunkSize + 12345},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plaintext := make([]byte, tc.size)
			_, err := rand.Read(plaintext)
			require.NoError(t, err)

			stream := encrypt(t, plaintext, "correct horse")
			got, err := decrypt(stream, "correct horse")
			require.NoError(t, err)
			assert.Equal(t, plaintext, got)
		})
	}
}

func TestStreamLayout(t *testing.T) {
	stream := encrypt(t, []byte("payload"), "p")

	assert.True(t, IsEncrypted(stream))
	assert.Equal(t, Signature[:], stream[:len(Signature)])

	// Verification chunk first: empty plaintext means tag-only
	// ciphertext.
	chunk := stream[headerSize:]
	ctLen := int(uint32(chunk[NonceSize]) | uint32(chunk[NonceSize+1])<<8 |
		uint32(chunk[NonceSize+2])<<16 | uint32(chunk[NonceSize+3])<<24)
	assert.Equal(t, tagSize, ctLen)
}

func TestWriteInSlices(t *testing.T) {
	// Deliver plaintext in awkward slice sizes; chunk boundaries must
	// not depend on write granularity.
	plaintext := make([]byte, ChunkSize+100_000)
	_, err := rand.Read(plaintext)
	require.NoError(t, err)

	var buf bytes.Buffer
	ew, err := NewWriter(&buf, "pw")
	require.NoError(t, err)
	for rest := plaintext; len(rest) > 0; {
		n := min(len(rest), 8191)
		_, err := ew.Write(rest[:n])
		require.NoError(t, err)
		rest = rest[n:]
	}
	require.NoError(t, ew.Close())

	got, err := decrypt(buf.Bytes(), "pw")
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestWrongPassword(t *testing.T) {
	stream := encrypt(t, []byte("secret data"), "right")
	_, err := decrypt(stream, "wrong")
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestWrongPasswordFailsFast(t *testing.T) {
	stream := encrypt(t, bytes.Repeat([]byte("x"), 1000), "right")
	// NewReader alone must reject the password via the verification
	// chunk, before any payload chunk is touched.
	_, err := NewReader(bytes.NewReader(stream), "wrong")
	assert.ErrorIs(t, err, ErrIncorrectPassword)
}

func TestTamperDetection(t *testing.T) {
	plaintext := bytes.Repeat([]byte("sensitive "), 100)
	stream := encrypt(t, plaintext, "pw")

	// Flip one ciphertext byte in the payload chunk (past the header
	// and verification chunk).
	tampered := make([]byte, len(stream))
	copy(tampered, stream)
	tampered[len(tampered)-1] ^= 0x01

	_, err := decrypt(tampered, "pw")
	assert.ErrorIs(t, err, ErrIncorrectPassword,
		"tampering and a wrong password must be indistinguishable")
}

func TestTooSmall(t *testing.T) {
	_, err := NewReader(bytes.NewReader(Signature[:]), "pw")
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestBadSignature(t *testing.T) {
	stream := append([]byte("NOTENC"), make([]byte, 100)...)
	_, err := NewReader(bytes.NewReader(stream), "pw")
	assert.ErrorIs(t, err, ErrNotEncrypted)
}

func TestTruncatedStream(t *testing.T) {
	stream := encrypt(t, bytes.Repeat([]byte("abc"), 5000), "pw")

	// Each cut lands in a different structural region: salt, the
	// verification chunk, a payload chunk header, payload ciphertext.
	verifEnd := headerSize + NonceSize + lenSize + tagSize
	cuts := []int{headerSize - 3, verifEnd - 4, verifEnd + 7, len(stream) - 9}
	for _, cut := range cuts {
		_, err := decrypt(stream[:cut], "pw")
		assert.Error(t, err, "cut at %d must fail", cut)
		assert.NotErrorIs(t, err, io.EOF)
	}
}

func TestTruncationBetweenChunksIsCleanEOF(t *testing.T) {
	// A stream cut exactly between chunks is indistinguishable from a
	// complete stream at this layer; the container above notices the
	// missing terminator.
	plaintext := []byte("short")
	stream := encrypt(t, plaintext, "pw")

	verifEnd := headerSize + NonceSize + lenSize + tagSize
	got, err := decrypt(stream[:verifEnd], "pw")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNoncesAreFresh(t *testing.T) {
	stream := encrypt(t, make([]byte, 2*ChunkSize), "pw")

	// Collect the nonce of each chunk; all must differ.
	nonces := map[string]bool{}
	rest := stream[headerSize:]
	for len(rest) > 0 {
		require.GreaterOrEqual(t, len(rest), NonceSize+lenSize)
		nonce := string(rest[:NonceSize])
		assert.False(t, nonces[nonce], "nonce reuse across chunks")
		nonces[nonce] = true
		ctLen := int(uint32(rest[NonceSize]) | uint32(rest[NonceSize+1])<<8 |
			uint32(rest[NonceSize+2])<<16 | uint32(rest[NonceSize+3])<<24)
		rest = rest[NonceSize+lenSize+ctLen:]
	}
	assert.Len(t, nonces, 4, "verification + two full chunks + final empty chunk")
}

func TestCorruptLength(t *testing.T) {
	stream := encrypt(t, []byte("data"), "pw")
	bad := make([]byte, len(stream))
	copy(bad, stream)
	// Declare an absurd ciphertext length in the verification chunk.
	copy(bad[headerSize+NonceSize:], []byte{0xff, 0xff, 0xff, 0xff})
	_, err := NewReader(bytes.NewReader(bad), "pw")
	assert.ErrorIs(t, err, ErrCorruptChunk)
}
