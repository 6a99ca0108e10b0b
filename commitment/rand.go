package commitment

import (
	"crypto/cipher"
	"encoding/binary"

	"github.com/drand/kyber/group/edwards25519"
	"github.com/drand/kyber/util/random"
)

// xofSuite provides the XOF used for deterministic streams and for deriving
// secondary generators. It is a keystream source only, independent of which
// group a scheme commits over.
var xofSuite = edwards25519.NewBlakeSHA256Ed25519()

// Stream returns the randomness source for committing. With an empty seed it
// falls back to the system entropy stream; otherwise it is a deterministic
// XOF keyed by the seed, so a fixed seed reproduces every commitment of a
// run bit for bit.
func Stream(seed []byte) cipher.Stream {
	if len(seed) == 0 {
		return random.New()
	}
	return xofSuite.XOF(seed)
}

// SeedFromUint64 widens an integer seed into Stream's seed format.
func SeedFromUint64(seed uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, seed)
	return buf
}

// randomBytes draws n keystream bytes from the stream.
func randomBytes(n int, stream cipher.Stream) []byte {
	buf := make([]byte, n)
	stream.XORKeyStream(buf, buf)
	return buf
}
