package commitment

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// saltBytes is the length of each of the two randomizers in the baseline
// scheme. The salt alone already hides the bid; the second mask keeps the
// preimage structure wide enough that salts can be published piecemeal
// without weakening hiding.
const saltBytes = 32

// ShaBaseline commits by hashing the bid with two independent randomizers
// under a domain separation tag. Hiding and binding reduce to the hash; it
// makes no non-malleability claim.
type ShaBaseline struct{}

// NewShaBaseline returns the hashed baseline backend.
func NewShaBaseline() *ShaBaseline {
	return &ShaBaseline{}
}

func (s *ShaBaseline) Name() string { return ShaBaselineID }

func (s *ShaBaseline) Commit(value float64, rand cipher.Stream) (*Commitment, *Opening, error) {
	salt := randomBytes(saltBytes, rand)
	mask := randomBytes(saltBytes, rand)
	digest := shaDigest(value, salt, mask)

	randomness := make([]byte, 0, 2*saltBytes)
	randomness = append(randomness, salt...)
	randomness = append(randomness, mask...)

	return &Commitment{SchemeID: ShaBaselineID, Data: digest},
		&Opening{Value: value, Randomness: randomness},
		nil
}

func (s *ShaBaseline) Verify(c *Commitment, o *Opening) bool {
	if c == nil || o == nil || len(o.Randomness) != 2*saltBytes {
		return false
	}
	salt := o.Randomness[:saltBytes]
	mask := o.Randomness[saltBytes:]
	expected := shaDigest(o.Value, salt, mask)
	return bytesEqualConstant(c.Data, expected)
}

func shaDigest(value float64, salt, mask []byte) []byte {
	h := sha256.New()
	_, _ = h.Write(domainTag)
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], math.Float64bits(value))
	_, _ = h.Write(le[:])
	_, _ = h.Write(salt)
	_, _ = h.Write(mask)
	return h.Sum(nil)
}
