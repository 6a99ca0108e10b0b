package commitment

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/drand/kyber"
)

// Pedersen commits to a bid as C = g^m · h^r over edwards25519, where m is
// the hashed bid mapped to a scalar and h is a generator with unknown
// discrete log relative to g. Perfectly hiding, computationally binding,
// and deliberately malleable: anyone can shift C by a known factor, which
// is exactly the gap the proof-carrying backend closes.
type Pedersen struct {
	group kyber.Group
	h     kyber.Point
}

// NewPedersen returns the Pedersen backend over edwards25519.
func NewPedersen() *Pedersen {
	return &Pedersen{
		group: xofSuite,
		h:     deriveGenerator(xofSuite, []byte("credra:pedersen:h")),
	}
}

func (p *Pedersen) Name() string { return PedersenID }

func (p *Pedersen) Commit(value float64, rand cipher.Stream) (*Commitment, *Opening, error) {
	m := valueScalar(p.group, value)
	r := p.group.Scalar().Pick(rand)

	c := p.point(m, r)
	data, err := c.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling pedersen commitment: %w", err)
	}
	rBytes, err := r.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling pedersen randomness: %w", err)
	}

	return &Commitment{SchemeID: PedersenID, Data: data},
		&Opening{Value: value, Randomness: rBytes},
		nil
}

func (p *Pedersen) Verify(c *Commitment, o *Opening) bool {
	if c == nil || o == nil {
		return false
	}
	r := p.group.Scalar()
	if err := r.UnmarshalBinary(o.Randomness); err != nil {
		return false
	}
	expected, err := p.point(valueScalar(p.group, o.Value), r).MarshalBinary()
	if err != nil {
		return false
	}
	return bytesEqualConstant(c.Data, expected)
}

func (p *Pedersen) point(m, r kyber.Scalar) kyber.Point {
	gm := p.group.Point().Mul(m, nil)
	hr := p.group.Point().Mul(r, p.h)
	return p.group.Point().Add(gm, hr)
}

// valueScalar maps a bid to a group scalar through the domain-separated
// hash, keeping the mapping stable across groups of different order.
func valueScalar(group kyber.Group, value float64) kyber.Scalar {
	h := sha256.New()
	_, _ = h.Write(domainTag)
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], math.Float64bits(value))
	_, _ = h.Write(le[:])
	return group.Scalar().SetBytes(h.Sum(nil))
}

// deriveGenerator picks a second generator from a tagged stream. Groups with
// a hash-to-point map use it directly; otherwise the point is picked from
// the tag's keystream. Either way nobody learns its discrete log.
func deriveGenerator(group kyber.Group, tag []byte) kyber.Point {
	p := group.Point()
	if hp, ok := p.(kyber.HashablePoint); ok {
		return hp.Hash(tag)
	}
	return p.Pick(xofSuite.XOF(tag))
}
