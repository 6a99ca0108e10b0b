package commitment

import (
	"crypto/cipher"
	"fmt"

	"github.com/drand/kyber"
	bls "github.com/drand/kyber-bls12381"
	"github.com/drand/kyber/sign/schnorr"
)

// Fischlin is the proof-carrying non-malleable backend: a Pedersen
// commitment bound to a one-time Schnorr key pair whose signature covers
// the commitment point. Mauling the point invalidates the proof, so a
// commitment cannot be replayed as a function of another participant's.
type Fischlin struct {
	group kyber.Group
	h     kyber.Point
}

// NewFischlin returns the non-malleable backend over edwards25519.
func NewFischlin() *Fischlin {
	return NewFischlinSuite(xofSuite)
}

// NewFischlinOnBLS returns the same construction over the BLS12-381 G1
// group, for deployments that already carry that curve.
func NewFischlinOnBLS() *Fischlin {
	return NewFischlinSuite(bls.NewBLS12381Suite().G1())
}

// NewFischlinSuite builds the backend over an arbitrary group.
func NewFischlinSuite(group kyber.Group) *Fischlin {
	return &Fischlin{
		group: group,
		h:     deriveGenerator(group, []byte("credra:fischlin:h")),
	}
}

func (f *Fischlin) Name() string { return FischlinID }

// streamSuite lets the Schnorr signer draw its nonce from the caller's
// stream, keeping commitments reproducible under a fixed seed.
type streamSuite struct {
	kyber.Group
	stream cipher.Stream
}

func (s *streamSuite) RandomStream() cipher.Stream { return s.stream }

func (f *Fischlin) Commit(value float64, rand cipher.Stream) (*Commitment, *Opening, error) {
	m := valueScalar(f.group, value)
	r := f.group.Scalar().Pick(rand)
	c := f.pedersenPoint(m, r)

	priv := f.group.Scalar().Pick(rand)
	pub := f.group.Point().Mul(priv, nil)

	cBytes, err := c.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling commitment point: %w", err)
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling proof key: %w", err)
	}

	sig, err := schnorr.Sign(&streamSuite{f.group, rand}, priv, proofMessage(cBytes, pubBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("signing commitment: %w", err)
	}

	data := make([]byte, 0, len(cBytes)+len(pubBytes)+len(sig))
	data = append(data, cBytes...)
	data = append(data, pubBytes...)
	data = append(data, sig...)

	rBytes, err := r.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling randomness: %w", err)
	}

	return &Commitment{SchemeID: FischlinID, Data: data},
		&Opening{Value: value, Randomness: rBytes},
		nil
}

func (f *Fischlin) Verify(c *Commitment, o *Opening) bool {
	if c == nil || o == nil {
		return false
	}
	pointLen := f.group.PointLen()
	if len(c.Data) < 2*pointLen {
		return false
	}
	cBytes := c.Data[:pointLen]
	pubBytes := c.Data[pointLen : 2*pointLen]
	sig := c.Data[2*pointLen:]

	pub := f.group.Point()
	if err := pub.UnmarshalBinary(pubBytes); err != nil {
		return false
	}
	if err := schnorr.Verify(f.group, pub, proofMessage(cBytes, pubBytes), sig); err != nil {
		return false
	}

	r := f.group.Scalar()
	if err := r.UnmarshalBinary(o.Randomness); err != nil {
		return false
	}
	expected, err := f.pedersenPoint(valueScalar(f.group, o.Value), r).MarshalBinary()
	if err != nil {
		return false
	}
	return bytesEqualConstant(cBytes, expected)
}

func (f *Fischlin) pedersenPoint(m, r kyber.Scalar) kyber.Point {
	gm := f.group.Point().Mul(m, nil)
	hr := f.group.Point().Mul(r, f.h)
	return f.group.Point().Add(gm, hr)
}

func proofMessage(cBytes, pubBytes []byte) []byte {
	msg := make([]byte, 0, len(domainTag)+len(cBytes)+len(pubBytes))
	msg = append(msg, domainTag...)
	msg = append(msg, cBytes...)
	msg = append(msg, pubBytes...)
	return msg
}
