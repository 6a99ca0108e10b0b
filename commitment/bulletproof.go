package commitment

import (
	"crypto/cipher"
	"fmt"
	"math"

	"github.com/drand/kyber"
)

// RangeBits is the width of the range-committed backend: committed bids are
// fixed-point values with RangeBits total bits.
const RangeBits = 32

// fixedPointScale converts bids to fixed point. 2^10 keeps about three
// decimal digits while leaving a [0, 2^22) bid domain.
const fixedPointScale = 1 << 10

// maxFixedPoint is the largest representable quantized bid.
const maxFixedPoint = uint64(1)<<RangeBits - 1

// Bulletproof is the range-committed backend: the bid is quantized to
// RangeBits fixed-point bits, each bit gets its own Pedersen commitment,
// and the aggregate commitment must equal the 2^i-weighted sum of the bit
// commitments. Opening therefore proves the bid lies in the supported
// range, on top of the usual hiding and binding.
type Bulletproof struct {
	group kyber.Group
	h     kyber.Point
}

// NewBulletproof returns the range-committed backend over edwards25519.
func NewBulletproof() *Bulletproof {
	return &Bulletproof{
		group: xofSuite,
		h:     deriveGenerator(xofSuite, []byte("credra:range:h")),
	}
}

func (b *Bulletproof) Name() string { return BulletproofID }

// MaxValue is the largest bid the range-committed backend accepts.
func (b *Bulletproof) MaxValue() float64 {
	return float64(maxFixedPoint) / fixedPointScale
}

func quantize(value float64) (uint64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, value)
	}
	u := math.Round(value * fixedPointScale)
	if u > float64(maxFixedPoint) {
		return 0, fmt.Errorf("%w: %v exceeds %v", ErrOutOfRange, value, float64(maxFixedPoint)/fixedPointScale)
	}
	return uint64(u), nil
}

func (b *Bulletproof) Commit(value float64, rand cipher.Stream) (*Commitment, *Opening, error) {
	u, err := quantize(value)
	if err != nil {
		return nil, nil, err
	}

	pointLen := b.group.PointLen()
	scalarLen := b.group.ScalarLen()
	data := make([]byte, 0, (RangeBits+1)*pointLen)
	randomness := make([]byte, 0, RangeBits*scalarLen)

	blindings := make([]kyber.Scalar, RangeBits)
	bitData := make([]byte, 0, RangeBits*pointLen)
	for i := 0; i < RangeBits; i++ {
		r := b.group.Scalar().Pick(rand)
		blindings[i] = r
		bit := (u >> uint(i)) & 1
		ci := b.bitPoint(bit, r)
		ciBytes, err := ci.MarshalBinary()
		if err != nil {
			return nil, nil, fmt.Errorf("marshalling bit commitment %d: %w", i, err)
		}
		bitData = append(bitData, ciBytes...)
		rBytes, err := r.MarshalBinary()
		if err != nil {
			return nil, nil, fmt.Errorf("marshalling blinding %d: %w", i, err)
		}
		randomness = append(randomness, rBytes...)
	}

	aggregate := b.aggregatePoint(u, blindings)
	aggBytes, err := aggregate.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling aggregate commitment: %w", err)
	}
	data = append(data, aggBytes...)
	data = append(data, bitData...)

	return &Commitment{SchemeID: BulletproofID, Data: data},
		&Opening{Value: value, Randomness: randomness},
		nil
}

func (b *Bulletproof) Verify(c *Commitment, o *Opening) bool {
	if c == nil || o == nil {
		return false
	}
	u, err := quantize(o.Value)
	if err != nil {
		return false
	}

	pointLen := b.group.PointLen()
	scalarLen := b.group.ScalarLen()
	if len(c.Data) != (RangeBits+1)*pointLen || len(o.Randomness) != RangeBits*scalarLen {
		return false
	}

	blindings := make([]kyber.Scalar, RangeBits)
	for i := 0; i < RangeBits; i++ {
		r := b.group.Scalar()
		if err := r.UnmarshalBinary(o.Randomness[i*scalarLen : (i+1)*scalarLen]); err != nil {
			return false
		}
		blindings[i] = r
	}

	// Each bit commitment must reopen to the corresponding bit of the
	// quantized bid.
	for i := 0; i < RangeBits; i++ {
		bit := (u >> uint(i)) & 1
		expected, err := b.bitPoint(bit, blindings[i]).MarshalBinary()
		if err != nil {
			return false
		}
		segment := c.Data[(i+1)*pointLen : (i+2)*pointLen]
		if !bytesEqualConstant(segment, expected) {
			return false
		}
	}

	// The aggregate must match both the reopened value and the weighted sum
	// of the bit commitments.
	expectedAgg, err := b.aggregatePoint(u, blindings).MarshalBinary()
	if err != nil {
		return false
	}
	aggSegment := c.Data[:pointLen]
	if !bytesEqualConstant(aggSegment, expectedAgg) {
		return false
	}

	weighted := b.group.Point().Null()
	pow := b.group.Scalar().One()
	two := b.group.Scalar().SetInt64(2)
	for i := 0; i < RangeBits; i++ {
		ci := b.group.Point()
		if err := ci.UnmarshalBinary(c.Data[(i+1)*pointLen : (i+2)*pointLen]); err != nil {
			return false
		}
		weighted = b.group.Point().Add(weighted, b.group.Point().Mul(pow, ci))
		pow = b.group.Scalar().Mul(pow, two)
	}
	weightedBytes, err := weighted.MarshalBinary()
	if err != nil {
		return false
	}
	return bytesEqualConstant(aggSegment, weightedBytes)
}

func (b *Bulletproof) bitPoint(bit uint64, r kyber.Scalar) kyber.Point {
	hr := b.group.Point().Mul(r, b.h)
	if bit == 0 {
		return hr
	}
	g := b.group.Point().Base()
	return b.group.Point().Add(g, hr)
}

func (b *Bulletproof) aggregatePoint(u uint64, blindings []kyber.Scalar) kyber.Point {
	total := b.group.Scalar().Zero()
	pow := b.group.Scalar().One()
	two := b.group.Scalar().SetInt64(2)
	for _, r := range blindings {
		term := b.group.Scalar().Mul(pow, r)
		total = b.group.Scalar().Add(total, term)
		pow = b.group.Scalar().Mul(pow, two)
	}
	gu := b.group.Point().Mul(b.group.Scalar().SetInt64(int64(u)), nil)
	hr := b.group.Point().Mul(total, b.h)
	return b.group.Point().Add(gu, hr)
}
