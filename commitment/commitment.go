// Package commitment provides the hiding, binding bid commitments used
// during the commit phase. Five backends share one capability contract so
// the engine can swap them without touching auction semantics: a hashed
// baseline, a Pedersen scheme, a proof-carrying non-malleable scheme, an
// audited wrapper producing ledger receipts, and a range-committed variant
// built from bit commitments.
//
// Backends are registered by name the same way signature schemes are: a
// constant ID, a constructor, and FromName to go from configuration to a
// live scheme.
package commitment

import (
	"bytes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// Commitment is the public, broadcastable half of a committed bid. Data is
// the scheme's canonical encoding; it reveals nothing about the bid until
// the opening is published.
type Commitment struct {
	SchemeID string `json:"scheme"`
	Data     []byte `json:"data"`
}

// Equal reports whether both commitments carry the same payload.
func (c *Commitment) Equal(other *Commitment) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.SchemeID == other.SchemeID && bytes.Equal(c.Data, other.Data)
}

func (c *Commitment) String() string {
	if c == nil {
		return "commitment(nil)"
	}
	d := c.Data
	if len(d) > 8 {
		d = d[:8]
	}
	return fmt.Sprintf("%s:%s", c.SchemeID, hex.EncodeToString(d))
}

// Opening is the private half: the committed value plus the realized
// randomness needed to reopen the commitment. Randomness is scheme-encoded.
type Opening struct {
	Value      float64 `json:"value"`
	Randomness []byte  `json:"randomness"`
}

// Scheme is the commitment capability. Commit binds value under fresh
// randomness drawn from rand; Verify checks an opening against a
// commitment. Verification inspects only the payload, so a scheme can
// re-verify commitments produced by a wrapper carrying a different ID.
type Scheme interface {
	Name() string
	Commit(value float64, rand cipher.Stream) (*Commitment, *Opening, error)
	Verify(c *Commitment, o *Opening) bool
}

// ErrOutOfRange is returned by Commit when a backend cannot represent the
// value, such as the range-committed backend with a negative bid.
var ErrOutOfRange = errors.New("value outside the committable range")

// domainTag is prefixed to every hashed value so commitments from this
// protocol cannot collide with other uses of the same primitives.
var domainTag = []byte("DRA-BID")

// ShaBaselineID is the hashed commitment used as the default backend.
const ShaBaselineID = "sha-baseline"

// PedersenID is the Pedersen commitment over edwards25519.
const PedersenID = "pedersen"

// FischlinID is the Pedersen commitment carrying a proof of knowledge that
// makes it non-malleable.
const FischlinID = "fischlin-style-non-malleable"

// AuditedID wraps the non-malleable scheme with a receipt ledger.
const AuditedID = "audited"

// BulletproofID is the range-committed backend built from bit commitments.
const BulletproofID = "bulletproof-backed"

// FromName returns a fresh scheme for the given backend ID. The audited
// backend is created with its own empty ledger; use NewAudited to share one.
func FromName(name string) (Scheme, error) {
	switch name {
	case ShaBaselineID:
		return NewShaBaseline(), nil
	case PedersenID:
		return NewPedersen(), nil
	case FischlinID:
		return NewFischlin(), nil
	case AuditedID:
		return NewAudited(NewLedger()), nil
	case BulletproofID:
		return NewBulletproof(), nil
	default:
		return nil, fmt.Errorf("invalid commitment backend '%s'", name)
	}
}

var schemeIDs = []string{ShaBaselineID, PedersenID, AuditedID, FischlinID, BulletproofID}

// ListSchemes will return a slice of valid scheme ids
func ListSchemes() []string {
	return schemeIDs
}

func bytesEqualConstant(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
