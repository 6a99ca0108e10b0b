package commitment

import (
	"crypto/cipher"
	"fmt"
)

// Audited wraps the non-malleable backend so that every commitment is
// entered into an append-only ledger at commit time. The receipt handed
// back to the committer can be re-derived from the ledger by anyone, which
// is what lets a third party audit that no commitment was inserted or
// dropped after the fact.
type Audited struct {
	inner  Scheme
	ledger *Ledger
}

// NewAudited returns the audited backend writing to the given ledger.
func NewAudited(ledger *Ledger) *Audited {
	return &Audited{inner: NewFischlin(), ledger: ledger}
}

// NewAuditedWith wraps an arbitrary inner scheme. The inner scheme decides
// the commitment format; the wrapper only adds the ledger entry.
func NewAuditedWith(inner Scheme, ledger *Ledger) *Audited {
	return &Audited{inner: inner, ledger: ledger}
}

func (a *Audited) Name() string { return AuditedID }

// Ledger exposes the receipt log for audits.
func (a *Audited) Ledger() *Ledger { return a.ledger }

func (a *Audited) Commit(value float64, rand cipher.Stream) (*Commitment, *Opening, error) {
	c, o, err := a.inner.Commit(value, rand)
	if err != nil {
		return nil, nil, err
	}
	if _, err := a.ledger.Append(AuditedID, c.Data); err != nil {
		return nil, nil, fmt.Errorf("recording commitment in ledger: %w", err)
	}
	c.SchemeID = AuditedID
	return c, o, nil
}

func (a *Audited) Verify(c *Commitment, o *Opening) bool {
	return a.inner.Verify(c, o)
}

// Receipt re-derives the ledger receipt for a commitment made through this
// scheme.
func (a *Audited) Receipt(c *Commitment) (Receipt, error) {
	if c == nil {
		return Receipt{}, ErrNoLedgerEntry
	}
	entry, err := a.ledger.FindCommitment(c.Data)
	if err != nil {
		return Receipt{}, err
	}
	digest, err := digestEntry(entry)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Index: entry.Index, Digest: digest}, nil
}
