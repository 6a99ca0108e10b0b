package commitment

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// ErrNoLedgerEntry is returned when a receipt or index has no matching
// ledger entry.
var ErrNoLedgerEntry = errors.New("no ledger entry")

// LedgerEntry is one committed bid as seen by the audit ledger. Entries are
// insert-only and indexed in commit order.
type LedgerEntry struct {
	Index      uint64 `cbor:"1,keyasint"`
	SchemeID   string `cbor:"2,keyasint"`
	Commitment []byte `cbor:"3,keyasint"`
}

// Receipt proves a commitment was entered into the ledger at a given index.
// The digest is a blake2b-256 over the entry's canonical CBOR encoding, so
// any holder can re-derive it from the ledger alone.
type Receipt struct {
	Index  uint64 `json:"index"`
	Digest []byte `json:"digest"`
}

var canonicalEnc cbor.EncMode

func init() {
	var err error
	canonicalEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor canonical mode: %v", err))
	}
}

func digestEntry(e LedgerEntry) ([]byte, error) {
	enc, err := canonicalEnc.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding ledger entry: %w", err)
	}
	sum := blake2b.Sum256(enc)
	return sum[:], nil
}

// Ledger is the append-only commitment log backing the audited scheme. All
// methods are safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries []LedgerEntry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a commitment and returns its receipt.
func (l *Ledger) Append(schemeID string, commitment []byte) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LedgerEntry{
		Index:      uint64(len(l.entries)),
		SchemeID:   schemeID,
		Commitment: append([]byte(nil), commitment...),
	}
	digest, err := digestEntry(entry)
	if err != nil {
		return Receipt{}, err
	}
	l.entries = append(l.entries, entry)
	return Receipt{Index: entry.Index, Digest: digest}, nil
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entry returns the entry stored at the given index.
func (l *Ledger) Entry(index uint64) (LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.entries)) {
		return LedgerEntry{}, fmt.Errorf("%w at index %d", ErrNoLedgerEntry, index)
	}
	e := l.entries[index]
	e.Commitment = append([]byte(nil), e.Commitment...)
	return e, nil
}

// VerifyReceipt re-derives the digest for the receipt's index and compares.
func (l *Ledger) VerifyReceipt(r Receipt) error {
	entry, err := l.Entry(r.Index)
	if err != nil {
		return err
	}
	digest, err := digestEntry(entry)
	if err != nil {
		return err
	}
	if !bytes.Equal(digest, r.Digest) {
		return fmt.Errorf("receipt digest mismatch at index %d", r.Index)
	}
	return nil
}

// FindCommitment returns the first entry holding the given commitment bytes.
func (l *Ledger) FindCommitment(commitment []byte) (LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		if bytes.Equal(e.Commitment, commitment) {
			out := e
			out.Commitment = append([]byte(nil), out.Commitment...)
			return out, nil
		}
	}
	return LedgerEntry{}, ErrNoLedgerEntry
}
