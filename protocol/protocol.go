// Package protocol runs one deferred-revelation auction round as a state
// machine over a broadcast channel. A Session moves through Init →
// Committing → Revealing → Resolved, never backwards and never re-entering a
// phase; the reserve price and collateral requirement are frozen at
// construction, every commitment and reveal is mirrored to the transcript
// and the channel synchronously, and resolution seals the transcript and
// audits it before the outcome is handed out.
package protocol

import (
	"errors"
	"fmt"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/channel"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
	"github.com/credra/credra/log"
)

// Phase is the lifecycle position of a round.
type Phase int

const (
	// Init is the phase before construction completes; a live Session is
	// never observed in it.
	Init Phase = iota
	// Committing accepts one commitment per participant.
	Committing
	// Revealing accepts openings for prior commitments.
	Revealing
	// Resolved is terminal; the outcome exists and nothing mutates.
	Resolved
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "init"
	case Committing:
		return "committing"
	case Revealing:
		return "revealing"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

var (
	// ErrPhaseViolation rejects an operation illegal in the current phase.
	ErrPhaseViolation = errors.New("operation violates the current phase")
	// ErrDeadline rejects an operation arriving at or after its phase
	// deadline. It is a phase violation and matches ErrPhaseViolation too.
	ErrDeadline = fmt.Errorf("%w: deadline elapsed", ErrPhaseViolation)
	// ErrDuplicateCommit rejects a second commitment by the same
	// participant in one round.
	ErrDuplicateCommit = errors.New("participant already committed in this round")
	// ErrDuplicateReveal rejects a reveal for a bid already settled.
	ErrDuplicateReveal = errors.New("bid already settled a disclosure")
	// ErrUnknownParticipant rejects operations on a participant without a
	// commitment in this round.
	ErrUnknownParticipant = errors.New("participant has no commitment in this round")
	// ErrClockRewind rejects moving the logical clock backwards.
	ErrClockRewind = errors.New("logical clock cannot move backwards")
	// ErrAuditFailure reports a sealed transcript failing its own audit.
	ErrAuditFailure = errors.New("transcript failed its audit")
)

// Broadcaster is the fan-out a session publishes protocol messages on. Both
// channel fabrics satisfy it.
type Broadcaster interface {
	Record(channel.Message)
}

// Config assembles one round. Only Auction and the two deadlines are
// mandatory; Scheme defaults to the sha baseline, Broadcast to a fresh
// public log and Logger to the process default.
type Config struct {
	Auction        auction.Config
	Scheme         commitment.Scheme
	CommitDeadline uint64
	RevealDeadline uint64
	Broadcast      Broadcaster
	Logger         log.Logger
}

func (c *Config) setDefaults() {
	if c.Scheme == nil {
		c.Scheme = commitment.NewShaBaseline()
	}
	if c.Broadcast == nil {
		c.Broadcast = channel.NewBroadcastLog()
	}
	if c.Logger == nil {
		c.Logger = log.DefaultLogger()
	}
}

func (c *Config) validate() error {
	if c.CommitDeadline == 0 {
		return fmt.Errorf("%w: commit deadline must be positive", distribution.ErrInvalidParams)
	}
	if c.RevealDeadline <= c.CommitDeadline {
		return fmt.Errorf("%w: reveal deadline %d must come after the commit deadline %d",
			distribution.ErrInvalidParams, c.RevealDeadline, c.CommitDeadline)
	}
	return c.Auction.Validate()
}
