// Package transcript records everything observable about one auction round
// on the public channel: commitments in commit order, reveals, broadcast
// events and the resolution record. The transcript is append-only for the
// lifetime of the round and is what a third party audits after the fact.
package transcript

import (
	"errors"
	"sync"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/commitment"
)

// ErrSealed is returned when writing to a transcript whose outcome is
// already recorded.
var ErrSealed = errors.New("transcript already sealed with an outcome")

// PhaseTag names a protocol phase inside broadcast events.
type PhaseTag string

const (
	PhaseCommitting PhaseTag = "committing"
	PhaseRevealing  PhaseTag = "revealing"
	PhaseResolved   PhaseTag = "resolved"
)

// PhaseTimings carries the logical deadlines the round was announced with.
type PhaseTimings struct {
	CommitDeadline uint64 `json:"commit_deadline"`
	RevealDeadline uint64 `json:"reveal_deadline"`
}

// CommitmentEvent is one bidder's entry in the commit phase. Index is the
// logical commit-order position assigned by the transcript.
type CommitmentEvent struct {
	Participant auction.ParticipantID `json:"participant"`
	Commitment  commitment.Commitment `json:"commitment"`
	Index       uint64                `json:"index"`
	Time        uint64                `json:"time"`
}

// RevealEvent is one opening attempt during the reveal phase. Success
// records whether the opening verified when it was received; auditors
// re-verify it regardless.
type RevealEvent struct {
	Participant auction.ParticipantID `json:"participant"`
	Opening     commitment.Opening    `json:"opening"`
	Success     bool                  `json:"success"`
	Time        uint64                `json:"time"`
}

// BroadcastKind enumerates what the channel announced.
type BroadcastKind int

const (
	// CommitmentPublished echoes a commitment to all subscribers.
	CommitmentPublished BroadcastKind = iota
	// RevealPublished echoes an opening to all subscribers.
	RevealPublished
	// PhaseTransition announces the round moving to a new phase.
	PhaseTransition
	// TimeoutNotice announces that a phase deadline elapsed.
	TimeoutNotice
)

func (k BroadcastKind) String() string {
	switch k {
	case CommitmentPublished:
		return "commitment-published"
	case RevealPublished:
		return "reveal-published"
	case PhaseTransition:
		return "phase-transition"
	case TimeoutNotice:
		return "timeout"
	default:
		return "unknown"
	}
}

// BroadcastEvent is one announcement on the public channel. Participant is
// nil for announcements not tied to a bidder; Phase carries the target phase
// for transitions and the elapsed phase for timeouts.
type BroadcastEvent struct {
	Kind        BroadcastKind          `json:"kind"`
	Participant *auction.ParticipantID `json:"participant,omitempty"`
	Phase       PhaseTag               `json:"phase,omitempty"`
	Time        uint64                 `json:"time"`
}

// Transcript is the append-only record of one round.
type Transcript struct {
	mu          *sync.RWMutex
	timings     PhaseTimings
	commitments []CommitmentEvent
	reveals     []RevealEvent
	broadcasts  []BroadcastEvent
	outcome     *auction.Outcome
}

// New returns an empty transcript for a round announced with the given
// deadlines.
func New(timings PhaseTimings) *Transcript {
	return &Transcript{
		mu:          &sync.RWMutex{},
		timings:     timings,
		commitments: []CommitmentEvent{},
		reveals:     []RevealEvent{},
		broadcasts:  []BroadcastEvent{},
	}
}

// Timings returns the deadlines the round was announced with.
func (t *Transcript) Timings() PhaseTimings {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.timings
}

// RecordCommitment appends a commitment event, assigns its commit-order
// index and returns it.
func (t *Transcript) RecordCommitment(ev CommitmentEvent) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome != nil {
		return 0, ErrSealed
	}
	ev.Index = uint64(len(t.commitments))
	t.commitments = append(t.commitments, ev)
	return ev.Index, nil
}

// RecordReveal appends a reveal event.
func (t *Transcript) RecordReveal(ev RevealEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome != nil {
		return ErrSealed
	}
	t.reveals = append(t.reveals, ev)
	return nil
}

// RecordBroadcast appends a channel announcement.
func (t *Transcript) RecordBroadcast(ev BroadcastEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome != nil {
		return ErrSealed
	}
	t.broadcasts = append(t.broadcasts, ev)
	return nil
}

// Seal records the resolution record and closes the transcript for writing.
func (t *Transcript) Seal(out *auction.Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome != nil {
		return ErrSealed
	}
	t.outcome = out
	return nil
}

// Commitments returns a copy of the commit events in commit order.
func (t *Transcript) Commitments() []CommitmentEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]CommitmentEvent, len(t.commitments))
	copy(out, t.commitments)
	return out
}

// Reveals returns a copy of the reveal events in arrival order.
func (t *Transcript) Reveals() []RevealEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]RevealEvent, len(t.reveals))
	copy(out, t.reveals)
	return out
}

// Broadcasts returns a copy of the channel announcements in arrival order.
func (t *Transcript) Broadcasts() []BroadcastEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]BroadcastEvent, len(t.broadcasts))
	copy(out, t.broadcasts)
	return out
}

// Outcome returns the resolution record, or nil while the round is open.
func (t *Transcript) Outcome() *auction.Outcome {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.outcome
}
