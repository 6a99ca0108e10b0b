package protocol

import (
	"crypto/cipher"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/channel"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/log"
	"github.com/credra/credra/transcript"
)

// Session is one auction round. All mutation is serialized behind a single
// mutex; independent sessions share nothing.
type Session struct {
	mu  sync.Mutex
	id  string
	cfg Config
	l   log.Logger

	reserve    float64
	collateral float64

	phase Phase
	now   uint64

	bids    []auction.Bid
	index   map[auction.ParticipantID]int
	tr      *transcript.Transcript
	outcome *auction.Outcome
}

// NewSession validates the configuration, freezes the reserve price and the
// collateral requirement, and opens the commit phase at logical time zero.
func NewSession(cfg Config) (*Session, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	reserve, collateral, err := cfg.Auction.Derive()
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	s := &Session{
		id:         id,
		cfg:        cfg,
		l:          cfg.Logger.Named("session").With("id", id),
		reserve:    reserve,
		collateral: collateral,
		phase:      Committing,
		index:      make(map[auction.ParticipantID]int),
		tr: transcript.New(transcript.PhaseTimings{
			CommitDeadline: cfg.CommitDeadline,
			RevealDeadline: cfg.RevealDeadline,
		}),
	}
	s.l.Infow("round opened",
		"distribution", cfg.Auction.Distribution.String(),
		"scheme", cfg.Scheme.Name(),
		"reserve", reserve,
		"collateral", collateral,
		"commit_deadline", cfg.CommitDeadline,
		"reveal_deadline", cfg.RevealDeadline)
	return s, nil
}

// ID returns the round identifier.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

// Now returns the logical clock.
func (s *Session) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now
}

// Reserve returns the frozen reserve price.
func (s *Session) Reserve() float64 {
	return s.reserve
}

// Collateral returns the frozen per-bid collateral requirement.
func (s *Session) Collateral() float64 {
	return s.collateral
}

// Scheme returns the commitment backend the round runs on.
func (s *Session) Scheme() commitment.Scheme {
	return s.cfg.Scheme
}

// Transcript returns the round's transcript.
func (s *Session) Transcript() *transcript.Transcript {
	return s.tr
}

// Bids returns a copy of the bids in commit order.
func (s *Session) Bids() []auction.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]auction.Bid, len(s.bids))
	copy(out, s.bids)
	return out
}

// Outcome returns the resolution record once the round is resolved.
func (s *Session) Outcome() (*auction.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Resolved {
		return nil, fmt.Errorf("%w: outcome requested in phase %s", ErrPhaseViolation, s.phase)
	}
	return s.outcome, nil
}

// Commit posts one bid for a participant: the value is committed under the
// round's scheme, the bid joins the round in submission order and the
// commitment is published on the transcript and the channel. rand may be nil
// for crypto/rand randomness; pass a seeded stream for reproducible rounds.
func (s *Session) Commit(p auction.ParticipantID, value float64, rand cipher.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Committing {
		return fmt.Errorf("%w: commit in phase %s", ErrPhaseViolation, s.phase)
	}
	if s.now >= s.cfg.CommitDeadline {
		return fmt.Errorf("%w: commit at time %d, deadline %d", ErrDeadline, s.now, s.cfg.CommitDeadline)
	}
	if _, ok := s.index[p]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommit, p)
	}
	if rand == nil {
		rand = commitment.Stream(nil)
	}
	c, o, err := s.cfg.Scheme.Commit(value, rand)
	if err != nil {
		return fmt.Errorf("committing bid for %s: %w", p, err)
	}

	if _, err := s.tr.RecordCommitment(transcript.CommitmentEvent{
		Participant: p, Commitment: *c, Time: s.now,
	}); err != nil {
		return err
	}
	if err := s.tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.CommitmentPublished, Participant: &p, Time: s.now,
	}); err != nil {
		return err
	}

	s.index[p] = len(s.bids)
	s.bids = append(s.bids, auction.Bid{
		Participant: p,
		Value:       value,
		Commitment:  c,
		Opening:     o,
		Collateral:  s.collateral,
		Disclosure:  auction.Pending,
	})
	s.cfg.Broadcast.Record(channel.Message{
		From: p, Payload: channel.CommitmentPayload{Commitment: *c}, Time: s.now,
	})
	s.l.Debugw("bid committed", "participant", p.Tag(), "time", s.now)
	return nil
}

// CommitFalse posts a scripted bid under a synthetic identity the deviating
// auctioneer controls. It posts the same collateral as everyone else.
func (s *Session) CommitFalse(j int, value float64, rand cipher.Stream) error {
	return s.Commit(auction.NewFalseBidder(j), value, rand)
}

// TamperOpening corrupts the stored opening of a pending bid so its later
// reveal fails verification and the bid settles as InvalidOpening.
func (s *Session) TamperOpening(p auction.ParticipantID, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Committing && s.phase != Revealing {
		return fmt.Errorf("%w: tamper in phase %s", ErrPhaseViolation, s.phase)
	}
	i, ok := s.index[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, p)
	}
	if s.bids[i].Disclosure != auction.Pending {
		return fmt.Errorf("%w: %s is %s", ErrDuplicateReveal, p, s.bids[i].Disclosure)
	}
	s.bids[i].Opening.Value = value
	return nil
}

// Reveal opens a participant's commitment. Verification failure is a
// protocol outcome, not an error: the bid settles as InvalidOpening and the
// failed opening goes on the transcript like any other reveal.
func (s *Session) Reveal(p auction.ParticipantID) (auction.Disclosure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Revealing {
		return auction.Pending, fmt.Errorf("%w: reveal in phase %s", ErrPhaseViolation, s.phase)
	}
	if s.now >= s.cfg.RevealDeadline {
		return auction.Pending, fmt.Errorf("%w: reveal at time %d, deadline %d", ErrDeadline, s.now, s.cfg.RevealDeadline)
	}
	i, ok := s.index[p]
	if !ok {
		return auction.Pending, fmt.Errorf("%w: %s", ErrUnknownParticipant, p)
	}
	bid := &s.bids[i]
	if bid.Disclosure != auction.Pending {
		return bid.Disclosure, fmt.Errorf("%w: %s is %s", ErrDuplicateReveal, p, bid.Disclosure)
	}

	verified := s.cfg.Scheme.Verify(bid.Commitment, bid.Opening)
	if verified {
		bid.Disclosure = auction.Revealed
	} else {
		bid.Disclosure = auction.InvalidOpening
	}

	if err := s.tr.RecordReveal(transcript.RevealEvent{
		Participant: p, Opening: *bid.Opening, Success: verified, Time: s.now,
	}); err != nil {
		return bid.Disclosure, err
	}
	if err := s.tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.RevealPublished, Participant: &p, Time: s.now,
	}); err != nil {
		return bid.Disclosure, err
	}
	s.cfg.Broadcast.Record(channel.Message{
		From: p, Payload: channel.OpeningPayload{Opening: *bid.Opening}, Time: s.now,
	})
	s.l.Debugw("bid revealed", "participant", p.Tag(), "disclosure", bid.Disclosure.String(), "time", s.now)
	return bid.Disclosure, nil
}

// AdvanceTo moves the logical clock forward. Crossing the commit deadline
// closes the commit phase; crossing the reveal deadline resolves the round.
// Both transitions fire exactly once, stamped at their deadline, and are
// final.
func (s *Session) AdvanceTo(t uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == Resolved {
		return fmt.Errorf("%w: advance in phase %s", ErrPhaseViolation, s.phase)
	}
	return s.advanceToLocked(t)
}

func (s *Session) advanceToLocked(t uint64) error {
	if t < s.now {
		return fmt.Errorf("%w: at %d, asked for %d", ErrClockRewind, s.now, t)
	}
	if s.phase == Committing && t >= s.cfg.CommitDeadline {
		s.now = s.cfg.CommitDeadline
		if err := s.endCommitLocked(); err != nil {
			return err
		}
	}
	if s.phase == Revealing && t >= s.cfg.RevealDeadline {
		s.now = s.cfg.RevealDeadline
		if err := s.resolveLocked(); err != nil {
			return err
		}
	}
	s.now = t
	return nil
}

// EndCommitPhase closes the commit phase explicitly. The transition is
// stamped at the commit deadline, so the logical clock jumps there.
func (s *Session) EndCommitPhase() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Committing {
		return fmt.Errorf("%w: end commit phase in phase %s", ErrPhaseViolation, s.phase)
	}
	return s.advanceToLocked(s.cfg.CommitDeadline)
}

// Resolve settles the round explicitly: the clock jumps to the reveal
// deadline, never-revealed bids become NonRevealed, the resolution rules
// run, the transcript is sealed and audited and the outcome is returned.
// Resolving from the commit phase closes both phases at once.
func (s *Session) Resolve() (*auction.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != Committing && s.phase != Revealing {
		return nil, fmt.Errorf("%w: resolve in phase %s", ErrPhaseViolation, s.phase)
	}
	if err := s.advanceToLocked(s.cfg.RevealDeadline); err != nil {
		return nil, err
	}
	return s.outcome, nil
}

func (s *Session) endCommitLocked() error {
	if err := s.tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.TimeoutNotice, Phase: transcript.PhaseCommitting, Time: s.now,
	}); err != nil {
		return err
	}
	if err := s.tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.PhaseTransition, Phase: transcript.PhaseRevealing, Time: s.now,
	}); err != nil {
		return err
	}
	s.phase = Revealing
	s.cfg.Broadcast.Record(channel.Message{
		From: auction.NewAuctioneer(), Payload: channel.Notice{Text: "reveal phase open"}, Time: s.now,
	})
	s.l.Infow("commit phase closed", "commitments", len(s.bids), "time", s.now)
	return nil
}

func (s *Session) resolveLocked() error {
	if err := s.tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.TimeoutNotice, Phase: transcript.PhaseRevealing, Time: s.now,
	}); err != nil {
		return err
	}
	for i := range s.bids {
		if s.bids[i].Disclosure == auction.Pending {
			s.bids[i].Disclosure = auction.NonRevealed
		}
	}
	if err := s.tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.PhaseTransition, Phase: transcript.PhaseResolved, Time: s.now,
	}); err != nil {
		return err
	}

	out := auction.Resolve(s.reserve, s.collateral, s.cfg.Auction.Policy, s.bids)
	if err := s.tr.Seal(out); err != nil {
		return err
	}
	s.phase = Resolved
	s.outcome = out
	s.cfg.Broadcast.Record(channel.Message{
		From: auction.NewAuctioneer(), Payload: channel.Notice{Text: "round resolved"}, Time: s.now,
	})

	if err := transcript.Audit(s.tr, s.cfg.Scheme); err != nil {
		s.l.Errorw("transcript failed its audit", "err", err)
		return fmt.Errorf("%w: %w", ErrAuditFailure, err)
	}
	s.l.Infow("round resolved",
		"winner", out.WinnerTag(),
		"winning_bid", out.WinningBid,
		"payment", out.Payment,
		"forfeited", out.ForfeitedToAuctioneer,
		"transferred", out.TransferredCollateral,
		"valid_bids", len(out.ValidBids))
	return nil
}
