// Package centralized mirrors the protocol engine over a channel the
// auctioneer controls end to end. The driver runs a real session underneath
// while choreographing what each buyer is shown on the centralized channel,
// which is how selective forwarding and staggered phase announcements are
// exhibited against the honest broadcast behavior.
package centralized

import (
	"crypto/cipher"
	"fmt"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/channel"
	"github.com/credra/credra/protocol"
	"github.com/credra/credra/transcript"
)

// Driver owns one centralized round: a session for the auction mechanics and
// a Centralized channel for the views the auctioneer serves.
type Driver struct {
	session *protocol.Session
	ch      *channel.Centralized
	buyers  int
	reveals map[auction.ParticipantID]bool
	falses  []auction.ParticipantID
}

// NewDriver opens a round over a centralized channel. The auctioneer and
// cfg.Auction.Buyers honest buyers are registered as recipients.
func NewDriver(cfg protocol.Config) (*Driver, error) {
	session, err := protocol.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	ch := channel.NewCentralized()
	ch.Register(auction.NewAuctioneer())
	for i := 0; i < cfg.Auction.Buyers; i++ {
		ch.Register(auction.NewHonest(i))
	}
	return &Driver{
		session: session,
		ch:      ch,
		buyers:  cfg.Auction.Buyers,
		reveals: make(map[auction.ParticipantID]bool),
	}, nil
}

// Channel exposes the centralized fabric with its per-recipient views.
func (d *Driver) Channel() *channel.Centralized {
	return d.ch
}

// Session exposes the underlying round.
func (d *Driver) Session() *protocol.Session {
	return d.session
}

// Collateral returns the round's frozen per-bid collateral.
func (d *Driver) Collateral() float64 {
	return d.session.Collateral()
}

// Reserve returns the round's frozen reserve price.
func (d *Driver) Reserve() float64 {
	return d.session.Reserve()
}

func (d *Driver) bidOf(p auction.ParticipantID) (auction.Bid, error) {
	for _, b := range d.session.Bids() {
		if b.Participant == p {
			return b, nil
		}
	}
	return auction.Bid{}, fmt.Errorf("%w: %s", protocol.ErrUnknownParticipant, p)
}

// omitExcept lists every registered recipient not in targets, which is how
// the inverted recipient lists of the channel are addressed.
func (d *Driver) omitExcept(targets []auction.ParticipantID) []auction.ParticipantID {
	keep := make(map[auction.ParticipantID]bool, len(targets))
	for _, p := range targets {
		keep[p] = true
	}
	var omit []auction.ParticipantID
	for _, r := range d.ch.Recipients() {
		if !keep[r] {
			omit = append(omit, r)
		}
	}
	return omit
}

// CommitBuyer posts buyer i's bid into the round and sends the commitment
// privately to the auctioneer. Nothing reaches the other buyers until the
// auctioneer forwards it.
func (d *Driver) CommitBuyer(i int, bid float64, rand cipher.Stream) error {
	if i < 0 || i >= d.buyers {
		return fmt.Errorf("%w: honest:%d", protocol.ErrUnknownParticipant, i)
	}
	p := auction.NewHonest(i)
	if err := d.session.Commit(p, bid, rand); err != nil {
		return err
	}
	d.reveals[p] = true

	b, err := d.bidOf(p)
	if err != nil {
		return err
	}
	return d.ch.PrivateMessage(auction.NewAuctioneer(), channel.Message{
		From: p, Payload: channel.CommitmentPayload{Commitment: *b.Commitment}, Time: d.session.Now(),
	})
}

// CommitFalse injects a synthetic bid, registers its identity as a channel
// recipient and informs only the auctioneer. reveal decides whether the bid
// opens at resolution or forfeits.
func (d *Driver) CommitFalse(idx int, bid float64, reveal bool, rand cipher.Stream) error {
	p := auction.NewFalseBidder(idx)
	if err := d.session.Commit(p, bid, rand); err != nil {
		return err
	}
	d.ch.Register(p)
	d.reveals[p] = reveal
	d.falses = append(d.falses, p)

	b, err := d.bidOf(p)
	if err != nil {
		return err
	}
	return d.ch.PrivateMessage(auction.NewAuctioneer(), channel.Message{
		From: p, Payload: channel.CommitmentPayload{Commitment: *b.Commitment}, Time: d.session.Now(),
	})
}

// ForwardCommit relays origin's commitment to exactly the given recipients;
// everyone else records an omission.
func (d *Driver) ForwardCommit(origin auction.ParticipantID, to ...auction.ParticipantID) error {
	b, err := d.bidOf(origin)
	if err != nil {
		return err
	}
	d.ch.BroadcastSubset(channel.Message{
		From: origin, Payload: channel.CommitmentPayload{Commitment: *b.Commitment}, Time: d.session.Now(),
	}, d.omitExcept(to)...)
	return nil
}

// AnnounceCommitEnd tells only the given recipients that the commit phase
// closed.
func (d *Driver) AnnounceCommitEnd(to ...auction.ParticipantID) {
	d.ch.BroadcastSubset(channel.Message{
		From: auction.NewAuctioneer(), Payload: channel.EndPhase{Phase: "commit"}, Time: d.session.Now(),
	}, d.omitExcept(to)...)
}

// AnnounceCommitEndStaggered sends the commit-end notice to two disjoint
// batches as separate deliveries, so each batch misses the other's notice.
func (d *Driver) AnnounceCommitEndStaggered(first, second []auction.ParticipantID) {
	d.AnnounceCommitEnd(first...)
	d.AnnounceCommitEnd(second...)
}

// AnnounceRevealEnd tells only the given recipients that the reveal phase
// closed.
func (d *Driver) AnnounceRevealEnd(to ...auction.ParticipantID) {
	d.ch.BroadcastSubset(channel.Message{
		From: auction.NewAuctioneer(), Payload: channel.EndPhase{Phase: "reveal"}, Time: d.session.Now(),
	}, d.omitExcept(to)...)
}

// NotifyTimeout announces target's elapsed reveal window to the given
// recipients only.
func (d *Driver) NotifyTimeout(target auction.ParticipantID, to ...auction.ParticipantID) {
	d.ch.BroadcastSubset(channel.Message{
		From: auction.NewAuctioneer(), Payload: channel.TimeoutPayload{Target: target}, Time: d.session.Now(),
	}, d.omitExcept(to)...)
}

// PublishReveal relays origin's opening to exactly the given recipients.
func (d *Driver) PublishReveal(origin auction.ParticipantID, to ...auction.ParticipantID) error {
	b, err := d.bidOf(origin)
	if err != nil {
		return err
	}
	d.ch.BroadcastSubset(channel.Message{
		From: origin, Payload: channel.OpeningPayload{Opening: *b.Opening}, Time: d.session.Now(),
	}, d.omitExcept(to)...)
	return nil
}

// WithholdReveal marks buyer i's reveal as suppressed; the bid settles
// NonRevealed at resolution and forfeits.
func (d *Driver) WithholdReveal(i int) error {
	p := auction.NewHonest(i)
	if _, ok := d.reveals[p]; !ok {
		return fmt.Errorf("%w: %s", protocol.ErrUnknownParticipant, p)
	}
	d.reveals[p] = false
	return nil
}

// SetFalseBidReveal flips whether the idx-th synthetic bid opens at
// resolution.
func (d *Driver) SetFalseBidReveal(idx int, reveal bool) error {
	if idx < 0 || idx >= len(d.falses) {
		return fmt.Errorf("%w: false:%d", protocol.ErrUnknownParticipant, idx)
	}
	d.reveals[d.falses[idx]] = reveal
	return nil
}

// Resolve closes the commit phase, performs every reveal not suppressed, and
// settles the round. It returns the outcome together with the transcript and
// the centralized channel so callers can audit both what happened and what
// each buyer was shown.
func (d *Driver) Resolve() (*auction.Outcome, *transcript.Transcript, *channel.Centralized, error) {
	if err := d.session.EndCommitPhase(); err != nil {
		return nil, nil, nil, err
	}
	for _, b := range d.session.Bids() {
		if !d.reveals[b.Participant] {
			continue
		}
		if _, err := d.session.Reveal(b.Participant); err != nil {
			return nil, nil, nil, err
		}
	}
	out, err := d.session.Resolve()
	if err != nil {
		return nil, nil, nil, err
	}
	return out, d.session.Transcript(), d.ch, nil
}
