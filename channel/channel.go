// Package channel models the two message fabrics the protocol can run over:
// an honest broadcast log where every subscriber sees the same history, and a
// centralized channel owned by the auctioneer that can address recipients
// selectively. The centralized channel tracks its own omissions, which is
// what deviation scenarios measure.
package channel

import (
	"errors"
	"sync"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/commitment"
)

// ErrUnknownRecipient is returned for deliveries to a participant that never
// registered with the channel.
var ErrUnknownRecipient = errors.New("recipient not registered with the channel")

// Payload is the content of one channel message.
type Payload interface {
	Kind() string
}

// CommitmentPayload carries a bid commitment.
type CommitmentPayload struct {
	Commitment commitment.Commitment
}

func (CommitmentPayload) Kind() string { return "commitment" }

// OpeningPayload carries a reveal.
type OpeningPayload struct {
	Opening commitment.Opening
}

func (OpeningPayload) Kind() string { return "opening" }

// EndPhase announces a phase closing to whichever recipients the sender
// chose to tell.
type EndPhase struct {
	Phase string
}

func (EndPhase) Kind() string { return "end-phase" }

// TimeoutPayload names a participant whose reveal window elapsed.
type TimeoutPayload struct {
	Target auction.ParticipantID
}

func (TimeoutPayload) Kind() string { return "timeout" }

// Notice carries free-form protocol announcements.
type Notice struct {
	Text string
}

func (Notice) Kind() string { return "notice" }

// Message is one delivery on a channel.
type Message struct {
	From    auction.ParticipantID
	Payload Payload
	Time    uint64
}

// BroadcastLog is the honest public channel. Everything recorded is visible
// to every subscriber identically, so a per-recipient view is the full log.
type BroadcastLog struct {
	mu       *sync.RWMutex
	messages []Message
}

// NewBroadcastLog returns an empty public log.
func NewBroadcastLog() *BroadcastLog {
	return &BroadcastLog{
		mu:       &sync.RWMutex{},
		messages: []Message{},
	}
}

// Record appends a message to the log.
func (b *BroadcastLog) Record(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.messages = append(b.messages, msg)
}

// All returns a copy of the full log in arrival order.
func (b *BroadcastLog) All() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// PerRecipientView returns what the given participant saw, which on a
// broadcast log is the full history.
func (b *BroadcastLog) PerRecipientView(auction.ParticipantID) []Message {
	return b.All()
}

// Len returns the number of recorded messages.
func (b *BroadcastLog) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.messages)
}

// Centralized is a channel the auctioneer operates. It can address a single
// recipient or broadcast while omitting some, and it remembers what each
// registered recipient was not shown.
type Centralized struct {
	mu         *sync.RWMutex
	recipients []auction.ParticipantID
	deliveries map[auction.ParticipantID][]Message
	omissions  map[auction.ParticipantID][]Message
	sent       []Message
}

// NewCentralized returns a channel with no recipients yet.
func NewCentralized() *Centralized {
	return &Centralized{
		mu:         &sync.RWMutex{},
		deliveries: map[auction.ParticipantID][]Message{},
		omissions:  map[auction.ParticipantID][]Message{},
	}
}

// Register subscribes a participant. Registering twice is a no-op.
func (c *Centralized) Register(p auction.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.deliveries[p]; ok {
		return
	}
	c.recipients = append(c.recipients, p)
	c.deliveries[p] = []Message{}
	c.omissions[p] = []Message{}
}

// Recipients returns the registered participants in registration order.
func (c *Centralized) Recipients() []auction.ParticipantID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]auction.ParticipantID, len(c.recipients))
	copy(out, c.recipients)
	return out
}

// PrivateMessage delivers to exactly one recipient; nobody else sees it and
// no omission is recorded.
func (c *Centralized) PrivateMessage(to auction.ParticipantID, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.deliveries[to]; !ok {
		return ErrUnknownRecipient
	}
	c.deliveries[to] = append(c.deliveries[to], msg)
	c.sent = append(c.sent, msg)
	return nil
}

// Record delivers to every registered recipient, the same fan-out contract a
// BroadcastLog gives.
func (c *Centralized) Record(msg Message) {
	c.BroadcastSubset(msg)
}

// BroadcastSubset delivers to every registered recipient except the omitted
// ones, recording the message in each omitted recipient's omission list.
func (c *Centralized) BroadcastSubset(msg Message, omit ...auction.ParticipantID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	omitted := make(map[auction.ParticipantID]bool, len(omit))
	for _, p := range omit {
		omitted[p] = true
	}
	for _, p := range c.recipients {
		if omitted[p] {
			c.omissions[p] = append(c.omissions[p], msg)
			continue
		}
		c.deliveries[p] = append(c.deliveries[p], msg)
	}
	c.sent = append(c.sent, msg)
}

// PerRecipientView returns what the given recipient actually received, in
// delivery order.
func (c *Centralized) PerRecipientView(p auction.ParticipantID) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.deliveries[p]))
	copy(out, c.deliveries[p])
	return out
}

// OmittedFor returns the messages the channel withheld from the given
// recipient.
func (c *Centralized) OmittedFor(p auction.ParticipantID) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.omissions[p]))
	copy(out, c.omissions[p])
	return out
}

// All returns every message the channel ever carried, private or broadcast,
// in send order.
func (c *Centralized) All() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}
