package protocol

import (
	"context"
	"fmt"
	"time"

	clock "github.com/jonboulle/clockwork"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/distribution"
)

// SlotFunc acts on a timed session at the top of each logical slot. The
// session's phase already reflects any deadline crossed by that slot.
type SlotFunc func(slot uint64, s *Session) error

// RunTimed drives a session on wall time: every slotLen the logical clock
// advances one slot, firing deadline transitions as they are crossed, until
// the round resolves or ctx is canceled. act runs at the top of every slot,
// slot zero included, and may be nil.
func RunTimed(ctx context.Context, s *Session, c clock.Clock, slotLen time.Duration, act SlotFunc) (*auction.Outcome, error) {
	if slotLen <= 0 {
		return nil, fmt.Errorf("%w: slot length must be positive, got %s", distribution.ErrInvalidParams, slotLen)
	}

	ticker := c.NewTicker(slotLen)
	defer ticker.Stop()

	for {
		if act != nil {
			if err := act(s.Now(), s); err != nil {
				return nil, err
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.Chan():
		}
		if err := s.AdvanceTo(s.Now() + 1); err != nil {
			return nil, err
		}
		if s.Phase() == Resolved {
			return s.Outcome()
		}
	}
}
