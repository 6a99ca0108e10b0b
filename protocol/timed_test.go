package protocol_test

import (
	"context"
	"errors"
	"testing"
	"time"

	clock "github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/distribution"
	"github.com/credra/credra/protocol"
)

const slotLen = 50 * time.Millisecond

type timedResult struct {
	out *auction.Outcome
	err error
}

// drive advances the fake clock one slot at a time, waiting for the session
// to absorb each slot before firing the next tick.
func drive(t *testing.T, fc clock.FakeClock, s *protocol.Session, slots int) {
	t.Helper()
	for i := 1; i <= slots; i++ {
		fc.BlockUntil(1)
		fc.Advance(slotLen)
		slot := uint64(i)
		require.Eventually(t, func() bool {
			return s.Now() >= slot || s.Phase() == protocol.Resolved
		}, 5*time.Second, time.Millisecond)
	}
}

func TestRunTimedResolvesOnSchedule(t *testing.T) {
	cfg := sessionConfig(t)
	cfg.CommitDeadline = 3
	cfg.RevealDeadline = 6
	s, err := protocol.NewSession(cfg)
	require.NoError(t, err)

	act := func(slot uint64, s *protocol.Session) error {
		switch slot {
		case 0:
			if err := s.Commit(auction.NewHonest(0), 7, nil); err != nil {
				return err
			}
			return s.Commit(auction.NewHonest(1), 6, nil)
		case 3:
			if _, err := s.Reveal(auction.NewHonest(0)); err != nil {
				return err
			}
			_, err := s.Reveal(auction.NewHonest(1))
			return err
		default:
			return nil
		}
	}

	fc := clock.NewFakeClock()
	done := make(chan timedResult, 1)
	go func() {
		out, err := protocol.RunTimed(context.Background(), s, fc, slotLen, act)
		done <- timedResult{out, err}
	}()

	drive(t, fc, s, 6)

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, "honest:0", r.out.WinnerTag())
	require.Equal(t, 7.0, r.out.WinningBid)
	require.Equal(t, 6.0, r.out.Payment)
	require.Equal(t, protocol.Resolved, s.Phase())
}

func TestRunTimedLateCommitFailsTheRun(t *testing.T) {
	cfg := sessionConfig(t)
	cfg.CommitDeadline = 2
	cfg.RevealDeadline = 4
	s, err := protocol.NewSession(cfg)
	require.NoError(t, err)

	act := func(slot uint64, s *protocol.Session) error {
		if slot == 2 {
			// The commit deadline already fired for this slot.
			return s.Commit(auction.NewHonest(0), 7, nil)
		}
		return nil
	}

	fc := clock.NewFakeClock()
	done := make(chan timedResult, 1)
	go func() {
		out, err := protocol.RunTimed(context.Background(), s, fc, slotLen, act)
		done <- timedResult{out, err}
	}()

	drive(t, fc, s, 2)

	r := <-done
	require.ErrorIs(t, r.err, protocol.ErrPhaseViolation)
	require.Nil(t, r.out)
}

func TestRunTimedScriptedErrorAborts(t *testing.T) {
	s, err := protocol.NewSession(sessionConfig(t))
	require.NoError(t, err)

	scripted := errors.New("bidder gave up")
	act := func(slot uint64, _ *protocol.Session) error {
		if slot == 1 {
			return scripted
		}
		return nil
	}

	fc := clock.NewFakeClock()
	done := make(chan timedResult, 1)
	go func() {
		out, err := protocol.RunTimed(context.Background(), s, fc, slotLen, act)
		done <- timedResult{out, err}
	}()

	drive(t, fc, s, 1)

	r := <-done
	require.ErrorIs(t, r.err, scripted)
}

func TestRunTimedHonorsContext(t *testing.T) {
	s, err := protocol.NewSession(sessionConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	fc := clock.NewFakeClock()
	done := make(chan timedResult, 1)
	go func() {
		out, err := protocol.RunTimed(ctx, s, fc, slotLen, nil)
		done <- timedResult{out, err}
	}()

	fc.BlockUntil(1)
	cancel()

	r := <-done
	require.ErrorIs(t, r.err, context.Canceled)
}

func TestRunTimedRejectsBadSlotLength(t *testing.T) {
	s, err := protocol.NewSession(sessionConfig(t))
	require.NoError(t, err)

	_, err = protocol.RunTimed(context.Background(), s, clock.NewFakeClock(), 0, nil)
	require.ErrorIs(t, err, distribution.ErrInvalidParams)
}
