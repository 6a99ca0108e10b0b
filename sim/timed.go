package sim

import (
	"crypto/cipher"
	"math/rand"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
	"github.com/credra/credra/log"
	"github.com/credra/credra/protocol"
	"github.com/credra/credra/transcript"
)

// TimedReport summarizes a batch of schedule-driven rounds. Trials that ran
// into a deadline anywhere along the way count as failures and contribute
// nothing to the average.
type TimedReport struct {
	SuccessfulRuns   int     `json:"successful_runs"`
	DeadlineFailures int     `json:"deadline_failures"`
	AverageRevenue   float64 `json:"average_revenue"`
}

// TimedProtocol drives trials full sessions against the schedule, one
// logical slot per action: commits from slot 0, synthetic commits after,
// reveals from the commit deadline on. Rounds whose actions run past a
// deadline are counted rather than aborted, which is how tight schedules
// are measured.
func TimedProtocol(dist distribution.Distribution, alpha float64, buyers, trials int, model DeviationModel, schedule transcript.PhaseTimings, seed uint64, l log.Logger) (*TimedReport, error) {
	if err := validateStudy(trials, model); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	successes, failures := 0, 0
	revenueSum := 0.0
	for trial := 0; trial < trials; trial++ {
		vals, topReal := sampleRound(dist, buyers, rng)
		falseBids := model.falseBids(topReal)
		s, err := protocol.NewSession(protocol.Config{
			Auction:        auction.Config{Distribution: dist, Buyers: buyers, Alpha: alpha},
			Scheme:         commitment.NewFischlin(),
			CommitDeadline: schedule.CommitDeadline,
			RevealDeadline: schedule.RevealDeadline,
			Logger:         l,
		})
		if err != nil {
			return nil, err
		}
		stream := commitment.Stream(commitment.SeedFromUint64(rng.Uint64()))

		now := uint64(0)
		if !commitAll(s, vals, falseBids, stream, &now) {
			failures++
			continue
		}
		if err := s.EndCommitPhase(); err != nil {
			failures++
			continue
		}
		if !revealAll(s, buyers, falseBids, schedule.CommitDeadline) {
			failures++
			continue
		}
		out, err := s.Resolve()
		if err != nil {
			failures++
			continue
		}
		revenueSum += out.Revenue()
		successes++
	}

	avg := 0.0
	if successes > 0 {
		avg = revenueSum / float64(successes)
	}
	return &TimedReport{
		SuccessfulRuns:   successes,
		DeadlineFailures: failures,
		AverageRevenue:   avg,
	}, nil
}

func commitAll(s *protocol.Session, vals []float64, falseBids []FalseBid, stream cipher.Stream, now *uint64) bool {
	for i, v := range vals {
		if err := s.AdvanceTo(*now); err != nil {
			return false
		}
		if err := s.Commit(auction.NewHonest(i), v, stream); err != nil {
			return false
		}
		*now++
	}
	for j, fb := range falseBids {
		if err := s.AdvanceTo(*now); err != nil {
			return false
		}
		if err := s.CommitFalse(j, fb.Bid, stream); err != nil {
			return false
		}
		*now++
	}
	return true
}

func revealAll(s *protocol.Session, buyers int, falseBids []FalseBid, from uint64) bool {
	now := from
	for i := 0; i < buyers; i++ {
		if err := s.AdvanceTo(now); err != nil {
			return false
		}
		if _, err := s.Reveal(auction.NewHonest(i)); err != nil {
			return false
		}
		now++
	}
	for j, fb := range falseBids {
		if !fb.Reveal {
			continue
		}
		if err := s.AdvanceTo(now); err != nil {
			return false
		}
		if _, err := s.Reveal(auction.NewFalseBidder(j)); err != nil {
			return false
		}
		now++
	}
	return true
}
