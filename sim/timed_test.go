package sim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credra/credra/log/testlogger"
	"github.com/credra/credra/sim"
	"github.com/credra/credra/transcript"
)

func TestTimedProtocolCompletesOnLooseSchedule(t *testing.T) {
	schedule := transcript.PhaseTimings{CommitDeadline: 4, RevealDeadline: 10}
	report, err := sim.TimedProtocol(exponential(t, 1), 1, 2, 3, sim.Fixed(sim.FalseBid{Bid: 5, Reveal: false}), schedule, 2024, testlogger.New(t))
	require.NoError(t, err)
	require.Equal(t, 3, report.SuccessfulRuns)
	require.Zero(t, report.DeadlineFailures)
	require.GreaterOrEqual(t, report.AverageRevenue, 0.0)
}

func TestTimedProtocolCountsDeadlineFailures(t *testing.T) {
	// Three commits cannot fit into two slots, so every trial trips the
	// commit deadline.
	schedule := transcript.PhaseTimings{CommitDeadline: 2, RevealDeadline: 10}
	report, err := sim.TimedProtocol(uniform(t, 0, 10), 1, 3, 5, sim.Fixed(sim.FalseBid{Bid: 5, Reveal: false}), schedule, 11, testlogger.New(t))
	require.NoError(t, err)
	require.Zero(t, report.SuccessfulRuns)
	require.Equal(t, 5, report.DeadlineFailures)
	require.Zero(t, report.AverageRevenue)
}

func TestTimedProtocolRevealWindowTooTight(t *testing.T) {
	// Commits fit, but the single reveal slot cannot serve three buyers.
	schedule := transcript.PhaseTimings{CommitDeadline: 4, RevealDeadline: 5}
	report, err := sim.TimedProtocol(uniform(t, 0, 10), 1, 3, 4, sim.Multiple(nil), schedule, 17, testlogger.New(t))
	require.NoError(t, err)
	require.Zero(t, report.SuccessfulRuns)
	require.Equal(t, 4, report.DeadlineFailures)
}

func TestTimedProtocolRevealsSyntheticBids(t *testing.T) {
	schedule := transcript.PhaseTimings{CommitDeadline: 5, RevealDeadline: 12}
	report, err := sim.TimedProtocol(uniform(t, 0, 10), 1, 2, 3, sim.Fixed(sim.FalseBid{Bid: 3, Reveal: true}), schedule, 29, testlogger.New(t))
	require.NoError(t, err)
	require.Equal(t, 3, report.SuccessfulRuns)
	require.Zero(t, report.DeadlineFailures)
}
