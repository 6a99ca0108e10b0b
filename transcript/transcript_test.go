package transcript_test

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/transcript"
)

const (
	commitDeadline = 10
	revealDeadline = 20
	reserve        = 5.0
	collat         = 5.0
)

func commitTo(t *testing.T, scheme commitment.Scheme, value float64, seed uint64) (*commitment.Commitment, *commitment.Opening) {
	t.Helper()
	c, o, err := scheme.Commit(value, commitment.Stream(commitment.SeedFromUint64(seed)))
	require.NoError(t, err)
	return c, o
}

// openRound records a well-behaved commit and reveal history for three honest
// bidders with values 3, 5 and 7, leaving the transcript unsealed.
func openRound(t *testing.T, scheme commitment.Scheme) (*transcript.Transcript, []auction.Bid) {
	t.Helper()
	tr := transcript.New(transcript.PhaseTimings{CommitDeadline: commitDeadline, RevealDeadline: revealDeadline})

	values := []float64{3, 5, 7}
	bids := make([]auction.Bid, 0, len(values))
	for i, v := range values {
		p := auction.NewHonest(i)
		c, o := commitTo(t, scheme, v, uint64(i+1))
		at := uint64(i + 1)
		_, err := tr.RecordCommitment(transcript.CommitmentEvent{Participant: p, Commitment: *c, Time: at})
		require.NoError(t, err)
		require.NoError(t, tr.RecordBroadcast(transcript.BroadcastEvent{
			Kind: transcript.CommitmentPublished, Participant: &p, Time: at,
		}))
		bids = append(bids, auction.Bid{
			Participant: p, Value: v, Commitment: c, Opening: o,
			Collateral: collat, Disclosure: auction.Revealed,
		})
	}
	require.NoError(t, tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.PhaseTransition, Phase: transcript.PhaseRevealing, Time: commitDeadline,
	}))
	for i := range bids {
		at := uint64(commitDeadline + 2 + i)
		require.NoError(t, tr.RecordReveal(transcript.RevealEvent{
			Participant: bids[i].Participant, Opening: *bids[i].Opening, Success: true, Time: at,
		}))
		require.NoError(t, tr.RecordBroadcast(transcript.BroadcastEvent{
			Kind: transcript.RevealPublished, Participant: &bids[i].Participant, Time: at,
		}))
	}
	require.NoError(t, tr.RecordBroadcast(transcript.BroadcastEvent{
		Kind: transcript.PhaseTransition, Phase: transcript.PhaseResolved, Time: revealDeadline,
	}))
	return tr, bids
}

func seal(t *testing.T, tr *transcript.Transcript, bids []auction.Bid) {
	t.Helper()
	require.NoError(t, tr.Seal(auction.Resolve(reserve, collat, auction.ForfeitToAuctioneer, bids)))
}

func mismatches(t *testing.T, err error) []error {
	t.Helper()
	require.ErrorIs(t, err, transcript.ErrAuditMismatch)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	return merr.Errors
}

func TestAuditCleanTranscript(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, bids := openRound(t, scheme)
	seal(t, tr, bids)

	require.NoError(t, transcript.Audit(tr, scheme))
	// Auditing reads only; a second pass finds the same clean transcript.
	require.NoError(t, transcript.Audit(tr, scheme))
}

func TestAuditAcceptsEqualTimestamps(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr := transcript.New(transcript.PhaseTimings{CommitDeadline: commitDeadline, RevealDeadline: revealDeadline})

	var bids []auction.Bid
	for i, v := range []float64{6, 8} {
		p := auction.NewHonest(i)
		c, o := commitTo(t, scheme, v, uint64(10+i))
		_, err := tr.RecordCommitment(transcript.CommitmentEvent{Participant: p, Commitment: *c, Time: 4})
		require.NoError(t, err)
		require.NoError(t, tr.RecordReveal(transcript.RevealEvent{Participant: p, Opening: *o, Success: true, Time: 15}))
		bids = append(bids, auction.Bid{Participant: p, Value: v, Commitment: c, Opening: o, Collateral: collat, Disclosure: auction.Revealed})
	}
	seal(t, tr, bids)

	require.NoError(t, transcript.Audit(tr, scheme))
}

func TestAuditFlagsLateCommitment(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr := transcript.New(transcript.PhaseTimings{CommitDeadline: commitDeadline, RevealDeadline: revealDeadline})

	p := auction.NewHonest(0)
	c, o := commitTo(t, scheme, 7, 1)
	_, err := tr.RecordCommitment(transcript.CommitmentEvent{Participant: p, Commitment: *c, Time: commitDeadline + 1})
	require.NoError(t, err)
	require.NoError(t, tr.RecordReveal(transcript.RevealEvent{Participant: p, Opening: *o, Success: true, Time: commitDeadline + 2}))
	seal(t, tr, []auction.Bid{{Participant: p, Value: 7, Commitment: c, Opening: o, Collateral: collat, Disclosure: auction.Revealed}})

	errs := mismatches(t, transcript.Audit(tr, scheme))
	require.Len(t, errs, 1)

	var mm *transcript.MismatchError
	require.ErrorAs(t, errs[0], &mm)
	require.Equal(t, "honest:0", mm.Participant)
	require.Contains(t, mm.Reason, "commit deadline")
}

func TestAuditFlagsOutOfOrderCommitments(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr := transcript.New(transcript.PhaseTimings{CommitDeadline: commitDeadline, RevealDeadline: revealDeadline})

	var bids []auction.Bid
	for i, at := range []uint64{5, 3} {
		p := auction.NewHonest(i)
		c, o := commitTo(t, scheme, 7, uint64(20+i))
		_, err := tr.RecordCommitment(transcript.CommitmentEvent{Participant: p, Commitment: *c, Time: at})
		require.NoError(t, err)
		require.NoError(t, tr.RecordReveal(transcript.RevealEvent{Participant: p, Opening: *o, Success: true, Time: 15}))
		bids = append(bids, auction.Bid{Participant: p, Value: 7, Commitment: c, Opening: o, Collateral: collat, Disclosure: auction.Revealed})
	}
	seal(t, tr, bids)

	errs := mismatches(t, transcript.Audit(tr, scheme))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "out of order")
}

func TestAuditFlagsRevealTiming(t *testing.T) {
	scheme := commitment.NewShaBaseline()

	t.Run("before commit phase ended", func(t *testing.T) {
		tr, bids := openRound(t, scheme)
		require.NoError(t, tr.RecordReveal(transcript.RevealEvent{
			Participant: bids[0].Participant, Opening: *bids[0].Opening, Success: true, Time: commitDeadline - 1,
		}))
		seal(t, tr, bids)

		errs := mismatches(t, transcript.Audit(tr, scheme))
		var reasons string
		for _, e := range errs {
			reasons += e.Error() + "\n"
		}
		require.Contains(t, reasons, "before the commit phase ended")
	})

	t.Run("after reveal deadline", func(t *testing.T) {
		tr, bids := openRound(t, scheme)
		require.NoError(t, tr.RecordReveal(transcript.RevealEvent{
			Participant: bids[1].Participant, Opening: *bids[1].Opening, Success: true, Time: revealDeadline + 1,
		}))
		seal(t, tr, bids)

		errs := mismatches(t, transcript.Audit(tr, scheme))
		require.NotEmpty(t, errs)
		require.Contains(t, errs[len(errs)-1].Error(), "reveal deadline")
	})
}

func TestAuditFlagsRevealWithoutCommitment(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, bids := openRound(t, scheme)

	stranger := auction.NewHonest(9)
	_, o := commitTo(t, scheme, 6, 99)
	require.NoError(t, tr.RecordReveal(transcript.RevealEvent{Participant: stranger, Opening: *o, Success: true, Time: 16}))
	seal(t, tr, bids)

	errs := mismatches(t, transcript.Audit(tr, scheme))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "without a prior commitment")
}

func TestAuditFlagsTamperedOpening(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr := transcript.New(transcript.PhaseTimings{CommitDeadline: commitDeadline, RevealDeadline: revealDeadline})

	p := auction.NewHonest(0)
	c, o := commitTo(t, scheme, 7, 1)
	_, err := tr.RecordCommitment(transcript.CommitmentEvent{Participant: p, Commitment: *c, Time: 2})
	require.NoError(t, err)

	forged := *o
	forged.Value = 9
	require.NoError(t, tr.RecordReveal(transcript.RevealEvent{Participant: p, Opening: forged, Success: true, Time: 15}))
	// The sealed record claims the forged value was a valid bid.
	seal(t, tr, []auction.Bid{{Participant: p, Value: 9, Commitment: c, Opening: &forged, Collateral: collat, Disclosure: auction.Revealed}})

	errs := mismatches(t, transcript.Audit(tr, scheme))
	var reasons string
	for _, e := range errs {
		reasons += e.Error() + "\n"
	}
	require.Contains(t, reasons, "does not verify")
	require.Contains(t, reasons, "no verified reveal")
}

func TestAuditFlagsDiscardedGoodOpening(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, bids := openRound(t, scheme)

	// A verifying opening recorded as failed is a deviation on its own.
	require.NoError(t, tr.RecordReveal(transcript.RevealEvent{
		Participant: bids[2].Participant, Opening: *bids[2].Opening, Success: false, Time: 16,
	}))
	seal(t, tr, bids)

	errs := mismatches(t, transcript.Audit(tr, scheme))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "recorded as failed")
}

func TestAuditFlagsSuppressedValidBid(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, bids := openRound(t, scheme)
	// Resolve as if the highest bidder never revealed.
	censored := append([]auction.Bid{}, bids[:2]...)
	seal(t, tr, censored)

	errs := mismatches(t, transcript.Audit(tr, scheme))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "missing from the valid set")
	require.Contains(t, errs[0].Error(), "honest:2")
}

func TestAuditFlagsBelowReserveListedAsValid(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, bids := openRound(t, scheme)

	out := auction.Resolve(reserve, collat, auction.ForfeitToAuctioneer, bids)
	out.ValidBids = append([]auction.ValidBid{{Participant: bids[0].Participant, Value: bids[0].Value}}, out.ValidBids...)
	require.NoError(t, tr.Seal(out))

	errs := mismatches(t, transcript.Audit(tr, scheme))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "below the reserve")
}

func TestAuditFlagsBroadcastTiming(t *testing.T) {
	scheme := commitment.NewShaBaseline()

	cases := map[string]transcript.BroadcastEvent{
		"late commitment publication": {Kind: transcript.CommitmentPublished, Time: commitDeadline + 3},
		"late reveal publication":     {Kind: transcript.RevealPublished, Time: revealDeadline + 3},
		"early reveal transition":     {Kind: transcript.PhaseTransition, Phase: transcript.PhaseRevealing, Time: commitDeadline - 1},
		"early resolve transition":    {Kind: transcript.PhaseTransition, Phase: transcript.PhaseResolved, Time: revealDeadline - 1},
		"early commit timeout":        {Kind: transcript.TimeoutNotice, Phase: transcript.PhaseCommitting, Time: commitDeadline - 1},
		"early reveal timeout":        {Kind: transcript.TimeoutNotice, Phase: transcript.PhaseRevealing, Time: revealDeadline - 1},
		"timeout without phase":       {Kind: transcript.TimeoutNotice, Time: revealDeadline},
	}
	for name, ev := range cases {
		ev := ev
		t.Run(name, func(t *testing.T) {
			tr, bids := openRound(t, scheme)
			require.NoError(t, tr.RecordBroadcast(ev))
			seal(t, tr, bids)

			errs := mismatches(t, transcript.Audit(tr, scheme))
			require.NotEmpty(t, errs)
		})
	}
}

func TestAuditFlagsMissingOutcome(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, _ := openRound(t, scheme)

	errs := mismatches(t, transcript.Audit(tr, scheme))
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "missing resolution record")
}

func TestSealedTranscriptRejectsWrites(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, bids := openRound(t, scheme)
	seal(t, tr, bids)

	_, err := tr.RecordCommitment(transcript.CommitmentEvent{Participant: auction.NewHonest(5)})
	require.ErrorIs(t, err, transcript.ErrSealed)
	require.ErrorIs(t, tr.RecordReveal(transcript.RevealEvent{}), transcript.ErrSealed)
	require.ErrorIs(t, tr.RecordBroadcast(transcript.BroadcastEvent{}), transcript.ErrSealed)
	require.ErrorIs(t, tr.Seal(&auction.Outcome{}), transcript.ErrSealed)
}

func TestTranscriptAssignsCommitOrderAndCopies(t *testing.T) {
	scheme := commitment.NewShaBaseline()
	tr, _ := openRound(t, scheme)

	commits := tr.Commitments()
	require.Len(t, commits, 3)
	for i, ce := range commits {
		require.Equal(t, uint64(i), ce.Index)
	}

	commits[0].Time = 999
	require.NotEqual(t, uint64(999), tr.Commitments()[0].Time)
}
