package centralized

import (
	"math"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/channel"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
	"github.com/credra/credra/log"
	"github.com/credra/credra/protocol"
)

// Deadlines for the two-buyer comparison rounds. The values only have to
// leave room for the choreography; revenue does not depend on them.
const (
	deviationCommitDeadline = 4
	deviationRevealDeadline = 8
)

// DeviationReport compares the auctioneer's take across an honest round and
// a deviating one over the same pair of valuations.
type DeviationReport struct {
	BaselineRevenue  float64 `json:"baseline_revenue"`
	DeviationRevenue float64 `json:"deviation_revenue"`
}

// Gain is the revenue the deviation extracts on top of honest play.
func (r *DeviationReport) Gain() float64 {
	return r.DeviationRevenue - r.BaselineRevenue
}

// AdaptiveReserveDeviation evaluates the adaptive-reserve strategy for an
// auctioneer who learns buyer A's valuation before closing the round and,
// above the trigger threshold, injects a synthetic bid of A plus collateral.
// The baseline is produced by an honest two-buyer round; the deviating
// revenue follows the strategy's closed form.
func AdaptiveReserveDeviation(dist distribution.Distribution, alpha, buyerA, buyerB, threshold float64, l log.Logger) (*DeviationReport, error) {
	cfg := auction.Config{Distribution: dist, Buyers: 2, Alpha: alpha}
	reserve, collateral, err := cfg.Derive()
	if err != nil {
		return nil, err
	}
	baseline, err := baselineRevenue(dist, alpha, buyerA, buyerB, l)
	if err != nil {
		return nil, err
	}
	return &DeviationReport{
		BaselineRevenue:  baseline,
		DeviationRevenue: adaptiveRevenue(reserve, collateral, threshold, buyerA, buyerB, baseline),
	}, nil
}

// ScriptedAdaptiveReserveRun plays the adaptive-reserve strategy out over a
// centralized channel instead of evaluating its closed form. Buyer A commits
// and reveals to the auctioneer alone while buyer B is kept in the dark;
// above the threshold a synthetic bid of A plus collateral is injected and
// forwarded only to B before B's commit window is declared over. The
// centralized channel is returned alongside the report so the per-recipient
// views and omissions remain inspectable.
func ScriptedAdaptiveReserveRun(dist distribution.Distribution, alpha, buyerA, buyerB, threshold float64, l log.Logger) (*DeviationReport, *channel.Centralized, error) {
	baseline, err := baselineRevenue(dist, alpha, buyerA, buyerB, l)
	if err != nil {
		return nil, nil, err
	}

	d, err := NewDriver(protocol.Config{
		Auction:        auction.Config{Distribution: dist, Buyers: 2, Alpha: alpha},
		Scheme:         commitment.NewShaBaseline(),
		CommitDeadline: deviationCommitDeadline,
		RevealDeadline: deviationRevealDeadline,
		Logger:         l,
	})
	if err != nil {
		return nil, nil, err
	}

	auctioneer := auction.NewAuctioneer()
	a, b := auction.NewHonest(0), auction.NewHonest(1)

	if err := d.CommitBuyer(0, buyerA, nil); err != nil {
		return nil, nil, err
	}
	if err := d.CommitBuyer(1, buyerB, nil); err != nil {
		return nil, nil, err
	}
	// B's commitment reaches A, A's never reaches B.
	if err := d.ForwardCommit(b, a); err != nil {
		return nil, nil, err
	}
	// A is told the commit phase closed and reveals to the auctioneer alone,
	// which is where the value feeding the threshold decision comes from.
	d.AnnounceCommitEnd(a)
	if err := d.PublishReveal(a, auctioneer); err != nil {
		return nil, nil, err
	}
	falseBid := buyerA + d.Collateral()
	if buyerA >= threshold {
		if err := d.CommitFalse(0, falseBid, false, nil); err != nil {
			return nil, nil, err
		}
		if err := d.ForwardCommit(auction.NewFalseBidder(0), b); err != nil {
			return nil, nil, err
		}
	}
	// Only now does B learn the commit phase is over.
	d.AnnounceCommitEnd(b)
	if err := d.PublishReveal(b, auctioneer); err != nil {
		return nil, nil, err
	}
	if buyerA >= threshold {
		// Open the synthetic bid only when B outbids it; otherwise it is
		// withheld so the auctioneer never buys from itself.
		if err := d.SetFalseBidReveal(0, buyerB > falseBid); err != nil {
			return nil, nil, err
		}
	}

	out, _, ch, err := d.Resolve()
	if err != nil {
		return nil, nil, err
	}
	return &DeviationReport{
		BaselineRevenue:  baseline,
		DeviationRevenue: out.Revenue(),
	}, ch, nil
}

// baselineRevenue runs one honest two-buyer round and reports the
// auctioneer's take.
func baselineRevenue(dist distribution.Distribution, alpha, buyerA, buyerB float64, l log.Logger) (float64, error) {
	s, err := protocol.NewSession(protocol.Config{
		Auction:        auction.Config{Distribution: dist, Buyers: 2, Alpha: alpha},
		Scheme:         commitment.NewShaBaseline(),
		CommitDeadline: deviationCommitDeadline,
		RevealDeadline: deviationRevealDeadline,
		Logger:         l,
	})
	if err != nil {
		return 0, err
	}
	for i, value := range []float64{buyerA, buyerB} {
		if err := s.Commit(auction.NewHonest(i), value, nil); err != nil {
			return 0, err
		}
	}
	if err := s.EndCommitPhase(); err != nil {
		return 0, err
	}
	for i := 0; i < 2; i++ {
		if _, err := s.Reveal(auction.NewHonest(i)); err != nil {
			return 0, err
		}
	}
	out, err := s.Resolve()
	if err != nil {
		return 0, err
	}
	return out.Revenue(), nil
}

// adaptiveRevenue is the closed form of the adaptive-reserve strategy's
// revenue. Below the threshold the auctioneer plays honestly. Above it the
// synthetic bid of A plus collateral is revealed only when B outbids it;
// otherwise the reveal is withheld so the synthetic bid never wins.
func adaptiveRevenue(reserve, collateral, threshold, buyerA, buyerB, baseline float64) float64 {
	if buyerA < threshold {
		return baseline
	}
	falseBid := buyerA + collateral
	switch {
	case reserve >= math.Max(buyerA, buyerB):
		return 0
	case buyerB < buyerA && buyerA > reserve:
		return math.Max(reserve, buyerB)
	case buyerB >= buyerA && buyerB <= falseBid && buyerB > reserve:
		return math.Max(reserve, buyerA)
	case buyerB > falseBid:
		return falseBid
	default:
		return baseline
	}
}
