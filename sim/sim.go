// Package sim estimates auctioneer revenue under false-bid deviations by
// Monte-Carlo over sampled valuations. The one-shot harness replays the
// public-broadcast round directly from commitments and disclosures; the
// timed harness drives full sessions against a slot schedule.
package sim

import (
	"crypto/cipher"
	"fmt"
	"math"
	"math/rand"

	lru "github.com/hashicorp/golang-lru"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
)

// FalseBid is a synthetic bid the auctioneer injects into its own round,
// together with the decision to open it at resolution.
type FalseBid struct {
	Bid    float64 `json:"bid" toml:"bid"`
	Reveal bool    `json:"reveal" toml:"reveal"`
}

// DeviationModel produces the synthetic bids a deviating auctioneer injects
// for one round, given the strongest real bid of that round.
type DeviationModel interface {
	falseBids(topReal float64) []FalseBid
}

// Fixed injects the same synthetic bid every round.
type Fixed FalseBid

func (f Fixed) falseBids(float64) []FalseBid {
	return []FalseBid{FalseBid(f)}
}

// Multiple injects a fixed set of synthetic bids every round.
type Multiple []FalseBid

func (m Multiple) falseBids(float64) []FalseBid {
	return append([]FalseBid(nil), m...)
}

// ThresholdReveal injects one synthetic bid and opens it only in rounds
// whose strongest real bid reaches the trigger.
type ThresholdReveal struct {
	Bid                float64
	RevealIfTopAtLeast float64
}

func (t ThresholdReveal) falseBids(topReal float64) []FalseBid {
	return []FalseBid{{Bid: t.Bid, Reveal: topReal >= t.RevealIfTopAtLeast}}
}

// RevenueStats compares average auctioneer revenue with and without a
// deviation.
type RevenueStats struct {
	Baseline float64 `json:"baseline"`
	Deviated float64 `json:"deviated"`
}

// Result reports a deviation study: average revenues plus the fraction of
// rounds whose winner changed.
type Result struct {
	BaselineRevenue      float64 `json:"baseline_revenue"`
	DeviatedRevenue      float64 `json:"deviated_revenue"`
	AllocationChangeRate float64 `json:"allocation_change_rate"`
}

// SafeDeviationStats reports the empirical check of the no-profitable-
// deviation bound.
type SafeDeviationStats struct {
	Satisfied    bool    `json:"satisfied"`
	MaxViolation float64 `json:"max_violation"`
}

// safeBoundTolerance separates revenue noise from a genuine violation.
const safeBoundTolerance = 1e-9

// paramCache holds derived (reserve, collateral) pairs keyed by the
// distribution identity, alpha and buyer count, so repeated studies over the
// same configuration skip the numeric root finding. The constant size keeps
// NewARC from failing.
var paramCache, _ = lru.NewARC(64)

type derivedParams struct {
	reserve    float64
	collateral float64
}

func deriveParams(dist distribution.Distribution, alpha float64, buyers int) (float64, float64, error) {
	key := fmt.Sprintf("%s|alpha=%g|buyers=%d", dist, alpha, buyers)
	if v, ok := paramCache.Get(key); ok {
		p := v.(derivedParams)
		return p.reserve, p.collateral, nil
	}
	cfg := auction.Config{Distribution: dist, Buyers: buyers, Alpha: alpha}
	reserve, collateral, err := cfg.Derive()
	if err != nil {
		return 0, 0, err
	}
	paramCache.Add(key, derivedParams{reserve: reserve, collateral: collateral})
	return reserve, collateral, nil
}

// runOnce plays one public-broadcast round straight through: every real bid
// commits and opens, synthetic bids open per their flag, and the round
// resolves under the default forfeit policy.
func runOnce(scheme commitment.Scheme, reserve, collateral float64, vals []float64, falseBids []FalseBid, rand cipher.Stream) (*auction.Outcome, error) {
	bids := make([]auction.Bid, 0, len(vals)+len(falseBids))
	for i, v := range vals {
		c, o, err := scheme.Commit(v, rand)
		if err != nil {
			return nil, err
		}
		disclosure := auction.InvalidOpening
		if scheme.Verify(c, o) {
			disclosure = auction.Revealed
		}
		bids = append(bids, auction.Bid{
			Participant: auction.NewHonest(i),
			Value:       v,
			Commitment:  c,
			Opening:     o,
			Collateral:  collateral,
			Disclosure:  disclosure,
		})
	}
	for j, fb := range falseBids {
		c, o, err := scheme.Commit(fb.Bid, rand)
		if err != nil {
			return nil, err
		}
		disclosure := auction.NonRevealed
		if fb.Reveal && scheme.Verify(c, o) {
			disclosure = auction.Revealed
		}
		bids = append(bids, auction.Bid{
			Participant: auction.NewFalseBidder(j),
			Value:       fb.Bid,
			Commitment:  c,
			Opening:     o,
			Collateral:  collateral,
			Disclosure:  disclosure,
		})
	}
	return auction.Resolve(reserve, collateral, auction.ForfeitToAuctioneer, bids), nil
}

func sampleRound(dist distribution.Distribution, buyers int, rng *rand.Rand) ([]float64, float64) {
	vals := make([]float64, buyers)
	topReal := 0.0
	for i := range vals {
		vals[i] = dist.Sample(rng)
		topReal = math.Max(topReal, vals[i])
	}
	return vals, topReal
}

func validateStudy(trials int, model DeviationModel) error {
	if trials <= 0 {
		return fmt.Errorf("%w: trials must be positive, got %d", distribution.ErrInvalidParams, trials)
	}
	if model == nil {
		return fmt.Errorf("%w: a deviation model is required", distribution.ErrInvalidParams)
	}
	return nil
}

// FalseBidImpact compares baseline revenue against one fixed false-bid
// deviation.
func FalseBidImpact(dist distribution.Distribution, alpha float64, buyers, trials int, fb FalseBid, seed uint64) (*RevenueStats, error) {
	res, err := Deviation(dist, alpha, buyers, trials, Fixed(fb), seed)
	if err != nil {
		return nil, err
	}
	return &RevenueStats{Baseline: res.BaselineRevenue, Deviated: res.DeviatedRevenue}, nil
}

// Deviation runs the study under the baseline commitment backend.
func Deviation(dist distribution.Distribution, alpha float64, buyers, trials int, model DeviationModel, seed uint64) (*Result, error) {
	return DeviationWithScheme(dist, alpha, buyers, trials, model, seed, commitment.NewShaBaseline())
}

// DeviationWithScheme compares, over trials sampled rounds, the auctioneer's
// revenue with and without the model's synthetic bids, committing through
// the given backend. Both runs of a trial reuse the same valuations, so the
// difference isolates the deviation.
func DeviationWithScheme(dist distribution.Distribution, alpha float64, buyers, trials int, model DeviationModel, seed uint64, scheme commitment.Scheme) (*Result, error) {
	if err := validateStudy(trials, model); err != nil {
		return nil, err
	}
	reserve, collateral, err := deriveParams(dist, alpha, buyers)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	var baselineTotal, deviatedTotal float64
	allocationChanges := 0
	for trial := 0; trial < trials; trial++ {
		vals, topReal := sampleRound(dist, buyers, rng)
		baseStream := commitment.Stream(commitment.SeedFromUint64(rng.Uint64()))
		devStream := commitment.Stream(commitment.SeedFromUint64(rng.Uint64()))

		base, err := runOnce(scheme, reserve, collateral, vals, nil, baseStream)
		if err != nil {
			return nil, err
		}
		dev, err := runOnce(scheme, reserve, collateral, vals, model.falseBids(topReal), devStream)
		if err != nil {
			return nil, err
		}

		baselineTotal += base.Revenue()
		deviatedTotal += dev.Revenue()
		if base.WinnerTag() != dev.WinnerTag() {
			allocationChanges++
		}
	}

	n := float64(trials)
	return &Result{
		BaselineRevenue:      baselineTotal / n,
		DeviatedRevenue:      deviatedTotal / n,
		AllocationChangeRate: float64(allocationChanges) / n,
	}, nil
}

// SafeDeviationBound empirically checks that the model never beats honest
// play by more than the tolerance. MaxViolation reports the worst observed
// excess when it does.
func SafeDeviationBound(dist distribution.Distribution, alpha float64, buyers, trials int, model DeviationModel, seed uint64) (*SafeDeviationStats, error) {
	if err := validateStudy(trials, model); err != nil {
		return nil, err
	}
	reserve, collateral, err := deriveParams(dist, alpha, buyers)
	if err != nil {
		return nil, err
	}

	scheme := commitment.NewShaBaseline()
	rng := rand.New(rand.NewSource(int64(seed)))
	maxViolation := 0.0
	for trial := 0; trial < trials; trial++ {
		vals, topReal := sampleRound(dist, buyers, rng)
		baseStream := commitment.Stream(commitment.SeedFromUint64(rng.Uint64()))
		devStream := commitment.Stream(commitment.SeedFromUint64(rng.Uint64()))

		base, err := runOnce(scheme, reserve, collateral, vals, nil, baseStream)
		if err != nil {
			return nil, err
		}
		dev, err := runOnce(scheme, reserve, collateral, vals, model.falseBids(topReal), devStream)
		if err != nil {
			return nil, err
		}
		if excess := dev.Revenue() - base.Revenue(); excess > safeBoundTolerance {
			maxViolation = math.Max(maxViolation, excess)
		}
	}
	return &SafeDeviationStats{
		Satisfied:    maxViolation <= safeBoundTolerance,
		MaxViolation: maxViolation,
	}, nil
}
