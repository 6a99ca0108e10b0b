// Package auction holds the round data model and the resolution rules of the
// deferred-revelation auction: which bids count as valid, who wins, what the
// winner pays and where forfeited collateral goes.
package auction

import (
	"fmt"
	"math"

	"github.com/credra/credra/collateral"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
)

// Disclosure tracks what happened to a bid after the commit phase.
type Disclosure int

const (
	// Pending means the reveal phase has not settled the bid yet.
	Pending Disclosure = iota
	// Revealed means the opening verified against the commitment.
	Revealed
	// NonRevealed means the bidder produced no opening before the deadline.
	NonRevealed
	// InvalidOpening means an opening was produced but failed verification.
	InvalidOpening
)

func (d Disclosure) String() string {
	switch d {
	case Pending:
		return "pending"
	case Revealed:
		return "revealed"
	case NonRevealed:
		return "non-revealed"
	case InvalidOpening:
		return "invalid-opening"
	default:
		return "unknown"
	}
}

// Bid is one participant's entry in a round. The value is fixed when the
// commitment is produced; only the disclosure outcome is added later.
type Bid struct {
	Participant ParticipantID
	Value       float64
	Commitment  *commitment.Commitment
	Opening     *commitment.Opening
	Collateral  float64
	Disclosure  Disclosure
}

// CollateralPolicy decides where forfeited collateral goes at resolution.
type CollateralPolicy int

const (
	// ForfeitToAuctioneer pays forfeited collateral to the auctioneer.
	ForfeitToAuctioneer CollateralPolicy = iota
	// TransferToWinner pays forfeited collateral to the winning bidder.
	// Without a winner it falls back to the auctioneer.
	TransferToWinner
)

func (p CollateralPolicy) String() string {
	switch p {
	case ForfeitToAuctioneer:
		return "forfeit_to_auctioneer"
	case TransferToWinner:
		return "transfer_to_winner"
	default:
		return "unknown"
	}
}

// ParseCollateralPolicy maps the configuration spelling of a policy. The
// empty string selects ForfeitToAuctioneer.
func ParseCollateralPolicy(s string) (CollateralPolicy, error) {
	switch s {
	case "", "forfeit_to_auctioneer":
		return ForfeitToAuctioneer, nil
	case "transfer_to_winner":
		return TransferToWinner, nil
	default:
		return 0, fmt.Errorf("%w: unknown collateral policy %q", distribution.ErrInvalidParams, s)
	}
}

// MarshalText serializes the policy under its configuration spelling.
func (p CollateralPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a policy spelling.
func (p *CollateralPolicy) UnmarshalText(b []byte) error {
	policy, err := ParseCollateralPolicy(string(b))
	if err != nil {
		return err
	}
	*p = policy
	return nil
}

// Config fixes the economic parameters of one round.
type Config struct {
	Distribution distribution.Distribution
	Buyers       int
	Alpha        float64
	Policy       CollateralPolicy
}

// Validate checks the parameters against the domain of the collateral
// function and the distribution's strong-regularity bound.
func (c *Config) Validate() error {
	if c.Distribution == nil {
		return fmt.Errorf("%w: a value distribution is required", distribution.ErrInvalidParams)
	}
	if c.Buyers <= 0 {
		return fmt.Errorf("%w: need at least one buyer, got %d", distribution.ErrInvalidParams, c.Buyers)
	}
	if c.Alpha <= 0 || math.IsNaN(c.Alpha) {
		return fmt.Errorf("%w: alpha must be positive, got %v", distribution.ErrInvalidParams, c.Alpha)
	}
	return collateral.ValidateAlpha(c.Distribution, c.Alpha)
}

// Derive computes the reserve price and per-bid collateral the round freezes
// at construction.
func (c *Config) Derive() (float64, float64, error) {
	if err := c.Validate(); err != nil {
		return 0, 0, err
	}
	amount, err := collateral.Requirement(c.Buyers, c.Distribution, c.Alpha)
	if err != nil {
		return 0, 0, err
	}
	return c.Distribution.ReservePrice(), amount, nil
}
