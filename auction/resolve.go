package auction

import "math"

// ValidBid is one (participant, value) pair that survived the valid-bid
// filter, kept in commit order.
type ValidBid struct {
	Participant ParticipantID `json:"participant"`
	Value       float64       `json:"value"`
}

// Outcome is the terminal, immutable record of a resolved round.
//
// TransferredCollateral and ForfeitedToAuctioneer are kept separate so the
// revenue predictions of both collateral policies can be checked
// independently. AuctioneerPenalty is the share of the forfeited collateral
// the auctioneer had posted itself through synthetic bids; its net revenue is
// Payment + ForfeitedToAuctioneer - AuctioneerPenalty.
type Outcome struct {
	Reserve               float64        `json:"reserve"`
	Collateral            float64        `json:"collateral"`
	Winner                *ParticipantID `json:"winner,omitempty"`
	WinningBid            float64        `json:"winning_bid"`
	Payment               float64        `json:"payment"`
	TransferredCollateral float64        `json:"transferred_collateral"`
	ForfeitedToAuctioneer float64        `json:"forfeited_to_auctioneer"`
	AuctioneerPenalty     float64        `json:"auctioneer_penalty"`
	ValidBids             []ValidBid     `json:"valid_bids"`
}

// WinnerTag serializes the winner reference, with NoWinnerTag standing in
// when no bid cleared the reserve.
func (o *Outcome) WinnerTag() string {
	if o.Winner == nil {
		return NoWinnerTag
	}
	return o.Winner.Tag()
}

// Revenue is what the round earned the auctioneer under the resolved flows.
func (o *Outcome) Revenue() float64 {
	return o.Payment + o.ForfeitedToAuctioneer - o.AuctioneerPenalty
}

// Resolve applies the resolution rules to the bids of a round, taken in
// commit order. A bid is valid iff its opening verified and its value is at
// least the reserve; a bid still Pending counts as non-revealed. The winner
// is the valid bid with the highest value, ties going to the lowest tie rank,
// and pays the second-highest valid value or the reserve, whichever is
// larger. Every bid that failed to reveal forfeits its posted collateral;
// where the forfeited amount goes depends on the policy, falling back to the
// auctioneer when no winner exists. Resolve never mutates its input and is
// deterministic in it.
func Resolve(reserve, collateralAmount float64, policy CollateralPolicy, bids []Bid) *Outcome {
	out := &Outcome{
		Reserve:    reserve,
		Collateral: collateralAmount,
		ValidBids:  []ValidBid{},
	}

	var forfeited float64
	for _, b := range bids {
		if b.Disclosure == Revealed {
			if b.Value >= reserve {
				out.ValidBids = append(out.ValidBids, ValidBid{Participant: b.Participant, Value: b.Value})
			}
			continue
		}
		forfeited += b.Collateral
		if b.Participant.Role != RoleHonest {
			out.AuctioneerPenalty += b.Collateral
		}
	}

	var winner *ValidBid
	var second float64
	for i := range out.ValidBids {
		vb := &out.ValidBids[i]
		switch {
		case winner == nil:
			winner = vb
		case vb.Value > winner.Value,
			vb.Value == winner.Value && vb.Participant.TieRank() < winner.Participant.TieRank():
			second = winner.Value
			winner = vb
		case vb.Value > second:
			second = vb.Value
		}
	}

	if winner == nil {
		// Without a winner there is nobody to transfer to; forfeits
		// still accrue to the auctioneer.
		out.ForfeitedToAuctioneer = forfeited
		return out
	}

	w := winner.Participant
	out.Winner = &w
	out.WinningBid = winner.Value
	out.Payment = math.Max(reserve, second)

	if policy == TransferToWinner {
		out.TransferredCollateral = forfeited
	} else {
		out.ForfeitedToAuctioneer = forfeited
	}
	return out
}
