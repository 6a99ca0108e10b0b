package auction

import (
	"fmt"
	"strconv"
	"strings"
)

// Role distinguishes who stands behind a bid. The auctioneer never bids in
// the honest mechanism but can inject synthetic bids when deviating, so every
// bid carries the role of its origin.
type Role int

const (
	// RoleAuctioneer is the party running the round.
	RoleAuctioneer Role = iota
	// RoleHonest is a regular buyer following the mechanism.
	RoleHonest
	// RoleFalse is a synthetic bidder controlled by a deviating auctioneer.
	RoleFalse
)

func (r Role) String() string {
	switch r {
	case RoleAuctioneer:
		return "auctioneer"
	case RoleHonest:
		return "honest"
	case RoleFalse:
		return "false"
	default:
		return "unknown"
	}
}

// ParticipantID identifies one party of a round. The zero value is the
// auctioneer itself.
type ParticipantID struct {
	Role  Role
	Index int
}

// NoWinnerTag is the serialized stand-in when no bid cleared the reserve.
const NoWinnerTag = "none"

// NewAuctioneer returns the identity of the party running the round.
func NewAuctioneer() ParticipantID {
	return ParticipantID{Role: RoleAuctioneer}
}

// NewHonest returns the identity of the honest buyer at index i.
func NewHonest(i int) ParticipantID {
	return ParticipantID{Role: RoleHonest, Index: i}
}

// NewFalseBidder returns the identity of the synthetic bidder at index j.
func NewFalseBidder(j int) ParticipantID {
	return ParticipantID{Role: RoleFalse, Index: j}
}

// Tag renders the stable wire form: "auctioneer", "honest:<i>" or
// "false:<j>".
func (p ParticipantID) Tag() string {
	if p.Role == RoleAuctioneer {
		return "auctioneer"
	}
	return fmt.Sprintf("%s:%d", p.Role, p.Index)
}

func (p ParticipantID) String() string {
	return p.Tag()
}

// falseRankBase keeps synthetic bidders behind every plausible honest index
// when breaking ties.
const falseRankBase = 50000

// TieRank orders participants for tie-breaking at resolution; lower wins.
// The auctioneer ranks first, honest buyers follow in index order and
// synthetic bidders come last.
func (p ParticipantID) TieRank() int {
	switch p.Role {
	case RoleHonest:
		return 1 + p.Index
	case RoleFalse:
		return falseRankBase + p.Index
	default:
		return 0
	}
}

// ParseParticipantID is the inverse of Tag. The NoWinnerTag sentinel is not a
// participant and is rejected.
func ParseParticipantID(tag string) (ParticipantID, error) {
	if tag == "auctioneer" {
		return ParticipantID{Role: RoleAuctioneer}, nil
	}
	role, index, found := strings.Cut(tag, ":")
	if !found {
		return ParticipantID{}, fmt.Errorf("participant tag %q: missing index", tag)
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 {
		return ParticipantID{}, fmt.Errorf("participant tag %q: invalid index %q", tag, index)
	}
	switch role {
	case "honest":
		return ParticipantID{Role: RoleHonest, Index: i}, nil
	case "false":
		return ParticipantID{Role: RoleFalse, Index: i}, nil
	default:
		return ParticipantID{}, fmt.Errorf("participant tag %q: unknown role %q", tag, role)
	}
}

// MarshalText serializes the identity as its tag.
func (p ParticipantID) MarshalText() ([]byte, error) {
	return []byte(p.Tag()), nil
}

// UnmarshalText parses a tag produced by MarshalText.
func (p *ParticipantID) UnmarshalText(b []byte) error {
	id, err := ParseParticipantID(string(b))
	if err != nil {
		return err
	}
	*p = id
	return nil
}
