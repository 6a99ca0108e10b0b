// Package scenario loads declarative round descriptions from JSON or TOML
// files and plays them through the protocol engine. Scenarios carry
// already-realized valuations and scripted synthetic bids, so a file plus a
// seed reproduces a round exactly.
package scenario

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	multierror "github.com/hashicorp/go-multierror"
	json "github.com/nikkolasg/hexjson"

	"github.com/credra/credra/auction"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
	"github.com/credra/credra/log"
	"github.com/credra/credra/protocol"
	"github.com/credra/credra/sim"
	"github.com/credra/credra/transcript"
)

// Config is the on-disk scenario schema.
type Config struct {
	Distribution distribution.Config `json:"distribution" toml:"distribution"`
	Valuations   []float64           `json:"valuations" toml:"valuations"`
	FalseBids    []sim.FalseBid      `json:"false_bids,omitempty" toml:"false_bids,omitempty"`
	Alpha        float64             `json:"alpha" toml:"alpha"`
	RngSeed      uint64              `json:"rng_seed,omitempty" toml:"rng_seed,omitempty"`
	Backend      string              `json:"commitment_backend,omitempty" toml:"commitment_backend,omitempty"`
	Policy       string              `json:"collateral_policy,omitempty" toml:"collateral_policy,omitempty"`
}

// Load reads and validates a scenario file. The extension picks the format:
// .toml decodes as TOML, anything else as JSON.
func Load(path string) (*Config, error) {
	cfg := new(Config)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decoding scenario %q: %w", path, err)
		}
	} else {
		fd, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fd.Close()
		if err := json.NewDecoder(fd).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decoding scenario %q: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the schema shape and reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := distribution.New(c.Distribution); err != nil {
		result = multierror.Append(result, err)
	}
	if len(c.Valuations) == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: at least one valuation is required", distribution.ErrInvalidParams))
	}
	for i, v := range c.Valuations {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			result = multierror.Append(result, fmt.Errorf("%w: valuation %d is %v", distribution.ErrInvalidParams, i, v))
		}
	}
	for i, fb := range c.FalseBids {
		if fb.Bid < 0 || math.IsNaN(fb.Bid) || math.IsInf(fb.Bid, 0) {
			result = multierror.Append(result, fmt.Errorf("%w: false bid %d is %v", distribution.ErrInvalidParams, i, fb.Bid))
		}
	}
	if c.Alpha <= 0 || math.IsNaN(c.Alpha) {
		result = multierror.Append(result, fmt.Errorf("%w: alpha must be positive, got %v", distribution.ErrInvalidParams, c.Alpha))
	}
	if c.Backend != "" {
		if _, err := commitment.FromName(c.Backend); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if _, err := auction.ParseCollateralPolicy(c.Policy); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Schedule derives slot deadlines wide enough for one action per slot plus
// one slack slot per phase.
func Schedule(valuations, falseBids int) transcript.PhaseTimings {
	actions := uint64(valuations + falseBids)
	return transcript.PhaseTimings{
		CommitDeadline: actions + 1,
		RevealDeadline: 2*actions + 2,
	}
}

// Record is the output of one resolved scenario round. Winner holds the
// participant tag, or "none" when no bid cleared the reserve.
type Record struct {
	Reserve               float64            `json:"reserve"`
	Collateral            float64            `json:"collateral"`
	Winner                string             `json:"winner"`
	WinningBid            float64            `json:"winning_bid"`
	Payment               float64            `json:"payment"`
	TransferredCollateral float64            `json:"transferred_collateral"`
	ForfeitedToAuctioneer float64            `json:"forfeited_to_auctioneer"`
	ValidBids             []auction.ValidBid `json:"valid_bids"`
	Commitments           []CommitmentRecord `json:"commitments"`
}

// CommitmentRecord pairs a participant with the commitment it placed, in
// commit order. Payload serializes as hex.
type CommitmentRecord struct {
	Participant auction.ParticipantID `json:"participant"`
	Index       uint64                `json:"index"`
	Payload     []byte                `json:"payload"`
}

// WriteJSON emits the record with commitment payloads hex encoded.
func (r *Record) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}

// Run plays the scenario through a session: one commit per slot in listed
// order, synthetic bids after the real ones, reveals from the commit
// deadline on, scripted reveals honored. The logger rides on the context.
func (c *Config) Run(ctx context.Context) (*Record, error) {
	rec, _, err := c.RunWithTranscript(ctx)
	return rec, err
}

// RunWithTranscript runs the scenario and also returns the sealed transcript,
// for callers that want to dump or re-audit the round.
func (c *Config) RunWithTranscript(ctx context.Context) (*Record, *transcript.Transcript, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	l := log.FromContextOrDefault(ctx)
	dist, err := distribution.New(c.Distribution)
	if err != nil {
		return nil, nil, err
	}
	scheme := commitment.Scheme(nil)
	if c.Backend != "" {
		if scheme, err = commitment.FromName(c.Backend); err != nil {
			return nil, nil, err
		}
	}
	policy, err := auction.ParseCollateralPolicy(c.Policy)
	if err != nil {
		return nil, nil, err
	}

	schedule := Schedule(len(c.Valuations), len(c.FalseBids))
	s, err := protocol.NewSession(protocol.Config{
		Auction: auction.Config{
			Distribution: dist,
			Buyers:       len(c.Valuations),
			Alpha:        c.Alpha,
			Policy:       policy,
		},
		Scheme:         scheme,
		CommitDeadline: schedule.CommitDeadline,
		RevealDeadline: schedule.RevealDeadline,
		Logger:         l,
	})
	if err != nil {
		return nil, nil, err
	}

	stream := commitment.Stream(commitment.SeedFromUint64(c.RngSeed))
	now := uint64(0)
	for i, v := range c.Valuations {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := s.AdvanceTo(now); err != nil {
			return nil, nil, err
		}
		if err := s.Commit(auction.NewHonest(i), v, stream); err != nil {
			return nil, nil, err
		}
		now++
	}
	for j, fb := range c.FalseBids {
		if err := s.AdvanceTo(now); err != nil {
			return nil, nil, err
		}
		if err := s.CommitFalse(j, fb.Bid, stream); err != nil {
			return nil, nil, err
		}
		now++
	}
	if err := s.EndCommitPhase(); err != nil {
		return nil, nil, err
	}

	now = schedule.CommitDeadline
	for i := range c.Valuations {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if err := s.AdvanceTo(now); err != nil {
			return nil, nil, err
		}
		if _, err := s.Reveal(auction.NewHonest(i)); err != nil {
			return nil, nil, err
		}
		now++
	}
	for j, fb := range c.FalseBids {
		if !fb.Reveal {
			continue
		}
		if err := s.AdvanceTo(now); err != nil {
			return nil, nil, err
		}
		if _, err := s.Reveal(auction.NewFalseBidder(j)); err != nil {
			return nil, nil, err
		}
		now++
	}

	out, err := s.Resolve()
	if err != nil {
		return nil, nil, err
	}

	rec := &Record{
		Reserve:               out.Reserve,
		Collateral:            out.Collateral,
		Winner:                out.WinnerTag(),
		WinningBid:            out.WinningBid,
		Payment:               out.Payment,
		TransferredCollateral: out.TransferredCollateral,
		ForfeitedToAuctioneer: out.ForfeitedToAuctioneer,
		ValidBids:             out.ValidBids,
	}
	for _, ev := range s.Transcript().Commitments() {
		rec.Commitments = append(rec.Commitments, CommitmentRecord{
			Participant: ev.Participant,
			Index:       ev.Index,
			Payload:     append([]byte(nil), ev.Commitment.Data...),
		})
	}
	l.Infow("scenario resolved", "winner", rec.Winner, "payment", rec.Payment)
	return rec, s.Transcript(), nil
}
