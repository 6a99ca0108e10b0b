package scenario_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	multierror "github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"

	"github.com/credra/credra/distribution"
	"github.com/credra/credra/log"
	"github.com/credra/credra/log/testlogger"
	"github.com/credra/credra/scenario"
	"github.com/credra/credra/sim"
)

func writeScenario(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	return log.ToContext(context.Background(), testlogger.New(t))
}

const honestJSON = `{
  "distribution": {"type": "uniform", "low": 0, "high": 10},
  "valuations": [3, 5, 7],
  "alpha": 1
}`

func TestLoadAndRunJSONScenario(t *testing.T) {
	cfg, err := scenario.Load(writeScenario(t, "honest.json", honestJSON))
	require.NoError(t, err)

	rec, err := cfg.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, 5.0, rec.Reserve)
	require.Equal(t, 5.0, rec.Collateral)
	require.Equal(t, "honest:2", rec.Winner)
	require.Equal(t, 7.0, rec.WinningBid)
	require.Equal(t, 5.0, rec.Payment)
	require.Zero(t, rec.TransferredCollateral)
	require.Zero(t, rec.ForfeitedToAuctioneer)
	require.Len(t, rec.ValidBids, 2)
	require.Len(t, rec.Commitments, 3)
}

func TestLoadAndRunTOMLScenario(t *testing.T) {
	body := `
alpha = 1.0
valuations = [3.0, 5.0, 7.0]

[distribution]
type = "uniform"
low = 0.0
high = 10.0

[[false_bids]]
bid = 20.0
reveal = false
`
	cfg, err := scenario.Load(writeScenario(t, "deviating.toml", body))
	require.NoError(t, err)
	require.Len(t, cfg.FalseBids, 1)

	rec, err := cfg.Run(testContext(t))
	require.NoError(t, err)

	// The withheld synthetic bid forfeits its collateral; the honest side
	// of the round is untouched.
	require.Equal(t, "honest:2", rec.Winner)
	require.Equal(t, 5.0, rec.Payment)
	require.Equal(t, 5.0, rec.ForfeitedToAuctioneer)
	require.Len(t, rec.Commitments, 4)
}

func TestLoadReportsEveryProblemAtOnce(t *testing.T) {
	bad := `{
  "distribution": {"type": "triangle"},
  "valuations": [],
  "alpha": -1,
  "commitment_backend": "rot13",
  "collateral_policy": "keep"
}`
	_, err := scenario.Load(writeScenario(t, "bad.json", bad))
	require.Error(t, err)
	require.ErrorIs(t, err, distribution.ErrInvalidParams)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.GreaterOrEqual(t, len(merr.Errors), 4)
}

func TestRunScriptedFalseRevealWins(t *testing.T) {
	cfg := &scenario.Config{
		Distribution: distribution.Config{Type: "uniform", Low: 0, High: 10},
		Valuations:   []float64{3, 5, 7},
		FalseBids:    []sim.FalseBid{{Bid: 20, Reveal: true}},
		Alpha:        1,
	}
	rec, err := cfg.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, "false:0", rec.Winner)
	require.Equal(t, 20.0, rec.WinningBid)
	require.Equal(t, 7.0, rec.Payment)
	require.Len(t, rec.ValidBids, 3)
}

func TestRunTransferPolicyRoutesForfeits(t *testing.T) {
	cfg := &scenario.Config{
		Distribution: distribution.Config{Type: "uniform", Low: 0, High: 10},
		Valuations:   []float64{3, 5, 7},
		FalseBids:    []sim.FalseBid{{Bid: 20, Reveal: false}},
		Alpha:        1,
		Policy:       "transfer_to_winner",
	}
	rec, err := cfg.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, "honest:2", rec.Winner)
	require.Equal(t, 5.0, rec.TransferredCollateral)
	require.Zero(t, rec.ForfeitedToAuctioneer)
}

func TestRecordJSONEncodesPayloadsAsHex(t *testing.T) {
	cfg := &scenario.Config{
		Distribution: distribution.Config{Type: "uniform", Low: 0, High: 10},
		Valuations:   []float64{3, 5, 7},
		Alpha:        1,
		Backend:      "pedersen",
		RngSeed:      42,
	}
	rec, err := cfg.Run(testContext(t))
	require.NoError(t, err)
	require.NotEmpty(t, rec.Commitments[0].Payload)

	var buf bytes.Buffer
	require.NoError(t, rec.WriteJSON(&buf))

	var decoded struct {
		Winner      string `json:"winner"`
		Commitments []struct {
			Payload string `json:"payload"`
		} `json:"commitments"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "honest:2", decoded.Winner)
	require.Len(t, decoded.Commitments, 3)

	raw, err := hex.DecodeString(decoded.Commitments[0].Payload)
	require.NoError(t, err)
	require.Equal(t, rec.Commitments[0].Payload, raw)
}

func TestRunReproducibleWithSeed(t *testing.T) {
	cfg := &scenario.Config{
		Distribution: distribution.Config{Type: "uniform", Low: 0, High: 10},
		Valuations:   []float64{3, 5, 7},
		Alpha:        1,
		RngSeed:      5150,
	}
	first, err := cfg.Run(testContext(t))
	require.NoError(t, err)
	second, err := cfg.Run(testContext(t))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	cfg := &scenario.Config{
		Distribution: distribution.Config{Type: "uniform", Low: 0, High: 10},
		Valuations:   []float64{3, 5, 7},
		Alpha:        1,
	}
	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	_, err := cfg.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
