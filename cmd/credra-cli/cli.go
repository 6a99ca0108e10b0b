// Package credra implements the command line interface of the deferred
// revelation auction engine: it plays scripted rounds, runs deviation
// studies against sampled valuations and re-audits dumped transcripts.
package credra

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/credra/credra/distribution"
	"github.com/credra/credra/log"
	"github.com/credra/credra/sim"
)

// Automatically set through -ldflags
// Example: go install -ldflags "-X main.version=`git describe --tags`
//   -X main.buildDate=`date -u +%d/%m/%Y@%H:%M:%S` -X main.gitCommit=`git rev-parse HEAD`"
var (
	version   = "master"
	gitCommit = "none"
	buildDate = "unknown"
)

func banner(w io.Writer) {
	fmt.Fprintf(w, "credra %v (date %v, commit %v)\n", version, buildDate, gitCommit)
}

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "If set, verbosity is at the debug level",
}

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Set the log output as json format",
}

var scenarioFlag = &cli.StringFlag{
	Name: "scenario",
	Usage: "Path to a scenario file in JSON or TOML format. " +
		"When omitted, a demo round is played from the flags below.",
}

var transcriptFlag = &cli.StringFlag{
	Name:  "transcript",
	Usage: "Save the round transcript to the given file for later re-audit.",
}

var distFlag = &cli.StringFlag{
	Name:  "dist",
	Value: distribution.TypeUniform,
	Usage: "Valuation distribution family, one of " + strings.Join(distribution.ListTypes(), ", ") + ".",
}

var rateFlag = &cli.Float64Flag{
	Name:  "rate",
	Value: 1,
	Usage: "Rate of the exponential family.",
}

var lowFlag = &cli.Float64Flag{
	Name:  "low",
	Value: 0,
	Usage: "Lower support bound of the uniform family.",
}

var highFlag = &cli.Float64Flag{
	Name:  "high",
	Value: 20,
	Usage: "Upper support bound of the uniform family.",
}

var scaleFlag = &cli.Float64Flag{
	Name:  "scale",
	Value: 1,
	Usage: "Scale of the pareto and equal_revenue families.",
}

var shapeFlag = &cli.Float64Flag{
	Name:  "shape",
	Value: 2,
	Usage: "Shape of the pareto family.",
}

var muFlag = &cli.Float64Flag{
	Name:  "mu",
	Value: 0,
	Usage: "Log-mean of the lognormal family.",
}

var sigmaFlag = &cli.Float64Flag{
	Name:  "sigma",
	Value: 1,
	Usage: "Log standard deviation of the lognormal family.",
}

var alphaFlag = &cli.Float64Flag{
	Name: "alpha",
	Usage: "Strong regularity parameter used to size the collateral. " +
		"Zero derives it from the distribution, falling back to 1.",
}

var valuationsFlag = &cli.StringFlag{
	Name:  "valuations",
	Value: "15,11,8",
	Usage: "Comma-separated buyer valuations of the demo round.",
}

var falseBidFlag = &cli.Float64Flag{
	Name:  "false-bid",
	Value: 30,
	Usage: "Value of the auctioneer's synthetic bid. Zero plays the round without one.",
}

var revealFalseFlag = &cli.BoolFlag{
	Name:  "reveal-false",
	Usage: "Reveal the synthetic bid in the reveal phase instead of withholding it.",
}

var revealThresholdFlag = &cli.Float64Flag{
	Name:  "reveal-threshold",
	Usage: "Reveal the synthetic bid only when the top real bid reaches this value.",
}

var buyersFlag = &cli.IntFlag{
	Name:  "buyers",
	Value: 3,
	Usage: "Number of honest buyers per sampled round.",
}

var trialsFlag = &cli.IntFlag{
	Name:  "trials",
	Value: 1000,
	Usage: "Number of Monte-Carlo rounds to play.",
}

var seedFlag = &cli.Uint64Flag{
	Name:  "seed",
	Value: 1,
	Usage: "Seed of the deterministic randomness stream. " +
		"A run that leaves it unset draws one from the entropy source.",
}

var sourceFlag = &cli.StringFlag{
	Name:  "source",
	Usage: "Source flag allows to provide an executable which output is used as entropy for unseeded runs.",
}

var backendFlag = &cli.StringFlag{
	Name: "backend",
	Usage: "Commitment backend to bind bids under. " +
		"See the schemes command for the available ones.",
}

var policyFlag = &cli.StringFlag{
	Name:  "policy",
	Usage: "Collateral policy, forfeit_to_auctioneer or transfer_to_winner.",
}

var commitWindowFlag = &cli.Uint64Flag{
	Name:  "commit-deadline",
	Value: 8,
	Usage: "Tick at which the commit phase closes.",
}

var revealWindowFlag = &cli.Uint64Flag{
	Name:  "reveal-deadline",
	Value: 16,
	Usage: "Tick at which the reveal phase closes.",
}

var buyerAFlag = &cli.Float64Flag{
	Name:  "buyer-a",
	Value: 150,
	Usage: "Valuation of the first buyer, whose early reveal the auctioneer inspects.",
}

var buyerBFlag = &cli.Float64Flag{
	Name:  "buyer-b",
	Value: 400,
	Usage: "Valuation of the second buyer, kept in the dark about the commit phase ending.",
}

var thresholdFlag = &cli.Float64Flag{
	Name:  "threshold",
	Value: 120,
	Usage: "First-buyer value at which the auctioneer injects its synthetic bid.",
}

var scriptedFlag = &cli.BoolFlag{
	Name:  "scripted",
	Usage: "Also play the deviation through a scripted session and compare the revenues.",
}

var appCommands = []*cli.Command{
	{
		Name:  "run",
		Usage: "Play one deferred-revelation round and print its resolution record.",
		Flags: toArray(scenarioFlag, transcriptFlag, distFlag, rateFlag, lowFlag, highFlag,
			scaleFlag, shapeFlag, muFlag, sigmaFlag, valuationsFlag, falseBidFlag,
			revealFalseFlag, alphaFlag, seedFlag, sourceFlag, backendFlag, policyFlag,
			verboseFlag, jsonFlag),
		Action: func(c *cli.Context) error {
			l := log.New(nil, logLevel(c), logJSON(c)).Named("runCmd")
			return runCmd(c, l)
		},
	},
	{
		Name:  "simulate",
		Usage: "Monte-Carlo studies of auctioneer deviations over sampled valuations.",
		Subcommands: []*cli.Command{
			{
				Name:  "deviation",
				Usage: "Compare honest and deviating auctioneer revenue.",
				Flags: toArray(distFlag, rateFlag, lowFlag, highFlag, scaleFlag,
					shapeFlag, muFlag, sigmaFlag, alphaFlag, buyersFlag, trialsFlag,
					falseBidFlag, revealFalseFlag, revealThresholdFlag, seedFlag,
					backendFlag, verboseFlag, jsonFlag),
				Action: func(c *cli.Context) error {
					l := log.New(nil, logLevel(c), logJSON(c)).Named("simDeviation")
					return simulateDeviationCmd(c, l)
				},
			},
			{
				Name:  "bound",
				Usage: "Check that the deviation never beats honest play, within tolerance.",
				Flags: toArray(distFlag, rateFlag, lowFlag, highFlag, scaleFlag,
					shapeFlag, muFlag, sigmaFlag, alphaFlag, buyersFlag, trialsFlag,
					falseBidFlag, revealFalseFlag, revealThresholdFlag, seedFlag,
					verboseFlag, jsonFlag),
				Action: func(c *cli.Context) error {
					l := log.New(nil, logLevel(c), logJSON(c)).Named("simBound")
					return simulateBoundCmd(c, l)
				},
			},
			{
				Name:  "timed",
				Usage: "Play full sessions against phase deadlines and report failures.",
				Flags: toArray(distFlag, rateFlag, lowFlag, highFlag, scaleFlag,
					shapeFlag, muFlag, sigmaFlag, alphaFlag, buyersFlag, trialsFlag,
					falseBidFlag, revealFalseFlag, revealThresholdFlag, seedFlag,
					commitWindowFlag, revealWindowFlag, verboseFlag, jsonFlag),
				Action: func(c *cli.Context) error {
					l := log.New(nil, logLevel(c), logJSON(c)).Named("simTimed")
					return simulateTimedCmd(c, l)
				},
			},
		},
	},
	{
		Name:  "attack",
		Usage: "Replay the adaptive reserve deviation and report the revenue gain.",
		Flags: toArray(rateFlag, alphaFlag, buyerAFlag, buyerBFlag, thresholdFlag,
			scriptedFlag, verboseFlag, jsonFlag),
		Action: func(c *cli.Context) error {
			l := log.New(nil, logLevel(c), logJSON(c)).Named("attackCmd")
			return attackCmd(c, l)
		},
	},
	{
		Name:      "audit",
		Usage:     "Re-check a dumped transcript the way an outside observer would.",
		ArgsUsage: "<transcript.json> is a file produced by run --transcript",
		Flags:     toArray(backendFlag, verboseFlag, jsonFlag),
		Action: func(c *cli.Context) error {
			l := log.New(nil, logLevel(c), logJSON(c)).Named("auditCmd")
			return auditCmd(c, l)
		},
	},
	{
		Name:   "schemes",
		Usage:  "List the available commitment backends.",
		Action: schemesCmd,
	},
	{
		Name:   "provenance",
		Usage:  "Report the crypto modules the commitment backends were built from.",
		Action: provenanceCmd,
	},
}

// CLI runs the credra app
func CLI() *cli.App {
	app := cli.NewApp()
	app.Name = "credra"
	cli.VersionPrinter = func(c *cli.Context) {
		banner(c.App.Writer)
	}

	app.ExitErrHandler = func(context *cli.Context, err error) {
		// override to prevent default behavior of calling OS.exit(1),
		// when tests expect to be able to run multiple commands.
	}
	app.Version = version
	app.Usage = "deferred-revelation auction engine"
	app.Commands = appCommands
	app.Flags = toArray(verboseFlag, jsonFlag)
	return app
}

func logLevel(c *cli.Context) int {
	if c.Bool(verboseFlag.Name) {
		return log.DebugLevel
	}

	return log.ErrorLevel
}

func logJSON(c *cli.Context) bool {
	return c.Bool(jsonFlag.Name)
}

func toArray(flags ...cli.Flag) []cli.Flag {
	return flags
}

func parseValuations(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing valuation %q: %w", p, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func distConfig(c *cli.Context) distribution.Config {
	return distribution.Config{
		Type:  c.String(distFlag.Name),
		Rate:  c.Float64(rateFlag.Name),
		Low:   c.Float64(lowFlag.Name),
		High:  c.Float64(highFlag.Name),
		Scale: c.Float64(scaleFlag.Name),
		Shape: c.Float64(shapeFlag.Name),
		Mu:    c.Float64(muFlag.Name),
		Sigma: c.Float64(sigmaFlag.Name),
	}
}

// studyDistribution builds the flagged distribution and resolves alpha the
// demo way: take the flag when set, otherwise the family's own strong
// regularity bound, otherwise 1.
func studyDistribution(c *cli.Context) (distribution.Distribution, float64, error) {
	dist, err := distribution.New(distConfig(c))
	if err != nil {
		return nil, 0, err
	}
	return dist, resolveAlpha(c, dist), nil
}

func resolveAlpha(c *cli.Context, dist distribution.Distribution) float64 {
	if alpha := c.Float64(alphaFlag.Name); alpha > 0 {
		return alpha
	}
	if alpha, ok := dist.StrongRegularityAlpha(); ok {
		return alpha
	}
	return 1
}

// studyModel maps the false-bid flags onto a deviation model. The threshold
// flag wins over the plain reveal toggle when both are given.
func studyModel(c *cli.Context) (sim.DeviationModel, error) {
	bid := c.Float64(falseBidFlag.Name)
	if bid <= 0 {
		return nil, fmt.Errorf("a positive --%s is required for a deviation study", falseBidFlag.Name)
	}
	if c.IsSet(revealThresholdFlag.Name) {
		return sim.ThresholdReveal{Bid: bid, RevealIfTopAtLeast: c.Float64(revealThresholdFlag.Name)}, nil
	}
	return sim.Fixed{Bid: bid, Reveal: c.Bool(revealFalseFlag.Name)}, nil
}
