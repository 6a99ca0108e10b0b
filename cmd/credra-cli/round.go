package credra

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	json "github.com/nikkolasg/hexjson"
	"github.com/urfave/cli/v2"

	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
	"github.com/credra/credra/entropy"
	"github.com/credra/credra/fs"
	"github.com/credra/credra/log"
	"github.com/credra/credra/scenario"
	"github.com/credra/credra/sim"
	"github.com/credra/credra/transcript"
)

func runCmd(c *cli.Context, l log.Logger) error {
	cfg, err := runConfig(c, l)
	if err != nil {
		return err
	}

	ctx := log.ToContext(c.Context, l)
	rec, tr, err := cfg.RunWithTranscript(ctx)
	if err != nil {
		return fmt.Errorf("playing the round: %w", err)
	}

	if path := c.String(transcriptFlag.Name); path != "" {
		if err := writeTranscript(path, tr); err != nil {
			return err
		}
		l.Infow("transcript saved", "path", path)
	}
	return rec.WriteJSON(c.App.Writer)
}

// runConfig loads the flagged scenario file, or assembles the demo round
// from the individual flags when no file is given.
func runConfig(c *cli.Context, l log.Logger) (*scenario.Config, error) {
	if path := c.String(scenarioFlag.Name); path != "" {
		return scenario.Load(path)
	}

	vals, err := parseValuations(c.String(valuationsFlag.Name))
	if err != nil {
		return nil, err
	}
	cfg := &scenario.Config{
		Distribution: distConfig(c),
		Valuations:   vals,
		Alpha:        c.Float64(alphaFlag.Name),
		RngSeed:      c.Uint64(seedFlag.Name),
		Backend:      c.String(backendFlag.Name),
		Policy:       c.String(policyFlag.Name),
	}
	if !c.IsSet(seedFlag.Name) {
		seed, err := roundSeed(c)
		if err != nil {
			return nil, err
		}
		cfg.RngSeed = seed
		l.Infow("drew a round seed", "seed", seed)
	}
	if bid := c.Float64(falseBidFlag.Name); bid > 0 {
		cfg.FalseBids = []sim.FalseBid{{Bid: bid, Reveal: c.Bool(revealFalseFlag.Name)}}
	}
	if cfg.Alpha == 0 {
		dist, err := distribution.New(cfg.Distribution)
		if err != nil {
			return nil, err
		}
		cfg.Alpha = resolveAlpha(c, dist)
	}
	return cfg, nil
}

// roundSeed draws a seed for a run that did not pin one. The drawn seed is
// logged so the round can still be replayed.
func roundSeed(c *cli.Context) (uint64, error) {
	var source io.Reader
	if c.IsSet(sourceFlag.Name) {
		path := c.String(sourceFlag.Name)
		if _, err := os.Lstat(path); err != nil {
			return 0, fmt.Errorf("cannot use given entropy source: %w", err)
		}
		source = entropy.NewScriptReader(path)
	}
	seed, err := entropy.Seed(source)
	if err != nil {
		return 0, fmt.Errorf("drawing a round seed: %w", err)
	}
	return seed, nil
}

func writeTranscript(path string, tr *transcript.Transcript) error {
	fd, err := fs.CreateSecureFile(path)
	if err != nil {
		return fmt.Errorf("creating transcript file: %w", err)
	}
	defer fd.Close()
	if err := tr.ToJSON(fd); err != nil {
		return fmt.Errorf("writing transcript to %s: %w", path, err)
	}
	return nil
}

func auditCmd(c *cli.Context, l log.Logger) error {
	if !c.Args().Present() {
		return fmt.Errorf("credra: audit expects the path of a transcript dump")
	}
	path := c.Args().First()

	if here, err := fs.Exists(path); err != nil || !here {
		return fmt.Errorf("credra: no transcript at %s", path)
	}
	fd, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening transcript: %w", err)
	}
	defer fd.Close()

	tr, err := transcript.FromJSON(fd)
	if err != nil {
		return err
	}

	scheme, err := auditScheme(c, tr)
	if err != nil {
		return err
	}
	l.Debugw("auditing transcript", "path", path, "backend", scheme.Name())

	if err := transcript.Audit(tr, scheme); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				fmt.Fprintf(c.App.Writer, "credra: %v\n", e)
			}
		}
		return fmt.Errorf("transcript failed its audit: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "credra: transcript verifies under %s\n", scheme.Name())
	return nil
}

// auditScheme picks the backend to re-verify openings under: the --backend
// flag when given, otherwise the one the dumped commitments name.
func auditScheme(c *cli.Context, tr *transcript.Transcript) (commitment.Scheme, error) {
	if name := c.String(backendFlag.Name); name != "" {
		return commitment.FromName(name)
	}

	names := make(map[string]bool)
	for _, ce := range tr.Commitments() {
		names[ce.Commitment.SchemeID] = true
	}
	if len(names) > 1 {
		return nil, fmt.Errorf("credra: transcript mixes commitment backends, pick one with --%s", backendFlag.Name)
	}
	for name := range names {
		return commitment.FromName(name)
	}
	return commitment.NewShaBaseline(), nil
}

func schemesCmd(c *cli.Context) error {
	fmt.Fprintf(c.App.Writer, "Credra supports the following list of commitment backends: \n")

	for i, id := range commitment.ListSchemes() {
		fmt.Fprintf(c.App.Writer, "%d) %s \n", i, id)
	}

	fmt.Fprintf(c.App.Writer, "\nChoose one of them and set it on --%s flag \n", backendFlag.Name)
	return nil
}

func provenanceCmd(c *cli.Context) error {
	report := commitment.Provenance()
	return json.NewEncoder(c.App.Writer).Encode(&report)
}
