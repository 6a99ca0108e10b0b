package credra

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	json "github.com/nikkolasg/hexjson"
	"github.com/urfave/cli/v2"

	"github.com/credra/credra/centralized"
	"github.com/credra/credra/commitment"
	"github.com/credra/credra/distribution"
	"github.com/credra/credra/log"
	"github.com/credra/credra/sim"
	"github.com/credra/credra/transcript"
)

const refreshRate = 1000 * time.Millisecond

func simulateDeviationCmd(c *cli.Context, l log.Logger) error {
	dist, alpha, err := studyDistribution(c)
	if err != nil {
		return err
	}
	model, err := studyModel(c)
	if err != nil {
		return err
	}
	var scheme commitment.Scheme = commitment.NewShaBaseline()
	if name := c.String(backendFlag.Name); name != "" {
		if scheme, err = commitment.FromName(name); err != nil {
			return err
		}
	}

	buyers := c.Int(buyersFlag.Name)
	trials := c.Int(trialsFlag.Name)
	l.Debugw("deviation study", "dist", dist.String(), "alpha", alpha,
		"buyers", buyers, "trials", trials, "backend", scheme.Name())

	s := spinner.New(spinner.CharSets[9], refreshRate)
	s.Suffix = fmt.Sprintf("  playing %d rounds with %d buyers...", trials, buyers)
	s.FinalMSG = "\nStudy stopped\n"
	s.Start()
	res, err := sim.DeviationWithScheme(dist, alpha, buyers, trials, model,
		c.Uint64(seedFlag.Name), scheme)
	s.Stop()
	if err != nil {
		return fmt.Errorf("deviation study: %w", err)
	}

	return json.NewEncoder(c.App.Writer).Encode(res)
}

func simulateBoundCmd(c *cli.Context, l log.Logger) error {
	dist, alpha, err := studyDistribution(c)
	if err != nil {
		return err
	}
	model, err := studyModel(c)
	if err != nil {
		return err
	}

	buyers := c.Int(buyersFlag.Name)
	trials := c.Int(trialsFlag.Name)
	l.Debugw("bound check", "dist", dist.String(), "alpha", alpha,
		"buyers", buyers, "trials", trials)

	s := spinner.New(spinner.CharSets[9], refreshRate)
	s.Suffix = fmt.Sprintf("  playing %d rounds with %d buyers...", trials, buyers)
	s.FinalMSG = "\nStudy stopped\n"
	s.Start()
	stats, err := sim.SafeDeviationBound(dist, alpha, buyers, trials, model,
		c.Uint64(seedFlag.Name))
	s.Stop()
	if err != nil {
		return fmt.Errorf("bound check: %w", err)
	}

	if err := json.NewEncoder(c.App.Writer).Encode(stats); err != nil {
		return err
	}
	if !stats.Satisfied {
		return fmt.Errorf("deviation beats honest play by %v", stats.MaxViolation)
	}
	return nil
}

func simulateTimedCmd(c *cli.Context, l log.Logger) error {
	dist, alpha, err := studyDistribution(c)
	if err != nil {
		return err
	}
	model, err := studyModel(c)
	if err != nil {
		return err
	}
	schedule := transcript.PhaseTimings{
		CommitDeadline: c.Uint64(commitWindowFlag.Name),
		RevealDeadline: c.Uint64(revealWindowFlag.Name),
	}
	if schedule.RevealDeadline <= schedule.CommitDeadline {
		return fmt.Errorf("--%s must come after --%s", revealWindowFlag.Name, commitWindowFlag.Name)
	}

	buyers := c.Int(buyersFlag.Name)
	trials := c.Int(trialsFlag.Name)

	s := spinner.New(spinner.CharSets[9], refreshRate)
	s.Suffix = fmt.Sprintf("  playing %d sessions against the deadlines...", trials)
	s.FinalMSG = "\nStudy stopped\n"
	s.Start()
	report, err := sim.TimedProtocol(dist, alpha, buyers, trials, model, schedule,
		c.Uint64(seedFlag.Name), l)
	s.Stop()
	if err != nil {
		return fmt.Errorf("timed study: %w", err)
	}

	return json.NewEncoder(c.App.Writer).Encode(report)
}

func attackCmd(c *cli.Context, l log.Logger) error {
	dist, err := distribution.NewExponential(c.Float64(rateFlag.Name))
	if err != nil {
		return err
	}
	alpha := resolveAlpha(c, dist)
	buyerA := c.Float64(buyerAFlag.Name)
	buyerB := c.Float64(buyerBFlag.Name)
	threshold := c.Float64(thresholdFlag.Name)

	report, err := centralized.AdaptiveReserveDeviation(dist, alpha, buyerA, buyerB, threshold, l)
	if err != nil {
		return fmt.Errorf("adaptive reserve deviation: %w", err)
	}

	if c.Bool(scriptedFlag.Name) {
		scripted, ch, err := centralized.ScriptedAdaptiveReserveRun(dist, alpha, buyerA, buyerB, threshold, l)
		if err != nil {
			return fmt.Errorf("scripted adaptive run: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "credra: scripted run revenue %v against closed form %v\n",
			scripted.DeviationRevenue, report.DeviationRevenue)
		for _, p := range ch.Recipients() {
			fmt.Fprintf(c.App.Writer, "credra: %s saw %d messages, %d withheld\n",
				p, len(ch.PerRecipientView(p)), len(ch.OmittedFor(p)))
		}
	}

	if err := json.NewEncoder(c.App.Writer).Encode(report); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "credra: revenue gain %v\n", report.Gain())
	return nil
}
