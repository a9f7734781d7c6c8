package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/replay"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	"github.com/danielpatrickdp/posture-check/internal/state"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to posecheck.db")
	last := flag.Int("last", 20, "number of most recent evaluations to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	rulesPath := flag.String("rules", "", "re-baseline expectations under this rule config instead of the recorded one")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--last N] [--rules rules.yaml]")
		os.Exit(2)
	}

	if err := run(*dbPath, *last, *outPath, *rulesPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, last int, outPath, rulesPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	evals, err := store.ListEvaluationsWithProvenance(last)
	if err != nil {
		return err
	}
	if len(evals) == 0 {
		return fmt.Errorf("no evaluations found")
	}

	var (
		set     *rules.RuleSet
		cfg     eval.Config
		records []state.EvaluationRecord
		desc    string
	)
	snap, snapErr := replay.LatestSnapshot(evals)
	if rulesPath != "" {
		if set, err = rules.LoadFile(rulesPath); err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		// keep the evaluator options the poses were last recorded with
		cfg = eval.DefaultConfig()
		if snapErr == nil {
			cfg = snap.Config
		}
		records = replay.Rebaseline(evals, set, cfg)
		desc = fmt.Sprintf("Export of %d stored poses re-baselined under %s", len(records), rulesPath)
	} else {
		if snapErr != nil {
			return snapErr
		}
		set, cfg = snap.Set, snap.Config
		records = replay.Pinned(snap, evals)
		desc = fmt.Sprintf("Export of %d stored verdicts under rule set %s", len(records), snap.Hash)
		if skipped := len(evals) - len(records); skipped > 0 {
			fmt.Printf("Skipped %d evaluations without a matching rule and config snapshot\n", skipped)
		}
	}

	return writeFixture(replay.ExportFixture(desc, set, cfg, records), outPath)
}

// #endregion extract

// #region output

func writeFixture(fixture *replay.Fixture, outPath string) error {
	if err := replay.WriteFixture(outPath, fixture); err != nil {
		return err
	}
	fmt.Printf("Wrote fixture to %s (%d cases)\n", outPath, len(fixture.Cases))
	return nil
}

// #endregion output
