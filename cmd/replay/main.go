package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/posture-check/internal/replay"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	"github.com/danielpatrickdp/posture-check/internal/state"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to posecheck.db (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	rulesPath := flag.String("rules", "", "rule config to replay stored evaluations against (DB mode, built-in rules when empty)")
	last := flag.Int("last", 100, "number of most recent evaluations to replay (DB mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/posecheck.db [--rules rules.yaml] [--last N]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *rulesPath, *last)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode re-evaluates stored keypoints with the given rules, under the
// evaluator options each was recorded with, and compares against the
// verdicts recorded at the time.
func runDBMode(dbPath, rulesPath string, last int) int {
	set := rules.DefaultRuleSet()
	if rulesPath != "" {
		var err error
		if set, err = rules.LoadFile(rulesPath); err != nil {
			fmt.Fprintf(os.Stderr, "load rules: %v\n", err)
			return 2
		}
	}

	store, err := state.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	evals, err := store.ListEvaluationsWithProvenance(last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list evaluations: %v\n", err)
		return 2
	}
	if len(evals) == 0 {
		fmt.Fprintln(os.Stderr, "no evaluations found")
		return 2
	}

	return printComparison(replay.ReplayStored(set, evals))
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	evaluator, err := f.Evaluator()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}
	cases, err := f.ToCases()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}
	return printComparison(replay.Replay(evaluator, cases))
}

// #endregion fixture-mode

// #region output

// printComparison outputs a comparison table and returns the exit code.
func printComparison(results []replay.ReplayResult) int {
	fmt.Printf("%-12s| %-34s| %-34s| %s\n", "Case", "Expected", "Replayed", "Match")
	fmt.Printf("%-12s+%-35s+%-35s+%s\n",
		"------------", "-----------------------------------", "-----------------------------------", "------")

	for _, r := range results {
		match := "OK"
		if !r.Match {
			match = "DIFF"
		}
		fmt.Printf("%-12s| %-34s| %-34s| %s\n", shortID(r.CaseID), r.Expected, r.Verdict.Status, match)
		if !r.Match {
			fmt.Printf("%-12s  %s\n", "", r.Reason)
		}
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d total, %d match, %d diverge (%d correct, %d incorrect, %d incomplete)\n",
		s.TotalCases, s.Matches, s.Divergences, s.Correct, s.Incorrect, s.Incomplete)

	if s.Divergences > 0 {
		return 1
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// #endregion output
