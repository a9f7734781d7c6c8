package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/logging"
	"github.com/danielpatrickdp/posture-check/internal/state"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to posecheck.db")
	last := flag.Int("last", 20, "show N most recent evaluations")
	id := flag.String("id", "", "show single evaluation detail")
	stats := flag.Bool("stats", false, "show verdict and rule failure counts")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/posecheck.db [--last N] [--id eval_id] [--stats] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *id != "":
		err = runDetailMode(store, *id, *jsonOut)
	case *stats:
		err = runStatsMode(store, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	EvalID     string   `json:"eval_id"`
	Source     string   `json:"source"`
	Frame      int      `json:"frame"`
	Person     int      `json:"person"`
	Status     string   `json:"status"`
	Violations []string `json:"violations,omitempty"`
	Trigger    string   `json:"trigger,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

func runListMode(store *state.Store, last int, jsonOut bool) error {
	evals, err := store.ListEvaluationsWithProvenance(last)
	if err != nil {
		return err
	}
	if len(evals) == 0 {
		fmt.Fprintln(os.Stderr, "no evaluations found")
		return nil
	}

	// Build rows (store returns DESC, reverse for chronological)
	rows := make([]listRow, len(evals))
	for i, ep := range evals {
		rows[len(evals)-1-i] = listRow{
			EvalID:     ep.EvalID,
			Source:     ep.Source,
			Frame:      ep.FrameIndex,
			Person:     ep.PersonIndex,
			Status:     string(ep.Status),
			Violations: ep.Violations,
			Trigger:    ep.TriggerType,
			CreatedAt:  ep.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-10s  %-20s  %5s  %6s  %-10s  %-9s  %s\n",
		"Eval", "Source", "Frame", "Person", "Status", "Trigger", "Time")
	fmt.Printf("%-10s+-%-20s+-%5s+-%6s+-%-10s+-%-9s+-%s\n",
		"----------", "--------------------", "-----", "------", "----------", "---------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-10s  %-20s  %5d  %6d  %-10s  %-9s  %s\n",
			shortID(r.EvalID), trimLeft(r.Source, 20), r.Frame, r.Person, shortStatus(r.Status), dash(r.Trigger), r.CreatedAt)
		for _, v := range r.Violations {
			fmt.Printf("%-10s    - %s\n", "", v)
		}
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	EvalID      string            `json:"eval_id"`
	Source      string            `json:"source"`
	Frame       int               `json:"frame"`
	Person      int               `json:"person"`
	CreatedAt   string            `json:"created_at"`
	Label       string            `json:"label"`
	Violations  []string          `json:"violations,omitempty"`
	Metrics     []eval.RuleMetric `json:"metrics,omitempty"`
	Keypoints   int               `json:"keypoints"`
	Trigger     string            `json:"trigger,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	RuleSetHash string            `json:"rule_set_hash,omitempty"`
	OriginMiss  bool              `json:"treat_origin_as_missing,omitempty"`
}

func runDetailMode(store *state.Store, id string, jsonOut bool) error {
	ep, err := store.GetEvaluationWithProvenance(id)
	if err != nil {
		return err
	}

	out := detailOutput{
		EvalID:     ep.EvalID,
		Source:     ep.Source,
		Frame:      ep.FrameIndex,
		Person:     ep.PersonIndex,
		CreatedAt:  ep.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Label:      ep.Verdict().String(),
		Violations: ep.Violations,
		Metrics:    ep.Metrics,
		Keypoints:  len(ep.Keypoints),
		Trigger:    ep.TriggerType,
		Reason:     ep.Reason,
	}
	if vr := parseVerdictRecord(ep.SignalsJSON); vr != nil {
		if h, err := logging.RuleSetHash(vr.Rules); err == nil {
			out.RuleSetHash = h
		}
		out.OriginMiss = vr.TreatOriginAsMissing
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Eval:      %s\n", out.EvalID)
	fmt.Printf("Source:    %s (frame %d, person %d)\n", out.Source, out.Frame, out.Person)
	fmt.Printf("Created:   %s\n", out.CreatedAt)
	fmt.Printf("Verdict:   %s\n", out.Label)
	fmt.Printf("Keypoints: %d\n", out.Keypoints)
	fmt.Printf("Trigger:   %s\n", dash(out.Trigger))
	if out.RuleSetHash != "" {
		fmt.Printf("Rule set:  %s\n", out.RuleSetHash)
	}
	if out.OriginMiss {
		fmt.Printf("Options:   keypoints at (0,0) treated as missing\n")
	}

	if len(out.Metrics) > 0 {
		fmt.Printf("\nRule metrics:\n")
		for _, m := range out.Metrics {
			mark := "ok"
			if !m.Pass {
				mark = "FAIL"
			}
			fmt.Printf("  %-24s %10.2f %-8s %s\n", m.Name, m.Value, m.Unit, mark)
		}
	}
	return nil
}

// #endregion detail-mode

// #region stats-mode

type statsOutput struct {
	Statuses     map[string]int `json:"statuses"`
	RuleFailures map[string]int `json:"rule_failures"`
}

func runStatsMode(store *state.Store, jsonOut bool) error {
	statuses, err := store.StatusCounts()
	if err != nil {
		return err
	}
	failures, err := store.RuleFailureCounts()
	if err != nil {
		return err
	}

	out := statsOutput{Statuses: make(map[string]int, len(statuses)), RuleFailures: failures}
	total := 0
	for s, n := range statuses {
		out.Statuses[string(s)] = n
		total += n
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Evaluations: %d\n", total)
	for _, s := range []eval.Status{eval.StatusCorrect, eval.StatusIncorrect, eval.StatusIncomplete} {
		fmt.Printf("  %-34s %d\n", s, statuses[s])
	}

	if len(failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if failures[names[i]] != failures[names[j]] {
			return failures[names[i]] > failures[names[j]]
		}
		return names[i] < names[j]
	})
	fmt.Printf("\nRule failures:\n")
	for _, name := range names {
		fmt.Printf("  %-24s %d\n", name, failures[name])
	}
	return nil
}

// #endregion stats-mode

// #region output

func parseVerdictRecord(signalsJSON string) *logging.VerdictRecord {
	if signalsJSON == "" {
		return nil
	}
	var vr logging.VerdictRecord
	if err := json.Unmarshal([]byte(signalsJSON), &vr); err == nil && vr.Status != "" {
		return &vr
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortStatus(s string) string {
	if s == string(eval.StatusIncomplete) {
		return "Incomplete"
	}
	return s
}

// trimLeft keeps the last n characters of s, which for paths is the file name end.
func trimLeft(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// #endregion output
