package replay

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/geometry"
)

// #region types
// Case is a single recorded pose for replay.
type Case struct {
	CaseID             string
	Keypoints          geometry.Keypoints
	ExpectedStatus     eval.Status
	ExpectedViolations []string // nil skips the violation comparison
}

// ReplayResult captures the outcome of replaying one case.
type ReplayResult struct {
	CaseID   string
	Expected eval.Status
	Verdict  eval.Verdict
	Match    bool
	Reason   string // empty when Match
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalCases  int
	Matches     int
	Divergences int
	Correct     int
	Incorrect   int
	Incomplete  int
}

// #endregion types

// #region replay
// Replay evaluates every case and compares the verdict with the expectation.
// Operates entirely in-memory.
func Replay(evaluator *eval.Evaluator, cases []Case) []ReplayResult {
	results := make([]ReplayResult, 0, len(cases))
	for _, c := range cases {
		v := evaluator.Evaluate(c.Keypoints)
		reason := compare(c, v)
		results = append(results, ReplayResult{
			CaseID:   c.CaseID,
			Expected: c.ExpectedStatus,
			Verdict:  v,
			Match:    reason == "",
			Reason:   reason,
		})
	}
	return results
}

// compare returns why v diverges from c, or "" when it matches.
func compare(c Case, v eval.Verdict) string {
	if v.Status != c.ExpectedStatus {
		return fmt.Sprintf("status %q, expected %q", v.Status, c.ExpectedStatus)
	}
	if c.ExpectedViolations == nil {
		return ""
	}
	if len(v.Violations) != len(c.ExpectedViolations) {
		return fmt.Sprintf("violations [%s], expected [%s]",
			strings.Join(v.Violations, "; "), strings.Join(c.ExpectedViolations, "; "))
	}
	for i := range v.Violations {
		if v.Violations[i] != c.ExpectedViolations[i] {
			return fmt.Sprintf("violation %d %q, expected %q", i, v.Violations[i], c.ExpectedViolations[i])
		}
	}
	return ""
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalCases: len(results)}
	for _, r := range results {
		if r.Match {
			s.Matches++
		} else {
			s.Divergences++
		}
		switch r.Verdict.Status {
		case eval.StatusCorrect:
			s.Correct++
		case eval.StatusIncorrect:
			s.Incorrect++
		case eval.StatusIncomplete:
			s.Incomplete++
		}
	}
	return s
}

// #endregion replay
