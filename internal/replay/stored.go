package replay

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/logging"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	"github.com/danielpatrickdp/posture-check/internal/state"
)

// #region snapshot

// Snapshot is the rule set and evaluator config a stored verdict was
// produced under.
type Snapshot struct {
	Set    *rules.RuleSet
	Config eval.Config
	Hash   string // rule set fingerprint
}

// RecordedVerdict decodes the verdict snapshot of a provenance row. It reports
// false for rows without provenance or without a rule snapshot.
func RecordedVerdict(signalsJSON string) (logging.VerdictRecord, bool) {
	var vr logging.VerdictRecord
	if signalsJSON == "" {
		return vr, false
	}
	if err := json.Unmarshal([]byte(signalsJSON), &vr); err != nil || len(vr.Rules.Rules) == 0 {
		return vr, false
	}
	return vr, true
}

// RecordedConfig returns the evaluator config ep was recorded under, or the
// defaults when it carries no snapshot.
func RecordedConfig(ep state.EvaluationWithProvenance) eval.Config {
	if vr, ok := RecordedVerdict(ep.SignalsJSON); ok {
		return vr.EvalConfig()
	}
	return eval.DefaultConfig()
}

// LatestSnapshot rebuilds the snapshot of the newest evaluation that carries
// one. evals is newest first, as the store returns it.
func LatestSnapshot(evals []state.EvaluationWithProvenance) (Snapshot, error) {
	for _, ep := range evals {
		vr, ok := RecordedVerdict(ep.SignalsJSON)
		if !ok {
			continue
		}
		set, err := vr.Rules.Build()
		if err != nil {
			return Snapshot{}, fmt.Errorf("recorded rules of %s: %w", ep.EvalID, err)
		}
		hash, err := logging.RuleSetHash(vr.Rules)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Set: set, Config: vr.EvalConfig(), Hash: hash}, nil
	}
	return Snapshot{}, fmt.Errorf("no evaluation with a rule snapshot in the last %d", len(evals))
}

// Matches reports whether ep was recorded under the same rules and config.
func (s Snapshot) Matches(ep state.EvaluationWithProvenance) bool {
	vr, ok := RecordedVerdict(ep.SignalsJSON)
	if !ok || vr.EvalConfig() != s.Config {
		return false
	}
	h, err := logging.RuleSetHash(vr.Rules)
	return err == nil && h == s.Hash
}

// #endregion snapshot

// #region stored-export

// Pinned keeps the evaluations recorded under snap, oldest first.
func Pinned(snap Snapshot, evals []state.EvaluationWithProvenance) []state.EvaluationRecord {
	var records []state.EvaluationRecord
	for i := len(evals) - 1; i >= 0; i-- {
		if snap.Matches(evals[i]) {
			records = append(records, evals[i].EvaluationRecord)
		}
	}
	return records
}

// Rebaseline re-evaluates stored keypoints under set and cfg, oldest first.
func Rebaseline(evals []state.EvaluationWithProvenance, set *rules.RuleSet, cfg eval.Config) []state.EvaluationRecord {
	evaluator := eval.NewEvaluator(set, cfg)
	records := make([]state.EvaluationRecord, 0, len(evals))
	for i := len(evals) - 1; i >= 0; i-- {
		rec := evals[i].EvaluationRecord
		v := evaluator.Evaluate(rec.Keypoints)
		rec.Status = v.Status
		rec.Violations = v.Violations
		rec.Metrics = v.Metrics
		records = append(records, rec)
	}
	return records
}

// #endregion stored-export

// #region stored-replay

// ReplayStored re-evaluates stored evaluations under set, each with the
// evaluator config it was recorded with, and compares against the stored
// verdicts. Results are oldest first.
func ReplayStored(set *rules.RuleSet, evals []state.EvaluationWithProvenance) []ReplayResult {
	evaluators := make(map[eval.Config]*eval.Evaluator)
	results := make([]ReplayResult, 0, len(evals))
	for i := len(evals) - 1; i >= 0; i-- {
		cfg := RecordedConfig(evals[i])
		ev, ok := evaluators[cfg]
		if !ok {
			ev = eval.NewEvaluator(set, cfg)
			evaluators[cfg] = ev
		}
		results = append(results, Replay(ev, []Case{CaseFromRecord(evals[i].EvaluationRecord)})...)
	}
	return results
}

// #endregion stored-replay
