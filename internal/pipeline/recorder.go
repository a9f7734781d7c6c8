package pipeline

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/logging"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	"github.com/danielpatrickdp/posture-check/internal/state"
)

// #region store-recorder

// StoreRecorder writes each observation to the evaluation store and its
// provenance row to the provenance log in one transaction. Writes are
// serialized so concurrent workers do not contend on the SQLite writer lock.
type StoreRecorder struct {
	mu    sync.Mutex
	store *state.Store
	rules *rules.RuleSet
	cfg   eval.Config
}

// NewStoreRecorder creates a recorder bound to the rule set and evaluator
// config in use. Both are snapshotted into every provenance row.
func NewStoreRecorder(store *state.Store, set *rules.RuleSet, cfg eval.Config) *StoreRecorder {
	return &StoreRecorder{store: store, rules: set, cfg: cfg}
}

// Record implements Recorder.
func (r *StoreRecorder) Record(obs Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.store.RecordEvaluationWith(state.EvaluationRecord{
		Source:      obs.Source,
		FrameIndex:  obs.FrameIndex,
		PersonIndex: obs.PersonIndex,
		Status:      obs.Verdict.Status,
		Violations:  obs.Verdict.Violations,
		Metrics:     obs.Verdict.Metrics,
		Keypoints:   obs.Keypoints,
	}, func(tx *sql.Tx, rec state.EvaluationRecord) error {
		entry, err := logging.NewEntry(rec.EvalID, string(obs.Trigger), r.rules, logging.VerdictRecord{
			Source:               obs.Source,
			FrameIndex:           obs.FrameIndex,
			PersonIndex:          obs.PersonIndex,
			TreatOriginAsMissing: r.cfg.TreatOriginAsMissing,
			Status:               obs.Verdict.Status,
			Violations:           obs.Verdict.Violations,
			Metrics:              obs.Verdict.Metrics,
		})
		if err != nil {
			return err
		}
		entry.CreatedAt = rec.CreatedAt
		return logging.LogDecision(tx, entry)
	})
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	return nil
}

// #endregion
