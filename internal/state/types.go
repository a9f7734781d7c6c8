package state

import (
	"time"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/geometry"
)

// #region evaluation-record
// EvaluationRecord is one stored verdict for one person in one frame.
type EvaluationRecord struct {
	EvalID      string
	Source      string // input file or stream the frame came from
	FrameIndex  int
	PersonIndex int
	Status      eval.Status
	Violations  []string
	Metrics     []eval.RuleMetric
	Keypoints   geometry.Keypoints
	CreatedAt   time.Time
}

// Verdict rebuilds the evaluator output stored in the record.
func (r EvaluationRecord) Verdict() eval.Verdict {
	return eval.Verdict{Status: r.Status, Violations: r.Violations, Metrics: r.Metrics}
}

// #endregion evaluation-record

// #region evaluation-with-provenance
// EvaluationWithProvenance pairs an evaluation with its provenance row fields.
type EvaluationWithProvenance struct {
	EvaluationRecord
	TriggerType string
	Reason      string
	SignalsJSON string
}

// #endregion evaluation-with-provenance
