package logging

import (
	"time"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/rules"
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	EvalID      string
	ContextHash string
	TriggerType string // "keypoints" | "image"
	SignalsJSON string
	Decision    string // verdict status
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region verdict-record
// VerdictRecord captures everything needed to re-derive one verdict.
// Serialized as JSON into provenance_log.signals_json for deterministic replay.
type VerdictRecord struct {
	Source      string `json:"source"`
	FrameIndex  int    `json:"frame_index"`
	PersonIndex int    `json:"person_index"`

	// Rules and evaluator options active at decision time
	Rules                rules.Config `json:"rules"`
	TreatOriginAsMissing bool         `json:"treat_origin_as_missing"`

	// Evaluator output
	Status     eval.Status       `json:"status"`
	Violations []string          `json:"violations,omitempty"`
	Metrics    []eval.RuleMetric `json:"metrics,omitempty"`
}

// EvalConfig returns the evaluator options the verdict was produced under.
func (vr VerdictRecord) EvalConfig() eval.Config {
	return eval.Config{TreatOriginAsMissing: vr.TreatOriginAsMissing}
}

// #endregion verdict-record
