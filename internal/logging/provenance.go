package logging

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/rules"
)

// #region log-decision
// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db Execer, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (eval_id, context_hash, trigger_type, signals_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.EvalID,
		nullIfEmpty(entry.ContextHash),
		entry.TriggerType,
		nullIfEmpty(entry.SignalsJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region new-entry
// NewEntry builds a provenance entry for one verdict. The context hash
// fingerprints the rule set so runs under different configs can be told apart.
func NewEntry(evalID, trigger string, set *rules.RuleSet, rec VerdictRecord) (ProvenanceEntry, error) {
	cfg := rules.ConfigFor(set)
	rec.Rules = cfg

	signals, err := json.Marshal(rec)
	if err != nil {
		return ProvenanceEntry{}, fmt.Errorf("marshal verdict record: %w", err)
	}
	hash, err := RuleSetHash(cfg)
	if err != nil {
		return ProvenanceEntry{}, err
	}

	reason := strings.Join(rec.Violations, ", ")
	if rec.Status == eval.StatusCorrect {
		reason = "all rules passed"
	}

	return ProvenanceEntry{
		EvalID:      evalID,
		ContextHash: hash,
		TriggerType: trigger,
		SignalsJSON: string(signals),
		Decision:    string(rec.Status),
		Reason:      reason,
	}, nil
}

// RuleSetHash returns a short hex fingerprint of a rule config.
func RuleSetHash(cfg rules.Config) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal rules: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8]), nil
}

// #endregion new-entry

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
