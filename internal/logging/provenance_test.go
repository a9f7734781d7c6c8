package logging

import (
	"database/sql"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE provenance_log (
		eval_id      TEXT NOT NULL,
		context_hash TEXT,
		trigger_type TEXT NOT NULL,
		signals_json TEXT,
		decision     TEXT NOT NULL,
		reason       TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		EvalID:      "e1",
		ContextHash: "abc123",
		TriggerType: "frame",
		SignalsJSON: `{"status":"Correct"}`,
		Decision:    "Correct",
		Reason:      "all rules passed",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var evalID, decision string
	db.QueryRow("SELECT eval_id, decision FROM provenance_log").Scan(&evalID, &decision)
	if evalID != "e1" {
		t.Errorf("expected eval_id 'e1', got %q", evalID)
	}
	if decision != "Correct" {
		t.Errorf("expected decision 'Correct', got %q", decision)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogDecision(db, ProvenanceEntry{EvalID: "e2", TriggerType: "image", Decision: "Incorrect"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before.Truncate(time.Second)) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	err := LogDecision(db, ProvenanceEntry{EvalID: "e3", TriggerType: "keypoints", Decision: "Correct"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var contextHash, signalsJSON, reason sql.NullString
	db.QueryRow("SELECT context_hash, signals_json, reason FROM provenance_log").Scan(
		&contextHash, &signalsJSON, &reason,
	)
	if contextHash.Valid {
		t.Error("expected NULL context_hash for empty string")
	}
	if signalsJSON.Valid {
		t.Error("expected NULL signals_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	err := LogDecision(db, ProvenanceEntry{EvalID: "e4", TriggerType: "frame", Decision: "Correct"})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region new-entry-tests
func TestNewEntry_Incorrect(t *testing.T) {
	set := rules.DefaultRuleSet()
	rec := VerdictRecord{
		Source:     "deadlift.jpg",
		Status:     eval.StatusIncorrect,
		Violations: []string{"back_angle incorrect (45.0 degrees)", "stance_width incorrect (ratio +Inf)"},
		Metrics: []eval.RuleMetric{
			{Name: "back_angle", Kind: rules.KindAngle, Value: 45, Unit: "degrees"},
			{Name: "stance_width", Kind: rules.KindDistanceRatio, Value: math.Inf(1), Unit: "ratio"},
		},
	}

	entry, err := NewEntry("e5", "image", set, rec)
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.Decision != "Incorrect" {
		t.Errorf("decision = %q", entry.Decision)
	}
	if entry.Reason != "back_angle incorrect (45.0 degrees), stance_width incorrect (ratio +Inf)" {
		t.Errorf("reason = %q", entry.Reason)
	}
	if len(entry.ContextHash) != 16 {
		t.Errorf("expected 16-char hash, got %q", entry.ContextHash)
	}

	var decoded VerdictRecord
	if err := json.Unmarshal([]byte(entry.SignalsJSON), &decoded); err != nil {
		t.Fatalf("signals_json not valid JSON: %v", err)
	}
	if len(decoded.Rules.Rules) != set.Len() {
		t.Errorf("expected %d rules in snapshot, got %d", set.Len(), len(decoded.Rules.Rules))
	}
	if !math.IsInf(decoded.Metrics[1].Value, 1) {
		t.Errorf("expected +Inf metric, got %v", decoded.Metrics[1].Value)
	}
	if _, err := decoded.Rules.Build(); err != nil {
		t.Errorf("snapshot should rebuild into a rule set: %v", err)
	}
}

func TestNewEntry_CorrectReason(t *testing.T) {
	entry, err := NewEntry("e6", "frame", rules.DefaultRuleSet(), VerdictRecord{Status: eval.StatusCorrect})
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.Reason != "all rules passed" {
		t.Errorf("reason = %q", entry.Reason)
	}
}

func TestRuleSetHash_StableAndDistinct(t *testing.T) {
	a, _ := RuleSetHash(rules.ConfigFor(rules.DefaultRuleSet()))
	b, _ := RuleSetHash(rules.ConfigFor(rules.DefaultRuleSet()))
	if a != b {
		t.Errorf("hash not stable: %s vs %s", a, b)
	}
	other, err := rules.NewRuleSet(rules.DistanceRule{RuleName: "d", A: 0, B: 1, Limit: rules.AtMost(5)})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	c, _ := RuleSetHash(rules.ConfigFor(other))
	if a == c {
		t.Error("different rule sets should hash differently")
	}
}

// #endregion new-entry-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
