package state

import (
	"database/sql"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/geometry"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(status eval.Status) EvaluationRecord {
	rec := EvaluationRecord{
		Source:      "squat.mp4",
		FrameIndex:  3,
		PersonIndex: 1,
		Status:      status,
		Keypoints:   geometry.Keypoints{{X: 1.5, Y: -2}, {X: 640, Y: 480}},
	}
	switch status {
	case eval.StatusIncorrect:
		rec.Violations = []string{"stance incorrect (ratio +Inf)", "knee incorrect (90.0 degrees)"}
		rec.Metrics = []eval.RuleMetric{
			{Name: "stance", Kind: rules.KindDistanceRatio, Value: math.Inf(1), Unit: "ratio", Pass: false},
			{Name: "knee", Kind: rules.KindAngle, Value: 90, Unit: "degrees", Pass: false},
			{Name: "back", Kind: rules.KindAngle, Value: 5, Unit: "degrees", Pass: true},
		}
	case eval.StatusCorrect:
		rec.Metrics = []eval.RuleMetric{
			{Name: "knee", Kind: rules.KindAngle, Value: 178, Unit: "degrees", Pass: true},
		}
	}
	return rec
}

func TestRecordAndGetEvaluation(t *testing.T) {
	s := tempDB(t)

	stored, err := s.RecordEvaluation(sampleRecord(eval.StatusIncorrect))
	if err != nil {
		t.Fatalf("RecordEvaluation: %v", err)
	}
	if stored.EvalID == "" {
		t.Fatal("expected generated eval ID")
	}
	if stored.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be filled")
	}

	got, err := s.GetEvaluation(stored.EvalID)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if got.Source != "squat.mp4" || got.FrameIndex != 3 || got.PersonIndex != 1 {
		t.Errorf("unexpected identity fields: %+v", got)
	}
	if got.Status != eval.StatusIncorrect {
		t.Errorf("status = %s", got.Status)
	}
	if len(got.Violations) != 2 || got.Violations[1] != "knee incorrect (90.0 degrees)" {
		t.Errorf("violations = %v", got.Violations)
	}
	if len(got.Metrics) != 3 {
		t.Fatalf("expected 3 metrics, got %d", len(got.Metrics))
	}
	if !math.IsInf(got.Metrics[0].Value, 1) {
		t.Errorf("expected +Inf to survive storage, got %v", got.Metrics[0].Value)
	}
	if got.Metrics[0].Kind != rules.KindDistanceRatio {
		t.Errorf("kind = %s", got.Metrics[0].Kind)
	}
	if len(got.Keypoints) != 2 || got.Keypoints[0] != (geometry.Point{X: 1.5, Y: -2}) {
		t.Errorf("keypoints = %v", got.Keypoints)
	}
	if !got.CreatedAt.Equal(stored.CreatedAt.Truncate(time.Nanosecond)) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, stored.CreatedAt)
	}
	if got.Verdict().String() != "Incorrect: stance incorrect (ratio +Inf), knee incorrect (90.0 degrees)" {
		t.Errorf("verdict label = %q", got.Verdict().String())
	}
}

func TestGetEvaluationMissing(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetEvaluation("nope"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestRecordIncompleteHasNoMetrics(t *testing.T) {
	s := tempDB(t)

	stored, err := s.RecordEvaluation(EvaluationRecord{Source: "img.jpg", Status: eval.StatusIncomplete})
	if err != nil {
		t.Fatalf("RecordEvaluation: %v", err)
	}
	got, err := s.GetEvaluation(stored.EvalID)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if got.Metrics != nil || got.Violations != nil || len(got.Keypoints) != 0 {
		t.Errorf("expected empty payload, got %+v", got)
	}
	if got.Verdict().String() != "Incorrect (incomplete keypoints)" {
		t.Errorf("label = %q", got.Verdict().String())
	}
}

func TestRecordEvaluationWith_CommitsTogether(t *testing.T) {
	s := tempDB(t)

	stored, err := s.RecordEvaluationWith(sampleRecord(eval.StatusIncorrect), func(tx *sql.Tx, rec EvaluationRecord) error {
		if rec.EvalID == "" {
			t.Error("expected eval ID before the callback")
		}
		_, err := tx.Exec(
			`INSERT INTO provenance_log (eval_id, trigger_type, decision, created_at) VALUES (?, 'frame', ?, ?)`,
			rec.EvalID, string(rec.Status), rec.CreatedAt.Format(timeLayout),
		)
		return err
	})
	if err != nil {
		t.Fatalf("RecordEvaluationWith: %v", err)
	}

	got, err := s.GetEvaluationWithProvenance(stored.EvalID)
	if err != nil {
		t.Fatalf("GetEvaluationWithProvenance: %v", err)
	}
	if got.TriggerType != "frame" {
		t.Errorf("expected provenance row in the same commit, got %+v", got)
	}
}

func TestRecordEvaluationWith_RollsBackOnError(t *testing.T) {
	s := tempDB(t)
	boom := errors.New("provenance marshal failed")

	_, err := s.RecordEvaluationWith(sampleRecord(eval.StatusCorrect), func(tx *sql.Tx, rec EvaluationRecord) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	got, err := s.ListEvaluations(10)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no evaluation after rollback, got %d", len(got))
	}
}

func TestListEvaluationsNewestFirst(t *testing.T) {
	s := tempDB(t)

	var ids []string
	for i := 0; i < 5; i++ {
		rec := sampleRecord(eval.StatusCorrect)
		rec.FrameIndex = i
		stored, err := s.RecordEvaluation(rec)
		if err != nil {
			t.Fatalf("RecordEvaluation %d: %v", i, err)
		}
		ids = append(ids, stored.EvalID)
	}

	got, err := s.ListEvaluations(3)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[0].EvalID != ids[4] || got[2].EvalID != ids[2] {
		t.Errorf("unexpected order: %s, %s", got[0].EvalID, got[2].EvalID)
	}
}

func TestListEvaluationsWithProvenance(t *testing.T) {
	s := tempDB(t)

	withProv, err := s.RecordEvaluation(sampleRecord(eval.StatusIncorrect))
	if err != nil {
		t.Fatalf("RecordEvaluation: %v", err)
	}
	bare, err := s.RecordEvaluation(sampleRecord(eval.StatusCorrect))
	if err != nil {
		t.Fatalf("RecordEvaluation: %v", err)
	}

	_, err = s.DB().Exec(
		`INSERT INTO provenance_log (eval_id, trigger_type, signals_json, decision, reason, created_at)
		 VALUES (?, 'frame', '{"rules":[]}', 'Incorrect', 'knee', ?)`,
		withProv.EvalID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		t.Fatalf("insert provenance: %v", err)
	}

	got, err := s.ListEvaluationsWithProvenance(10)
	if err != nil {
		t.Fatalf("ListEvaluationsWithProvenance: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].EvalID != bare.EvalID || got[0].TriggerType != "" {
		t.Errorf("expected bare row first with no provenance, got %+v", got[0])
	}
	if got[1].TriggerType != "frame" || got[1].Reason != "knee" || got[1].SignalsJSON != `{"rules":[]}` {
		t.Errorf("unexpected provenance fields: %+v", got[1])
	}

	one, err := s.GetEvaluationWithProvenance(withProv.EvalID)
	if err != nil {
		t.Fatalf("GetEvaluationWithProvenance: %v", err)
	}
	if one.TriggerType != "frame" || len(one.Violations) != 2 {
		t.Errorf("unexpected detail row: %+v", one)
	}
	if _, err := s.GetEvaluationWithProvenance("missing"); err == nil {
		t.Error("expected error for unknown eval id")
	}
}

func TestStatusAndRuleFailureCounts(t *testing.T) {
	s := tempDB(t)

	for _, st := range []eval.Status{eval.StatusIncorrect, eval.StatusIncorrect, eval.StatusCorrect, eval.StatusIncomplete} {
		if _, err := s.RecordEvaluation(sampleRecord(st)); err != nil {
			t.Fatalf("RecordEvaluation: %v", err)
		}
	}

	counts, err := s.StatusCounts()
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if counts[eval.StatusIncorrect] != 2 || counts[eval.StatusCorrect] != 1 || counts[eval.StatusIncomplete] != 1 {
		t.Errorf("counts = %v", counts)
	}

	fails, err := s.RuleFailureCounts()
	if err != nil {
		t.Fatalf("RuleFailureCounts: %v", err)
	}
	if fails["stance"] != 2 || fails["knee"] != 2 || fails["back"] != 0 {
		t.Errorf("rule failures = %v", fails)
	}
}

func TestKeypointEncodingRoundTrip(t *testing.T) {
	kp := geometry.Keypoints{{X: 0, Y: 0}, {X: -1.25, Y: 1e9}, {X: math.MaxFloat64, Y: math.SmallestNonzeroFloat64}}
	got := decodeKeypoints(encodeKeypoints(kp))
	if len(got) != len(kp) {
		t.Fatalf("length %d, want %d", len(got), len(kp))
	}
	for i := range kp {
		if got[i] != kp[i] {
			t.Errorf("point %d: got %v, want %v", i, got[i], kp[i])
		}
	}
	if len(decodeKeypoints(nil)) != 0 {
		t.Error("nil blob should decode to no keypoints")
	}
}
