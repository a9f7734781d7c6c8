package state

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/geometry"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	eval_id         TEXT NOT NULL UNIQUE,
	source          TEXT NOT NULL,
	frame_index     INTEGER NOT NULL,
	person_index    INTEGER NOT NULL,
	status          TEXT NOT NULL,
	violations_json TEXT,
	metrics_json    TEXT,
	keypoints       BLOB NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluations_status ON evaluations(status);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	eval_id       TEXT NOT NULL,
	context_hash  TEXT,
	trigger_type  TEXT NOT NULL,
	signals_json  TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (eval_id) REFERENCES evaluations(eval_id)
);
`

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region store-struct
// Store keeps evaluation history in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region record
// RecordEvaluation inserts one evaluation. EvalID and CreatedAt are filled in
// when empty; the stored record is returned.
func (s *Store) RecordEvaluation(rec EvaluationRecord) (EvaluationRecord, error) {
	return s.RecordEvaluationWith(rec, nil)
}

// RecordEvaluationWith inserts one evaluation and then calls fn inside the same
// transaction, so rows fn writes for the evaluation commit or roll back with it.
// fn receives the record with EvalID and CreatedAt filled in.
func (s *Store) RecordEvaluationWith(rec EvaluationRecord, fn func(tx *sql.Tx, rec EvaluationRecord) error) (EvaluationRecord, error) {
	if rec.EvalID == "" {
		rec.EvalID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	violJSON, err := json.Marshal(rec.Violations)
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("marshal violations: %w", err)
	}
	metricsJSON, err := marshalMetrics(rec.Metrics)
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("marshal metrics: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO evaluations (eval_id, source, frame_index, person_index, status, violations_json, metrics_json, keypoints, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EvalID, rec.Source, rec.FrameIndex, rec.PersonIndex, string(rec.Status),
		string(violJSON), metricsJSON, encodeKeypoints(rec.Keypoints),
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("insert evaluation: %w", err)
	}

	if fn != nil {
		if err := fn(tx, rec); err != nil {
			return EvaluationRecord{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return EvaluationRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion record

// #region get-evaluation
// GetEvaluation retrieves one evaluation by ID.
func (s *Store) GetEvaluation(id string) (EvaluationRecord, error) {
	row := s.db.QueryRow(
		`SELECT eval_id, source, frame_index, person_index, status, violations_json, metrics_json, keypoints, created_at
		 FROM evaluations WHERE eval_id = ?`, id,
	)
	rec, err := scanEvaluation(row)
	if err != nil {
		return EvaluationRecord{}, fmt.Errorf("get evaluation %s: %w", id, err)
	}
	return rec, nil
}

// GetEvaluationWithProvenance retrieves one evaluation joined with its latest
// provenance row.
func (s *Store) GetEvaluationWithProvenance(id string) (EvaluationWithProvenance, error) {
	row := s.db.QueryRow(provenanceJoin+` WHERE e.eval_id = ?`, id)
	ep, err := scanWithProvenance(row)
	if err != nil {
		return EvaluationWithProvenance{}, fmt.Errorf("get evaluation %s: %w", id, err)
	}
	return ep, nil
}

// #endregion get-evaluation

// #region list-evaluations
// ListEvaluations returns the most recent evaluations, newest first.
func (s *Store) ListEvaluations(limit int) ([]EvaluationRecord, error) {
	rows, err := s.db.Query(
		`SELECT eval_id, source, frame_index, person_index, status, violations_json, metrics_json, keypoints, created_at
		 FROM evaluations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var records []EvaluationRecord
	for rows.Next() {
		rec, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListEvaluationsWithProvenance returns recent evaluations joined with their
// latest provenance row, newest first.
func (s *Store) ListEvaluationsWithProvenance(limit int) ([]EvaluationWithProvenance, error) {
	rows, err := s.db.Query(provenanceJoin+` ORDER BY e.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list evaluations with provenance: %w", err)
	}
	defer rows.Close()

	var out []EvaluationWithProvenance
	for rows.Next() {
		ep, err := scanWithProvenance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// #endregion list-evaluations

// #region aggregates
// StatusCounts returns the number of stored evaluations per status.
func (s *Store) StatusCounts() (map[eval.Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM evaluations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[eval.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		counts[eval.Status(status)] = n
	}
	return counts, rows.Err()
}

// RuleFailureCounts returns how often each rule failed across stored evaluations.
func (s *Store) RuleFailureCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT metrics_json FROM evaluations WHERE status = ?`, string(eval.StatusIncorrect))
	if err != nil {
		return nil, fmt.Errorf("rule failure counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		metrics, err := unmarshalMetrics(raw)
		if err != nil {
			return nil, err
		}
		for _, m := range metrics {
			if !m.Pass {
				counts[m.Name]++
			}
		}
	}
	return counts, rows.Err()
}

// #endregion aggregates

// #region scan
type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(sc scanner, extra ...any) (EvaluationRecord, error) {
	var rec EvaluationRecord
	var status, createdStr string
	var violJSON, metricsJSON sql.NullString
	var kpBlob []byte

	dest := []any{&rec.EvalID, &rec.Source, &rec.FrameIndex, &rec.PersonIndex, &status,
		&violJSON, &metricsJSON, &kpBlob, &createdStr}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return EvaluationRecord{}, err
	}

	rec.Status = eval.Status(status)
	if violJSON.Valid && violJSON.String != "" {
		if err := json.Unmarshal([]byte(violJSON.String), &rec.Violations); err != nil {
			return EvaluationRecord{}, fmt.Errorf("unmarshal violations: %w", err)
		}
	}
	metrics, err := unmarshalMetrics(metricsJSON)
	if err != nil {
		return EvaluationRecord{}, err
	}
	rec.Metrics = metrics
	rec.Keypoints = decodeKeypoints(kpBlob)
	rec.CreatedAt, _ = time.Parse(timeLayout, createdStr)
	return rec, nil
}

// provenanceJoin selects evaluation columns plus the latest provenance row.
const provenanceJoin = `SELECT e.eval_id, e.source, e.frame_index, e.person_index, e.status, e.violations_json,
		e.metrics_json, e.keypoints, e.created_at,
		p.trigger_type, p.reason, p.signals_json
	FROM evaluations e
	LEFT JOIN provenance_log p ON p.id = (
		SELECT MAX(id) FROM provenance_log WHERE eval_id = e.eval_id
	)`

func scanWithProvenance(sc scanner) (EvaluationWithProvenance, error) {
	var trigger, reason, signals sql.NullString
	rec, err := scanEvaluation(sc, &trigger, &reason, &signals)
	if err != nil {
		return EvaluationWithProvenance{}, err
	}
	return EvaluationWithProvenance{
		EvaluationRecord: rec,
		TriggerType:      trigger.String,
		Reason:           reason.String,
		SignalsJSON:      signals.String,
	}, nil
}

// #endregion scan

// #region metrics-encoding
func marshalMetrics(metrics []eval.RuleMetric) (string, error) {
	b, err := json.Marshal(metrics)
	return string(b), err
}

func unmarshalMetrics(raw sql.NullString) ([]eval.RuleMetric, error) {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil, nil
	}
	var metrics []eval.RuleMetric
	if err := json.Unmarshal([]byte(raw.String), &metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	return metrics, nil
}

// #endregion metrics-encoding

// #region keypoint-encoding
func encodeKeypoints(kp geometry.Keypoints) []byte {
	buf := make([]byte, len(kp)*16)
	for i, p := range kp {
		binary.LittleEndian.PutUint64(buf[i*16:], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(buf[i*16+8:], math.Float64bits(p.Y))
	}
	return buf
}

func decodeKeypoints(b []byte) geometry.Keypoints {
	kp := make(geometry.Keypoints, len(b)/16)
	for i := range kp {
		kp[i] = geometry.Point{
			X: math.Float64frombits(binary.LittleEndian.Uint64(b[i*16:])),
			Y: math.Float64frombits(binary.LittleEndian.Uint64(b[i*16+8:])),
		}
	}
	return kp
}

// #endregion keypoint-encoding
