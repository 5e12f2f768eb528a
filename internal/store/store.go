// Package store persists bubble templates, answer keys and graded results in
// PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ironsheep/omr-reader/internal/omr"
	"github.com/ironsheep/omr-reader/internal/scoring"
)

// ErrNotFound is returned when a requested template or key does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the PostgreSQL connection. A pgx.Conn serves one query at a
// time, so operations are serialized.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// ConnString resolves the connection string from OMR_DATABASE_URL, falling
// back to the POSTGRES_* variables.
func ConnString() string {
	if url := os.Getenv("OMR_DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("POSTGRES_USER", "omr"),
		getEnv("POSTGRES_PASSWORD", "omr"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "omr"),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS omr_templates (
			name TEXT PRIMARY KEY,
			bubble_centers JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS omr_answer_keys (
			exam_id TEXT PRIMARY KEY,
			entries JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS omr_results (
			id UUID PRIMARY KEY,
			exam_id TEXT NOT NULL,
			source TEXT NOT NULL,
			answers JSONB NOT NULL,
			evaluation JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS omr_results_exam_id_idx ON omr_results (exam_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close(ctx)
}

// SaveTemplate stores or replaces a named bubble map.
func (s *Store) SaveTemplate(ctx context.Context, name string, m omr.BubbleCenterMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO omr_templates (name, bubble_centers, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET bubble_centers = EXCLUDED.bubble_centers, updated_at = NOW()
	`, name, data)
	return err
}

// LoadTemplate fetches a named bubble map.
func (s *Store) LoadTemplate(ctx context.Context, name string) (omr.BubbleCenterMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	err := s.conn.QueryRow(ctx, "SELECT bubble_centers FROM omr_templates WHERE name = $1", name).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("template %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	m, _, err := omr.DecodeBubbleMap(data)
	return m, err
}

// SaveAnswerKey stores or replaces the key of an exam.
func (s *Store) SaveAnswerKey(ctx context.Context, examID string, key []omr.AnswerKeyEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(ctx, `
		INSERT INTO omr_answer_keys (exam_id, entries, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (exam_id) DO UPDATE SET entries = EXCLUDED.entries, updated_at = NOW()
	`, examID, data)
	return err
}

// LoadAnswerKey fetches the key of an exam.
func (s *Store) LoadAnswerKey(ctx context.Context, examID string) ([]omr.AnswerKeyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	err := s.conn.QueryRow(ctx, "SELECT entries FROM omr_answer_keys WHERE exam_id = $1", examID).Scan(&data)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("answer key %q: %w", examID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var key []omr.AnswerKeyEntry
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("answer key %q: %w", examID, err)
	}
	return key, nil
}

// Result is one stored student sheet.
type Result struct {
	ID         string                   `json:"id"`
	ExamID     string                   `json:"examId"`
	Source     string                   `json:"source"`
	Answers    []omr.StudentAnswerEntry `json:"studentAnswers"`
	Evaluation *scoring.Evaluation      `json:"evaluation,omitempty"`
}

// SaveResult stores a student sheet and returns its generated ID.
// The evaluation may be nil.
func (s *Store) SaveResult(ctx context.Context, examID, source string, answers []omr.StudentAnswerEntry, eval *scoring.Evaluation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return "", err
	}
	var evalJSON []byte
	if eval != nil {
		if evalJSON, err = json.Marshal(eval); err != nil {
			return "", err
		}
	}

	id := uuid.NewString()
	_, err = s.conn.Exec(ctx, `
		INSERT INTO omr_results (id, exam_id, source, answers, evaluation)
		VALUES ($1, $2, $3, $4, $5)
	`, id, examID, source, answersJSON, evalJSON)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListResults returns the stored results of an exam, oldest first.
func (s *Store) ListResults(ctx context.Context, examID string) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.conn.Query(ctx, `
		SELECT id::text, exam_id, source, answers, evaluation
		FROM omr_results WHERE exam_id = $1 ORDER BY created_at, id
	`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var answersJSON, evalJSON []byte
		if err := rows.Scan(&r.ID, &r.ExamID, &r.Source, &answersJSON, &evalJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(answersJSON, &r.Answers); err != nil {
			return nil, fmt.Errorf("result %s: %w", r.ID, err)
		}
		if len(evalJSON) > 0 {
			r.Evaluation = &scoring.Evaluation{}
			if err := json.Unmarshal(evalJSON, r.Evaluation); err != nil {
				return nil, fmt.Errorf("result %s: %w", r.ID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Reset drops all tables.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS omr_results CASCADE;
		DROP TABLE IF EXISTS omr_answer_keys CASCADE;
		DROP TABLE IF EXISTS omr_templates CASCADE;
	`)
	return err
}
