package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Gaziyo/tuutta-genie/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		content_ref TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		extracted_text TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assessment_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		answer TEXT NOT NULL DEFAULT '',
		is_correct INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		rubric_scores TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (assessment_id) REFERENCES assessments(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertSource stores an uploaded learning source.
func (s *Store) InsertSource(f model.FileUpload) error {
	_, err := s.db.Exec(
		`INSERT INTO sources (id, name, mime_type, content_ref, size, extracted_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.MimeType, f.ContentRef, f.Size, f.ExtractedText, f.CreatedAt,
	)
	return err
}

// GetSource returns a source by ID.
func (s *Store) GetSource(id string) (model.FileUpload, error) {
	var f model.FileUpload
	err := s.db.QueryRow(
		`SELECT id, name, mime_type, content_ref, size, extracted_text, created_at FROM sources WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.MimeType, &f.ContentRef, &f.Size, &f.ExtractedText, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FileUpload{}, ErrNotFound
	}
	return f, err
}

// ListSources returns all sources, newest first.
func (s *Store) ListSources() ([]model.FileUpload, error) {
	rows, err := s.db.Query(
		`SELECT id, name, mime_type, content_ref, size, extracted_text, created_at FROM sources ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sources []model.FileUpload
	for rows.Next() {
		var f model.FileUpload
		if err := rows.Scan(&f.ID, &f.Name, &f.MimeType, &f.ContentRef, &f.Size, &f.ExtractedText, &f.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, f)
	}
	return sources, rows.Err()
}

// UpdateSourceText persists extracted text for a source. It never clears
// existing text since extraction results are immutable once set.
func (s *Store) UpdateSourceText(id string, text string) error {
	if text == "" {
		return nil
	}
	_, err := s.db.Exec(
		`UPDATE sources SET extracted_text = ? WHERE id = ? AND extracted_text = ''`, text, id,
	)
	return err
}

// InsertAssessment stores an assessment with its questions serialized as JSON.
func (s *Store) InsertAssessment(a model.Assessment) error {
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO assessments (id, title, type, source_url, questions, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Type, a.SourceURL, string(questions), a.CreatedAt,
	)
	return err
}

// GetAssessment returns an assessment by ID.
func (s *Store) GetAssessment(id string) (model.Assessment, error) {
	var a model.Assessment
	var questions string
	err := s.db.QueryRow(
		`SELECT id, title, type, source_url, questions, created_at FROM assessments WHERE id = ?`, id,
	).Scan(&a.ID, &a.Title, &a.Type, &a.SourceURL, &questions, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Assessment{}, ErrNotFound
	}
	if err != nil {
		return model.Assessment{}, err
	}
	if err := json.Unmarshal([]byte(questions), &a.Questions); err != nil {
		return model.Assessment{}, fmt.Errorf("unmarshal questions: %w", err)
	}
	return a, nil
}

// ListAssessments returns all assessments, newest first.
func (s *Store) ListAssessments() ([]model.Assessment, error) {
	rows, err := s.db.Query(
		`SELECT id, title, type, source_url, questions, created_at FROM assessments ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assessments []model.Assessment
	for rows.Next() {
		var a model.Assessment
		var questions string
		if err := rows.Scan(&a.ID, &a.Title, &a.Type, &a.SourceURL, &questions, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(questions), &a.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions: %w", err)
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

// InsertEvaluation records the grading outcome for one submitted answer.
func (s *Store) InsertEvaluation(assessmentID, questionID, answer string, r model.EvaluationResult) (int64, error) {
	var rubric string
	if len(r.RubricScores) > 0 {
		b, err := json.Marshal(r.RubricScores)
		if err != nil {
			return 0, fmt.Errorf("marshal rubric scores: %w", err)
		}
		rubric = string(b)
	}
	res, err := s.db.Exec(
		`INSERT INTO evaluations (assessment_id, question_id, answer, is_correct, score, feedback, rubric_scores, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		assessmentID, questionID, answer, r.IsCorrect, r.Score, r.Feedback, rubric, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEvaluations returns all evaluations for an assessment, oldest first.
func (s *Store) ListEvaluations(assessmentID string) ([]model.EvaluationRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, assessment_id, question_id, answer, is_correct, score, feedback, rubric_scores, created_at
		 FROM evaluations WHERE assessment_id = ? ORDER BY id`, assessmentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.EvaluationRecord
	for rows.Next() {
		var rec model.EvaluationRecord
		var rubric string
		if err := rows.Scan(&rec.ID, &rec.AssessmentID, &rec.QuestionID, &rec.Answer,
			&rec.Result.IsCorrect, &rec.Result.Score, &rec.Result.Feedback, &rubric, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rubric != "" {
			if err := json.Unmarshal([]byte(rubric), &rec.Result.RubricScores); err != nil {
				return nil, fmt.Errorf("unmarshal rubric scores: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
