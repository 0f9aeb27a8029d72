package model

import "time"

// AssessmentExport is the top-level JSON structure for assessment export.
type AssessmentExport struct {
	ExportedAt  time.Time          `json:"exported_at"`
	Count       int                `json:"count"`
	Assessments []AssessmentRecord `json:"assessments"`
}

// AssessmentRecord holds one stored assessment with its evaluation history.
type AssessmentRecord struct {
	Assessment  Assessment         `json:"assessment"`
	Evaluations []EvaluationRecord `json:"evaluations,omitempty"`
}

// EvaluationRecord is one graded answer kept for review.
type EvaluationRecord struct {
	ID           int64            `json:"id"`
	AssessmentID string           `json:"assessment_id"`
	QuestionID   string           `json:"question_id"`
	Answer       string           `json:"answer"`
	Result       EvaluationResult `json:"result"`
	CreatedAt    time.Time        `json:"created_at"`
}
