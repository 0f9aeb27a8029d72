package model

import "time"

// AssessmentType selects the prompt family used for generation.
type AssessmentType string

const (
	AssessmentGeneral     AssessmentType = "general"
	AssessmentMathematics AssessmentType = "mathematics"
	AssessmentSpeaking    AssessmentType = "speaking"
	AssessmentReading     AssessmentType = "reading"
	AssessmentWriting     AssessmentType = "writing"
	AssessmentListening   AssessmentType = "listening"
)

var validAssessmentTypes = map[AssessmentType]bool{
	AssessmentGeneral:     true,
	AssessmentMathematics: true,
	AssessmentSpeaking:    true,
	AssessmentReading:     true,
	AssessmentWriting:     true,
	AssessmentListening:   true,
}

// IsValidAssessmentType checks if an assessment type name is known.
func IsValidAssessmentType(t string) bool {
	return validAssessmentTypes[AssessmentType(t)]
}

// QuestionType tags the question union. Each type carries its own payload
// fields; the parser in internal/assessment validates per type.
type QuestionType string

const (
	QuestionMultiple     QuestionType = "multiple"
	QuestionTrueFalse    QuestionType = "truefalse"
	QuestionFill         QuestionType = "fill"
	QuestionSteps        QuestionType = "steps"
	QuestionMatching     QuestionType = "matching"
	QuestionReading      QuestionType = "reading"
	QuestionSpeedReading QuestionType = "speed-reading"
	QuestionVocabulary   QuestionType = "vocabulary"
	QuestionListening    QuestionType = "listening"
	QuestionWriting      QuestionType = "writing"
	QuestionSpeaking     QuestionType = "speaking"
	QuestionDrag         QuestionType = "drag"
	QuestionFlip         QuestionType = "flip"
)

// MatchPair is one left/right pair for matching questions.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// VocabularyItem is a word/definition pair attached to reading questions.
type VocabularyItem struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

// RubricCriterion is a single named scoring criterion for open-ended answers.
type RubricCriterion struct {
	Name      string `json:"name"`
	MaxPoints int    `json:"maxPoints"`
}

// Question is a generated assessment question. ID and Type are always
// non-empty; the remaining fields depend on Type.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Question    string       `json:"question"`
	Explanation string       `json:"explanation,omitempty"`
	Hint        string       `json:"hint,omitempty"`
	TimeLimit   int          `json:"timeLimit,omitempty"`

	// multiple / truefalse / fill
	Options            []string `json:"options,omitempty"`
	CorrectAnswer      string   `json:"correctAnswer,omitempty"`
	AlternativeAnswers []string `json:"alternativeAnswers,omitempty"`

	// steps (worked math problems)
	Steps       []string `json:"steps,omitempty"`
	FinalAnswer string   `json:"finalAnswer,omitempty"`

	// matching
	Pairs []MatchPair `json:"pairs,omitempty"`

	// reading family
	Passage         string           `json:"passage,omitempty"`
	VocabularyItems []VocabularyItem `json:"vocabularyItems,omitempty"`

	// listening
	AudioPrompt string `json:"audioPrompt,omitempty"` // base64 MP3
	Transcript  string `json:"transcript,omitempty"`
	MaxListens  int    `json:"maxListens,omitempty"`

	// writing / speaking
	Prompt           string            `json:"prompt,omitempty"`
	Rubric           []RubricCriterion `json:"rubric,omitempty"`
	ModelAnswer      string            `json:"modelAnswer,omitempty"`
	WordLimit        int               `json:"wordLimit,omitempty"`
	ExpectedDuration int               `json:"expectedDuration,omitempty"`
}

// Assessment is a generated question bundle. It is never mutated after
// creation; regeneration produces a new Assessment.
type Assessment struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Type      AssessmentType `json:"type"`
	SourceURL string         `json:"sourceUrl,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Questions []Question     `json:"questions"`
}

// EvaluationResult is the outcome of grading a single submitted answer.
type EvaluationResult struct {
	IsCorrect    bool           `json:"isCorrect"`
	Score        int            `json:"score"` // 0-100
	Feedback     string         `json:"feedback"`
	RubricScores map[string]int `json:"rubricScores,omitempty"`
}

// FileUpload is an uploaded learning source. ExtractedText is populated
// lazily and treated as immutable once non-empty.
type FileUpload struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	MimeType      string    `json:"mimeType"`
	ContentRef    string    `json:"contentRef"` // data URI or object storage URL
	Size          int64     `json:"size"`
	ExtractedText string    `json:"extractedText,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SearchResult is one normalized web search hit. Ephemeral, never persisted.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"` // hostname
}

// PageContent is the readable text of one scraped result page.
type PageContent struct {
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	Chunks []string `json:"chunks"`
}

// ServeConfig holds runtime parameters set via CLI flags.
type ServeConfig struct {
	Addr          string
	DBPath        string
	BackendURL    string
	FallbackKey   string // direct provider API key; empty disables fallback
	Model         string
	TTSVoice      string
	Lang          string
	StorageURL    string // MinIO endpoint; empty keeps uploads inline
	StorageBucket string
}
