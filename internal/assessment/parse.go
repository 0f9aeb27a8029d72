package assessment

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

// flexString accepts the string, number, and bool spellings models use
// interchangeably for answer fields.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexString(strconv.FormatBool(v))
		return nil
	}
	return fmt.Errorf("value is not a string, number, or bool")
}

type rawRubricCriterion struct {
	Name      string  `json:"name"`
	MaxPoints float64 `json:"maxPoints"`
}

type rawQuestion struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Question    string                 `json:"question"`
	Explanation string                 `json:"explanation"`
	Hint        string                 `json:"hint"`
	TimeLimit   int                    `json:"timeLimit"`
	Options     []string               `json:"options"`
	Correct     flexString             `json:"correctAnswer"`
	Alternates  []string               `json:"alternativeAnswers"`
	Steps       []string               `json:"steps"`
	FinalAnswer flexString             `json:"finalAnswer"`
	Pairs       []model.MatchPair      `json:"pairs"`
	Passage     string                 `json:"passage"`
	Vocabulary  []model.VocabularyItem `json:"vocabularyItems"`
	Transcript  string                 `json:"transcript"`
	MaxListens  int                    `json:"maxListens"`
	Prompt      string                 `json:"prompt"`
	Rubric      []rawRubricCriterion   `json:"rubric"`
	ModelAnswer string                 `json:"modelAnswer"`
	WordLimit   int                    `json:"wordLimit"`
	Duration    int                    `json:"expectedDuration"`
}

type responseEnvelope struct {
	Title     string        `json:"title"`
	Questions []rawQuestion `json:"questions"`
}

// parseResponse turns the model's JSON reply into typed questions, dropping
// anything that fails its variant parser. Padding is the caller's concern.
func parseResponse(content string) (string, []model.Question) {
	content = stripCodeFence(content)

	var envelope responseEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		// Some models reply with a bare array despite the instructions.
		var bare []rawQuestion
		if err2 := json.Unmarshal([]byte(content), &bare); err2 != nil {
			slog.Warn("unparseable generation response", "error", err)
			return "", nil
		}
		envelope.Questions = bare
	}

	var questions []model.Question
	for i, raw := range envelope.Questions {
		q, err := parseQuestion(raw)
		if err != nil {
			slog.Warn("dropping malformed question", "index", i, "type", raw.Type, "error", err)
			continue
		}
		questions = append(questions, q)
	}
	return strings.TrimSpace(envelope.Title), questions
}

// parseQuestion dispatches to the variant parser for the question's type
// tag. Unknown tags are an error, which the caller logs and drops.
func parseQuestion(raw rawQuestion) (model.Question, error) {
	q := model.Question{
		ID:          raw.ID,
		Type:        model.QuestionType(raw.Type),
		Question:    strings.TrimSpace(raw.Question),
		Explanation: strings.TrimSpace(raw.Explanation),
		Hint:        strings.TrimSpace(raw.Hint),
		TimeLimit:   raw.TimeLimit,
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	var err error
	switch q.Type {
	case model.QuestionMultiple:
		err = parseMultiple(&q, raw)
	case model.QuestionTrueFalse:
		err = parseTrueFalse(&q, raw)
	case model.QuestionFill:
		err = parseFill(&q, raw)
	case model.QuestionSteps:
		err = parseSteps(&q, raw)
	case model.QuestionMatching:
		err = parseMatching(&q, raw)
	case model.QuestionReading, model.QuestionSpeedReading, model.QuestionVocabulary:
		err = parseReading(&q, raw)
	case model.QuestionListening:
		err = parseListening(&q, raw)
	case model.QuestionWriting:
		err = parseWriting(&q, raw)
	case model.QuestionSpeaking:
		err = parseSpeaking(&q, raw)
	case model.QuestionDrag, model.QuestionFlip:
		err = parseInteraction(&q, raw)
	default:
		err = fmt.Errorf("unknown question type %q", raw.Type)
	}
	if err != nil {
		return model.Question{}, err
	}
	return q, nil
}

var genericOptions = []string{"Option A", "Option B", "Option C", "Option D"}

func parseMultiple(q *model.Question, raw rawQuestion) error {
	if q.Question == "" {
		return fmt.Errorf("missing question text")
	}
	q.Options = raw.Options
	if len(q.Options) == 0 {
		q.Options = append([]string(nil), genericOptions...)
	}
	q.CorrectAnswer = strings.TrimSpace(string(raw.Correct))
	if q.CorrectAnswer == "" {
		q.CorrectAnswer = q.Options[0]
	}
	// Models sometimes answer with an option index.
	if idx, err := strconv.Atoi(q.CorrectAnswer); err == nil && idx >= 0 && idx < len(q.Options) {
		q.CorrectAnswer = q.Options[idx]
	}
	return nil
}

func parseTrueFalse(q *model.Question, raw rawQuestion) error {
	if q.Question == "" {
		return fmt.Errorf("missing question text")
	}
	answer := strings.ToLower(strings.TrimSpace(string(raw.Correct)))
	switch answer {
	case "true", "false":
	case "t", "yes":
		answer = "true"
	case "f", "no":
		answer = "false"
	default:
		answer = "true"
	}
	q.Options = []string{"True", "False"}
	q.CorrectAnswer = answer
	return nil
}

func parseFill(q *model.Question, raw rawQuestion) error {
	if q.Question == "" {
		return fmt.Errorf("missing question text")
	}
	q.CorrectAnswer = strings.TrimSpace(string(raw.Correct))
	if q.CorrectAnswer == "" {
		return fmt.Errorf("fill question has no correct answer")
	}
	q.AlternativeAnswers = raw.Alternates
	return nil
}

func parseSteps(q *model.Question, raw rawQuestion) error {
	if q.Question == "" {
		return fmt.Errorf("missing question text")
	}
	q.Steps = raw.Steps
	q.FinalAnswer = strings.TrimSpace(string(raw.FinalAnswer))
	if q.FinalAnswer == "" && len(q.Steps) == 0 {
		return fmt.Errorf("steps question has neither steps nor a final answer")
	}
	return nil
}

func parseMatching(q *model.Question, raw rawQuestion) error {
	var pairs []model.MatchPair
	for _, p := range raw.Pairs {
		if p.Left != "" && p.Right != "" {
			pairs = append(pairs, p)
		}
	}
	if len(pairs) < 2 {
		return fmt.Errorf("matching question needs at least 2 pairs")
	}
	q.Pairs = pairs
	if q.Question == "" {
		q.Question = "Match each item on the left with its counterpart on the right."
	}
	return nil
}

func parseReading(q *model.Question, raw rawQuestion) error {
	q.Passage = strings.TrimSpace(raw.Passage)
	if q.Passage == "" {
		return fmt.Errorf("reading question has no passage")
	}
	if q.Question == "" {
		return fmt.Errorf("missing question text")
	}
	q.CorrectAnswer = strings.TrimSpace(string(raw.Correct))
	q.VocabularyItems = raw.Vocabulary
	return nil
}

func parseListening(q *model.Question, raw rawQuestion) error {
	q.Prompt = strings.TrimSpace(raw.Prompt)
	if q.Prompt == "" {
		return fmt.Errorf("listening question has no prompt text")
	}
	if q.Question == "" {
		return fmt.Errorf("missing question text")
	}
	q.Transcript = strings.TrimSpace(raw.Transcript)
	if q.Transcript == "" {
		q.Transcript = q.Prompt
	}
	q.CorrectAnswer = strings.TrimSpace(string(raw.Correct))
	q.MaxListens = raw.MaxListens
	if q.MaxListens <= 0 {
		q.MaxListens = 3
	}
	return nil
}

const defaultWordLimit = 300

func parseWriting(q *model.Question, raw rawQuestion) error {
	q.Prompt = strings.TrimSpace(raw.Prompt)
	if q.Prompt == "" {
		q.Prompt = q.Question
	}
	if q.Prompt == "" {
		return fmt.Errorf("writing question has no prompt")
	}
	q.WordLimit = raw.WordLimit
	if q.WordLimit <= 0 {
		q.WordLimit = defaultWordLimit
	}
	q.ModelAnswer = strings.TrimSpace(raw.ModelAnswer)
	q.Rubric = convertRubric(raw.Rubric)
	if len(q.Rubric) == 0 {
		q.Rubric = []model.RubricCriterion{
			{Name: "Content", MaxPoints: 40},
			{Name: "Organization", MaxPoints: 30},
			{Name: "Language", MaxPoints: 30},
		}
	}
	return nil
}

func parseSpeaking(q *model.Question, raw rawQuestion) error {
	q.Prompt = strings.TrimSpace(raw.Prompt)
	if q.Prompt == "" {
		q.Prompt = q.Question
	}
	if q.Prompt == "" {
		return fmt.Errorf("speaking question has no prompt")
	}
	q.ExpectedDuration = raw.Duration
	if q.ExpectedDuration <= 0 {
		q.ExpectedDuration = 60
	}
	q.Rubric = convertRubric(raw.Rubric)
	if len(q.Rubric) == 0 {
		q.Rubric = []model.RubricCriterion{
			{Name: "Fluency", MaxPoints: 50},
			{Name: "Content", MaxPoints: 50},
		}
	}
	return nil
}

func parseInteraction(q *model.Question, raw rawQuestion) error {
	if q.Question == "" {
		return fmt.Errorf("missing question text")
	}
	q.Options = raw.Options
	q.CorrectAnswer = strings.TrimSpace(string(raw.Correct))
	return nil
}

func convertRubric(raw []rawRubricCriterion) []model.RubricCriterion {
	var rubric []model.RubricCriterion
	for _, c := range raw {
		if c.Name == "" || c.MaxPoints <= 0 {
			continue
		}
		rubric = append(rubric, model.RubricCriterion{Name: c.Name, MaxPoints: int(c.MaxPoints)})
	}
	return rubric
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
