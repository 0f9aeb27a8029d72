package assessment

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Gaziyo/tuutta-genie/internal/llm"
	"github.com/Gaziyo/tuutta-genie/internal/llm/prompts"
	"github.com/Gaziyo/tuutta-genie/internal/model"
)

// Evaluator grades student answers. Objective types are checked locally;
// open-ended types go through the LLM with a deterministic degrade path so
// evaluation never fails outright.
type Evaluator struct {
	llm Completer
}

func NewEvaluator(completer Completer) *Evaluator {
	return &Evaluator{llm: completer}
}

func (e *Evaluator) Evaluate(ctx context.Context, q model.Question, answer string) model.EvaluationResult {
	answer = strings.TrimSpace(answer)

	switch q.Type {
	case model.QuestionMultiple, model.QuestionTrueFalse:
		return exactMatch(q.CorrectAnswer, answer)
	case model.QuestionFill:
		return e.evaluateFill(q, answer)
	case model.QuestionReading, model.QuestionSpeedReading, model.QuestionVocabulary:
		return e.evaluateSemantic(ctx, q, answer)
	case model.QuestionWriting:
		return e.evaluateWriting(ctx, q, answer)
	default:
		// Steps, matching, listening, speaking, drag, and flip are scored
		// client-side or by completion; recording them is enough.
		return model.EvaluationResult{IsCorrect: true, Score: 100, Feedback: "Completed."}
	}
}

func exactMatch(correct, answer string) model.EvaluationResult {
	if strings.EqualFold(strings.TrimSpace(correct), answer) {
		return model.EvaluationResult{IsCorrect: true, Score: 100, Feedback: "Correct!"}
	}
	return model.EvaluationResult{Feedback: "Not quite. The correct answer is: " + correct}
}

func (e *Evaluator) evaluateFill(q model.Question, answer string) model.EvaluationResult {
	accepted := append([]string{q.CorrectAnswer}, q.AlternativeAnswers...)
	for _, want := range accepted {
		if strings.EqualFold(strings.TrimSpace(want), answer) {
			return model.EvaluationResult{IsCorrect: true, Score: 100, Feedback: "Correct!"}
		}
	}
	return model.EvaluationResult{Feedback: "Not quite. The expected answer is: " + q.CorrectAnswer}
}

// semanticVerdict is what the model returns for open-ended comparisons.
type semanticVerdict struct {
	IsCorrect bool   `json:"isCorrect"`
	Score     int    `json:"score"`
	Feedback  string `json:"feedback"`
}

func (e *Evaluator) evaluateSemantic(ctx context.Context, q model.Question, answer string) model.EvaluationResult {
	if answer == "" {
		return model.EvaluationResult{Feedback: "No answer provided."}
	}
	system, user := prompts.SemanticEval(q, answer)
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:   system,
		UserPrompt:     user,
		ResponseFormat: llm.ResponseFormatJSON,
		Temperature:    0.2,
		MaxTokens:      512,
	})
	if err != nil {
		slog.Warn("semantic evaluation degraded to containment check", "error", err)
		return containmentCheck(q.CorrectAnswer, answer)
	}

	var verdict semanticVerdict
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &verdict); err != nil {
		slog.Warn("unparseable evaluation verdict", "error", err)
		return containmentCheck(q.CorrectAnswer, answer)
	}
	return model.EvaluationResult{
		IsCorrect: verdict.IsCorrect,
		Score:     clampScore(verdict.Score),
		Feedback:  verdict.Feedback,
	}
}

// containmentCheck is the offline fallback: exact match scores full marks,
// containment in either direction gives partial credit.
func containmentCheck(correct, answer string) model.EvaluationResult {
	c := strings.ToLower(strings.TrimSpace(correct))
	a := strings.ToLower(answer)
	switch {
	case c == "" || a == "":
		return model.EvaluationResult{Feedback: "Could not evaluate the answer."}
	case c == a:
		return model.EvaluationResult{IsCorrect: true, Score: 100, Feedback: "Correct!"}
	case strings.Contains(a, c) || strings.Contains(c, a):
		return model.EvaluationResult{IsCorrect: true, Score: 70, Feedback: "Close enough, partial credit."}
	default:
		return model.EvaluationResult{Feedback: "The answer does not match the expected one."}
	}
}

type rubricVerdict struct {
	Score        int            `json:"score"`
	Feedback     string         `json:"feedback"`
	RubricScores map[string]int `json:"rubricScores"`
}

func (e *Evaluator) evaluateWriting(ctx context.Context, q model.Question, answer string) model.EvaluationResult {
	words := len(strings.Fields(answer))
	limit := q.WordLimit
	if limit <= 0 {
		limit = defaultWordLimit
	}

	// Far too short to be a real attempt. Not worth a model call.
	if words < limit/2 {
		return model.EvaluationResult{
			Feedback: "The response is too short. Aim for at least half the word limit before submitting.",
		}
	}

	system, user := prompts.RubricEval(q, answer)
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:   system,
		UserPrompt:     user,
		ResponseFormat: llm.ResponseFormatJSON,
		Temperature:    0.2,
		MaxTokens:      1024,
	})
	if err != nil {
		slog.Warn("rubric evaluation degraded to length check", "error", err)
		return lengthCheck(words, limit)
	}

	var verdict rubricVerdict
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Content)), &verdict); err != nil {
		slog.Warn("unparseable rubric verdict", "error", err)
		return lengthCheck(words, limit)
	}
	score := clampScore(verdict.Score)
	return model.EvaluationResult{
		IsCorrect:    score >= 60,
		Score:        score,
		Feedback:     verdict.Feedback,
		RubricScores: verdict.RubricScores,
	}
}

// lengthCheck is the offline fallback for rubric grading: a response within
// a reasonable band of the word limit earns a passing score.
func lengthCheck(words, limit int) model.EvaluationResult {
	if words >= limit/2 && words <= limit*3/2 {
		return model.EvaluationResult{
			IsCorrect: true,
			Score:     70,
			Feedback:  "Your response meets the length requirement. Detailed feedback is unavailable right now.",
		}
	}
	return model.EvaluationResult{
		Score:    40,
		Feedback: "Your response is outside the expected length range.",
	}
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
