// Package assessment generates question bundles from learning content and
// grades submitted answers.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Gaziyo/tuutta-genie/internal/llm"
	"github.com/Gaziyo/tuutta-genie/internal/llm/prompts"
	"github.com/Gaziyo/tuutta-genie/internal/model"
)

var (
	// ErrNoContent means there was nothing to generate questions from.
	ErrNoContent = errors.New("no content to assess")
	// ErrNoValidQuestions means the model response contained no usable questions.
	ErrNoValidQuestions = errors.New("no valid questions could be generated")
)

// Completer is the slice of the LLM client the generator needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error)
}

// Speaker synthesizes speech for listening questions.
type Speaker interface {
	Speak(ctx context.Context, text string, speed float64) (string, error)
}

// Generator produces assessments by prompting the LLM and normalizing its
// JSON reply into the typed question model.
type Generator struct {
	llm Completer
	tts Speaker
}

// NewGenerator creates a Generator. tts may be nil, in which case listening
// questions are kept without audio.
func NewGenerator(completer Completer, tts Speaker) *Generator {
	return &Generator{llm: completer, tts: tts}
}

// Generate builds an assessment of the requested type and size. Malformed
// questions in the model reply are dropped; a short result is padded with
// placeholder questions up to count as a deliberate best-effort policy.
func (g *Generator) Generate(ctx context.Context, content string, at model.AssessmentType, count int, sourceURL string) (*model.Assessment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoContent
	}
	if count <= 0 {
		count = 5
	}

	system, user := prompts.Generation(at, content, count, sourceURL)
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt:   system,
		UserPrompt:     user,
		ResponseFormat: llm.ResponseFormatJSON,
		Temperature:    0.7,
		MaxTokens:      4096,
	})
	if err != nil {
		return nil, fmt.Errorf("generate assessment: %w", err)
	}

	title, questions := parseResponse(resp.Content)
	if len(questions) == 0 {
		return nil, ErrNoValidQuestions
	}

	questions = g.synthesizeAudio(ctx, questions)
	if len(questions) == 0 {
		return nil, ErrNoValidQuestions
	}

	questions = padQuestions(questions, count)

	if title == "" {
		title = defaultTitle(at)
	}

	return &model.Assessment{
		ID:        uuid.NewString(),
		Title:     title,
		Type:      at,
		SourceURL: sourceURL,
		CreatedAt: time.Now(),
		Questions: questions,
	}, nil
}

// synthesizeAudio attaches TTS audio to listening questions. A TTS failure
// drops that one question; the rest of the batch survives.
func (g *Generator) synthesizeAudio(ctx context.Context, questions []model.Question) []model.Question {
	kept := questions[:0]
	for _, q := range questions {
		if q.Type == model.QuestionListening && q.AudioPrompt == "" {
			if g.tts == nil {
				kept = append(kept, q)
				continue
			}
			audio, err := g.tts.Speak(ctx, q.Prompt, 1.0)
			if err != nil {
				slog.Warn("skipping listening question, TTS failed", "question", q.ID, "error", err)
				continue
			}
			q.AudioPrompt = audio
		}
		kept = append(kept, q)
	}
	return kept
}

// padQuestions extends a short question list with placeholder
// multiple-choice stubs until it reaches the requested count.
func padQuestions(questions []model.Question, count int) []model.Question {
	for len(questions) < count {
		questions = append(questions, placeholderQuestion(len(questions)+1))
	}
	return questions
}

func defaultTitle(at model.AssessmentType) string {
	s := string(at)
	if s == "" {
		return "Generated assessment"
	}
	return strings.ToUpper(s[:1]) + s[1:] + " assessment"
}

func placeholderQuestion(n int) model.Question {
	return model.Question{
		ID:            uuid.NewString(),
		Type:          model.QuestionMultiple,
		Question:      fmt.Sprintf("Review question %d: which statement best reflects the material?", n),
		Options:       []string{"Option A", "Option B", "Option C", "Option D"},
		CorrectAnswer: "Option A",
		Explanation:   "Placeholder added because fewer questions than requested could be generated.",
	}
}
