// Package prompts assembles the system and user prompts sent to the LLM for
// assessment generation, answer evaluation, and tutoring.
package prompts

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxContentRunes = 10000

// Generation returns the system and user prompts for the given assessment
// type. The model is instructed to reply with a JSON object containing a
// "questions" array.
func Generation(assessmentType model.AssessmentType, content string, count int, sourceURL string) (system, user string) {
	content = SanitizeContent(content)

	var sb strings.Builder
	sb.WriteString("You are an expert instructional designer creating assessment questions for a learning platform.\n")
	sb.WriteString(typeInstructions(assessmentType))
	sb.WriteString("\nRespond ONLY with a JSON object of the form:\n")
	sb.WriteString(`{"title": "<short assessment title>", "questions": [<question objects>]}`)
	sb.WriteString("\n\nEach question object MUST have \"type\", \"question\", and \"explanation\" fields ")
	sb.WriteString("plus the type-specific fields described above. Do not include any other text.\n")
	system = sb.String()

	var ub strings.Builder
	fmt.Fprintf(&ub, "Generate exactly %d questions based on the following learning content.\n\n", count)
	if sourceURL != "" {
		ub.WriteString("SOURCE: " + sourceURL + "\n\n")
	}
	ub.WriteString("CONTENT:\n" + content + "\n")
	user = ub.String()

	return system, user
}

func typeInstructions(t model.AssessmentType) string {
	switch t {
	case model.AssessmentMathematics:
		return `Create mathematics questions. Use type "steps" for worked problems with a
"steps" array of solution steps and a "finalAnswer" string, and type "multiple"
for concept checks with an "options" array of 4 choices and a "correctAnswer".`
	case model.AssessmentSpeaking:
		return `Create speaking practice questions of type "speaking". Each needs a "prompt"
to speak about, an "expectedDuration" in seconds, and a "rubric" array of
{"name", "maxPoints"} scoring criteria.`
	case model.AssessmentReading:
		return `Create reading comprehension questions of types "reading", "speed-reading",
and "vocabulary". Each needs a "passage", a "question" about it, a
"correctAnswer", and optionally a "vocabularyItems" array of
{"word", "definition"} pairs.`
	case model.AssessmentWriting:
		return `Create writing questions of type "writing". Each needs a "prompt", a
"wordLimit", a "modelAnswer", and a "rubric" array of {"name", "maxPoints"}
scoring criteria.`
	case model.AssessmentListening:
		return `Create listening comprehension questions of type "listening". Each needs a
"prompt" (the text that will be read aloud), a "transcript", a "question"
about the audio, a "correctAnswer", and a "maxListens" count.`
	default:
		return `Create a mix of "multiple" (4 "options" plus "correctAnswer"), "truefalse"
("correctAnswer" of "true" or "false"), "fill" ("correctAnswer" plus an
"alternativeAnswers" array), and "matching" (a "pairs" array of
{"left", "right"}) questions.`
	}
}

// SemanticEval returns the prompts for AI similarity grading of a reading
// family answer.
func SemanticEval(q model.Question, answer string) (system, user string) {
	system = `You are grading a learner's answer to a comprehension question.
Compare the learner's answer to the expected answer for meaning, not wording.
Respond ONLY with a JSON object:
{"score": <number 0 to 100>, "isCorrect": <true/false>, "feedback": "<one or two sentences>"}`

	var sb strings.Builder
	if q.Passage != "" {
		sb.WriteString("PASSAGE:\n" + q.Passage + "\n\n")
	}
	sb.WriteString("QUESTION: " + q.Question + "\n\n")
	sb.WriteString("EXPECTED ANSWER: " + q.CorrectAnswer + "\n\n")
	sb.WriteString("LEARNER ANSWER: " + SanitizeContent(answer) + "\n")
	user = sb.String()

	return system, user
}

// RubricEval returns the prompts for per-criterion rubric grading of a
// writing submission.
func RubricEval(q model.Question, answer string) (system, user string) {
	var sb strings.Builder
	sb.WriteString("You are grading a learner's written submission against a rubric.\n")
	sb.WriteString("Score each criterion from 0 to its maximum, then give an overall score from 0 to 100.\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"score": <0-100>, "isCorrect": <true/false>, "feedback": "<feedback>", "rubricScores": {"<criterion name>": <points>, ...}}`)
	sb.WriteString("\n")
	system = sb.String()

	var ub strings.Builder
	ub.WriteString("WRITING PROMPT: " + q.Prompt + "\n\n")
	if len(q.Rubric) > 0 {
		ub.WriteString("RUBRIC:\n")
		for _, c := range q.Rubric {
			fmt.Fprintf(&ub, "- %s (max %d points)\n", c.Name, c.MaxPoints)
		}
		ub.WriteString("\n")
	}
	if q.ModelAnswer != "" {
		ub.WriteString("MODEL ANSWER (not shown to learner):\n" + q.ModelAnswer + "\n\n")
	}
	if q.WordLimit > 0 {
		fmt.Fprintf(&ub, "WORD LIMIT: %d\n\n", q.WordLimit)
	}
	ub.WriteString("SUBMISSION:\n" + SanitizeContent(answer) + "\n")
	user = ub.String()

	return system, user
}

// Tutor returns the system prompt for the Genie tutoring chat.
func Tutor(searchContext string) string {
	var sb strings.Builder
	sb.WriteString("You are Genie, a friendly and patient learning tutor.\n")
	sb.WriteString("Explain concepts step by step, check understanding, and encourage the learner.\n")
	sb.WriteString("Keep answers concise and grounded in the provided material when available.\n")
	if searchContext != "" {
		sb.WriteString("\nUse the following web search results when they are relevant:\n")
		sb.WriteString(searchContext)
		sb.WriteString("\n")
	}
	return sb.String()
}

// SanitizeContent strips pseudo-tags a learner could use to smuggle
// instructions into a prompt and truncates overly long input.
func SanitizeContent(content string) string {
	content = studentAnswerRegex.ReplaceAllString(content, "")
	content = systemInstructionsRegex.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	if content == "" {
		return "[No content provided]"
	}

	if utf8.RuneCountInString(content) > maxContentRunes {
		runes := []rune(content)
		content = string(runes[:maxContentRunes]) + "\n\n[Content truncated due to length]"
	}

	return content
}
