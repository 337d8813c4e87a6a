package quizgen

import (
	"context"
	"encoding/json"
	"fmt"
	"quiz-forge/internal/domain"
	"quiz-forge/internal/logger"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
)

const defaultLLMTimeout = 60 * time.Second

// llmQuestionGenerator implements domain.QuestionGenerator
type llmQuestionGenerator struct {
	llmClient *ollama.LLM
	timeout   time.Duration
}

// NewLLMQuestionGenerator creates a new instance of llmQuestionGenerator.
// A non-positive timeout falls back to the default.
func NewLLMQuestionGenerator(llm *ollama.LLM, timeout time.Duration) domain.QuestionGenerator {
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &llmQuestionGenerator{
		llmClient: llm,
		timeout:   timeout,
	}
}

// Generate implements domain.QuestionGenerator
func (g *llmQuestionGenerator) Generate(ctx context.Context, chunkText string, mix domain.QuestionMix) (*domain.QuestionSet, error) {
	l := logger.Get()

	prompt := buildPrompt(chunkText, mix)

	rawLLMResponse, err := g.callLLM(ctx, prompt)
	if err != nil {
		return nil, domain.NewGenerationFailureError(fmt.Errorf("callLLM failed: %w", err))
	}

	l.Debug("Raw LLM response received", zap.String("raw_response", rawLLMResponse))

	cleaned := stripThinkBlocks(strings.TrimSpace(rawLLMResponse))

	jsonStart := strings.Index(cleaned, "[")
	jsonEnd := strings.LastIndex(cleaned, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		l.Error("Could not find valid JSON array delimiters in LLM response",
			zap.String("cleaned_response", cleaned))
		return nil, domain.NewGenerationFailureError(fmt.Errorf("no JSON array found in LLM response"))
	}

	extractedJSONStr := cleaned[jsonStart : jsonEnd+1]

	var questions []domain.GeneratedQuestion
	if errUnmarshal := json.Unmarshal([]byte(extractedJSONStr), &questions); errUnmarshal != nil {
		l.Error("Failed to unmarshal extracted JSON from LLM response",
			zap.Error(errUnmarshal),
			zap.String("json_string_tried_to_parse", extractedJSONStr))
		return nil, domain.NewGenerationFailureError(fmt.Errorf("failed to unmarshal JSON from LLM: %w", errUnmarshal))
	}

	if len(questions) == 0 {
		return nil, domain.NewGenerationFailureError(fmt.Errorf("LLM returned an empty question list"))
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Text) == "" || strings.TrimSpace(q.Answer) == "" {
			return nil, domain.NewGenerationFailureError(fmt.Errorf("question %d is missing text or answer", i))
		}
		if !domain.ValidQuestionType(q.Type) {
			return nil, domain.NewGenerationFailureError(fmt.Errorf("question %d has unknown type %q", i, q.Type))
		}
	}

	l.Info("Generated questions for chunk", zap.Int("question_count", len(questions)))

	return &domain.QuestionSet{Questions: questions}, nil
}

// buildPrompt renders the generation instructions for one chunk. Question
// types are emitted in stable order so equal mixes produce equal prompts.
func buildPrompt(chunkText string, mix domain.QuestionMix) string {
	types := make([]string, 0, len(mix))
	for qt := range mix {
		types = append(types, string(qt))
	}
	sort.Strings(types)

	var mixLines strings.Builder
	for _, t := range types {
		count := mix[domain.QuestionType(t)]
		if count <= 0 {
			continue
		}
		fmt.Fprintf(&mixLines, "- %d questions of type %q\n", count, t)
	}

	return fmt.Sprintf(`You are a quiz question generator. Read the source text and produce quiz questions. Respond with ONLY a JSON array in the following format:
[
    {
        "text": "question text here",
        "type": "multiple_choice",
        "options": ["option A", "option B", "option C", "option D"],
        "answer": "the correct answer",
        "explanation": "brief explanation here"
    }
]

Generate exactly:
%s
Source Text:
%s

Rules:
1. Every question must be answerable from the source text alone
2. "type" must be one of: multiple_choice, true_false, short_answer
3. multiple_choice questions must have exactly 4 options and "answer" must match one of them
4. true_false questions must have "answer" of "true" or "false" and no options
5. short_answer questions must have no options
6. Explanations must be under 50 words`, mixLines.String(), chunkText)
}

// stripThinkBlocks removes a leading <think>...</think> block some models
// prepend to their output.
func stripThinkBlocks(s string) string {
	if thinkStart := strings.Index(s, "<think>"); thinkStart != -1 {
		if thinkEnd := strings.Index(s, "</think>"); thinkEnd != -1 && thinkEnd > thinkStart {
			s = s[:thinkStart] + s[thinkEnd+len("</think>"):]
			s = strings.TrimSpace(s)
		}
	}
	return s
}

func (g *llmQuestionGenerator) callLLM(ctx context.Context, prompt string) (string, error) {
	l := logger.Get()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	response, err := g.llmClient.Call(ctx, prompt, llms.WithTemperature(0.1))
	if err != nil {
		if err == context.DeadlineExceeded {
			l.Error("LLM request timed out", zap.Error(err))
			return "", fmt.Errorf("LLM request timed out: %w", err)
		}
		l.Error("Failed to get response from LLM", zap.Error(err))
		return "", fmt.Errorf("LLM call failed: %w", err)
	}

	return response, nil
}
