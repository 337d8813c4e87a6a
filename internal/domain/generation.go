package domain

import "context"

// QuestionType identifies one kind of question the generator can produce.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// ValidQuestionType reports whether t is a supported question type.
func ValidQuestionType(t QuestionType) bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeShortAnswer:
		return true
	}
	return false
}

// QuestionMix is the requested number of questions per type, applied to
// every chunk. One (type, chunk) pair is one task for progress purposes.
type QuestionMix map[QuestionType]int

// TaskCount returns the number of tasks the mix produces per chunk.
func (m QuestionMix) TaskCount() int {
	return len(m)
}

// QuestionCount returns the total questions requested per chunk.
func (m QuestionMix) QuestionCount() int {
	total := 0
	for _, n := range m {
		total += n
	}
	return total
}

// Validate validates the question mix
func (m QuestionMix) Validate() error {
	if len(m) == 0 {
		return NewValidationError("at least one question type is required")
	}
	for t, n := range m {
		if !ValidQuestionType(t) {
			return NewValidationError("unsupported question type: " + string(t))
		}
		if n <= 0 {
			return NewValidationError("question count must be positive for type " + string(t))
		}
	}
	return nil
}

// GenerationRequest is the original request a job was created from. A
// serialized copy is stored on the job row for audit and self-heal.
type GenerationRequest struct {
	DocumentID  string      `json:"document_id"`
	Title       string      `json:"title"`
	Difficulty  string      `json:"difficulty"`
	Tags        []string    `json:"tags,omitempty"`
	QuestionMix QuestionMix `json:"question_mix"`
	PerChunk    bool        `json:"per_chunk"` // also persist one quiz per chunk for traceability
}

// Validate validates the generation request
func (r *GenerationRequest) Validate() error {
	if r.DocumentID == "" {
		return NewValidationError("document ID is required")
	}
	if r.Title == "" {
		return NewValidationError("title is required")
	}
	return r.QuestionMix.Validate()
}

// Chunk is a bounded slice of a source document, processed independently.
type Chunk struct {
	Index int
	Text  string
}

// GeneratedQuestion is a single question produced by the generation
// capability for one chunk.
type GeneratedQuestion struct {
	Text        string       `json:"text"`
	Type        QuestionType `json:"type"`
	Options     []string     `json:"options,omitempty"`
	Answer      string       `json:"answer"`
	Explanation string       `json:"explanation,omitempty"`
}

// QuestionSet is the result of one chunk generation call.
type QuestionSet struct {
	ChunkIndex int
	Questions  []GeneratedQuestion
}

// ChunkProvider supplies the ordered chunks of a source document.
type ChunkProvider interface {
	GetChunks(ctx context.Context, documentID string) ([]Chunk, error)
}

// QuestionGenerator is the external generation capability. Calls may be
// slow and unreliable; they must never be made while holding job-row state.
type QuestionGenerator interface {
	Generate(ctx context.Context, chunkText string, mix QuestionMix) (*QuestionSet, error)
}

// BillingService is the external cost-accounting collaborator. The
// reservation made at job creation is settled exactly once, at the first
// terminal transition.
type BillingService interface {
	Reserve(ctx context.Context, userID string, estimatedCost int64) (reservationID string, err error)
	Commit(ctx context.Context, reservationID string, amount int64) error
	Release(ctx context.Context, reservationID string) error
}
