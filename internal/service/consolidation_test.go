package service

import (
	"testing"

	"quiz-forge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func assembleFixtures() (*domain.GenerationJob, *domain.GenerationRequest, []domain.QuestionSet) {
	job := &domain.GenerationJob{ID: "job1", UserID: "user1", DocumentID: "doc1"}
	req := &domain.GenerationRequest{
		DocumentID: "doc1",
		Title:      "Networking Basics",
		Difficulty: "medium",
		Tags:       []string{"tcp"},
		QuestionMix: domain.QuestionMix{
			domain.QuestionTypeShortAnswer: 1,
		},
	}
	sets := []domain.QuestionSet{
		{ChunkIndex: 1, Questions: []domain.GeneratedQuestion{
			{Text: "Q-from-chunk-1", Type: domain.QuestionTypeShortAnswer, Answer: "A1"},
		}},
		{ChunkIndex: 0, Questions: []domain.GeneratedQuestion{
			{Text: "Q-from-chunk-0", Type: domain.QuestionTypeShortAnswer, Answer: "A0"},
		}},
	}
	return job, req, sets
}

func TestAssembleOrdersByChunk(t *testing.T) {
	assembler := NewConsolidationAssembler(zap.NewNop())
	job, req, sets := assembleFixtures()

	consolidated, chunkQuizzes, err := assembler.Assemble(job, req, sets)
	require.NoError(t, err)
	require.NotNil(t, consolidated)
	assert.Empty(t, chunkQuizzes)

	assert.Equal(t, "job1", consolidated.JobID)
	assert.Equal(t, "Networking Basics", consolidated.Title)
	assert.Nil(t, consolidated.ChunkIndex)
	assert.Equal(t, 2, consolidated.QuestionCount)
	require.Len(t, consolidated.Questions, 2)
	// Sets arrive out of order; the consolidated quiz is chunk-ordered.
	assert.Equal(t, "Q-from-chunk-0", consolidated.Questions[0].Text)
	assert.Equal(t, "Q-from-chunk-1", consolidated.Questions[1].Text)
	assert.Equal(t, 0, consolidated.Questions[0].ChunkIndex)
	assert.NotEmpty(t, consolidated.Questions[0].ID)
}

func TestAssemblePerChunkQuizzes(t *testing.T) {
	assembler := NewConsolidationAssembler(zap.NewNop())
	job, req, sets := assembleFixtures()
	req.PerChunk = true

	consolidated, chunkQuizzes, err := assembler.Assemble(job, req, sets)
	require.NoError(t, err)
	require.Len(t, chunkQuizzes, 2)

	require.NotNil(t, chunkQuizzes[0].ChunkIndex)
	assert.Equal(t, 0, *chunkQuizzes[0].ChunkIndex)
	assert.Equal(t, "Networking Basics (chunk 1)", chunkQuizzes[0].Title)
	require.NotNil(t, chunkQuizzes[1].ChunkIndex)
	assert.Equal(t, 1, *chunkQuizzes[1].ChunkIndex)

	// Distinct quiz IDs across the consolidated and chunk quizzes.
	assert.NotEqual(t, consolidated.ID, chunkQuizzes[0].ID)
	assert.NotEqual(t, chunkQuizzes[0].ID, chunkQuizzes[1].ID)
}

func TestAssembleSkipsEmptySets(t *testing.T) {
	assembler := NewConsolidationAssembler(zap.NewNop())
	job, req, sets := assembleFixtures()
	sets = append(sets, domain.QuestionSet{ChunkIndex: 2})

	consolidated, _, err := assembler.Assemble(job, req, sets)
	require.NoError(t, err)
	assert.Equal(t, 2, consolidated.QuestionCount)
}

func TestAssembleNoSets(t *testing.T) {
	assembler := NewConsolidationAssembler(zap.NewNop())
	job, req, _ := assembleFixtures()

	_, _, err := assembler.Assemble(job, req, nil)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrGenerationFailure, domainErr.Code)
}

func TestAssembleAllSetsEmpty(t *testing.T) {
	assembler := NewConsolidationAssembler(zap.NewNop())
	job, req, _ := assembleFixtures()

	_, _, err := assembler.Assemble(job, req, []domain.QuestionSet{{ChunkIndex: 0}})
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrGenerationFailure, domainErr.Code)
}
