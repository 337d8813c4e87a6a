package service

import (
	"fmt"
	"sort"

	"quiz-forge/internal/domain"
	"quiz-forge/internal/util"

	"go.uber.org/zap"
)

// ConsolidationAssembler merges the per-chunk question sets of a finished
// dispatch into one consolidated quiz, and optionally one quiz per chunk
// for traceability. It runs once per job, after the orchestrator has
// accounted for every chunk; the PROCESSING -> COMPLETED compare-and-set
// performed afterwards is what guards against duplicate consolidation, so
// an assembled quiz whose job lost that race is simply left unreferenced.
type ConsolidationAssembler interface {
	Assemble(job *domain.GenerationJob, req *domain.GenerationRequest, sets []domain.QuestionSet) (*domain.Quiz, []*domain.Quiz, error)
}

type consolidationAssembler struct {
	logger *zap.Logger
}

// NewConsolidationAssembler creates a new instance of consolidationAssembler.
func NewConsolidationAssembler(logger *zap.Logger) ConsolidationAssembler {
	return &consolidationAssembler{logger: logger}
}

// Assemble implements ConsolidationAssembler. The consolidated quiz holds
// the union of all chunk question sets in chunk order, carrying the title,
// difficulty and tags of the original request.
func (a *consolidationAssembler) Assemble(job *domain.GenerationJob, req *domain.GenerationRequest, sets []domain.QuestionSet) (*domain.Quiz, []*domain.Quiz, error) {
	if len(sets) == 0 {
		return nil, nil, domain.NewGenerationFailureError(fmt.Errorf("no question sets to consolidate for job %s", job.ID))
	}

	ordered := make([]domain.QuestionSet, len(sets))
	copy(ordered, sets)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ChunkIndex < ordered[j].ChunkIndex
	})

	consolidated := &domain.Quiz{
		ID:         util.NewULID(),
		JobID:      job.ID,
		UserID:     job.UserID,
		DocumentID: job.DocumentID,
		Title:      req.Title,
		Difficulty: req.Difficulty,
		Tags:       req.Tags,
	}

	var chunkQuizzes []*domain.Quiz
	for _, set := range ordered {
		if len(set.Questions) == 0 {
			continue
		}
		for _, gq := range set.Questions {
			consolidated.Questions = append(consolidated.Questions, toQuestion(gq, set.ChunkIndex))
		}

		if req.PerChunk {
			idx := set.ChunkIndex
			chunkQuiz := &domain.Quiz{
				ID:         util.NewULID(),
				JobID:      job.ID,
				UserID:     job.UserID,
				DocumentID: job.DocumentID,
				Title:      fmt.Sprintf("%s (chunk %d)", req.Title, idx+1),
				Difficulty: req.Difficulty,
				Tags:       req.Tags,
				ChunkIndex: &idx,
			}
			for _, gq := range set.Questions {
				chunkQuiz.Questions = append(chunkQuiz.Questions, toQuestion(gq, idx))
			}
			chunkQuizzes = append(chunkQuizzes, chunkQuiz)
		}
	}

	if len(consolidated.Questions) == 0 {
		return nil, nil, domain.NewGenerationFailureError(fmt.Errorf("all question sets were empty for job %s", job.ID))
	}
	consolidated.QuestionCount = len(consolidated.Questions)

	a.logger.Info("Consolidated quiz assembled",
		zap.String("job_id", job.ID),
		zap.String("quiz_id", consolidated.ID),
		zap.Int("questions", consolidated.QuestionCount),
		zap.Int("chunk_quizzes", len(chunkQuizzes)))

	return consolidated, chunkQuizzes, nil
}

func toQuestion(gq domain.GeneratedQuestion, chunkIndex int) domain.Question {
	return domain.Question{
		ID:          util.NewULID(),
		Text:        gq.Text,
		Type:        gq.Type,
		Options:     gq.Options,
		Answer:      gq.Answer,
		Explanation: gq.Explanation,
		ChunkIndex:  chunkIndex,
	}
}
