package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quiz-forge/internal/config"
	"quiz-forge/internal/domain"
	"quiz-forge/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChunkOrchestrator consumes committed jobs from the dispatch queue,
// plans and fans out per-chunk generation work, feeds results to the
// progress tracker and hands the full set to consolidation. Generation
// calls are the only long-blocking operations and run without any job-row
// state held; the row is touched before dispatch and after each result,
// never around the call itself.
type ChunkOrchestrator struct {
	jobs      JobService
	progress  ProgressTracker
	assembler ConsolidationAssembler
	jobRepo   domain.JobRepository
	quizRepo  domain.QuizRepository
	chunks    domain.ChunkProvider
	generator domain.QuestionGenerator
	queue     *DispatchQueue
	cfg       *config.Config
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewChunkOrchestrator creates a new instance of ChunkOrchestrator.
func NewChunkOrchestrator(
	jobs JobService,
	progress ProgressTracker,
	assembler ConsolidationAssembler,
	jobRepo domain.JobRepository,
	quizRepo domain.QuizRepository,
	chunks domain.ChunkProvider,
	generator domain.QuestionGenerator,
	queue *DispatchQueue,
	cfg *config.Config,
	logger *zap.Logger,
) *ChunkOrchestrator {
	return &ChunkOrchestrator{
		jobs:      jobs,
		progress:  progress,
		assembler: assembler,
		jobRepo:   jobRepo,
		quizRepo:  quizRepo,
		chunks:    chunks,
		generator: generator,
		queue:     queue,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start launches the dispatch consumer. It returns immediately; Wait
// blocks until the queue is closed and in-flight jobs have drained.
func (o *ChunkOrchestrator) Start(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case jobID, ok := <-o.queue.Chan():
				if !ok {
					return
				}
				metrics.JobsInFlight.Inc()
				o.processJob(ctx, jobID)
				metrics.JobsInFlight.Dec()
			}
		}
	}()
}

// Wait blocks until the consumer goroutine has exited.
func (o *ChunkOrchestrator) Wait() {
	o.wg.Wait()
}

// chunkResult carries one finished chunk through the collection phase.
type chunkResult struct {
	set *domain.QuestionSet
	err error
}

func (o *ChunkOrchestrator) processJob(ctx context.Context, jobID string) {
	logger := o.logger.With(zap.String("job_id", jobID))

	job, err := o.jobRepo.GetJobByID(ctx, jobID)
	if err != nil {
		logger.Error("Failed to load job for dispatch", zap.Error(err))
		return
	}
	if job == nil {
		logger.Warn("Dispatched job no longer exists")
		return
	}
	if job.Status.IsTerminal() {
		logger.Info("Dispatched job already terminal", zap.String("status", string(job.Status)))
		return
	}

	var req domain.GenerationRequest
	if err := json.Unmarshal([]byte(job.RequestData), &req); err != nil {
		o.failJob(ctx, jobID, fmt.Sprintf("corrupt request data: %v", err), logger)
		return
	}

	chunks, err := o.chunks.GetChunks(ctx, job.DocumentID)
	if err != nil {
		o.failJob(ctx, jobID, fmt.Sprintf("failed to load document chunks: %v", err), logger)
		return
	}
	if len(chunks) == 0 {
		o.failJob(ctx, jobID, "document produced no chunks", logger)
		return
	}

	tasksPerChunk := req.QuestionMix.TaskCount()
	totalTasks := len(chunks) * tasksPerChunk
	if _, err := o.progress.SetTotalTasks(ctx, jobID, len(chunks), totalTasks); err != nil {
		logger.Error("Failed to set task totals", zap.Error(err))
	}

	if err := o.jobs.MarkProcessing(ctx, jobID); err != nil {
		if domain.IsConcurrencyConflict(err) {
			// Cancelled (or reaped) between enqueue and pickup.
			logger.Info("Job no longer pending, dispatch abandoned")
			return
		}
		logger.Error("Failed to mark job processing", zap.Error(err))
		return
	}

	logger.Info("Dispatching chunk generation",
		zap.Int("chunks", len(chunks)),
		zap.Int("total_tasks", totalTasks))

	results := o.dispatchChunks(ctx, jobID, chunks, req.QuestionMix, logger)

	var sets []domain.QuestionSet
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		sets = append(sets, *r.set)
	}

	// In-flight chunk calls may have finished after a cancel was recorded;
	// a terminal job discards its results here.
	current, err := o.jobRepo.GetJobByID(ctx, jobID)
	if err != nil {
		logger.Error("Failed to re-read job after dispatch", zap.Error(err))
		return
	}
	if current == nil || current.Status.IsTerminal() {
		logger.Info("Job finished elsewhere, discarding chunk results",
			zap.Int("discarded_sets", len(sets)))
		return
	}

	if failureRatio(failed, len(chunks)) > o.cfg.Generator.MaxChunkFailureRatio {
		o.failJob(ctx, jobID,
			fmt.Sprintf("generation failed for %d of %d chunks", failed, len(chunks)), logger)
		return
	}

	consolidated, chunkQuizzes, err := o.assembler.Assemble(current, &req, sets)
	if err != nil {
		o.failJob(ctx, jobID, fmt.Sprintf("consolidation failed: %v", err), logger)
		return
	}

	if err := o.quizRepo.SaveQuiz(ctx, consolidated); err != nil {
		o.failJob(ctx, jobID, fmt.Sprintf("failed to persist consolidated quiz: %v", err), logger)
		return
	}
	for _, cq := range chunkQuizzes {
		if err := o.quizRepo.SaveQuiz(ctx, cq); err != nil {
			// Audit quizzes are best effort; the consolidated quiz is the deliverable.
			logger.Warn("Failed to persist per-chunk quiz",
				zap.String("quiz_id", cq.ID), zap.Error(err))
		}
	}

	if err := o.jobs.Complete(ctx, jobID, consolidated.ID, consolidated.QuestionCount); err != nil {
		if domain.IsConcurrencyConflict(err) {
			logger.Info("Completion lost the terminal race, quiz left unreferenced",
				zap.String("quiz_id", consolidated.ID))
			return
		}
		logger.Error("Failed to complete job", zap.Error(err))
	}
}

// dispatchChunks fans one generation call per chunk out over a bounded
// worker group and reports per-chunk outcomes in chunk order.
func (o *ChunkOrchestrator) dispatchChunks(ctx context.Context, jobID string, chunks []domain.Chunk, mix domain.QuestionMix, logger *zap.Logger) []chunkResult {
	results := make([]chunkResult, len(chunks))
	tasksPerChunk := mix.TaskCount()

	var done int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Generator.WorkerCount)

	for i := range chunks {
		chunk := chunks[i]
		g.Go(func() error {
			start := time.Now()
			set, err := o.generator.Generate(gctx, chunk.Text, mix)
			metrics.ChunkGenerationSeconds.Observe(time.Since(start).Seconds())

			if err != nil {
				metrics.ChunkFailures.Inc()
				logger.Warn("Chunk generation failed",
					zap.Int("chunk_index", chunk.Index),
					zap.Error(err))
				results[chunk.Index] = chunkResult{err: err}
			} else {
				set.ChunkIndex = chunk.Index
				results[chunk.Index] = chunkResult{set: set}
			}

			mu.Lock()
			done++
			label := fmt.Sprintf("chunk %d/%d done", done, len(chunks))
			processed := int(done)
			mu.Unlock()

			if err == nil {
				affected, incErr := o.progress.IncrementCompletedTasks(gctx, jobID, tasksPerChunk, label)
				if incErr != nil {
					logger.Error("Failed to record task progress",
						zap.Int("chunk_index", chunk.Index), zap.Error(incErr))
				} else if affected == 0 {
					// Job went terminal mid-flight; remaining increments
					// would be dropped the same way.
					logger.Debug("Progress increment dropped, job is terminal",
						zap.Int("chunk_index", chunk.Index))
				}
			}
			if _, chErr := o.progress.UpdateProcessedChunks(gctx, jobID, processed, label); chErr != nil {
				logger.Error("Failed to record chunk progress",
					zap.Int("chunk_index", chunk.Index), zap.Error(chErr))
			}
			return nil
		})
	}

	// Workers never return errors; failures are tolerated per chunk and
	// judged against the failure ratio afterwards.
	_ = g.Wait()
	return results
}

func (o *ChunkOrchestrator) failJob(ctx context.Context, jobID, message string, logger *zap.Logger) {
	if err := o.jobs.Fail(ctx, jobID, message); err != nil {
		if domain.IsConcurrencyConflict(err) {
			logger.Info("Failure transition lost the terminal race")
			return
		}
		logger.Error("Failed to record job failure", zap.Error(err))
	}
}

func failureRatio(failed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
