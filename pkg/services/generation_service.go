package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/logging"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/metrics"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/models"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/repositories"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/retry"
)

// GenerationService drafts answers for every question of a questionnaire in
// a background job. Jobs are persisted so callers can poll progress, and can
// be cancelled.
type GenerationService interface {
	// Start validates the questionnaire and dispatches a job, or returns the
	// job already running for it.
	Start(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error)

	GetJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error)

	// GetLatestJob returns the most recent job of a questionnaire.
	GetLatestJob(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error)

	// Cancel stops a job. Questions not yet processed are left untouched.
	Cancel(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error)

	// Shutdown cancels every job running in this process and waits for them
	// to record their final status.
	Shutdown(ctx context.Context) error
}

// AnswerDrafter produces one answer. Implemented by *AnswerGenerator.
type AnswerDrafter interface {
	Generate(ctx context.Context, question *models.Question, corpus string) (string, error)
}

// CorpusSource supplies the policy text answers are grounded on.
type CorpusSource interface {
	Corpus(ctx context.Context) (string, error)
}

// GenerationConfig tunes the batch loop.
type GenerationConfig struct {
	// Throttle is the minimum spacing between provider calls.
	Throttle time.Duration
	// MaxRetries bounds retries of one question on retryable provider errors.
	MaxRetries int
	// LockTTL is how long the questionnaire lock survives without a refresh.
	LockTTL time.Duration
	// Retry overrides the backoff derived from MaxRetries.
	Retry *retry.Config
}

type generationService struct {
	questionnaireRepo repositories.QuestionnaireRepository
	questionRepo      repositories.QuestionRepository
	jobRepo           repositories.GenerationJobRepository
	corpus            CorpusSource
	drafter           AnswerDrafter
	locker            JobLocker
	getScopeCtx       ScopeContextFunc
	metrics           *metrics.Metrics
	logger            *zap.Logger

	lockTTL  time.Duration
	retryCfg retry.Config
	limiter  *rate.Limiter

	activeJobs sync.Map // jobID -> *runningJob
	wg         sync.WaitGroup
}

// runningJob is a job executing in this process. done is closed after the
// job has recorded its final status and released its lock.
type runningJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(
	questionnaireRepo repositories.QuestionnaireRepository,
	questionRepo repositories.QuestionRepository,
	jobRepo repositories.GenerationJobRepository,
	corpus CorpusSource,
	drafter AnswerDrafter,
	locker JobLocker,
	getScopeCtx ScopeContextFunc,
	cfg GenerationConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) GenerationService {
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.ProviderConfig(cfg.MaxRetries)
	}

	limit := rate.Inf
	if cfg.Throttle > 0 {
		limit = rate.Every(cfg.Throttle)
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}

	return &generationService{
		questionnaireRepo: questionnaireRepo,
		questionRepo:      questionRepo,
		jobRepo:           jobRepo,
		corpus:            corpus,
		drafter:           drafter,
		locker:            locker,
		getScopeCtx:       getScopeCtx,
		metrics:           m,
		logger:            logger.Named("generation"),
		lockTTL:           lockTTL,
		retryCfg:          *retryCfg,
		limiter:           rate.NewLimiter(limit, 1),
	}
}

var _ GenerationService = (*generationService)(nil)

func (s *generationService) Start(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	if _, err := s.questionnaireRepo.Get(ctx, questionnaireID); err != nil {
		return nil, err
	}

	existing, err := s.jobRepo.GetActiveByQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if _, ours := s.activeJobs.Load(existing.ID); ours {
			s.logger.Info("Returning existing active job",
				zap.String("job_id", existing.ID.String()),
				zap.String("questionnaire_id", questionnaireID.String()))
			return existing, nil
		}
	}

	questions, err := s.questionRepo.ListByQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, apperrors.ErrNoQuestionsFound
	}

	corpus, err := s.corpus.Corpus(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(corpus) == "" {
		return nil, apperrors.ErrNoPolicyContext
	}

	lockKey := GenerationLockKey(questionnaireID)
	acquired, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		if existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("generation already running for questionnaire %s: %w", questionnaireID, apperrors.ErrConflict)
	}

	// An active record nobody holds the lock for belongs to a process that
	// stopped mid-run.
	if existing != nil {
		msg := "generation stopped without completing"
		if _, err := s.jobRepo.UpdateStatus(ctx, existing.ID, models.JobStatusFailed, &msg); err != nil {
			s.releaseLock(lockKey)
			return nil, err
		}
		s.logger.Warn("Marked abandoned job as failed", zap.String("job_id", existing.ID.String()))
	}

	now := time.Now()
	job := &models.GenerationJob{
		QuestionnaireID: questionnaireID,
		Status:          models.JobStatusRunning,
		TotalQuestions:  len(questions),
		Errors:          []models.JobError{},
		StartedAt:       &now,
	}
	if _, err := s.jobRepo.Create(ctx, job); err != nil {
		s.releaseLock(lockKey)
		if errors.Is(err, apperrors.ErrConflict) {
			if active, getErr := s.jobRepo.GetActiveByQuestionnaire(ctx, questionnaireID); getErr == nil && active != nil {
				return active, nil
			}
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &runningJob{cancel: cancel, done: make(chan struct{})}
	s.activeJobs.Store(job.ID, run)
	s.wg.Add(1)
	s.metrics.ActiveJobs.Inc()

	snapshot := *job
	snapshot.Errors = []models.JobError{}
	go s.execute(runCtx, run, &snapshot, questions, corpus)

	s.logger.Info("Generation job started",
		zap.String("job_id", job.ID.String()),
		zap.String("questionnaire_id", questionnaireID.String()),
		zap.Int("questions", len(questions)))

	return job, nil
}

func (s *generationService) GetJob(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	return s.jobRepo.Get(ctx, jobID)
}

func (s *generationService) GetLatestJob(ctx context.Context, questionnaireID uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.jobRepo.GetLatestByQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("no generation job for questionnaire %s: %w", questionnaireID, apperrors.ErrNotFound)
	}
	return job, nil
}

func (s *generationService) Cancel(ctx context.Context, jobID uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.jobRepo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}

	s.logger.Info("Cancelling generation job", zap.String("job_id", jobID.String()))

	// A local job is waited for, so its lock is free once Cancel returns.
	if v, ok := s.activeJobs.Load(jobID); ok {
		run := v.(*runningJob)
		run.cancel()
		select {
		case <-run.done:
		case <-ctx.Done():
			s.logger.Warn("Job did not stop before cancel deadline", zap.String("job_id", jobID.String()))
		}
	}

	updated, err := s.jobRepo.UpdateStatus(ctx, jobID, models.JobStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	if updated {
		s.metrics.GenerationJobs.WithLabelValues(string(models.JobStatusCancelled)).Inc()
	}

	return s.jobRepo.Get(ctx, jobID)
}

func (s *generationService) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down generation service")

	s.activeJobs.Range(func(key, value any) bool {
		s.logger.Info("Cancelling job for shutdown", zap.String("job_id", key.(uuid.UUID).String()))
		value.(*runningJob).cancel()
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute runs the batch loop. Database writes use their own scope so a
// cancelled job can still record its final state.
func (s *generationService) execute(ctx context.Context, run *runningJob, job *models.GenerationJob, questions []*models.Question, corpus string) {
	lockKey := GenerationLockKey(job.QuestionnaireID)

	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Generation job panicked",
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			s.finish(job, models.JobStatusFailed, fmt.Sprintf("panic during generation: %v", r))
		}

		run.cancel()
		s.activeJobs.Delete(job.ID)
		s.metrics.ActiveJobs.Dec()
		s.releaseLock(lockKey)
		close(run.done)
	}()

	dbCtx, cleanup, err := s.getScopeCtx(context.Background())
	if err != nil {
		s.logger.Error("Failed to acquire database scope", zap.Error(err))
		s.finish(job, models.JobStatusFailed, "failed to acquire database connection")
		return
	}
	defer cleanup()

	for _, q := range questions {
		answer, err := s.generate(ctx, job, q, corpus)
		if err != nil && ctx.Err() != nil {
			s.finish(job, models.JobStatusCancelled, "")
			return
		}

		switch {
		case err != nil:
			job.RecordFailure(q.ID, logging.SanitizeError(err))
		default:
			if perr := s.persistAnswer(dbCtx, q.ID, answer); perr != nil {
				s.logger.Error("Failed to store generated answer",
					zap.String("question_id", q.ID.String()),
					zap.Error(perr))
				job.RecordFailure(q.ID, logging.SanitizeError(perr))
			} else {
				job.RecordSuccess()
			}
		}

		if _, err := s.jobRepo.UpdateProgress(dbCtx, job); err != nil {
			s.logger.Warn("Failed to persist job progress", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
		if err := s.locker.Refresh(dbCtx, lockKey, s.lockTTL); err != nil {
			s.logger.Warn("Failed to refresh job lock", zap.String("job_id", job.ID.String()), zap.Error(err))
		}

		// Another instance may have cancelled the job through the store.
		if current, err := s.jobRepo.Get(dbCtx, job.ID); err == nil && current.Status.IsTerminal() {
			s.logger.Info("Job stopped externally",
				zap.String("job_id", job.ID.String()),
				zap.String("status", string(current.Status)))
			return
		}
	}

	s.finish(job, models.JobStatusCompleted, "")
}

// generate drafts one answer, retrying retryable provider errors.
func (s *generationService) generate(ctx context.Context, job *models.GenerationJob, q *models.Question, corpus string) (string, error) {
	cfg := s.retryCfg
	cfg.OnRetry = func(attempt int, err error) {
		s.logger.Warn("Retrying answer generation",
			zap.String("job_id", job.ID.String()),
			zap.String("question_id", q.ID.String()),
			zap.Int("attempt", attempt),
			zap.String("error", logging.SanitizeError(err)))
	}

	start := time.Now()
	// Every attempt, retries included, takes a limiter token.
	answer, err := retry.DoIfRetryableWithResult(ctx, &cfg, func() (string, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return s.drafter.Generate(ctx, q, corpus)
	})
	s.metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.GenerationCalls.WithLabelValues("failure").Inc()
		s.logger.Warn("Answer generation failed",
			zap.String("job_id", job.ID.String()),
			zap.String("question_id", q.ID.String()),
			zap.String("error", logging.SanitizeError(err)))
		return "", err
	}

	s.metrics.GenerationCalls.WithLabelValues("success").Inc()
	return answer, nil
}

func (s *generationService) persistAnswer(ctx context.Context, questionID uuid.UUID, answer string) error {
	updated, err := s.questionRepo.UpdateAnswerAndStatus(ctx, questionID, answer,
		models.QuestionStatusUnapproved, models.AnswerSourceGenerated)
	if err != nil {
		return err
	}
	if !updated {
		return fmt.Errorf("question %s: %w", questionID, apperrors.ErrNotFound)
	}
	return nil
}

// finish records the final counters and status with a fresh scope.
func (s *generationService) finish(job *models.GenerationJob, status models.JobStatus, errMsg string) {
	ctx, cleanup, err := s.getScopeCtx(context.Background())
	if err != nil {
		s.logger.Error("Failed to acquire scope for finishing job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
		return
	}
	defer cleanup()

	if _, err := s.jobRepo.UpdateProgress(ctx, job); err != nil {
		s.logger.Error("Failed to persist final job progress", zap.String("job_id", job.ID.String()), zap.Error(err))
	}

	var msg *string
	if errMsg != "" {
		sanitized := logging.SanitizeMessage(errMsg)
		msg = &sanitized
	}

	updated, err := s.jobRepo.UpdateStatus(ctx, job.ID, status, msg)
	if err != nil {
		s.logger.Error("Failed to update job status",
			zap.String("job_id", job.ID.String()),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	if !updated {
		// already terminal, e.g. cancelled through Cancel
		return
	}

	s.metrics.GenerationJobs.WithLabelValues(string(status)).Inc()
	s.logger.Info("Generation job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", string(status)),
		zap.Int("processed", job.Processed),
		zap.Int("succeeded", job.Succeeded),
		zap.Int("failed", job.Failed))
}

func (s *generationService) releaseLock(key string) {
	if err := s.locker.Release(context.Background(), key); err != nil {
		s.logger.Warn("Failed to release job lock", zap.String("key", key), zap.Error(err))
	}
}
