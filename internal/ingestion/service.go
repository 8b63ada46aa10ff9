package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rpattn/tradeflow/internal/auth"
	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/metrics"
	"github.com/rpattn/tradeflow/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultJobTimeout            = 30 * time.Minute
	defaultMaxConcurrentJobs     = 4
	defaultEnrichmentConcurrency = 4
	defaultEnrichmentTimeout     = 5 * time.Minute
	analysisSampleSize           = 10
)

var (
	// ErrServiceClosed is returned by SubmitImport after Shutdown.
	ErrServiceClosed = errors.New("import service is shutting down")

	errJobNotRunnable = errors.New("import job is no longer runnable")
)

// Service runs import jobs in detached workers and exposes their state for polling.
type Service struct {
	jobs      JobStatusStore
	shipments ShipmentStore
	errorLog  ErrorLog
	files     FileStore
	analyzer  Analyzer
	companies CompanyEnricher

	enricher  *Enricher
	validator *Validator
	writer    *BatchWriter

	parseOptions          ParseOptions
	jobTimeout            time.Duration
	maxConcurrentJobs     int64
	batchSize             int
	batchPause            time.Duration
	reportInterval        int
	analysisRequired      bool
	departments           []string
	enrichmentConcurrency int
	enrichmentTimeout     time.Duration
	now                   func() time.Time

	slots    *semaphore.Weighted
	workers  sync.WaitGroup
	stopping context.Context
	stop     context.CancelFunc
	closeMu  sync.RWMutex
	closed   bool
}

// Option customises a Service.
type Option func(*Service)

func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

func WithMaxConcurrentJobs(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrentJobs = int64(n)
		}
	}
}

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithBatchPause sets the pause between write batches. A negative value disables it.
func WithBatchPause(pause time.Duration) Option {
	return func(s *Service) {
		s.batchPause = pause
	}
}

func WithMaxSpreadsheetBytes(limit int64) Option {
	return func(s *Service) {
		if limit > 0 {
			s.parseOptions.MaxSpreadsheetBytes = limit
		}
	}
}

func WithReportInterval(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.reportInterval = n
		}
	}
}

// WithAnalyzer wires the file analysis service. Without it analysis is skipped.
func WithAnalyzer(analyzer Analyzer) Option {
	return func(s *Service) {
		s.analyzer = analyzer
	}
}

// WithAnalysisRequired controls whether an analysis failure fails the job.
func WithAnalysisRequired(required bool) Option {
	return func(s *Service) {
		s.analysisRequired = required
	}
}

// WithCompanyEnricher wires the company enrichment queue and the departments sent with each company.
func WithCompanyEnricher(enricher CompanyEnricher, departments []string, concurrency int) Option {
	return func(s *Service) {
		s.companies = enricher
		s.departments = append([]string(nil), departments...)
		if concurrency > 0 {
			s.enrichmentConcurrency = concurrency
		}
	}
}

// WithEnrichmentTimeout bounds how long a completed job's companies may take to queue.
func WithEnrichmentTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.enrichmentTimeout = timeout
		}
	}
}

// WithClock overrides the processing clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new import service.
func NewService(jobs JobStatusStore, shipments ShipmentStore, errorLog ErrorLog, files FileStore, opts ...Option) *Service {
	service := &Service{
		jobs:                  jobs,
		shipments:             shipments,
		errorLog:              errorLog,
		files:                 files,
		parseOptions:          ParseOptions{MaxSpreadsheetBytes: DefaultMaxSpreadsheetBytes},
		jobTimeout:            defaultJobTimeout,
		maxConcurrentJobs:     defaultMaxConcurrentJobs,
		batchSize:             DefaultBatchSize,
		batchPause:            DefaultBatchPause,
		reportInterval:        DefaultReportInterval,
		analysisRequired:      true,
		enrichmentConcurrency: defaultEnrichmentConcurrency,
		enrichmentTimeout:     defaultEnrichmentTimeout,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}

	service.enricher = NewEnricher(service.now, service.reportInterval)
	service.validator = NewValidator()
	service.writer = NewBatchWriter(shipments, errorLog, service.batchSize, service.batchPause)
	service.slots = semaphore.NewWeighted(service.maxConcurrentJobs)
	service.stopping, service.stop = context.WithCancel(context.Background())
	return service
}

// SubmitRequest describes an uploaded file to import.
type SubmitRequest struct {
	OrganizationID uuid.UUID
	FilePath       string
	FileName       string
	DeclaredFormat string
}

// SubmitImport persists a queued job and schedules its worker. It does not wait for processing.
func (s *Service) SubmitImport(ctx context.Context, req SubmitRequest) (domain.ImportJob, error) {
	if err := auth.EnforceOrganizationScope(ctx, req.OrganizationID); err != nil {
		return domain.ImportJob{}, err
	}
	filePath := strings.TrimSpace(req.FilePath)
	if filePath == "" {
		return domain.ImportJob{}, fmt.Errorf("%w: file path is required", ErrInvalidRequest)
	}
	if owner, ok := pathOrganization(filePath); ok && owner != req.OrganizationID {
		return domain.ImportJob{}, fmt.Errorf("%w: file %q belongs to another organization", auth.ErrScopeMismatch, filePath)
	}
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		fileName = filepath.Base(filePath)
	}

	// An unsupported format still produces a job; its worker records the failure.
	format, _ := DetectFormat(fileName, req.DeclaredFormat)

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return domain.ImportJob{}, ErrServiceClosed
	}

	job, err := s.jobs.Create(ctx, domain.ImportJob{
		OrganizationID: req.OrganizationID,
		FilePath:       filePath,
		FileName:       fileName,
		FileFormat:     format,
		Status:         domain.ImportJobStatusQueued,
	})
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("create import job: %w", err)
	}

	slog.InfoContext(ctx, "import job queued", "job", job.ID, "organization", job.OrganizationID, "file", job.FileName, "format", job.FileFormat)
	s.launchWorker(job, req.DeclaredFormat)
	return job, nil
}

// pathOrganization reads the tenant prefix of an upload key written as <organization>/<file>.
func pathOrganization(filePath string) (uuid.UUID, bool) {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(filePath, "\\", "/")), "/")
	first, _, found := strings.Cut(cleaned, "/")
	if !found {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(first)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// GetJobStatus returns the current state of a job.
func (s *Service) GetJobStatus(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	if id == uuid.Nil {
		return domain.ImportJob{}, fmt.Errorf("%w: job ID is required", ErrInvalidRequest)
	}
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if scoped, ok := auth.OrganizationIDFromContext(ctx); ok && scoped != job.OrganizationID {
		return domain.ImportJob{}, fmt.Errorf("get import job %s: %w", id, repository.ErrNotFound)
	}
	return job, nil
}

// ListJobs returns an organization's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]domain.ImportJob, error) {
	if err := auth.EnforceOrganizationScope(ctx, organizationID); err != nil {
		return nil, err
	}
	return s.jobs.List(ctx, organizationID, limit, offset)
}

// GetJobErrors returns the row and job level errors recorded for a job.
func (s *Service) GetJobErrors(ctx context.Context, id uuid.UUID, limit, offset int) ([]domain.ImportError, error) {
	if _, err := s.GetJobStatus(ctx, id); err != nil {
		return nil, err
	}
	return s.errorLog.List(ctx, id, limit, offset)
}

// Shutdown stops accepting jobs, fails jobs still waiting for a slot, and waits for running workers.
func (s *Service) Shutdown(ctx context.Context) error {
	s.closeMu.Lock()
	s.closed = true
	s.closeMu.Unlock()
	s.stop()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every launched worker has returned.
func (s *Service) Wait() {
	s.workers.Wait()
}

// jobRun carries the mutable state of one worker.
type jobRun struct {
	job      domain.ImportJob
	declared string
	stage    domain.ImportJobStatus
	started  time.Time

	mu       sync.Mutex
	metadata domain.ProcessingMetadata

	// companies inserted by a completed run, queued for enrichment after the slot is released.
	companies []string
}

func (r *jobRun) snapshot() domain.ProcessingMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata
}

func (r *jobRun) update(fn func(*domain.ProcessingMetadata)) domain.ProcessingMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.metadata)
	return r.metadata
}

func (s *Service) launchWorker(job domain.ImportJob, declared string) {
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()

		run := &jobRun{job: job, declared: declared, stage: domain.ImportJobStatusQueued}
		if err := s.slots.Acquire(s.stopping, 1); err != nil {
			s.failJob(context.Background(), run, &StageError{
				Code:  domain.ErrorCodeInternal,
				Stage: domain.ImportJobStatusQueued,
				Err:   ErrServiceClosed,
			})
			return
		}
		metrics.JobsRunning.Inc()
		var releaseOnce sync.Once
		release := func() {
			releaseOnce.Do(func() {
				metrics.JobsRunning.Dec()
				s.slots.Release(1)
			})
		}
		defer release()
		run.started = time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic while processing import job", "job", job.ID, "stage", run.stage, "panic", rec)
				s.failJob(context.Background(), run, &StageError{
					Code:  domain.ErrorCodeInternal,
					Stage: run.stage,
					Err:   fmt.Errorf("panic: %v", rec),
				})
			}
		}()

		if err := s.run(ctx, run); err != nil {
			if errors.Is(err, errJobNotRunnable) {
				slog.Warn("import job not runnable, skipping", "job", job.ID, "stage", run.stage, "error", err)
				return
			}
			s.failJob(ctx, run, asStageError(run.stage, err))
			return
		}

		release()
		s.dispatchCompanies(job, run.companies)
	}()
}

func (s *Service) run(ctx context.Context, run *jobRun) error {
	job := run.job
	logger := slog.With("job", job.ID, "organization", job.OrganizationID)

	if err := s.advance(ctx, run, domain.ImportJobStatusProcessing); err != nil {
		return err
	}

	records, err := s.load(ctx, run)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: file contained no readable rows", ErrNoValidRecords)
	}
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeParsed).Add(float64(len(records)))

	if err := s.advance(ctx, run, domain.ImportJobStatusParsed); err != nil {
		return err
	}
	parsed := len(records)
	if err := s.progress(ctx, run, domain.JobProgress{TotalRecords: &parsed}, func(m *domain.ProcessingMetadata) {
		m.RecordsParsed = parsed
	}); err != nil {
		return err
	}
	logger.InfoContext(ctx, "import file parsed", "records", parsed, "rejected", run.snapshot().RecordsRejected)

	if err := s.advance(ctx, run, domain.ImportJobStatusEnriching); err != nil {
		return err
	}
	enriched, err := s.enrich(ctx, run, records)
	if err != nil {
		return err
	}

	valid, rejected := s.validator.Partition(enriched)
	for _, rejection := range rejected {
		s.recordRowError(ctx, run, rejection.Record, domain.ErrorCodeRowValidationFailure, rejection.Result.Error())
	}
	s.countRejected(run, len(rejected))
	if len(valid) == 0 {
		return fmt.Errorf("%w: every record failed validation", ErrNoValidRecords)
	}

	if err := s.advance(ctx, run, domain.ImportJobStatusProcessingBatches); err != nil {
		return err
	}
	validated := len(valid)
	totalBatches := (validated + s.writer.BatchSize() - 1) / s.writer.BatchSize()
	if err := s.progress(ctx, run, domain.JobProgress{TotalRecords: &validated}, func(m *domain.ProcessingMetadata) {
		m.RecordsValidated = validated
		m.BatchSize = s.writer.BatchSize()
		m.TotalBatches = totalBatches
		m.CurrentBatch = 0
		m.ProgressPercentage = 0
	}); err != nil {
		return err
	}

	result, err := s.writer.Write(ctx, WriteRequest{
		JobID:          job.ID,
		OrganizationID: job.OrganizationID,
		Records:        valid,
	}, func(ctx context.Context, batch BatchProgress) error {
		return s.progress(ctx, run, domain.JobProgress{
			ProcessedRecords: batch.Processed,
			DuplicateRecords: batch.Duplicates,
			ErrorRecords:     batch.Errors,
		}, func(m *domain.ProcessingMetadata) {
			m.CurrentBatch = batch.CurrentBatch
			m.TotalBatches = batch.TotalBatches
			m.ProgressPercentage = batch.Percentage
		})
	})
	if err != nil {
		return err
	}

	final := run.update(func(m *domain.ProcessingMetadata) {
		m.ProgressPercentage = 100
		m.CurrentBatch = result.Batches
	})
	if err := s.jobs.MarkCompleted(ctx, job.ID, domain.JobProgress{
		TotalRecords:     &validated,
		ProcessedRecords: result.Processed,
		DuplicateRecords: result.Duplicates,
		ErrorRecords:     result.Errors,
		Metadata:         final,
	}); err != nil {
		if errors.Is(err, repository.ErrJobStatusConflict) {
			return fmt.Errorf("%w: %v", errJobNotRunnable, err)
		}
		return err
	}
	run.stage = domain.ImportJobStatusCompleted

	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeInserted).Add(float64(result.Processed))
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeDuplicate).Add(float64(result.Duplicates))
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeError).Add(float64(result.Errors))
	metrics.JobsTotal.WithLabelValues(string(domain.ImportJobStatusCompleted), "").Inc()
	metrics.JobDurationSeconds.WithLabelValues(string(domain.ImportJobStatusCompleted)).Observe(time.Since(run.started).Seconds())
	logger.InfoContext(ctx, "import job completed",
		"inserted", result.Processed,
		"duplicates", result.Duplicates,
		"errors", result.Errors,
		"batches", result.Batches,
	)

	run.companies = result.Companies
	return nil
}

// load downloads, parses and normalizes the job's file.
func (s *Service) load(ctx context.Context, run *jobRun) ([]domain.TradeRecord, error) {
	job := run.job
	format := job.FileFormat
	if format == domain.FileFormatUnknown {
		if _, err := DetectFormat(job.FileName, run.declared); err != nil {
			return nil, err
		}
	}

	if err := s.checkSize(ctx, job); err != nil {
		return nil, err
	}

	payload, err := s.files.Download(ctx, job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	parsed, err := Parse(payload, format, s.parseOptions)
	if err != nil {
		return nil, err
	}

	for _, issue := range parsed.Skipped {
		s.recordIssue(ctx, run, issue)
	}
	s.countRejected(run, len(parsed.Skipped))

	records := make([]domain.TradeRecord, 0, len(parsed.Records))
	for _, raw := range parsed.Records {
		records = append(records, NormalizeRecord(raw))
	}
	return records, nil
}

// checkSize rejects oversized spreadsheets before their bytes are pulled into memory.
func (s *Service) checkSize(ctx context.Context, job domain.ImportJob) error {
	sized, ok := s.files.(SizedFileStore)
	if !ok || job.FileFormat != domain.FileFormatXLSX {
		return nil
	}
	limit := s.parseOptions.MaxSpreadsheetBytes
	if limit <= 0 {
		limit = DefaultMaxSpreadsheetBytes
	}
	size, err := sized.Size(ctx, job.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, limit)
	}
	return nil
}

// enrich runs the enricher and the file analysis call side by side. A required analysis
// failure cancels enrichment.
func (s *Service) enrich(ctx context.Context, run *jobRun, records []domain.TradeRecord) ([]domain.TradeRecord, error) {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return s.analyze(gctx, run, records)
	})

	var (
		enriched []domain.TradeRecord
		failures []EnrichFailure
	)
	group.Go(func() error {
		var err error
		enriched, failures, err = s.enricher.Enrich(gctx, records, func(ctx context.Context, done, total int) error {
			return s.progress(ctx, run, domain.JobProgress{}, func(m *domain.ProcessingMetadata) {
				m.EnrichmentProgress = percentage(done, total)
			})
		})
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	for _, failure := range failures {
		s.recordRowError(ctx, run, failure.Record, domain.ErrorCodeRowValidationFailure, failure.Err.Error())
	}
	s.countRejected(run, len(failures))
	return enriched, nil
}

func (s *Service) analyze(ctx context.Context, run *jobRun, records []domain.TradeRecord) error {
	if s.analyzer == nil {
		run.update(func(m *domain.ProcessingMetadata) {
			m.Analysis = &domain.AnalysisSummary{Status: "skipped"}
		})
		return nil
	}

	sample := make([]map[string]string, 0, analysisSampleSize)
	for _, record := range records {
		if len(sample) == analysisSampleSize {
			break
		}
		sample = append(sample, record.Raw)
	}

	guidance, err := s.analyzer.Analyze(ctx, AnalysisRequest{
		Sample:     sample,
		Format:     run.job.FileFormat,
		FileName:   run.job.FileName,
		TotalCount: len(records),
	})
	if err != nil {
		metrics.AnalysisRequestsTotal.WithLabelValues("failure").Inc()
		run.update(func(m *domain.ProcessingMetadata) {
			m.Analysis = &domain.AnalysisSummary{Status: "failed", Error: truncateError(err.Error())}
		})
		if s.analysisRequired {
			return fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
		}
		slog.WarnContext(ctx, "file analysis failed, continuing without guidance", "job", run.job.ID, "error", err)
		return nil
	}

	metrics.AnalysisRequestsTotal.WithLabelValues("success").Inc()
	run.update(func(m *domain.ProcessingMetadata) {
		m.Analysis = &domain.AnalysisSummary{
			Status:          "completed",
			DetectedFormat:  guidance.DetectedFormat,
			ColumnMapping:   guidance.ColumnMapping,
			Recommendations: guidance.Recommendations,
		}
	})
	return nil
}

// dispatchCompanies queues inserted companies for enrichment in the background. The job has
// already completed and released its slot; failures are logged only.
func (s *Service) dispatchCompanies(job domain.ImportJob, companies []string) {
	if s.companies == nil || len(companies) == 0 {
		return
	}
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.enrichmentTimeout)
		defer cancel()

		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(s.enrichmentConcurrency)
		for _, company := range companies {
			group.Go(func() error {
				if err := s.companies.Enqueue(gctx, company, s.departments); err != nil {
					metrics.EnrichmentRequestsTotal.WithLabelValues("failure").Inc()
					slog.WarnContext(gctx, "company enrichment enqueue failed", "job", job.ID, "company", company, "error", err)
					return nil
				}
				metrics.EnrichmentRequestsTotal.WithLabelValues("success").Inc()
				return nil
			})
		}
		_ = group.Wait()
	}()
}

func (s *Service) advance(ctx context.Context, run *jobRun, to domain.ImportJobStatus) error {
	if err := s.jobs.Transition(ctx, run.job.ID, run.stage, to); err != nil {
		if errors.Is(err, repository.ErrJobStatusConflict) {
			return fmt.Errorf("%w: %v", errJobNotRunnable, err)
		}
		return fmt.Errorf("advance import job to %s: %w", to, err)
	}
	run.stage = to
	return nil
}

func (s *Service) progress(ctx context.Context, run *jobRun, progress domain.JobProgress, mutate func(*domain.ProcessingMetadata)) error {
	progress.Metadata = run.update(mutate)
	if err := s.jobs.UpdateProgress(ctx, run.job.ID, progress); err != nil {
		if errors.Is(err, repository.ErrJobStatusConflict) {
			return fmt.Errorf("%w: %v", errJobNotRunnable, err)
		}
		return fmt.Errorf("update import progress: %w", err)
	}
	return nil
}

func (s *Service) countRejected(run *jobRun, n int) {
	if n == 0 {
		return
	}
	run.update(func(m *domain.ProcessingMetadata) {
		m.RecordsRejected += n
	})
	metrics.RecordsTotal.WithLabelValues(metrics.OutcomeRejected).Add(float64(n))
}

func (s *Service) failJob(ctx context.Context, run *jobRun, stageErr *StageError) {
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	details := stageErr.Details()
	details.OccurredAt = s.now().UTC()

	s.logError(ctx, run, domain.ImportError{ErrorCode: stageErr.Code, ErrorDetail: details.Message})

	if markErr := s.jobs.MarkFailed(ctx, run.job.ID, details); markErr != nil {
		slog.ErrorContext(ctx, "failed to mark import job as failed", "job", run.job.ID, "error", markErr, "cause", stageErr)
		return
	}
	metrics.JobsTotal.WithLabelValues(string(domain.ImportJobStatusError), string(stageErr.Code)).Inc()
	if !run.started.IsZero() {
		metrics.JobDurationSeconds.WithLabelValues(string(domain.ImportJobStatusError)).Observe(time.Since(run.started).Seconds())
	}
	slog.ErrorContext(ctx, "import job failed", "job", run.job.ID, "code", stageErr.Code, "stage", stageErr.Stage, "error", stageErr.Err)
}

func (s *Service) recordIssue(ctx context.Context, run *jobRun, issue RowIssue) {
	entry := domain.ImportError{
		ErrorCode:   domain.ErrorCodeRowParseError,
		ErrorDetail: truncateError(issue.Message),
		RawData:     issue.Raw,
	}
	if issue.RowNumber > 0 {
		rowNumber := issue.RowNumber
		entry.RowNumber = &rowNumber
	}
	s.logError(ctx, run, entry)
}

func (s *Service) recordRowError(ctx context.Context, run *jobRun, record domain.TradeRecord, code domain.ErrorCode, detail string) {
	rowNumber := record.RowNumber
	s.logError(ctx, run, domain.ImportError{
		RowNumber:   &rowNumber,
		ErrorCode:   code,
		ErrorDetail: truncateError(detail),
		RawData:     record.Raw,
	})
}

func (s *Service) logError(ctx context.Context, run *jobRun, entry domain.ImportError) {
	if s.errorLog == nil {
		return
	}
	entry.ImportJobID = run.job.ID
	entry.OrganizationID = run.job.OrganizationID
	if !entry.ErrorCode.RowScoped() {
		entry.RowNumber = nil
		entry.RawData = nil
	}
	if err := s.errorLog.Record(ctx, entry); err != nil {
		slog.WarnContext(ctx, "failed to record import error", "job", run.job.ID, "code", entry.ErrorCode, "error", err)
	}
}
