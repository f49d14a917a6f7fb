// Package export owns the report-export job pipeline: admission with
// per-user limits, the async query/render/validate worker, and artifact
// retrieval.
package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/campuspark/pkg/audit"
	"github.com/jordanlanch/campuspark/pkg/export/render"
	"github.com/jordanlanch/campuspark/pkg/export/validate"
	"github.com/jordanlanch/campuspark/pkg/metrics"
	"github.com/jordanlanch/campuspark/pkg/notify"
	"github.com/jordanlanch/campuspark/pkg/reports"
	"github.com/jordanlanch/campuspark/pkg/storage"
	"golang.org/x/sync/semaphore"
)

// MaxActiveJobsPerUser bounds a single user's jobs in queued or running.
const MaxActiveJobsPerUser = 3

// ErrJobNotReady is returned when an artifact is requested before the job
// reaches done.
var ErrJobNotReady = errors.New("export job is not ready for download")

// SubmitRequest is an admission request.
type SubmitRequest struct {
	ReportType string
	Format     string
	Filters    reports.Filters
	Columns    []string
	Mode       string
	SortBy     string
	SortDir    string
	Anonymize  bool
}

// Config tunes the worker.
type Config struct {
	MaxWorkers int64          // global bound on concurrent pipelines
	JobTimeout time.Duration  // per-job deadline; expiry ends the job in error
	Location   *time.Location // fixed export timezone
}

// Service handles export job admission and execution.
type Service struct {
	store    JobStore
	fetcher  reports.RowFetcher
	blobs    storage.Provider
	audit    audit.Sink
	notifier notify.Notifier
	metrics  *metrics.Metrics

	sem     *semaphore.Weighted
	timeout time.Duration
	loc     *time.Location

	// userLocks serializes count-then-insert per user so two concurrent
	// submissions cannot both slip under the active-job limit.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	wg sync.WaitGroup
}

// NewService creates the export service. metrics may be nil.
func NewService(store JobStore, fetcher reports.RowFetcher, blobs storage.Provider,
	auditSink audit.Sink, notifier notify.Notifier, m *metrics.Metrics, cfg Config) *Service {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if auditSink == nil {
		auditSink = audit.Nop{}
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		store:     store,
		fetcher:   fetcher,
		blobs:     blobs,
		audit:     auditSink,
		notifier:  notifier,
		metrics:   m,
		sem:       semaphore.NewWeighted(cfg.MaxWorkers),
		timeout:   cfg.JobTimeout,
		loc:       cfg.Location,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// Submit validates and admits an export request, returning the queued job.
// Execution is asynchronous; status must be discovered by polling.
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (*Job, error) {
	if req.SortDir == "" {
		req.SortDir = "asc"
	}
	if err := validateRequest(req); err != nil {
		if s.metrics != nil {
			s.metrics.ExportsRejected.Inc()
		}
		return nil, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	active, err := s.store.CountActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active jobs: %w", err)
	}
	if active >= MaxActiveJobsPerUser {
		if s.metrics != nil {
			s.metrics.ExportsRejected.Inc()
		}
		return nil, &RateLimitError{UserID: userID, Active: active, Limit: MaxActiveJobsPerUser}
	}

	job := &Job{
		ID:         uuid.NewString(),
		UserID:     userID,
		ReportType: reports.ReportType(req.ReportType),
		Format:     req.Format,
		Filters:    req.Filters,
		Columns:    req.Columns,
		Mode:       req.Mode,
		SortBy:     req.SortBy,
		SortDir:    req.SortDir,
		Anonymize:  req.Anonymize,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}

	// Audit is best-effort: a sink failure must not abort admission.
	if err := s.audit.Record(ctx, audit.Entry{
		Actor:      userID,
		Action:     audit.ActionExportJobCreated,
		ResourceID: job.ID,
		Detail: map[string]any{
			"report_type": req.ReportType,
			"format":      req.Format,
			"filters":     req.Filters,
			"columns":     req.Columns,
			"mode":        req.Mode,
			"sort_by":     req.SortBy,
			"sort_dir":    req.SortDir,
			"anonymize":   req.Anonymize,
		},
	}); err != nil {
		log.Printf("[AUDIT] failed to record job creation for %s: %v", job.ID, err)
	}

	if s.metrics != nil {
		s.metrics.ExportsCreated.WithLabelValues(req.ReportType, req.Format).Inc()
	}
	s.notifier.JobStateChanged(ctx, userID, job.ID, string(StatusQueued))

	s.wg.Add(1)
	go s.process(job)

	return job, nil
}

func validateRequest(req SubmitRequest) error {
	var invalid []string
	if !reports.ValidReportType(req.ReportType) {
		invalid = append(invalid, "report_type")
	}
	switch req.Format {
	case "csv", "xlsx", "pdf":
	default:
		invalid = append(invalid, "format")
	}
	switch req.Mode {
	case ModeView, ModeFull:
	default:
		invalid = append(invalid, "mode")
	}
	// Sort fields are checked against the report type's column table up
	// front; unknown fields never reach the query builder.
	if req.SortBy != "" && reports.ValidReportType(req.ReportType) &&
		!reports.SortableField(reports.ReportType(req.ReportType), req.SortBy) {
		invalid = append(invalid, "sort_by")
	}
	switch req.SortDir {
	case "asc", "desc":
	default:
		invalid = append(invalid, "sort_dir")
	}
	if len(invalid) > 0 {
		return &ValidationError{Fields: invalid}
	}
	return nil
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// process runs the pipeline for one job and always leaves it in a
// terminal state. Nothing raised here ever reaches the submitter.
func (s *Service) process(job *Job) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		// error is only reachable from running, so a job that never got a
		// slot still records started_at before the failure.
		rctx, rcancel := context.WithTimeout(context.Background(), 10*time.Second)
		if merr := s.store.MarkRunning(rctx, job.ID, time.Now().UTC()); merr != nil {
			log.Printf("[EXPORT] failed to mark job %s running: %v", job.ID, merr)
		}
		rcancel()
		s.fail(job, fmt.Errorf("timed out after %s waiting for a worker slot", s.timeout))
		return
	}
	defer s.sem.Release(1)

	start := time.Now()
	if err := s.store.MarkRunning(ctx, job.ID, time.Now().UTC()); err != nil {
		log.Printf("[EXPORT] failed to mark job %s running: %v", job.ID, err)
		return
	}
	s.notifier.JobStateChanged(ctx, job.UserID, job.ID, string(StatusRunning))

	result, err := s.run(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("export timed out after %s", s.timeout)
		}
		s.fail(job, err)
		return
	}

	// Terminal persistence gets a fresh context: the job deadline must
	// not prevent recording the outcome.
	pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pcancel()
	if err := s.store.MarkDone(pctx, job.ID, *result, time.Now().UTC()); err != nil {
		log.Printf("[EXPORT] failed to mark job %s done: %v", job.ID, err)
		return
	}
	if s.metrics != nil {
		s.metrics.ExportsCompleted.WithLabelValues(string(job.ReportType), job.Format).Inc()
		s.metrics.JobDuration.WithLabelValues(string(job.ReportType), job.Format).Observe(time.Since(start).Seconds())
	}
	s.notifier.JobStateChanged(pctx, job.UserID, job.ID, string(StatusDone))
	log.Printf("[EXPORT] job %s done: %d rows, %s", job.ID, result.RowCount, result.FilePath)
}

// run executes query → anonymize → render → validate → store as one
// uninterrupted sequence.
func (s *Service) run(ctx context.Context, job *Job) (*DoneResult, error) {
	columns := job.Columns
	if len(columns) == 0 {
		columns = reports.DefaultColumns(job.ReportType)
	}

	query, args, err := reports.BuildQuery(job.ReportType, job.Filters, job.SortBy, job.SortDir)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	rows, err := s.fetcher.FetchRows(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Err: err}
	}

	if job.Anonymize {
		for i := range rows {
			rows[i] = reports.AnonymizeRow(rows[i], job.ReportType)
		}
	}

	user := job.UserID
	if job.Anonymize {
		user = "Anonymous"
	}
	opts := render.Options{
		ReportType:  job.ReportType,
		User:        user,
		Filters:     job.Filters,
		Mode:        job.Mode,
		SortBy:      job.SortBy,
		SortDir:     job.SortDir,
		Anonymized:  job.Anonymize,
		GeneratedAt: time.Now(),
		Location:    s.loc,
	}
	if job.Mode == ModeView {
		opts.Summary = reports.Summarize(job.ReportType, rows)
	}

	renderer, err := render.ForFormat(job.Format)
	if err != nil {
		return nil, &render.Error{Format: job.Format, Err: err}
	}
	buf, err := renderer.Render(rows, columns, opts)
	if err != nil {
		return nil, err
	}

	expected := len(rows)
	vres := validate.Validate(buf, job.Format, validate.Expected{Rows: &expected})
	if !vres.Valid {
		return nil, &IntegrityError{Format: job.Format, Message: vres.Error}
	}

	name := render.Filename(opts, job.UserID, job.Format)
	path, err := s.blobs.Put(name, buf, storage.ContentType(job.Format))
	if err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}

	return &DoneResult{
		RowCount: len(rows),
		FilePath: path,
		FileHash: vres.Hash,
		Report:   validate.NewReport(vres),
	}, nil
}

func (s *Service) fail(job *Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("[EXPORT] job %s failed: %v", job.ID, cause)
	if err := s.store.MarkError(ctx, job.ID, cause.Error(), time.Now().UTC()); err != nil {
		log.Printf("[EXPORT] failed to mark job %s errored: %v", job.ID, err)
	}
	if s.metrics != nil {
		s.metrics.ExportsFailed.WithLabelValues(string(job.ReportType), job.Format).Inc()
	}
	s.notifier.JobStateChanged(ctx, job.UserID, job.ID, string(StatusError))
}

// Get returns a job scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*Job, error) {
	return s.store.GetForUser(ctx, userID, jobID)
}

// List returns a page of the user's jobs plus the total count.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Job, int, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// Artifact returns a finished job's bytes, content type and filename.
func (s *Service) Artifact(ctx context.Context, userID, jobID string) ([]byte, string, string, error) {
	job, err := s.store.GetForUser(ctx, userID, jobID)
	if err != nil {
		return nil, "", "", err
	}
	if job.Status != StatusDone {
		return nil, "", "", ErrJobNotReady
	}
	data, err := s.blobs.Get(job.FilePath)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, storage.ContentType(job.Format), filepath.Base(job.FilePath), nil
}

// Wait blocks until every in-flight pipeline finishes; used on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}
