package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/repository"

	"github.com/google/uuid"
)

type stubJobStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]domain.ImportJob
	history   map[uuid.UUID][]domain.ImportJobStatus
	snapshots map[uuid.UUID][]domain.ImportJob
	createErr error
}

func newStubJobStore() *stubJobStore {
	return &stubJobStore{
		jobs:      make(map[uuid.UUID]domain.ImportJob),
		history:   make(map[uuid.UUID][]domain.ImportJobStatus),
		snapshots: make(map[uuid.UUID][]domain.ImportJob),
	}
}

func (s *stubJobStore) Create(_ context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return domain.ImportJob{}, s.createErr
	}
	job.ID = uuid.New()
	job.Status = domain.ImportJobStatusQueued
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = job
	s.history[job.ID] = []domain.ImportJobStatus{job.Status}
	return job, nil
}

func (s *stubJobStore) GetByID(_ context.Context, id uuid.UUID) (domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return domain.ImportJob{}, fmt.Errorf("import job %s: %w", id, repository.ErrNotFound)
	}
	return job, nil
}

func (s *stubJobStore) List(_ context.Context, organizationID uuid.UUID, _ int, _ int) ([]domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ImportJob
	for _, job := range s.jobs {
		if job.OrganizationID == organizationID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubJobStore) Transition(_ context.Context, id uuid.UUID, from domain.ImportJobStatus, to domain.ImportJobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != from || !from.CanTransitionTo(to) {
		return repository.ErrJobStatusConflict
	}
	job.Status = to
	if to == domain.ImportJobStatusProcessing {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	s.save(job)
	return nil
}

func (s *stubJobStore) UpdateProgress(_ context.Context, id uuid.UUID, progress domain.JobProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return repository.ErrJobStatusConflict
	}
	applyProgress(&job, progress)
	s.save(job)
	return nil
}

func (s *stubJobStore) MarkCompleted(_ context.Context, id uuid.UUID, progress domain.JobProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.ImportJobStatusProcessingBatches {
		return repository.ErrJobStatusConflict
	}
	applyProgress(&job, progress)
	job.Status = domain.ImportJobStatusCompleted
	now := time.Now().UTC()
	job.CompletedAt = &now
	s.save(job)
	return nil
}

func (s *stubJobStore) MarkFailed(_ context.Context, id uuid.UUID, details domain.ErrorDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status.Terminal() {
		return repository.ErrJobStatusConflict
	}
	job.Status = domain.ImportJobStatusError
	job.ErrorDetails = &details
	now := time.Now().UTC()
	job.CompletedAt = &now
	s.save(job)
	return nil
}

func (s *stubJobStore) save(job domain.ImportJob) {
	previous := s.jobs[job.ID]
	if previous.Status != job.Status {
		s.history[job.ID] = append(s.history[job.ID], job.Status)
	}
	job.UpdatedAt = time.Now().UTC()
	s.jobs[job.ID] = job
	s.snapshots[job.ID] = append(s.snapshots[job.ID], job)
}

func (s *stubJobStore) statuses(id uuid.UUID) []domain.ImportJobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ImportJobStatus(nil), s.history[id]...)
}

func (s *stubJobStore) snapshotsFor(id uuid.UUID) []domain.ImportJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ImportJob(nil), s.snapshots[id]...)
}

func applyProgress(job *domain.ImportJob, progress domain.JobProgress) {
	if progress.TotalRecords != nil {
		job.TotalRecords = *progress.TotalRecords
	}
	job.ProcessedRecords = max(job.ProcessedRecords, progress.ProcessedRecords)
	job.DuplicateRecords = max(job.DuplicateRecords, progress.DuplicateRecords)
	job.ErrorRecords = max(job.ErrorRecords, progress.ErrorRecords)
	job.ProcessingMetadata = progress.Metadata
}

type stubShipmentStore struct {
	mu        sync.Mutex
	rows      map[string]domain.Shipment
	inserted  []domain.Shipment
	existsErr error
	insertErr func(domain.Shipment) error
}

func newStubShipmentStore() *stubShipmentStore {
	return &stubShipmentStore{rows: make(map[string]domain.Shipment)}
}

func (s *stubShipmentStore) Exists(_ context.Context, key domain.DuplicateKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.rows[key.String()]
	return ok, nil
}

func (s *stubShipmentStore) Insert(_ context.Context, shipment domain.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		if err := s.insertErr(shipment); err != nil {
			return err
		}
	}
	key := shipment.Key().String()
	if _, ok := s.rows[key]; ok {
		return repository.ErrDuplicateShipment
	}
	s.rows[key] = shipment
	s.inserted = append(s.inserted, shipment)
	return nil
}

func (s *stubShipmentStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

type stubErrorLog struct {
	mu      sync.Mutex
	entries []domain.ImportError
}

func (l *stubErrorLog) Record(_ context.Context, entry domain.ImportError) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *stubErrorLog) List(_ context.Context, jobID uuid.UUID, _ int, _ int) ([]domain.ImportError, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.ImportError
	for _, entry := range l.entries {
		if entry.ImportJobID == jobID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (l *stubErrorLog) countCode(jobID uuid.UUID, code domain.ErrorCode) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, entry := range l.entries {
		if entry.ImportJobID == jobID && entry.ErrorCode == code {
			n++
		}
	}
	return n
}

type stubFileStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newStubFileStore() *stubFileStore {
	return &stubFileStore{files: make(map[string][]byte)}
}

func (s *stubFileStore) put(path string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = payload
}

func (s *stubFileStore) Download(_ context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.files[path]
	if !ok {
		return nil, errors.New("object not found")
	}
	return payload, nil
}

type stubAnalyzer struct {
	mu       sync.Mutex
	requests []AnalysisRequest
	guidance Guidance
	err      error
}

func (a *stubAnalyzer) Analyze(_ context.Context, req AnalysisRequest) (Guidance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return a.guidance, a.err
}

type stubCompanyEnricher struct {
	mu        sync.Mutex
	companies []string
	err       error
}

func (e *stubCompanyEnricher) Enqueue(_ context.Context, companyName string, _ []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.companies = append(e.companies, companyName)
	return e.err
}
