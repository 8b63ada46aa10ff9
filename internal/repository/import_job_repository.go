package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/tradeflow/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const importJobColumns = `id, organization_id, file_path, file_name, file_format, status,
	total_records, processed_records, duplicate_records, error_records,
	processing_metadata, error_details, created_at, started_at, completed_at, updated_at`

type importJobRepository struct {
	pool *pgxpool.Pool
}

// NewImportJobRepository wires a repository for managing import jobs.
func NewImportJobRepository(pool *pgxpool.Pool) ImportJobRepository {
	return &importJobRepository{pool: pool}
}

func (r *importJobRepository) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.ImportJobStatusQueued
	}

	metadataJSON, err := job.ProcessingMetadata.ToJSON()
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("marshal processing metadata: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO import_jobs (id, organization_id, file_path, file_name, file_format, status, processing_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID,
		job.OrganizationID,
		job.FilePath,
		job.FileName,
		string(job.FileFormat),
		string(job.Status),
		metadataJSON,
	)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("insert import job: %w", err)
	}

	return r.GetByID(ctx, job.ID)
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+importJobColumns+` FROM import_jobs WHERE id = $1`, id)
	job, err := scanImportJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, fmt.Errorf("get import job %s: %w", id, ErrNotFound)
		}
		return domain.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

func (r *importJobRepository) List(ctx context.Context, organizationID uuid.UUID, limit int, offset int) ([]domain.ImportJob, error) {
	limit, offset = clampPage(limit, offset, 20)

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importJobColumns+`
		 FROM import_jobs
		 WHERE organization_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		organizationID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ImportJob{}
	for rows.Next() {
		job, scanErr := scanImportJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan import job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate import jobs: %w", rowsErr)
	}
	return jobs, nil
}

func (r *importJobRepository) Transition(ctx context.Context, id uuid.UUID, from domain.ImportJobStatus, to domain.ImportJobStatus) error {
	if !from.CanTransitionTo(to) || to == domain.ImportJobStatusError || to == domain.ImportJobStatusCompleted {
		return fmt.Errorf("transition %s -> %s: %w", from, to, ErrJobStatusConflict)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $3::text,
		     started_at = CASE WHEN $3::text = 'processing' THEN NOW() ELSE started_at END,
		     updated_at = NOW()
		 WHERE id = $1 AND status = $2`,
		id,
		string(from),
		string(to),
	)
	if err != nil {
		return fmt.Errorf("transition import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transition %s -> %s: %w", from, to, ErrJobStatusConflict)
	}
	return nil
}

func (r *importJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error {
	metadataJSON, err := progress.Metadata.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal processing metadata: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET total_records = COALESCE($2, total_records),
		     processed_records = GREATEST(processed_records, $3),
		     duplicate_records = GREATEST(duplicate_records, $4),
		     error_records = GREATEST(error_records, $5),
		     processing_metadata = $6,
		     updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('completed', 'error')`,
		id,
		totalParam(progress.TotalRecords),
		max(progress.ProcessedRecords, 0),
		max(progress.DuplicateRecords, 0),
		max(progress.ErrorRecords, 0),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("update import progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update import progress: %w", ErrJobStatusConflict)
	}
	return nil
}

func (r *importJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error {
	metadataJSON, err := progress.Metadata.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal processing metadata: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = 'completed',
		     total_records = COALESCE($2, total_records),
		     processed_records = GREATEST(processed_records, $3),
		     duplicate_records = GREATEST(duplicate_records, $4),
		     error_records = GREATEST(error_records, $5),
		     processing_metadata = $6,
		     completed_at = NOW(),
		     updated_at = NOW()
		 WHERE id = $1 AND status = 'processing_batches'`,
		id,
		totalParam(progress.TotalRecords),
		max(progress.ProcessedRecords, 0),
		max(progress.DuplicateRecords, 0),
		max(progress.ErrorRecords, 0),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("mark import job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark import job completed: %w", ErrJobStatusConflict)
	}
	return nil
}

func (r *importJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, details domain.ErrorDetails) error {
	if details.OccurredAt.IsZero() {
		details.OccurredAt = time.Now().UTC()
	}
	detailsJSON, err := details.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal error details: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = 'error',
		     error_details = $2,
		     completed_at = NOW(),
		     updated_at = NOW()
		 WHERE id = $1 AND status NOT IN ('completed', 'error')`,
		id,
		detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("mark import job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark import job failed: %w", ErrJobStatusConflict)
	}
	return nil
}

func totalParam(total *int) pgtype.Int4 {
	if total == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(max(*total, 0)), Valid: true}
}

func scanImportJob(row pgx.Row) (domain.ImportJob, error) {
	var (
		job          domain.ImportJob
		fileFormat   string
		status       string
		total        int32
		processed    int32
		duplicates   int32
		errorCount   int32
		metadataJSON []byte
		detailsJSON  []byte
		startedAt    pgtype.Timestamptz
		completedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&job.ID,
		&job.OrganizationID,
		&job.FilePath,
		&job.FileName,
		&fileFormat,
		&status,
		&total,
		&processed,
		&duplicates,
		&errorCount,
		&metadataJSON,
		&detailsJSON,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&job.UpdatedAt,
	); err != nil {
		return domain.ImportJob{}, err
	}

	metadata, err := domain.ProcessingMetadataFromJSON(metadataJSON)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("unmarshal processing metadata: %w", err)
	}
	details, err := domain.ErrorDetailsFromJSON(detailsJSON)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("unmarshal error details: %w", err)
	}

	job.FileFormat = domain.FileFormat(fileFormat)
	job.Status = domain.ImportJobStatus(status)
	if !job.Status.Valid() {
		return domain.ImportJob{}, fmt.Errorf("unknown import job status %q", status)
	}
	job.TotalRecords = int(total)
	job.ProcessedRecords = int(processed)
	job.DuplicateRecords = int(duplicates)
	job.ErrorRecords = int(errorCount)
	job.ProcessingMetadata = metadata
	job.ErrorDetails = details
	if startedAt.Valid {
		value := startedAt.Time
		job.StartedAt = &value
	}
	if completedAt.Valid {
		value := completedAt.Time
		job.CompletedAt = &value
	}
	return job, nil
}
