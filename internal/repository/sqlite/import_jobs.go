// Package sqlite implements the repository interfaces on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/repository"
)

// timestamps are stored as fixed width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var importJobColumns = []string{
	"id", "organization_id", "file_path", "file_name", "file_format", "status",
	"total_records", "processed_records", "duplicate_records", "error_records",
	"processing_metadata", "error_details", "created_at", "started_at", "completed_at", "updated_at",
}

var terminalStatuses = []string{string(domain.ImportJobStatusCompleted), string(domain.ImportJobStatusError)}

// ImportJobRepository stores import jobs in SQLite.
type ImportJobRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.ImportJobRepository = (*ImportJobRepository)(nil)

// NewImportJobRepository wires a sql.DB implementation.
func NewImportJobRepository(db *sql.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *ImportJobRepository) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
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
	now := formatTime(r.now())

	query, args, err := sq.Insert("import_jobs").
		Columns("id", "organization_id", "file_path", "file_name", "file_format", "status",
			"processing_metadata", "created_at", "updated_at").
		Values(job.ID.String(), job.OrganizationID.String(), job.FilePath, job.FileName,
			string(job.FileFormat), string(job.Status), string(metadataJSON), now, now).
		ToSql()
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.ImportJob{}, fmt.Errorf("insert import job: %w", err)
	}
	return r.GetByID(ctx, job.ID)
}

func (r *ImportJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	query, args, err := sq.Select(importJobColumns...).
		From("import_jobs").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("build select: %w", err)
	}
	job, err := scanImportJob(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ImportJob{}, fmt.Errorf("get import job %s: %w", id, repository.ErrNotFound)
		}
		return domain.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

func (r *ImportJobRepository) List(ctx context.Context, organizationID uuid.UUID, limit int, offset int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query, args, err := sq.Select(importJobColumns...).
		From("import_jobs").
		Where(sq.Eq{"organization_id": organizationID.String()}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import jobs: %w", err)
	}
	return jobs, nil
}

func (r *ImportJobRepository) Transition(ctx context.Context, id uuid.UUID, from domain.ImportJobStatus, to domain.ImportJobStatus) error {
	if !from.CanTransitionTo(to) || to.Terminal() {
		return fmt.Errorf("transition %s -> %s: %w", from, to, repository.ErrJobStatusConflict)
	}
	now := formatTime(r.now())
	update := sq.Update("import_jobs").
		Set("status", string(to)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id.String(), "status": string(from)})
	if to == domain.ImportJobStatusProcessing {
		update = update.Set("started_at", now)
	}
	return r.execConditional(ctx, update, "transition import job")
}

func (r *ImportJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error {
	update, err := r.progressUpdate(progress)
	if err != nil {
		return err
	}
	update = update.Where(sq.Eq{"id": id.String()}).Where(sq.NotEq{"status": terminalStatuses})
	return r.execConditional(ctx, update, "update import progress")
}

func (r *ImportJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error {
	update, err := r.progressUpdate(progress)
	if err != nil {
		return err
	}
	update = update.
		Set("status", string(domain.ImportJobStatusCompleted)).
		Set("completed_at", formatTime(r.now())).
		Where(sq.Eq{"id": id.String(), "status": string(domain.ImportJobStatusProcessingBatches)})
	return r.execConditional(ctx, update, "mark import job completed")
}

func (r *ImportJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, details domain.ErrorDetails) error {
	now := r.now()
	if details.OccurredAt.IsZero() {
		details.OccurredAt = now
	}
	detailsJSON, err := details.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal error details: %w", err)
	}
	update := sq.Update("import_jobs").
		Set("status", string(domain.ImportJobStatusError)).
		Set("error_details", string(detailsJSON)).
		Set("completed_at", formatTime(now)).
		Set("updated_at", formatTime(now)).
		Where(sq.Eq{"id": id.String()}).
		Where(sq.NotEq{"status": terminalStatuses})
	return r.execConditional(ctx, update, "mark import job failed")
}

func (r *ImportJobRepository) progressUpdate(progress domain.JobProgress) (sq.UpdateBuilder, error) {
	metadataJSON, err := progress.Metadata.ToJSON()
	if err != nil {
		return sq.UpdateBuilder{}, fmt.Errorf("marshal processing metadata: %w", err)
	}
	update := sq.Update("import_jobs").
		Set("processed_records", sq.Expr("MAX(processed_records, ?)", max(progress.ProcessedRecords, 0))).
		Set("duplicate_records", sq.Expr("MAX(duplicate_records, ?)", max(progress.DuplicateRecords, 0))).
		Set("error_records", sq.Expr("MAX(error_records, ?)", max(progress.ErrorRecords, 0))).
		Set("processing_metadata", string(metadataJSON)).
		Set("updated_at", formatTime(r.now()))
	if progress.TotalRecords != nil {
		update = update.Set("total_records", max(*progress.TotalRecords, 0))
	}
	return update, nil
}

func (r *ImportJobRepository) execConditional(ctx context.Context, update sq.UpdateBuilder, op string) error {
	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrJobStatusConflict)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImportJob(row rowScanner) (domain.ImportJob, error) {
	var (
		job          domain.ImportJob
		id           string
		orgID        string
		fileFormat   string
		status       string
		metadataJSON string
		detailsJSON  sql.NullString
		createdAt    string
		startedAt    sql.NullString
		completedAt  sql.NullString
		updatedAt    string
	)
	if err := row.Scan(
		&id,
		&orgID,
		&job.FilePath,
		&job.FileName,
		&fileFormat,
		&status,
		&job.TotalRecords,
		&job.ProcessedRecords,
		&job.DuplicateRecords,
		&job.ErrorRecords,
		&metadataJSON,
		&detailsJSON,
		&createdAt,
		&startedAt,
		&completedAt,
		&updatedAt,
	); err != nil {
		return domain.ImportJob{}, err
	}

	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return domain.ImportJob{}, fmt.Errorf("parse job id: %w", err)
	}
	if job.OrganizationID, err = uuid.Parse(orgID); err != nil {
		return domain.ImportJob{}, fmt.Errorf("parse organization id: %w", err)
	}
	if job.ProcessingMetadata, err = domain.ProcessingMetadataFromJSON([]byte(metadataJSON)); err != nil {
		return domain.ImportJob{}, fmt.Errorf("unmarshal processing metadata: %w", err)
	}
	if detailsJSON.Valid {
		if job.ErrorDetails, err = domain.ErrorDetailsFromJSON([]byte(detailsJSON.String)); err != nil {
			return domain.ImportJob{}, fmt.Errorf("unmarshal error details: %w", err)
		}
	}
	job.FileFormat = domain.FileFormat(fileFormat)
	job.Status = domain.ImportJobStatus(status)
	if !job.Status.Valid() {
		return domain.ImportJob{}, fmt.Errorf("unknown import job status %q", status)
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.StartedAt = parseNullTime(startedAt)
	job.CompletedAt = parseNullTime(completedAt)
	return job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, value)
	}
	return t
}

func parseNullTime(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTime(value.String)
	return &t
}
