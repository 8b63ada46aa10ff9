package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/tradeflow/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type importErrorRepository struct {
	pool *pgxpool.Pool
}

// NewImportErrorRepository wires a repository backed by pgxpool.
func NewImportErrorRepository(pool *pgxpool.Pool) ImportErrorRepository {
	return &importErrorRepository{pool: pool}
}

func (r *importErrorRepository) Record(ctx context.Context, entry domain.ImportError) error {
	if r.pool == nil {
		return fmt.Errorf("import error repository not initialized")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}

	var rawData []byte
	if len(entry.RawData) > 0 {
		encoded, err := json.Marshal(entry.RawData)
		if err != nil {
			return fmt.Errorf("marshal raw row: %w", err)
		}
		rawData = encoded
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO import_errors (id, import_job_id, organization_id, row_number, error_code, error_detail, raw_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		entry.ImportJobID,
		entry.OrganizationID,
		rowNumber,
		string(entry.ErrorCode),
		entry.ErrorDetail,
		rawData,
	)
	if err != nil {
		return fmt.Errorf("failed to record import error: %w", err)
	}

	return nil
}

func (r *importErrorRepository) List(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportError, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("import error repository not initialized")
	}
	limit, offset = clampPage(limit, offset, 200)

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, import_job_id, organization_id, row_number, error_code, error_detail, raw_data, created_at
		 FROM import_errors
		 WHERE import_job_id = $1
		 ORDER BY row_number NULLS FIRST, created_at
		 LIMIT $2 OFFSET $3`,
		jobID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import errors: %w", err)
	}
	defer rows.Close()

	entries := []domain.ImportError{}
	for rows.Next() {
		var (
			entry     domain.ImportError
			rowNumber pgtype.Int4
			code      string
			rawData   []byte
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.ImportJobID,
			&entry.OrganizationID,
			&rowNumber,
			&code,
			&entry.ErrorDetail,
			&rawData,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan import error: %w", scanErr)
		}

		entry.ErrorCode = domain.ErrorCode(code)
		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if len(rawData) > 0 {
			if err := json.Unmarshal(rawData, &entry.RawData); err != nil {
				return nil, fmt.Errorf("unmarshal raw row: %w", err)
			}
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import errors: %w", rowsErr)
	}

	return entries, nil
}
