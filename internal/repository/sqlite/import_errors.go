package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/repository"
)

// ImportErrorRepository stores import errors in SQLite.
type ImportErrorRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.ImportErrorRepository = (*ImportErrorRepository)(nil)

// NewImportErrorRepository wires a sql.DB implementation.
func NewImportErrorRepository(db *sql.DB) *ImportErrorRepository {
	return &ImportErrorRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *ImportErrorRepository) Record(ctx context.Context, entry domain.ImportError) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}
	var rawData any
	if len(entry.RawData) > 0 {
		encoded, err := json.Marshal(entry.RawData)
		if err != nil {
			return fmt.Errorf("marshal raw row: %w", err)
		}
		rawData = string(encoded)
	}

	query, args, err := sq.Insert("import_errors").
		Columns("id", "import_job_id", "organization_id", "row_number", "error_code", "error_detail", "raw_data", "created_at").
		Values(entry.ID.String(), entry.ImportJobID.String(), entry.OrganizationID.String(), rowNumber,
			string(entry.ErrorCode), entry.ErrorDetail, rawData, formatTime(r.now())).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record import error: %w", err)
	}
	return nil
}

func (r *ImportErrorRepository) List(ctx context.Context, jobID uuid.UUID, limit int, offset int) ([]domain.ImportError, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	query, args, err := sq.Select("id", "import_job_id", "organization_id", "row_number", "error_code", "error_detail", "raw_data", "created_at").
		From("import_errors").
		Where(sq.Eq{"import_job_id": jobID.String()}).
		OrderBy("row_number IS NOT NULL", "row_number", "created_at").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list import errors: %w", err)
	}
	defer rows.Close()

	entries := []domain.ImportError{}
	for rows.Next() {
		var (
			entry     domain.ImportError
			id        string
			jobIDText string
			orgID     string
			rowNumber sql.NullInt64
			code      string
			rawData   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&id, &jobIDText, &orgID, &rowNumber, &code, &entry.ErrorDetail, &rawData, &createdAt); err != nil {
			return nil, fmt.Errorf("scan import error: %w", err)
		}
		if entry.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse error id: %w", err)
		}
		if entry.ImportJobID, err = uuid.Parse(jobIDText); err != nil {
			return nil, fmt.Errorf("parse job id: %w", err)
		}
		if entry.OrganizationID, err = uuid.Parse(orgID); err != nil {
			return nil, fmt.Errorf("parse organization id: %w", err)
		}
		if rowNumber.Valid {
			value := int(rowNumber.Int64)
			entry.RowNumber = &value
		}
		if rawData.Valid && rawData.String != "" {
			if err := json.Unmarshal([]byte(rawData.String), &entry.RawData); err != nil {
				return nil, fmt.Errorf("unmarshal raw row: %w", err)
			}
		}
		entry.ErrorCode = domain.ErrorCode(code)
		entry.CreatedAt = parseTime(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import errors: %w", err)
	}
	return entries, nil
}
