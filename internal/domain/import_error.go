package domain

import (
	"time"

	"github.com/google/uuid"
)

// ErrorCode classifies import failures for job details and the row error log.
type ErrorCode string

const (
	ErrorCodeUnsupportedFormat       ErrorCode = "UNSUPPORTED_FORMAT"
	ErrorCodeFileTooLarge            ErrorCode = "FILE_TOO_LARGE"
	ErrorCodeDownloadFailed          ErrorCode = "DOWNLOAD_FAILED"
	ErrorCodeAuxiliaryAnalysisFailed ErrorCode = "AUXILIARY_ANALYSIS_FAILED"
	ErrorCodeNoValidRecords          ErrorCode = "NO_VALID_RECORDS"
	ErrorCodeRowParseError           ErrorCode = "ROW_PARSE_ERROR"
	ErrorCodeRowValidationFailure    ErrorCode = "ROW_VALIDATION_FAILURE"
	ErrorCodeRowWriteError           ErrorCode = "ROW_WRITE_ERROR"
	ErrorCodeInternal                ErrorCode = "INTERNAL_ERROR"
)

// RowScoped reports whether the code describes a single source row.
func (c ErrorCode) RowScoped() bool {
	switch c {
	case ErrorCodeRowParseError, ErrorCodeRowValidationFailure, ErrorCodeRowWriteError:
		return true
	default:
		return false
	}
}

// ImportError captures a row level or job level issue raised while importing a file.
type ImportError struct {
	ID             uuid.UUID         `json:"id"`
	ImportJobID    uuid.UUID         `json:"import_job_id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	RowNumber      *int              `json:"row_number,omitempty"`
	ErrorCode      ErrorCode         `json:"error_code,omitempty"`
	ErrorDetail    string            `json:"error_detail"`
	RawData        map[string]string `json:"raw_data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
