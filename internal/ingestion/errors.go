package ingestion

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rpattn/tradeflow/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrFileTooLarge is returned when a spreadsheet exceeds the configured size cap.
	ErrFileTooLarge = errors.New("file too large")
	// ErrNoValidRecords is returned when nothing survives parsing or validation.
	ErrNoValidRecords = errors.New("no valid records")
	// ErrAnalysisFailed is returned when the file analysis service rejects or cannot serve a job.
	ErrAnalysisFailed = errors.New("file analysis failed")
	// ErrInvalidRequest is returned when a caller's request is missing required input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDownloadFailed is returned when the uploaded file cannot be fetched from storage.
	ErrDownloadFailed = errors.New("file download failed")
)

// StageError is a job-level failure tagged with the stage that raised it.
type StageError struct {
	Code  domain.ErrorCode
	Stage domain.ImportJobStatus
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s during %s: %v", e.Code, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Details converts the error into the job's persisted error details.
func (e *StageError) Details() domain.ErrorDetails {
	message := string(e.Code)
	if e.Err != nil {
		message = e.Err.Error()
	}
	return domain.ErrorDetails{
		Code:    e.Code,
		Message: truncateError(message),
		Stage:   string(e.Stage),
	}
}

// asStageError classifies err for the given stage. Existing stage errors keep their tags.
func asStageError(stage domain.ImportJobStatus, err error) *StageError {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	code := domain.ErrorCodeInternal
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		code = domain.ErrorCodeUnsupportedFormat
	case errors.Is(err, ErrFileTooLarge):
		code = domain.ErrorCodeFileTooLarge
	case errors.Is(err, ErrNoValidRecords):
		code = domain.ErrorCodeNoValidRecords
	case errors.Is(err, ErrAnalysisFailed):
		code = domain.ErrorCodeAuxiliaryAnalysisFailed
	case errors.Is(err, ErrDownloadFailed):
		code = domain.ErrorCodeDownloadFailed
	}
	return &StageError{Code: code, Stage: stage, Err: err}
}

func truncateError(message string) string {
	const limit = 512
	if len(message) <= limit {
		return message
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
