package domain

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImportJobStatus captures lifecycle state for an import job.
type ImportJobStatus string

const (
	ImportJobStatusQueued            ImportJobStatus = "queued"
	ImportJobStatusProcessing        ImportJobStatus = "processing"
	ImportJobStatusParsed            ImportJobStatus = "parsed"
	ImportJobStatusEnriching         ImportJobStatus = "enriching"
	ImportJobStatusProcessingBatches ImportJobStatus = "processing_batches"
	ImportJobStatusCompleted         ImportJobStatus = "completed"
	ImportJobStatusError             ImportJobStatus = "error"
)

var importJobTransitions = map[ImportJobStatus]ImportJobStatus{
	ImportJobStatusQueued:            ImportJobStatusProcessing,
	ImportJobStatusProcessing:        ImportJobStatusParsed,
	ImportJobStatusParsed:            ImportJobStatusEnriching,
	ImportJobStatusEnriching:         ImportJobStatusProcessingBatches,
	ImportJobStatusProcessingBatches: ImportJobStatusCompleted,
}

// Terminal reports whether no further transition is possible.
func (s ImportJobStatus) Terminal() bool {
	return s == ImportJobStatusCompleted || s == ImportJobStatusError
}

// Valid reports whether s is a known status.
func (s ImportJobStatus) Valid() bool {
	if s.Terminal() {
		return true
	}
	_, ok := importJobTransitions[s]
	return ok
}

// CanTransitionTo reports whether next directly follows s. Any non-terminal
// status may move to error.
func (s ImportJobStatus) CanTransitionTo(next ImportJobStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == ImportJobStatusError {
		return true
	}
	return importJobTransitions[s] == next
}

// FileFormat names a supported upload format.
type FileFormat string

const (
	FileFormatUnknown FileFormat = ""
	FileFormatCSV     FileFormat = "csv"
	FileFormatXML     FileFormat = "xml"
	FileFormatXLSX    FileFormat = "xlsx"
)

// ParseFileFormat maps declared formats and aliases to a FileFormat.
func ParseFileFormat(value string) (FileFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(value, "."))) {
	case "csv", "text/csv":
		return FileFormatCSV, true
	case "xml", "text/xml", "application/xml":
		return FileFormatXML, true
	case "xlsx", "excel", "spreadsheet", "xls":
		return FileFormatXLSX, true
	default:
		return FileFormatUnknown, false
	}
}

// FileFormatFromName derives the format from a file extension.
func FileFormatFromName(name string) (FileFormat, bool) {
	ext := filepath.Ext(name)
	if ext == "" {
		return FileFormatUnknown, false
	}
	return ParseFileFormat(ext)
}

// AnalysisSummary records the guidance returned by the file analysis service.
type AnalysisSummary struct {
	Status          string            `json:"status"`
	DetectedFormat  string            `json:"detected_format,omitempty"`
	ColumnMapping   map[string]string `json:"column_mapping,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// ProcessingMetadata is the JSON progress document polled by clients.
type ProcessingMetadata struct {
	BatchSize          int              `json:"batch_size,omitempty"`
	CurrentBatch       int              `json:"current_batch"`
	TotalBatches       int              `json:"total_batches"`
	ProgressPercentage float64          `json:"progress_percentage"`
	EnrichmentProgress float64          `json:"enrichment_progress"`
	RecordsParsed      int              `json:"records_parsed"`
	RecordsRejected    int              `json:"records_rejected"`
	RecordsValidated   int              `json:"records_validated"`
	Analysis           *AnalysisSummary `json:"analysis,omitempty"`
}

// ToJSON marshals metadata for storage.
func (m ProcessingMetadata) ToJSON() (json.RawMessage, error) {
	return json.Marshal(m)
}

// ProcessingMetadataFromJSON hydrates stored metadata. Empty input yields the zero value.
func ProcessingMetadataFromJSON(data []byte) (ProcessingMetadata, error) {
	var meta ProcessingMetadata
	if len(data) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ProcessingMetadata{}, err
	}
	return meta, nil
}

// ErrorDetails describes why a job ended in error.
type ErrorDetails struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Stage      string    `json:"stage,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ToJSON marshals error details for storage; nil details marshal to nil.
func (d *ErrorDetails) ToJSON() (json.RawMessage, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// ErrorDetailsFromJSON hydrates stored error details.
func ErrorDetailsFromJSON(data []byte) (*ErrorDetails, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var details ErrorDetails
	if err := json.Unmarshal(data, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// ImportJob mirrors persisted import job state for pollers and workers.
type ImportJob struct {
	ID                 uuid.UUID          `json:"id"`
	OrganizationID     uuid.UUID          `json:"organization_id"`
	FilePath           string             `json:"file_path"`
	FileName           string             `json:"file_name"`
	FileFormat         FileFormat         `json:"file_format"`
	Status             ImportJobStatus    `json:"status"`
	TotalRecords       int                `json:"total_records"`
	ProcessedRecords   int                `json:"processed_records"`
	DuplicateRecords   int                `json:"duplicate_records"`
	ErrorRecords       int                `json:"error_records"`
	ProcessingMetadata ProcessingMetadata `json:"processing_metadata"`
	ErrorDetails       *ErrorDetails      `json:"error_details,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	StartedAt          *time.Time         `json:"started_at,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Accounted returns the number of records with a final outcome.
func (j ImportJob) Accounted() int {
	return j.ProcessedRecords + j.DuplicateRecords + j.ErrorRecords
}

// JobProgress carries counter and metadata updates written during a run.
type JobProgress struct {
	TotalRecords     *int
	ProcessedRecords int
	DuplicateRecords int
	ErrorRecords     int
	Metadata         ProcessingMetadata
}
