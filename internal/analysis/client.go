// Package analysis calls the remote file analysis service for column mapping guidance.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rpattn/tradeflow/internal/ingestion"
)

const defaultTimeout = 20 * time.Second

// Client talks to the analysis service over JSON.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ingestion.Analyzer = (*Client)(nil)

// NewClient creates a reusable HTTP client. A non-positive timeout uses the default.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	SampleData []map[string]string `json:"sampleData"`
	FileType   string              `json:"fileType"`
	FileName   string              `json:"fileName"`
	TotalCount int                 `json:"totalRecords"`
}

type analyzeResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Analysis struct {
		DetectedFormat  string            `json:"detectedFormat"`
		ColumnMapping   map[string]string `json:"columnMapping"`
		Recommendations []string          `json:"recommendations"`
	} `json:"analysis"`
}

// Analyze sends the sample for format detection and column mapping.
func (c *Client) Analyze(ctx context.Context, req ingestion.AnalysisRequest) (ingestion.Guidance, error) {
	payload := analyzeRequest{
		SampleData: req.Sample,
		FileType:   string(req.Format),
		FileName:   req.FileName,
		TotalCount: req.TotalCount,
	}

	var resp analyzeResponse
	if err := c.post(ctx, "/analyze", payload, &resp); err != nil {
		return ingestion.Guidance{}, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "analysis service reported failure"
		}
		return ingestion.Guidance{}, fmt.Errorf("analyze %s: %s", req.FileName, msg)
	}

	return ingestion.Guidance{
		DetectedFormat:  resp.Analysis.DetectedFormat,
		ColumnMapping:   resp.Analysis.ColumnMapping,
		Recommendations: resp.Analysis.Recommendations,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
