package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/ingestion"
)

func TestAnalyzeSendsSampleAndDecodesGuidance(t *testing.T) {
	var got analyzeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"analysis":{"detectedFormat":"customs","columnMapping":{"Shipper":"shipper_name"},"recommendations":["add dates"]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", time.Second)
	guidance, err := client.Analyze(context.Background(), ingestion.AnalysisRequest{
		Sample:     []map[string]string{{"Shipper": "Acme"}},
		Format:     domain.FileFormatCSV,
		FileName:   "a.csv",
		TotalCount: 42,
	})
	require.NoError(t, err)

	assert.Equal(t, "customs", guidance.DetectedFormat)
	assert.Equal(t, map[string]string{"Shipper": "shipper_name"}, guidance.ColumnMapping)
	assert.Equal(t, []string{"add dates"}, guidance.Recommendations)
	assert.Equal(t, "csv", got.FileType)
	assert.Equal(t, 42, got.TotalCount)
	assert.Equal(t, "Acme", got.SampleData[0]["Shipper"])
}

func TestAnalyzeFailures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: "boom"},
		{name: "reported failure", status: http.StatusOK, body: `{"success":false,"error":"unreadable sample"}`, wantErr: "unreadable sample"},
		{name: "bad json", status: http.StatusOK, body: `not json`, wantErr: "decode response"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "", 0).Analyze(context.Background(), ingestion.AnalysisRequest{FileName: "a.csv"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
