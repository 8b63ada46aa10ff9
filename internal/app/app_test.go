package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/tradeflow/internal/config"
	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/ingestion"
)

func TestServiceOptionsWiresOptionalClients(t *testing.T) {
	cfg := config.Default()
	base := len(ServiceOptions(cfg))

	cfg.Analysis.URL = "http://analysis.local"
	cfg.Enrichment.URL = "http://enrichment.local"
	assert.Len(t, ServiceOptions(cfg), base+3)
}

func TestRuntimeImportsWithSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.SQLitePath = filepath.Join(dir, "tradeflow.db")
	cfg.Storage.LocalBaseDir = filepath.Join(dir, "uploads")
	cfg.Import.BatchPause = -1

	ctx := context.Background()
	rt, err := New(ctx, cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, rt.Close(ctx)) }()

	csv := "Shipper,Consignee,Origin Country,Destination Country,Weight,Value,Date\n" +
		"Acme Co,Globex,CN,US,1200,50000,2024-03-01\n"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads", "org"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "org", "a.csv"), []byte(csv), 0o644))

	org := uuid.New()
	job, err := rt.Service.SubmitImport(ctx, ingestion.SubmitRequest{OrganizationID: org, FilePath: "org/a.csv"})
	require.NoError(t, err)

	rt.Service.Wait()

	got, err := rt.Service.GetJobStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportJobStatusCompleted, got.Status)
	assert.Equal(t, 1, got.ProcessedRecords)
}
