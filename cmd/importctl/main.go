package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rpattn/tradeflow/internal/app"
	"github.com/rpattn/tradeflow/internal/config"
	"github.com/rpattn/tradeflow/internal/db"
	"github.com/rpattn/tradeflow/internal/domain"
	"github.com/rpattn/tradeflow/internal/ingestion"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Run and inspect trade shipment imports",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(opts), newStatusCmd(opts), newErrorsCmd(opts), newMigrateCmd(opts))
	return root
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		orgID   string
		format  string
		timeout time.Duration
		poll    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Upload a local file and import it, waiting for the job to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := uuid.Parse(orgID)
			if err != nil {
				return fmt.Errorf("invalid --org: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rt, cfg, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer closeRuntime(rt, shutdownTimeout)

			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			name := filepath.Base(args[0])
			key, err := rt.Files.Save(ctx, fmt.Sprintf("%s/%s-%s", org, uuid.NewString(), name), file)
			if err != nil {
				return fmt.Errorf("upload %s: %w", name, err)
			}
			slog.Debug("uploaded import file", "key", key, "storage", cfg.Storage.Type)

			job, err := rt.Service.SubmitImport(ctx, ingestion.SubmitRequest{
				OrganizationID: org,
				FilePath:       key,
				FileName:       name,
				DeclaredFormat: format,
			})
			if err != nil {
				return err
			}
			slog.Info("import submitted", "job_id", job.ID)

			final, err := waitForJob(ctx, rt.Service, job.ID, poll)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, final); err != nil {
				return err
			}
			if final.Status != domain.ImportJobStatusCompleted {
				return fmt.Errorf("import %s ended with status %s", final.ID, final.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id that owns the import")
	cmd.Flags().StringVar(&format, "format", "", "declared file format (csv, xlsx, xls, xml)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "maximum time to wait for the import")
	cmd.Flags().DurationVar(&poll, "poll", time.Second, "interval between status checks")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Print the status and counters of an import job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			rt, _, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeRuntime(rt, shutdownTimeout)

			job, err := rt.Service.GetJobStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, job)
		},
	}
}

func newErrorsCmd(opts *rootOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "errors <job-id>",
		Short: "List the row and job errors recorded for an import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			rt, _, err := openRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeRuntime(rt, shutdownTimeout)

			entries, err := rt.Service.GetJobErrors(cmd.Context(), id, limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of errors to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of errors to skip")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Database.Driver == config.DriverSQLite {
				conn, err := db.OpenSQLite(cfg.Database.SQLitePath)
				if err != nil {
					return err
				}
				slog.Info("sqlite schema applied", "path", cfg.Database.SQLitePath)
				return conn.Close()
			}
			return db.RunMigrations(cfg.Database.Postgres)
		},
	}
}

// waitForJob polls the job until it reaches a terminal status, logging progress as it changes.
func waitForJob(ctx context.Context, service *ingestion.Service, id uuid.UUID, interval time.Duration) (domain.ImportJob, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastStatus domain.ImportJobStatus
	lastProgress := -1.0
	for {
		job, err := service.GetJobStatus(ctx, id)
		if err != nil {
			return domain.ImportJob{}, err
		}
		meta := job.ProcessingMetadata
		if job.Status != lastStatus || meta.ProgressPercentage != lastProgress {
			slog.Info("import progress",
				"status", job.Status,
				"progress", meta.ProgressPercentage,
				"enrichment", meta.EnrichmentProgress,
				"batch", meta.CurrentBatch,
				"batches", meta.TotalBatches,
				"processed", job.ProcessedRecords,
				"duplicates", job.DuplicateRecords,
				"errors", job.ErrorRecords,
				"accounted", job.Accounted())
			lastStatus, lastProgress = job.Status, meta.ProgressPercentage
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, fmt.Errorf("waiting for import %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// closeRuntime drains the service for at most timeout before releasing the database.
func closeRuntime(rt *app.Runtime, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rt.Close(ctx); err != nil {
		slog.Warn("import workers still running at exit", "timeout", timeout, "error", err)
		return err
	}
	return nil
}

func openRuntime(ctx context.Context, opts *rootOptions) (*app.Runtime, config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	rt, err := app.New(ctx, cfg)
	if err != nil {
		return nil, config.Config{}, err
	}
	return rt, cfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
