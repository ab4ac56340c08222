package admin

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corpusworks/corpusd/internal/config"
	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/corpusworks/corpusd/internal/service"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [sources...]",
		Short: "Ingest documents from files, folders, or URLs",
		Long:  "Ingest one or more sources into the index. Directories are walked recursively; URLs and s3:// URIs are fetched.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIngest,
	}

	cmd.Flags().StringP("library", "l", "", "Library to ingest into (default from config)")
	cmd.Flags().Bool("no-recursive", false, "Do not descend into subdirectories")
	cmd.Flags().Int("max-concurrency", 0, "Concurrent documents per folder (default from config)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if maxConcurrency, _ := cmd.Flags().GetInt("max-concurrency"); maxConcurrency > 0 {
		cfg.MaxConcurrency = maxConcurrency
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	library, _ := cmd.Flags().GetString("library")
	noRecursive, _ := cmd.Flags().GetBool("no-recursive")

	total := service.BatchResult{}
	for _, source := range args {
		batch, err := ingestOne(ctx, a, source, library, noRecursive)
		if err != nil {
			return err
		}
		total.Total += batch.Total
		total.Indexed += batch.Indexed
		total.Replaced += batch.Replaced
		total.Skipped += batch.Skipped
		total.Failed += batch.Failed
		total.Errors = append(total.Errors, batch.Errors...)
	}

	fmt.Printf("ingested %d sources: %d indexed, %d replaced, %d skipped, %d failed\n",
		total.Total, total.Indexed, total.Replaced, total.Skipped, total.Failed)
	for _, e := range total.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", e.Source, e.Err)
	}
	if total.Failed > 0 {
		return fmt.Errorf("%d sources failed", total.Failed)
	}
	return nil
}

func ingestOne(ctx context.Context, a *app, source, library string, noRecursive bool) (*service.BatchResult, error) {
	if info, err := os.Stat(source); err == nil && info.IsDir() {
		return a.ingestSvc.IngestFolder(ctx, service.FolderInput{Path: source, Library: library, NoRecurse: noRecursive})
	}

	batch := &service.BatchResult{Total: 1}
	result, err := a.ingestSvc.IngestSource(ctx, service.IngestInput{Source: source, Library: library})
	if err != nil {
		batch.Failed = 1
		batch.Errors = []service.BatchItemError{{Source: source, Err: err}}
		return batch, nil
	}
	batch.Results = []*service.IngestResult{result}
	switch result.Status {
	case domain.IngestStatusIndexed:
		batch.Indexed = 1
	case domain.IngestStatusReplaced:
		batch.Replaced = 1
	case domain.IngestStatusSkipped:
		batch.Skipped = 1
	}
	fmt.Printf("%s: %s (doc %s, %d chunks)\n", result.Source, result.Status, result.DocID, result.ChunkCount)
	return batch, nil
}
