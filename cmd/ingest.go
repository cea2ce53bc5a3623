package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pitwall/pitwall/internal/app"
	"github.com/pitwall/pitwall/internal/document"
	"github.com/pitwall/pitwall/internal/ingest"
)

var (
	ingestCategory     string
	ingestSeason       string
	ingestMaxRecords   int
	ingestMinPriority  int
	ingestBatchSize    int
	ingestValidateOnly bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest CSV/JSON source files into the document store",
	Long: `Ingest normalizes each record of the given files, embeds its
descriptive text and stores the result. Per-record failures are reported at
the end; the run always completes.

The category applies to every file of the invocation. Season is taken from
each record when present, falling back to --season.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestCategory, "category", "c", "", "document category for all files (required)")
	ingestCmd.Flags().StringVarP(&ingestSeason, "season", "s", "", "4-digit season used when records carry none (required)")
	ingestCmd.Flags().IntVar(&ingestMaxRecords, "max-records", 0, "cap records taken per file (0 = no cap)")
	ingestCmd.Flags().IntVar(&ingestMinPriority, "min-priority", 0, "skip sources below this priority")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "embedding/insert batch size (0 = configured default)")
	ingestCmd.Flags().BoolVar(&ingestValidateOnly, "validate-only", false, "normalize and validate without embedding or storing")
	_ = ingestCmd.MarkFlagRequired("category")
	_ = ingestCmd.MarkFlagRequired("season")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if !document.ValidCategory(ingestCategory) {
		return fmt.Errorf("unknown category %q, must be one of: %s",
			ingestCategory, strings.Join(document.Categories(), ", "))
	}
	if !document.ValidSeason(ingestSeason) {
		return fmt.Errorf("season must be a 4-digit year, got %q", ingestSeason)
	}

	a, err := app.Setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	sources := make([]ingest.Source, 0, len(args))
	for _, path := range args {
		sources = append(sources, ingest.Source{
			Name:     filepath.Base(path),
			Path:     path,
			Category: ingestCategory,
			Season:   ingestSeason,
		})
	}

	opts := ingest.Options{
		MaxRecordsPerSource: ingestMaxRecords,
		MinPriority:         ingestMinPriority,
		BatchSize:           ingestBatchSize,
		InterBatchDelay:     a.Config.Ingest.InterBatchDelay,
		ValidateOnly:        ingestValidateOnly,
	}
	if opts.MaxRecordsPerSource == 0 {
		opts.MaxRecordsPerSource = a.Config.Ingest.MaxRecordsPerSource
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = a.Config.Ingest.BatchSize
	}

	report, err := a.Orchestrator.Run(cmd.Context(), sources, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"attempted %d, succeeded %d, validation failed %d, embedding failed %d, insert failed %d (%s)\n",
		report.Attempted, report.Succeeded, report.ValidationFailed,
		report.EmbeddingFailed, report.InsertFailed, report.Duration.Round(time.Millisecond))
	for _, e := range report.Errors {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s record %d: %s\n", e.Stage, e.Source, e.Index, e.Message)
	}
	return nil
}
