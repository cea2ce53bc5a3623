// Package cmd contains the pitwall command-line interface.
//
// Following the pattern used by kubectl, hugo and other standard Go CLI
// tools, all command logic lives here and main.go stays a minimal entry
// point.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pitwall",
	Short: "pitwall - motorsport knowledge ingestion and retrieval",
	Long: `pitwall ingests heterogeneous motorsport data files, embeds their
descriptive text, and retrieves relevant documents to ground free-text
questions.

Configure a backend with PITWALL_DATABASE_URL (PostgreSQL + pgvector) or
PITWALL_BADGER_DIR (embedded store), and the embedding service with
PITWALL_EMBEDDING_ENDPOINTS.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
