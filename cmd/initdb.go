package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitwall/pitwall/internal/app"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the backend schema and similarity index",
	Long: `Init prepares the configured backend: for postgres it applies the
embedded migrations (documents table, filter indexes, ANN index and stored
routines); for badger it verifies the data directory opens. Running init
again is safe.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := app.Setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	if err := a.Store.Initialize(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "backend initialized")
	return nil
}
