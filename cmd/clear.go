package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitwall/pitwall/internal/app"
)

var clearConfirmed bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all documents from the store",
	Long:  `Clear removes every stored document. There is no undo.`,
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "confirm deletion")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearConfirmed {
		return fmt.Errorf("refusing to delete all documents without --yes")
	}

	a, err := app.Setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	if err := a.Store.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "store cleared")
	return nil
}
