package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitwall/pitwall/internal/app"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report backend status",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := app.Setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	h := a.Store.HealthCheck(cmd.Context())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backend:      %s\n", h.Backend)
	fmt.Fprintf(out, "configured:   %t\n", h.Configured)
	fmt.Fprintf(out, "reachable:    %t\n", h.Reachable)
	fmt.Fprintf(out, "schema ready: %t\n", h.SchemaReady)
	fmt.Fprintf(out, "documents:    %d\n", h.Documents)
	if h.Error != "" {
		fmt.Fprintf(out, "error:        %s\n", h.Error)
	}
	return nil
}
