package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pitwall/pitwall/internal/app"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document counts by category and season",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := app.Setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	stats, err := a.Store.Statistics(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetch statistics: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "total documents: %d\n", stats.TotalDocuments)

	fmt.Fprintln(out, "by category:")
	for _, k := range sortedKeys(stats.DocumentsByCategory) {
		fmt.Fprintf(out, "  %-20s %d\n", k, stats.DocumentsByCategory[k])
	}
	fmt.Fprintln(out, "by season:")
	for _, k := range sortedKeys(stats.DocumentsBySeason) {
		fmt.Fprintf(out, "  %-20s %d\n", k, stats.DocumentsBySeason[k])
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
