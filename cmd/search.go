package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitwall/pitwall/internal/app"
	"github.com/pitwall/pitwall/internal/store"
)

var (
	searchCategory string
	searchSeason   string
	searchTeam     string
	searchDriver   string
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find documents relevant to a free-text query",
	Long: `Search embeds the query, runs a similarity search against the
configured backend and prints the ranked hits. When vector search fails or
finds nothing, a lexical substring match is used instead; those hits carry
a constant 0.50 similarity.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "restrict to one category")
	searchCmd.Flags().StringVar(&searchSeason, "season", "", "restrict to one season")
	searchCmd.Flags().StringVar(&searchTeam, "team", "", "restrict to one team")
	searchCmd.Flags().StringVar(&searchDriver, "driver", "", "restrict to one driver")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := app.Setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	results := a.Retrieval.Retrieve(cmd.Context(), args[0], searchFilters(), searchLimit)
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no matching documents")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. [%.2f] (%s/%s) %s\n",
			i+1, r.Similarity, r.Document.Category, r.Document.Season, r.Document.Text)
	}
	return nil
}

func searchFilters() store.Filters {
	return store.Filters{
		Category: searchCategory,
		Season:   searchSeason,
		Team:     searchTeam,
		Driver:   searchDriver,
	}
}
