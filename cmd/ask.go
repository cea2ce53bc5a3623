package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitwall/pitwall/internal/app"
	"github.com/pitwall/pitwall/internal/store"
)

var askLimit int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question grounded in the stored documents",
	Long: `Ask retrieves the documents most relevant to the question and
synthesizes an answer from them. When the completion service is unavailable
the retrieved context is returned directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", 5, "documents to ground the answer on")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := app.Setup(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()

	question := args[0]
	results := a.Retrieval.Retrieve(cmd.Context(), question, store.Filters{}, askLimit)

	contextDocs := make([]string, 0, len(results))
	for _, r := range results {
		contextDocs = append(contextDocs, r.Document.Text)
	}

	fmt.Fprintln(cmd.OutOrStdout(), a.Answerer.Answer(cmd.Context(), question, contextDocs))
	return nil
}
