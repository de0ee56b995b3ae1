package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

var (
	queryTopK  int
	queryRunID string
	queryJSON  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from ingested PDFs",
	Long: `Embeds the question, retrieves the closest chunks from the vector store
and asks the chat model to answer using only those chunks.

Queries pass admission control first; a burst beyond the configured
throttle or rate limit is rejected before any work is done.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 5, "number of chunks to retrieve")
	queryCmd.Flags().StringVar(&queryRunID, "run-id", "", "resume the given run instead of starting a new one")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(queryCmd)
}

// queryOutput is the JSON shape printed by query --json.
type queryOutput struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NumContexts int      `json:"num_contexts"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return notConfigured("query")
	}
	if queryTopK < 1 {
		return fmt.Errorf("%w: --top-k must be at least 1, got %d", domain.ErrInvalidInput, queryTopK)
	}

	result, err := queryService.Query(cmd.Context(), domain.QueryRequest{
		Question: args[0],
		TopK:     queryTopK,
		RunID:    queryRunID,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		out := queryOutput{
			Answer:      result.Answer,
			Sources:     result.Sources,
			NumContexts: result.NumContexts,
		}
		if out.Sources == nil {
			out.Sources = []string{}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(result.Answer)
	if len(result.Sources) > 0 {
		cmd.Println()
		cmd.Printf("Sources (%d contexts):\n", result.NumContexts)
		for _, src := range result.Sources {
			cmd.Printf("  - %s\n", src)
		}
	}
	return nil
}
