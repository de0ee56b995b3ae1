package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
)

var (
	ingestSourceID string
	ingestRunID    string
	ingestJSON     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [pdf-path]",
	Short: "Ingest a PDF into the vector store",
	Long: `Extracts the text of a PDF, splits it into overlapping chunks, embeds
them and upserts them into the configured vector store.

Chunk IDs are derived from the source ID and chunk position, so ingesting
the same file twice replaces its points rather than duplicating them.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSourceID, "source-id", "", "source label stored with each chunk (default: the path)")
	ingestCmd.Flags().StringVar(&ingestRunID, "run-id", "", "resume the given run instead of starting a new one")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return notConfigured("ingest")
	}

	result, err := ingestService.Ingest(cmd.Context(), domain.IngestRequest{
		PDFPath:  args[0],
		SourceID: ingestSourceID,
		RunID:    ingestRunID,
	})
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		data, err := json.MarshalIndent(map[string]int{"ingested": result.Ingested}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Ingested %d chunks from %s\n", result.Ingested, args[0])
	return nil
}
