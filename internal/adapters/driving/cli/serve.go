package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/adapters/driving/mcp"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

var (
	serveHTTPAddr string
	serveNoResume bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server exposing the ingest_pdf and
query_pdf tools, plus the pdfrag://runs resources.

By default, the server communicates over stdio using JSON-RPC. Use --http
to serve streamable HTTP instead.

Ingest runs left unfinished by a previous process are resumed in the
background on start-up unless --no-resume is given. Run only one server
per database; run locks do not span processes.

Examples:
  # Stdio mode (default)
  pdfrag serve

  # HTTP mode
  pdfrag serve --http :8080

MCP client configuration:
  {
    "mcpServers": {
      "pdfrag": {
        "command": "/path/to/pdfrag",
        "args": ["serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "HTTP listen address (empty = use stdio)")
	serveCmd.Flags().BoolVar(&serveNoResume, "no-resume", false, "do not resume unfinished ingest runs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestService == nil || queryService == nil {
		return notConfigured("pipeline")
	}

	ports := &mcp.Ports{
		Ingest: ingestService,
		Query:  queryService,
		Runs:   runService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if runService != nil && !serveNoResume {
		go resumeIncomplete(ctx)
	}

	if serveHTTPAddr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s\n", serveHTTPAddr)
		return server.RunHTTP(ctx, serveHTTPAddr)
	}

	return server.Run(ctx)
}

// resumeIncomplete finishes ingest runs a previous process left behind.
// Run locks are held per process, so a run re-invoked at the same time from
// another pdfrag process against the same database is not serialised with it.
func resumeIncomplete(ctx context.Context) {
	n, err := runService.ResumeIncomplete(ctx)
	if err != nil {
		logger.Warn("resuming unfinished runs: %v", err)
	}
	if n > 0 {
		logger.Info("resumed %d unfinished ingest runs", n)
	}
}
