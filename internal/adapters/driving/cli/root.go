// Package cli provides the pdfrag command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// version is set at build time.
var version = "dev"

var verbose bool

// Services wired by main. Commands check for nil before use.
var (
	ingestService   driving.IngestService
	queryService    driving.QueryService
	runService      driving.RunService
	settingsService driving.SettingsService

	// setupErr explains why the pipeline services are missing, if they are.
	setupErr error
)

var rootCmd = &cobra.Command{
	Use:   "pdfrag",
	Short: "Durable PDF retrieval-augmented question answering",
	Long: `pdfrag ingests PDF documents into a vector store and answers questions
from them with a chat model.

Every ingest and query is a durable workflow run. Completed steps are
checkpointed, so re-running with the same --run-id resumes where the
previous attempt stopped.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services bundles the core services the commands drive.
type Services struct {
	Ingest   driving.IngestService
	Query    driving.QueryService
	Runs     driving.RunService
	Settings driving.SettingsService
}

// SetServices installs the services. err records why the pipeline
// could not be built; config commands keep working without it.
func SetServices(s Services, err error) {
	ingestService = s.Ingest
	queryService = s.Query
	runService = s.Runs
	settingsService = s.Settings
	setupErr = err
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// notConfigured reports a missing service, with the setup error when known.
func notConfigured(name string) error {
	if setupErr != nil {
		return fmt.Errorf("%s service not configured: %w", name, setupErr)
	}
	return fmt.Errorf("%s service not configured", name)
}
