package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driving"
)

var (
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and resume workflow runs",
	Long:  `List recent ingest and query runs, show their checkpointed steps, or resume them.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show a run and its completed steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsResumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Resume a run from its last completed step",
	Long: `Re-invokes a run with its stored input. Steps that already completed
return their checkpointed output; only the remaining steps execute.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsResume,
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum number of runs")
	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "output as JSON")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsResumeCmd)
	rootCmd.AddCommand(runsCmd)
}

// runJSON is the JSON shape of a run.
type runJSON struct {
	ID          string          `json:"id"`
	Function    string          `json:"function"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	Invocations int             `json:"invocations"`
	Input       json.RawMessage `json:"input,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Steps       []stepJSON      `json:"steps,omitempty"`
}

type stepJSON struct {
	Name        string    `json:"name"`
	Attempts    int       `json:"attempts"`
	CompletedAt time.Time `json:"completed_at"`
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	if runService == nil {
		return notConfigured("run")
	}

	runs, err := runService.List(cmd.Context(), runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if runsJSON {
		out := make([]runJSON, len(runs))
		for i := range runs {
			out[i] = toRunJSON(&runs[i], nil)
		}
		return printJSON(cmd, out)
	}

	if len(runs) == 0 {
		cmd.Println("No runs found.")
		return nil
	}

	cmd.Printf("%-36s  %-10s  %-22s  %s\n", "ID", "FUNCTION", "STATUS", "UPDATED")
	for i := range runs {
		r := &runs[i]
		cmd.Printf("%-36s  %-10s  %-22s  %s\n",
			r.ID, r.Function, r.Status, r.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	if runService == nil {
		return notConfigured("run")
	}

	detail, err := runService.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("run not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	return outputRunDetail(cmd, detail)
}

func runRunsResume(cmd *cobra.Command, args []string) error {
	if runService == nil {
		return notConfigured("run")
	}

	detail, err := runService.Resume(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("run not found: %s", args[0])
	}
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}

	return outputRunDetail(cmd, detail)
}

func outputRunDetail(cmd *cobra.Command, detail *driving.RunDetail) error {
	if runsJSON {
		return printJSON(cmd, toRunJSON(&detail.Run, detail.Steps))
	}

	run := &detail.Run
	cmd.Printf("Run:         %s\n", run.ID)
	cmd.Printf("Function:    %s\n", run.Function)
	cmd.Printf("Status:      %s\n", run.Status)
	cmd.Printf("Invocations: %d\n", run.Invocations)
	cmd.Printf("Created:     %s\n", run.CreatedAt.Local().Format(time.DateTime))
	cmd.Printf("Updated:     %s\n", run.UpdatedAt.Local().Format(time.DateTime))
	if run.Error != "" {
		cmd.Printf("Error:       %s\n", run.Error)
	}
	if len(run.Output) > 0 {
		cmd.Printf("Output:      %s\n", run.Output)
	}

	cmd.Println()
	if len(detail.Steps) == 0 {
		cmd.Println("No completed steps.")
		return nil
	}
	cmd.Println("Steps:")
	for _, step := range detail.Steps {
		cmd.Printf("  %-22s  attempts=%d  %s\n",
			step.Name, step.Attempts, step.CompletedAt.Local().Format(time.DateTime))
	}
	return nil
}

func toRunJSON(run *domain.WorkflowRun, steps []domain.StepRecord) runJSON {
	out := runJSON{
		ID:          run.ID,
		Function:    string(run.Function),
		Status:      run.Status.String(),
		Error:       run.Error,
		Invocations: run.Invocations,
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
	}
	if json.Valid(run.Input) {
		out.Input = run.Input
	}
	if json.Valid(run.Output) {
		out.Output = run.Output
	}
	for _, step := range steps {
		out.Steps = append(out.Steps, stepJSON{
			Name:        step.Name,
			Attempts:    step.Attempts,
			CompletedAt: step.CompletedAt,
		})
	}
	return out
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
