package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"stepflow/internal/models"
)

func newRunCommand(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "run [scenario-number...]",
		Short: "Run scenarios as one batch",
		Long: `Run the given scenarios, ordered by number, in one browser session.
Login steps run once per batch. Ctrl-C stops after the current step.

Example:
  stepflow run 1 2 5
  stepflow run --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers := make([]int, 0, len(args))
			for _, a := range args {
				n, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("invalid scenario number %q", a)
				}
				numbers = append(numbers, n)
			}
			if !all && len(numbers) == 0 {
				return fmt.Errorf("give scenario numbers or --all")
			}
			return app.run(cmd.Context(), numbers, all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every stored scenario")
	return cmd
}

func (a *App) run(ctx context.Context, numbers []int, all bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var scenarios []models.Scenario
	if all {
		scenarios, err = store.ListScenarios(ctx)
	} else {
		scenarios, err = store.FindScenariosByNumber(ctx, numbers)
	}
	if err != nil {
		return fmt.Errorf("load scenarios: %w", err)
	}
	if len(scenarios) == 0 {
		return fmt.Errorf("no matching scenarios")
	}

	orch := a.newOrchestrator(store, &progressPrinter{out: a.Out}, nil)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		if _, ok := <-sigs; ok {
			fmt.Fprintln(a.Out, warnStyle.Render("🛑 stopping after the current step..."))
			orch.RequestStop()
		}
	}()

	summary, err := orch.RunBatch(ctx, scenarios)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, RenderSummary(summary))
	if summary.Failed > 0 || summary.Stopped {
		return NewExitError(1)
	}
	return nil
}
