package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stepflow/internal/services"
	"stepflow/pkg/chrome"
)

func newInspectCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <scenario-number>",
		Short: "Show the resolved steps of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid scenario number %q", args[0])
			}
			store, err := app.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			found, err := store.FindScenariosByNumber(cmd.Context(), []int{number})
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return fmt.Errorf("scenario #%d not found", number)
			}
			sc := found[0]
			recs, err := store.ScenarioSteps(cmd.Context(), sc.ID)
			if err != nil {
				return err
			}
			title := fmt.Sprintf("Scenario #%d (%d steps, last result %s)", sc.Number, len(recs), sc.Result)
			fmt.Fprintln(app.Out, headerStyle.Render(title))
			if sc.Description != "" {
				fmt.Fprintln(app.Out, dimStyle.Render(sc.Description))
			}
			fmt.Fprint(app.Out, RenderSteps(recs))
			if services.HasLoginPrefix(recs) {
				fmt.Fprintln(app.Out, dimStyle.Render("starts with a login sequence"))
			}
			return nil
		},
	}
}

func newDevicesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the device profiles available for emulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range chrome.DeviceNames() {
				dev, _ := chrome.LookupDevice(name)
				fmt.Fprintf(app.Out, "%-20s %dx%d\n", name, dev.Width, dev.Height)
			}
			return nil
		},
	}
}
