package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stepflow/internal/config"
	"stepflow/pkg/logger"
)

// App holds what every subcommand needs once flags are parsed.
type App struct {
	ConfigPath string
	LogLevel   string

	Config *config.Config
	Log    *zap.SugaredLogger
	Out    io.Writer
}

func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "stepflow",
		Short: "Run recorded browser scenarios against a live site",
		Long: `stepflow replays stored UI scenarios in Chrome.

It resolves element targets through a chain of fallback strategies,
runs scenarios in batches that share one login, and serves a control
API with live progress over websocket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init()
		},
	}
	root.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "", "path to a YAML config file (default $"+config.ConfigEnv+")")
	root.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCommand(app),
		newRunCommand(app),
		newInspectCommand(app),
		newDevicesCommand(app),
	)
	return root
}

func (a *App) init() error {
	cfg, err := config.LoadConfig(a.ConfigPath)
	if err != nil {
		return err
	}
	if a.LogLevel != "" {
		cfg.Log.Level = a.LogLevel
	}
	log, err := logger.Init(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.Config = cfg
	a.Log = log
	if a.Out == nil {
		a.Out = os.Stdout
	}
	return nil
}

// Execute runs the CLI and returns the exit code.
func Execute() int {
	app := &App{}
	err := NewRootCommand(app).Execute()
	logger.Sync()
	if err == nil {
		return 0
	}
	if code, ok := IsExitError(err); ok {
		return code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return 1
}
