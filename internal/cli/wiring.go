package cli

import (
	"stepflow/internal/executor"
	"stepflow/internal/services"
	"stepflow/pkg/chrome"
	"stepflow/pkg/database"
)

func (a *App) openStore() (database.Store, error) {
	return database.Open(a.Config, a.Log)
}

func (a *App) sessionProvider() *chrome.Provider {
	c := a.Config.Chrome
	return chrome.NewProvider(chrome.Options{
		Headless:      c.HeadlessMode,
		RemoteURL:     c.RemoteURL,
		ExecPath:      c.Path,
		Device:        c.Device,
		ActionTimeout: a.Config.Execution.ElementTimeout,
	}, a.Log)
}

func (a *App) newOrchestrator(store database.Store, progress executor.ProgressSink, observer services.ChangeObserver) *services.Orchestrator {
	e := a.Config.Execution
	opts := []services.OrchestratorOption{
		services.WithProgressSink(progress),
		services.WithExecTimeouts(e.Timeouts()),
		services.WithBaseURL(e.BaseURL),
		services.WithSettle(e.SettleDelay, e.SettleTick),
		services.WithLogger(a.Log),
	}
	if observer != nil {
		opts = append(opts, services.WithObserver(observer))
	}
	if e.ScreenshotDir != "" {
		opts = append(opts, services.WithSnapshots(&executor.FileSnapshotStore{Dir: e.ScreenshotDir}))
	}
	return services.NewOrchestrator(a.sessionProvider(), store, store, opts...)
}
