package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"stepflow/internal/api/handlers"
	"stepflow/internal/api/routes"
	"stepflow/internal/services"
	"stepflow/pkg/auth"
)

func newServeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the control API and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.serve(cmd.Context())
		},
	}
}

func (a *App) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	hub := handlers.NewHub(a.Log)
	orch := a.newOrchestrator(store, hub, hub)

	scheduler := services.NewScheduler(orch, store, a.Log)
	scheduler.Start()

	if a.Config.Auth.PasswordHash == "" {
		a.Log.Warn("⚠️ auth.password_hash is empty, API login is disabled")
	}

	gin.SetMode(a.Config.Server.Mode)
	signer := auth.NewSigner(a.Config.JWT.Secret)
	h := handlers.New(handlers.Deps{
		Batches:   orch,
		Store:     store,
		Schedules: scheduler,
		Signer:    signer,
		Auth:      a.Config.Auth,
		JWTExpire: a.Config.JWT.ExpireTime,
		Hub:       hub,
		Log:       a.Log,
	})
	router := routes.SetupRoutes(h, routes.Options{Signer: signer, ScreenshotDir: a.Config.Execution.ScreenshotDir})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Infof("🌐 Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	a.Log.Info("Shutting down server...")
	orch.RequestStop()
	<-scheduler.Stop().Done()
	waitIdle(orch, 30*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Warnf("⚠️ server shutdown: %v", err)
	}
	a.Log.Info("Server shutdown complete")
	return nil
}

// waitIdle gives a stopping batch time to persist its last result.
func waitIdle(orch *services.Orchestrator, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for orch.Running() && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
}
