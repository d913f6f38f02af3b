package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/switchboard/internal/bootstrap"
	"github.com/cassiomorais/switchboard/internal/controller"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "switchboard-api", "switch")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	core, err := bootstrap.NewCore(app)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to wire services")
	}
	app.Logger.Info().Strs("connectors", core.Registry.Names()).Msg("Connector registry validated")

	router := controller.NewRouter(controller.RouterDeps{
		Pool:            app.Pool,
		RedisClient:     app.Redis,
		Registry:        core.Registry,
		Operations:      core.Operations,
		Webhooks:        core.Webhooks,
		IdempotencyRepo: core.IdempotencyRepo,
		Metrics:         app.Metrics,
		ServerConfig:    app.Config.Server,
	})

	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
