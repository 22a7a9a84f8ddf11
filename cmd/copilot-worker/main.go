// Command copilot-worker runs the background-job subsystem: it loads
// configuration, wires every collaborator via app.NewApp, starts the
// processor's worker pool and event hub, and serves the webhook intake,
// health, metrics, and websocket endpoints over HTTP until an interrupt or
// SIGTERM triggers a graceful shutdown. Grounded on the teacher's
// cmd/vire-server/main.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/app"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/server"
)

func main() {
	configPath := os.Getenv("COPILOT_CONFIG")

	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)

	ctx := context.Background()
	a.Start(ctx)

	srv := server.NewServer(a)
	go func() {
		if err := srv.Start(); err != nil {
			a.Logger.Fatal().Str("error", err.Error()).Msg("HTTP server failed")
		}
	}()

	a.Logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port)).
		Msg("copilot-worker ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	common.PrintShutdownBanner(a.Logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Str("error", err.Error()).Msg("HTTP server shutdown failed")
	}

	a.Close()
	a.Logger.Info().Msg("copilot-worker stopped")
}
