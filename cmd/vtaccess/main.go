package main

import (
	"context"
	"log/slog"
	"os"
	"vtaccess/cmd/vtaccess/commands"
	"vtaccess/lib/serviceutil"
	"vtaccess/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.InitSlog(false)

	err := telemetry.SetupFromEnv(ctx, "vtaccess")
	if err != nil {
		slog.Warn("failed to set up telemetry", "err", err)
	}

	err = commands.ExecuteContext(ctx)

	shutdownErr := telemetry.Shutdown(context.Background())
	if shutdownErr != nil {
		slog.Warn("telemetry shutdown", "err", shutdownErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
