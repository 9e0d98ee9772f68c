package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"playermail/cmd/playermail/commands"
	"playermail/internal/components/telemetry"
	"playermail/lib/osutil"
	"time"
)

func main() {
	ctx := osutil.SignalContext(context.Background())

	otel, err := telemetry.SetupFromEnv(ctx, "playermail")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = otel.Shutdown(shutdownCtx)
	cancel()
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}

	os.Exit(code)
}
