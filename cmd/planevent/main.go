package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"planevent/cmd/planevent/cmd"
	"planevent/internal/export"
	appLog "planevent/internal/log"
)

func main() {
	// .env is optional; PLANEVENT_* variables may also come from the shell.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load .env", "err", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		var verr *export.ValidationError
		var serr *export.SerializationError
		// Both were already printed for the user.
		if !errors.As(err, &verr) && !errors.As(err, &serr) {
			appLog.Error("planevent failed", err)
		}
		stop()
		os.Exit(1)
	}
}
