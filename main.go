package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/michaeltrefry/Yapplr-sub001/cmd"
	"github.com/michaeltrefry/Yapplr-sub001/internal/conf"
	"github.com/michaeltrefry/Yapplr-sub001/internal/notification"
	"github.com/michaeltrefry/Yapplr-sub001/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings)

	err := rootCmd.ExecuteContext(ctx)

	telemetry.Shutdown()
	_ = notification.CloseLogger()

	if err != nil {
		os.Exit(1)
	}
}
