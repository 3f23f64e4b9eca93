package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cremeria-raiz/internal/cli"

	// time zone data for hosts without a zoneinfo database
	_ "time/tzdata"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
