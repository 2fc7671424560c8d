package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/macropower/resc/internal/cli"
	"github.com/macropower/resc/pkg/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := fang.Execute(ctx, cli.NewRootCmd(),
		fang.WithVersion(version.GetVersion()),
		fang.WithErrorHandler(cli.ErrorHandler),
	)

	stop()

	if err != nil {
		os.Exit(1)
	}
}
