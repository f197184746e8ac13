package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/cli"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scrapq: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}
