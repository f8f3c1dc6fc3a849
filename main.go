package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/swordlegend/dava.engine/cmd"
	"github.com/swordlegend/dava.engine/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.RootCommand(buildinfo.NewContext(version, buildDate)).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
