package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/identity/internal/client/cli"
	"github.com/dmitrijs2005/identity/internal/client/config"
	"github.com/dmitrijs2005/identity/internal/flagx"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	args := flagx.Positional(os.Args[1:], []string{"-a", "-s", "-t", "-c", "-config"})
	app := cli.NewApp(cfg, os.Stdout)

	if err := app.Run(ctx, args); err != nil {
		if !errors.Is(err, cli.ErrUsage) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
