package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/neu-planner/backend/internal/app"
	"github.com/neu-planner/backend/internal/cli"
	"github.com/neu-planner/backend/pkg/config"
	appLogger "github.com/neu-planner/backend/pkg/logger"
)

var CLI struct {
	Verbose bool `short:"v" help:"Log to stderr at debug level."`

	Refresh  cli.RefreshCmd  `cmd:"" help:"Refetch course data from the registration portal."`
	Status   cli.StatusCmd   `cmd:"" help:"Show what the cache holds."`
	Cleanup  cli.CleanupCmd  `cmd:"" help:"Delete cache entries that are about to expire."`
	Plan     cli.PlanCmd     `cmd:"" help:"Generate a plan."`
	Validate cli.ValidateCmd `cmd:"" help:"Validate one semester's schedule."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("planctl"),
		kong.Description("Operations tool for the course planner"),
		kong.UsageOnError(),
	)

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx *kong.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := "warn"
	if CLI.Verbose {
		level = "debug"
	}
	if err := appLogger.Init(appLogger.Options{Level: level, Format: "console", OutputPath: "stderr"}); err != nil {
		return err
	}
	defer appLogger.Sync()

	a := app.Build(cfg)
	defer a.Close()

	return ctx.Run(&cli.Context{
		Catalog: a.Loader,
		Runner:  a.Runner,
		Store:   a.Store,
		Out:     os.Stdout,
	})
}
