package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	EnvFile string `help:"Environment file loaded before reading CHOREGATE_* variables." default:".env" type:"path"`

	Serve ServeCmd `cmd:"" help:"Run the HTTP API and the sweep scheduler." default:"1"`
	Sweep SweepCmd `cmd:"" help:"Run one sweep immediately and exit."`
	Seed  SeedCmd  `cmd:"" help:"Create or update household members from a YAML file."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("choregate"),
		kong.Description("Chore tracking that gates kids' internet access on finished chores"),
		kong.UsageOnError(),
	)

	app, err := newApp(CLI.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := ctx.Run(app); err != nil {
		app.logger.Error("command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}
