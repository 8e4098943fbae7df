// Command fiber exercises the fiber runtime from the command line: it
// reads files through a callback-style API, runs sleeping fibers side by
// side, and serves HTTP requests one fiber per request.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "fiber",
		Usage: "run callback-style work as straight-line fibers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a TOML config file",
				EnvVars: []string{"FIBER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
		},
		Commands: []*cli.Command{
			catCommand(),
			sleepCommand(),
			serveCommand(),
		},
	}
}
