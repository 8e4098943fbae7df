package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/webriots/fiber"
)

func sleepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sleep",
		Usage: "run several sleeping fibers on one loop",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Value:   3,
				Usage:   "number of fibers",
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Value:   100 * time.Millisecond,
				Usage:   "how long each fiber sleeps",
			},
		},
		Action: sleepAction,
	}
}

func sleepAction(c *cli.Context) error {
	count := c.Int("count")
	d := c.Duration("duration")
	if count < 1 {
		return cli.Exit("count must be at least 1", 1)
	}
	_, logger, err := settings(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	loop := fiber.NewLoop(fiber.WithName("sleep"), fiber.WithLogger(logger))
	defer loop.Close()

	start := time.Now()
	lines := make(chan string, count)
	scopes := make([]*fiber.Scope, 0, count)
	for i := 0; i < count; i++ {
		scope, err := loop.Run(c.Context, func(ctx context.Context) error {
			if err := fiber.Sleep(ctx, d); err != nil {
				return err
			}
			lines <- fmt.Sprintf("fiber %d woke after %s", i, time.Since(start).Round(time.Millisecond))
			return nil
		}, func(err error) {
			logger.Error("fiber failed", "fiber", i, "error", err)
		})
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		scopes = append(scopes, scope)
	}
	for _, scope := range scopes {
		<-scope.Done()
	}
	close(lines)

	for line := range lines {
		fmt.Fprintln(c.App.Writer, line)
	}
	fmt.Fprintf(c.App.Writer, "%d fibers done in %s\n", count, time.Since(start).Round(time.Millisecond))
	return nil
}
