package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/webriots/fiber"
)

// readFileAsync is a callback-style file reader.
func readFileAsync(name string, cb func([]byte, error)) {
	go func() {
		data, err := os.ReadFile(name)
		cb(data, err)
	}()
}

func catCommand() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "print files, each read in its own fiber",
		ArgsUsage: "FILE...",
		Action:    catAction,
	}
}

func catAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one file is required", 1)
	}
	_, logger, err := settings(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	loop := fiber.NewLoop(fiber.WithName("cat"), fiber.WithLogger(logger))
	defer loop.Close()

	read := fiber.Wrap1(readFileAsync)
	names := c.Args().Slice()
	contents := make([][]byte, len(names))

	var (
		mu     sync.Mutex
		failed []error
	)
	onError := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, err)
	}

	scopes := make([]*fiber.Scope, 0, len(names))
	for i, name := range names {
		scope, err := loop.Run(c.Context, func(ctx context.Context) error {
			data, err := read(ctx, name)
			if err != nil {
				return fmt.Errorf("cat %s: %w", name, err)
			}
			contents[i] = data
			return nil
		}, name, onError)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		scopes = append(scopes, scope)
	}
	for _, scope := range scopes {
		<-scope.Done()
	}

	for _, data := range contents {
		if _, err := c.App.Writer.Write(data); err != nil {
			return err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, err := range failed {
		logger.Error("read failed", "error", err)
	}
	if len(failed) > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", len(failed), len(names)), 1)
	}
	return nil
}
