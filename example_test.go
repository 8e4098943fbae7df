package fiber_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webriots/fiber"
)

// readConfig is a callback-style API: the result arrives later on
// another goroutine.
func readConfig(name string, cb func(string, error)) {
	time.AfterFunc(time.Millisecond, func() {
		if name == "" {
			cb("", errors.New("empty name"))
			return
		}
		cb("contents of "+name, nil)
	})
}

func ExampleWrap1() {
	read := fiber.Wrap1(readConfig)

	scope, _ := fiber.Run(context.Background(), func(ctx context.Context) error {
		s, err := read(ctx, "app.toml")
		if err != nil {
			return err
		}
		fmt.Println(s)
		return nil
	}, func(err error) {
		fmt.Println("error:", err)
	})
	<-scope.Done()
	// Output: contents of app.toml
}

func ExampleRun_errorHandler() {
	read := fiber.Wrap1(readConfig)

	scope, _ := fiber.Run(context.Background(), func(ctx context.Context) error {
		_, err := read(ctx, "")
		return err
	}, func(err error) {
		fmt.Println("error:", err)
	})
	<-scope.Done()
	// Output: error: empty name
}

func ExamplePair() {
	scope, _ := fiber.Run(context.Background(), func(ctx context.Context) error {
		resolve, wait, err := fiber.Pair(ctx)
		if err != nil {
			return err
		}
		go resolve(42, nil)
		v, err := wait()
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	}, func(err error) {
		fmt.Println("error:", err)
	})
	<-scope.Done()
	// Output: 42
}
