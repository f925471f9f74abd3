package main

import (
	"context"
	"fmt"
	"os"

	"studio-scheduler-service/internal/ops"
)

func main() {
	app := ops.NewRoot(&ops.Flags{}, &ops.App{})
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
