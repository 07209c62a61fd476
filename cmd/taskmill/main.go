package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "taskmill",
		Usage: "Reactive task tracking with a simulated backend",
		Commands: []*cli.Command{
			demoCommand(),
			benchCommand(),
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
