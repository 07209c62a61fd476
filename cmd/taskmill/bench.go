package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	taskcell "github.com/taskmill/taskmill/cell"
)

const itersKey = "iters"

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Measure write propagation through derivation grids",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Writes per grid shape",
				Value: 100,
			},
		},
		Action: runBench,
	}
}

var gridShapes = []struct{ width, depth int }{
	{1, 1},
	{1, 100},
	{10, 10},
	{10, 100},
	{100, 10},
	{100, 100},
}

func runBench(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(itersKey))
	log.Printf("warming up")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"grid", "avg", "min", "p75", "p99", "max"})

	for _, shape := range gridShapes {
		tach := tachymeter.New(&tachymeter.Config{Size: iters})

		rt := taskcell.New()
		src := taskcell.NewCell(rt, 1)
		for w := 0; w < shape.width; w++ {
			last := func() int { return src.Read() }
			for d := 0; d < shape.depth; d++ {
				prev := last
				derived := taskcell.NewDerived(rt, func() int {
					return prev() + 1
				})
				last = func() int { return derived.Read() }
			}
			sink := last
			taskcell.NewEffect(rt, func() error {
				sink()
				return nil
			})
		}

		for i := 0; i < iters; i++ {
			start := time.Now()
			src.Write(src.Peek() + 1)
			tach.AddTime(time.Since(start))
		}

		calc := tach.Calc()
		table.Append([]string{
			fmt.Sprintf("propagate: %d * %d", shape.width, shape.depth),
			calc.Time.Avg.String(),
			calc.Time.Min.String(),
			calc.Time.P75.String(),
			calc.Time.P99.String(),
			calc.Time.Max.String(),
		})
	}

	table.Render()
	return nil
}
