package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/taskmill/taskmill/app"
	"github.com/taskmill/taskmill/model"
)

const (
	dataDirKey    = "data-dir"
	delayScaleKey = "delay-scale"
)

func demoCommand() *cli.Command {
	return &cli.Command{
		Name:  "demo",
		Usage: "Run a scripted session and render the resulting state",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  dataDirKey,
				Usage: "Directory for durable state; empty keeps the session in memory",
			},
			&cli.FloatFlag{
				Name:  delayScaleKey,
				Usage: "Scale factor for the simulated latencies",
				Value: 0.1,
			},
		},
		Action: runDemo,
	}
}

func runDemo(ctx context.Context, cmd *cli.Command) error {
	a, err := app.New(app.Config{
		DataDir:    cmd.String(dataDirKey),
		DelayScale: cmd.Float(delayScaleKey),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Auth.Login("admin@example.com", "admin123"); err != nil {
		return err
	}
	log.Printf("signed in as %s", a.Auth.CurrentUser().Name)

	assignee := 2
	deadline := time.Now().Add(36 * time.Hour)
	todo, err := a.Todos.Create("Review quarterly report", "Numbers first, prose later", model.PriorityHigh, &assignee, &deadline)
	if err != nil {
		return err
	}
	if _, err := a.Comments.Create(todo.ID, "Draft is in the shared folder"); err != nil {
		return err
	}
	if _, err := a.Todos.Advance(todo.ID); err != nil {
		return err
	}

	a.Tick(time.Now())

	renderTodos(a)
	renderUsers(a)
	renderStats(a)

	for _, n := range a.Notifier.Notifications() {
		fmt.Printf("[%s] %s\n", n.Severity, n.Message)
	}
	return nil
}

func renderTodos(a *app.App) {
	cols := a.Columns.VisibleColumns("todos")

	tbl := table.NewWriter()
	tbl.SetTitle("Todos")
	tbl.SetOutputMirror(os.Stdout)

	header := table.Row{}
	for _, c := range cols {
		header = append(header, c.Label)
	}
	tbl.AppendHeader(header)

	for _, td := range a.Todos.Todos() {
		row := table.Row{}
		for _, c := range cols {
			row = append(row, todoCell(a, td, c.Key))
		}
		tbl.AppendRows([]table.Row{row})
	}
	tbl.Render()
}

func todoCell(a *app.App, td model.Todo, key string) string {
	switch key {
	case "title":
		return td.Title
	case "status":
		return string(td.Status)
	case "priority":
		return string(td.Priority)
	case "assignedTo":
		return a.Todos.AssigneeName(td)
	case "deadline":
		if td.Deadline == nil {
			return "-"
		}
		if status := a.Deadlines.StatusFor(td.ID); status != "" {
			return fmt.Sprintf("%s (%s)", humanize.Time(*td.Deadline), status)
		}
		return humanize.Time(*td.Deadline)
	case "comments":
		return fmt.Sprintf("%d", a.Comments.CountFor(td.ID))
	case "description":
		return td.Description
	case "actions":
		return ""
	default:
		return ""
	}
}

func renderUsers(a *app.App) {
	tbl := table.NewWriter()
	tbl.SetTitle("Users")
	tbl.SetOutputMirror(os.Stdout)

	cols := a.Columns.VisibleColumns("users")
	header := table.Row{}
	for _, c := range cols {
		header = append(header, c.Label)
	}
	tbl.AppendHeader(header)

	for _, u := range a.Auth.Users() {
		row := table.Row{}
		for _, c := range cols {
			switch c.Key {
			case "name":
				row = append(row, u.Name)
			case "email":
				row = append(row, u.Email)
			case "role":
				row = append(row, string(u.Role))
			default:
				row = append(row, "")
			}
		}
		tbl.AppendRows([]table.Row{row})
	}
	tbl.Render()
}

func renderStats(a *app.App) {
	st := a.Todos.Stats()
	api := a.API.Stats()

	tbl := table.NewWriter()
	tbl.SetTitle("Session")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendRows([]table.Row{
		{"total todos", humanize.Comma(int64(st.Total))},
		{"completed", humanize.Comma(int64(st.Completed))},
		{"completion rate", fmt.Sprintf("%.1f%%", st.CompletionRate)},
		{"high priority", humanize.Comma(int64(st.HighPriority))},
		{"overdue", humanize.Comma(int64(a.Deadlines.OverdueCount()))},
		{"api requests", humanize.Comma(int64(api.TotalRequests))},
	})
	tbl.Render()
}
