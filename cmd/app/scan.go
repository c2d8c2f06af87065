package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"

	"github.com/starford/orgsync/internal"
)

func scan(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	report, err := internal.Scan(ctx, internal.WithConfig(cfg), internal.WithLogOutput(io.Discard))
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	renderReport(os.Stdout, report, cmd.Bool("failures-only"))
	if len(report.Failures) > 0 {
		return cli.Exit(fmt.Sprintf("%d file(s) failed to load", len(report.Failures)), 2)
	}
	return nil
}

func renderReport(w io.Writer, report *internal.ScanReport, failuresOnly bool) {
	if !failuresOnly {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{
			text.FgGreen.Sprintf("Path"), text.FgGreen.Sprintf("Title"),
			text.FgGreen.Sprintf("Category"), text.FgGreen.Sprintf("File tags"),
			text.FgGreen.Sprintf("Headlines"),
		})
		for _, d := range report.Documents {
			t.AppendRow(table.Row{d.Path, d.Title, d.Category, strings.Join(d.FileTags, ", "), d.HeadlineCount})
		}
		t.AppendFooter(table.Row{"", "", "", "Total", report.Stats.Headlines})
		t.Render()

		fmt.Fprintf(w, "\n%d documents, %d tags, %d categories\n",
			report.Stats.Documents, report.Stats.Tags, report.Stats.Categories)
	}

	if len(report.Failures) == 0 {
		return
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleRounded)
	ft.AppendHeader(table.Row{
		text.FgHiRed.Sprintf("Failed path"), text.FgHiRed.Sprintf("Kind"), text.FgHiRed.Sprintf("Error"),
	})
	for _, f := range report.Failures {
		ft.AppendRow(table.Row{f.Path, string(f.Kind), f.Message})
	}
	ft.Render()
}
