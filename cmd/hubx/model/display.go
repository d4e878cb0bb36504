package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/vbauerster/mpb/v7"
	"kubegems.io/hubx/pkg/client"
	"kubegems.io/hubx/pkg/client/progress"
	"kubegems.io/hubx/pkg/settings"
	"kubegems.io/hubx/pkg/types"
)

// TerminalDisplay renders task events on a terminal.
type TerminalDisplay struct {
	Out   io.Writer
	Theme string
	// BarName labels the progress bar of the next download.
	BarName string

	pool *mpb.Progress
	bar  *progress.PercentBar
}

func NewTerminalDisplay(out io.Writer, theme string) *TerminalDisplay {
	return &TerminalDisplay{Out: out, Theme: theme}
}

func (d *TerminalDisplay) OnSearchResult(models []types.ModelSummary) {
	if len(models) == 0 {
		fmt.Fprintln(d.Out, "no models found")
		return
	}
	d.Render(client.ShowSummaries(models))
}

func (d *TerminalDisplay) OnProgress(percent int) {
	if d.bar == nil {
		name := d.BarName
		if name == "" {
			name = "download"
		}
		d.pool = progress.NewPool(d.Out)
		bar := progress.CreatePercentBar(d.pool, name, "done")
		d.bar = &bar
	}
	d.bar.Set(percent)
}

func (d *TerminalDisplay) OnMessage(title, body string) {
	d.finishBar()
	fmt.Fprintf(d.Out, "%s: %s\n", title, body)
}

func (d *TerminalDisplay) OnInferenceResult(payload json.RawMessage) {
	buf := &bytes.Buffer{}
	if err := json.Indent(buf, payload, "", "  "); err != nil {
		d.Out.Write(payload)
	} else {
		buf.WriteTo(d.Out)
	}
	fmt.Fprintln(d.Out)
}

// Render prints a table in the configured theme.
func (d *TerminalDisplay) Render(show *client.ShowList) {
	t := table.NewWriter()
	t.SetOutputMirror(d.Out)
	if d.Theme == settings.ThemeDark {
		t.SetStyle(table.StyleColoredDark)
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.AppendHeader(table.Row(show.Header))
	for _, item := range show.Items {
		t.AppendRow(table.Row(item))
	}
	t.Render()
}

func (d *TerminalDisplay) Close() {
	d.finishBar()
}

func (d *TerminalDisplay) finishBar() {
	if d.bar == nil {
		return
	}
	d.bar.Close()
	d.pool.Wait()
	d.bar, d.pool = nil, nil
}
