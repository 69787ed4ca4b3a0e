// Package report renders the per-tick population of a run as a PNG line
// chart: quiescent, active and jailed citizens over time.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/talgya/unrest/internal/engine"
)

// ErrNotEnoughData is returned for histories shorter than two ticks.
var ErrNotEnoughData = errors.New("not enough data to chart")

const (
	defaultWidth  = 1024
	defaultHeight = 400
)

// Colours match the grid portrayal of citizens.
var (
	quiescentColor = drawing.ColorFromHex("0066CC")
	activeColor    = drawing.ColorFromHex("CC0000")
	jailedColor    = drawing.ColorFromHex("757575")
)

// Options sizes the chart. Zero values use the defaults.
type Options struct {
	Width  int
	Height int
	Title  string
}

// Chart renders history as a PNG into w.
func Chart(w io.Writer, history []engine.Stats, opts Options) error {
	if len(history) < 2 {
		return fmt.Errorf("%w: %d ticks", ErrNotEnoughData, len(history))
	}
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}

	ticks := make([]float64, len(history))
	quiescent := make([]float64, len(history))
	active := make([]float64, len(history))
	jailed := make([]float64, len(history))
	yMax := 1.0
	for i, st := range history {
		ticks[i] = float64(st.Tick)
		quiescent[i] = float64(st.Quiescent)
		active[i] = float64(st.Active)
		jailed[i] = float64(st.Jailed)
		yMax = max(yMax, float64(st.Citizens()))
	}

	graph := chart.Chart{
		Title:  opts.Title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "tick",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: ticks[0], Max: ticks[len(ticks)-1]},
			ValueFormatter: func(v any) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "citizens",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: yMax},
			ValueFormatter: func(v any) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Quiescent",
				XValues: ticks,
				YValues: quiescent,
				Style:   chart.Style{StrokeColor: quiescentColor, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    "Active",
				XValues: ticks,
				YValues: active,
				Style:   chart.Style{StrokeColor: activeColor, StrokeWidth: 2.0},
			},
			chart.ContinuousSeries{
				Name:    "Jailed",
				XValues: ticks,
				YValues: jailed,
				Style:   chart.Style{StrokeColor: jailedColor, StrokeWidth: 2.0},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// WriteFile renders history as a PNG file at path.
func WriteFile(path string, history []engine.Stats, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Chart(f, history, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
