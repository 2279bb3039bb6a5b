package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rileyhilliard/dockhand/internal/chart"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/metrics"
)

// View selects what a chart activity draws.
type View int

const (
	ViewDashboard View = iota
	ViewCPU
	ViewMemory
	ViewNetwork
	ViewStatus
)

var viewNames = map[View]string{
	ViewDashboard: "dashboard",
	ViewCPU:       "cpu",
	ViewMemory:    "memory",
	ViewNetwork:   "network",
	ViewStatus:    "status",
}

func (v View) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}
	return "unknown"
}

// ChartNames lists the single-chart views in display order.
func ChartNames() []string {
	return []string{"cpu", "memory", "network", "status"}
}

// ParseView maps a chart name to its view.
func ParseView(name string) (View, error) {
	for v, n := range viewNames {
		if strings.EqualFold(n, name) {
			return v, nil
		}
	}
	return 0, errors.New(errors.ErrInput,
		fmt.Sprintf("Unknown chart: %s", name),
		"Pick one of: "+strings.Join(ChartNames(), ", "))
}

// Compose lays out one frame of view v. It is pure: the same frame and
// size always produce the same grid.
func Compose(v View, f metrics.Frame, w, h int) chart.Grid {
	g := chart.NewGrid(w, h)
	if g.H == 0 {
		return g
	}

	top := 0
	if h >= 3 {
		header(g, v.String(), fmt.Sprintf("%d running  %s", running(f), f.Taken.Format("15:04:05")))
		top = 1
	}
	bh := h - top

	switch v {
	case ViewCPU:
		g.Blit(0, top, cpuPanel(f, w, bh))
	case ViewMemory:
		g.Blit(0, top, chart.Render(chart.Request{Kind: chart.KindBar, Width: w, Height: bh, Title: "Memory", Series: memSeries(f)}))
	case ViewNetwork:
		g.Blit(0, top, chart.Render(chart.Request{Kind: chart.KindSparkline, Width: w, Height: bh, Title: "Network", Series: netSeries(f)}))
	case ViewStatus:
		g.Blit(0, top, chart.Render(chart.Request{Kind: chart.KindProportion, Width: w, Height: bh, Title: "Status", Slices: StatusSlices(f.Presence)}))
	default:
		composite(g, top, f)
	}
	return g
}

// composite stacks CPU, memory and status, and gives whatever rows are
// left to the system network sparklines.
func composite(g chart.Grid, top int, f metrics.Frame) {
	n := len(f.Series)
	if n == 0 {
		n = 1
	}
	slices := StatusSlices(f.Presence)
	wants := []int{n + 1, n + 1, len(slices) + 2}

	y := top
	panels := []chart.Request{
		{Kind: chart.KindBar, Title: "CPU", Series: cpuSeries(f)},
		{Kind: chart.KindBar, Title: "Memory", Series: memSeries(f)},
		{Kind: chart.KindProportion, Title: "Status", Slices: slices},
	}
	for i, req := range panels {
		rows := wants[i]
		if rest := g.H - y; rows > rest {
			rows = rest
		}
		if rows <= 0 {
			return
		}
		req.Width, req.Height = g.W, rows
		g.Blit(0, y, chart.Render(req))
		y += rows
	}

	if rest := g.H - y; rest >= 3 {
		g.Blit(0, y, chart.Render(chart.Request{
			Kind:   chart.KindSparkline,
			Width:  g.W,
			Height: rest,
			Title:  "Network (all)",
			Series: []chart.Series{
				{Label: "rx", Values: metrics.Values(f.System.Samples, metrics.FieldRx), Format: chart.ByteRate},
				{Label: "tx", Values: metrics.Values(f.System.Samples, metrics.FieldTx), Format: chart.ByteRate},
			},
		}))
	}
}

// cpuPanel draws per-container bars and, when there is room, the system
// CPU history below them.
func cpuPanel(f metrics.Frame, w, h int) chart.Grid {
	bars := chart.Request{Kind: chart.KindBar, Title: "CPU", Series: cpuSeries(f)}
	barRows := len(bars.Series) + 1
	if f.System.Empty() || h < barRows+3 {
		bars.Width, bars.Height = w, h
		return chart.Render(bars)
	}

	g := chart.NewGrid(w, h)
	bars.Width, bars.Height = w, barRows
	g.Blit(0, 0, chart.Render(bars))
	g.Blit(0, barRows, chart.Render(chart.Request{
		Kind:   chart.KindSparkline,
		Width:  w,
		Height: h - barRows,
		Series: []chart.Series{{Label: "system", Values: metrics.Values(f.System.Samples, metrics.FieldCPU), Format: chart.Percent}},
	}))
	return g
}

func cpuSeries(f metrics.Frame) []chart.Series {
	out := make([]chart.Series, 0, len(f.Series))
	for _, s := range f.Series {
		out = append(out, chart.Series{
			Label:   label(s),
			Values:  metrics.Values(s.Samples, metrics.FieldCPU),
			Ceiling: 100,
			Format:  chart.Percent,
		})
	}
	return out
}

// memSeries scales each bar by the container's limit and labels it with
// the bytes in use.
func memSeries(f metrics.Frame) []chart.Series {
	out := make([]chart.Series, 0, len(f.Series))
	for _, s := range f.Series {
		used := 0.0
		if latest, ok := s.Latest(); ok {
			used = float64(latest.MemUsedBytes)
		}
		out = append(out, chart.Series{
			Label:   label(s),
			Values:  metrics.Values(s.Samples, metrics.FieldMemPercent),
			Ceiling: 100,
			Format:  func(float64) string { return chart.Bytes(used) },
		})
	}
	return out
}

func netSeries(f metrics.Frame) []chart.Series {
	out := make([]chart.Series, 0, 2*len(f.Series))
	for _, s := range f.Series {
		name := label(s)
		out = append(out,
			chart.Series{Label: name + " rx", Values: metrics.Values(s.Samples, metrics.FieldRx), Format: chart.ByteRate},
			chart.Series{Label: name + " tx", Values: metrics.Values(s.Samples, metrics.FieldTx), Format: chart.ByteRate},
		)
	}
	return out
}

// StatusSlices counts presence entries by state. States other than
// running, paused and exited are folded into "other".
func StatusSlices(presence []metrics.Presence) []chart.Slice {
	counts := map[string]int{}
	for _, p := range presence {
		switch p.State {
		case metrics.StateRunning, metrics.StatePaused, metrics.StateExited:
			counts[p.State]++
		default:
			counts["other"]++
		}
	}
	slices := make([]chart.Slice, 0, len(counts))
	for state, n := range counts {
		slices = append(slices, chart.Slice{Label: state, Count: n})
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i].Label < slices[j].Label })
	return chart.OrderSlices(slices)
}

func running(f metrics.Frame) int {
	n := 0
	for _, p := range f.Presence {
		if p.State == metrics.StateRunning {
			n++
		}
	}
	return n
}

func label(s metrics.Snapshot) string {
	if s.Name != "" {
		return s.Name
	}
	return engine.ShortID(s.ID)
}

// header writes left-aligned and right-aligned text on the first row. The
// right part is dropped when both do not fit.
func header(g chart.Grid, left, right string) {
	n := g.Text(0, 0, "dockhand · "+left, chart.ClassAccent)
	if w := utf8.RuneCountInString(right); n+1+w <= g.W {
		g.Text(g.W-w, 0, right, chart.ClassMuted)
	}
}
