package chart

// Kind selects the chart layout.
type Kind int

const (
	KindBar Kind = iota
	KindSparkline
	KindProportion
)

func (k Kind) String() string {
	switch k {
	case KindBar:
		return "bar"
	case KindSparkline:
		return "sparkline"
	case KindProportion:
		return "proportion"
	default:
		return "unknown"
	}
}

// Series is one labelled run of values, oldest first.
type Series struct {
	Label  string
	Values []float64
	// Ceiling fixes the scale, e.g. 100 for percentages. Zero means scale
	// by the largest value drawn.
	Ceiling float64
	Format  Formatter
}

func (s Series) latest() (float64, bool) {
	if len(s.Values) == 0 {
		return 0, false
	}
	return s.Values[len(s.Values)-1], true
}

func (s Series) format(v float64) string {
	if s.Format != nil {
		return s.Format(v)
	}
	return Number(v)
}

// Slice is one part of a proportion chart.
type Slice struct {
	Label string
	Count int
}

// Request describes one chart.
type Request struct {
	Kind   Kind
	Width  int
	Height int
	// Title takes the first row when the grid has at least two.
	Title  string
	Series []Series
	Slices []Slice
}

// Placeholder is drawn when there is nothing to chart.
const Placeholder = "no data"

// Render draws req into a grid of exactly Width by Height cells. It never
// fails: empty input yields a placeholder and non-positive sizes an empty
// grid.
func Render(req Request) Grid {
	g := NewGrid(req.Width, req.Height)
	if g.H == 0 {
		return g
	}

	top := 0
	if req.Title != "" && g.H >= 2 {
		g.Text(0, 0, fit(req.Title, g.W), ClassAccent)
		top = 1
	}

	switch req.Kind {
	case KindProportion:
		slices := OrderSlices(req.Slices)
		if len(slices) == 0 {
			placeholder(g, top)
			return g
		}
		renderProportion(g, top, slices)
	case KindSparkline:
		if !hasValues(req.Series) {
			placeholder(g, top)
			return g
		}
		renderSparklines(g, top, req.Series)
	default:
		if !hasValues(req.Series) {
			placeholder(g, top)
			return g
		}
		renderBars(g, top, req.Series)
	}
	return g
}

func hasValues(series []Series) bool {
	for _, s := range series {
		if len(s.Values) > 0 {
			return true
		}
	}
	return false
}

// placeholder centres Placeholder in the rows below top, or fills the
// middle row with dots when it does not fit.
func placeholder(g Grid, top int) {
	y := top + (g.H-top)/2
	if y >= g.H {
		y = g.H - 1
	}
	if w := width(Placeholder); w <= g.W {
		g.Text((g.W-w)/2, y, Placeholder, ClassMuted)
		return
	}
	for x := 0; x < g.W; x++ {
		g.Set(x, y, '·', ClassMuted)
	}
}
