package chart

import (
	"strings"
	"unicode/utf8"
)

// Class is the colour class of a cell.
type Class uint8

const (
	ClassNone Class = iota
	ClassOK
	ClassWarn
	ClassCrit
	ClassMuted
	ClassAccent
	ClassLabel
)

// String returns the class name used in themes and tests.
func (c Class) String() string {
	switch c {
	case ClassOK:
		return "ok"
	case ClassWarn:
		return "warn"
	case ClassCrit:
		return "crit"
	case ClassMuted:
		return "muted"
	case ClassAccent:
		return "accent"
	case ClassLabel:
		return "label"
	default:
		return "none"
	}
}

// Thresholds for Level, in percent of scale.
const (
	WarnThreshold = 50.0
	CritThreshold = 80.0
)

// Level classifies a percentage: ok up to 50, warn above 50, crit above 80.
func Level(percent float64) Class {
	switch {
	case percent > CritThreshold:
		return ClassCrit
	case percent > WarnThreshold:
		return ClassWarn
	default:
		return ClassOK
	}
}

// Cell is one printable position.
type Cell struct {
	Ch    rune
	Class Class
}

// Grid is a W by H block of cells, addressed Cells[y][x].
type Grid struct {
	W, H  int
	Cells [][]Cell
}

// NewGrid returns a grid filled with blanks. Non-positive sizes give an
// empty grid.
func NewGrid(w, h int) Grid {
	if w <= 0 || h <= 0 {
		return Grid{}
	}
	cells := make([][]Cell, h)
	for y := range cells {
		row := make([]Cell, w)
		for x := range row {
			row[x] = Cell{Ch: ' '}
		}
		cells[y] = row
	}
	return Grid{W: w, H: h, Cells: cells}
}

// Set writes one cell. Out of range writes are ignored.
func (g Grid) Set(x, y int, ch rune, class Class) {
	if x < 0 || y < 0 || x >= g.W || y >= g.H {
		return
	}
	g.Cells[y][x] = Cell{Ch: ch, Class: class}
}

// Text writes s starting at (x, y), clipped to the row, and returns the
// number of cells written.
func (g Grid) Text(x, y int, s string, class Class) int {
	n := 0
	for _, r := range s {
		if x+n >= g.W {
			break
		}
		g.Set(x+n, y, r, class)
		n++
	}
	return n
}

// Lines returns each row as plain text.
func (g Grid) Lines() []string {
	lines := make([]string, g.H)
	var b strings.Builder
	for y, row := range g.Cells {
		b.Reset()
		for _, c := range row {
			b.WriteRune(c.Ch)
		}
		lines[y] = b.String()
	}
	return lines
}

// String returns the grid as plain text, rows joined by newlines.
func (g Grid) String() string {
	return strings.Join(g.Lines(), "\n")
}

// Render returns the grid with each run of same-class cells styled by p.
func (g Grid) Render(p Palette) string {
	lines := make([]string, g.H)
	var out, run strings.Builder
	for y, row := range g.Cells {
		out.Reset()
		for x := 0; x < len(row); {
			class := row[x].Class
			run.Reset()
			for x < len(row) && row[x].Class == class {
				run.WriteRune(row[x].Ch)
				x++
			}
			out.WriteString(p.style(class, run.String()))
		}
		lines[y] = out.String()
	}
	return strings.Join(lines, "\n")
}

// fit shortens s to at most n runes, marking the cut with an ellipsis.
func fit(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}

func width(s string) int { return utf8.RuneCountInString(s) }

// padLeft right-aligns s in n cells.
func padLeft(s string, n int) string {
	s = fit(s, n)
	if w := width(s); w < n {
		return strings.Repeat(" ", n-w) + s
	}
	return s
}

// Blit copies src into g with its top-left corner at (x, y), clipped to g.
func (g Grid) Blit(x, y int, src Grid) {
	for sy, row := range src.Cells {
		for sx, c := range row {
			g.Set(x+sx, y+sy, c.Ch, c.Class)
		}
	}
}
