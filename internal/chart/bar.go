package chart

import "math"

// barEighths are partial cells for sub-cell bar precision.
var barEighths = []rune{' ', '▏', '▎', '▍', '▌', '▋', '▊', '▉', '█'}

const barEmpty = '░'

// renderBars draws one row per series: label, bar of the latest value and
// the formatted value. Series that do not fit are dropped from the end.
func renderBars(g Grid, top int, series []Series) {
	rows := g.H - top
	if len(series) > rows {
		series = series[:rows]
	}
	scale := barScale(series)

	labelW, valueW := 0, 0
	values := make([]string, len(series))
	for i, s := range series {
		if w := width(s.Label); w > labelW {
			labelW = w
		}
		if v, ok := s.latest(); ok {
			values[i] = s.format(v)
		} else {
			values[i] = "-"
		}
		if w := width(values[i]); w > valueW {
			valueW = w
		}
	}
	if labelW > g.W/3 {
		labelW = g.W / 3
	}

	barX := 0
	if labelW > 0 {
		barX = labelW + 1
	}
	barW := g.W - barX
	if valueW > 0 {
		barW -= valueW + 1
	}
	if barW < 1 {
		// Too narrow for decorations; the bar gets the whole row.
		labelW, valueW, barX, barW = 0, 0, 0, g.W
	}

	for i, s := range series {
		y := top + i
		if labelW > 0 {
			g.Text(0, y, fit(s.Label, labelW), ClassLabel)
		}
		v, ok := s.latest()
		frac := 0.0
		if ok {
			frac = v / scale
		}
		class := Level(frac * 100)
		drawBar(g, barX, y, barW, frac, class)
		if valueW > 0 {
			vc := class
			if !ok {
				vc = ClassMuted
			}
			g.Text(barX+barW+1, y, padLeft(values[i], valueW), vc)
		}
	}
}

func barScale(series []Series) float64 {
	ceiling, peak := 0.0, 0.0
	for _, s := range series {
		if s.Ceiling > ceiling {
			ceiling = s.Ceiling
		}
		if v, ok := s.latest(); ok && v > peak {
			peak = v
		}
	}
	if ceiling > 0 {
		return ceiling
	}
	if peak > 0 {
		return peak
	}
	return 1
}

func drawBar(g Grid, x, y, w int, frac float64, class Class) {
	frac = clamp01(frac)
	units := int(math.Round(frac * float64(w*8)))
	full, rem := units/8, units%8
	for i := 0; i < w; i++ {
		switch {
		case i < full:
			g.Set(x+i, y, barEighths[8], class)
		case i == full && rem > 0:
			g.Set(x+i, y, barEighths[rem], class)
		default:
			g.Set(x+i, y, barEmpty, ClassMuted)
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
