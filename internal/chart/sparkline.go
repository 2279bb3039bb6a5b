package chart

import "math"

// sparklineBlocks are block characters for 8-level vertical resolution
// (lowest to highest).
var sparklineBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// renderSparklines splits the rows below top into one band per series. A
// band of two or more rows gets a header line with the label and latest
// value; a one-row band puts the label inline.
func renderSparklines(g Grid, top int, series []Series) {
	avail := g.H - top
	if len(series) > avail {
		series = series[:avail]
	}
	band := avail / len(series)

	for i, s := range series {
		y := top + i*band
		h := band
		if i == len(series)-1 {
			h = avail - i*band
		}

		if h >= 2 {
			sparkHeader(g, y, s)
			plotSparkline(g, 0, y+1, g.W, h-1, s)
			continue
		}

		labelW := width(s.Label)
		if labelW > g.W/3 {
			labelW = g.W / 3
		}
		x := 0
		if labelW > 0 && g.W-labelW-1 >= 1 {
			g.Text(0, y, fit(s.Label, labelW), ClassLabel)
			x = labelW + 1
		}
		plotSparkline(g, x, y, g.W-x, 1, s)
	}
}

func sparkHeader(g Grid, y int, s Series) {
	value, class := "-", ClassMuted
	if v, ok := s.latest(); ok {
		value = s.format(v)
		class = ClassAccent
		if s.Ceiling > 0 {
			class = Level(v / s.Ceiling * 100)
		}
	}
	vw := width(value)
	if vw+1 >= g.W {
		g.Text(0, y, fit(s.Label, g.W), ClassLabel)
		return
	}
	g.Text(0, y, fit(s.Label, g.W-vw-1), ClassLabel)
	g.Text(g.W-vw, y, value, class)
}

// plotSparkline draws s into the w by h box at (x, y). Newer values sit on
// the right; when there are fewer values than columns the line fills from
// the right edge.
func plotSparkline(g Grid, x, y, w, h int, s Series) {
	if w <= 0 || h <= 0 || len(s.Values) == 0 {
		return
	}
	vals := s.Values
	if len(vals) > w {
		vals = downsample(vals, w)
	}
	offset := w - len(vals)

	scale := s.Ceiling
	if scale <= 0 {
		for _, v := range vals {
			if v > scale {
				scale = v
			}
		}
	}
	if scale <= 0 {
		scale = 1
	}

	levels := h * 8
	for c, v := range vals {
		lvl := int(math.Round(clamp01(v/scale) * float64(levels)))
		class := ClassAccent
		if s.Ceiling > 0 {
			class = Level(v / s.Ceiling * 100)
		}
		col := x + offset + c
		if lvl == 0 {
			g.Set(col, y+h-1, sparklineBlocks[0], ClassMuted)
			continue
		}
		for r := 0; r < h; r++ {
			fill := lvl - r*8
			if fill <= 0 {
				break
			}
			if fill > 8 {
				fill = 8
			}
			g.Set(col, y+h-1-r, sparklineBlocks[fill-1], class)
		}
	}
}

// downsample compresses data to size points, keeping the max of each
// bucket so short spikes survive.
func downsample(data []float64, size int) []float64 {
	if len(data) <= size || size <= 0 {
		return data
	}
	out := make([]float64, size)
	bucket := float64(len(data)) / float64(size)
	for i := 0; i < size; i++ {
		start := int(float64(i) * bucket)
		end := int(float64(i+1) * bucket)
		if end > len(data) {
			end = len(data)
		}
		if start >= end {
			start = end - 1
		}
		peak := data[start]
		for _, v := range data[start+1 : end] {
			if v > peak {
				peak = v
			}
		}
		out[i] = peak
	}
	return out
}
