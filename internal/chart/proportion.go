package chart

import (
	"fmt"
	"sort"
)

// Share glyphs, from the largest quarter down.
var shareGlyphs = []rune{'◐', '◑', '◒', '◓'}

// sliceFills and sliceClasses cycle per slice position in the strip.
var (
	sliceFills   = []rune{'█', '▓', '▒', '░'}
	sliceClasses = []Class{ClassOK, ClassAccent, ClassWarn, ClassCrit, ClassMuted}
)

// OrderSlices returns the slices with a positive count, largest first and
// ties broken by label.
func OrderSlices(in []Slice) []Slice {
	out := make([]Slice, 0, len(in))
	for _, s := range in {
		if s.Count > 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// ShareGlyph picks a glyph by which quarter the share falls in.
func ShareGlyph(share float64) rune {
	switch {
	case share > 0.75:
		return shareGlyphs[0]
	case share > 0.5:
		return shareGlyphs[1]
	case share > 0.25:
		return shareGlyphs[2]
	default:
		return shareGlyphs[3]
	}
}

// renderProportion draws a stacked strip on the first row and a legend
// line per slice below it, as far as the rows allow.
func renderProportion(g Grid, top int, slices []Slice) {
	total := 0
	for _, s := range slices {
		total += s.Count
	}

	cols := allocate(slices, total, g.W)
	x := 0
	for i, n := range cols {
		fill, class := sliceFills[i%len(sliceFills)], sliceClasses[i%len(sliceClasses)]
		for j := 0; j < n; j++ {
			g.Set(x+j, top, fill, class)
		}
		x += n
	}

	for i, s := range slices {
		y := top + 1 + i
		if y >= g.H {
			break
		}
		share := float64(s.Count) / float64(total)
		class := sliceClasses[i%len(sliceClasses)]
		g.Set(0, y, ShareGlyph(share), class)
		line := fmt.Sprintf(" %s %d (%.0f%%)", s.Label, s.Count, share*100)
		g.Text(1, y, fit(line, g.W-1), ClassLabel)
	}
}

// allocate splits w columns across slices by largest remainder. Ties in
// the remainder go to the earlier slice.
func allocate(slices []Slice, total, w int) []int {
	cols := make([]int, len(slices))
	if total == 0 || w <= 0 {
		return cols
	}
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(slices))
	used := 0
	for i, s := range slices {
		exact := float64(s.Count) * float64(w) / float64(total)
		cols[i] = int(exact)
		used += cols[i]
		rems[i] = rem{idx: i, frac: exact - float64(cols[i])}
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; used < w && i < len(rems); i++ {
		cols[rems[i].idx]++
		used++
	}
	return cols
}
