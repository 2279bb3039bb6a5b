// Package chart turns metric snapshots into fixed-size grids of cells.
//
// Rendering is pure: the same Request always yields the same Grid. Colour is
// carried as a Class on each cell and only resolved to terminal styles by
// Grid.Render, so tests can compare plain text with Grid.String.
//
// # Kinds
//
//	KindBar        - one horizontal bar per series, latest value
//	KindSparkline  - a band per series, history over time
//	KindProportion - a stacked strip and legend over (label, count) slices
//
// # Scaling
//
// Bars and sparklines scale against Series.Ceiling when it is set (100 for
// percentages). Otherwise the scale is the maximum of the values being
// drawn, recomputed on every call. The same history can therefore render
// with different heights from one tick to the next as the peak moves.
package chart
