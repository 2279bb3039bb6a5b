package dashboard

import (
	"context"
	"time"

	"github.com/rileyhilliard/dockhand/internal/chart"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/ingest"
	"github.com/rileyhilliard/dockhand/internal/metrics"
)

// Activity is what a Loop drives: a background feed that runs until its
// context ends or it fails, and a way to draw its current state.
type Activity interface {
	Run(ctx context.Context) error
	Compose(now time.Time, w, h int) chart.Grid
}

// Charts feeds a store from an ingestor and draws one view over it.
type Charts struct {
	ing  *ingest.Ingestor
	view View
}

// NewCharts creates the chart activity for opts.Selector.
func NewCharts(eng engine.Engine, view View, opts ingest.Options) *Charts {
	return &Charts{ing: ingest.New(eng, opts), view: view}
}

// Run ingests until ctx ends or a stream fails.
func (c *Charts) Run(ctx context.Context) error { return c.ing.Run(ctx) }

// Compose draws the view over a frame taken now.
func (c *Charts) Compose(now time.Time, w, h int) chart.Grid {
	return Compose(c.view, c.ing.Store().Frame(now), w, h)
}

// Store exposes the ring buffers being filled.
func (c *Charts) Store() *metrics.Store { return c.ing.Store() }
