// Package engine is the client facade over the container engine. It offers
// synchronous listing, two subscribable streams (stats and lifecycle events)
// and a terminal attach passthrough.
package engine

import (
	"context"
	"io"
	"time"
)

// Kind selects which entities ListEntities returns.
type Kind int

const (
	KindNone Kind = iota
	KindContainer
	KindImage
	KindAny // containers and images
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindImage:
		return "image"
	case KindAny:
		return "any"
	default:
		return "none"
	}
}

// Entity is a container or image as listed by the engine.
type Entity struct {
	ID     string
	Name   string // container name without the leading slash, or repo:tag
	State  string // running, exited, paused, ... (empty for images)
	Image  string
	Status string // human status line, e.g. "Up 3 hours"
	Size   int64
}

// StatsRecord is one raw reading from a stats stream. CPU, network and
// block counters are cumulative; memory fields are gauges.
type StatsRecord struct {
	ID         string
	Name       string
	Read       time.Time
	CPUTotal   uint64
	SystemCPU  uint64
	OnlineCPUs uint32
	MemUsed    uint64
	MemLimit   uint64
	RxBytes    uint64
	TxBytes    uint64
	BlkRead    uint64
	BlkWrite   uint64
}

// Event is a lifecycle notice for one entity.
type Event struct {
	ID         string
	Name       string
	Action     string // start, stop, die, destroy, pause, ...
	Time       time.Time
	Attributes map[string]string
}

// Lifecycle actions the ingestor reacts to.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionDie     = "die"
	ActionKill    = "kill"
	ActionPause   = "pause"
	ActionUnpause = "unpause"
	ActionDestroy = "destroy"
	ActionRemove  = "remove"
	ActionRestart = "restart"
	ActionCreate  = "create"
)

// Engine is everything the monitoring core needs from the container engine.
type Engine interface {
	Ping(ctx context.Context) error
	ListEntities(ctx context.Context, kind Kind) ([]Entity, error)
	// SubscribeStats streams records for ids until ctx is cancelled. A
	// per-entity stream that ends cleanly (the container stopped) is not an
	// error; any other end closes the whole stream with Err set.
	SubscribeStats(ctx context.Context, ids []string) (*Stream[StatsRecord], error)
	// SubscribeEvents streams container lifecycle events. It never ends
	// cleanly: any end other than cancellation is a connectivity error.
	SubscribeEvents(ctx context.Context) (*Stream[Event], error)
	// Attach connects stdin/stdout to the container's console until ctx is
	// cancelled, the container exits, or stdin returns ErrDetached.
	Attach(ctx context.Context, id string, stdin io.Reader, stdout io.Writer) error
}

// ShortID truncates an engine id to the 12 characters users expect.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
