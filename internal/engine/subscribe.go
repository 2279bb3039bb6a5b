package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/dockhand/internal/errors"
)

// ErrStreamClosed is the cause attached when the engine hangs up a stream
// that should have stayed open.
var ErrStreamClosed = stderrors.New("engine closed the stream")

type statsJSON struct {
	Read     time.Time `json:"read"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	CPUStats struct {
		CPUUsage struct {
			TotalUsage  uint64   `json:"total_usage"`
			PercpuUsage []uint64 `json:"percpu_usage"`
		} `json:"cpu_usage"`
		SystemCPUUsage uint64 `json:"system_cpu_usage"`
		OnlineCPUs     uint32 `json:"online_cpus"`
	} `json:"cpu_stats"`
	MemoryStats struct {
		Usage uint64            `json:"usage"`
		Limit uint64            `json:"limit"`
		Stats map[string]uint64 `json:"stats"`
	} `json:"memory_stats"`
	Networks map[string]struct {
		RxBytes uint64 `json:"rx_bytes"`
		TxBytes uint64 `json:"tx_bytes"`
	} `json:"networks"`
	BlkioStats struct {
		IoServiceBytesRecursive []struct {
			Op    string `json:"op"`
			Value uint64 `json:"value"`
		} `json:"io_service_bytes_recursive"`
	} `json:"blkio_stats"`
}

func (s *statsJSON) record(fallbackID string) StatsRecord {
	r := StatsRecord{
		ID:         s.ID,
		Name:       strings.TrimPrefix(s.Name, "/"),
		Read:       s.Read,
		CPUTotal:   s.CPUStats.CPUUsage.TotalUsage,
		SystemCPU:  s.CPUStats.SystemCPUUsage,
		OnlineCPUs: s.CPUStats.OnlineCPUs,
		MemUsed:    s.MemoryStats.Usage,
		MemLimit:   s.MemoryStats.Limit,
	}
	if r.ID == "" {
		r.ID = fallbackID
	}
	if r.OnlineCPUs == 0 {
		r.OnlineCPUs = uint32(len(s.CPUStats.CPUUsage.PercpuUsage))
	}

	// Page cache is reclaimable, so "used" follows what `docker stats` shows.
	cache := s.MemoryStats.Stats["inactive_file"]
	if cache == 0 {
		cache = s.MemoryStats.Stats["total_inactive_file"]
	}
	if cache < r.MemUsed {
		r.MemUsed -= cache
	}

	for _, n := range s.Networks {
		r.RxBytes += n.RxBytes
		r.TxBytes += n.TxBytes
	}
	for _, b := range s.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(b.Op) {
		case "read":
			r.BlkRead += b.Value
		case "write":
			r.BlkWrite += b.Value
		}
	}
	return r
}

// SubscribeStats opens one engine stats stream per id and merges them.
func (c *DockerClient) SubscribeStats(ctx context.Context, ids []string) (*Stream[StatsRecord], error) {
	ctx, cancel := context.WithCancel(ctx)

	bodies := make([]io.ReadCloser, 0, len(ids))
	for _, id := range ids {
		res, err := c.get(ctx, c.stream, "/containers/"+url.PathEscape(id)+"/stats?stream=1")
		if err != nil {
			cancel()
			for _, b := range bodies {
				b.Close()
			}
			return nil, err
		}
		bodies = append(bodies, res.Body)
	}

	pipe := NewPipe[StatsRecord](len(ids) * 2)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	for i, body := range bodies {
		wg.Add(1)
		go func(id string, body io.ReadCloser) {
			defer wg.Done()
			if err := c.pumpStats(ctx, id, body, pipe); err != nil {
				errOnce.Do(func() { firstErr = err })
				cancel()
			}
		}(ids[i], body)
	}

	go func() {
		wg.Wait()
		cancel()
		pipe.Close(firstErr)
	}()
	return pipe.Stream(), nil
}

func (c *DockerClient) pumpStats(ctx context.Context, id string, body io.ReadCloser, pipe *Pipe[StatsRecord]) error {
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()
	defer body.Close()

	dec := json.NewDecoder(body)
	for {
		var raw statsJSON
		if err := dec.Decode(&raw); err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return nil
			}
			return errors.Wrap(err, fmt.Sprintf("Stats stream for %s broke", ShortID(id)))
		}
		if !pipe.Send(ctx, raw.record(id)) {
			return nil
		}
	}
}

type eventJSON struct {
	Type   string `json:"Type"`
	Action string `json:"Action"`
	Actor  struct {
		ID         string            `json:"ID"`
		Attributes map[string]string `json:"Attributes"`
	} `json:"Actor"`
	Time     int64 `json:"time"`
	TimeNano int64 `json:"timeNano"`
}

func (e *eventJSON) event() Event {
	ev := Event{
		ID:         e.Actor.ID,
		Name:       e.Actor.Attributes["name"],
		Action:     e.Action,
		Attributes: e.Actor.Attributes,
	}
	// exec_start: sh -c ... carries the command after the colon.
	if i := strings.Index(ev.Action, ":"); i != -1 {
		ev.Action = strings.TrimSpace(ev.Action[:i])
	}
	switch {
	case e.TimeNano > 0:
		ev.Time = time.Unix(0, e.TimeNano)
	case e.Time > 0:
		ev.Time = time.Unix(e.Time, 0)
	}
	return ev
}

// SubscribeEvents streams container lifecycle events.
func (c *DockerClient) SubscribeEvents(ctx context.Context) (*Stream[Event], error) {
	filters := url.QueryEscape(`{"type":["container"]}`)
	res, err := c.get(ctx, c.stream, "/events?filters="+filters)
	if err != nil {
		return nil, err
	}

	pipe := NewPipe[Event](16)
	go func() {
		body := res.Body
		stop := context.AfterFunc(ctx, func() { body.Close() })
		defer stop()
		defer body.Close()

		dec := json.NewDecoder(body)
		for {
			var raw eventJSON
			if err := dec.Decode(&raw); err != nil {
				switch {
				case ctx.Err() != nil:
					pipe.Close(nil)
				case err == io.EOF:
					pipe.Close(errors.Wrap(ErrStreamClosed, "Events stream ended"))
				default:
					pipe.Close(errors.Wrap(err, "Events stream broke"))
				}
				return
			}
			if raw.Type != "" && raw.Type != "container" {
				continue
			}
			if !pipe.Send(ctx, raw.event()) {
				pipe.Close(nil)
				return
			}
		}
	}()
	return pipe.Stream(), nil
}
