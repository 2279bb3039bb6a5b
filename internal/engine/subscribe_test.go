package engine

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statsLine = `{"read":"2026-01-02T03:04:05Z","id":"%s","name":"/web",
"cpu_stats":{"cpu_usage":{"total_usage":%d,"percpu_usage":[1,2]},"system_cpu_usage":%d,"online_cpus":0},
"memory_stats":{"usage":1000,"limit":4000,"stats":{"inactive_file":200}},
"networks":{"eth0":{"rx_bytes":100,"tx_bytes":10},"eth1":{"rx_bytes":5,"tx_bytes":1}},
"blkio_stats":{"io_service_bytes_recursive":[{"op":"Read","value":7},{"op":"write","value":3}]}}
`

func recv[T any](t *testing.T, s *Stream[T]) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-s.C:
		return v, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream")
	}
	var zero T
	return zero, false
}

func TestSubscribeStats_DecodesAndEndsCleanly(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/abc/stats", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("stream"))
		fmt.Fprintf(w, statsLine, "abc", 500, 10000)
		fmt.Fprintf(w, statsLine, "abc", 700, 11000)
	}))

	s, err := c.SubscribeStats(context.Background(), []string{"abc"})
	require.NoError(t, err)

	first, ok := recv(t, s)
	require.True(t, ok)
	assert.Equal(t, StatsRecord{
		ID:         "abc",
		Name:       "web",
		Read:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		CPUTotal:   500,
		SystemCPU:  10000,
		OnlineCPUs: 2,
		MemUsed:    800,
		MemLimit:   4000,
		RxBytes:    105,
		TxBytes:    11,
		BlkRead:    7,
		BlkWrite:   3,
	}, first)

	second, ok := recv(t, s)
	require.True(t, ok)
	assert.Equal(t, uint64(700), second.CPUTotal)

	_, ok = recv(t, s)
	assert.False(t, ok, "EOF ends the stream")
	assert.NoError(t, s.Err())
}

func TestSubscribeStats_Cancel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, statsLine, "abc", 1, 1)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.SubscribeStats(ctx, []string{"abc"})
	require.NoError(t, err)

	_, ok := recv(t, s)
	require.True(t, ok)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after cancel")
	}
	assert.NoError(t, s.Err())
}

func TestSubscribeStats_UnknownContainer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"No such container: nope"}`)
	}))

	_, err := c.SubscribeStats(context.Background(), []string{"nope"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInput))
}

func TestSubscribeEvents_EOFIsTerminal(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("filters"), "container")
		fmt.Fprint(w, `{"Type":"container","Action":"start","Actor":{"ID":"abc","Attributes":{"name":"web"}},"time":1767323045,"timeNano":1767323045000000000}`+"\n")
		fmt.Fprint(w, `{"Type":"network","Action":"connect","Actor":{"ID":"net"}}`+"\n")
		fmt.Fprint(w, `{"Type":"container","Action":"exec_start: sh -c ls","Actor":{"ID":"abc","Attributes":{"name":"web"}},"time":1767323046}`+"\n")
	}))

	s, err := c.SubscribeEvents(context.Background())
	require.NoError(t, err)

	ev, ok := recv(t, s)
	require.True(t, ok)
	assert.Equal(t, "abc", ev.ID)
	assert.Equal(t, "web", ev.Name)
	assert.Equal(t, ActionStart, ev.Action)
	assert.Equal(t, int64(1767323045), ev.Time.Unix())

	ev, ok = recv(t, s)
	require.True(t, ok)
	assert.Equal(t, "exec_start", ev.Action, "network events are filtered and exec detail trimmed")

	_, ok = recv(t, s)
	require.False(t, ok)
	require.Error(t, s.Err())
	assert.True(t, errors.IsCode(s.Err(), errors.ErrConnectivity))
	assert.ErrorIs(t, s.Err(), ErrStreamClosed)
}

func TestPipe_CloseOnce(t *testing.T) {
	p := NewPipe[int](1)
	require.True(t, p.Send(context.Background(), 1))
	p.Close(fmt.Errorf("first"))
	p.Close(fmt.Errorf("second"))

	s := p.Stream()
	v, ok := <-s.C
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = <-s.C
	assert.False(t, ok)
	assert.EqualError(t, s.Err(), "first")
}

func TestPipe_SendRespectsContext(t *testing.T) {
	p := NewPipe[int](0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, p.Send(ctx, 1))
}
