package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetachReader(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		detached bool
	}{
		{"passthrough", "ls -la\n", "ls -la\n", false},
		{"detach sequence", "echo hi\x10\x11ignored", "echo hi", true},
		{"partial match released", "a\x10b", "a\x10b", false},
		{"restart match", "\x10\x10\x11", "\x10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewDetachReader(strings.NewReader(tt.input), DefaultDetachKeys)
			var out bytes.Buffer
			buf := make([]byte, 4)
			var err error
			for {
				var n int
				n, err = r.Read(buf)
				out.Write(buf[:n])
				if err != nil {
					break
				}
			}
			assert.Equal(t, tt.want, out.String())
			if tt.detached {
				assert.ErrorIs(t, err, ErrDetached)
			} else {
				assert.ErrorIs(t, err, io.EOF)
			}
		})
	}
}

func TestDetachReader_NoKeys(t *testing.T) {
	r := NewDetachReader(strings.NewReader("\x10\x11"), nil)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "\x10\x11", string(data))
}

func TestAttach_EchoAndDetach(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/web/attach/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, bytes.ToUpper(data)); err != nil {
				return
			}
		}
	}))

	stdinR, stdinW := io.Pipe()
	var stdout safeBuffer
	done := make(chan error, 1)
	go func() {
		done <- c.Attach(context.Background(), "web", NewDetachReader(stdinR, DefaultDetachKeys), &stdout)
	}()

	_, err := stdinW.Write([]byte("hello"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return stdout.String() == "HELLO" }, 2*time.Second, 10*time.Millisecond)

	_, err = stdinW.Write([]byte{0x10, 0x11})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("attach did not return after detach keys")
	}
}

func TestAttach_Cancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	stdinR, _ := io.Pipe()
	done := make(chan error, 1)
	go func() { done <- c.Attach(ctx, "web", stdinR, io.Discard) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("attach ignored cancellation")
	}
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
