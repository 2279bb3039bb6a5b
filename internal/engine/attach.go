package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rileyhilliard/dockhand/internal/errors"
)

// ErrDetached is returned by a DetachReader once the detach keys are typed.
var ErrDetached = stderrors.New("detached")

// DefaultDetachKeys is ctrl-p ctrl-q, the sequence users already know.
var DefaultDetachKeys = []byte{0x10, 0x11}

// DetachReader passes input through until the detach sequence appears.
// Bytes of a partial match are held back and released if the match fails.
type DetachReader struct {
	r       io.Reader
	keys    []byte
	matched int
	pending []byte
}

// NewDetachReader wraps r. An empty keys slice disables detaching.
func NewDetachReader(r io.Reader, keys []byte) *DetachReader {
	return &DetachReader{r: r, keys: keys}
}

func (d *DetachReader) Read(p []byte) (int, error) {
	if len(d.pending) > 0 {
		n := copy(p, d.pending)
		d.pending = d.pending[n:]
		return n, nil
	}

	buf := make([]byte, len(p))
	n, err := d.r.Read(buf)
	for _, b := range buf[:n] {
		if len(d.keys) == 0 {
			d.pending = append(d.pending, b)
			continue
		}
		if b == d.keys[d.matched] {
			d.matched++
			if d.matched == len(d.keys) {
				d.matched = 0
				return d.flush(p), ErrDetached
			}
			continue
		}
		if d.matched > 0 {
			d.pending = append(d.pending, d.keys[:d.matched]...)
			d.matched = 0
			if b == d.keys[0] {
				d.matched = 1
				continue
			}
		}
		d.pending = append(d.pending, b)
	}
	return d.flush(p), err
}

func (d *DetachReader) flush(p []byte) int {
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n
}

// Attach wires stdin/stdout to the container console over the engine's
// websocket attach endpoint.
func (c *DockerClient) Attach(ctx context.Context, id string, stdin io.Reader, stdout io.Writer) error {
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.dial(ctx)
		},
		HandshakeTimeout: c.http.Timeout,
	}

	u := strings.Replace(c.base, "http://", "ws://", 1) +
		"/containers/" + url.PathEscape(id) + "/attach/ws?stream=1&stdin=1&stdout=1&stderr=1"
	conn, res, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		if res != nil && res.StatusCode == 404 {
			return errors.Inputf("No such container: %s", id)
		}
		return errors.WrapWithCode(err, errors.ErrAttach,
			fmt.Sprintf("Couldn't attach to %s", id), "Is the container running?")
	}
	return pump(ctx, conn, stdin, stdout)
}

// pump copies in both directions until one side finishes. It always closes
// conn before returning.
func pump(ctx context.Context, conn *websocket.Conn, stdin io.Reader, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	outDone := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				outDone <- err
				return
			}
			if _, err := stdout.Write(data); err != nil {
				outDone <- err
				return
			}
		}
	}()

	inDone := make(chan error, 1)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := stdin.Read(buf)
			if n > 0 {
				if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
					inDone <- werr
					return
				}
			}
			if err != nil {
				inDone <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-inDone:
		if err == nil || stderrors.Is(err, ErrDetached) || err == io.EOF {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrAttach, "Attach input failed", "")
	case err := <-outDone:
		if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) || err == io.EOF {
			return nil
		}
		var closeErr *websocket.CloseError
		if stderrors.As(err, &closeErr) {
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrAttach, "Attach connection dropped", "")
	}
}
