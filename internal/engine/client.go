package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/logger"
	"github.com/rileyhilliard/dockhand/pkg/sshutil"
)

// DefaultHost is the engine address used when nothing is configured.
const DefaultHost = "unix:///var/run/docker.sock"

// remoteSocket is where the engine listens on ssh:// hosts.
const remoteSocket = "/var/run/docker.sock"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configure a DockerClient.
type Options struct {
	Host    string        // unix://, tcp:// or ssh:// address
	Timeout time.Duration // per request for synchronous calls
	Logger  logger.Logger
}

// DockerClient talks to the engine's HTTP API.
type DockerClient struct {
	host     string
	base     string // scheme://authority prefix for request URLs
	dial     func(ctx context.Context) (net.Conn, error)
	http     *http.Client // request/response calls, bounded by Timeout
	stream   *http.Client // long-lived streams, bounded only by ctx
	log      logger.Logger
	closeFns []func() error
}

// NewClient builds a client for opts.Host. SSH hosts are dialed lazily on
// the first request.
func NewClient(opts Options) (*DockerClient, error) {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	u, err := url.Parse(opts.Host)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Engine host %q isn't a valid address", opts.Host),
			"Use unix:///var/run/docker.sock, tcp://host:2375 or ssh://user@host")
	}

	c := &DockerClient{host: opts.Host, log: logger.OrDefault(opts.Logger)}
	netDialer := &net.Dialer{Timeout: opts.Timeout}

	switch u.Scheme {
	case "unix":
		path := u.Path
		c.base = "http://docker"
		c.dial = func(ctx context.Context) (net.Conn, error) {
			return netDialer.DialContext(ctx, "unix", path)
		}
	case "tcp", "http":
		addr := u.Host
		c.base = "http://" + addr
		c.dial = func(ctx context.Context) (net.Conn, error) {
			return netDialer.DialContext(ctx, "tcp", addr)
		}
	case "ssh":
		tunnel := &sshTunnel{target: sshTarget(u), timeout: opts.Timeout}
		c.base = "http://docker"
		c.dial = tunnel.dial
		c.closeFns = append(c.closeFns, tunnel.close)
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unsupported engine scheme %q", u.Scheme),
			"Use unix://, tcp:// or ssh://")
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.dial(ctx)
		},
		MaxIdleConns:    4,
		IdleConnTimeout: 30 * time.Second,
	}
	c.http = &http.Client{Transport: transport, Timeout: opts.Timeout}
	c.stream = &http.Client{Transport: transport}
	return c, nil
}

// Host returns the configured engine address.
func (c *DockerClient) Host() string { return c.host }

// Close releases any SSH tunnel.
func (c *DockerClient) Close() error {
	var first error
	for _, fn := range c.closeFns {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Ping checks that the engine answers.
func (c *DockerClient) Ping(ctx context.Context) error {
	res, err := c.get(ctx, c.http, "/_ping")
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

type containerJSON struct {
	ID     string   `json:"Id"`
	Names  []string `json:"Names"`
	Image  string   `json:"Image"`
	State  string   `json:"State"`
	Status string   `json:"Status"`
}

type imageJSON struct {
	ID       string   `json:"Id"`
	RepoTags []string `json:"RepoTags"`
	Size     int64    `json:"Size"`
}

// ListEntities lists containers (all states) or tagged images.
func (c *DockerClient) ListEntities(ctx context.Context, kind Kind) ([]Entity, error) {
	switch kind {
	case KindContainer:
		var raw []containerJSON
		if err := c.getJSON(ctx, "/containers/json?all=1", &raw); err != nil {
			return nil, err
		}
		out := make([]Entity, 0, len(raw))
		for _, r := range raw {
			out = append(out, Entity{
				ID:     r.ID,
				Name:   containerName(r.Names, r.ID),
				State:  r.State,
				Image:  r.Image,
				Status: r.Status,
			})
		}
		return out, nil

	case KindImage:
		var raw []imageJSON
		if err := c.getJSON(ctx, "/images/json", &raw); err != nil {
			return nil, err
		}
		var out []Entity
		for _, r := range raw {
			for _, tag := range r.RepoTags {
				if tag == "" || strings.HasPrefix(tag, "<none>") {
					continue
				}
				out = append(out, Entity{ID: r.ID, Name: tag, Image: tag, Size: r.Size})
			}
		}
		return out, nil

	case KindAny:
		containers, err := c.ListEntities(ctx, KindContainer)
		if err != nil {
			return nil, err
		}
		images, err := c.ListEntities(ctx, KindImage)
		if err != nil {
			return nil, err
		}
		return append(containers, images...), nil
	}
	return nil, nil
}

func (c *DockerClient) getJSON(ctx context.Context, path string, out interface{}) error {
	res, err := c.get(ctx, c.http, path)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return errors.Wrap(err, fmt.Sprintf("Engine sent an unreadable response for %s", path))
	}
	return nil
}

// get issues a GET and maps transport failures and non-2xx answers onto
// structured errors. The caller closes the body on success.
func (c *DockerClient) get(ctx context.Context, client *http.Client, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		var netErr net.Error
		if ctx.Err() == context.DeadlineExceeded || (stderrors.As(err, &netErr) && netErr.Timeout()) {
			return nil, errors.WrapWithCode(err, errors.ErrTimeout,
				fmt.Sprintf("Engine at %s didn't answer in time", c.host), "")
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnectivity,
			fmt.Sprintf("Can't reach the container engine at %s", c.host),
			"Is the engine running? Check the host with --host or DOCKER_HOST")
	}
	if res.StatusCode >= 300 {
		defer res.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, apiError(res.StatusCode, path, body)
	}
	return res, nil
}

func apiError(status int, path string, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}
	cause := fmt.Errorf("engine api GET %s failed: %s (%d)", path, msg, status)
	if status == http.StatusNotFound {
		return errors.WrapWithCode(cause, errors.ErrInput, "No such entity", "List containers with: containers")
	}
	return errors.Wrap(cause, "Engine rejected the request")
}

func containerName(names []string, id string) string {
	for _, n := range names {
		n = strings.TrimPrefix(n, "/")
		if n != "" && !strings.Contains(n, "/") {
			return n
		}
	}
	return ShortID(id)
}

// sshTarget turns ssh://user@host:port into the form sshutil.Dial expects.
func sshTarget(u *url.URL) string {
	target := u.Host
	if u.User != nil && u.User.Username() != "" {
		target = u.User.Username() + "@" + target
	}
	return target
}

// sshTunnel keeps one SSH connection and opens a forwarded socket per HTTP
// connection. A broken connection is redialed on the next request.
type sshTunnel struct {
	target  string
	timeout time.Duration

	mu     sync.Mutex
	client *sshutil.Client
}

func (t *sshTunnel) dial(ctx context.Context) (net.Conn, error) {
	t.mu.Lock()
	if t.client == nil {
		client, err := sshutil.Dial(ctx, t.target, t.timeout)
		if err != nil {
			t.mu.Unlock()
			return nil, err
		}
		t.client = client
	}
	client := t.client
	t.mu.Unlock()

	conn, err := client.DialContext(ctx, "unix", remoteSocket)
	if err != nil && ctx.Err() == nil {
		t.mu.Lock()
		if t.client == client {
			t.client = nil
		}
		t.mu.Unlock()
		client.Close()
	}
	return conn, err
}

func (t *sshTunnel) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
