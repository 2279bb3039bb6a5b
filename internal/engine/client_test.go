package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *DockerClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{Host: "tcp://" + strings.TrimPrefix(srv.URL, "http://"), Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_Schemes(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr string
		base    string
	}{
		{"default", "", "", "http://docker"},
		{"unix", "unix:///tmp/docker.sock", "", "http://docker"},
		{"tcp", "tcp://10.0.0.1:2375", "", "http://10.0.0.1:2375"},
		{"ssh", "ssh://deploy@build", "", "http://docker"},
		{"unknown scheme", "npipe:////./pipe/docker_engine", errors.ErrConfig, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(Options{Host: tt.host})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.base, c.base)
			assert.NoError(t, c.Close())
		})
	}
}

func TestSSHTarget(t *testing.T) {
	c, err := NewClient(Options{Host: "ssh://deploy@build:2222"})
	require.NoError(t, err)
	require.Len(t, c.closeFns, 1)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_ping", r.URL.Path)
		fmt.Fprint(w, "OK")
	}))
	assert.NoError(t, c.Ping(context.Background()))
}

func TestPing_Unreachable(t *testing.T) {
	c, err := NewClient(Options{Host: "unix:///nonexistent/docker.sock", Timeout: time.Second})
	require.NoError(t, err)

	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
}

func TestListEntities_Containers(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("all"))
		fmt.Fprint(w, `[
			{"Id":"aaaaaaaaaaaaaaaa","Names":["/web"],"Image":"nginx","State":"running","Status":"Up 2 hours"},
			{"Id":"bbbbbbbbbbbbbbbb","Names":[],"Image":"redis","State":"exited","Status":"Exited (0)"}
		]`)
	}))

	got, err := c.ListEntities(context.Background(), KindContainer)
	require.NoError(t, err)
	assert.Equal(t, []Entity{
		{ID: "aaaaaaaaaaaaaaaa", Name: "web", State: "running", Image: "nginx", Status: "Up 2 hours"},
		{ID: "bbbbbbbbbbbbbbbb", Name: "bbbbbbbbbbbb", State: "exited", Image: "redis", Status: "Exited (0)"},
	}, got)
}

func TestListEntities_ImagesOnePerTag(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"Id":"sha256:1","RepoTags":["nginx:latest","nginx:1.27"],"Size":1024},
			{"Id":"sha256:2","RepoTags":["<none>:<none>"],"Size":1}
		]`)
	}))

	got, err := c.ListEntities(context.Background(), KindImage)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "nginx:latest", got[0].Name)
	assert.Equal(t, "nginx:1.27", got[1].Name)
	assert.Equal(t, int64(1024), got[1].Size)
}

func TestListEntities_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"daemon is shutting down"}`)
	}))

	_, err := c.ListEntities(context.Background(), KindContainer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon is shutting down")
	assert.True(t, errors.IsCode(err, errors.ErrConnectivity))
}

func TestListEntities_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.ListEntities(ctx, KindContainer)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTimeout))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "0123456789ab", ShortID("0123456789abcdef"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "container", KindContainer.String())
	assert.Equal(t, "image", KindImage.String())
	assert.Equal(t, "any", KindAny.String())
	assert.Equal(t, "none", KindNone.String())
}
