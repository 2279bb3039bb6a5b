// Package sshutil opens SSH connections used to reach a container engine on
// a remote host. Settings are resolved from ~/.ssh/config the same way the
// ssh binary would, and authentication tries the agent before key files.
package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/dockhand/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// StrictHostKeyChecking controls host key verification. Disabling it skips
// known_hosts entirely and is meant for throwaway CI hosts only.
var StrictHostKeyChecking = true

// Client wraps an SSH connection with the alias it was opened for.
type Client struct {
	*ssh.Client
	Host    string // alias or user@host as given
	Address string // resolved host:port
}

// Dial connects to host, which may be an ssh config alias, a hostname,
// user@hostname, or hostname:port.
func Dial(ctx context.Context, host string, timeout time.Duration) (*Client, error) {
	settings := ResolveSettings(host, UserConfigPath())

	cfg, err := clientConfig(settings, timeout)
	if err != nil {
		var dhErr *errors.Error
		if stderrors.As(err, &dhErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnectivity,
			fmt.Sprintf("Couldn't set up SSH for '%s'", host),
			"Check your keys are loaded: ssh-add -l")
	}

	address := settings.Address()
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConnectivity,
			fmt.Sprintf("Can't reach '%s' at %s", host, address),
			dialSuggestion(err))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, cfg)
	if err != nil {
		conn.Close()
		var mismatch *HostKeyMismatchError
		if stderrors.As(err, &mismatch) {
			return nil, errors.New(errors.ErrConnectivity, mismatch.Error(), mismatch.Suggestion())
		}
		return nil, errors.WrapWithCode(err, errors.ErrConnectivity,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", host),
			handshakeSuggestion(err, settings.EncryptedKeys))
	}

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// DialContext opens a forwarded connection on the remote side, for example
// network "unix" and addr "/var/run/docker.sock". The ssh package has no
// context-aware dial, so cancellation closes the half-open channel.
func (c *Client) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := c.Client.Dial(network, addr)
		ch <- result{conn, err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func clientConfig(settings *Settings, timeout time.Duration) (*ssh.ClientConfig, error) {
	methods := authMethods(settings)
	if len(methods) == 0 {
		msg := "No SSH auth methods available"
		if len(settings.EncryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.EncryptedKeys, ", "))
		}
		return nil, errors.New(errors.ErrConnectivity, msg, addKeysSuggestion(settings.EncryptedKeys))
	}

	hostKeys := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in via StrictHostKeyChecking
	if StrictHostKeyChecking {
		cb, err := hostKeyCallback(filepath.Join(homeDir(), ".ssh", "known_hosts"))
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeys = cb
	}

	return &ssh.ClientConfig{
		User:            settings.User,
		Auth:            methods,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

func authMethods(settings *Settings) []ssh.AuthMethod {
	var methods []ssh.AuthMethod
	if a := agentAuth(); a != nil {
		methods = append(methods, a)
	}

	keys := []string{settings.IdentityFile}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keys = append(keys, filepath.Join(homeDir(), ".ssh", name))
	}

	seen := map[string]bool{}
	for _, path := range keys {
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true

		m, err := keyFileAuth(path)
		if err != nil {
			var enc *EncryptedKeyError
			if stderrors.As(err, &enc) {
				settings.EncryptedKeys = append(settings.EncryptedKeys, path)
			}
			continue
		}
		methods = append(methods, m)
	}
	return methods
}

var (
	agentOnce   sync.Once
	agentClient agent.ExtendedAgent
)

// agentAuth returns nil when no agent is running or it holds no keys; an
// empty agent placed first makes servers reject the later key methods.
func agentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	agentOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentClient = agent.NewClient(conn)
	})
	if agentClient == nil {
		return nil
	}
	if signers, err := agentClient.Signers(); err != nil || len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// EncryptedKeyError is returned when a key file needs a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

func keyFileAuth(path string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || strings.Contains(string(data), "ENCRYPTED") {
			return nil, &EncryptedKeyError{Path: path}
		}
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// HostKeyMismatchError explains a known_hosts conflict.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns the commands that clear the stale entry.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return fmt.Sprintf("Remove the old entry with: ssh-keygen -R %s\n  then connect once with: ssh %s", host, host)
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			return nil, err
		}
	}

	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := cb(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{Hostname: hostname, ReceivedType: key.Type(), KnownHosts: path}
		}
		return err
	}, nil
}

func dialSuggestion(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "Is SSH running on that box? Try: ssh <host>"
	case strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return "Can't route to the host. Check your network connection."
	case strings.Contains(msg, "timeout"):
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func handshakeSuggestion(err error, encrypted []string) string {
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods") {
		if len(encrypted) > 0 {
			return addKeysSuggestion(encrypted)
		}
		return "Auth failed. Check your keys are loaded: ssh-add -l"
	}
	if strings.Contains(msg, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

func addKeysSuggestion(keys []string) string {
	if len(keys) == 0 {
		return "Check your keys are loaded: ssh-add -l"
	}
	var b strings.Builder
	b.WriteString("Add your key(s) to the agent:\n")
	for _, k := range keys {
		b.WriteString("  ssh-add " + k + "\n")
	}
	return b.String()
}
