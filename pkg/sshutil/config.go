package sshutil

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// Settings are the connection parameters resolved for one host string.
type Settings struct {
	Hostname      string
	Port          string
	User          string
	IdentityFile  string
	EncryptedKeys []string // key files found but passphrase protected
}

// Address returns host:port for dialing.
func (s *Settings) Address() string {
	return net.JoinHostPort(s.Hostname, s.Port)
}

// UserConfigPath is ~/.ssh/config.
func UserConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// ResolveSettings parses user@host:port and overlays whatever configPath
// says about the host. Explicit parts of the host string win over the file.
func ResolveSettings(host, configPath string) *Settings {
	s := &Settings{Port: "22", User: currentUser()}

	explicitUser, explicitPort := false, false
	if at := strings.Index(host, "@"); at != -1 {
		s.User = host[:at]
		host = host[at+1:]
		explicitUser = true
	}
	if h, p, err := net.SplitHostPort(host); err == nil && isDigits(p) {
		host, s.Port = h, p
		explicitPort = true
	}
	s.Hostname = host

	cfg, err := decodeConfig(configPath)
	if err != nil {
		return s
	}

	if v, _ := cfg.Get(host, "HostName"); v != "" {
		s.Hostname = v
	}
	if v, _ := cfg.Get(host, "Port"); v != "" && !explicitPort {
		s.Port = v
	}
	if v, _ := cfg.Get(host, "User"); v != "" && !explicitUser {
		s.User = v
	}
	if v, _ := cfg.Get(host, "IdentityFile"); v != "" {
		s.IdentityFile = expandPath(v)
	}
	return s
}

// Hosts lists the concrete aliases in configPath, skipping wildcard patterns.
// A missing file yields no hosts and no error.
func Hosts(configPath string) ([]string, error) {
	cfg, err := decodeConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := map[string]bool{}
	var out []string
	for _, h := range cfg.Hosts {
		for _, p := range h.Patterns {
			alias := p.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out, nil
}

// decodeConfig parses the file up to its first Match block, which the
// ssh_config decoder does not understand.
func decodeConfig(path string) (*ssh_config.Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var kept []string
	for _, line := range strings.Split(string(content), "\n") {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "match ") {
			break
		}
		kept = append(kept, line)
	}
	return ssh_config.Decode(bytes.NewReader([]byte(strings.Join(kept, "\n"))))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
