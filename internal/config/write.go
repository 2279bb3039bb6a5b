package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/rileyhilliard/dockhand/internal/errors"
	"gopkg.in/yaml.v3"
)

// comments annotate keys in files written by WriteDefault.
var comments = map[string]string{
	"version":                  "Config schema version.",
	"engine":                   "Where the container engine lives.",
	"engine.host":              "unix://, tcp:// or ssh:// address. Empty uses $DOCKER_HOST, then the local socket.",
	"engine.timeout":           "Bounds each request/response call; streams run until cancelled.",
	"dashboard":                "Live views: dashboard, charts and events.",
	"dashboard.interval":       "Redraw cadence. Minimum 100ms.",
	"dashboard.render_timeout": "A render pass slower than this skips its frame.",
	"dashboard.history_size":   "Samples kept per container.",
	"dashboard.grace_period":   "Forget a container that sent no samples for this long.",
	"dashboard.evict_delay":    "Wait after a die/destroy event before dropping samples. 0 is immediate.",
	"dashboard.event_log_size": "Events kept by the events monitor.",
	"completion.timeout":       "Tab completion gives up on live container names after this long.",
	"shell.history_limit":      "Lines of shell history kept for the session.",
	"output.color":             "auto, always or never.",
	"log.file":                 "Debug log file. Empty logs nothing unless DOCKHAND_DEBUG=1.",
	"log.level":                "debug, info, warn or error.",
	"metrics.listen":           "host:port serving dockhand's own Prometheus metrics. Empty disables.",
}

// Marshal renders cfg as YAML, durations written the way they are typed
// ("1s", not nanoseconds). With annotate set, keys carry explanatory
// comments.
func Marshal(cfg *Config, annotate bool) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.DocumentNode}
	root, err := structNode(reflect.ValueOf(*cfg), "", annotate)
	if err != nil {
		return nil, err
	}
	doc.Content = []*yaml.Node{root}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return []byte(buf.String()), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func structNode(v reflect.Value, prefix string, annotate bool) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
		if annotate {
			key.HeadComment = comments[path]
		}

		field := v.Field(i)
		var val *yaml.Node
		switch {
		case field.Type() == durationType:
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: time.Duration(field.Int()).String()}
		case field.Kind() == reflect.Struct:
			var err error
			if val, err = structNode(field, path, annotate); err != nil {
				return nil, err
			}
		default:
			val = &yaml.Node{}
			if err := val.Encode(field.Interface()); err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", path, err)
			}
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// WriteDefault writes an annotated default config to path. An existing
// file is only replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return errors.New(errors.ErrConfig,
			"Config file already exists: "+path,
			"Pass --force to replace it.")
	}

	data, err := Marshal(DefaultConfig(), true)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't build the default config", "")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't create "+filepath.Dir(path), "Check directory permissions")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't write "+path, "Check file permissions")
	}
	return nil
}
