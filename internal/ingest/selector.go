package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
)

// Selector picks the entities a live view follows. The zero value (and any
// selector without names) means every running container.
type Selector struct {
	Names []string // container names or id prefixes
}

// All reports whether the selector follows every running container.
func (s Selector) All() bool { return len(s.Names) == 0 }

func (s Selector) String() string {
	if s.All() {
		return "all containers"
	}
	return strings.Join(s.Names, ", ")
}

// Resolve matches the selector against the engine's container list. Names
// match exactly, or as a unique id prefix. An unknown name is an input error.
func Resolve(ctx context.Context, eng engine.Engine, sel Selector) ([]engine.Entity, error) {
	all, err := eng.ListEntities(ctx, engine.KindContainer)
	if err != nil {
		return nil, err
	}
	if sel.All() {
		return all, nil
	}

	var out []engine.Entity
	seen := map[string]bool{}
	for _, name := range sel.Names {
		e, err := match(all, name)
		if err != nil {
			return nil, err
		}
		if !seen[e.ID] {
			seen[e.ID] = true
			out = append(out, e)
		}
	}
	return out, nil
}

func match(all []engine.Entity, name string) (engine.Entity, error) {
	for _, e := range all {
		if e.Name == name || e.ID == name {
			return e, nil
		}
	}

	var hits []engine.Entity
	for _, e := range all {
		if strings.HasPrefix(e.ID, name) {
			hits = append(hits, e)
		}
	}
	switch len(hits) {
	case 1:
		return hits[0], nil
	case 0:
		return engine.Entity{}, errors.New(errors.ErrInput,
			fmt.Sprintf("No such container: %s", name),
			"List containers with: containers")
	default:
		return engine.Entity{}, errors.Inputf("Container id prefix %q matches %d containers", name, len(hits))
	}
}
