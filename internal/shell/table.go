package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
)

// Handler runs one command. It receives the session as it stood after the
// line was recorded and returns the session the loop continues with.
type Handler func(ctx context.Context, sh *Shell, sess Session, args []string) (Session, error)

// Arg describes one argument position of a command.
type Arg struct {
	Name string
	// Words are the fixed values offered at this position.
	Words []string
	// Kind says which live entity names belong here (KindNone for none).
	Kind engine.Kind
	// Commands offers the table's own command names.
	Commands bool
	Optional bool
}

// Command is one entry of the command table. Dispatch and completion both
// read it.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Args    []Arg
	// Variadic repeats the last Arg.
	Variadic bool
	// Live marks commands that own the terminal until cancelled.
	Live bool
	Run  Handler
}

func (c *Command) usage() string {
	if c.Usage != "" {
		return c.Usage
	}
	parts := []string{c.Name}
	for i, a := range c.Args {
		name := a.Name
		if c.Variadic && i == len(c.Args)-1 {
			name += "..."
		}
		if a.Optional {
			parts = append(parts, "["+name+"]")
		} else {
			parts = append(parts, "<"+name+">")
		}
	}
	return strings.Join(parts, " ")
}

// checkArgs enforces the argument count.
func (c *Command) checkArgs(args []string) error {
	required := 0
	for _, a := range c.Args {
		if !a.Optional {
			required++
		}
	}
	if len(args) < required || (!c.Variadic && len(args) > len(c.Args)) {
		return errors.New(errors.ErrInput,
			fmt.Sprintf("Wrong number of arguments for %s", c.Name),
			"Usage: "+c.usage())
	}
	return nil
}

// argAt returns the argument description for position i, if any.
func (c *Command) argAt(i int) (Arg, bool) {
	if i < len(c.Args) {
		return c.Args[i], true
	}
	if c.Variadic && len(c.Args) > 0 {
		return c.Args[len(c.Args)-1], true
	}
	return Arg{}, false
}

// Table maps command tokens to commands.
type Table struct {
	cmds  map[string]*Command
	names []string
}

// NewTable builds a table. A later command with the same name replaces an
// earlier one.
func NewTable(cmds ...Command) *Table {
	t := &Table{cmds: make(map[string]*Command, len(cmds))}
	for i := range cmds {
		c := cmds[i]
		if _, dup := t.cmds[c.Name]; !dup {
			t.names = append(t.names, c.Name)
		}
		t.cmds[c.Name] = &c
	}
	sort.Strings(t.names)
	return t
}

// Names lists the command tokens in lexical order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// Get returns the command named exactly name.
func (t *Table) Get(name string) (*Command, bool) {
	c, ok := t.cmds[name]
	return c, ok
}

// Lookup resolves token to a command: an exact name wins, otherwise a
// prefix shared by exactly one name. Anything else is an input error.
func (t *Table) Lookup(token string) (*Command, error) {
	if c, ok := t.cmds[token]; ok {
		return c, nil
	}

	var matches []string
	for _, name := range t.names {
		if strings.HasPrefix(name, token) {
			matches = append(matches, name)
		}
	}
	switch len(matches) {
	case 1:
		return t.cmds[matches[0]], nil
	case 0:
		return nil, errors.New(errors.ErrInput,
			fmt.Sprintf("Unknown command: %s", token), t.suggest(token))
	default:
		return nil, errors.New(errors.ErrInput,
			fmt.Sprintf("Ambiguous command: %s", token),
			"Could be: "+strings.Join(matches, ", "))
	}
}

// suggest names the closest command when it is near enough to be a typo.
func (t *Table) suggest(token string) string {
	best, bestDist := "", 3
	for _, name := range t.names {
		if d := levenshtein.ComputeDistance(token, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	if best == "" {
		return "Type 'help' to list commands."
	}
	return fmt.Sprintf("Did you mean '%s'?", best)
}

// Candidates implements completion.Table. The first position offers
// command names; later positions offer what the command's Arg says.
func (t *Table) Candidates(prior []string) ([]string, engine.Kind) {
	if len(prior) == 0 {
		return t.Names(), engine.KindNone
	}
	c, err := t.Lookup(prior[0])
	if err != nil {
		return nil, engine.KindNone
	}
	a, ok := c.argAt(len(prior) - 1)
	if !ok {
		return nil, engine.KindNone
	}
	if a.Commands {
		return t.Names(), a.Kind
	}
	return a.Words, a.Kind
}
