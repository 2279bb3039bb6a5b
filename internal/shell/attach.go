package shell

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/muesli/cancelreader"
	"github.com/rileyhilliard/dockhand/internal/engine"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/rileyhilliard/dockhand/internal/ingest"
	"github.com/rileyhilliard/dockhand/internal/ui"
	"golang.org/x/term"
)

func runAttach(ctx context.Context, sh *Shell, sess Session, args []string) (Session, error) {
	var target engine.Entity
	if len(args) == 1 {
		if err := ValidateName(args[0]); err != nil {
			return sess, err
		}
		found, err := ingest.Resolve(ctx, sh.eng, ingest.Selector{Names: args})
		if err != nil {
			return sess, err
		}
		target = found[0]
	} else {
		picked, err := sh.pickRunning(ctx)
		if err != nil || picked == nil {
			return sess, err
		}
		target = *picked
	}

	if target.State != "" && target.State != "running" {
		return sess, errors.New(errors.ErrInput,
			fmt.Sprintf("Container %s is %s", target.Name, target.State),
			"Only running containers can be attached.")
	}
	return sess, sh.Attach(ctx, target)
}

// pickRunning asks the user to choose a running container. It needs a
// terminal; elsewhere the name is simply required.
func (sh *Shell) pickRunning(ctx context.Context) (*engine.Entity, error) {
	if !sh.tty {
		return nil, errors.New(errors.ErrInput, "Which container?", "Usage: attach <container>")
	}
	list, err := sh.eng.ListEntities(ctx, engine.KindContainer)
	if err != nil {
		return nil, errors.Wrap(err, "Couldn't list containers")
	}

	var running []engine.Entity
	var items []ui.PickItem
	for _, e := range list {
		if e.State != "running" {
			continue
		}
		running = append(running, e)
		items = append(items, ui.PickItem{ID: engine.ShortID(e.ID), Name: e.Name, Image: e.Image, State: e.State})
	}
	if len(items) == 0 {
		return nil, errors.New(errors.ErrInput, "No running containers", "Start one, then try again.")
	}

	picked, err := ui.Pick("Attach to", items, sh.out, sh.in)
	if err != nil || picked == nil {
		return nil, err
	}
	for i := range running {
		if running[i].Name == picked.Name {
			return &running[i], nil
		}
	}
	return nil, nil
}

// Attach hands the terminal to the container's console until the detach
// keys are typed, the container exits, or ctx is cancelled. The terminal
// mode is restored on every path.
func (sh *Shell) Attach(ctx context.Context, target engine.Entity) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	ctx, release := sh.track(ctx)
	defer release()

	if f, ok := sh.in.(*os.File); ok && sh.tty {
		fd := int(f.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrAttach, "Couldn't switch the terminal to raw mode", "")
		}
		defer func() { _ = term.Restore(fd, state) }()
	}

	// A cancellable reader keeps a pending read from swallowing the first
	// keystroke meant for the prompt once we detach.
	cr, err := cancelreader.NewReader(sh.in)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrAttach, "Couldn't read from the terminal", "")
	}
	defer cr.Close()
	defer cr.Cancel()

	fmt.Fprintf(sh.out, "Attached to %s. Detach with ctrl-p ctrl-q.\r\n", target.Name)
	err = sh.eng.Attach(ctx, target.ID, engine.NewDetachReader(cr, engine.DefaultDetachKeys), sh.out)
	fmt.Fprintf(sh.out, "\r\nDetached from %s\r\n", target.Name)
	return err
}
