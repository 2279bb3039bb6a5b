package shell

import (
	"fmt"
	"regexp"

	"github.com/rileyhilliard/dockhand/internal/errors"
)

// MaxNameLength is the longest container name accepted as an argument.
const MaxNameLength = 63

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateName checks a container name or id prefix given on the command
// line before it reaches the engine.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New(errors.ErrInput, "Container name is empty", "")
	case len(name) > MaxNameLength:
		return errors.New(errors.ErrInput,
			fmt.Sprintf("Container name too long: %d characters", len(name)),
			fmt.Sprintf("Names are at most %d characters.", MaxNameLength))
	case !namePattern.MatchString(name):
		return errors.New(errors.ErrInput,
			fmt.Sprintf("Invalid container name: %q", name),
			"Names start with a letter or digit and use only letters, digits, '_', '.' and '-'.")
	}
	return nil
}

func validateNames(names []string) error {
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			return err
		}
	}
	return nil
}
