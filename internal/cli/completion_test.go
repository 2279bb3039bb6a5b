package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rileyhilliard/dockhand/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBrokenConfig(h *cliHarness) error {
	return os.WriteFile(filepath.Join(h.dir, config.ConfigFileName), []byte("version: [oops"), 0o644)
}

func TestCompletionScripts(t *testing.T) {
	tests := []struct {
		shell string
		wants []string
	}{
		{"bash", []string{"# bash completion for dockhand", "__completeNoDesc", "complete -o default -F __start_dockhand dockhand"}},
		{"zsh", []string{"#compdef dockhand", "_dockhand()"}},
		{"fish", []string{"fish completion for dockhand", "complete -c dockhand"}},
		{"powershell", []string{"Register-ArgumentCompleter"}},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			h := newCLI(t)
			// Script generation must not trip over a broken config.
			require.NoError(t, writeBrokenConfig(h))

			require.NoError(t, h.run(t, "", "completion", tt.shell))

			for _, want := range tt.wants {
				assert.Contains(t, h.out.String(), want)
			}
			assert.Empty(t, h.dials)
		})
	}
}

func TestCompletionBashSyntaxValid(t *testing.T) {
	h := newCLI(t)
	require.NoError(t, h.run(t, "", "completion", "bash"))

	output := h.out.String()
	assert.Equal(t, strings.Count(output, "{"), strings.Count(output, "}"), "braces should be balanced")
	assert.Contains(t, output, "__start_dockhand()")
}

func TestCompletionCommandValidArgs(t *testing.T) {
	cmd := newCompletionCmd()
	assert.Equal(t, []string{"bash", "zsh", "fish", "powershell"}, cmd.ValidArgs)

	h := newCLI(t)
	assert.Error(t, h.run(t, "", "completion", "tcsh"))
	assert.Error(t, h.run(t, "", "completion"))
}
