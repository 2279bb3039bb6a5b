package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rileyhilliard/dockhand/internal/config"
	"github.com/rileyhilliard/dockhand/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInit(t *testing.T) {
	h := newCLI(t)
	path := filepath.Join(h.dir, config.ConfigFileName)

	require.NoError(t, h.run(t, "", "config", "init"))
	assert.Contains(t, h.out.String(), "Wrote "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	err = h.run(t, "", "config", "init")
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "--force")

	require.NoError(t, h.run(t, "", "config", "init", "--force"))
	assert.Empty(t, h.dials)
}

func TestConfigInit_Global(t *testing.T) {
	h := newCLI(t)

	require.NoError(t, h.run(t, "", "config", "init", "--global"))

	global := filepath.Join(os.Getenv("HOME"), config.GlobalConfigDir, config.GlobalConfigFile)
	assert.FileExists(t, global)
	assert.NoFileExists(t, filepath.Join(h.dir, config.ConfigFileName))
}

func TestConfigInit_WorksWithBrokenConfig(t *testing.T) {
	h := newCLI(t)
	path := filepath.Join(h.dir, config.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("output:\n  color: rainbow\n"), 0o644))

	require.Error(t, h.run(t, "", "config", "show"))
	require.NoError(t, h.run(t, "", "config", "init", "--force"))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Output.Color)
}

func TestConfigShow(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		args  []string
		wants []string
	}{
		{
			name:  "defaults",
			wants: []string{"# source: built-in defaults", "interval: 1s", "history_size: 60"},
		},
		{
			name:  "file and flags",
			file:  "dashboard:\n  interval: 2s\n",
			args:  []string{"--host", "tcp://10.0.0.5:2375", "--no-color"},
			wants: []string{"# source: ", "interval: 2s", "host: tcp://10.0.0.5:2375", "color: never"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newCLI(t)
			if tt.file != "" {
				require.NoError(t, os.WriteFile(filepath.Join(h.dir, config.ConfigFileName), []byte(tt.file), 0o644))
			}

			args := append([]string{"config", "show"}, tt.args...)
			require.NoError(t, h.run(t, "", args...))

			for _, want := range tt.wants {
				assert.Contains(t, h.out.String(), want)
			}
			assert.Empty(t, h.dials)
		})
	}
}
