package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
account = "+15550000000"

[daemon]
host = "config-host"
port = 7583
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts := &rootOptions{
		configPath: path,
		account:    "+15551111111",
		daemonPort: 9000,
	}

	cfg, err := opts.loadConfig()
	require.NoError(t, err)

	// Flags win over the file; unset flags leave file values alone.
	require.Equal(t, "+15551111111", cfg.Account)
	require.Equal(t, "config-host", cfg.Daemon.Host)
	require.Equal(t, 9000, cfg.Daemon.Port)
}

func TestLoadConfig_InvalidOverrideRejected(t *testing.T) {
	opts := &rootOptions{
		configPath: filepath.Join(t.TempDir(), "missing.toml"),
		daemonPort: -1,
	}

	_, err := opts.loadConfig()
	require.Error(t, err)
}

func TestRequireAccount(t *testing.T) {
	opts := &rootOptions{configPath: filepath.Join(t.TempDir(), "missing.toml")}

	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	require.Error(t, requireAccount(cfg))

	cfg.Account = "+15551234567"
	require.NoError(t, requireAccount(cfg))
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"NAME", "ID"},
		[][]string{{"Friends", "g1"}, {"Work", "g2"}},
	)

	require.Contains(t, out, "NAME")
	require.Contains(t, out, "Friends")
	require.Contains(t, out, "g2")

	require.Empty(t, renderTable(nil, nil))
}
