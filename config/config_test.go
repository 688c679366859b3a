// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	require := require.New(t)

	const cfgStr = `
Mode = "stealth"
DataDir = "/var/lib/satl"
`
	cfg, err := Load([]byte(cfgStr))
	require.NoError(err)

	require.Equal(ModeStealth, cfg.Mode)
	require.Equal("NOTICE", cfg.Logging.Level)
	require.Equal(BackendAuto, cfg.Window.Backend)
	require.Equal(256, cfg.Window.Capacity)
	require.Equal(60, cfg.Window.GCIntervalSec)
	require.Equal(5, cfg.Window.LockWaitSec)
	require.Equal(300, cfg.Rotation.DefaultValiditySec)
	require.Equal(86400, cfg.Rotation.MaxPackAgeSec)
	require.Equal(30, cfg.Rotation.ClockSkewSec)
	require.False(cfg.Rotation.TestSignatures)
	require.Equal("", cfg.Metrics.Address)
}

func TestLoadFull(t *testing.T) {
	require := require.New(t)

	const cfgStr = `
Mode = "security"
DataDir = "/var/lib/satl"

[Logging]
Level = "DEBUG"

[Window]
Backend = "bolt"
Capacity = 512
File = "replay.db"
GCIntervalSec = 30
LockWaitSec = 10

[Rotation]
TestSignatures = true
PublicKeyFile = "authority.public"
MaxPackAgeSec = 3600
ClockSkewSec = 5

[Metrics]
Address = "127.0.0.1:6543"
`
	cfg, err := Load([]byte(cfgStr))
	require.NoError(err)

	require.Equal(ModeSecurity, cfg.Mode)
	require.Equal("DEBUG", cfg.Logging.Level)
	require.Equal(BackendBolt, cfg.Window.Backend)
	require.Equal(512, cfg.Window.Capacity)
	require.Equal(30, cfg.Window.GCIntervalSec)
	require.Equal(10, cfg.Window.LockWaitSec)
	require.True(cfg.Rotation.TestSignatures)
	require.Equal(3600, cfg.Rotation.MaxPackAgeSec)
	require.Equal(5, cfg.Rotation.ClockSkewSec)
	require.Equal("127.0.0.1:6543", cfg.Metrics.Address)

	require.Equal(filepath.Join("/var/lib/satl", "replay.db"), cfg.WindowFile())
	require.Equal(filepath.Join("/var/lib/satl", "authority.public"), cfg.PublicKeyPath())
}

func TestLoadRejectsInvalid(t *testing.T) {
	require := require.New(t)

	cases := []string{
		// Missing DataDir.
		`Mode = "stealth"`,
		// Relative DataDir.
		`DataDir = "state"`,
		// Invalid mode.
		`
Mode = "turbo"
DataDir = "/var/lib/satl"
`,
		// Invalid backend.
		`
DataDir = "/var/lib/satl"
[Window]
Backend = "redis"
`,
		// Invalid log level.
		`
DataDir = "/var/lib/satl"
[Logging]
Level = "TRACE"
`,
		// Negative interval.
		`
DataDir = "/var/lib/satl"
[Window]
GCIntervalSec = -1
`,
		// Unknown key.
		`
DataDir = "/var/lib/satl"
FrobnicationLevel = 9
`,
	}
	for _, cfgStr := range cases {
		_, err := Load([]byte(cfgStr))
		require.Errorf(err, "config should be rejected:\n%v", cfgStr)
	}
}

func TestWindowBackendAuto(t *testing.T) {
	require := require.New(t)

	for _, tc := range []struct {
		mode    string
		backend string
		want    string
	}{
		{ModeStealth, BackendAuto, BackendBolt},
		{ModeSecurity, BackendAuto, BackendBolt},
		{ModePerformance, BackendAuto, BackendMemory},
		{ModePerformance, BackendBolt, BackendBolt},
		{ModeStealth, BackendMemory, BackendMemory},
	} {
		cfg := &Config{
			Mode:    tc.mode,
			DataDir: "/var/lib/satl",
			Window:  &Window{Backend: tc.backend},
		}
		require.NoError(cfg.FixupAndValidate())
		require.Equal(tc.want, cfg.WindowBackend(), "mode %v backend %v", tc.mode, tc.backend)
	}
}

func TestAbsolutePathsPassThrough(t *testing.T) {
	require := require.New(t)

	cfg := &Config{
		Mode:    ModeStealth,
		DataDir: "/var/lib/satl",
		Window:  &Window{File: "/mnt/fast/window.db"},
		Rotation: &Rotation{
			PublicKeyFile: "/etc/satl/rotation.public",
		},
	}
	require.NoError(cfg.FixupAndValidate())

	require.Equal("/mnt/fast/window.db", cfg.WindowFile())
	require.Equal("/etc/satl/rotation.public", cfg.PublicKeyPath())
	require.Equal(filepath.Join("/var/lib/satl", "rotation.private"), cfg.PrivateKeyPath())
}
