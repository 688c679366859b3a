// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package config provides the SATL node rotation subsystem configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	defaultLogLevel       = "NOTICE"
	defaultWindowCapacity = 256
	defaultGCInterval     = 60    // 60 sec.
	defaultLockWait       = 5     // 5 sec.
	defaultValidity       = 300   // 5 min.
	defaultMaxPackAge     = 86400 // 24 hours.
	defaultClockSkew      = 30    // 30 sec.
	defaultWindowFile     = "window.db"
	defaultPublicKeyFile  = "rotation.public"
	defaultPrivateKeyFile = "rotation.private"

	// ModeStealth is the default operating mode, with full traffic
	// shaping and a durable anti-replay window.
	ModeStealth = "stealth"

	// ModeSecurity trades throughput for the most conservative settings.
	ModeSecurity = "security"

	// ModePerformance disables durability in favour of throughput.
	ModePerformance = "performance"

	// BackendMemory is the volatile in-process window store.
	BackendMemory = "memory"

	// BackendBolt is the durable boltdb window store.
	BackendBolt = "bolt"

	// BackendAuto selects the window store from the operating mode.
	BackendAuto = "auto"
)

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := lCfg.Level
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lCfg.Level = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lvl)
	}
	return nil
}

// Window is the anti-replay window store configuration.
type Window struct {
	// Backend selects the window store backend, one of "memory", "bolt"
	// or "auto".  Auto selects memory in performance mode and bolt
	// otherwise.
	Backend string

	// Capacity is the per-channel entry bound of the memory backend.
	Capacity int

	// File is the bolt database file, relative to DataDir unless
	// absolute.
	File string

	// GCIntervalSec is the expired entry sweep interval in seconds.
	GCIntervalSec int

	// LockWaitSec bounds the wait for the bolt file lock in seconds.
	LockWaitSec int
}

func (wCfg *Window) validate() error {
	switch wCfg.Backend {
	case BackendMemory, BackendBolt, BackendAuto:
	case "":
		wCfg.Backend = BackendAuto
	default:
		return fmt.Errorf("config: Window: Backend '%v' is invalid", wCfg.Backend)
	}
	if wCfg.Capacity < 0 {
		return fmt.Errorf("config: Window: Capacity %d is invalid", wCfg.Capacity)
	}
	if wCfg.Capacity == 0 {
		wCfg.Capacity = defaultWindowCapacity
	}
	if wCfg.File == "" {
		wCfg.File = defaultWindowFile
	}
	if wCfg.GCIntervalSec < 0 {
		return fmt.Errorf("config: Window: GCIntervalSec %d is invalid", wCfg.GCIntervalSec)
	}
	if wCfg.GCIntervalSec == 0 {
		wCfg.GCIntervalSec = defaultGCInterval
	}
	if wCfg.LockWaitSec < 0 {
		return fmt.Errorf("config: Window: LockWaitSec %d is invalid", wCfg.LockWaitSec)
	}
	if wCfg.LockWaitSec == 0 {
		wCfg.LockWaitSec = defaultLockWait
	}
	return nil
}

// Rotation is the rotation pack verification configuration.
type Rotation struct {
	// TestSignatures enables the test mode signature provider instead
	// of the production Dilithium3 scheme.  This is an explicit choice,
	// it is never enabled automatically, and it is logged loudly at
	// startup.  Production nodes MUST leave this unset.
	TestSignatures bool

	// PublicKeyFile is the authority public key used to verify packs,
	// relative to DataDir unless absolute.
	PublicKeyFile string

	// PrivateKeyFile is the authority private key used to sign packs.
	// Only the authority sets this, nodes never need it.
	PrivateKeyFile string

	// DefaultValiditySec is the validity window applied to newly created
	// packs, in seconds.
	DefaultValiditySec int

	// MaxPackAgeSec is the acceptance age bound for legacy packs that
	// lack a valid_until field, in seconds.
	MaxPackAgeSec int

	// ClockSkewSec is the tolerated forward clock skew on issued_at, in
	// seconds.
	ClockSkewSec int
}

func (rCfg *Rotation) validate() error {
	if rCfg.PublicKeyFile == "" {
		rCfg.PublicKeyFile = defaultPublicKeyFile
	}
	if rCfg.PrivateKeyFile == "" {
		rCfg.PrivateKeyFile = defaultPrivateKeyFile
	}
	if rCfg.DefaultValiditySec < 0 {
		return fmt.Errorf("config: Rotation: DefaultValiditySec %d is invalid", rCfg.DefaultValiditySec)
	}
	if rCfg.DefaultValiditySec == 0 {
		rCfg.DefaultValiditySec = defaultValidity
	}
	if rCfg.MaxPackAgeSec < 0 {
		return fmt.Errorf("config: Rotation: MaxPackAgeSec %d is invalid", rCfg.MaxPackAgeSec)
	}
	if rCfg.MaxPackAgeSec == 0 {
		rCfg.MaxPackAgeSec = defaultMaxPackAge
	}
	if rCfg.ClockSkewSec < 0 {
		return fmt.Errorf("config: Rotation: ClockSkewSec %d is invalid", rCfg.ClockSkewSec)
	}
	if rCfg.ClockSkewSec == 0 {
		rCfg.ClockSkewSec = defaultClockSkew
	}
	return nil
}

// Metrics is the prometheus metrics configuration.
type Metrics struct {
	// Address is the metrics endpoint listen address, disabled if empty.
	Address string
}

// Config is the top level SATL rotation subsystem configuration.
type Config struct {
	// Mode is the node operating mode, one of "stealth", "security" or
	// "performance".
	Mode string

	// DataDir is the absolute path to the node's state files.
	DataDir string

	Logging  *Logging
	Window   *Window
	Rotation *Rotation
	Metrics  *Metrics
}

// WindowBackend resolves the effective window store backend, applying the
// auto selection rule.
func (cfg *Config) WindowBackend() string {
	if cfg.Window.Backend != BackendAuto {
		return cfg.Window.Backend
	}
	if cfg.Mode == ModePerformance {
		return BackendMemory
	}
	return BackendBolt
}

// WindowFile returns the absolute path of the bolt window database.
func (cfg *Config) WindowFile() string {
	return cfg.absPath(cfg.Window.File)
}

// PublicKeyPath returns the absolute path of the authority public key.
func (cfg *Config) PublicKeyPath() string {
	return cfg.absPath(cfg.Rotation.PublicKeyFile)
}

// PrivateKeyPath returns the absolute path of the authority private key.
func (cfg *Config) PrivateKeyPath() string {
	return cfg.absPath(cfg.Rotation.PrivateKeyFile)
}

func (cfg *Config) absPath(f string) string {
	if filepath.IsAbs(f) {
		return f
	}
	return filepath.Join(cfg.DataDir, f)
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (cfg *Config) FixupAndValidate() error {
	switch cfg.Mode {
	case ModeStealth, ModeSecurity, ModePerformance:
	case "":
		cfg.Mode = ModeStealth
	default:
		return fmt.Errorf("config: Mode '%v' is invalid", cfg.Mode)
	}

	if cfg.DataDir == "" {
		return errors.New("config: DataDir is not set")
	}
	if !filepath.IsAbs(cfg.DataDir) {
		return fmt.Errorf("config: DataDir '%v' is not an absolute path", cfg.DataDir)
	}

	if cfg.Logging == nil {
		l := defaultLogging
		cfg.Logging = &l
	}
	if cfg.Window == nil {
		cfg.Window = new(Window)
	}
	if cfg.Rotation == nil {
		cfg.Rotation = new(Rotation)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = new(Metrics)
	}

	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	if err := cfg.Window.validate(); err != nil {
		return err
	}
	return cfg.Rotation.validate()
}

// Load parses and validates the provided buffer b as a config body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
