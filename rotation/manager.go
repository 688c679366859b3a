// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package rotation

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/op/go-logging.v1"

	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/config"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/core/log"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/core/worker"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/instrument"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/shaping"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/signer"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/window"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/window/boltwindow"
	"github.com/Daniele-Cangi/SATL---Secure-Adaptive-Transport-Layer/window/memwindow"
)

// Manager wires a window store and a signature provider behind the single
// Apply entry point used by forwarding nodes, and owns the GC sweeper
// lifecycle.
type Manager struct {
	worker.Worker

	cfg        *config.Config
	store      window.Store
	provider   signer.Provider
	authority  []byte
	shapingCfg *shaping.Config

	gcInterval time.Duration
	clock      func() time.Time

	log *logging.Logger
}

// NewManager constructs a Manager from the validated configuration,
// selecting the window backend, loading the authority public key and
// starting the GC sweeper.  A production configured node that cannot
// assemble its signature provider or key material fails here instead of
// degrading.
func NewManager(cfg *config.Config, logBackend *log.Backend) (*Manager, error) {
	m := &Manager{
		cfg:        cfg,
		shapingCfg: shaping.New(),
		gcInterval: time.Duration(cfg.Window.GCIntervalSec) * time.Second,
		clock:      time.Now,
		log:        logBackend.GetLogger("rotation/manager"),
	}

	if cfg.Rotation.TestSignatures {
		m.provider = signer.NewTestProvider(m.log)
	} else {
		m.provider = signer.NewDilithiumProvider()
	}

	pk, err := os.ReadFile(cfg.PublicKeyPath())
	if err != nil {
		return nil, fmt.Errorf("rotation: failed to load authority public key: %v", err)
	}
	if len(pk) != m.provider.PublicKeySize() {
		return nil, fmt.Errorf("rotation: authority public key is %d bytes, scheme %v requires %d", len(pk), m.provider.Name(), m.provider.PublicKeySize())
	}
	m.authority = pk

	backend := cfg.WindowBackend()
	switch backend {
	case config.BackendMemory:
		m.store = memwindow.New(cfg.Window.Capacity)
	case config.BackendBolt:
		lockWait := time.Duration(cfg.Window.LockWaitSec) * time.Second
		st, err := boltwindow.New(cfg.WindowFile(), lockWait)
		if err != nil {
			return nil, fmt.Errorf("rotation: failed to open window store: %v", err)
		}
		m.store = st
	default:
		return nil, fmt.Errorf("rotation: invalid window backend '%v'", backend)
	}
	m.store = &instrumentedStore{m.store}
	windowBackendInfo.With(prometheus.Labels{"backend": backend}).Set(1)
	m.log.Noticef("Anti-replay window backend: %v (scheme: %v)", backend, m.provider.Name())

	if cfg.Metrics.Address != "" {
		instrument.Init(cfg.Metrics.Address, logBackend.GetLogger("instrument"))
	}

	m.Go(m.gcWorker)
	return m, nil
}

// Apply deserializes, verifies and applies a rotation pack received from
// the authority.  The outcome is logged for audit and counted per channel
// and reason.  On acceptance the updated shaping parameters are visible
// to the very next Shaping().Snapshot() call.
func (m *Manager) Apply(raw []byte) (bool, Reason) {
	p, err := FromBytes(raw)
	if err != nil {
		m.log.Warningf("Rejected undecodable pack: %v", err)
		rejectedPacks.With(prometheus.Labels{"channel": "unknown", "reason": ReasonMalformedPayload.String()}).Inc()
		return false, ReasonMalformedPayload
	}

	accepted, reason := p.Apply(m.store, m.shapingCfg, &ApplyOpts{
		Provider:   m.provider,
		PublicKey:  m.authority,
		Now:        m.clock(),
		ClockSkew:  time.Duration(m.cfg.Rotation.ClockSkewSec) * time.Second,
		MaxPackAge: time.Duration(m.cfg.Rotation.MaxPackAgeSec) * time.Second,
	})
	if accepted {
		appliedPacks.With(prometheus.Labels{"channel": p.ChannelID}).Inc()
		m.log.Noticef("Applied pack %v on channel %v (%d parameters)", p.RotationID, p.ChannelID, len(p.Parameters))
	} else {
		rejectedPacks.With(prometheus.Labels{"channel": p.ChannelID, "reason": reason.String()}).Inc()
		m.log.Warningf("Rejected pack %v on channel %v: %v", p.RotationID, p.ChannelID, reason)
	}
	return accepted, reason
}

// Shaping returns the live shaping configuration handle consumed by the
// forwarding path.
func (m *Manager) Shaping() *shaping.Config {
	return m.shapingCfg
}

// Count returns the number of consumed rotation ids tracked for channel,
// or across all channels if channel is empty.
func (m *Manager) Count(channel string) (int, error) {
	return m.store.Count(channel)
}

// Channels returns the channels with tracked rotation ids.
func (m *Manager) Channels() ([]string, error) {
	return m.store.Channels()
}

// Shutdown halts the GC sweeper and closes the window store.
func (m *Manager) Shutdown() {
	m.Halt()
	if err := m.store.Close(); err != nil {
		m.log.Warningf("Failed to close window store: %v", err)
	}
}

func (m *Manager) gcWorker() {
	t := time.NewTicker(m.gcInterval)
	defer func() {
		m.log.Debugf("Halting GC worker.")
		t.Stop()
	}()

	for {
		select {
		case <-m.HaltCh():
			return
		case <-t.C:
		}
		m.sweep()
	}
}

func (m *Manager) sweep() {
	removed, err := m.store.GC(m.clock())
	if err != nil {
		m.log.Warningf("GC sweep failed: %v", err)
		return
	}
	if removed > 0 {
		sweptEntries.Add(float64(removed))
		m.log.Infof("GC removed %d expired rotation IDs", removed)
	}
}
