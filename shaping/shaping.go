// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package shaping holds the live traffic shaping parameter set consumed by
// the forwarding path, and the closed registry of parameter names that a
// rotation pack may update.
package shaping

import (
	"sync"
	"sync/atomic"
)

// FTE is the format transforming encoder parameter group.
type FTE struct {
	// Format is the carrier format, "tls" or "http_post".
	Format string

	// JA3 is the mimicked client fingerprint profile.
	JA3 string

	// ALPN is the advertised protocol list.
	ALPN []string

	// CoalesceMin and CoalesceMax bound the application writes coalesced
	// into a single record.
	CoalesceMin int
	CoalesceMax int

	// MaxRecordBytes caps the carrier record size.
	MaxRecordBytes int
}

// SizeShaping is the packet size distribution parameter group.
type SizeShaping struct {
	Mode      string
	BinCount  int
	MaxBytes  int
	MeanBytes int

	IQRLow  int
	IQRHigh int

	// TailProb is the fraction of packets drawn from the upper tail.
	TailProb float64

	PadJitterMin int
	PadJitterMax int
}

// Timing is the inter-packet timing parameter group, an NHPP mixture.
type Timing struct {
	Model string

	ExpLambda float64
	ExpWeight float64

	LogNormMu     float64
	LogNormSigma  float64
	LogNormWeight float64

	BurstMin      int
	BurstMax      int
	BurstGapMinMS int
	BurstGapMaxMS int
	BurstWeight   float64

	QuantumMS             int
	DeperiodizeEnabled    bool
	DeperiodizeMaxShiftMS int
}

// CoverTraffic is the adaptive cover traffic parameter group.
type CoverTraffic struct {
	BaseRatio float64
	IdleRatio float64

	OnSendMin float64
	OnSendMax float64

	DiurnalMicroEnabled   bool
	DiurnalMicroAmplitude float64
	DiurnalPeriodMinSec   int
	DiurnalPeriodMaxSec   int
}

// Forwarder is the queueing behavior parameter group.
type Forwarder struct {
	QueueDelayMinMS int
	QueueDelayMaxMS int
	ReorderRate     float64
}

// PSD is the power spectral density sanitizer parameter group.
type PSD struct {
	SanitizerEnabled bool
	MaxShiftMS       int
}

// Params is one complete, immutable traffic shaping parameter set.  A
// *Params handed out by Config.Snapshot must never be mutated.
type Params struct {
	FTE         FTE
	SizeShaping SizeShaping
	Timing      Timing
	Cover       CoverTraffic
	Forwarder   Forwarder
	PSD         PSD
}

func (p *Params) clone() *Params {
	next := new(Params)
	*next = *p
	next.FTE.ALPN = append([]string(nil), p.FTE.ALPN...)
	return next
}

// DefaultParams returns the production default parameter set.
func DefaultParams() *Params {
	return &Params{
		FTE: FTE{
			Format:         "tls",
			JA3:            "chrome-stable-120",
			ALPN:           []string{"h2", "http/1.1"},
			CoalesceMin:    1,
			CoalesceMax:    3,
			MaxRecordBytes: 1200,
		},
		SizeShaping: SizeShaping{
			Mode:         "inv_cdf",
			BinCount:     64,
			MaxBytes:     2000,
			MeanBytes:    950,
			IQRLow:       300,
			IQRHigh:      600,
			TailProb:     0.05,
			PadJitterMin: 10,
			PadJitterMax: 60,
		},
		Timing: Timing{
			Model:                 "mixture",
			ExpLambda:             2.5,
			ExpWeight:             0.70,
			LogNormMu:             -1.2,
			LogNormSigma:          0.7,
			LogNormWeight:         0.25,
			BurstMin:              5,
			BurstMax:              9,
			BurstGapMinMS:         15,
			BurstGapMaxMS:         40,
			BurstWeight:           0.05,
			QuantumMS:             20,
			DeperiodizeEnabled:    true,
			DeperiodizeMaxShiftMS: 8,
		},
		Cover: CoverTraffic{
			BaseRatio:             0.30,
			IdleRatio:             0.50,
			OnSendMin:             0.15,
			OnSendMax:             0.25,
			DiurnalMicroEnabled:   true,
			DiurnalMicroAmplitude: 0.15,
			DiurnalPeriodMinSec:   90,
			DiurnalPeriodMaxSec:   150,
		},
		Forwarder: Forwarder{
			QueueDelayMinMS: 50,
			QueueDelayMaxMS: 150,
			ReorderRate:     0.10,
		},
		PSD: PSD{
			SanitizerEnabled: true,
			MaxShiftMS:       8,
		},
	}
}

// Config is the live shaping configuration handle shared between the
// rotation subsystem (writer) and the forwarding path (readers).  Readers
// obtain consistent snapshots without blocking writers; writers serialize
// through Stage/Commit.
type Config struct {
	writeLock sync.Mutex
	current   atomic.Pointer[Params]
}

// New constructs a Config initialized with the default parameter set.
func New() *Config {
	c := new(Config)
	c.current.Store(DefaultParams())
	return c
}

// Snapshot returns the current parameter set.  The returned value is
// immutable and remains internally consistent regardless of concurrent
// updates.
func (c *Config) Snapshot() *Params {
	return c.current.Load()
}

// Staged is a validated, not yet visible parameter update.  It holds the
// Config write lock until Commit or Discard is called.
type Staged struct {
	c    *Config
	next *Params
}

// Stage validates the delta against the recognized parameter registry and
// prepares the next parameter set.  On success the Config write lock is
// held and the caller must call exactly one of Commit or Discard.  On
// failure nothing is held and the live parameter set is untouched.
func (c *Config) Stage(delta map[string]interface{}) (*Staged, error) {
	c.writeLock.Lock()

	next := c.current.Load().clone()
	for name, value := range delta {
		if err := Set(next, name, value); err != nil {
			c.writeLock.Unlock()
			return nil, err
		}
	}
	return &Staged{c: c, next: next}, nil
}

// Commit atomically publishes the staged parameter set and releases the
// write lock.
func (s *Staged) Commit() {
	s.c.current.Store(s.next)
	s.c.writeLock.Unlock()
}

// Discard abandons the staged parameter set and releases the write lock.
func (s *Staged) Discard() {
	s.c.writeLock.Unlock()
}
