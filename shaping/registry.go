// SPDX-FileCopyrightText: © 2025 The SATL Authors
// SPDX-License-Identifier: AGPL-3.0-only

package shaping

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownParameter is returned when a parameter name is not in the
// recognized set.  Callers treat this as a malformed payload, unknown
// names are never silently ignored.
var ErrUnknownParameter = errors.New("shaping: unknown parameter")

type setter func(*Params, interface{}) error

// The closed set of parameter names an authority may rotate.  Every entry
// is a typed, range validated setter, there is no reflective assignment.
var registry = map[string]setter{
	"fte.format": func(p *Params, v interface{}) error {
		s, err := asString(v)
		if err != nil {
			return err
		}
		switch s {
		case "tls", "http_post":
		default:
			return fmt.Errorf("shaping: fte.format: invalid format '%v'", s)
		}
		p.FTE.Format = s
		return nil
	},
	"fte.ja3": func(p *Params, v interface{}) error {
		s, err := asString(v)
		if err != nil {
			return err
		}
		p.FTE.JA3 = s
		return nil
	},
	"fte.max_record_bytes": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.FTE.MaxRecordBytes = n
		return nil
	},
	"size.mean_bytes": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.SizeShaping.MeanBytes = n
		return nil
	},
	"size.max_bytes": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.SizeShaping.MaxBytes = n
		return nil
	},
	"size.tail_prob": func(p *Params, v interface{}) error {
		f, err := asRatio(v)
		if err != nil {
			return err
		}
		p.SizeShaping.TailProb = f
		return nil
	},
	"size.pad_jitter_min": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.SizeShaping.PadJitterMin = n
		return nil
	},
	"size.pad_jitter_max": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.SizeShaping.PadJitterMax = n
		return nil
	},
	"timing.exp_lambda": func(p *Params, v interface{}) error {
		f, err := asFloat(v)
		if err != nil {
			return err
		}
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("shaping: timing.exp_lambda: out of range: %v", f)
		}
		p.Timing.ExpLambda = f
		return nil
	},
	"timing.quantum_ms": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.Timing.QuantumMS = n
		return nil
	},
	"timing.deperiodize_enabled": func(p *Params, v interface{}) error {
		b, err := asBool(v)
		if err != nil {
			return err
		}
		p.Timing.DeperiodizeEnabled = b
		return nil
	},
	"timing.deperiodize_max_shift_ms": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.Timing.DeperiodizeMaxShiftMS = n
		return nil
	},
	"cover.base_ratio": func(p *Params, v interface{}) error {
		f, err := asRatio(v)
		if err != nil {
			return err
		}
		p.Cover.BaseRatio = f
		return nil
	},
	"cover.idle_ratio": func(p *Params, v interface{}) error {
		f, err := asRatio(v)
		if err != nil {
			return err
		}
		p.Cover.IdleRatio = f
		return nil
	},
	"cover.diurnal_micro_enabled": func(p *Params, v interface{}) error {
		b, err := asBool(v)
		if err != nil {
			return err
		}
		p.Cover.DiurnalMicroEnabled = b
		return nil
	},
	"cover.diurnal_micro_amplitude": func(p *Params, v interface{}) error {
		f, err := asRatio(v)
		if err != nil {
			return err
		}
		p.Cover.DiurnalMicroAmplitude = f
		return nil
	},
	"forwarder.queue_delay_min_ms": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.Forwarder.QueueDelayMinMS = n
		return nil
	},
	"forwarder.queue_delay_max_ms": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.Forwarder.QueueDelayMaxMS = n
		return nil
	},
	"forwarder.reorder_rate": func(p *Params, v interface{}) error {
		f, err := asRatio(v)
		if err != nil {
			return err
		}
		p.Forwarder.ReorderRate = f
		return nil
	},
	"psd.sanitizer_enabled": func(p *Params, v interface{}) error {
		b, err := asBool(v)
		if err != nil {
			return err
		}
		p.PSD.SanitizerEnabled = b
		return nil
	},
	"psd.max_shift_ms": func(p *Params, v interface{}) error {
		n, err := asPositiveInt(v)
		if err != nil {
			return err
		}
		p.PSD.MaxShiftMS = n
		return nil
	},
}

// IsRecognized returns true if name is in the recognized parameter set.
func IsRecognized(name string) bool {
	_, ok := registry[name]
	return ok
}

// Recognized returns the sorted list of recognized parameter names.
func Recognized() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set applies a single named parameter value to p, validating the name,
// type and range.
func Set(p *Params, name string, value interface{}) error {
	set, ok := registry[name]
	if !ok {
		return fmt.Errorf("%w: '%v'", ErrUnknownParameter, name)
	}
	return set(p, value)
}

// Decoded parameter values arrive from CBOR (or flag parsing) as a small
// set of concrete types, the helpers below coerce between the numeric
// representations without ever widening across kinds.

func asString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("shaping: expected string value, got %T", v)
	}
	return s, nil
}

func asBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("shaping: expected bool value, got %T", v)
	}
	return b, nil
}

func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("shaping: expected numeric value, got %T", v)
	}
}

func asPositiveInt(v interface{}) (int, error) {
	var n int64
	switch i := v.(type) {
	case int64:
		n = i
	case uint64:
		if i > math.MaxInt64 {
			return 0, fmt.Errorf("shaping: integer value overflows: %v", i)
		}
		n = int64(i)
	case int:
		n = int64(i)
	default:
		return 0, fmt.Errorf("shaping: expected integer value, got %T", v)
	}
	if n <= 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("shaping: integer value out of range: %v", n)
	}
	return int(n), nil
}

func asRatio(v interface{}) (float64, error) {
	f, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 || math.IsNaN(f) {
		return 0, fmt.Errorf("shaping: ratio out of [0,1]: %v", f)
	}
	return f, nil
}
