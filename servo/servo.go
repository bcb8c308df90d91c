/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package servo implements the PTP clock servo: it turns a stream of
// (t1, t2) Sync timestamp pairs and a mean-path-delay estimate into a
// published offset/calibrated signal, deciding on each sample whether to
// step the local clock or slew it.
package servo

import "github.com/ravennakit/ravennakit/internal/ptpfilter"

// State is the servo's convergence state, published alongside the offset.
type State uint8

// All the states a servo can report.
const (
	StateInit   State = 0
	StateJump   State = 1
	StateLocked State = 2
	StateFilter State = 3
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateJump:
		return "JUMP"
	case StateLocked:
		return "LOCKED"
	case StateFilter:
		return "FILTER"
	}
	return "UNSUPPORTED"
}

// Config holds the tunables named in the core's config surface (§6).
type Config struct {
	// Gain is the proportional correction applied to the filtered offset
	// when slewing.
	Gain float64
	// StepThresholdNs is the absolute filtered offset, in nanoseconds,
	// above which the servo steps the clock instead of slewing.
	StepThresholdNs int64
	// CalibratedThresholdNs is the absolute offset, in nanoseconds, a
	// sample must stay under for LockedSamplesRequired consecutive Syncs
	// to transition to StateLocked.
	CalibratedThresholdNs int64
	// LockedSamplesRequired is the number of consecutive in-threshold
	// samples required to become calibrated.
	LockedSamplesRequired int
}

// DefaultConfig returns the config defaults named in spec §6.
func DefaultConfig() Config {
	return Config{
		Gain:                  0.1,
		StepThresholdNs:       1_000_000_000,
		CalibratedThresholdNs: 1_800_000,
		LockedSamplesRequired: 8,
	}
}

// Published is the servo's published output (§4.F, §5): single writer (the
// reactor loop), many readers (the HTTP façade, the RTP arrival-time
// conversion). ptp/port.Published guards the read with the same mutex that
// serializes the writer, so callers never see a torn snapshot.
type Published struct {
	OffsetNs          int64
	MeanPathDelayNs   int64
	LastSyncUnixNanos int64
	Calibrated        bool
}

// Servo converts raw offset samples into a filtered, stepped-or-slewed
// clock correction, publishing its result as a Published snapshot.
type Servo struct {
	cfg    Config
	filter *ptpfilter.BasicFilter

	lockedStreak int
	published    Published
}

// New constructs a Servo with the given config and a fresh BasicFilter.
func New(cfg Config) *Servo {
	return &Servo{
		cfg:    cfg,
		filter: ptpfilter.NewBasicFilter(cfg.Gain),
	}
}

// Sample feeds one Sync measurement to the servo: t1 and t2 in nanoseconds
// since an arbitrary common epoch, and the current mean-path-delay
// estimate. It returns the resulting state.
//
// raw_offset_ns = (t2 - t1) - mean_path_delay_ns, matching §4.F.
func (s *Servo) Sample(t1Ns, t2Ns, meanPathDelayNs, nowUnixNanos int64) State {
	rawOffsetNs := (t2Ns - t1Ns) - meanPathDelayNs
	// BasicFilter's confidence range is in seconds, so the offset goes in as
	// seconds. The filter already scales by gain; recover the ns-domain
	// filtered offset before applying the servo's own step/slew decision.
	filtered := s.filter.Update(float64(rawOffsetNs) / 1e9)
	filteredOffsetNs := int64(filtered / s.cfg.Gain * 1e9)

	abs := filteredOffsetNs
	if abs < 0 {
		abs = -abs
	}

	var state State
	if abs > s.cfg.StepThresholdNs {
		s.published.OffsetNs = -filteredOffsetNs
		s.filter.Reset()
		s.lockedStreak = 0
		s.published.Calibrated = false
		state = StateJump
	} else {
		correction := int64(float64(filteredOffsetNs) * s.cfg.Gain)
		s.published.OffsetNs -= correction

		if abs <= s.cfg.CalibratedThresholdNs {
			s.lockedStreak++
		} else {
			s.lockedStreak = 0
		}
		if s.lockedStreak >= s.cfg.LockedSamplesRequired {
			s.published.Calibrated = true
			state = StateLocked
		} else {
			state = StateFilter
		}
	}

	s.published.MeanPathDelayNs = meanPathDelayNs
	s.published.LastSyncUnixNanos = nowUnixNanos
	return state
}

// Published returns a snapshot of the servo's current published state.
func (s *Servo) Published() Published {
	return s.published
}

// Reset clears the servo back to its initial, uncalibrated state. Called
// when the port's best master changes or an Announce timeout occurs.
func (s *Servo) Reset() {
	s.filter.Reset()
	s.lockedStreak = 0
	s.published = Published{}
}
