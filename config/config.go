// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config holds the GUC-style settings that gate which custom scan
// exec methods the planner bridge is allowed to choose, mirroring the
// boolean/enum settings a host database exposes as session variables.
package config

// Settings holds one session's worth of knobs. The zero value is the
// conservative default: custom scan participation is off until a host
// explicitly opts in.
type Settings struct {
	enableCustomScan          bool
	enableFastFieldExec       bool
	enableMixedFastFieldExec  bool
	explainRecursiveEstimates bool
	workMem                   int64
}

// Option configures a Settings value passed to New.
type Option func(s *Settings)

// New builds a Settings from the given options.
func New(opts ...Option) Settings {
	s := Settings{workMem: defaultWorkMem}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

const defaultWorkMem = 64 << 20 // 64 MiB, matching a conservative Postgres work_mem

// WithCustomScan enables or disables the custom scan path entirely; when
// false, the planner bridge always returns ErrPlanReject.
func WithCustomScan(enabled bool) Option {
	return func(s *Settings) { s.enableCustomScan = enabled }
}

// WithFastFieldExec enables the NumericFastField/StringFastField exec
// methods for single-column projections.
func WithFastFieldExec(enabled bool) Option {
	return func(s *Settings) { s.enableFastFieldExec = enabled }
}

// WithMixedFastFieldExec sets the MixedFastField flag that
// MixedFastFieldExecEnabled reports; it reports true only when
// WithFastFieldExec is also enabled. No other package reads the flag:
// customscan.ChooseFastFieldMethod picks MixedFastField regardless of it.
func WithMixedFastFieldExec(enabled bool) Option {
	return func(s *Settings) { s.enableMixedFastFieldExec = enabled }
}

// WithExplainRecursiveEstimates sets the flag that
// ExplainRecursiveEstimates reports. No other package reads it; the
// EXPLAIN output of customscan does not change with it.
func WithExplainRecursiveEstimates(enabled bool) Option {
	return func(s *Settings) { s.explainRecursiveEstimates = enabled }
}

// WithWorkMem sets the byte budget that WorkMem reports. No other package
// reads it; no sort, merge or vacuum step is bounded by it.
func WithWorkMem(bytes int64) Option {
	return func(s *Settings) { s.workMem = bytes }
}

func (s Settings) CustomScanEnabled() bool          { return s.enableCustomScan }
func (s Settings) FastFieldExecEnabled() bool       { return s.enableFastFieldExec }
func (s Settings) MixedFastFieldExecEnabled() bool  { return s.enableFastFieldExec && s.enableMixedFastFieldExec }
func (s Settings) ExplainRecursiveEstimates() bool  { return s.explainRecursiveEstimates }
func (s Settings) WorkMem() int64                   { return s.workMem }
