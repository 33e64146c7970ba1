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

package config

import "testing"

func TestDefaults(t *testing.T) {
	s := New()
	if s.CustomScanEnabled() {
		t.Fatal("custom scan should default to disabled")
	}
	if s.WorkMem() != defaultWorkMem {
		t.Fatalf("unexpected default work_mem: %d", s.WorkMem())
	}
}

func TestMixedFastFieldRequiresFastFieldExec(t *testing.T) {
	s := New(WithMixedFastFieldExec(true))
	if s.MixedFastFieldExecEnabled() {
		t.Fatal("mixed fast field exec should require WithFastFieldExec")
	}
	s = New(WithFastFieldExec(true), WithMixedFastFieldExec(true))
	if !s.MixedFastFieldExecEnabled() {
		t.Fatal("mixed fast field exec should be enabled when both options are set")
	}
}
