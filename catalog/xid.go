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

package catalog

// Xid is the host's transaction identifier. InvalidXid marks "not yet
// set" (an entry's Xmax before it has ever been deleted).
type Xid uint64

// InvalidXid is the zero value, meaning "unset."
const InvalidXid Xid = 0

// Snapshot is the visibility horizon a reader observes. A segment entry is
// visible under s iff Xmin <= s.XminHorizon and (Xmax is InvalidXid or
// Xmax > s.XminHorizon).
type Snapshot struct {
	XminHorizon Xid
}

// Visible reports whether an entry with the given xmin/xmax is visible
// under the snapshot.
func (s Snapshot) Visible(xmin, xmax Xid) bool {
	if xmin > s.XminHorizon {
		return false
	}
	if xmax != InvalidXid && xmax <= s.XminHorizon {
		return false
	}
	return true
}
