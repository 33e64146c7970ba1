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

package indexer

import (
	"sort"

	"github.com/paradedb/paradedb-go/catalog"
)

// DefaultMinMergeSize is the default minimum segment size, in bytes,
// below which a segment is folded into the next merge rather than kept
// standalone.
const DefaultMinMergeSize = 8 * 1024 * 1024

// MergePolicy decides which existing segments a new build should fold
// in. The zero value uses DefaultMinMergeSize.
type MergePolicy struct {
	// MinMergeSize overrides DefaultMinMergeSize when positive.
	MinMergeSize int64
}

func (p MergePolicy) minMergeSize() int64 {
	if p.MinMergeSize > 0 {
		return p.MinMergeSize
	}
	return DefaultMinMergeSize
}

// Decide splits existing into segments that should be kept as-is
// (prepend) and segments small enough that they should be folded into
// the segment currently being written (merge). Both lists are ordered
// oldest-first by Xmin so a merged segment's documents keep a stable
// relative order.
func (p MergePolicy) Decide(existing []*catalog.SegmentMetaEntry) (prepend, merge []*catalog.SegmentMetaEntry) {
	threshold := p.minMergeSize()
	for _, e := range existing {
		if e.ByteSize < threshold {
			merge = append(merge, e)
		} else {
			prepend = append(prepend, e)
		}
	}
	xminSort(prepend)
	xminSort(merge)
	return prepend, merge
}

func xminSort(lst []*catalog.SegmentMetaEntry) {
	sort.Slice(lst, func(i, j int) bool {
		return lst[i].Xmin < lst[j].Xmin
	})
}
