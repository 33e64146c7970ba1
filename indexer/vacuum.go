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
	"fmt"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
)

// VacuumStats summarizes one Vacuum pass.
type VacuumStats struct {
	MarkedDead int // segments newly marked Xmax this pass
	Reclaimed  int // segments whose files were physically freed
}

// Vacuum marks fully-dead segments (every document deleted) with Xmax,
// then reclaims the files of any segment no snapshot at or above
// globalXmin can still see. Reclaim frees each component through
// dir.OpenComponent, which reads the catalog location directly, so dir's
// snapshot does not need to see the reclaimed segments.
func Vacuum(cat *catalog.Catalog, dir *dirfs.Dir, xid catalog.Xid, globalXmin catalog.Xid) (VacuumStats, error) {
	var stats VacuumStats

	entries, err := cat.All()
	if err != nil {
		return stats, fmt.Errorf("indexer: vacuum listing segments: %w", err)
	}
	for _, e := range entries {
		if e.Xmax != catalog.InvalidXid {
			continue
		}
		if e.Deletes == nil || e.Deletes.GetCardinality() != uint64(e.MaxDoc) {
			continue
		}
		if err := cat.MarkDeleted(e.SegmentID, xid); err != nil {
			return stats, fmt.Errorf("indexer: vacuum marking segment %s dead: %w", e.SegmentID, err)
		}
		stats.MarkedDead++
	}

	err = cat.GC(globalXmin, func(e *catalog.SegmentMetaEntry) error {
		for _, c := range e.Components {
			sf := dir.OpenComponent(c)
			if err := sf.Delete(); err != nil {
				return fmt.Errorf("indexer: vacuum freeing component %s of segment %s: %w", c.Kind, e.SegmentID, err)
			}
		}
		stats.Reclaimed++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("indexer: vacuum reclaim: %w", err)
	}
	return stats, nil
}
