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

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/paradedb/paradedb-go/ion"
	"github.com/paradedb/paradedb-go/storage"
)

// Catalog is the per-index segment catalog: a
// storage.LinkedList of SegmentMetaEntry rows. It never stores derived
// state that could disagree with the segmented files it names; every
// method either reads the linked list directly or mutates it atomically.
type Catalog struct {
	list *storage.LinkedList

	// symtab is shared across Encode/Decode calls for this catalog; it is
	// append-only for the lifetime of the index, matching ion's usual
	// symbol-table lifecycle.
	mu     sync.Mutex
	symtab *ion.Symtab
}

// New attaches a Catalog backed by list.
func New(list *storage.LinkedList) *Catalog {
	return &Catalog{list: list, symtab: &ion.Symtab{}}
}

// Insert atomically inserts entries into the catalog within the writing
// transaction: all new segment entries are inserted into the catalog in
// one atomic list mutation.
func (c *Catalog) Insert(entries []*SegmentMetaEntry) error {
	g, err := c.list.Atomically()
	if err != nil {
		return err
	}
	items := g.Items()
	c.mu.Lock()
	for _, e := range entries {
		var buf ion.Buffer
		e.Encode(&buf, c.symtab)
		items = append(items, append([]byte(nil), buf.Bytes()...))
	}
	c.mu.Unlock()
	g.Replace(items)
	return g.Commit()
}

// MarkDeleted sets Xmax on the named segment, monotonically: once set to
// a non-zero value it is never cleared. A later
// un-delete must create a new segment via Insert instead.
func (c *Catalog) MarkDeleted(segmentID uuid.UUID, xid Xid) error {
	g, err := c.list.Atomically()
	if err != nil {
		return err
	}
	items := g.Items()
	found := false
	c.mu.Lock()
	for i, raw := range items {
		e, err := DecodeEntry(c.symtab, raw)
		if err != nil {
			c.mu.Unlock()
			g.Discard()
			return err
		}
		if e.SegmentID != segmentID {
			continue
		}
		if e.Xmax != InvalidXid {
			// monotone: already deleted, nothing to do
			c.mu.Unlock()
			g.Discard()
			return nil
		}
		e.Xmax = xid
		var buf ion.Buffer
		e.Encode(&buf, c.symtab)
		items[i] = append([]byte(nil), buf.Bytes()...)
		found = true
		break
	}
	c.mu.Unlock()
	if !found {
		g.Discard()
		return fmt.Errorf("catalog: segment %s not found", segmentID)
	}
	g.Replace(items)
	return g.Commit()
}

// GC retains only entries whose Xmax is unset or greater than
// globalXmin, reclaiming the segmented files of the rest via reclaim.
func (c *Catalog) GC(globalXmin Xid, reclaim func(*SegmentMetaEntry) error) error {
	var dead []*SegmentMetaEntry
	err := c.list.Retain(func(body []byte) bool {
		e, err := DecodeEntry(c.symtab, body)
		if err != nil {
			// corrupt entries are dropped by GC rather than wedging it
			return false
		}
		if e.Xmax != InvalidXid && e.Xmax <= globalXmin {
			dead = append(dead, e)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	// Every dead segment gets a reclaim attempt regardless of whether an
	// earlier one failed, so one stuck segment's files don't block every
	// other segment's space from being freed; all failures are reported
	// together.
	var errs error
	for _, e := range dead {
		if err := reclaim(e); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("catalog: gc reclaim of segment %s: %w", e.SegmentID, err))
		}
	}
	return errs
}

// Visible iterates every catalog entry visible under snap, in catalog
// order, stopping early if fn returns false.
func (c *Catalog) Visible(snap Snapshot, fn func(*SegmentMetaEntry) bool) error {
	var outerErr error
	err := c.list.Visit(func(body []byte) bool {
		e, err := DecodeEntry(c.symtab, body)
		if err != nil {
			outerErr = err
			return false
		}
		if !e.Visible(snap) {
			return true
		}
		return fn(e)
	})
	if outerErr != nil {
		return outerErr
	}
	return err
}

// All returns every entry in the catalog regardless of visibility, used
// by vacuum and by diagnostics.
func (c *Catalog) All() ([]*SegmentMetaEntry, error) {
	var out []*SegmentMetaEntry
	err := c.list.Visit(func(body []byte) bool {
		e, err := DecodeEntry(c.symtab, body)
		if err != nil {
			return false
		}
		out = append(out, e)
		return true
	})
	return out, err
}
