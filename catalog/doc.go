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

// Package catalog implements the per-index segment catalog:
// a storage.LinkedList of SegmentMetaEntry records, each naming the
// component files that make up one immutable segment of the inverted
// index, together with the xmin/xmax visibility bounds that let concurrent
// readers and writers agree on which segments exist under a given
// snapshot.
package catalog
