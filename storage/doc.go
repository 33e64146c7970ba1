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

// Package storage implements the 8 KiB paged block layer that the rest of
// paradedb-go is built on: a buffer pool with pin/lock discipline, a
// free-space map, and a generic linked-item-list abstraction used for the
// segment catalog, tombstone sets, and other append-mostly collections.
//
// Everything above this package addresses data by block number, never by
// byte offset in a backing file; the backing file itself is reachable only
// through a Pager.
package storage
