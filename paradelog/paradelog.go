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

// Package paradelog wraps zap to give every package in this module a
// consistently-keyed structured logger, instead of each call site
// inventing its own field names for segment_id, xid, and friends.
package paradelog

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paradedb/paradedb-go/catalog"
)

// Logger is the module-wide structured logger. The zero value is usable
// and discards everything, so packages that are not handed a Logger in
// tests still work.
type Logger struct {
	l *zap.SugaredLogger
}

// New wraps an existing zap logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		return Logger{}
	}
	return Logger{l: l.Sugar()}
}

// Nop returns a Logger that discards everything, for tests and for
// packages constructed without an explicit logger.
func Nop() Logger { return Logger{l: zap.NewNop().Sugar()} }

func (lg Logger) sugar() *zap.SugaredLogger {
	if lg.l == nil {
		return zap.NewNop().Sugar()
	}
	return lg.l
}

// Segment returns a logger with segment_id pre-attached, for the index
// builder and catalog's per-segment operations.
func (lg Logger) Segment(id uuid.UUID) Logger {
	return Logger{l: lg.sugar().With("segment_id", id.String())}
}

// Xid returns a logger with xid pre-attached.
func (lg Logger) Xid(xid catalog.Xid) Logger {
	return Logger{l: lg.sugar().With("xid", uint64(xid))}
}

// Infow logs at info level with structured key/value pairs.
func (lg Logger) Infow(msg string, kv ...any) { lg.sugar().Infow(msg, kv...) }

// Warnw logs at warn level with structured key/value pairs.
func (lg Logger) Warnw(msg string, kv ...any) { lg.sugar().Warnw(msg, kv...) }

// Errorw logs at error level with structured key/value pairs.
func (lg Logger) Errorw(msg string, kv ...any) { lg.sugar().Errorw(msg, kv...) }

// Debugw logs at debug level with structured key/value pairs.
func (lg Logger) Debugw(msg string, kv ...any) { lg.sugar().Debugw(msg, kv...) }
