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

// Package paradeerr holds the sentinel errors shared across this module's
// packages, so callers can test for a condition with errors.Is instead of
// string-matching an error message.
package paradeerr

import "errors"

var (
	// ErrPlanReject marks a predicate that cannot be pushed down to a
	// custom scan, so the host must fall back to its own plan. cmd/pdb's
	// search wraps it when the custom scan is disabled.
	ErrPlanReject = errors.New("paradedb: plan rejected for custom scan")

	// ErrInvalidQuery names a predicate tree that fails type checking or
	// binding against the schema. query.Bridge.Bind does not wrap it; its
	// errors are the schema lookup's own.
	ErrInvalidQuery = errors.New("paradedb: invalid query")

	// ErrKeyViolation is returned by the index builder and incremental
	// writer when a row's key_field is NULL. The whole insert/build
	// transaction aborts; pre-existing index contents are unchanged.
	ErrKeyViolation = errors.New("paradedb: key violation")

	// ErrCorruption names on-disk state that fails a structural check (a
	// page checksum, a catalog entry that does not decode, a segment whose
	// component files are missing). No package in this module returns it;
	// those failures surface as each package's own errors.
	ErrCorruption = errors.New("paradedb: corrupted index state")

	// ErrResourceExhausted names an operation aborted because it would
	// exceed a configured budget. No package in this module returns it.
	ErrResourceExhausted = errors.New("paradedb: resource exhausted")

	// ErrCancelled names an operation whose caller's context was done
	// before it completed. No package in this module returns it; a done
	// context surfaces as the context's own error.
	ErrCancelled = errors.New("paradedb: operation cancelled")
)

// Wrap annotates err with msg while preserving errors.Is/As matching
// against the sentinel errors above.
func Wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{msg: msg, err: err}
}

type wrapped struct {
	msg string
	err error
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
