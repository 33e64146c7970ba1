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

package main

import (
	"context"
	"fmt"

	"github.com/paradedb/paradedb-go/config"
	"github.com/paradedb/paradedb-go/customscan"
	"github.com/paradedb/paradedb-go/paradeerr"
	"github.com/paradedb/paradedb-go/paradelog"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/searchexec"
	"github.com/paradedb/paradedb-go/store"
)

// search runs a Match query against field and prints every scored hit,
// driving the result through customscan.Scan's base exec state machine
// (the same path a pushed-down custom scan node would use) rather than
// printing searchexec.Search's hits directly. cfg gates the same knobs a
// host planner bridge would consult before ever building the scan.
func search(cfg config.Settings, indexFile, field, text string) {
	if !cfg.CustomScanEnabled() {
		exitf("search: %s", paradeerr.Wrap("custom scan disabled by -no-custom-scan", paradeerr.ErrPlanReject))
	}
	schema, err := loadSchemaSidecar(indexFile)
	if err != nil {
		exitf("search: %s", err)
	}
	st, err := store.Open(indexFile)
	if err != nil {
		exitf("search: opening %s: %s", indexFile, err)
	}
	defer st.Close()

	snap := st.Snapshot()
	dir := st.Dir(snap)
	resolver, err := newRowResolver(st.Cat, dir, snap, schema)
	if err != nil {
		exitf("search: %s", err)
	}

	node := &query.Match{Field: field, Text: text}
	method := customscan.ChooseMethod(schema, []string{field})
	if !cfg.FastFieldExecEnabled() && method != customscan.ExecMethodNormal {
		// mirrors a host whose GUCs disable fast-field exec methods: fall
		// back to the row-at-a-time heap fetch path unconditionally.
		method = customscan.ExecMethodNormal
	}

	s, err := customscan.Open(context.Background(), paradelog.Nop(), st.Cat, dir, snap, node, method, resolver, resolver, searchexec.Params{})
	if err != nil {
		exitf("search: %s", err)
	}

	n := 0
	for {
		t, ok, err := s.Next()
		if err != nil {
			exitf("search: %s", err)
		}
		if !ok {
			break
		}
		fmt.Printf("ctid=%d score=%.4f row=%v\n", t.Ctid, t.Score, t.Row)
		n++
	}
	explain := s.Explain(indexFile)
	fmt.Printf("%d hits (exec method %s, heap fetches %d, virtual tuples %d, invisible tuples %d)\n",
		n, explain["Exec Method"], explain["Heap Fetches"], explain["Virtual Tuples"], explain["Invisible Tuples"])
}
