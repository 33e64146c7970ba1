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

	"github.com/paradedb/paradedb-go/customscan"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/store"
)

func parseAccumOp(s string) (customscan.AccumKind, error) {
	switch s {
	case "count":
		return customscan.AccumCount, nil
	case "sum":
		return customscan.AccumSum, nil
	case "sumsq":
		return customscan.AccumSumOfSquares, nil
	case "min":
		return customscan.AccumMin, nil
	case "max":
		return customscan.AccumMax, nil
	case "avg":
		return customscan.AccumAvg, nil
	default:
		return 0, fmt.Errorf("pdb: unknown aggregate op %q (want count, sum, sumsq, avg, min, or max)", s)
	}
}

// aggregate groups every live document matching the index's full domain
// (query.All{}) by groupField and folds aggField with op, pushed down
// through customscan.RunAggregate exactly as a planner bridge would for a
// GROUP BY query.
func aggregate(indexFile, groupField, aggField, op string) {
	schema, err := loadSchemaSidecar(indexFile)
	if err != nil {
		exitf("aggregate: %s", err)
	}
	groupInfo, err := schema.Lookup(groupField)
	if err != nil {
		exitf("aggregate: %s", err)
	}
	aggInfo, err := schema.Lookup(aggField)
	if err != nil {
		exitf("aggregate: %s", err)
	}
	accOp, err := parseAccumOp(op)
	if err != nil {
		exitf("aggregate: %s", err)
	}

	st, err := store.Open(indexFile)
	if err != nil {
		exitf("aggregate: opening %s: %s", indexFile, err)
	}
	defer st.Close()

	snap := st.Snapshot()
	dir := st.Dir(snap)

	plan := customscan.AggregatePlan{
		Node:  query.All{},
		Group: []customscan.GroupSpec{{Field: groupField, Kind: groupInfo.Type}},
		Aggs: []customscan.AggSpec{
			{Field: "", Kind: 0, Op: customscan.AccumCount},
			{Field: aggField, Kind: aggInfo.Type, Op: accOp},
		},
		OrderBy:    -1,
		Descending: false,
		Limit:      0,
	}

	groups, err := customscan.RunAggregate(context.Background(), st.Cat, dir, snap, plan)
	if err != nil {
		exitf("aggregate: %s", err)
	}

	for _, g := range groups {
		fmt.Printf("%s=%v doc_count=%.0f %s(%s)=%.4f\n",
			groupField, taggedToAny(g.Key[0]), g.Values[0], op, aggField, g.Values[1])
	}
}
