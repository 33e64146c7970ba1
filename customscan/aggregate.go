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

package customscan

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/paradedb/paradedb-go/catalog"
	"github.com/paradedb/paradedb-go/dirfs"
	"github.com/paradedb/paradedb-go/fastfield"
	"github.com/paradedb/paradedb-go/query"
	"github.com/paradedb/paradedb-go/searchexec"
)

// AccumKind names one of the running statistics an Accumulator maintains.
type AccumKind int

const (
	AccumCount AccumKind = iota
	AccumSum
	AccumSumOfSquares
	AccumMin
	AccumMax
	AccumAvg
)

// Accumulator holds one group's running statistic for one aggregated
// expression. The set is deliberately small: count, sum, sum-of-squares,
// min, max, avg cover every aggregate a BM25-filtered group-by needs
// without pulling in a general expression evaluator. Avg is not an
// independent running value; it derives from sum/count in Result.
type Accumulator struct {
	Kind AccumKind

	count    uint64
	sum      float64
	sumSq    float64
	min, max float64
	seen     bool
}

func NewAccumulator(kind AccumKind) *Accumulator { return &Accumulator{Kind: kind} }

// Add folds v into every running statistic; Result then reads back
// whichever one Kind names.
func (a *Accumulator) Add(v float64) {
	a.count++
	a.sum += v
	a.sumSq += v * v
	if !a.seen || v < a.min {
		a.min = v
	}
	if !a.seen || v > a.max {
		a.max = v
	}
	a.seen = true
}

// Touch increments the row count without contributing to sum/min/max, for
// COUNT(*) aggregates that have no backing column (AggSpec.Field == "").
func (a *Accumulator) Touch() { a.count++ }

func (a *Accumulator) Result() float64 {
	switch a.Kind {
	case AccumCount:
		return float64(a.count)
	case AccumSum:
		return a.sum
	case AccumSumOfSquares:
		return a.sumSq
	case AccumMin:
		return a.min
	case AccumMax:
		return a.max
	case AccumAvg:
		if a.count == 0 {
			return 0
		}
		return a.sum / float64(a.count)
	default:
		return 0
	}
}

// GroupSpec is one grouping column: Field must be a fast field of Kind.
// Scale, when non-zero, descales a stored integer by 10^Scale into a
// decimal value before the key is emitted (the host's NUMERIC(p,s)
// columns are stored as scaled integers).
type GroupSpec struct {
	Field string
	Kind  fastfield.Kind
	Scale int
}

// AggSpec is one aggregated output column. Field is empty for COUNT(*)
// (doc_count), which needs no backing column.
type AggSpec struct {
	Field string
	Kind  fastfield.Kind
	Op    AccumKind
}

// AggregatePlan describes one pushed-down group-by: a filter query plus the
// grouping and aggregate column lists, with an optional ORDER BY/LIMIT.
type AggregatePlan struct {
	Node  query.Node
	Group []GroupSpec
	Aggs  []AggSpec

	// OrderBy indexes into the concatenated (Group..., Aggs...) result
	// columns; -1 means no ORDER BY is pushed down (rows come out in
	// whatever order the grouping key naturally sorts).
	OrderBy    int
	Descending bool
	Limit      int
}

// GroupResult is one output row: the resolved grouping key tuple (with
// NULL sentinels already substituted) and one float64 per AggSpec.
type GroupResult struct {
	Key    []fastfield.TaggedValue
	Values []float64
}

// RunAggregate executes plan against every segment matching plan.Node and
// returns one GroupResult per distinct key, already sorted and
// limited. A caller running this inside the host's plan evaluation
// substitutes a Placeholder (see Placeholder, below) into the target list
// for each result, which is exactly what the host's "aggregates only in
// agg nodes" invariant needs to see.
func RunAggregate(ctx context.Context, cat *catalog.Catalog, dir *dirfs.Dir, snap catalog.Snapshot, plan AggregatePlan) ([]GroupResult, error) {
	groups, err := searchexec.MatchedDocs(ctx, cat, dir, snap, plan.Node)
	if err != nil {
		return nil, err
	}

	type groupState struct {
		key  []fastfield.TaggedValue
		accs []*Accumulator
	}
	index := make(map[string]*groupState)
	order := make([]string, 0)

	for _, dg := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		groupCols := make([]fastfield.Column, len(plan.Group))
		for i, g := range plan.Group {
			col, err := dg.Segment.Column(g.Field, g.Kind)
			if err != nil {
				return nil, fmt.Errorf("customscan: aggregate: grouping column %q: %w", g.Field, err)
			}
			groupCols[i] = col
		}
		aggCols := make([]fastfield.Column, len(plan.Aggs))
		for i, a := range plan.Aggs {
			if a.Field == "" {
				continue
			}
			col, err := dg.Segment.Column(a.Field, a.Kind)
			if err != nil {
				return nil, fmt.Errorf("customscan: aggregate: aggregated column %q: %w", a.Field, err)
			}
			aggCols[i] = col
		}

		for _, doc := range dg.Docs {
			key := make([]fastfield.TaggedValue, len(groupCols))
			for i, col := range groupCols {
				v := col.Value(doc)
				if !v.Valid {
					v = fastfield.NullSentinel(plan.Group[i].Kind)
				}
				if plan.Group[i].Scale != 0 {
					v = descale(v, plan.Group[i].Scale)
				}
				key[i] = v
			}
			k := encodeKey(key)
			gs, ok := index[k]
			if !ok {
				gs = &groupState{key: key, accs: make([]*Accumulator, len(plan.Aggs))}
				for i, a := range plan.Aggs {
					gs.accs[i] = NewAccumulator(a.Op)
				}
				index[k] = gs
				order = append(order, k)
			}
			for i, a := range plan.Aggs {
				if a.Field == "" {
					gs.accs[i].Touch()
					continue
				}
				v := aggCols[i].Value(doc)
				if !v.Valid {
					continue
				}
				gs.accs[i].Add(numericOf(v))
			}
		}
	}

	out := make([]GroupResult, 0, len(order))
	for _, k := range order {
		gs := index[k]
		vals := make([]float64, len(gs.accs))
		for i, acc := range gs.accs {
			vals[i] = acc.Result()
		}
		out = append(out, GroupResult{Key: gs.key, Values: vals})
	}

	sortGroups(out, plan)
	if plan.Limit > 0 && len(out) > plan.Limit {
		out = out[:plan.Limit]
	}
	return out, nil
}

func descale(v fastfield.TaggedValue, scale int) fastfield.TaggedValue {
	factor := math.Pow(10, float64(scale))
	switch v.Kind {
	case fastfield.KindI64:
		v.F64 = float64(v.I64) / factor
	case fastfield.KindU64, fastfield.KindDate:
		v.F64 = float64(v.U64) / factor
	default:
		return v
	}
	v.Kind = fastfield.KindF64
	return v
}

func numericOf(v fastfield.TaggedValue) float64 {
	switch v.Kind {
	case fastfield.KindI64:
		return float64(v.I64)
	case fastfield.KindU64, fastfield.KindDate:
		return float64(v.U64)
	case fastfield.KindF64:
		return v.F64
	case fastfield.KindBool:
		if v.Bool {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// encodeKey builds a map key from a grouping key tuple. It tags each value
// with its Kind so distinct kinds with colliding string forms never alias.
func encodeKey(vals []fastfield.TaggedValue) string {
	var b strings.Builder
	for _, v := range vals {
		fmt.Fprintf(&b, "%d:", v.Kind)
		if v.Kind == fastfield.KindText {
			b.WriteString(v.Text)
		} else {
			fmt.Fprintf(&b, "%d|%d|%g|%t", v.I64, v.U64, v.F64, v.Bool)
		}
		b.WriteByte(0)
	}
	return b.String()
}

func compareTaggedValue(a, b fastfield.TaggedValue) int {
	switch a.Kind {
	case fastfield.KindText:
		switch {
		case a.Text < b.Text:
			return -1
		case a.Text > b.Text:
			return 1
		default:
			return 0
		}
	case fastfield.KindBool:
		// false < true < the NULL sentinel (U64 == 2)
		rank := func(v fastfield.TaggedValue) int {
			switch {
			case v.U64 == 2:
				return 2
			case v.Bool:
				return 1
			default:
				return 0
			}
		}
		ar, br := rank(a), rank(b)
		switch {
		case ar < br:
			return -1
		case ar > br:
			return 1
		default:
			return 0
		}
	default:
		av, bv := numericOf(a), numericOf(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	}
}

func compareKeyTuples(a, b []fastfield.TaggedValue) int {
	for i := range a {
		if c := compareTaggedValue(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

// sortGroups orders groups either by the pushed-down ORDER BY column
// (plan.OrderBy) or, absent one, by the grouping key tuple itself: a
// numeric key sorts monotonically and a string key sorts by its resolved
// (dictionary-decoded) text, which is the lexicographic fallback the
// pushdown degrades to rather than carrying dictionary ordinals through
// the result.
func sortGroups(groups []GroupResult, plan AggregatePlan) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if plan.OrderBy < 0 {
			return compareKeyTuples(a.Key, b.Key) < 0
		}
		c := orderColumnCompare(a, b, plan.OrderBy)
		if plan.Descending {
			return c > 0
		}
		return c < 0
	})
}

func orderColumnCompare(a, b GroupResult, col int) int {
	if col < len(a.Key) {
		return compareTaggedValue(a.Key[col], b.Key[col])
	}
	idx := col - len(a.Key)
	switch {
	case a.Values[idx] < b.Values[idx]:
		return -1
	case a.Values[idx] > b.Values[idx]:
		return 1
	default:
		return 0
	}
}

// Placeholder stands in for an aggregate-reference node in a plan's target
// list while RunAggregate's result is threaded back through the host's
// expression machinery: GroupIndex/AggIndex name which GroupResult field
// this placeholder resolves to, letting the plan survive validation before
// any concrete result exists.
type Placeholder struct {
	// GroupIndex selects GroupResult.Key[GroupIndex] when >= 0.
	GroupIndex int
	// AggIndex selects GroupResult.Values[AggIndex] when GroupIndex < 0.
	AggIndex int
}

// Resolve reads the placeholder's value out of one GroupResult.
func (p Placeholder) Resolve(g GroupResult) fastfield.TaggedValue {
	if p.GroupIndex >= 0 {
		return g.Key[p.GroupIndex]
	}
	return fastfield.TaggedValue{Kind: fastfield.KindF64, F64: g.Values[p.AggIndex], Valid: true}
}
