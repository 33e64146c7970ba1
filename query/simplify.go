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

package query

import "reflect"

// simplifyRewriter applies the bottom-up rewrite rules: flatten nested
// Booleans, collapse identity Boost wrappers and merge nested Boosts.
// ConstScore wrappers are kept as they are, and double negation is not
// rewritten.
type simplifyRewriter struct{}

func (simplifyRewriter) Walk(Node) Rewriter { return simplifyRewriter{} }

func (simplifyRewriter) Rewrite(n Node) Node {
	switch n := n.(type) {
	case *Boolean:
		return flattenBoolean(n)
	case *Boost:
		if n.Factor == 1.0 {
			return n.Inner
		}
		// Boost(a, Boost(b, x)) -> Boost(a*b, x)
		if inner, ok := n.Inner.(*Boost); ok {
			return &Boost{Factor: n.Factor * inner.Factor, Inner: inner.Inner}
		}
		return n
	case *ConstScore:
		// ConstScore(s, All) is preserved verbatim: it is not an identity
		// to collapse, since it still needs to carry the constant score s
		// forward to the reader.
		return n
	default:
		return n
	}
}

// flattenBoolean inlines each nested must Boolean that has no should
// clauses; should clauses are carried over unchanged.
// It returns b unchanged (same pointer) when no rewrite applies, so that
// Simplify's fixpoint check terminates.
func flattenBoolean(b *Boolean) Node {
	changed := false
	out := &Boolean{MinimumShouldMatch: b.MinimumShouldMatch}
	for _, m := range b.Must {
		if nested, ok := m.(*Boolean); ok && len(nested.Should) == 0 && nested.MinimumShouldMatch == 0 {
			out.Must = append(out.Must, nested.Must...)
			out.MustNot = append(out.MustNot, nested.MustNot...)
			changed = true
			continue
		}
		out.Must = append(out.Must, m)
	}
	out.Should = append(out.Should, b.Should...)
	out.MustNot = append(out.MustNot, b.MustNot...)

	if len(out.Must) == 0 && len(out.Should) == 0 && len(out.MustNot) == 0 {
		return All{}
	}
	if len(out.Must) == 1 && len(out.Should) == 0 && len(out.MustNot) == 0 {
		return out.Must[0]
	}
	if !changed {
		return b
	}
	return out
}

// Simplify runs the simplification pass to a fixpoint. Query trees are
// small (a handful to a few dozen nodes), so a structural deep-equal
// convergence check is cheap relative to the rewrite itself.
func Simplify(n Node) Node {
	for {
		next := Rewrite(simplifyRewriter{}, n)
		if reflect.DeepEqual(next, n) {
			return next
		}
		n = next
	}
}
