// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package heap

import (
	"math/rand"
	"slices"
	"testing"
)

func TestHeap(t *testing.T) {
	x := make([]int, 0, 1000)
	less := func(x, y int) bool {
		return x < y
	}
	for len(x) < cap(x) {
		PushSlice(&x, rand.Int(), less)
	}
	sorted := make([]int, 0, len(x))
	for len(x) > 0 {
		sorted = append(sorted, PopSlice(&x, less))
	}
	if !slices.IsSorted(sorted) {
		t.Fatal("not sorted")
	}

	for len(x) < cap(x) {
		PushSlice(&x, rand.Int(), less)
	}
	// disturb ordering, then Fix
	x[len(x)/2] = 1
	FixSlice(x, len(x)/2, less)
	sorted = sorted[:0]
	for len(x) > 0 {
		sorted = append(sorted, PopSlice(&x, less))
	}
	if !slices.IsSorted(sorted) {
		t.Fatal("not sorted after FixSlice")
	}
}

func TestBound(t *testing.T) {
	less := func(x, y int) bool { return x < y }
	var top []int
	const limit = 10
	values := make([]int, 0, 1000)
	for i := 0; i < cap(values); i++ {
		values = append(values, rand.Int())
	}
	for _, v := range values {
		Bound(&top, v, limit, less)
	}
	if len(top) != limit {
		t.Fatalf("expected %d kept, got %d", limit, len(top))
	}
	sorted := append([]int(nil), values...)
	slices.Sort(sorted)
	want := sorted[len(sorted)-limit:]
	got := append([]int(nil), top...)
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Fatalf("Bound did not retain the %d largest values: got %v want %v", limit, got, want)
	}
	var empty []int
	if Bound(&empty, 1, 0, less) {
		t.Fatal("Bound with limit 0 should keep nothing")
	}
}
