// octopus: a Bayesian haplotype-based variant caller.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/chapmanb/octopus/blob/master/LICENSE.txt>.

package intervals

import (
	"math/rand"
	"testing"

	"github.com/chapmanb/octopus/genome"
)

func equalIntervals(a, b []Interval) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSortByStart(t *testing.T) {
	intervals := []Interval{{30, 40}, {0, 10}, {20, 25}, {5, 15}}
	SortByStart(intervals)
	expected := []Interval{{0, 10}, {5, 15}, {20, 25}, {30, 40}}
	if !equalIntervals(intervals, expected) {
		t.Error("interval sort failed")
	}
}

func TestExtend(t *testing.T) {
	interval := Interval{0, 10}
	if !interval.Extend(Interval{5, 8}) || interval.End != 10 {
		t.Error("extend contained failed")
	}
	if !interval.Extend(Interval{5, 15}) || interval.End != 15 {
		t.Error("extend overlapping failed")
	}
	if !interval.Extend(Interval{15, 20}) || interval.End != 20 {
		t.Error("extend adjacent failed")
	}
	if interval.Extend(Interval{25, 30}) || interval.End != 20 {
		t.Error("extend disjoint failed")
	}
}

func TestFlatten(t *testing.T) {
	intervals := []Interval{{0, 10}, {5, 15}, {20, 25}, {25, 30}, {40, 50}}
	flattened := Flatten(intervals)
	expected := []Interval{{0, 15}, {20, 30}, {40, 50}}
	if !equalIntervals(flattened, expected) {
		t.Error("flatten failed")
	}

	disjoint := []Interval{{0, 10}, {20, 30}}
	if !equalIntervals(Flatten(disjoint), disjoint) {
		t.Error("flatten disjoint failed")
	}

	if len(Flatten(nil)) != 0 {
		t.Error("flatten empty failed")
	}
}

func TestParallelFlatten(t *testing.T) {
	// every third interval bridges the gap to its successor
	var intervals []Interval
	for i := int32(0); i < 3*parallelFlattenGrainSize; i++ {
		start := 10 * i
		end := start + 5
		if i%3 == 0 {
			end = start + 12
		}
		intervals = append(intervals, Interval{start, end})
	}
	sequential := Flatten(append([]Interval(nil), intervals...))
	flattened := ParallelFlatten(append([]Interval(nil), intervals...))
	if !equalIntervals(sequential, flattened) {
		t.Error("parallel flatten failed")
	}
}

func TestParallelSortByStart(t *testing.T) {
	intervals := make([]Interval, 3*parallelFlattenGrainSize)
	r := rand.New(rand.NewSource(42))
	for i := range intervals {
		start := r.Int31n(1 << 20)
		intervals[i] = Interval{start, start + 1 + r.Int31n(100)}
	}
	ParallelSortByStart(intervals)
	for i := 1; i < len(intervals); i++ {
		if intervals[i-1].Start > intervals[i].Start {
			t.Fatal("parallel sort order failed")
		}
	}
}

func TestOverlap(t *testing.T) {
	intervals := []Interval{{0, 10}, {20, 30}, {40, 50}}
	if !Overlap(intervals, 5, 8) {
		t.Error("overlap contained failed")
	}
	if !Overlap(intervals, 8, 22) {
		t.Error("overlap spanning failed")
	}
	if Overlap(intervals, 10, 20) {
		t.Error("overlap gap failed")
	}
	if Overlap(intervals, 50, 60) {
		t.Error("overlap beyond failed")
	}
	if Overlap(nil, 0, 10) {
		t.Error("overlap empty failed")
	}
}

func TestFromRegions(t *testing.T) {
	regions := []genome.Region{
		genome.NewRegion("chr1", 0, 10),
		genome.NewRegion("chr2", 5, 15),
		genome.NewRegion("chr1", 20, 30),
	}
	intervals := FromRegions(regions)
	if len(intervals) != 2 {
		t.Fatal("from regions contig count failed")
	}
	if !equalIntervals(intervals["chr1"], []Interval{{0, 10}, {20, 30}}) {
		t.Error("from regions chr1 failed")
	}
	if !equalIntervals(intervals["chr2"], []Interval{{5, 15}}) {
		t.Error("from regions chr2 failed")
	}
}

func TestFlattenRegions(t *testing.T) {
	regions := []genome.Region{
		genome.NewRegion("chr1", 20, 30),
		genome.NewRegion("chr1", 0, 10),
		genome.NewRegion("chr2", 5, 15),
	}
	intervals, overlapping := FlattenRegions(regions)
	if overlapping {
		t.Error("flatten regions disjoint overlap failed")
	}
	if !equalIntervals(intervals["chr1"], []Interval{{0, 10}, {20, 30}}) {
		t.Error("flatten regions chr1 failed")
	}

	regions = append(regions, genome.NewRegion("chr1", 25, 40))
	intervals, overlapping = FlattenRegions(regions)
	if !overlapping {
		t.Error("flatten regions overlap flag failed")
	}
	if !equalIntervals(intervals["chr1"], []Interval{{0, 10}, {20, 40}}) {
		t.Error("flatten regions merge failed")
	}
}
