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

// Package genome provides the genomic value types shared by the
// variant-calling inference core: regions, alleles, variants, and
// haplotypes.
package genome

import (
	"fmt"
)

// Region is a half-open interval [Begin, End) on a named contig.
type Region struct {
	Contig     string
	Begin, End int32
}

// NewRegion creates a region, panicking on an inverted interval.
func NewRegion(contig string, begin, end int32) Region {
	if end < begin {
		panic(fmt.Sprintf("inverted region %s:%d-%d", contig, begin, end))
	}
	return Region{Contig: contig, Begin: begin, End: end}
}

// Size returns the number of reference positions the region spans.
func (r Region) Size() int32 {
	return r.End - r.Begin
}

// Empty tells whether the region spans no positions.
func (r Region) Empty() bool {
	return r.End == r.Begin
}

// Overlaps tells whether two regions share at least one position on the
// same contig.
func (r Region) Overlaps(other Region) bool {
	return r.Contig == other.Contig && r.Begin < other.End && other.Begin < r.End
}

// Contains tells whether other lies entirely within r.
func (r Region) Contains(other Region) bool {
	return r.Contig == other.Contig && r.Begin <= other.Begin && other.End <= r.End
}

// Compare orders regions by contig name, then begin, then end. Callers
// that need a specific contig order should map contig names to ranks
// before sorting.
func (r Region) Compare(other Region) int {
	switch {
	case r.Contig < other.Contig:
		return -1
	case r.Contig > other.Contig:
		return 1
	case r.Begin < other.Begin:
		return -1
	case r.Begin > other.Begin:
		return 1
	case r.End < other.End:
		return -1
	case r.End > other.End:
		return 1
	}
	return 0
}

func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Contig, r.Begin, r.End)
}

// Reference provides read-only access to the reference genome. The
// inference core only ever fetches the sequence of an active region;
// the surrounding driver owns the actual storage.
type Reference interface {
	// FetchSequence returns the reference bases for a region.
	FetchSequence(region Region) ([]byte, error)
	// ContigSize returns the length of a contig.
	ContigSize(name string) (int64, error)
	// Contigs returns the contig names in reference order.
	Contigs() []string
}

// SimpleReference is an in-memory Reference, used by tests and the
// scenario harness.
type SimpleReference struct {
	Order     []string
	Sequences map[string][]byte
}

// FetchSequence implements Reference.
func (ref *SimpleReference) FetchSequence(region Region) ([]byte, error) {
	seq, ok := ref.Sequences[region.Contig]
	if !ok {
		return nil, fmt.Errorf("unknown contig %v", region.Contig)
	}
	if region.Begin < 0 || int(region.End) > len(seq) {
		return nil, fmt.Errorf("region %v outside contig bounds", region)
	}
	return seq[region.Begin:region.End], nil
}

// ContigSize implements Reference.
func (ref *SimpleReference) ContigSize(name string) (int64, error) {
	seq, ok := ref.Sequences[name]
	if !ok {
		return 0, fmt.Errorf("unknown contig %v", name)
	}
	return int64(len(seq)), nil
}

// Contigs implements Reference.
func (ref *SimpleReference) Contigs() []string {
	return ref.Order
}
