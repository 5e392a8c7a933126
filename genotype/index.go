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

package genotype

import (
	"github.com/willf/bitset"
)

// InverseIndex maps every pool haplotype to the set of genotype indices
// whose multiset contains it. It is built once per region and reused
// for all marginalisations.
type InverseIndex struct {
	containing []*bitset.BitSet
}

// NewInverseIndex builds the inverse index of a genotype list over a
// pool of the given size.
func NewInverseIndex(genotypes []Genotype, numHaplotypes int) *InverseIndex {
	containing := make([]*bitset.BitSet, numHaplotypes)
	for h := range containing {
		containing[h] = bitset.New(uint(len(genotypes)))
	}
	for i, g := range genotypes {
		for _, e := range g.UniqueRef() {
			containing[e].Set(uint(i))
		}
	}
	return &InverseIndex{containing: containing}
}

// Containing returns the genotype-index set of a pool haplotype.
func (index *InverseIndex) Containing(haplotype int) *bitset.BitSet {
	return index.containing[haplotype]
}

// MarginalSum sums the posteriors of all genotypes containing the
// haplotype.
func (index *InverseIndex) MarginalSum(haplotype int, posteriors []float64) float64 {
	sum := 0.0
	set := index.containing[haplotype]
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		sum += posteriors[i]
	}
	return sum
}

// NewCancerInverseIndex builds the inverse index of a cancer genotype
// list, counting both the germline multiset and the somatic slot as
// containment.
func NewCancerInverseIndex(genotypes []CancerGenotype, numHaplotypes int) *InverseIndex {
	containing := make([]*bitset.BitSet, numHaplotypes)
	for h := range containing {
		containing[h] = bitset.New(uint(len(genotypes)))
	}
	for i, g := range genotypes {
		for _, e := range g.Germline.UniqueRef() {
			containing[e].Set(uint(i))
		}
		containing[g.Somatic].Set(uint(i))
	}
	return &InverseIndex{containing: containing}
}
