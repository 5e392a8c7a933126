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

package caller

import (
	"github.com/chapmanb/octopus/dist"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
)

// genotypeContainsAllele tells whether any haplotype of the genotype
// carries the allele.
func genotypeContainsAllele(pool []*genome.Haplotype, g genotype.Genotype, a genome.Allele) bool {
	for _, e := range g.UniqueRef() {
		if pool[e].ContainsAllele(a) {
			return true
		}
	}
	return false
}

// germlinePhred returns the Phred-scaled posterior that the alt allele
// is present in the sample: one minus the mass of genotypes that do not
// carry it.
func germlinePhred(pool []*genome.Haplotype, genotypes []genotype.Genotype, posteriors []float64, alt genome.Allele) float64 {
	notPresent := 0.0
	for i, g := range genotypes {
		if !genotypeContainsAllele(pool, g, alt) {
			notPresent += posteriors[i]
		}
	}
	return dist.PhredFromProb(1 - notPresent)
}

// genotypeCall splices a MAP genotype onto a variant site and scores
// the call by the mass of genotypes whose projection onto the site
// agrees with it.
func genotypeCall(
	pool []*genome.Haplotype,
	genotypes []genotype.Genotype,
	posteriors []float64,
	mapIndex int,
	site genome.Region,
) (genotype.AlleleGenotype, float64, error) {
	called, err := genotype.SpliceAlleles(pool, genotypes[mapIndex], site)
	if err != nil {
		return genotype.AlleleGenotype{}, 0, err
	}
	matching := 0.0
	for i, g := range genotypes {
		spliced, err := genotype.SpliceAlleles(pool, g, site)
		if err != nil {
			return genotype.AlleleGenotype{}, 0, err
		}
		if spliced.Equal(called) {
			matching += posteriors[i]
		}
	}
	return called, dist.PhredFromProb(matching), nil
}
