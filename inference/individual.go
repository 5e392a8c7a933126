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

package inference

import (
	"fmt"
	"math"

	"github.com/chapmanb/octopus/dist"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/likelihood"
	"github.com/chapmanb/octopus/prior"
)

// GenotypeLogLikelihood returns ln L(reads | g), summing over reads the
// log of the equally weighted mixture of the genotype's haplotype
// likelihoods.
func GenotypeLogLikelihood(g genotype.Genotype, reads *likelihood.Primed) float64 {
	ploidy := g.Ploidy()
	if ploidy == 0 {
		return 0
	}
	lnPloidy := math.Log(float64(ploidy))
	result := 0.0
	terms := make([]float64, ploidy)
	for r := 0; r < reads.NumReads(); r++ {
		row := reads.Row(r)
		for i, e := range g.Elements() {
			terms[i] = row[e]
		}
		result += dist.LogSumExp(terms) - lnPloidy
	}
	return result
}

// IndividualModel computes the exact genotype posterior of a single
// sample from likelihoods and the coalescent prior.
type IndividualModel struct {
	Pool  []*genome.Haplotype
	Prior *prior.Coalescent
}

// IndividualLatents holds the exact posterior of the individual model.
type IndividualLatents struct {
	Genotypes   []genotype.Genotype
	Posteriors  []float64
	LogEvidence float64
}

// MAP returns the index of the maximum a posteriori genotype.
func (latents *IndividualLatents) MAP() int {
	best := 0
	for i, p := range latents.Posteriors {
		if p > latents.Posteriors[best] {
			best = i
		}
	}
	return best
}

// Infer computes the posterior over the candidate genotypes given the
// primed reads of one sample.
func (m *IndividualModel) Infer(genotypes []genotype.Genotype, reads *likelihood.Primed) (*IndividualLatents, error) {
	if len(genotypes) == 0 {
		return nil, fmt.Errorf("%w: empty genotype space", ErrInvalidParameter)
	}
	joints := make([]float64, len(genotypes))
	for i, g := range genotypes {
		joints[i] = GenotypeLogLikelihood(g, reads) + m.Prior.LogProbGenotype(m.Pool, g)
	}
	logEvidence := dist.NormaliseLogs(joints)
	if math.IsInf(logEvidence, -1) {
		return nil, fmt.Errorf("%w: all genotype joint probabilities vanished", ErrNumericalUnderflow)
	}
	return &IndividualLatents{
		Genotypes:   genotypes,
		Posteriors:  joints,
		LogEvidence: logEvidence,
	}, nil
}
