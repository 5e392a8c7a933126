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

package prior

import (
	"fmt"
	"math"

	"github.com/chapmanb/octopus/dist"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
)

// Denovo is the prior of a child genotype given the parents: every
// child haplotype is a copy of some parental haplotype, with per-base
// de-novo mutations at the given rate. The prior is symmetric in the
// parents.
type Denovo struct {
	lnRate float64
}

// NewDenovo creates a de-novo prior with a per-base de-novo mutation
// rate, typically around 1e-8.
func NewDenovo(denovoRate float64) (*Denovo, error) {
	if denovoRate <= 0 || denovoRate >= 1 {
		return nil, fmt.Errorf("de-novo mutation rate %v outside (0, 1)", denovoRate)
	}
	return &Denovo{lnRate: math.Log(denovoRate)}, nil
}

// LogProb returns ln P(child | mother, father). Each child haplotype is
// modelled as drawn uniformly from the combined parental haplotypes and
// mutated; the de-novo penalty is the edit distance to the chosen
// parental haplotype scaled by the de-novo rate.
func (p *Denovo) LogProb(pool []*genome.Haplotype, child, mother, father genotype.Genotype) float64 {
	parental := make([]int, 0, mother.Ploidy()+father.Ploidy())
	parental = append(parental, mother.Elements()...)
	parental = append(parental, father.Elements()...)
	if len(parental) == 0 {
		return 0
	}
	lnUniform := -math.Log(float64(len(parental)))
	result := 0.0
	terms := make([]float64, len(parental))
	for _, c := range child.Elements() {
		for i, e := range parental {
			terms[i] = float64(genome.EditDistance(pool[c], pool[e]))*p.lnRate + lnUniform
		}
		result += dist.LogSumExp(terms)
	}
	return result
}
