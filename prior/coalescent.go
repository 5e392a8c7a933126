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

// Package prior implements the germline, somatic, and de-novo prior
// models of the inference core. All priors work in natural-log space
// and depend on haplotype content only through edit distance, so they
// are symmetric over haplotype identity.
package prior

import (
	"fmt"
	"math"

	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
)

// Coalescent is the germline haplotype prior: each haplotype pays a
// per-difference penalty relative to the reference haplotype of the
// region.
type Coalescent struct {
	reference    *genome.Haplotype
	lnRate       float64
	distanceMemo map[*genome.Haplotype]int
}

// NewCoalescent creates a coalescent prior with a per-base germline
// mutation rate, typically around 1e-3.
func NewCoalescent(reference *genome.Haplotype, mutationRate float64) (*Coalescent, error) {
	if mutationRate <= 0 || mutationRate >= 1 {
		return nil, fmt.Errorf("germline mutation rate %v outside (0, 1)", mutationRate)
	}
	return &Coalescent{
		reference:    reference,
		lnRate:       math.Log(mutationRate),
		distanceMemo: make(map[*genome.Haplotype]int),
	}, nil
}

// Reference returns the reference haplotype the prior is anchored to.
func (p *Coalescent) Reference() *genome.Haplotype {
	return p.reference
}

func (p *Coalescent) distance(h *genome.Haplotype) int {
	if d, ok := p.distanceMemo[h]; ok {
		return d
	}
	d := genome.EditDistance(h, p.reference)
	p.distanceMemo[h] = d
	return d
}

// LogProbHaplotype returns the log prior of a single haplotype.
func (p *Coalescent) LogProbHaplotype(h *genome.Haplotype) float64 {
	return float64(p.distance(h)) * p.lnRate
}

// LogProbSet returns the log prior of a haplotype set.
func (p *Coalescent) LogProbSet(haplotypes []*genome.Haplotype) float64 {
	result := 0.0
	for _, h := range haplotypes {
		result += p.LogProbHaplotype(h)
	}
	return result
}

// LogProbGenotype returns the log prior of a genotype over a haplotype
// pool. Each distinct haplotype is paid for once; multiplicity carries
// no extra cost.
func (p *Coalescent) LogProbGenotype(pool []*genome.Haplotype, g genotype.Genotype) float64 {
	result := 0.0
	for _, e := range g.UniqueRef() {
		result += p.LogProbHaplotype(pool[e])
	}
	return result
}
