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

	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
)

// Somatic wraps the coalescent prior for cancer genotypes: the germline
// component follows the coalescent prior, and the somatic haplotype
// pays a per-base somatic mutation penalty relative to the nearest
// germline haplotype.
type Somatic struct {
	germline *Coalescent
	lnRate   float64
}

// NewSomatic creates a somatic prior with a per-base somatic mutation
// rate.
func NewSomatic(germline *Coalescent, somaticMutationRate float64) (*Somatic, error) {
	if somaticMutationRate <= 0 || somaticMutationRate >= 1 {
		return nil, fmt.Errorf("somatic mutation rate %v outside (0, 1)", somaticMutationRate)
	}
	return &Somatic{
		germline: germline,
		lnRate:   math.Log(somaticMutationRate),
	}, nil
}

// Germline returns the wrapped coalescent prior.
func (p *Somatic) Germline() *Coalescent {
	return p.germline
}

// LogProbSomatic returns the log prior of a somatic haplotype given the
// germline genotype it arose from: the distance to the nearest germline
// haplotype, scaled by the somatic mutation rate.
func (p *Somatic) LogProbSomatic(pool []*genome.Haplotype, somatic int, germline genotype.Genotype) float64 {
	minDistance := math.MaxInt32
	for _, e := range germline.UniqueRef() {
		d := genome.EditDistance(pool[somatic], pool[e])
		if d < minDistance {
			minDistance = d
		}
	}
	if minDistance == math.MaxInt32 {
		minDistance = genome.EditDistance(pool[somatic], p.germline.Reference())
	}
	return float64(minDistance) * p.lnRate
}

// LogProbCancerGenotype returns the joint log prior of a cancer
// genotype.
func (p *Somatic) LogProbCancerGenotype(pool []*genome.Haplotype, g genotype.CancerGenotype) float64 {
	return p.germline.LogProbGenotype(pool, g.Germline) + p.LogProbSomatic(pool, g.Somatic, g.Germline)
}
