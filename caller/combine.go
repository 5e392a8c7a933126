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
	"math"

	"github.com/chapmanb/octopus/dist"
	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/inference"
)

// cnvModelPrior is the fixed prior mass of the copy-number model in
// the cancer caller's model mixture.
const cnvModelPrior = 0.01

// combined is the model-mixture posterior of the cancer caller: the
// three model weights, the combined germline genotype posterior, and
// the marginal haplotype posterior.
type combined struct {
	germlineWeight float64
	cnvWeight      float64
	somaticWeight  float64
	// genotypePosteriors is indexed like the germline genotype list.
	genotypePosteriors []float64
	// haplotypePosteriors is indexed like the haplotype pool.
	haplotypePosteriors []float64
}

// combineModels weights the germline, CNV, and somatic model
// posteriors by their model priors and evidences. germlineIndex maps
// each cancer genotype of the tumour latents to its germline genotype.
func combineModels(
	germline *inference.IndividualLatents,
	cnv *inference.CNVLatents,
	tumour *inference.TumourLatents,
	germlineIndex []int,
	somaticMutationRate float64,
	numHaplotypes int,
) *combined {
	germlinePrior := 1 - cnvModelPrior - somaticMutationRate
	if germlinePrior < 0 {
		germlinePrior = 0
	}
	weights := []float64{
		math.Log(germlinePrior) + germline.LogEvidence,
		math.Log(cnvModelPrior) + cnv.LogEvidence,
		math.Log(somaticMutationRate) + tumour.LogEvidence,
	}
	dist.NormaliseLogs(weights)

	result := &combined{
		germlineWeight:      weights[0],
		cnvWeight:           weights[1],
		somaticWeight:       weights[2],
		genotypePosteriors:  make([]float64, len(germline.Genotypes)),
		haplotypePosteriors: make([]float64, numHaplotypes),
	}
	for i := range germline.Genotypes {
		result.genotypePosteriors[i] = result.germlineWeight*germline.Posteriors[i] +
			result.cnvWeight*cnv.Posteriors[i]
	}
	for c, g := range germlineIndex {
		result.genotypePosteriors[g] += result.somaticWeight * tumour.Posteriors[c]
	}

	germlineByHaplotype := genotype.NewInverseIndex(germline.Genotypes, numHaplotypes)
	cancerByHaplotype := genotype.NewCancerInverseIndex(tumour.Genotypes, numHaplotypes)
	for h := 0; h < numHaplotypes; h++ {
		result.haplotypePosteriors[h] = result.germlineWeight*germlineByHaplotype.MarginalSum(h, germline.Posteriors) +
			result.cnvWeight*germlineByHaplotype.MarginalSum(h, cnv.Posteriors) +
			result.somaticWeight*cancerByHaplotype.MarginalSum(h, tumour.Posteriors)
	}
	return result
}

// MAP returns the index of the combined maximum a posteriori germline
// genotype.
func (c *combined) MAP() int {
	best := 0
	for i, p := range c.genotypePosteriors {
		if p > c.genotypePosteriors[best] {
			best = i
		}
	}
	return best
}
