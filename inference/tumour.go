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

// Tumour model concentration priors. The normal sample is pinned to
// near-zero somatic content; tumour samples expect a substantial
// somatic fraction.
const (
	tumourNormalGermlineAlpha = 10.0
	tumourNormalSomaticAlpha  = 0.01
	tumourOtherGermlineAlpha  = 1.0
	tumourOtherSomaticAlpha   = 0.8
)

// TumourModel approximates the posterior over cancer genotypes, each a
// germline genotype extended with one somatic haplotype.
type TumourModel struct {
	Pool    []*genome.Haplotype
	Prior   *prior.Somatic
	Options VariationalOptions
	// NormalSample names the sample expected to carry no somatic
	// content. Empty means no normal is available.
	NormalSample string
}

// TumourLatents holds the variational posterior of the tumour model.
type TumourLatents struct {
	Genotypes  []genotype.CancerGenotype
	Posteriors []float64
	// Alphas[i][s] is the posterior Dirichlet concentration of sample s
	// under cancer genotype i: germline components first, the somatic
	// component last.
	Alphas [][][]float64
	// Samples orders the second index of Alphas.
	Samples []string
	// LogEvidence is the variational lower bound on the model evidence.
	LogEvidence float64
	// NotConverged counts the per-sample fits that hit the iteration
	// bound.
	NotConverged int
}

// MAP returns the index of the maximum a posteriori cancer genotype.
func (latents *TumourLatents) MAP() int {
	best := 0
	for i, p := range latents.Posteriors {
		if p > latents.Posteriors[best] {
			best = i
		}
	}
	return best
}

// SomaticFraction returns the posterior mean somatic mixture weight of
// a sample under a cancer genotype.
func (latents *TumourLatents) SomaticFraction(genotype, sample int) float64 {
	alpha := latents.Alphas[genotype][sample]
	sum := 0.0
	for _, a := range alpha {
		sum += a
	}
	return alpha[len(alpha)-1] / sum
}

// SomaticAlpha returns the Beta parameters of the somatic mixture
// weight of a sample under a cancer genotype: the somatic concentration
// and the summed germline concentrations.
func (latents *TumourLatents) SomaticAlpha(genotype, sample int) (somatic, germline float64) {
	alpha := latents.Alphas[genotype][sample]
	somatic = alpha[len(alpha)-1]
	for _, a := range alpha[:len(alpha)-1] {
		germline += a
	}
	return somatic, germline
}

func (m *TumourModel) priorAlpha(sample string, numGermline int) []float64 {
	alpha := make([]float64, numGermline+1)
	germlineValue, somaticValue := tumourOtherGermlineAlpha, tumourOtherSomaticAlpha
	if sample == m.NormalSample {
		germlineValue, somaticValue = tumourNormalGermlineAlpha, tumourNormalSomaticAlpha
	}
	for k := 0; k < numGermline; k++ {
		alpha[k] = germlineValue
	}
	alpha[numGermline] = somaticValue
	return alpha
}

// Infer fits a Dirichlet mixture per sample over the germline and
// somatic haplotypes of each cancer genotype and combines the evidence
// bounds with the somatic prior into an approximate posterior.
func (m *TumourModel) Infer(genotypes []genotype.CancerGenotype, cache *likelihood.Cache, samples []string, cancel *Cancel) (*TumourLatents, error) {
	if len(genotypes) == 0 {
		return nil, fmt.Errorf("%w: empty cancer genotype space", ErrInvalidParameter)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidParameter)
	}
	latents := &TumourLatents{
		Genotypes:  genotypes,
		Posteriors: make([]float64, len(genotypes)),
		Alphas:     make([][][]float64, len(genotypes)),
		Samples:    samples,
	}
	for i, g := range genotypes {
		if cancel.Cancelled() {
			return nil, ErrCancelled
		}
		germline := g.Germline.Elements()
		components := make([]int, 0, len(germline)+1)
		components = append(components, germline...)
		components = append(components, g.Somatic)
		bound := m.Prior.LogProbCancerGenotype(m.Pool, g)
		latents.Alphas[i] = make([][]float64, len(samples))
		for s, sample := range samples {
			reads, err := cache.Prime(sample)
			if err != nil {
				return nil, err
			}
			fit, err := runMeanField(m.priorAlpha(sample, len(germline)), components, reads, m.Options, cancel)
			if err != nil {
				return nil, err
			}
			if !fit.Converged {
				latents.NotConverged++
			}
			bound += fit.Elbo
			latents.Alphas[i][s] = fit.Alpha
		}
		latents.Posteriors[i] = bound
	}
	logEvidence := dist.NormaliseLogs(latents.Posteriors)
	if math.IsInf(logEvidence, -1) {
		return nil, fmt.Errorf("%w: all cancer genotype bounds vanished", ErrNumericalUnderflow)
	}
	latents.LogEvidence = logEvidence
	if latents.NotConverged > 0 {
		log.Warningf("tumour model: %v sample fits stopped at the iteration bound", latents.NotConverged)
	}
	return latents, nil
}
