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

// CNV model concentration priors. The normal sample is pinned near
// balanced copies while the remaining samples are free to drift.
const (
	cnvNormalAlpha = 10.0
	cnvOtherAlpha  = 0.75
)

// CNVModel approximates the genotype posterior of a set of samples
// whose haplotype mixture weights may deviate from balanced copies.
type CNVModel struct {
	Pool    []*genome.Haplotype
	Prior   *prior.Coalescent
	Options VariationalOptions
	// NormalSample names the sample held near balanced mixture weights.
	// Empty means no sample is pinned.
	NormalSample string
}

// CNVLatents holds the variational posterior of the CNV model.
type CNVLatents struct {
	Genotypes  []genotype.Genotype
	Posteriors []float64
	// Alphas[i][s] is the posterior Dirichlet concentration of sample s
	// under genotype i, parallel to Genotypes[i].Elements().
	Alphas [][][]float64
	// Samples orders the second index of Alphas.
	Samples []string
	// LogEvidence is the variational lower bound on the model evidence.
	LogEvidence float64
	// NotConverged counts the per-sample fits that hit the iteration
	// bound.
	NotConverged int
}

// MAP returns the index of the maximum a posteriori genotype.
func (latents *CNVLatents) MAP() int {
	best := 0
	for i, p := range latents.Posteriors {
		if p > latents.Posteriors[best] {
			best = i
		}
	}
	return best
}

func (m *CNVModel) priorAlpha(sample string, numComponents int) []float64 {
	alpha := make([]float64, numComponents)
	value := cnvOtherAlpha
	if sample == m.NormalSample {
		value = cnvNormalAlpha
	}
	for k := range alpha {
		alpha[k] = value
	}
	return alpha
}

// Infer fits a Dirichlet haplotype mixture per sample and genotype and
// combines the per-sample evidence bounds with the coalescent prior
// into an approximate genotype posterior.
func (m *CNVModel) Infer(genotypes []genotype.Genotype, cache *likelihood.Cache, samples []string, cancel *Cancel) (*CNVLatents, error) {
	if len(genotypes) == 0 {
		return nil, fmt.Errorf("%w: empty genotype space", ErrInvalidParameter)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidParameter)
	}
	latents := &CNVLatents{
		Genotypes:  genotypes,
		Posteriors: make([]float64, len(genotypes)),
		Alphas:     make([][][]float64, len(genotypes)),
		Samples:    samples,
	}
	for i, g := range genotypes {
		if cancel.Cancelled() {
			return nil, ErrCancelled
		}
		components := g.Elements()
		if len(components) == 0 {
			return nil, fmt.Errorf("%w: empty genotype in CNV model", ErrInvalidParameter)
		}
		bound := m.Prior.LogProbGenotype(m.Pool, g)
		latents.Alphas[i] = make([][]float64, len(samples))
		for s, sample := range samples {
			reads, err := cache.Prime(sample)
			if err != nil {
				return nil, err
			}
			fit, err := runMeanField(m.priorAlpha(sample, len(components)), components, reads, m.Options, cancel)
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
		return nil, fmt.Errorf("%w: all CNV genotype bounds vanished", ErrNumericalUnderflow)
	}
	latents.LogEvidence = logEvidence
	if latents.NotConverged > 0 {
		log.Warningf("CNV model: %v sample fits stopped at the iteration bound", latents.NotConverged)
	}
	return latents, nil
}
