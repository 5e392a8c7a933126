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
	"fmt"
	"sort"

	"github.com/chapmanb/octopus/dist"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/inference"
	"github.com/chapmanb/octopus/prior"
)

// Posterior mass below which a germline genotype cannot anchor any
// retained cancer genotype, and below which a cancer genotype is
// ignored during somatic mass summation.
const (
	minGermlineAnchorPosterior = 1e-30
	minCancerGenotypePosterior = 1e-4
)

// CancerParameters configure the tumour/normal caller.
type CancerParameters struct {
	Samples []string
	// NormalSample names the matched normal. Empty means no normal is
	// available and the pooled reads anchor genotype filtering instead.
	NormalSample         string
	Ploidy               int
	MaxGenotypes         int
	GermlineMutationRate float64
	SomaticMutationRate  float64
	// MinVariantPosterior is the Phred threshold for germline calls.
	MinVariantPosterior float64
	// MinSomaticPosterior is the probability threshold the somatic
	// model mass must reach before a somatic call is considered.
	MinSomaticPosterior float64
	// MinSomaticFrequency is the smallest credible somatic fraction a
	// sample must carry for a somatic call.
	MinSomaticFrequency float64
	// CredibleMass is the probability mass of reported credible
	// intervals.
	CredibleMass float64
	Variational  inference.VariationalOptions
}

// CancerCaller calls germline and somatic variants of a tumour sample
// set using the germline, CNV, and tumour models combined.
type CancerCaller struct {
	params CancerParameters
}

// NewCancerCaller validates the parameters and creates the caller.
func NewCancerCaller(params CancerParameters) (*CancerCaller, error) {
	if len(params.Samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", inference.ErrInvalidParameter)
	}
	if params.Ploidy < 1 {
		return nil, fmt.Errorf("%w: ploidy %v", inference.ErrInvalidParameter, params.Ploidy)
	}
	if params.MaxGenotypes < 1 {
		return nil, fmt.Errorf("%w: max genotypes %v", inference.ErrInvalidParameter, params.MaxGenotypes)
	}
	if params.NormalSample != "" {
		found := false
		for _, sample := range params.Samples {
			if sample == params.NormalSample {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: normal sample %v not in sample set",
				inference.ErrInvalidParameter, params.NormalSample)
		}
	}
	if params.GermlineMutationRate <= 0 || params.GermlineMutationRate >= 1 {
		return nil, fmt.Errorf("%w: germline mutation rate %v outside (0, 1)",
			inference.ErrInvalidParameter, params.GermlineMutationRate)
	}
	if params.SomaticMutationRate <= 0 || params.SomaticMutationRate >= 1 {
		return nil, fmt.Errorf("%w: somatic mutation rate %v outside (0, 1)",
			inference.ErrInvalidParameter, params.SomaticMutationRate)
	}
	if params.MinSomaticFrequency <= 0 || params.MinSomaticFrequency >= 1 {
		return nil, fmt.Errorf("%w: min somatic frequency %v outside (0, 1)",
			inference.ErrInvalidParameter, params.MinSomaticFrequency)
	}
	if params.CredibleMass <= 0 || params.CredibleMass >= 1 {
		return nil, fmt.Errorf("%w: credible mass %v outside (0, 1)",
			inference.ErrInvalidParameter, params.CredibleMass)
	}
	return &CancerCaller{params: params}, nil
}

// Samples returns the sample set of the caller.
func (c *CancerCaller) Samples() []string {
	return c.params.Samples
}

// anchorPosteriors computes the germline genotype posteriors used to
// filter the cancer genotype space: the normal sample's exact
// posteriors when a normal is configured, the pooled-read posteriors
// otherwise.
func (c *CancerCaller) anchorPosteriors(
	in *Input,
	germlinePrior *prior.Coalescent,
	genotypes []genotype.Genotype,
	pooled *inference.IndividualLatents,
) ([]float64, error) {
	if c.params.NormalSample == "" {
		return pooled.Posteriors, nil
	}
	normal, err := in.Likelihoods.Prime(c.params.NormalSample)
	if err != nil {
		return nil, err
	}
	model := &inference.IndividualModel{Pool: in.Pool, Prior: germlinePrior}
	latents, err := model.Infer(genotypes, normal)
	if err != nil {
		return nil, err
	}
	return latents.Posteriors, nil
}

// filterCancerGenotypes drops cancer genotypes whose germline
// component has vanishing anchor posterior, then caps the space at
// MaxGenotypes keeping the best-anchored ones. The returned index maps
// each retained cancer genotype to its germline genotype.
func (c *CancerCaller) filterCancerGenotypes(
	cancer []genotype.CancerGenotype,
	anchor []float64,
	numHaplotypes int,
) ([]genotype.CancerGenotype, []int) {
	germlineOf := func(i int) int { return i / numHaplotypes }
	if len(cancer) <= c.params.MaxGenotypes {
		index := make([]int, len(cancer))
		for i := range cancer {
			index[i] = germlineOf(i)
		}
		return cancer, index
	}
	var kept []int
	for i := range cancer {
		if anchor[germlineOf(i)] >= minGermlineAnchorPosterior {
			kept = append(kept, i)
		}
	}
	if len(kept) > c.params.MaxGenotypes {
		sort.SliceStable(kept, func(a, b int) bool {
			return anchor[germlineOf(kept[a])] > anchor[germlineOf(kept[b])]
		})
		kept = kept[:c.params.MaxGenotypes]
		sort.Ints(kept)
	}
	filtered := make([]genotype.CancerGenotype, len(kept))
	index := make([]int, len(kept))
	for j, i := range kept {
		filtered[j] = cancer[i]
		index[j] = germlineOf(i)
	}
	return filtered, index
}

func (c *CancerCaller) callRegion(in *Input, r *run) RegionResult {
	r.enter(stageEnumerating)
	cancerGenotypes, germlineGenotypes := genotype.AllCancerGenotypes(len(in.Pool), c.params.Ploidy)
	if len(germlineGenotypes) == 0 {
		return r.done(nil, 0)
	}

	r.enter(stageInferring)
	germlinePrior, err := prior.NewCoalescent(in.Reference, c.params.GermlineMutationRate)
	if err != nil {
		return r.fail(err)
	}
	somaticPrior, err := prior.NewSomatic(germlinePrior, c.params.SomaticMutationRate)
	if err != nil {
		return r.fail(err)
	}

	pooled, err := c.pooledGermlineLatents(in, germlinePrior, germlineGenotypes)
	if err != nil {
		return r.fail(err)
	}
	if in.Cancel.Cancelled() {
		return r.fail(inference.ErrCancelled)
	}

	anchor, err := c.anchorPosteriors(in, germlinePrior, germlineGenotypes, pooled)
	if err != nil {
		return r.fail(err)
	}
	cancerGenotypes, germlineIndex := c.filterCancerGenotypes(cancerGenotypes, anchor, len(in.Pool))
	if len(cancerGenotypes) == 0 {
		return r.fail(fmt.Errorf("%w: no cancer genotypes survive filtering", inference.ErrNumericalUnderflow))
	}

	cnvModel := &inference.CNVModel{
		Pool:         in.Pool,
		Prior:        germlinePrior,
		Options:      c.params.Variational,
		NormalSample: c.params.NormalSample,
	}
	cnvLatents, err := cnvModel.Infer(germlineGenotypes, in.Likelihoods, c.params.Samples, in.Cancel)
	if err != nil {
		return r.fail(err)
	}
	tumourModel := &inference.TumourModel{
		Pool:         in.Pool,
		Prior:        somaticPrior,
		Options:      c.params.Variational,
		NormalSample: c.params.NormalSample,
	}
	tumourLatents, err := tumourModel.Infer(cancerGenotypes, in.Likelihoods, c.params.Samples, in.Cancel)
	if err != nil {
		return r.fail(err)
	}

	r.enter(stageCombining)
	combinedPosterior := combineModels(pooled, cnvLatents, tumourLatents, germlineIndex,
		c.params.SomaticMutationRate, len(in.Pool))

	r.enter(stageExtracting)
	calls, err := c.extract(in, germlineGenotypes, combinedPosterior, tumourLatents, germlineIndex)
	if err != nil {
		return r.fail(err)
	}
	return r.done(calls, pooled.LogEvidence)
}

// pooledGermlineLatents runs the exact individual model over the
// concatenated reads of all samples.
func (c *CancerCaller) pooledGermlineLatents(
	in *Input,
	germlinePrior *prior.Coalescent,
	genotypes []genotype.Genotype,
) (*inference.IndividualLatents, error) {
	merged, err := in.Likelihoods.MergedOver(c.params.Samples)
	if err != nil {
		return nil, err
	}
	reads, err := merged.Prime(merged.Samples()[0])
	if err != nil {
		return nil, err
	}
	model := &inference.IndividualModel{Pool: in.Pool, Prior: germlinePrior}
	return model.Infer(genotypes, reads)
}

// notSomaticProbs returns, per sample, the probability that the
// sample's somatic fraction lies below the calling threshold under the
// MAP cancer genotype.
func (c *CancerCaller) notSomaticProbs(tumour *inference.TumourLatents, mapCancer int) []float64 {
	probs := make([]float64, len(c.params.Samples))
	for s := range c.params.Samples {
		somaticAlpha, germlineAlpha := tumour.SomaticAlpha(mapCancer, s)
		probs[s] = dist.CDFBeta(c.params.MinSomaticFrequency, somaticAlpha, germlineAlpha)
	}
	return probs
}

// somaticCredible returns the somatic-fraction credible intervals of
// all samples under the MAP cancer genotype, and the samples whose
// lower bound clears the calling threshold.
func (c *CancerCaller) somaticCredible(tumour *inference.TumourLatents, mapCancer int) ([]CredibleInterval, []string) {
	intervals := make([]CredibleInterval, len(c.params.Samples))
	var credible []string
	for s, sample := range c.params.Samples {
		somaticAlpha, germlineAlpha := tumour.SomaticAlpha(mapCancer, s)
		lo, hi := dist.BetaHDI(somaticAlpha, germlineAlpha, c.params.CredibleMass)
		intervals[s] = CredibleInterval{Lo: lo, Hi: hi}
		if lo > c.params.MinSomaticFrequency {
			credible = append(credible, sample)
		}
	}
	return intervals, credible
}

// germlineCredible returns the per-slot germline mixture credible
// intervals of one sample under the MAP cancer genotype.
func (c *CancerCaller) germlineCredible(tumour *inference.TumourLatents, mapCancer, sample int) []CredibleInterval {
	alpha := tumour.Alphas[mapCancer][sample]
	sum := 0.0
	for _, a := range alpha {
		sum += a
	}
	intervals := make([]CredibleInterval, len(alpha)-1)
	for k := range intervals {
		lo, hi := dist.BetaHDI(alpha[k], sum-alpha[k], c.params.CredibleMass)
		intervals[k] = CredibleInterval{Lo: lo, Hi: hi}
	}
	return intervals
}

func (c *CancerCaller) extract(
	in *Input,
	germlineGenotypes []genotype.Genotype,
	combinedPosterior *combined,
	tumour *inference.TumourLatents,
	germlineIndex []int,
) ([]VariantCall, error) {
	mapGermline := combinedPosterior.MAP()
	mapCancer := tumour.MAP()

	notSomatic := c.notSomaticProbs(tumour, mapCancer)
	somaticEvidence := 1.0
	for _, p := range notSomatic {
		somaticEvidence *= p
	}
	somaticProb := combinedPosterior.somaticWeight * (1 - somaticEvidence)

	var calls []VariantCall
	for _, candidate := range in.Candidates {
		phred := germlinePhred(in.Pool, germlineGenotypes, combinedPosterior.genotypePosteriors, candidate.Alt)
		mapHasAlt := genotypeContainsAllele(in.Pool, germlineGenotypes[mapGermline], candidate.Alt)

		if phred >= c.params.MinVariantPosterior && mapHasAlt {
			call, err := c.germlineCall(in, germlineGenotypes, combinedPosterior, mapGermline, candidate, phred)
			if err != nil {
				return nil, err
			}
			calls = append(calls, call)
			continue
		}

		// Uncalled germline candidates may still be somatic.
		if somaticProb < c.params.MinSomaticPosterior {
			continue
		}
		somaticMass := 0.0
		for ci, cg := range tumour.Genotypes {
			if tumour.Posteriors[ci] <= minCancerGenotypePosterior {
				continue
			}
			if in.Pool[cg.Somatic].ContainsAllele(candidate.Alt) &&
				!genotypeContainsAllele(in.Pool, cg.Germline, candidate.Alt) {
				somaticMass += tumour.Posteriors[ci]
			}
		}
		if somaticMass == 0 {
			continue
		}
		somaticPhred := dist.PhredFromProb(somaticProb * somaticMass)
		intervals, somaticSamples := c.somaticCredible(tumour, mapCancer)
		if len(somaticSamples) == 0 {
			continue
		}
		call, err := c.germlineCall(in, germlineGenotypes, combinedPosterior, mapGermline, candidate, somaticPhred)
		if err != nil {
			return nil, err
		}
		call.Somatic = true
		call.SomaticSamples = somaticSamples
		for s := range call.Samples {
			call.Samples[s].GermlineCredible = c.germlineCredible(tumour, mapCancer, s)
			interval := intervals[s]
			call.Samples[s].SomaticCredible = &interval
		}
		calls = append(calls, call)
	}
	return calls, nil
}

// germlineCall assembles a call record with the combined MAP germline
// genotype spliced onto the candidate site for every sample.
func (c *CancerCaller) germlineCall(
	in *Input,
	germlineGenotypes []genotype.Genotype,
	combinedPosterior *combined,
	mapGermline int,
	candidate genome.Variant,
	phred float64,
) (VariantCall, error) {
	called, samplePhred, err := genotypeCall(in.Pool, germlineGenotypes,
		combinedPosterior.genotypePosteriors, mapGermline, candidate.Region())
	if err != nil {
		return VariantCall{}, err
	}
	samples := make([]SampleCall, len(c.params.Samples))
	for s, sample := range c.params.Samples {
		samples[s] = SampleCall{
			Sample:   sample,
			Genotype: called,
			Phred:    samplePhred,
		}
	}
	return VariantCall{
		Variant: candidate,
		Phred:   phred,
		Samples: samples,
	}, nil
}
