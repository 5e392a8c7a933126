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

	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/inference"
	"github.com/chapmanb/octopus/prior"
)

// IndividualParameters configure the single-sample germline caller.
type IndividualParameters struct {
	Sample               string
	Ploidy               int
	GermlineMutationRate float64
	// MinVariantPosterior is the Phred threshold a candidate must reach
	// to be called.
	MinVariantPosterior float64
}

// IndividualCaller calls germline variants of a single sample using
// the exact individual model.
type IndividualCaller struct {
	params IndividualParameters
}

// NewIndividualCaller validates the parameters and creates the caller.
func NewIndividualCaller(params IndividualParameters) (*IndividualCaller, error) {
	if params.Sample == "" {
		return nil, fmt.Errorf("%w: no sample name", inference.ErrInvalidParameter)
	}
	if params.Ploidy < 1 {
		return nil, fmt.Errorf("%w: ploidy %v", inference.ErrInvalidParameter, params.Ploidy)
	}
	if params.GermlineMutationRate <= 0 || params.GermlineMutationRate >= 1 {
		return nil, fmt.Errorf("%w: germline mutation rate %v outside (0, 1)",
			inference.ErrInvalidParameter, params.GermlineMutationRate)
	}
	return &IndividualCaller{params: params}, nil
}

// Samples returns the single sample the caller consumes.
func (c *IndividualCaller) Samples() []string {
	return []string{c.params.Sample}
}

func (c *IndividualCaller) callRegion(in *Input, r *run) RegionResult {
	r.enter(stageEnumerating)
	genotypes := genotype.AllGenotypes(len(in.Pool), c.params.Ploidy)
	if len(genotypes) == 0 {
		return r.done(nil, 0)
	}

	r.enter(stageInferring)
	germlinePrior, err := prior.NewCoalescent(in.Reference, c.params.GermlineMutationRate)
	if err != nil {
		return r.fail(err)
	}
	reads, err := in.Likelihoods.Prime(c.params.Sample)
	if err != nil {
		return r.fail(err)
	}
	model := &inference.IndividualModel{Pool: in.Pool, Prior: germlinePrior}
	latents, err := model.Infer(genotypes, reads)
	if err != nil {
		return r.fail(err)
	}
	if in.Cancel.Cancelled() {
		return r.fail(inference.ErrCancelled)
	}

	r.enter(stageCombining)

	r.enter(stageExtracting)
	mapIndex := latents.MAP()
	var calls []VariantCall
	for _, candidate := range in.Candidates {
		phred := germlinePhred(in.Pool, genotypes, latents.Posteriors, candidate.Alt)
		if phred < c.params.MinVariantPosterior {
			continue
		}
		if !genotypeContainsAllele(in.Pool, genotypes[mapIndex], candidate.Alt) {
			continue
		}
		called, samplePhred, err := genotypeCall(in.Pool, genotypes, latents.Posteriors, mapIndex, candidate.Region())
		if err != nil {
			return r.fail(err)
		}
		calls = append(calls, VariantCall{
			Variant: candidate,
			Phred:   phred,
			Samples: []SampleCall{{
				Sample:   c.params.Sample,
				Genotype: called,
				Phred:    samplePhred,
			}},
		})
	}
	return r.done(calls, latents.LogEvidence)
}
