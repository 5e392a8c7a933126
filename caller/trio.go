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

	"github.com/chapmanb/octopus/dist"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/inference"
	"github.com/chapmanb/octopus/prior"
)

// Trio names the three samples of a mother, father, child pedigree.
type Trio struct {
	Mother, Father, Child string
}

// TrioParameters configure the trio caller.
type TrioParameters struct {
	Trio                 Trio
	MaternalPloidy       int
	PaternalPloidy       int
	ChildPloidy          int
	GermlineMutationRate float64
	DenovoMutationRate   float64
	// MinVariantPosterior is the Phred threshold for germline calls;
	// MinDenovoPosterior the Phred threshold for de-novo calls.
	MinVariantPosterior float64
	MinDenovoPosterior  float64
	Options             inference.TrioOptions
}

// TrioCaller calls germline and de-novo variants of a trio using the
// joint trio model.
type TrioCaller struct {
	params TrioParameters
}

// NewTrioCaller validates the parameters and creates the caller.
func NewTrioCaller(params TrioParameters) (*TrioCaller, error) {
	if params.Trio.Mother == "" || params.Trio.Father == "" || params.Trio.Child == "" {
		return nil, fmt.Errorf("%w: incomplete trio", inference.ErrInvalidParameter)
	}
	if params.MaternalPloidy < 1 || params.PaternalPloidy < 1 || params.ChildPloidy < 1 {
		return nil, fmt.Errorf("%w: trio ploidies %v/%v/%v", inference.ErrInvalidParameter,
			params.MaternalPloidy, params.PaternalPloidy, params.ChildPloidy)
	}
	if params.GermlineMutationRate <= 0 || params.GermlineMutationRate >= 1 {
		return nil, fmt.Errorf("%w: germline mutation rate %v outside (0, 1)",
			inference.ErrInvalidParameter, params.GermlineMutationRate)
	}
	if params.DenovoMutationRate <= 0 || params.DenovoMutationRate >= 1 {
		return nil, fmt.Errorf("%w: de-novo mutation rate %v outside (0, 1)",
			inference.ErrInvalidParameter, params.DenovoMutationRate)
	}
	return &TrioCaller{params: params}, nil
}

// Samples returns mother, father, and child, in that order.
func (c *TrioCaller) Samples() []string {
	return []string{c.params.Trio.Mother, c.params.Trio.Father, c.params.Trio.Child}
}

func (c *TrioCaller) callRegion(in *Input, r *run) RegionResult {
	r.enter(stageEnumerating)
	motherGenotypes := genotype.AllGenotypes(len(in.Pool), c.params.MaternalPloidy)
	fatherGenotypes := genotype.AllGenotypes(len(in.Pool), c.params.PaternalPloidy)
	childGenotypes := genotype.AllGenotypes(len(in.Pool), c.params.ChildPloidy)
	if len(childGenotypes) == 0 {
		return r.done(nil, 0)
	}

	r.enter(stageInferring)
	germlinePrior, err := prior.NewCoalescent(in.Reference, c.params.GermlineMutationRate)
	if err != nil {
		return r.fail(err)
	}
	denovoPrior, err := prior.NewDenovo(c.params.DenovoMutationRate)
	if err != nil {
		return r.fail(err)
	}
	mother, err := in.Likelihoods.Prime(c.params.Trio.Mother)
	if err != nil {
		return r.fail(err)
	}
	father, err := in.Likelihoods.Prime(c.params.Trio.Father)
	if err != nil {
		return r.fail(err)
	}
	child, err := in.Likelihoods.Prime(c.params.Trio.Child)
	if err != nil {
		return r.fail(err)
	}
	model := &inference.TrioModel{
		Pool:            in.Pool,
		PopulationPrior: germlinePrior,
		DenovoPrior:     denovoPrior,
		Options:         c.params.Options,
	}
	latents, err := model.Infer(motherGenotypes, fatherGenotypes, childGenotypes, mother, father, child, in.Cancel)
	if err != nil {
		return r.fail(err)
	}

	r.enter(stageCombining)

	r.enter(stageExtracting)
	calls, err := c.extract(in, latents)
	if err != nil {
		return r.fail(err)
	}
	return r.done(calls, latents.LogEvidence)
}

// denovoMass returns the posterior mass of triples in which the allele
// is carried by the child but by neither parent.
func (c *TrioCaller) denovoMass(in *Input, latents *inference.TrioLatents, alt genome.Allele) float64 {
	mass := 0.0
	for i, t := range latents.Triples {
		inChild := genotypeContainsAllele(in.Pool, latents.ChildGenotypes[t.Child], alt)
		if !inChild {
			continue
		}
		inMother := genotypeContainsAllele(in.Pool, latents.MotherGenotypes[t.Mother], alt)
		inFather := genotypeContainsAllele(in.Pool, latents.FatherGenotypes[t.Father], alt)
		if !inMother && !inFather {
			mass += latents.Posteriors[i]
		}
	}
	return mass
}

func (c *TrioCaller) extract(in *Input, latents *inference.TrioLatents) ([]VariantCall, error) {
	mapMother := latents.MAPMother()
	mapFather := latents.MAPFather()
	mapChild := latents.MAPChild()

	var calls []VariantCall
	for _, candidate := range in.Candidates {
		phred := germlinePhred(in.Pool, latents.ChildGenotypes, latents.ChildMarginals, candidate.Alt)
		denovoPhred := dist.PhredFromProb(c.denovoMass(in, latents, candidate.Alt))
		mapHasAlt := genotypeContainsAllele(in.Pool, latents.ChildGenotypes[mapChild], candidate.Alt)

		germlineCalled := phred >= c.params.MinVariantPosterior && mapHasAlt
		denovoCalled := denovoPhred >= c.params.MinDenovoPosterior && mapHasAlt
		if !germlineCalled && !denovoCalled {
			continue
		}

		site := candidate.Region()
		motherCall, motherPhred, err := genotypeCall(in.Pool, latents.MotherGenotypes, latents.MotherMarginals, mapMother, site)
		if err != nil {
			return nil, err
		}
		fatherCall, fatherPhred, err := genotypeCall(in.Pool, latents.FatherGenotypes, latents.FatherMarginals, mapFather, site)
		if err != nil {
			return nil, err
		}
		childCall, childPhred, err := genotypeCall(in.Pool, latents.ChildGenotypes, latents.ChildMarginals, mapChild, site)
		if err != nil {
			return nil, err
		}
		calls = append(calls, VariantCall{
			Variant: candidate,
			Phred:   phred,
			Samples: []SampleCall{
				{Sample: c.params.Trio.Mother, Genotype: motherCall, Phred: motherPhred},
				{Sample: c.params.Trio.Father, Genotype: fatherCall, Phred: fatherPhred},
				{Sample: c.params.Trio.Child, Genotype: childCall, Phred: childPhred},
			},
			Denovo:      denovoCalled,
			DenovoPhred: denovoPhred,
		})
	}
	return calls, nil
}
