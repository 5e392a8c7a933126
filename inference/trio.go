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
	"sort"

	"github.com/chapmanb/octopus/dist"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/likelihood"
	"github.com/chapmanb/octopus/prior"
)

// TrioOptions control the joint-space pruning of the trio model.
type TrioOptions struct {
	// MaxJointGap is the log-probability distance below the best joint
	// genotype beyond which triples are pruned.
	MaxJointGap float64
	// MaxTriples caps the number of retained triples. Zero means no
	// cap.
	MaxTriples int
	// MaxParentSets restricts the parental genotypes considered to the
	// top-scored ones per parent. Zero considers all.
	MaxParentSets int
}

// DefaultTrioOptions returns the pruning parameters used by the trio
// caller.
func DefaultTrioOptions() TrioOptions {
	return TrioOptions{
		MaxJointGap: 20,
		MaxTriples:  10000,
	}
}

// TrioModel computes an approximate joint genotype posterior over a
// mother, father, child trio, with de-novo mutation in the child. Each
// member is evaluated over its own candidate genotype set, so members
// of differing ploidy are supported.
type TrioModel struct {
	Pool            []*genome.Haplotype
	PopulationPrior *prior.Coalescent
	DenovoPrior     *prior.Denovo
	Options         TrioOptions
}

// TrioTriple is one retained joint genotype assignment. The indices
// refer to the respective candidate genotype sets.
type TrioTriple struct {
	Mother, Father, Child int
	LogJoint              float64
}

// TrioLatents holds the pruned joint posterior of the trio model and
// the per-member genotype marginals derived from it.
type TrioLatents struct {
	MotherGenotypes []genotype.Genotype
	FatherGenotypes []genotype.Genotype
	ChildGenotypes  []genotype.Genotype
	Triples         []TrioTriple
	// Posteriors of the retained triples, parallel to Triples.
	Posteriors []float64
	// Per-member marginals, indexed like the candidate sets.
	MotherMarginals []float64
	FatherMarginals []float64
	ChildMarginals  []float64
	LogEvidence     float64
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

// MAPMother returns the index of the mother genotype with maximum
// marginal posterior.
func (latents *TrioLatents) MAPMother() int {
	return argmax(latents.MotherMarginals)
}

// MAPFather returns the index of the father genotype with maximum
// marginal posterior.
func (latents *TrioLatents) MAPFather() int {
	return argmax(latents.FatherMarginals)
}

// MAPChild returns the index of the child genotype with maximum
// marginal posterior.
func (latents *TrioLatents) MAPChild() int {
	return argmax(latents.ChildMarginals)
}

type scoredGenotype struct {
	index int
	score float64
}

// parentCandidates scores each genotype by likelihood plus population
// prior and keeps the top max of them. A zero max keeps everything.
func (m *TrioModel) parentCandidates(genotypes []genotype.Genotype, reads *likelihood.Primed, max int) []scoredGenotype {
	scored := make([]scoredGenotype, len(genotypes))
	for i, g := range genotypes {
		scored[i] = scoredGenotype{
			index: i,
			score: GenotypeLogLikelihood(g, reads) + m.PopulationPrior.LogProbGenotype(m.Pool, g),
		}
	}
	if max > 0 && max < len(scored) {
		sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
		scored = scored[:max]
	}
	return scored
}

// Infer computes the pruned joint posterior over genotype triples given
// the candidate genotype sets and primed reads of the mother, father,
// and child.
func (m *TrioModel) Infer(
	motherGenotypes, fatherGenotypes, childGenotypes []genotype.Genotype,
	mother, father, child *likelihood.Primed,
	cancel *Cancel,
) (*TrioLatents, error) {
	if len(motherGenotypes) == 0 || len(fatherGenotypes) == 0 || len(childGenotypes) == 0 {
		return nil, fmt.Errorf("%w: empty genotype space", ErrInvalidParameter)
	}
	if cancel.Cancelled() {
		return nil, ErrCancelled
	}

	motherCands := m.parentCandidates(motherGenotypes, mother, m.Options.MaxParentSets)
	fatherCands := m.parentCandidates(fatherGenotypes, father, m.Options.MaxParentSets)

	childLikelihoods := make([]float64, len(childGenotypes))
	for i, g := range childGenotypes {
		childLikelihoods[i] = GenotypeLogLikelihood(g, child)
	}

	if cancel.Cancelled() {
		return nil, ErrCancelled
	}

	joint := func(mi, fi scoredGenotype, ci int) float64 {
		return mi.score + fi.score + childLikelihoods[ci] +
			m.DenovoPrior.LogProb(m.Pool, childGenotypes[ci], motherGenotypes[mi.index], fatherGenotypes[fi.index])
	}

	// First pass finds the best joint log probability so the second
	// pass can prune against it.
	bestJoint := math.Inf(-1)
	for _, mi := range motherCands {
		for _, fi := range fatherCands {
			for ci := range childGenotypes {
				if j := joint(mi, fi, ci); j > bestJoint {
					bestJoint = j
				}
			}
		}
		if cancel.Cancelled() {
			return nil, ErrCancelled
		}
	}
	if math.IsInf(bestJoint, -1) {
		return nil, fmt.Errorf("%w: all trio joint probabilities vanished", ErrNumericalUnderflow)
	}

	var triples []TrioTriple
	for _, mi := range motherCands {
		for _, fi := range fatherCands {
			for ci := range childGenotypes {
				j := joint(mi, fi, ci)
				if bestJoint-j <= m.Options.MaxJointGap {
					triples = append(triples, TrioTriple{
						Mother:   mi.index,
						Father:   fi.index,
						Child:    ci,
						LogJoint: j,
					})
				}
			}
		}
		if cancel.Cancelled() {
			return nil, ErrCancelled
		}
	}
	if m.Options.MaxTriples > 0 && len(triples) > m.Options.MaxTriples {
		sort.Slice(triples, func(i, j int) bool { return triples[i].LogJoint > triples[j].LogJoint })
		triples = triples[:m.Options.MaxTriples]
	}

	posteriors := make([]float64, len(triples))
	for i, t := range triples {
		posteriors[i] = t.LogJoint
	}
	logEvidence := dist.NormaliseLogs(posteriors)

	latents := &TrioLatents{
		MotherGenotypes: motherGenotypes,
		FatherGenotypes: fatherGenotypes,
		ChildGenotypes:  childGenotypes,
		Triples:         triples,
		Posteriors:      posteriors,
		MotherMarginals: make([]float64, len(motherGenotypes)),
		FatherMarginals: make([]float64, len(fatherGenotypes)),
		ChildMarginals:  make([]float64, len(childGenotypes)),
		LogEvidence:     logEvidence,
	}
	for i, t := range triples {
		latents.MotherMarginals[t.Mother] += posteriors[i]
		latents.FatherMarginals[t.Father] += posteriors[i]
		latents.ChildMarginals[t.Child] += posteriors[i]
	}
	return latents, nil
}
