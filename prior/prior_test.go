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
	"math"
	"testing"

	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
)

const testSequence = "ACGTACGTAC"

// buildTestPool builds a pool of the reference haplotype, a one-edit
// haplotype, and a two-edit haplotype.
func buildTestPool(t *testing.T) []*genome.Haplotype {
	region := genome.NewRegion("chr1", 0, 10)
	sequence := []byte(testSequence)
	variant := func(begin int32, ref, alt string) genome.Variant {
		site := genome.NewRegion("chr1", begin, begin+int32(len(ref)))
		v, err := genome.NewVariant(
			genome.Allele{Region: site, Bases: ref},
			genome.Allele{Region: site, Bases: alt},
		)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	refHap := genome.NewReferenceHaplotype(region, sequence)
	oneEdit, err := genome.NewHaplotype(region, sequence, []genome.Variant{variant(4, "A", "T")})
	if err != nil {
		t.Fatal(err)
	}
	twoEdits, err := genome.NewHaplotype(region, sequence, []genome.Variant{
		variant(4, "A", "T"), variant(6, "G", "C"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return []*genome.Haplotype{refHap, oneEdit, twoEdits}
}

func TestNewCoalescent(t *testing.T) {
	pool := buildTestPool(t)
	if _, err := NewCoalescent(pool[0], 0); err == nil {
		t.Error("coalescent zero rate failed")
	}
	if _, err := NewCoalescent(pool[0], 1); err == nil {
		t.Error("coalescent unit rate failed")
	}
	p, err := NewCoalescent(pool[0], 1e-3)
	if err != nil {
		t.Error("coalescent creation failed")
	}
	if p.Reference() != pool[0] {
		t.Error("coalescent reference failed")
	}
}

func TestCoalescentHaplotype(t *testing.T) {
	pool := buildTestPool(t)
	p, err := NewCoalescent(pool[0], 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	if p.LogProbHaplotype(pool[0]) != 0 {
		t.Error("coalescent reference prior failed")
	}
	if math.Abs(p.LogProbHaplotype(pool[1])-math.Log(1e-3)) > 1e-12 {
		t.Error("coalescent one-edit prior failed")
	}
	if math.Abs(p.LogProbHaplotype(pool[2])-2*math.Log(1e-3)) > 1e-12 {
		t.Error("coalescent two-edit prior failed")
	}
	if p.LogProbHaplotype(pool[2]) >= p.LogProbHaplotype(pool[1]) {
		t.Error("coalescent monotonicity failed")
	}
	// memoised distances must agree with fresh ones
	if p.LogProbHaplotype(pool[1]) != p.LogProbHaplotype(pool[1]) {
		t.Error("coalescent memo failed")
	}
}

func TestCoalescentGenotype(t *testing.T) {
	pool := buildTestPool(t)
	p, err := NewCoalescent(pool[0], 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	one := p.LogProbHaplotype(pool[1])
	// multiplicity carries no extra cost
	if p.LogProbGenotype(pool, genotype.New(1, 1)) != one {
		t.Error("coalescent genotype multiplicity failed")
	}
	if p.LogProbGenotype(pool, genotype.New(0, 1)) != one {
		t.Error("coalescent genotype reference member failed")
	}
	expected := one + p.LogProbHaplotype(pool[2])
	if math.Abs(p.LogProbGenotype(pool, genotype.New(1, 2))-expected) > 1e-12 {
		t.Error("coalescent genotype sum failed")
	}
	if p.LogProbSet(pool[:1]) != 0 {
		t.Error("coalescent set prior failed")
	}
}

func TestDenovo(t *testing.T) {
	pool := buildTestPool(t)
	if _, err := NewDenovo(0); err == nil {
		t.Error("denovo zero rate failed")
	}
	if _, err := NewDenovo(1); err == nil {
		t.Error("denovo unit rate failed")
	}
	p, err := NewDenovo(1e-8)
	if err != nil {
		t.Fatal(err)
	}

	// an inherited haplotype costs only the uniform choice
	inherited := p.LogProb(pool, genotype.New(0), genotype.New(0), genotype.New(0))
	if math.Abs(inherited) > 1e-12 {
		t.Error("denovo inherited prior failed")
	}
	// a haplotype absent from both parents pays the de-novo rate
	denovo := p.LogProb(pool, genotype.New(1), genotype.New(0), genotype.New(0))
	if math.Abs(denovo-math.Log(1e-8)) > 1e-9 {
		t.Error("denovo mutation prior failed")
	}
	if denovo >= inherited {
		t.Error("denovo ordering failed")
	}
	if p.LogProb(pool, genotype.New(1), genotype.Genotype{}, genotype.Genotype{}) != 0 {
		t.Error("denovo empty parents failed")
	}
}

func TestDenovoSymmetry(t *testing.T) {
	pool := buildTestPool(t)
	p, err := NewDenovo(1e-8)
	if err != nil {
		t.Fatal(err)
	}
	mother := genotype.New(0, 1)
	father := genotype.New(0, 0)
	for _, child := range []genotype.Genotype{
		genotype.New(0, 0), genotype.New(0, 1), genotype.New(1, 2), genotype.New(2, 2),
	} {
		forward := p.LogProb(pool, child, mother, father)
		backward := p.LogProb(pool, child, father, mother)
		if math.Abs(forward-backward) > 1e-12 {
			t.Error("denovo parent symmetry failed")
		}
	}
}

func TestSomatic(t *testing.T) {
	pool := buildTestPool(t)
	germline, err := NewCoalescent(pool[0], 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewSomatic(germline, 0); err == nil {
		t.Error("somatic zero rate failed")
	}
	if _, err := NewSomatic(germline, 1); err == nil {
		t.Error("somatic unit rate failed")
	}
	p, err := NewSomatic(germline, 1e-4)
	if err != nil {
		t.Fatal(err)
	}
	if p.Germline() != germline {
		t.Error("somatic germline accessor failed")
	}

	// a somatic haplotype present in the germline costs nothing
	if p.LogProbSomatic(pool, 0, genotype.New(0, 1)) != 0 {
		t.Error("somatic germline member failed")
	}
	// otherwise the nearest germline haplotype anchors the penalty
	if math.Abs(p.LogProbSomatic(pool, 2, genotype.New(0, 1))-math.Log(1e-4)) > 1e-12 {
		t.Error("somatic nearest anchor failed")
	}
	if math.Abs(p.LogProbSomatic(pool, 2, genotype.New(0, 0))-2*math.Log(1e-4)) > 1e-12 {
		t.Error("somatic distant anchor failed")
	}
	// an empty germline falls back to the reference haplotype
	if math.Abs(p.LogProbSomatic(pool, 1, genotype.Genotype{})-math.Log(1e-4)) > 1e-12 {
		t.Error("somatic empty germline failed")
	}

	cg := genotype.CancerGenotype{Germline: genotype.New(0, 1), Somatic: 2}
	expected := germline.LogProbGenotype(pool, cg.Germline) + p.LogProbSomatic(pool, 2, cg.Germline)
	if math.Abs(p.LogProbCancerGenotype(pool, cg)-expected) > 1e-12 {
		t.Error("somatic cancer genotype failed")
	}
}
