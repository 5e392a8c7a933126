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
	"testing"

	"github.com/chapmanb/octopus/inference"
)

func cancerTestParameters() CancerParameters {
	return CancerParameters{
		Samples:              []string{"NORMAL", "TUMOUR"},
		NormalSample:         "NORMAL",
		Ploidy:               2,
		MaxGenotypes:         100,
		GermlineMutationRate: 1e-3,
		SomaticMutationRate:  1e-3,
		MinVariantPosterior:  3,
		MinSomaticPosterior:  0.5,
		MinSomaticFrequency:  0.05,
		CredibleMass:         0.99,
		Variational:          inference.DefaultVariationalOptions(),
	}
}

func TestNewCancerCaller(t *testing.T) {
	if _, err := NewCancerCaller(cancerTestParameters()); err != nil {
		t.Error("cancer caller creation failed")
	}

	params := cancerTestParameters()
	params.Samples = nil
	if _, err := NewCancerCaller(params); err == nil {
		t.Error("cancer caller empty samples failed")
	}
	params = cancerTestParameters()
	params.NormalSample = "ELSEWHERE"
	if _, err := NewCancerCaller(params); err == nil {
		t.Error("cancer caller unknown normal failed")
	}
	params = cancerTestParameters()
	params.Ploidy = 0
	if _, err := NewCancerCaller(params); err == nil {
		t.Error("cancer caller zero ploidy failed")
	}
	params = cancerTestParameters()
	params.MaxGenotypes = 0
	if _, err := NewCancerCaller(params); err == nil {
		t.Error("cancer caller max genotypes failed")
	}
	params = cancerTestParameters()
	params.SomaticMutationRate = 0
	if _, err := NewCancerCaller(params); err == nil {
		t.Error("cancer caller somatic rate failed")
	}
	params = cancerTestParameters()
	params.MinSomaticFrequency = 0
	if _, err := NewCancerCaller(params); err == nil {
		t.Error("cancer caller somatic frequency failed")
	}
	params = cancerTestParameters()
	params.CredibleMass = 1
	if _, err := NewCancerCaller(params); err == nil {
		t.Error("cancer caller credible mass failed")
	}

	c, err := NewCancerCaller(cancerTestParameters())
	if err != nil {
		t.Fatal(err)
	}
	samples := c.Samples()
	if len(samples) != 2 || samples[0] != "NORMAL" || samples[1] != "TUMOUR" {
		t.Error("cancer caller samples failed")
	}
}

func TestCancerCallerSomatic(t *testing.T) {
	scenario := buildScenario(t)
	c, err := NewCancerCaller(cancerTestParameters())
	if err != nil {
		t.Fatal(err)
	}
	in := buildInput(t, scenario, []sampleReads{
		{"NORMAL", likelihoodRows(20, 0)},
		{"TUMOUR", likelihoodRows(28, 12)},
	})
	result := CallRegion(c, in)
	calls, ok := result.(Calls)
	if !ok {
		t.Fatal("cancer somatic result failed")
	}
	if len(calls.Calls) != 1 {
		t.Fatal("cancer somatic call count failed")
	}
	call := calls.Calls[0]
	if !call.Somatic {
		t.Error("cancer somatic flag failed")
	}
	if len(call.SomaticSamples) != 1 || call.SomaticSamples[0] != "TUMOUR" {
		t.Error("cancer somatic samples failed")
	}
	if call.Phred < 3 {
		t.Error("cancer somatic phred failed")
	}
	if len(call.Samples) != 2 ||
		call.Samples[0].Sample != "NORMAL" || call.Samples[1].Sample != "TUMOUR" {
		t.Error("cancer somatic sample order failed")
	}
	tumour := call.Samples[1]
	if tumour.SomaticCredible == nil || tumour.SomaticCredible.Lo <= 0.05 {
		t.Error("cancer somatic credible interval failed")
	}
	if len(tumour.GermlineCredible) != 2 {
		t.Error("cancer somatic germline intervals failed")
	}
	normal := call.Samples[0]
	if normal.SomaticCredible == nil || normal.SomaticCredible.Lo > 0.05 {
		t.Error("cancer somatic normal interval failed")
	}
}

func TestCancerCallerLowFraction(t *testing.T) {
	scenario := buildScenario(t)
	c, err := NewCancerCaller(cancerTestParameters())
	if err != nil {
		t.Fatal(err)
	}
	in := buildInput(t, scenario, []sampleReads{
		{"NORMAL", likelihoodRows(20, 0)},
		{"TUMOUR", likelihoodRows(49, 1)},
	})
	result := CallRegion(c, in)
	calls, ok := result.(Calls)
	if !ok {
		t.Fatal("cancer low fraction result failed")
	}
	if len(calls.Calls) != 0 {
		t.Error("cancer low fraction call count failed")
	}
}

func TestCancerCallerGermline(t *testing.T) {
	scenario := buildScenario(t)
	c, err := NewCancerCaller(cancerTestParameters())
	if err != nil {
		t.Fatal(err)
	}
	in := buildInput(t, scenario, []sampleReads{
		{"NORMAL", likelihoodRows(10, 10)},
		{"TUMOUR", likelihoodRows(10, 10)},
	})
	result := CallRegion(c, in)
	calls, ok := result.(Calls)
	if !ok {
		t.Fatal("cancer germline result failed")
	}
	if len(calls.Calls) != 1 {
		t.Fatal("cancer germline call count failed")
	}
	call := calls.Calls[0]
	if call.Somatic {
		t.Error("cancer germline flag failed")
	}
	if call.Phred < 3 {
		t.Error("cancer germline phred failed")
	}
	for _, sample := range call.Samples {
		if !sample.Genotype.ContainsAllele(scenario.variant.Ref) ||
			!sample.Genotype.ContainsAllele(scenario.variant.Alt) {
			t.Error("cancer germline genotype failed")
		}
		if sample.SomaticCredible != nil {
			t.Error("cancer germline interval failed")
		}
	}
}
