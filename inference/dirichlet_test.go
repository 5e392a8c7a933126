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
	"errors"
	"math"
	"testing"

	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/likelihood"
	"github.com/chapmanb/octopus/prior"
)

func TestMeanFieldValidation(t *testing.T) {
	pool := buildTestPool(t)
	reads := primeSample(t, pool, "s", likelihoodRows(1, 1))
	opts := DefaultVariationalOptions()
	if _, err := runMeanField(nil, nil, reads, opts, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("mean field empty mixture failed")
	}
	if _, err := runMeanField([]float64{1}, []int{0, 1}, reads, opts, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("mean field concentration arity failed")
	}
	if _, err := runMeanField([]float64{1, 0}, []int{0, 1}, reads, opts, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("mean field non-positive concentration failed")
	}
	bad := VariationalOptions{Epsilon: 0, MaxIterations: 100}
	if _, err := runMeanField([]float64{1, 1}, []int{0, 1}, reads, bad, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("mean field epsilon validation failed")
	}
	bad = VariationalOptions{Epsilon: 1e-4, MaxIterations: 0}
	if _, err := runMeanField([]float64{1, 1}, []int{0, 1}, reads, bad, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("mean field iteration bound validation failed")
	}
	cancel := &Cancel{}
	cancel.Cancel()
	if _, err := runMeanField([]float64{1, 1}, []int{0, 1}, reads, opts, cancel); !errors.Is(err, ErrCancelled) {
		t.Error("mean field cancellation failed")
	}
}

func TestMeanFieldFit(t *testing.T) {
	pool := buildTestPool(t)
	reads := primeSample(t, pool, "s", likelihoodRows(7, 3))
	priorAlpha := []float64{1, 1}
	fit, err := runMeanField(priorAlpha, []int{0, 1}, reads, DefaultVariationalOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !fit.Converged {
		t.Error("mean field convergence failed")
	}
	// responsibilities sum to one per read
	total := 0.0
	for _, a := range fit.Alpha {
		total += a
	}
	if math.Abs(total-(2+10)) > 1e-6 {
		t.Error("mean field mass conservation failed")
	}
	if fit.Alpha[0] <= fit.Alpha[1] {
		t.Error("mean field dominant component failed")
	}
	if fit.Alpha[0] < 7 || fit.Alpha[1] < 3 {
		t.Error("mean field count assignment failed")
	}
	again, err := runMeanField(priorAlpha, []int{0, 1}, reads, DefaultVariationalOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if fit.Alpha[0] != again.Alpha[0] || fit.Alpha[1] != again.Alpha[1] || fit.Elbo != again.Elbo {
		t.Error("mean field determinism failed")
	}
}

func buildCache(t *testing.T, pool []*genome.Haplotype, samples map[string][][]float64) *likelihood.Cache {
	cache := likelihood.NewCache(pool)
	for sample, rows := range samples {
		if err := cache.AddSample(sample, rows); err != nil {
			t.Fatal(err)
		}
	}
	return cache
}

func TestCNVModel(t *testing.T) {
	pool := buildTestPool(t)
	coalescent, err := prior.NewCoalescent(pool[0], 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	model := &CNVModel{
		Pool:         pool,
		Prior:        coalescent,
		Options:      DefaultVariationalOptions(),
		NormalSample: "NORMAL",
	}
	cache := buildCache(t, pool, map[string][][]float64{
		"NORMAL": likelihoodRows(10, 10),
		"OTHER":  likelihoodRows(15, 5),
	})
	samples := []string{"NORMAL", "OTHER"}
	genotypes := genotype.AllGenotypes(2, 2)
	latents, err := model.Infer(genotypes, cache, samples, nil)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, p := range latents.Posteriors {
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Error("CNV normalisation failed")
	}
	mapG := genotypes[latents.MAP()]
	if !mapG.Contains(0) || !mapG.Contains(1) {
		t.Error("CNV MAP genotype failed")
	}
	for i := range genotypes {
		for s := range samples {
			for _, a := range latents.Alphas[i][s] {
				if a <= 0 {
					t.Error("CNV concentration positivity failed")
				}
			}
		}
	}
	again, err := model.Infer(genotypes, cache, samples, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range latents.Posteriors {
		if latents.Posteriors[i] != again.Posteriors[i] {
			t.Error("CNV determinism failed")
		}
	}
	if _, err := model.Infer(nil, cache, samples, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("CNV empty genotype space failed")
	}
	if _, err := model.Infer(genotypes, cache, nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("CNV no samples failed")
	}
}

func TestTumourModel(t *testing.T) {
	pool := buildTestPool(t)
	coalescent, err := prior.NewCoalescent(pool[0], 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	somatic, err := prior.NewSomatic(coalescent, 1e-3)
	if err != nil {
		t.Fatal(err)
	}
	model := &TumourModel{
		Pool:         pool,
		Prior:        somatic,
		Options:      DefaultVariationalOptions(),
		NormalSample: "NORMAL",
	}
	cache := buildCache(t, pool, map[string][][]float64{
		"NORMAL": likelihoodRows(20, 0),
		"TUMOUR": likelihoodRows(28, 12),
	})
	samples := []string{"NORMAL", "TUMOUR"}
	genotypes, _ := genotype.AllCancerGenotypes(2, 2)
	latents, err := model.Infer(genotypes, cache, samples, nil)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, p := range latents.Posteriors {
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Error("tumour normalisation failed")
	}
	best := latents.MAP()
	mapG := genotypes[best]
	if mapG.Somatic != 1 || mapG.Germline.Contains(1) {
		t.Error("tumour MAP genotype failed")
	}
	tumourFraction := latents.SomaticFraction(best, 1)
	if tumourFraction < 0.1 || tumourFraction > 0.5 {
		t.Error("tumour somatic fraction failed")
	}
	if latents.SomaticFraction(best, 0) > 0.05 {
		t.Error("tumour normal fraction failed")
	}
	somaticAlpha, germlineAlpha := latents.SomaticAlpha(best, 1)
	total := 0.0
	for _, a := range latents.Alphas[best][1] {
		total += a
	}
	if math.Abs(somaticAlpha+germlineAlpha-total) > 1e-9 {
		t.Error("tumour somatic alpha split failed")
	}
	if math.Abs(somaticAlpha/total-tumourFraction) > 1e-12 {
		t.Error("tumour somatic alpha fraction failed")
	}
	if _, err := model.Infer(nil, cache, samples, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("tumour empty genotype space failed")
	}
	if _, err := model.Infer(genotypes, cache, nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Error("tumour no samples failed")
	}
}
