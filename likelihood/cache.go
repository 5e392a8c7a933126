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

// Package likelihood stores the per-sample, per-read, per-haplotype
// natural-log likelihoods that the inference models consume. The values
// are produced upstream (by a pair-HMM or similar); this package only
// provides fast, per-handle access to them.
package likelihood

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chapmanb/octopus/genome"
)

type float64Matrix struct {
	cols  int
	array []float64
}

func (m *float64Matrix) ensureSize(rows, cols int) {
	m.cols = cols
	totalSize := rows * cols
	if totalSize <= cap(m.array) {
		m.array = m.array[:totalSize]
		for i := range m.array {
			m.array[i] = 0
		}
	} else {
		m.array = make([]float64, totalSize)
	}
}

func (m *float64Matrix) rowView(row int) []float64 {
	offset := row * m.cols
	return m.array[offset : offset+m.cols]
}

func (m *float64Matrix) rows() int {
	if m.cols == 0 {
		return 0
	}
	return len(m.array) / m.cols
}

type sampleLikelihoods struct {
	matrix float64Matrix
}

// Cache holds read-vs-haplotype log likelihoods for every sample of an
// active region. The haplotype order is the canonical pool order of the
// region; all indices into the cache use it.
type Cache struct {
	haplotypes []*genome.Haplotype
	samples    map[string]*sampleLikelihoods
}

// NewCache creates an empty cache over a canonical haplotype pool.
func NewCache(haplotypes []*genome.Haplotype) *Cache {
	return &Cache{
		haplotypes: haplotypes,
		samples:    make(map[string]*sampleLikelihoods),
	}
}

// NumHaplotypes returns the size of the haplotype pool.
func (cache *Cache) NumHaplotypes() int {
	return len(cache.haplotypes)
}

// Haplotypes returns the canonical haplotype pool the cache indexes.
func (cache *Cache) Haplotypes() []*genome.Haplotype {
	return cache.haplotypes
}

// AddSample installs the likelihood matrix of a sample. lnLikelihoods
// holds one row per read, with one entry per pool haplotype.
func (cache *Cache) AddSample(sample string, lnLikelihoods [][]float64) error {
	if _, ok := cache.samples[sample]; ok {
		return fmt.Errorf("sample %v already present in likelihood cache", sample)
	}
	likelihoods := new(sampleLikelihoods)
	likelihoods.matrix.ensureSize(len(lnLikelihoods), len(cache.haplotypes))
	for r, row := range lnLikelihoods {
		if len(row) != len(cache.haplotypes) {
			return fmt.Errorf("read %d of sample %v has %d haplotype likelihoods, expected %d",
				r, sample, len(row), len(cache.haplotypes))
		}
		copy(likelihoods.matrix.rowView(r), row)
	}
	cache.samples[sample] = likelihoods
	return nil
}

// Samples returns the sample names in sorted order.
func (cache *Cache) Samples() []string {
	samples := make([]string, 0, len(cache.samples))
	for sample := range cache.samples {
		samples = append(samples, sample)
	}
	sort.Strings(samples)
	return samples
}

// NumReads returns the number of reads stored for a sample.
func (cache *Cache) NumReads(sample string) int {
	likelihoods, ok := cache.samples[sample]
	if !ok {
		return 0
	}
	return likelihoods.matrix.rows()
}

// At returns ln L(read | haplotype) for a sample.
func (cache *Cache) At(sample string, read, haplotype int) float64 {
	return cache.samples[sample].matrix.rowView(read)[haplotype]
}

// Primed is a handle on the likelihoods of a single sample. Each caller
// owns its own handle, so priming never mutates shared state.
type Primed struct {
	sample      string
	likelihoods *sampleLikelihoods
	haplotypes  int
}

// Prime returns a single-sample view of the cache.
func (cache *Cache) Prime(sample string) (*Primed, error) {
	likelihoods, ok := cache.samples[sample]
	if !ok {
		return nil, fmt.Errorf("sample %v not present in likelihood cache", sample)
	}
	return &Primed{
		sample:      sample,
		likelihoods: likelihoods,
		haplotypes:  len(cache.haplotypes),
	}, nil
}

// Sample returns the name of the primed sample.
func (view *Primed) Sample() string {
	return view.sample
}

// NumReads returns the number of reads in the primed view.
func (view *Primed) NumReads() int {
	return view.likelihoods.matrix.rows()
}

// At returns ln L(read | haplotype) in the primed view.
func (view *Primed) At(read, haplotype int) float64 {
	return view.likelihoods.matrix.rowView(read)[haplotype]
}

// Row returns the likelihoods of one read across all haplotypes.
func (view *Primed) Row(read int) []float64 {
	return view.likelihoods.matrix.rowView(read)
}

// MergedOver builds a cache holding a single pseudo-sample whose read
// set is the concatenation of the given samples' reads, in the given
// sample order.
func (cache *Cache) MergedOver(samples []string) (*Cache, error) {
	var totalReads int
	for _, sample := range samples {
		likelihoods, ok := cache.samples[sample]
		if !ok {
			return nil, fmt.Errorf("sample %v not present in likelihood cache", sample)
		}
		totalReads += likelihoods.matrix.rows()
	}
	merged := new(sampleLikelihoods)
	merged.matrix.ensureSize(totalReads, len(cache.haplotypes))
	row := 0
	for _, sample := range samples {
		likelihoods := cache.samples[sample]
		for r := 0; r < likelihoods.matrix.rows(); r++ {
			copy(merged.matrix.rowView(row), likelihoods.matrix.rowView(r))
			row++
		}
	}
	result := NewCache(cache.haplotypes)
	result.samples[strings.Join(samples, "+")] = merged
	return result, nil
}
