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
	"github.com/chapmanb/octopus/likelihood"
)

// VariationalOptions control the mean-field coordinate ascent shared by
// the CNV and tumour models.
type VariationalOptions struct {
	// Epsilon is the ELBO convergence tolerance.
	Epsilon float64
	// MaxIterations bounds the coordinate ascent.
	MaxIterations int
}

// DefaultVariationalOptions returns the convergence parameters used by
// the caller.
func DefaultVariationalOptions() VariationalOptions {
	return VariationalOptions{
		Epsilon:       1e-4,
		MaxIterations: 100,
	}
}

func (opts VariationalOptions) validate() error {
	if opts.Epsilon <= 0 {
		return fmt.Errorf("%w: variational epsilon %v not positive", ErrInvalidParameter, opts.Epsilon)
	}
	if opts.MaxIterations < 1 {
		return fmt.Errorf("%w: variational iteration bound %v not positive", ErrInvalidParameter, opts.MaxIterations)
	}
	return nil
}

// float64Matrix is a dense row-major matrix of float64 values.
type float64Matrix struct {
	cols  int
	array []float64
}

func (m *float64Matrix) ensureSize(rows, cols int) {
	m.cols = cols
	size := rows * cols
	if cap(m.array) < size {
		m.array = make([]float64, size)
	} else {
		m.array = m.array[:size]
		for i := range m.array {
			m.array[i] = 0
		}
	}
}

func (m *float64Matrix) rowView(r int) []float64 {
	return m.array[r*m.cols : (r+1)*m.cols]
}

// dirichletResult is the fitted variational posterior of one sample's
// haplotype mixture.
type dirichletResult struct {
	// Alpha is the posterior Dirichlet concentration per mixture
	// component.
	Alpha []float64
	// Elbo is the final evidence lower bound.
	Elbo float64
	// Converged tells whether the ascent met the tolerance before the
	// iteration bound.
	Converged bool
}

// runMeanField fits a Dirichlet mixture of haplotype likelihoods by
// mean-field coordinate ascent. The components slice maps each mixture
// component to a haplotype index of the likelihood cache, and priorAlpha
// gives the Dirichlet prior concentrations, parallel to components. The
// initial concentrations are perturbed deterministically so repeated
// fits of the same inputs agree.
func runMeanField(priorAlpha []float64, components []int, reads *likelihood.Primed, opts VariationalOptions, cancel *Cancel) (*dirichletResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	numComponents := len(components)
	if numComponents == 0 {
		return nil, fmt.Errorf("%w: empty mixture", ErrInvalidParameter)
	}
	if len(priorAlpha) != numComponents {
		return nil, fmt.Errorf("%w: %v prior concentrations for %v components", ErrInvalidParameter, len(priorAlpha), numComponents)
	}
	for _, a := range priorAlpha {
		if a <= 0 {
			return nil, fmt.Errorf("%w: prior concentration %v not positive", ErrInvalidParameter, a)
		}
	}
	numReads := reads.NumReads()

	alpha := make([]float64, numComponents)
	for k := range alpha {
		alpha[k] = priorAlpha[k] + 0.01*float64(k+1)/float64(numComponents)
	}

	var responsibilities float64Matrix
	responsibilities.ensureSize(numReads, numComponents)
	expectedLogPi := make([]float64, numComponents)
	counts := make([]float64, numComponents)
	priorLnBeta := dist.LnBeta(priorAlpha)

	elbo := math.Inf(-1)
	converged := false
	for iteration := 0; iteration < opts.MaxIterations; iteration++ {
		if cancel.Cancelled() {
			return nil, ErrCancelled
		}

		alphaSum := 0.0
		for _, a := range alpha {
			alphaSum += a
		}
		digammaSum := dist.Digamma(alphaSum)
		for k, a := range alpha {
			expectedLogPi[k] = dist.Digamma(a) - digammaSum
		}

		for k := range counts {
			counts[k] = 0
		}
		newElbo := 0.0
		for r := 0; r < numReads; r++ {
			row := reads.Row(r)
			gamma := responsibilities.rowView(r)
			for k, h := range components {
				gamma[k] = expectedLogPi[k] + row[h]
			}
			dist.NormaliseLogs(gamma)
			for k := range gamma {
				counts[k] += gamma[k]
				if gamma[k] > 0 {
					newElbo += gamma[k] * (row[components[k]] - math.Log(gamma[k]))
				}
			}
		}
		for k := range alpha {
			alpha[k] = priorAlpha[k] + counts[k]
		}
		newElbo += dist.LnBeta(alpha) - priorLnBeta

		if math.Abs(newElbo-elbo) < opts.Epsilon {
			elbo = newElbo
			converged = true
			break
		}
		elbo = newElbo
	}
	if !converged {
		log.Debugf("mean-field ascent stopped at iteration bound %v with ELBO %v", opts.MaxIterations, elbo)
	}
	return &dirichletResult{
		Alpha:     alpha,
		Elbo:      elbo,
		Converged: converged,
	}, nil
}
