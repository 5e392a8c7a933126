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

// Package dist implements the numeric kit of the inference models:
// stable log-space accumulation, Phred encoding, and the special
// functions of the Dirichlet and Beta distributions.
package dist

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// MaxPhred is the clipping bound for Phred-encoded posteriors.
const MaxPhred = 200.0

// LogSumExp returns ln Σ exp(values[i]) using the max-subtraction
// trick. An empty input and an all -Inf input both return -Inf.
func LogSumExp(values []float64) float64 {
	best := math.Inf(-1)
	for _, v := range values {
		if v > best {
			best = v
		}
	}
	if math.IsInf(best, -1) {
		return best
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - best)
	}
	return best + math.Log(sum)
}

// LogSumExp2 is LogSumExp for two values.
func LogSumExp2(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// NormaliseLogs converts joint log probabilities in place to normalised
// linear probabilities and returns the log normaliser. All -Inf inputs
// leave the slice untouched and return -Inf.
func NormaliseLogs(logs []float64) float64 {
	norm := LogSumExp(logs)
	if math.IsInf(norm, -1) {
		return norm
	}
	for i, v := range logs {
		logs[i] = math.Exp(v - norm)
	}
	return norm
}

// PhredFromProb encodes a probability as -10 log10(1-p), clipped at
// MaxPhred.
func PhredFromProb(p float64) float64 {
	if p >= 1 {
		return MaxPhred
	}
	phred := -10 * math.Log10(1-p)
	if phred > MaxPhred {
		return MaxPhred
	}
	if phred < 0 {
		return 0
	}
	return phred
}

// PhredFromLnNotProb encodes a probability given as ln(1-p), clipped at
// MaxPhred.
func PhredFromLnNotProb(lnNotP float64) float64 {
	phred := -10 * lnNotP / math.Ln10
	if phred > MaxPhred {
		return MaxPhred
	}
	if phred < 0 {
		return 0
	}
	return phred
}

// Digamma returns the logarithmic derivative of the gamma function.
func Digamma(x float64) float64 {
	return mathext.Digamma(x)
}

// LnGamma returns the log of the gamma function.
func LnGamma(x float64) float64 {
	lg, _ := math.Lgamma(x)
	return lg
}

// LnBeta returns the log of the multivariate beta function of a
// Dirichlet parameter vector.
func LnBeta(alpha []float64) float64 {
	sum := 0.0
	result := 0.0
	for _, a := range alpha {
		result += LnGamma(a)
		sum += a
	}
	return result - LnGamma(sum)
}

// CDFBeta returns the distribution function of the beta distribution,
// the incomplete beta ratio I_x(p,q).
func CDFBeta(x, p, q float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return mathext.RegIncBeta(p, q, x)
}

// QuantileBeta calculates the quantile of the beta distribution.
func QuantileBeta(prob, p, q float64) float64 {
	if prob <= 0 {
		return 0
	}
	if prob >= 1 {
		return 1
	}
	return mathext.InvRegIncBeta(p, q, prob)
}

// BetaHDI returns the highest-density interval of Beta(p, q) covering
// the given probability mass. The shortest covering interval is found
// by a golden-section search over the lower tail.
func BetaHDI(p, q, mass float64) (lo, hi float64) {
	if mass >= 1 {
		return 0, 1
	}
	width := func(t float64) (float64, float64, float64) {
		lower := QuantileBeta(t, p, q)
		upper := QuantileBeta(t+mass, p, q)
		return upper - lower, lower, upper
	}
	const invPhi = 0.6180339887498949
	a, b := 0.0, 1-mass
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	wc, _, _ := width(c)
	wd, _, _ := width(d)
	for i := 0; i < 64 && b-a > 1e-9; i++ {
		if wc < wd {
			b, d, wd = d, c, wc
			c = b - invPhi*(b-a)
			wc, _, _ = width(c)
		} else {
			a, c, wc = c, d, wd
			d = a + invPhi*(b-a)
			wd, _, _ = width(d)
		}
	}
	_, lo, hi = width((a + b) / 2)
	return lo, hi
}
