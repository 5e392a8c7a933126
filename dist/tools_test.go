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

package dist

import (
	"math"
	"testing"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestLogSumExp(t *testing.T) {
	if !math.IsInf(LogSumExp(nil), -1) {
		t.Error("LogSumExp empty failed")
	}
	if !math.IsInf(LogSumExp([]float64{math.Inf(-1), math.Inf(-1)}), -1) {
		t.Error("LogSumExp all -Inf failed")
	}
	if !almostEqual(LogSumExp([]float64{-3}), -3, 1e-12) {
		t.Error("LogSumExp singleton failed")
	}
	if !almostEqual(LogSumExp([]float64{0, 0}), math.Log(2), 1e-12) {
		t.Error("LogSumExp equal values failed")
	}
	if !almostEqual(LogSumExp([]float64{math.Log(1), math.Log(2), math.Log(3)}), math.Log(6), 1e-12) {
		t.Error("LogSumExp mixed values failed")
	}
	if !almostEqual(LogSumExp([]float64{-1000, -1001}), LogSumExp2(-1000, -1001), 1e-12) {
		t.Error("LogSumExp extreme values failed")
	}
}

func TestLogSumExp2(t *testing.T) {
	if !math.IsInf(LogSumExp2(math.Inf(-1), math.Inf(-1)), -1) {
		t.Error("LogSumExp2 -Inf failed")
	}
	if !almostEqual(LogSumExp2(0, 0), math.Log(2), 1e-12) {
		t.Error("LogSumExp2 equal values failed")
	}
	if !almostEqual(LogSumExp2(math.Log(3), math.Log(1)), math.Log(4), 1e-12) {
		t.Error("LogSumExp2 ordered values failed")
	}
	if LogSumExp2(math.Log(1), math.Log(3)) != LogSumExp2(math.Log(3), math.Log(1)) {
		t.Error("LogSumExp2 symmetry failed")
	}
}

func TestNormaliseLogs(t *testing.T) {
	logs := []float64{math.Log(1), math.Log(3)}
	norm := NormaliseLogs(logs)
	if !almostEqual(norm, math.Log(4), 1e-12) {
		t.Error("NormaliseLogs normaliser failed")
	}
	if !almostEqual(logs[0], 0.25, 1e-12) || !almostEqual(logs[1], 0.75, 1e-12) {
		t.Error("NormaliseLogs values failed")
	}

	vanished := []float64{math.Inf(-1), math.Inf(-1)}
	norm = NormaliseLogs(vanished)
	if !math.IsInf(norm, -1) {
		t.Error("NormaliseLogs -Inf normaliser failed")
	}
	if !math.IsInf(vanished[0], -1) || !math.IsInf(vanished[1], -1) {
		t.Error("NormaliseLogs -Inf passthrough failed")
	}

	// Extreme offsets must not underflow the dominant value.
	extreme := []float64{-10000, -10100}
	NormaliseLogs(extreme)
	if !almostEqual(extreme[0], 1, 1e-12) || extreme[1] != math.Exp(-100) {
		t.Error("NormaliseLogs extreme offset failed")
	}
}

func TestPhred(t *testing.T) {
	if PhredFromProb(0) != 0 {
		t.Error("PhredFromProb 0 failed")
	}
	if !almostEqual(PhredFromProb(0.9), 10, 1e-9) {
		t.Error("PhredFromProb 0.9 failed")
	}
	if !almostEqual(PhredFromProb(0.999), 30, 1e-9) {
		t.Error("PhredFromProb 0.999 failed")
	}
	if PhredFromProb(1) != MaxPhred {
		t.Error("PhredFromProb 1 failed")
	}
	if PhredFromProb(1-1e-300) != MaxPhred {
		t.Error("PhredFromProb clipping failed")
	}
	if !almostEqual(PhredFromLnNotProb(math.Log(0.001)), 30, 1e-9) {
		t.Error("PhredFromLnNotProb failed")
	}
	if PhredFromLnNotProb(-10000) != MaxPhred {
		t.Error("PhredFromLnNotProb clipping failed")
	}
	if PhredFromLnNotProb(0) != 0 {
		t.Error("PhredFromLnNotProb 0 failed")
	}
}

func TestDigamma(t *testing.T) {
	const eulerMascheroni = 0.5772156649015329
	if !almostEqual(Digamma(1), -eulerMascheroni, 1e-9) {
		t.Error("Digamma 1 failed")
	}
	// recurrence psi(x+1) = psi(x) + 1/x
	for _, x := range []float64{0.5, 1, 2.5, 10} {
		if !almostEqual(Digamma(x+1), Digamma(x)+1/x, 1e-9) {
			t.Error("Digamma recurrence failed")
		}
	}
}

func TestLnBeta(t *testing.T) {
	if !almostEqual(LnBeta([]float64{1, 1}), 0, 1e-12) {
		t.Error("LnBeta uniform failed")
	}
	if !almostEqual(LnBeta([]float64{2, 2}), -math.Log(6), 1e-12) {
		t.Error("LnBeta (2,2) failed")
	}
	if !almostEqual(LnBeta([]float64{1, 1, 1}), -math.Log(2), 1e-12) {
		t.Error("LnBeta trivariate failed")
	}
}

func TestCDFBeta(t *testing.T) {
	if CDFBeta(-1, 2, 3) != 0 || CDFBeta(0, 2, 3) != 0 {
		t.Error("CDFBeta lower bound failed")
	}
	if CDFBeta(1, 2, 3) != 1 || CDFBeta(2, 2, 3) != 1 {
		t.Error("CDFBeta upper bound failed")
	}
	if !almostEqual(CDFBeta(0.5, 1, 1), 0.5, 1e-9) {
		t.Error("CDFBeta uniform failed")
	}
	if !almostEqual(CDFBeta(0.3, 2, 1), 0.09, 1e-9) {
		t.Error("CDFBeta (2,1) failed")
	}
}

func TestQuantileBeta(t *testing.T) {
	if QuantileBeta(0, 2, 3) != 0 || QuantileBeta(1, 2, 3) != 1 {
		t.Error("QuantileBeta bounds failed")
	}
	if !almostEqual(QuantileBeta(0.25, 2, 1), 0.5, 1e-9) {
		t.Error("QuantileBeta (2,1) failed")
	}
	for _, prob := range []float64{0.1, 0.5, 0.9} {
		if !almostEqual(CDFBeta(QuantileBeta(prob, 5, 2), 5, 2), prob, 1e-9) {
			t.Error("QuantileBeta round trip failed")
		}
	}
}

func TestBetaHDI(t *testing.T) {
	lo, hi := BetaHDI(5, 5, 1)
	if lo != 0 || hi != 1 {
		t.Error("BetaHDI full mass failed")
	}

	lo, hi = BetaHDI(1, 1, 0.9)
	if !almostEqual(hi-lo, 0.9, 1e-3) {
		t.Error("BetaHDI uniform width failed")
	}

	lo, hi = BetaHDI(5, 5, 0.95)
	if !almostEqual(lo+hi, 1, 1e-3) {
		t.Error("BetaHDI symmetry failed")
	}
	if !almostEqual(CDFBeta(hi, 5, 5)-CDFBeta(lo, 5, 5), 0.95, 1e-3) {
		t.Error("BetaHDI coverage failed")
	}

	// A skewed distribution keeps its interval inside the unit range.
	lo, hi = BetaHDI(0.5, 20, 0.99)
	if lo < 0 || hi > 1 || lo >= hi {
		t.Error("BetaHDI skewed bounds failed")
	}
	if !almostEqual(CDFBeta(hi, 0.5, 20)-CDFBeta(lo, 0.5, 20), 0.99, 1e-2) {
		t.Error("BetaHDI skewed coverage failed")
	}
}
