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

// Package caller turns model posteriors into variant calls. It hosts
// the three callers of the program (individual, trio, cancer), the
// model combiner of the cancer caller, and the shared call extraction
// machinery.
package caller

import (
	"fmt"

	"github.com/op/go-logging"

	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/genotype"
	"github.com/chapmanb/octopus/inference"
	"github.com/chapmanb/octopus/likelihood"
)

// log is the package logging variable.
var log = logging.MustGetLogger("caller")

// Input is everything a caller needs for one active region. The
// haplotype pool is in canonical order and the reference haplotype is a
// member of it.
type Input struct {
	Region      genome.Region
	Pool        []*genome.Haplotype
	Reference   *genome.Haplotype
	Likelihoods *likelihood.Cache
	Candidates  []genome.Variant
	Cancel      *inference.Cancel
}

// CredibleInterval is a highest-density interval of a mixture weight.
type CredibleInterval struct {
	Lo, Hi float64
}

// SampleCall is the genotype call of one sample at one variant site.
type SampleCall struct {
	Sample   string
	Genotype genotype.AlleleGenotype
	Phred    float64
	// GermlineCredible holds one interval per germline mixture slot;
	// only the cancer caller fills it.
	GermlineCredible []CredibleInterval
	// SomaticCredible is the interval of the somatic mixture weight,
	// present on somatic calls only.
	SomaticCredible *CredibleInterval
}

// VariantCall is one emitted call record.
type VariantCall struct {
	Variant genome.Variant
	// Phred is the overall posterior that the alt allele is present.
	Phred   float64
	Samples []SampleCall
	// Denovo marks trio calls of alleles absent from both parents;
	// DenovoPhred is the posterior of the de-novo origin.
	Denovo      bool
	DenovoPhred float64
	// Somatic marks cancer calls supported only by the somatic
	// haplotype; SomaticSamples lists the samples whose somatic
	// fraction credibly exceeds the calling threshold.
	Somatic        bool
	SomaticSamples []string
}

// RegionResult is the outcome of calling one region: either a call
// list or a skip with its reason. No error crosses the region boundary
// in any other form.
type RegionResult interface {
	regionResult()
}

// Calls is the successful outcome of a region.
type Calls struct {
	Region genome.Region
	Calls  []VariantCall
	// LogEvidence is the model evidence of the region under the
	// caller's primary model.
	LogEvidence float64
}

// Skipped is the outcome of a region that produced no calls.
type Skipped struct {
	Region genome.Region
	Err    error
}

func (Calls) regionResult()   {}
func (Skipped) regionResult() {}

// stage is the per-region pipeline state.
type stage int

const (
	stageIdle stage = iota
	stageEnumerating
	stageInferring
	stageCombining
	stageExtracting
	stageDone
	stageFailed
)

func (s stage) String() string {
	switch s {
	case stageIdle:
		return "idle"
	case stageEnumerating:
		return "enumerating"
	case stageInferring:
		return "inferring"
	case stageCombining:
		return "combining"
	case stageExtracting:
		return "extracting"
	case stageDone:
		return "done"
	default:
		return "failed"
	}
}

// run tracks the linear pipeline state of one region.
type run struct {
	region genome.Region
	stage  stage
}

func (r *run) enter(next stage) {
	r.stage = next
	log.Debugf("region %v: %v", r.region, next)
}

func (r *run) fail(err error) RegionResult {
	r.stage = stageFailed
	log.Warningf("region %v skipped: %v", r.region, err)
	return Skipped{Region: r.region, Err: err}
}

func (r *run) done(calls []VariantCall, logEvidence float64) RegionResult {
	r.stage = stageDone
	return Calls{Region: r.region, Calls: calls, LogEvidence: logEvidence}
}

// Caller is the tagged union of the three callers. The concrete types
// are IndividualCaller, TrioCaller, and CancerCaller.
type Caller interface {
	// Samples returns the sample names the caller consumes, in the
	// order it reports them.
	Samples() []string
	callRegion(in *Input, r *run) RegionResult
}

// CallRegion drives the region pipeline of any caller. Regions with no
// haplotypes or no candidates yield an empty call list.
func CallRegion(c Caller, in *Input) RegionResult {
	r := &run{region: in.Region, stage: stageIdle}
	if in.Cancel.Cancelled() {
		return r.fail(inference.ErrCancelled)
	}
	if len(in.Pool) == 0 || len(in.Candidates) == 0 {
		return r.done(nil, 0)
	}
	if in.Reference == nil {
		return r.fail(fmt.Errorf("%w: no reference haplotype in region %v", inference.ErrInvalidParameter, in.Region))
	}
	return c.callRegion(in, r)
}

// CallReference is the reference-block hook of the callers. No caller
// currently produces reference blocks, so the result is always empty.
func CallReference(c Caller, in *Input) []VariantCall {
	return nil
}
