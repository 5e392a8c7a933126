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

// Package inference implements the latent-posterior models of the
// caller: the exact individual model, the trio model with de-novo
// mutation, and the variational Dirichlet-mixture models used for CNV
// and tumour calling.
package inference

import (
	"errors"
	"sync/atomic"

	"github.com/op/go-logging"
)

// log is the package logging variable.
var log = logging.MustGetLogger("inference")

// Error kinds of the inference core. Fatal errors abort the region
// only; ErrModelNotConverged is advisory and logged once per region.
var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrNumericalUnderflow = errors.New("numerical underflow")
	ErrModelNotConverged  = errors.New("model not converged")
	ErrCancelled          = errors.New("cancelled")
)

// Cancel is a cooperative cancellation flag. It is checked between
// inference stages and at each variational iteration.
type Cancel struct {
	flag int32
}

// Cancel requests cancellation.
func (c *Cancel) Cancel() {
	if c != nil {
		atomic.StoreInt32(&c.flag, 1)
	}
}

// Cancelled tells whether cancellation was requested.
func (c *Cancel) Cancelled() bool {
	return c != nil && atomic.LoadInt32(&c.flag) != 0
}

// Latents is the tagged union of per-model posterior state. Consumers
// switch on the concrete type; no other surface is exposed.
type Latents interface {
	latents()
}

func (*IndividualLatents) latents() {}
func (*TrioLatents) latents()       {}
func (*CNVLatents) latents()        {}
func (*TumourLatents) latents()     {}
