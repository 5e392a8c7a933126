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

// plot_credible draws the Beta posterior of a somatic mixture weight
// together with its highest-density interval, for inspecting the
// credible-interval gate of the cancer caller.
package main

import (
	"flag"
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/chapmanb/octopus/dist"
)

func betaLogPdf(x, p, q float64) float64 {
	return (p-1)*math.Log(x) + (q-1)*math.Log(1-x) - dist.LnBeta([]float64{p, q})
}

func main() {
	alpha := flag.Float64("alpha", 1, "somatic concentration")
	beta := flag.Float64("beta", 20, "summed germline concentration")
	mass := flag.Float64("mass", 0.99, "credible mass")
	points := flag.Int("points", 512, "number of plotted points")
	out := flag.String("out", "credible.png", "output file")
	flag.Parse()

	lo, hi := dist.BetaHDI(*alpha, *beta, *mass)
	fmt.Printf("HDI(%v): [%v, %v]\n", *mass, lo, hi)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Beta(%v, %v)", *alpha, *beta)
	p.X.Label.Text = "somatic fraction"
	p.Y.Label.Text = "density"

	pts := make(plotter.XYs, *points)
	for i := range pts {
		x := (float64(i) + 0.5) / float64(*points)
		pts[i].X = x
		pts[i].Y = math.Exp(betaLogPdf(x, *alpha, *beta))
	}
	bounds := make(plotter.XYs, 2)
	bounds[0].X, bounds[0].Y = lo, 0
	bounds[1].X, bounds[1].Y = hi, 0

	if err := plotutil.AddLinePoints(p, "density", pts, "hdi", bounds); err != nil {
		panic(err)
	}

	if err := p.Save(4*vg.Inch, 4*vg.Inch, *out); err != nil {
		panic(err)
	}
}
