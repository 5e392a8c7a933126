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

// octopus is a Bayesian haplotype-based variant caller: it infers
// genotype posteriors over candidate haplotypes under germline, trio,
// and tumour/normal models, and emits calibrated variant calls.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/chapmanb/octopus/cmd"
	"github.com/chapmanb/octopus/utils"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: call, version")
	fmt.Fprint(os.Stderr, "\n", cmd.CallHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "call":
		err = cmd.Call()
	case "version", "-version", "--version":
		fmt.Println(utils.ProgramName, "version", utils.ProgramVersion)
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Printf("Unknown command %v.\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}
