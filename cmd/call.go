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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/chapmanb/octopus/caller"
	"github.com/chapmanb/octopus/driver"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/inference"
	"github.com/chapmanb/octopus/intervals"
	"github.com/chapmanb/octopus/likelihood"
)

var logger = logging.MustGetLogger("cmd")

// CallHelp is the help string of the call command.
const CallHelp = "call parameters:\n" +
	"octopus call <scenario.json>\n" +
	"[--out file]\n" +
	"[--threads number]\n" +
	"[--checkpoint file]\n" +
	"[--log-path path]\n" +
	"[--loglevel level]\n" +
	"[--timed]\n" +
	"[--cpuprofile file]\n"

// scenarioVariant is a variant site in a scenario file. The reference
// span starts at begin; the alt allele covers the same span.
type scenarioVariant struct {
	Contig string `json:"contig"`
	Begin  int32  `json:"begin"`
	Ref    string `json:"ref"`
	Alt    string `json:"alt"`
}

// scenarioHaplotype lists the variant events a haplotype applies to
// the reference sequence. No events means the reference haplotype.
type scenarioHaplotype struct {
	Events []scenarioVariant `json:"events"`
}

// scenarioRegion is one active region of a scenario file. Likelihood
// rows are reads; columns follow the haplotype list order.
type scenarioRegion struct {
	Contig      string                 `json:"contig"`
	Begin       int32                  `json:"begin"`
	End         int32                  `json:"end"`
	Reference   string                 `json:"reference"`
	Haplotypes  []scenarioHaplotype    `json:"haplotypes"`
	Likelihoods map[string][][]float64 `json:"likelihoods"`
	Candidates  []scenarioVariant      `json:"candidates"`
}

type individualConfig struct {
	Sample               string  `json:"sample"`
	Ploidy               int     `json:"ploidy"`
	GermlineMutationRate float64 `json:"germline_mutation_rate"`
	MinVariantPosterior  float64 `json:"min_variant_posterior"`
}

type trioConfig struct {
	Mother               string  `json:"mother"`
	Father               string  `json:"father"`
	Child                string  `json:"child"`
	MaternalPloidy       int     `json:"maternal_ploidy"`
	PaternalPloidy       int     `json:"paternal_ploidy"`
	ChildPloidy          int     `json:"child_ploidy"`
	GermlineMutationRate float64 `json:"germline_mutation_rate"`
	DenovoMutationRate   float64 `json:"denovo_mutation_rate"`
	MinVariantPosterior  float64 `json:"min_variant_posterior"`
	MinDenovoPosterior   float64 `json:"min_denovo_posterior"`
}

type cancerConfig struct {
	Samples              []string `json:"samples"`
	NormalSample         string   `json:"normal_sample"`
	Ploidy               int      `json:"ploidy"`
	MaxGenotypes         int      `json:"max_genotypes"`
	GermlineMutationRate float64  `json:"germline_mutation_rate"`
	SomaticMutationRate  float64  `json:"somatic_mutation_rate"`
	MinVariantPosterior  float64  `json:"min_variant_posterior"`
	MinSomaticPosterior  float64  `json:"min_somatic_posterior"`
	MinSomaticFrequency  float64  `json:"min_somatic_frequency"`
	CredibleMass         float64  `json:"credible_mass"`
}

// scenarioConfig selects and configures one of the three callers.
type scenarioConfig struct {
	Caller     string            `json:"caller"`
	Individual *individualConfig `json:"individual,omitempty"`
	Trio       *trioConfig       `json:"trio,omitempty"`
	Cancer     *cancerConfig     `json:"cancer,omitempty"`
}

type scenarioFile struct {
	Config  scenarioConfig   `json:"config"`
	Regions []scenarioRegion `json:"regions"`
}

const (
	defaultGermlineMutationRate = 1e-3
	defaultDenovoMutationRate   = 1e-8
	defaultMinVariantPosterior  = 3.0
	defaultMaxGenotypes         = 20000
	defaultCredibleMass         = 0.99
)

func orDefault(value, fallback float64) float64 {
	if value == 0 {
		return fallback
	}
	return value
}

func buildCaller(config *scenarioConfig) (caller.Caller, error) {
	switch config.Caller {
	case "individual":
		if config.Individual == nil {
			return nil, fmt.Errorf("individual caller selected without individual configuration")
		}
		c := config.Individual
		return caller.NewIndividualCaller(caller.IndividualParameters{
			Sample:               c.Sample,
			Ploidy:               c.Ploidy,
			GermlineMutationRate: orDefault(c.GermlineMutationRate, defaultGermlineMutationRate),
			MinVariantPosterior:  orDefault(c.MinVariantPosterior, defaultMinVariantPosterior),
		})
	case "trio":
		if config.Trio == nil {
			return nil, fmt.Errorf("trio caller selected without trio configuration")
		}
		c := config.Trio
		return caller.NewTrioCaller(caller.TrioParameters{
			Trio:                 caller.Trio{Mother: c.Mother, Father: c.Father, Child: c.Child},
			MaternalPloidy:       c.MaternalPloidy,
			PaternalPloidy:       c.PaternalPloidy,
			ChildPloidy:          c.ChildPloidy,
			GermlineMutationRate: orDefault(c.GermlineMutationRate, defaultGermlineMutationRate),
			DenovoMutationRate:   orDefault(c.DenovoMutationRate, defaultDenovoMutationRate),
			MinVariantPosterior:  orDefault(c.MinVariantPosterior, defaultMinVariantPosterior),
			MinDenovoPosterior:   orDefault(c.MinDenovoPosterior, defaultMinVariantPosterior),
			Options:              inference.DefaultTrioOptions(),
		})
	case "cancer":
		if config.Cancer == nil {
			return nil, fmt.Errorf("cancer caller selected without cancer configuration")
		}
		c := config.Cancer
		maxGenotypes := c.MaxGenotypes
		if maxGenotypes == 0 {
			maxGenotypes = defaultMaxGenotypes
		}
		return caller.NewCancerCaller(caller.CancerParameters{
			Samples:              c.Samples,
			NormalSample:         c.NormalSample,
			Ploidy:               c.Ploidy,
			MaxGenotypes:         maxGenotypes,
			GermlineMutationRate: orDefault(c.GermlineMutationRate, defaultGermlineMutationRate),
			SomaticMutationRate:  c.SomaticMutationRate,
			MinVariantPosterior:  orDefault(c.MinVariantPosterior, defaultMinVariantPosterior),
			MinSomaticPosterior:  c.MinSomaticPosterior,
			MinSomaticFrequency:  c.MinSomaticFrequency,
			CredibleMass:         orDefault(c.CredibleMass, defaultCredibleMass),
			Variational:          inference.DefaultVariationalOptions(),
		})
	default:
		return nil, fmt.Errorf("unknown caller type %v", config.Caller)
	}
}

func buildVariant(v scenarioVariant) (genome.Variant, error) {
	site := genome.NewRegion(v.Contig, v.Begin, v.Begin+int32(len(v.Ref)))
	return genome.NewVariant(
		genome.Allele{Region: site, Bases: v.Ref},
		genome.Allele{Region: site, Bases: v.Alt},
	)
}

// buildTask turns a scenario region into a driver task: haplotypes are
// built from their events, sorted into the canonical pool order, and
// the likelihood columns are remapped accordingly.
func buildTask(s *scenarioRegion) (*driver.Task, error) {
	region := genome.NewRegion(s.Contig, s.Begin, s.End)
	refSequence := []byte(s.Reference)
	if int32(len(refSequence)) != region.Size() {
		return nil, fmt.Errorf("region %v: reference sequence has %v bases, expected %v",
			region, len(refSequence), region.Size())
	}

	haplotypes := make([]*genome.Haplotype, len(s.Haplotypes))
	for i, sh := range s.Haplotypes {
		events := make([]genome.Variant, len(sh.Events))
		for j, se := range sh.Events {
			event, err := buildVariant(se)
			if err != nil {
				return nil, err
			}
			events[j] = event
		}
		h, err := genome.NewHaplotype(region, refSequence, events)
		if err != nil {
			return nil, err
		}
		haplotypes[i] = h
	}

	pool := genome.SortUnique(haplotypes)
	if len(pool) != len(haplotypes) {
		return nil, fmt.Errorf("region %v: duplicate haplotypes in scenario", region)
	}
	permutation := make([]int, len(haplotypes))
	for i, h := range haplotypes {
		permutation[i] = sort.Search(len(pool), func(j int) bool {
			return pool[j].Compare(h) >= 0
		})
	}
	var reference *genome.Haplotype
	for _, h := range pool {
		if h.IsReference() {
			reference = h
			break
		}
	}
	if reference == nil {
		reference = genome.NewReferenceHaplotype(region, refSequence)
	}

	cache := likelihood.NewCache(pool)
	samples := make([]string, 0, len(s.Likelihoods))
	for sample := range s.Likelihoods {
		samples = append(samples, sample)
	}
	sort.Strings(samples)
	for _, sample := range samples {
		rows := s.Likelihoods[sample]
		remapped := make([][]float64, len(rows))
		for r, row := range rows {
			if len(row) != len(haplotypes) {
				return nil, fmt.Errorf("region %v: read %v of sample %v has %v likelihoods, expected %v",
					region, r, sample, len(row), len(haplotypes))
			}
			remappedRow := make([]float64, len(pool))
			for i, value := range row {
				remappedRow[permutation[i]] = value
			}
			remapped[r] = remappedRow
		}
		if err := cache.AddSample(sample, remapped); err != nil {
			return nil, err
		}
	}

	candidates := make([]genome.Variant, len(s.Candidates))
	for i, sc := range s.Candidates {
		candidate, err := buildVariant(sc)
		if err != nil {
			return nil, err
		}
		candidates[i] = candidate
	}

	return &driver.Task{Input: caller.Input{
		Region:      region,
		Pool:        pool,
		Reference:   reference,
		Likelihoods: cache,
		Candidates:  candidates,
	}}, nil
}

type outputSample struct {
	Sample           string       `json:"sample"`
	Genotype         []string     `json:"genotype"`
	Phred            float64      `json:"phred"`
	GermlineCredible [][2]float64 `json:"germline_credible,omitempty"`
	SomaticCredible  *[2]float64  `json:"somatic_credible,omitempty"`
}

type outputCall struct {
	Contig         string         `json:"contig"`
	Begin          int32          `json:"begin"`
	Ref            string         `json:"ref"`
	Alt            string         `json:"alt"`
	Phred          float64        `json:"phred"`
	Denovo         bool           `json:"denovo,omitempty"`
	DenovoPhred    float64        `json:"denovo_phred,omitempty"`
	Somatic        bool           `json:"somatic,omitempty"`
	SomaticSamples []string       `json:"somatic_samples,omitempty"`
	Samples        []outputSample `json:"samples"`
}

type outputRegion struct {
	Region      string       `json:"region"`
	Calls       []outputCall `json:"calls"`
	Skipped     string       `json:"skipped,omitempty"`
	LogEvidence float64      `json:"log_evidence"`
}

func formatCall(call *caller.VariantCall) outputCall {
	out := outputCall{
		Contig:         call.Variant.Ref.Region.Contig,
		Begin:          call.Variant.Ref.Region.Begin,
		Ref:            call.Variant.Ref.Bases,
		Alt:            call.Variant.Alt.Bases,
		Phred:          call.Phred,
		Denovo:         call.Denovo,
		DenovoPhred:    call.DenovoPhred,
		Somatic:        call.Somatic,
		SomaticSamples: call.SomaticSamples,
	}
	for _, sample := range call.Samples {
		alleles := make([]string, len(sample.Genotype.Alleles))
		for i, a := range sample.Genotype.Alleles {
			alleles[i] = a.Bases
		}
		formatted := outputSample{
			Sample:   sample.Sample,
			Genotype: alleles,
			Phred:    sample.Phred,
		}
		for _, interval := range sample.GermlineCredible {
			formatted.GermlineCredible = append(formatted.GermlineCredible, [2]float64{interval.Lo, interval.Hi})
		}
		if sample.SomaticCredible != nil {
			formatted.SomaticCredible = &[2]float64{sample.SomaticCredible.Lo, sample.SomaticCredible.Hi}
		}
		out.Samples = append(out.Samples, formatted)
	}
	return out
}

func formatResult(result caller.RegionResult) outputRegion {
	switch r := result.(type) {
	case caller.Calls:
		out := outputRegion{
			Region:      r.Region.String(),
			Calls:       []outputCall{},
			LogEvidence: r.LogEvidence,
		}
		for i := range r.Calls {
			out.Calls = append(out.Calls, formatCall(&r.Calls[i]))
		}
		return out
	case caller.Skipped:
		return outputRegion{Region: r.Region.String(), Skipped: r.Err.Error()}
	default:
		return outputRegion{}
	}
}

// checkScenarioRegions flattens the task regions per contig and checks
// that every candidate site falls inside the flattened active set.
// Overlapping regions are allowed, but since each region is called
// independently, overlaps are reported as a warning.
func checkScenarioRegions(tasks []*driver.Task) error {
	regions := make([]genome.Region, len(tasks))
	for i, task := range tasks {
		regions[i] = task.Input.Region
	}
	active, overlapping := intervals.FlattenRegions(regions)
	if overlapping {
		logger.Warning("scenario regions overlap; overlapping regions are called independently")
	}
	for _, task := range tasks {
		for _, candidate := range task.Input.Candidates {
			site := candidate.Region()
			if !intervals.Overlap(active[site.Contig], site.Begin, site.End) {
				return fmt.Errorf("candidate site %v lies outside the scenario regions", site)
			}
		}
	}
	return nil
}

// Call implements the call command.
func Call() error {
	app := kingpin.New("octopus call", "call variants from a prepared scenario")
	scenarioPath := app.Arg("scenario", "scenario file").Required().ExistingFile()
	outPath := app.Flag("out", "write calls to a file instead of standard output").String()
	threads := app.Flag("threads", "number of regions called in parallel").Int()
	checkpointPath := app.Flag("checkpoint", "record finished regions for resumption").String()
	logPath := app.Flag("log-path", "redirect the log to a timestamped file under this path").String()
	logLevel := app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	timed := app.Flag("timed", "log the calling time").Bool()
	cpuProfile := app.Flag("cpuprofile", "write cpu profile to file").String()
	if _, err := app.Parse(os.Args[2:]); err != nil {
		return err
	}

	logWriter := io.Writer(os.Stderr)
	if *logPath != "" {
		w, err := setLogOutput(*logPath)
		if err != nil {
			return err
		}
		logWriter = w
	}
	if err := setupLogging(*logLevel, logWriter); err != nil {
		return err
	}

	raw, err := ioutil.ReadFile(*scenarioPath)
	if err != nil {
		return err
	}
	var scenario scenarioFile
	if err := json.Unmarshal(raw, &scenario); err != nil {
		return err
	}

	regionCaller, err := buildCaller(&scenario.Config)
	if err != nil {
		return err
	}
	tasks := make([]*driver.Task, len(scenario.Regions))
	var contigOrder []string
	seenContigs := make(map[string]bool)
	for i := range scenario.Regions {
		task, err := buildTask(&scenario.Regions[i])
		if err != nil {
			return err
		}
		tasks[i] = task
		if contig := task.Input.Region.Contig; !seenContigs[contig] {
			seenContigs[contig] = true
			contigOrder = append(contigOrder, contig)
		}
	}
	if err := checkScenarioRegions(tasks); err != nil {
		return err
	}

	d := driver.NewDriver(regionCaller, *threads, contigOrder)
	if *checkpointPath != "" {
		store, err := driver.OpenCheckpointStore(*checkpointPath)
		if err != nil {
			return err
		}
		defer store.Close()
		d.Checkpoints = store
	}

	var results []outputRegion
	err = timedRun(*timed, *cpuProfile, "Calling variants.", func() error {
		return d.Run(tasks, func(result caller.RegionResult) {
			results = append(results, formatResult(result))
		})
	})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	if *outPath != "" {
		return ioutil.WriteFile(*outPath, encoded, 0644)
	}
	_, err = os.Stdout.Write(encoded)
	return err
}
