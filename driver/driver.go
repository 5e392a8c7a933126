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

// Package driver schedules active regions over a worker pipeline. It is
// the sole concurrency owner of the program: regions run in parallel,
// inference within a region is single threaded, and results are emitted
// in genomic order regardless of completion order.
package driver

import (
	"runtime"
	"sort"

	"github.com/exascience/pargo/pipeline"
	"github.com/google/uuid"
	"github.com/op/go-logging"

	"github.com/chapmanb/octopus/caller"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/inference"
)

// log is the package logging variable.
var log = logging.MustGetLogger("driver")

// Task is one active region ready for calling.
type Task struct {
	Input caller.Input
}

// Driver runs a caller over a set of region tasks.
type Driver struct {
	Caller caller.Caller
	// Threads bounds the number of regions in flight. Zero or negative
	// uses all processors.
	Threads int
	// ContigOrder ranks contig names for output ordering. Contigs not
	// listed sort after listed ones, by name.
	ContigOrder []string
	// Checkpoints, when set, records finished regions so an interrupted
	// run can resume without recalling them.
	Checkpoints *CheckpointStore
	// RunID identifies one driver run in logs and checkpoints.
	RunID string
	// Cancel aborts in-flight and pending regions cooperatively.
	Cancel inference.Cancel
}

// NewDriver creates a driver with a fresh run identity.
func NewDriver(c caller.Caller, threads int, contigOrder []string) *Driver {
	return &Driver{
		Caller:      c,
		Threads:     threads,
		ContigOrder: contigOrder,
		RunID:       uuid.New().String(),
	}
}

func (d *Driver) contigRank(contig string) int {
	for i, name := range d.ContigOrder {
		if name == contig {
			return i
		}
	}
	return len(d.ContigOrder)
}

// sortTasks orders tasks genomically: by contig rank, then by region.
func (d *Driver) sortTasks(tasks []*Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ri, rj := tasks[i].Input.Region, tasks[j].Input.Region
		ranki, rankj := d.contigRank(ri.Contig), d.contigRank(rj.Contig)
		if ranki != rankj {
			return ranki < rankj
		}
		if ri.Contig != rj.Contig {
			return ri.Contig < rj.Contig
		}
		return ri.Compare(rj) < 0
	})
}

// Run calls every task region and emits the results in genomic order.
// Region workers may finish out of order; the ordered stage of the
// pipeline serialises emission.
func (d *Driver) Run(tasks []*Task, emit func(caller.RegionResult)) error {
	d.sortTasks(tasks)
	threads := d.Threads
	if threads < 1 {
		threads = runtime.GOMAXPROCS(0)
	}
	log.Infof("run %v: calling %v regions on %v workers", d.RunID, len(tasks), threads)

	taskChannel := make(chan *Task, threads)
	go func() {
		defer close(taskChannel)
		for _, task := range tasks {
			if d.Cancel.Cancelled() {
				return
			}
			taskChannel <- task
		}
	}()

	var p pipeline.Pipeline
	p.Source(pipeline.NewSingletonChan(taskChannel))
	p.SetVariableBatchSize(1, 1)
	p.Add(
		pipeline.LimitedPar(threads, pipeline.Receive(func(_ int, data interface{}) interface{} {
			task := data.(*Task)
			if done, err := d.checkpointed(task.Input.Region); err != nil {
				return caller.Skipped{Region: task.Input.Region, Err: err}
			} else if done {
				log.Debugf("run %v: region %v already called, skipping", d.RunID, task.Input.Region)
				return nil
			}
			task.Input.Cancel = &d.Cancel
			return caller.CallRegion(d.Caller, &task.Input)
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			if data == nil {
				return nil
			}
			result := data.(caller.RegionResult)
			if err := d.checkpoint(result); err != nil {
				log.Warningf("run %v: checkpoint write failed: %v", d.RunID, err)
			}
			emit(result)
			return nil
		})),
	)
	p.Run()
	if err := p.Err(); err != nil {
		return err
	}
	if d.Cancel.Cancelled() {
		return inference.ErrCancelled
	}
	return nil
}

func (d *Driver) checkpointed(region genome.Region) (bool, error) {
	if d.Checkpoints == nil {
		return false, nil
	}
	return d.Checkpoints.Done(region)
}

func (d *Driver) checkpoint(result caller.RegionResult) error {
	if d.Checkpoints == nil {
		return nil
	}
	return d.Checkpoints.MarkDone(d.RunID, result)
}
