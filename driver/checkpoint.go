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

package driver

import (
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/chapmanb/octopus/caller"
	"github.com/chapmanb/octopus/genome"
	"github.com/chapmanb/octopus/inference"
)

var regionsBucket = []byte("regions")

// CheckpointStore records finished regions in a bolt database so an
// interrupted run can resume where it left off.
type CheckpointStore struct {
	db *bolt.DB
}

// checkpointRecord is the persisted summary of one finished region.
type checkpointRecord struct {
	RunID    string    `json:"run_id"`
	Region   string    `json:"region"`
	NumCalls int       `json:"num_calls"`
	Skipped  string    `json:"skipped,omitempty"`
	Finished time.Time `json:"finished"`
}

// OpenCheckpointStore opens or creates a checkpoint database.
func OpenCheckpointStore(path string) (*CheckpointStore, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(regionsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &CheckpointStore{db: db}, nil
}

// Close closes the underlying database.
func (store *CheckpointStore) Close() error {
	return store.db.Close()
}

// Done tells whether a region was already called by a previous run.
func (store *CheckpointStore) Done(region genome.Region) (bool, error) {
	var done bool
	err := store.db.View(func(tx *bolt.Tx) error {
		done = tx.Bucket(regionsBucket).Get([]byte(region.String())) != nil
		return nil
	})
	return done, err
}

// MarkDone records the outcome of a finished region. Cancelled regions
// are not recorded, so a resumed run will call them again.
func (store *CheckpointStore) MarkDone(runID string, result caller.RegionResult) error {
	record := checkpointRecord{
		RunID:    runID,
		Finished: time.Now(),
	}
	switch r := result.(type) {
	case caller.Calls:
		record.Region = r.Region.String()
		record.NumCalls = len(r.Calls)
	case caller.Skipped:
		if r.Err != nil && !errors.Is(r.Err, inference.ErrCancelled) {
			record.Region = r.Region.String()
			record.Skipped = r.Err.Error()
		}
	}
	if record.Region == "" {
		return nil
	}
	encoded, err := json.Marshal(&record)
	if err != nil {
		return err
	}
	return store.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(regionsBucket).Put([]byte(record.Region), encoded)
	})
}
