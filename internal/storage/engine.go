/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package storage provides the persistence layer for Strata.

Storage Engine Overview:
========================

The storage package defines the Engine interface and two
implementations: a key-value store backed by a Write-Ahead Log (WAL)
and a purely in-memory engine for tests and scratch databases.

Architecture:
=============

	┌─────────────────────────────────────────────────────┐
	│              Catalog / Auth / Sequences             │
	└─────────────────────────────────────────────────────┘
	                         │
	                         ▼
	┌─────────────────────────────────────────────────────┐
	│                  Engine Interface                   │
	│      (Put, Get, Delete, Scan, Apply, Close)         │
	└─────────────────────────────────────────────────────┘
	             │                           │
	             ▼                           ▼
	┌────────────────────────┐  ┌────────────────────────┐
	│        KVStore         │  │     MemoryEngine       │
	│   map + WAL on disk    │  │      map only          │
	└────────────────────────┘  └────────────────────────┘

Key Conventions:
================

	meta:<id>       - Schema object metadata (JSON)
	seq:<id>        - Durable high mark of a sequence (decimal)
	user:<name>     - User credentials and rights (JSON)

Durability Model:
=================

 1. Every Put/Delete/Apply is first appended to the WAL
 2. A batch is one WAL record, so it is replayed all or nothing
 3. On startup the WAL is replayed to rebuild the in-memory map
*/
package storage

import "errors"

// ErrNotFound is returned when a requested key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Engine defines the interface for the storage engine.
//
// All implementations must be safe for concurrent use. Once a write
// returns successfully, the data survives a restart of durable engines.
type Engine interface {
	// Put stores a value, overwriting any previous value for key.
	Put(key string, value []byte) error

	// Get retrieves the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Scan returns every key-value pair whose key starts with prefix.
	Scan(prefix string) (map[string][]byte, error)

	// Apply performs every mutation of the batch atomically.
	Apply(b *Batch) error

	// Close releases resources. No other method may be called afterwards.
	Close() error
}

// Mutation is one entry of a Batch.
type Mutation struct {
	Op    byte
	Key   string
	Value []byte
}

// Batch collects mutations that are applied together.
type Batch struct {
	ops []Mutation
}

// Put queues a put of key.
func (b *Batch) Put(key string, value []byte) {
	b.ops = append(b.ops, Mutation{Op: OpPut, Key: key, Value: value})
}

// Delete queues a delete of key.
func (b *Batch) Delete(key string) {
	b.ops = append(b.ops, Mutation{Op: OpDelete, Key: key})
}

// Len returns the number of queued mutations.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ops)
}

// Mutations returns the queued mutations in order.
func (b *Batch) Mutations() []Mutation {
	return b.ops
}

// applyTo replays the batch onto a plain map.
func (b *Batch) applyTo(data map[string][]byte) {
	for _, m := range b.ops {
		switch m.Op {
		case OpPut:
			data[m.Key] = m.Value
		case OpDelete:
			delete(data, m.Key)
		}
	}
}
