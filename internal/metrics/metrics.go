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
Package metrics provides Prometheus-compatible counters for Strata.

METRIC CATEGORIES:
==================
- Statements: executed, failed, latency
- Objects: created and dropped, by kind
- Sequences: values issued, batch reservations
- Sessions and transactions: active, committed, rolled back
- Locks: timeouts
- Value cache: hits, misses, evictions, entries

EXAMPLE METRICS:
================

	strata_statements_total 12345
	strata_objects_dropped_total{kind="TABLE"} 12
	strata_sequence_values_total 99999
	strata_value_cache_hits_total 424242

The text is written by WritePrometheus; the shell prints it on demand.
*/
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"strata/internal/value"
)

// Metrics holds all Strata counters.
type Metrics struct {
	// Statement metrics
	StatementsTotal  atomic.Uint64
	StatementsFailed atomic.Uint64

	// Statement latency (in microseconds)
	StatementLatencySum   atomic.Uint64
	StatementLatencyCount atomic.Uint64

	// Session metrics
	ActiveSessions atomic.Int64
	TotalSessions  atomic.Uint64

	// Transaction metrics
	TransactionsCommitted  atomic.Uint64
	TransactionsRolledBack atomic.Uint64

	// Sequence metrics
	SequenceValues atomic.Uint64

	// Lock metrics
	LockTimeouts atomic.Uint64

	// Per-kind object metrics
	kinds sync.Map // kind name -> *KindMetrics
}

// KindMetrics holds counters for one object kind.
type KindMetrics struct {
	Created atomic.Uint64
	Dropped atomic.Uint64
}

var globalMetrics = &Metrics{}

// Get returns the global metrics instance.
func Get() *Metrics {
	return globalMetrics
}

// Kind returns the counters for an object kind.
func (m *Metrics) Kind(kind string) *KindMetrics {
	if km, ok := m.kinds.Load(kind); ok {
		return km.(*KindMetrics)
	}
	actual, _ := m.kinds.LoadOrStore(kind, &KindMetrics{})
	return actual.(*KindMetrics)
}

// RecordStatement records one executed statement.
func (m *Metrics) RecordStatement(latency time.Duration, err error) {
	m.StatementsTotal.Add(1)
	m.StatementLatencySum.Add(uint64(latency.Microseconds()))
	m.StatementLatencyCount.Add(1)
	if err != nil {
		m.StatementsFailed.Add(1)
	}
}

// SessionOpened records a new session.
func (m *Metrics) SessionOpened() {
	m.ActiveSessions.Add(1)
	m.TotalSessions.Add(1)
}

// SessionClosed records a closed session.
func (m *Metrics) SessionClosed() {
	m.ActiveSessions.Add(-1)
}

// AverageStatementLatency returns the average latency in microseconds.
func (m *Metrics) AverageStatementLatency() float64 {
	count := m.StatementLatencyCount.Load()
	if count == 0 {
		return 0
	}
	return float64(m.StatementLatencySum.Load()) / float64(count)
}

// Snapshot carries gauges owned by other components.
type Snapshot struct {
	Cache                value.CacheStats
	Sequences            int
	SequenceReservations int64
}

// WritePrometheus writes every metric in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer, snap Snapshot) {
	counter(w, "strata_statements_total", "Statements executed", m.StatementsTotal.Load())
	counter(w, "strata_statements_failed_total", "Failed statements", m.StatementsFailed.Load())

	fmt.Fprintf(w, "# HELP strata_statement_latency_avg_microseconds Average statement latency\n")
	fmt.Fprintf(w, "# TYPE strata_statement_latency_avg_microseconds gauge\n")
	fmt.Fprintf(w, "strata_statement_latency_avg_microseconds %.2f\n", m.AverageStatementLatency())

	gauge(w, "strata_sessions_active", "Open sessions", m.ActiveSessions.Load())
	counter(w, "strata_sessions_total", "Sessions opened", m.TotalSessions.Load())
	counter(w, "strata_transactions_committed_total", "Committed transactions", m.TransactionsCommitted.Load())
	counter(w, "strata_transactions_rolled_back_total", "Rolled back transactions", m.TransactionsRolledBack.Load())
	counter(w, "strata_lock_timeouts_total", "Lock waits that timed out", m.LockTimeouts.Load())

	var kinds []string
	m.kinds.Range(func(k, _ any) bool {
		kinds = append(kinds, k.(string))
		return true
	})
	sort.Strings(kinds)

	fmt.Fprintf(w, "# HELP strata_objects_created_total Objects created by kind\n")
	fmt.Fprintf(w, "# TYPE strata_objects_created_total counter\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "strata_objects_created_total{kind=%q} %d\n", k, m.Kind(k).Created.Load())
	}
	fmt.Fprintf(w, "# HELP strata_objects_dropped_total Objects dropped by kind\n")
	fmt.Fprintf(w, "# TYPE strata_objects_dropped_total counter\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "strata_objects_dropped_total{kind=%q} %d\n", k, m.Kind(k).Dropped.Load())
	}

	counter(w, "strata_sequence_values_total", "Sequence values issued to sessions", m.SequenceValues.Load())
	gauge(w, "strata_sequences", "Sequences in the catalog", int64(snap.Sequences))
	gauge(w, "strata_sequence_reservations", "Durable batch reservations by live sequences", snap.SequenceReservations)

	counter(w, "strata_value_cache_hits_total", "Value cache hits", uint64(snap.Cache.Hits))
	counter(w, "strata_value_cache_misses_total", "Value cache misses", uint64(snap.Cache.Misses))
	counter(w, "strata_value_cache_evictions_total", "Value cache evictions", uint64(snap.Cache.Evictions))
	gauge(w, "strata_value_cache_entries", "Values currently cached", int64(snap.Cache.Entries))
	gauge(w, "strata_value_cache_capacity", "Value cache capacity", int64(snap.Cache.Capacity))
}

func counter(w io.Writer, name, help string, v uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, v)
}

func gauge(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	fmt.Fprintf(w, "%s %d\n", name, v)
}
