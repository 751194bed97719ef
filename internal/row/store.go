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

package row

import (
	"fmt"
	"sort"
	"sync"

	ferrors "strata/internal/errors"
)

// Store holds the rows of one table.
//
// Thread Safety: All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	columns   int
	maxRows   int
	rows      map[int64]*Row
	next      int64
	reclaimed bool
}

// NewStore creates a store for rows of the given width. A positive maxRows
// bounds the number of live rows.
func NewStore(columns, maxRows int) *Store {
	return &Store{
		columns: columns,
		maxRows: maxRows,
		rows:    make(map[int64]*Row),
	}
}

// Columns returns the row width the store accepts.
func (s *Store) Columns() int {
	return s.columns
}

// Add stores r and assigns its position.
func (s *Store) Add(r *Row) (int64, error) {
	if r.ColumnCount() != s.columns {
		return 0, ferrors.InvalidValue("row",
			fmt.Sprintf("has %d columns, table has %d", r.ColumnCount(), s.columns))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reclaimed {
		return 0, ferrors.NewStorageError("row store has been reclaimed")
	}
	if s.maxRows > 0 && len(s.rows) >= s.maxRows {
		return 0, ferrors.OutOfMemory(int64(len(s.rows) + 1))
	}

	s.next++
	r.SetPosition(s.next)
	s.rows[s.next] = r
	return s.next, nil
}

// Get returns the row at pos.
func (s *Store) Get(pos int64) (*Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[pos]
	return r, ok
}

// Remove deletes the row at pos and reports whether it existed.
func (s *Store) Remove(pos int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[pos]; !ok {
		return false
	}
	delete(s.rows, pos)
	return true
}

// Count returns the number of live rows.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Scan calls fn for each row in position order until fn returns false.
// The rows are snapshotted first, so fn may modify the store.
func (s *Store) Scan(fn func(*Row) bool) {
	s.mu.RLock()
	positions := make([]int64, 0, len(s.rows))
	for pos := range s.rows {
		positions = append(positions, pos)
	}
	rows := make(map[int64]*Row, len(s.rows))
	for pos, r := range s.rows {
		rows[pos] = r
	}
	s.mu.RUnlock()

	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	for _, pos := range positions {
		if !fn(rows[pos]) {
			return
		}
	}
}

// Reclaim releases every row. The store rejects further inserts.
func (s *Store) Reclaim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.rows)
	s.rows = make(map[int64]*Row)
	s.reclaimed = true
	return n
}

// Reclaimed reports whether Reclaim has run.
func (s *Store) Reclaimed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reclaimed
}
