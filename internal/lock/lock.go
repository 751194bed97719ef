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
Package lock implements the per-object lock manager used by DDL.

Locks are shared or exclusive, keyed by schema object ID and owned by a
transaction ID. A transaction holding a shared lock may upgrade to
exclusive once it is the only holder. All locks of an owner are released
together at commit or rollback.

A waiter polls with a short constant backoff until the lock is granted,
the timeout elapses (LockTimeout) or its context is done. There is no
deadlock detection; the timeout breaks cycles.
*/
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	ferrors "strata/internal/errors"
)

// Mode is the strength of a lock.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "EXCLUSIVE"
	}
	return "SHARED"
}

// PollInterval is the wait between attempts on a contended lock.
var PollInterval = 2 * time.Millisecond

var errBusy = errors.New("lock busy")

// Manager grants object locks to transactions.
type Manager struct {
	mu      sync.Mutex
	holders map[int64]map[string]Mode
	owned   map[string]map[int64]struct{}
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{
		holders: make(map[int64]map[string]Mode),
		owned:   make(map[string]map[int64]struct{}),
	}
}

// Acquire blocks until owner holds obj in at least mode. name is used in
// the LockTimeout error. A non-positive timeout makes a single attempt.
func (m *Manager) Acquire(ctx context.Context, owner string, obj int64, name string, mode Mode, timeout time.Duration) error {
	if m.tryAcquire(owner, obj, mode) {
		return nil
	}
	if timeout <= 0 {
		return ferrors.LockTimeout(name)
	}

	b := retry.WithMaxDuration(timeout, retry.NewConstant(PollInterval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if m.tryAcquire(owner, obj, mode) {
			return nil
		}
		return retry.RetryableError(errBusy)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errBusy):
		return ferrors.LockTimeout(name).WithDetail(fmt.Sprintf("%s: waited %s for %s lock", name, timeout, mode))
	default:
		return err
	}
}

func (m *Manager) tryAcquire(owner string, obj int64, mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	holders := m.holders[obj]
	if held, ok := holders[owner]; ok && (held == Exclusive || mode == Shared) {
		return true
	}

	for other, held := range holders {
		if other == owner {
			continue
		}
		if mode == Exclusive || held == Exclusive {
			return false
		}
	}

	if holders == nil {
		holders = make(map[string]Mode)
		m.holders[obj] = holders
	}
	holders[owner] = mode
	if m.owned[owner] == nil {
		m.owned[owner] = make(map[int64]struct{})
	}
	m.owned[owner][obj] = struct{}{}
	return true
}

// Holds reports whether owner holds obj in at least mode.
func (m *Manager) Holds(owner string, obj int64, mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, ok := m.holders[obj][owner]
	return ok && (held == Exclusive || mode == Shared)
}

// ReleaseAll drops every lock held by owner and returns how many there were.
func (m *Manager) ReleaseAll(owner string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	objs := m.owned[owner]
	for obj := range objs {
		delete(m.holders[obj], owner)
		if len(m.holders[obj]) == 0 {
			delete(m.holders, obj)
		}
	}
	delete(m.owned, owner)
	return len(objs)
}

// Count returns the number of locked objects.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.holders)
}
