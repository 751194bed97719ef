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
Package sequence implements the batched sequence allocator.

Allocation Overview:
====================

A sequence hands out start, start+increment, start+2*increment, ... Each
value is strictly greater than every value handed out before it, across
all goroutines and across restarts.

	         issued         cached (not yet issued)
	  ─────────────────┼──────────────────────────┼─────────────
	                  next                    reserved (durable base)

  - next is the next value to hand out.
  - reserved is the exclusive upper bound of values that may be handed
    out without touching storage. It is persisted before it is published.

Fast path: while next < reserved, a compare-and-swap on next claims a
value. No lock is taken.

Exhausted path: under the per-sequence mutex, reserved is advanced by
cacheSize*increment, written through the Persister, then published.

After a crash, allocation resumes at the durable base, so at most
cacheSize-1 values are skipped. Close persists the exact next value so a
clean shutdown skips nothing.

Values are issued while they are at most MaxValue and adding the
increment to them cannot overflow int64.
*/
package sequence

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	ferrors "strata/internal/errors"
	"strata/internal/logging"
)

// frozen parks next while Close persists it. No sequence starts there.
const frozen = math.MinInt64

// DefaultCacheSize is the number of values reserved per durable write.
const DefaultCacheSize = 32

// Persister records a sequence's durable base.
type Persister interface {
	PersistBase(s *Sequence, base int64) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(s *Sequence, base int64) error

func (f PersisterFunc) PersistBase(s *Sequence, base int64) error { return f(s, base) }

// Options configures a new sequence.
type Options struct {
	Start     int64
	Increment int64
	CacheSize int64
	// MaxValue defaults to math.MaxInt64 when zero.
	MaxValue int64
}

// DefaultOptions returns start 1, increment 1 and the default cache size.
func DefaultOptions() Options {
	return Options{Start: 1, Increment: 1, CacheSize: DefaultCacheSize, MaxValue: math.MaxInt64}
}

// Validate checks the options and fills in MaxValue.
func (o *Options) Validate() error {
	if o.Increment <= 0 {
		return ferrors.InvalidValue("INCREMENT", "must be greater than zero")
	}
	if o.CacheSize < 1 {
		return ferrors.InvalidValue("CACHE", "must be at least 1")
	}
	if o.Start == frozen {
		return ferrors.InvalidValue("START", "out of range")
	}
	if o.MaxValue == 0 {
		o.MaxValue = math.MaxInt64
	}
	if o.Start > o.MaxValue {
		return ferrors.InvalidValue("START", fmt.Sprintf("%d is above MAXVALUE %d", o.Start, o.MaxValue))
	}
	return nil
}

// Sequence is a concurrency-safe allocator of increasing int64 values.
type Sequence struct {
	name      string
	start     int64
	increment int64
	cacheSize int64
	maxValue  int64
	// limit is the largest value that may be issued.
	limit int64

	next     atomic.Int64
	reserved atomic.Int64
	// parked holds the next value while Close has next frozen.
	parked atomic.Int64

	mu           sync.Mutex
	persister    Persister
	reservations atomic.Int64
	log          *logging.Logger
}

// New creates a sequence that has issued nothing yet. base is the durable
// base loaded from storage, or opts.Start for a new sequence.
func New(name string, opts Options, base int64, p Persister) (*Sequence, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	limit := opts.MaxValue
	if limit > math.MaxInt64-opts.Increment {
		limit = math.MaxInt64 - opts.Increment
	}
	if base < opts.Start {
		base = opts.Start
	}

	s := &Sequence{
		name:      name,
		start:     opts.Start,
		increment: opts.Increment,
		cacheSize: opts.CacheSize,
		maxValue:  opts.MaxValue,
		limit:     limit,
		persister: p,
		log:       logging.NewLogger("sequence").With("sequence", name),
	}
	s.next.Store(base)
	s.reserved.Store(base)
	return s, nil
}

// Next returns the next value.
func (s *Sequence) Next() (int64, error) {
	for {
		cur := s.next.Load()
		if cur < s.reserved.Load() {
			if s.next.CompareAndSwap(cur, cur+s.increment) {
				return cur, nil
			}
			continue
		}
		if err := s.reserve(); err != nil {
			return 0, err
		}
	}
}

// reserve advances the durable base unless another goroutine already did.
func (s *Sequence) reserve() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.next.Load()
	if cur < s.reserved.Load() {
		return nil
	}
	resuming := cur == frozen
	if resuming {
		cur = s.parked.Load()
	}
	if cur > s.limit {
		return ferrors.SequenceExhausted(s.name, s.maxValue)
	}

	// Values at or above limit+1 are never issued, so clamp there.
	newBase := int64(math.MaxInt64)
	if s.cacheSize <= (math.MaxInt64-cur)/s.increment {
		newBase = cur + s.cacheSize*s.increment
	}
	if newBase > s.limit+1 {
		newBase = s.limit + 1
	}

	if s.persister != nil {
		if err := s.persister.PersistBase(s, newBase); err != nil {
			return err
		}
	}
	// next leaves the sentinel only once the new base is durable, so a
	// claim that loaded cur before Close can only succeed on a covered value.
	if resuming {
		s.next.Store(cur)
	}
	s.reserved.Store(newBase)
	s.reservations.Add(1)
	s.log.Debug("Reserved sequence values", "from", cur, "base", newBase)
	return nil
}

// Close persists the exact next value so a restart skips nothing. Values
// requested afterwards are reserved again.
func (s *Sequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stop the fast path, then park next on a sentinel. It stays there
	// until reserve makes a new base durable.
	s.reserved.Store(frozen)
	var cur int64
	for {
		cur = s.next.Load()
		if cur == frozen {
			cur = s.parked.Load()
			break
		}
		if s.next.CompareAndSwap(cur, frozen) {
			s.parked.Store(cur)
			break
		}
	}

	if s.persister != nil {
		return s.persister.PersistBase(s, cur)
	}
	return nil
}

// Name returns the sequence name.
func (s *Sequence) Name() string { return s.name }

// CurrentBase returns the durable high mark.
func (s *Sequence) CurrentBase() int64 {
	if b := s.reserved.Load(); b != frozen {
		return b
	}
	return s.parked.Load()
}

// NextValue returns the value the next call to Next would return.
func (s *Sequence) NextValue() int64 {
	if v := s.next.Load(); v != frozen {
		return v
	}
	return s.parked.Load()
}

func (s *Sequence) Start() int64     { return s.start }
func (s *Sequence) Increment() int64 { return s.increment }
func (s *Sequence) CacheSize() int64 { return s.cacheSize }
func (s *Sequence) MaxValue() int64  { return s.maxValue }

// Reservations returns how many durable reservations have been made.
func (s *Sequence) Reservations() int64 { return s.reservations.Load() }

// Options returns the options the sequence was created with.
func (s *Sequence) Options() Options {
	return Options{Start: s.start, Increment: s.increment, CacheSize: s.cacheSize, MaxValue: s.maxValue}
}
