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

package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	ferrors "strata/internal/errors"
)

func TestSharedLocksCoexist(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	if err := m.Acquire(ctx, "t1", 1, "A", Shared, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Acquire(ctx, "t2", 1, "A", Shared, 0); err != nil {
		t.Fatalf("second shared lock should be granted: %v", err)
	}
	if err := m.Acquire(ctx, "t3", 1, "A", Exclusive, 0); !ferrors.IsCode(err, ferrors.ErrCodeLockTimeout) {
		t.Errorf("exclusive over shared should fail, got %v", err)
	}
}

func TestExclusiveIsReentrantAndUpgradable(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	m.Acquire(ctx, "t1", 7, "T", Shared, 0)
	if err := m.Acquire(ctx, "t1", 7, "T", Exclusive, 0); err != nil {
		t.Fatalf("sole holder should upgrade: %v", err)
	}
	if err := m.Acquire(ctx, "t1", 7, "T", Shared, 0); err != nil {
		t.Fatalf("exclusive holder asking for shared: %v", err)
	}
	if !m.Holds("t1", 7, Exclusive) {
		t.Error("expected exclusive hold")
	}
	if err := m.Acquire(ctx, "t2", 7, "T", Shared, 0); err == nil {
		t.Error("shared over another owner's exclusive should fail")
	}
}

func TestWaiterGetsLockAfterRelease(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	m.Acquire(ctx, "t1", 1, "A", Exclusive, 0)

	done := make(chan error, 1)
	go func() {
		done <- m.Acquire(ctx, "t2", 1, "A", Exclusive, 2*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	if n := m.ReleaseAll("t1"); n != 1 {
		t.Errorf("Expected 1 released lock, got %d", n)
	}
	if err := <-done; err != nil {
		t.Fatalf("waiter should get the lock: %v", err)
	}
	if !m.Holds("t2", 1, Exclusive) {
		t.Error("t2 should hold the lock")
	}
}

func TestLockTimeout(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	m.Acquire(ctx, "t1", 1, "ORDERS", Exclusive, 0)

	start := time.Now()
	err := m.Acquire(ctx, "t2", 1, "ORDERS", Exclusive, 30*time.Millisecond)
	if !ferrors.IsCode(err, ferrors.ErrCodeLockTimeout) {
		t.Fatalf("Expected LockTimeout, got %v", err)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Error("gave up before the timeout")
	}
}

func TestContextCancelStopsWaiting(t *testing.T) {
	m := NewManager()
	m.Acquire(context.Background(), "t1", 1, "A", Exclusive, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Acquire(ctx, "t2", 1, "A", Exclusive, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestReleaseAllClearsEverything(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	for obj := int64(1); obj <= 3; obj++ {
		m.Acquire(ctx, "t1", obj, "X", Exclusive, 0)
	}
	m.Acquire(ctx, "t2", 9, "Y", Shared, 0)

	if n := m.ReleaseAll("t1"); n != 3 {
		t.Errorf("Expected 3, got %d", n)
	}
	if m.Count() != 1 {
		t.Errorf("Expected only t2's lock left, got %d", m.Count())
	}
	if m.ReleaseAll("nobody") != 0 {
		t.Error("unknown owner should release nothing")
	}
}
