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

package engine

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"strata/internal/auth"
	"strata/internal/catalog"
	"strata/internal/config"
	ferrors "strata/internal/errors"
	"strata/internal/lock"
	"strata/internal/sequence"
	"strata/internal/storage"
	"strata/internal/value"
)

func init() {
	auth.BcryptCost = bcrypt.MinCost
}

func memoryConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = storage.MemoryDir
	cfg.AdminPassword = "secret"
	cfg.LogLevel = "error"
	return cfg
}

func openDB(t *testing.T, cfg *config.Config) *Database {
	t.Helper()
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func adminSession(t *testing.T, db *Database) *Session {
	t.Helper()
	s, err := db.Connect(auth.AdminUsername, "secret")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return s
}

func createSequence(t *testing.T, s *Session, name string, opts sequence.Options) *catalog.Sequence {
	t.Helper()
	cat := s.Catalog()
	schema, _ := cat.Schema(catalog.PublicSchema)
	seq, err := cat.NewSequence(schema, name, opts)
	if err != nil {
		t.Fatal(err)
	}
	txn, err := s.Txn()
	if err != nil {
		t.Fatal(err)
	}
	if err := cat.AddObject(txn, seq); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	return seq
}

func TestOpenGeneratesAdminPassword(t *testing.T) {
	cfg := memoryConfig()
	cfg.AdminPassword = ""
	db := openDB(t, cfg)

	pw := db.InitialAdminPassword()
	if len(pw) != auth.PasswordLength {
		t.Fatalf("expected a generated password, got %q", pw)
	}
	if _, err := db.Connect(auth.AdminUsername, pw); err != nil {
		t.Errorf("generated password should work: %v", err)
	}
	if _, err := db.Connect(auth.AdminUsername, "wrong"); !ferrors.IsCode(err, ferrors.ErrCodeAuthFailed) {
		t.Errorf("expected authentication failure, got %v", err)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.ValueCacheShards = 3
	if _, err := Open(cfg); err == nil {
		t.Error("expected validation error")
	}
}

func TestNextValueAndCurrentValue(t *testing.T) {
	db := openDB(t, memoryConfig())
	s := adminSession(t, db)
	createSequence(t, s, "S", sequence.Options{Start: 100, Increment: 10, CacheSize: 2})

	if _, err := s.CurrentValue(catalog.PublicSchema, "S"); !ferrors.IsCode(err, ferrors.ErrCodeInvalidValue) {
		t.Errorf("CURRVAL before NEXTVAL should fail, got %v", err)
	}
	for _, want := range []int64{100, 110, 120} {
		got, err := s.NextValue(context.Background(), catalog.PublicSchema, "S")
		if err != nil || got != want {
			t.Fatalf("NextValue = %d (%v), want %d", got, err, want)
		}
	}
	if v, err := s.CurrentValue(catalog.PublicSchema, "S"); err != nil || v != 120 {
		t.Errorf("CurrentValue = %d (%v)", v, err)
	}

	other := adminSession(t, db)
	if _, err := other.CurrentValue(catalog.PublicSchema, "S"); err == nil {
		t.Error("current value is per session")
	}
	if _, err := s.NextValue(context.Background(), catalog.PublicSchema, "MISSING"); !ferrors.IsCode(err, ferrors.ErrCodeObjectNotFound) {
		t.Errorf("expected ObjectNotFound, got %v", err)
	}
}

func TestConcurrentNextValueFromTwoSessions(t *testing.T) {
	db := openDB(t, memoryConfig())
	setup := adminSession(t, db)
	createSequence(t, setup, "S", sequence.DefaultOptions())

	const perSession = 500
	results := make([][]int64, 2)
	var g errgroup.Group
	for i := range results {
		i := i // per-iteration copy (Go 1.22+ loop semantics)
		s := adminSession(t, db)
		g.Go(func() error {
			for n := 0; n < perSession; n++ {
				v, err := s.NextValue(context.Background(), catalog.PublicSchema, "S")
				if err != nil {
					return err
				}
				results[i] = append(results[i], v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	seen := make(map[int64]bool, 2*perSession)
	for _, vals := range results {
		for j, v := range vals {
			if j > 0 && v <= vals[j-1] {
				t.Fatalf("values not increasing within a session: %d after %d", v, vals[j-1])
			}
			if seen[v] {
				t.Fatalf("value %d issued twice", v)
			}
			seen[v] = true
		}
	}
	for v := int64(1); v <= 2*perSession; v++ {
		if !seen[v] {
			t.Fatalf("value %d missing", v)
		}
	}
}

func TestSequencesSurviveRestart(t *testing.T) {
	cfg := memoryConfig()
	cfg.DataDir = t.TempDir()

	db, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	s := adminSession(t, db)
	createSequence(t, s, "S", sequence.DefaultOptions())
	for i := 0; i < 5; i++ {
		if _, err := s.NextValue(context.Background(), catalog.PublicSchema, "S"); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	db = openDB(t, cfg)
	s = adminSession(t, db)
	v, err := s.NextValue(context.Background(), catalog.PublicSchema, "S")
	if err != nil || v != 6 {
		t.Errorf("after clean restart NextValue = %d (%v), want 6", v, err)
	}
}

func TestInsertChecksRights(t *testing.T) {
	db := openDB(t, memoryConfig())
	admin := adminSession(t, db)

	cat := db.Catalog()
	schema, _ := cat.Schema(catalog.PublicSchema)
	tbl, err := cat.NewTable(schema, "T", []catalog.Column{{Name: "A", Type: value.TypeInt}})
	if err != nil {
		t.Fatal(err)
	}
	txn, _ := admin.Txn()
	if err := cat.AddObject(txn, tbl); err != nil {
		t.Fatal(err)
	}
	if err := admin.Commit(); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Auth().CreateUser("bob", "pw", false); err != nil {
		t.Fatal(err)
	}
	bob, err := db.Connect("bob", "pw")
	if err != nil {
		t.Fatal(err)
	}
	_, err = bob.Insert(context.Background(), catalog.PublicSchema, "T", []value.Value{value.NewInt(1)})
	if !ferrors.IsCode(err, ferrors.ErrCodePermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}

	if err := db.Auth().Grant("bob", "PUBLIC.T", auth.RightInsert|auth.RightSelect); err != nil {
		t.Fatal(err)
	}
	if _, err := bob.Insert(context.Background(), catalog.PublicSchema, "T", []value.Value{value.NewInt(1)}); err != nil {
		t.Fatalf("Insert after grant: %v", err)
	}
	rows, err := bob.Rows(catalog.PublicSchema, "T")
	if err != nil || len(rows) != 1 {
		t.Errorf("Rows = %v (%v)", rows, err)
	}
	if db.Locks().Count() == 0 {
		t.Error("insert should hold a shared lock until commit")
	}
	if err := bob.Commit(); err != nil {
		t.Fatal(err)
	}
	if db.Locks().Count() != 0 {
		t.Error("commit should release the lock")
	}
}

func TestApplyResizesValueCache(t *testing.T) {
	db := openDB(t, memoryConfig())
	cfg := memoryConfig()
	cfg.ValueCacheSize = 64
	cfg.LockTimeoutMs = 5
	db.Apply(cfg)

	if got := value.DefaultCache().Stats().Capacity; got != 64 {
		t.Errorf("cache capacity = %d, want 64", got)
	}
	if db.LockTimeout().Milliseconds() != 5 {
		t.Errorf("lock timeout = %v", db.LockTimeout())
	}
}

func TestClosedSession(t *testing.T) {
	db := openDB(t, memoryConfig())
	s := adminSession(t, db)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Txn(); !ferrors.IsCode(err, ferrors.ErrCodeTxClosed) {
		t.Errorf("expected SessionClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Error("second Close should be a no-op")
	}
}

func TestWriteMetrics(t *testing.T) {
	db := openDB(t, memoryConfig())
	s := adminSession(t, db)
	createSequence(t, s, "S", sequence.DefaultOptions())
	if _, err := s.NextValue(context.Background(), catalog.PublicSchema, "S"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	db.WriteMetrics(&buf)
	if !strings.Contains(buf.String(), "strata_sequences 1\n") {
		t.Errorf("metrics missing sequence gauge:\n%s", buf.String())
	}
}

func TestInsertAfterConcurrentDropReportsNotFound(t *testing.T) {
	db := openDB(t, memoryConfig())
	dropper := adminSession(t, db)

	cat := db.Catalog()
	schema, _ := cat.Schema(catalog.PublicSchema)
	tbl, err := cat.NewTable(schema, "T", []catalog.Column{{Name: "A", Type: value.TypeInt}})
	if err != nil {
		t.Fatal(err)
	}
	txn, _ := dropper.Txn()
	if err := cat.AddObject(txn, tbl); err != nil {
		t.Fatal(err)
	}
	if err := dropper.Commit(); err != nil {
		t.Fatal(err)
	}

	txn, _ = dropper.Txn()
	if err := dropper.Lock(context.Background(), tbl, lock.Exclusive); err != nil {
		t.Fatal(err)
	}
	if err := cat.RemoveObject(txn, tbl); err != nil {
		t.Fatal(err)
	}

	writer := adminSession(t, db)
	done := make(chan error, 1)
	go func() {
		_, err := writer.Insert(context.Background(), catalog.PublicSchema, "T", []value.Value{value.NewInt(1)})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := dropper.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !ferrors.IsCode(err, ferrors.ErrCodeObjectNotFound) {
		t.Fatalf("expected ObjectNotFound, got %v", err)
	}
}
