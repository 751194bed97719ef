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

package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	ferrors "strata/internal/errors"
	"strata/internal/lock"
	"strata/internal/sequence"
	"strata/internal/storage"
	"strata/internal/value"
)

func openMemory(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(storage.NewMemoryEngine(), Options{MaxColumns: 16, MaxRowsPerTable: 100, StrictOverflow: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return c
}

func public(t *testing.T, c *Catalog) *Schema {
	t.Helper()
	s, ok := c.Schema(PublicSchema)
	if !ok {
		t.Fatal("PUBLIC schema missing")
	}
	return s
}

func createTable(t *testing.T, c *Catalog, name string) *Table {
	t.Helper()
	tbl, err := c.NewTable(public(t, c), name, []Column{{Name: "ID", Type: value.TypeInt}})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	txn := c.Begin()
	if err := c.AddObject(txn, tbl); err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return tbl
}

func lockExclusive(t *testing.T, c *Catalog, txn *Txn, obj Object) {
	t.Helper()
	if err := c.Lock(context.Background(), txn, obj, lock.Exclusive, time.Second); err != nil {
		t.Fatalf("Lock: %v", err)
	}
}

func TestOpenCreatesDefaultSchemas(t *testing.T) {
	c := openMemory(t)
	if _, ok := c.Schema(PublicSchema); !ok {
		t.Error("PUBLIC should exist")
	}
	info, ok := c.Schema(InformationSchema)
	if !ok || !info.IsSystem() {
		t.Fatal("INFORMATION_SCHEMA should exist and be system")
	}
	v := c.FindObject(nil, InformationSchema, "SEQUENCES", KindView)
	if v == nil || !v.IsSystem() {
		t.Error("INFORMATION_SCHEMA.SEQUENCES should be a system view")
	}
}

func TestUncommittedCreateVisibleOnlyToOwner(t *testing.T) {
	c := openMemory(t)
	tbl, _ := c.NewTable(public(t, c), "T", []Column{{Name: "A", Type: value.TypeInt}})

	owner, other := c.Begin(), c.Begin()
	if err := c.AddObject(owner, tbl); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(owner, PublicSchema, "T", KindTable) != tbl {
		t.Error("creator should see its table")
	}
	if c.FindObject(other, PublicSchema, "T", KindTable) != nil {
		t.Error("other transactions must not see an uncommitted table")
	}

	if err := owner.Commit(); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(other, PublicSchema, "T", KindTable) != tbl {
		t.Error("committed table should be visible")
	}
}

func TestPendingNameIsReserved(t *testing.T) {
	c := openMemory(t)
	s := public(t, c)
	a, _ := c.NewTable(s, "T", []Column{{Name: "A", Type: value.TypeInt}})
	b := c.NewView(s, "T", "SELECT 1", nil)

	first, second := c.Begin(), c.Begin()
	if err := c.AddObject(first, a); err != nil {
		t.Fatal(err)
	}
	err := c.AddObject(second, b)
	if !ferrors.IsCode(err, ferrors.ErrCodeObjectAlreadyExists) {
		t.Fatalf("expected ObjectAlreadyExists, got %v", err)
	}

	if err := first.Rollback(); err != nil {
		t.Fatal(err)
	}
	if err := c.AddObject(second, b); err != nil {
		t.Fatalf("name should be free after rollback: %v", err)
	}
}

func TestSeparateNamespaces(t *testing.T) {
	c := openMemory(t)
	createTable(t, c, "X")

	seq, err := c.NewSequence(public(t, c), "X", sequence.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	txn := c.Begin()
	if err := c.AddObject(txn, seq); err != nil {
		t.Fatalf("a sequence may share a table's name: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(nil, PublicSchema, "X", KindSequence) != seq {
		t.Error("sequence lookup failed")
	}
	if c.FindObject(nil, PublicSchema, "X", KindView) != nil {
		t.Error("a table must not be found as a view")
	}
}

func TestRemoveVisibility(t *testing.T) {
	c := openMemory(t)
	tbl := createTable(t, c, "T")

	remover, other := c.Begin(), c.Begin()
	lockExclusive(t, c, remover, tbl)
	if err := c.RemoveObject(remover, tbl); err != nil {
		t.Fatal(err)
	}

	if c.FindObject(remover, PublicSchema, "T", KindTable) != nil {
		t.Error("remover must not see the removed table")
	}
	if c.FindObject(other, PublicSchema, "T", KindTable) != tbl {
		t.Error("others see the table until the removal commits")
	}

	if err := remover.Commit(); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(other, PublicSchema, "T", KindTable) != nil {
		t.Error("table should be gone after commit")
	}
	if !tbl.Rows().Reclaimed() {
		t.Error("row storage should be reclaimed")
	}
	if c.Locks().Count() != 0 {
		t.Error("locks should be released at commit")
	}
}

func TestRemoveRequiresExclusiveLock(t *testing.T) {
	c := openMemory(t)
	tbl := createTable(t, c, "T")

	txn := c.Begin()
	if err := c.RemoveObject(txn, tbl); err == nil {
		t.Fatal("removal without a lock should fail")
	}
	if err := c.Lock(context.Background(), txn, tbl, lock.Shared, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveObject(txn, tbl); err == nil {
		t.Fatal("a shared lock is not enough")
	}
}

func TestRemoveRollbackRestores(t *testing.T) {
	c := openMemory(t)
	tbl := createTable(t, c, "T")

	txn := c.Begin()
	lockExclusive(t, c, txn, tbl)
	if err := c.RemoveObject(txn, tbl); err != nil {
		t.Fatal(err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(nil, PublicSchema, "T", KindTable) != tbl {
		t.Error("rollback should keep the table")
	}
	if tbl.Rows().Reclaimed() {
		t.Error("rows must survive a rolled back drop")
	}
	if txn.Active() {
		t.Error("transaction should be closed")
	}
	if err := txn.Commit(); !ferrors.IsCode(err, ferrors.ErrCodeTxNotActive) {
		t.Errorf("expected TxNotActive, got %v", err)
	}
}

func TestDropAndRecreateInOneTransaction(t *testing.T) {
	c := openMemory(t)
	old := createTable(t, c, "T")

	txn := c.Begin()
	lockExclusive(t, c, txn, old)
	if err := c.RemoveObject(txn, old); err != nil {
		t.Fatal(err)
	}
	fresh, _ := c.NewTable(public(t, c), "T", []Column{{Name: "B", Type: value.TypeBigInt}})
	if err := c.AddObject(txn, fresh); err != nil {
		t.Fatalf("name should be free inside the dropping transaction: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(nil, PublicSchema, "T", KindTable) != fresh {
		t.Error("expected the new table")
	}
}

func TestSystemObjectsCannotBeRemoved(t *testing.T) {
	c := openMemory(t)
	v := c.FindObject(nil, InformationSchema, "TABLES", KindView)

	txn := c.Begin()
	lockExclusive(t, c, txn, v)
	if err := c.RemoveObject(txn, v); !ferrors.IsCode(err, ferrors.ErrCodeCannotDrop) {
		t.Errorf("expected CannotDrop, got %v", err)
	}
}

func TestRename(t *testing.T) {
	c := openMemory(t)
	tbl := createTable(t, c, "OLD")

	txn, other := c.Begin(), c.Begin()
	lockExclusive(t, c, txn, tbl)
	if err := c.Rename(txn, tbl, "NEW"); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(txn, PublicSchema, "NEW", KindTable) != tbl {
		t.Error("renamer should find the new name")
	}
	if c.FindObject(txn, PublicSchema, "OLD", KindTable) != nil {
		t.Error("renamer should not find the old name")
	}
	if c.FindObject(other, PublicSchema, "OLD", KindTable) != tbl {
		t.Error("others keep the old name until commit")
	}

	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if tbl.Name() != "NEW" || c.FindObject(other, PublicSchema, "NEW", KindTable) != tbl {
		t.Error("rename should be published at commit")
	}
}

func TestDependents(t *testing.T) {
	c := openMemory(t)
	s := public(t, c)
	tbl := createTable(t, c, "T")

	txn := c.Begin()
	v := c.NewView(s, "V", "SELECT * FROM T", []string{"PUBLIC.T"})
	if err := c.AddObject(txn, v); err != nil {
		t.Fatal(err)
	}
	if deps := c.Dependents(txn, tbl); len(deps) != 1 || deps[0] != v {
		t.Errorf("expected V as dependent, got %v", deps)
	}
	if deps := c.Dependents(c.Begin(), tbl); len(deps) != 0 {
		t.Error("uncommitted view must not count for other transactions")
	}
}

func TestOnRemoveHookRunsAfterCommit(t *testing.T) {
	c := openMemory(t)
	tbl := createTable(t, c, "T")

	var removed []string
	c.OnRemove(func(obj Object) { removed = append(removed, obj.QualifiedName()) })

	txn := c.Begin()
	lockExclusive(t, c, txn, tbl)
	if err := c.RemoveObject(txn, tbl); err != nil {
		t.Fatal(err)
	}
	if len(removed) != 0 {
		t.Fatal("hook must not run before commit")
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if len(removed) != 1 || removed[0] != "PUBLIC.T" {
		t.Errorf("unexpected hook calls %v", removed)
	}
}

func TestIdentityColumnUsesOwnedSequence(t *testing.T) {
	c := openMemory(t)
	tbl, err := c.NewTable(public(t, c), "T", []Column{
		{Name: "ID", Type: value.TypeSmallInt, Identity: true},
		{Name: "NAME", Type: value.TypeVarchar, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	owned := tbl.OwnedSequences()
	if len(owned) != 1 || owned[0].OwnerTable() != tbl.ID() || owned[0].MaxValue() != 32767 {
		t.Fatalf("unexpected owned sequences %v", owned)
	}

	txn := c.Begin()
	if err := c.AddObject(txn, tbl); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if c.FindObject(nil, PublicSchema, owned[0].Name(), KindSequence) == nil {
		t.Error("owned sequence should be registered with its table")
	}

	for i := 1; i <= 3; i++ {
		r, err := tbl.Insert([]value.Value{value.Null, value.NewVarchar("x")})
		if err != nil {
			t.Fatal(err)
		}
		if r.Value(0) != value.Value(value.NewSmallInt(int16(i))) {
			t.Errorf("row %d got id %s", i, r.Value(0))
		}
	}
}

func TestInsertConvertsAndChecks(t *testing.T) {
	c := openMemory(t)
	tbl := createTable(t, c, "T")

	r, err := tbl.Insert([]value.Value{value.NewTinyInt(5)})
	if err != nil || r.Value(0).Type() != value.TypeInt {
		t.Errorf("expected widening to INT, got %v (%v)", r, err)
	}
	if _, err := tbl.Insert([]value.Value{value.NewBigInt(1 << 40)}); !ferrors.IsCode(err, ferrors.ErrCodeNumericOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if _, err := tbl.Insert([]value.Value{value.Null}); !ferrors.IsCode(err, ferrors.ErrCodeInvalidValue) {
		t.Errorf("expected NULL rejection, got %v", err)
	}
}

func TestNewTableValidation(t *testing.T) {
	c := openMemory(t)
	s := public(t, c)

	if _, err := c.NewTable(s, "T", nil); err == nil {
		t.Error("expected error for no columns")
	}
	if _, err := c.NewTable(s, "T", []Column{{Name: "A", Type: value.TypeInt}, {Name: "A", Type: value.TypeInt}}); err == nil {
		t.Error("expected error for duplicate columns")
	}
	many := make([]Column, 17)
	for i := range many {
		many[i] = Column{Name: string(rune('A' + i)), Type: value.TypeInt}
	}
	if _, err := c.NewTable(s, "T", many); !ferrors.IsCode(err, ferrors.ErrCodeOutOfMemory) {
		t.Errorf("expected OutOfMemory, got %v", err)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "catalog.wal")

	store, err := storage.NewKVStore(walPath)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Open(store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	s := public(t, c)
	if _, err := c.CreateSchema("APP", "admin"); err != nil {
		t.Fatal(err)
	}

	tbl, _ := c.NewTable(s, "ORDERS", []Column{{Name: "ID", Type: value.TypeBigInt, Identity: true}})
	seq, _ := c.NewSequence(s, "S", sequence.Options{Start: 10, Increment: 5, CacheSize: 4})
	alias, _ := c.NewFunctionAlias(s, "MY_ABS", "abs", true)
	view := c.NewView(s, "V", "SELECT * FROM ORDERS", []string{"PUBLIC.ORDERS"})

	txn := c.Begin()
	for _, obj := range []Object{tbl, seq, alias, view} {
		if err := c.AddObject(txn, obj); err != nil {
			t.Fatal(err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if v, err := seq.Next(); err != nil || v != 10 {
		t.Fatalf("Next = %d (%v)", v, err)
	}
	// No Close: the reopened sequence resumes after the reserved batch.
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store, err = storage.NewKVStore(walPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	c, err = Open(store, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Schema("APP"); !ok {
		t.Error("schema APP should be reloaded")
	}
	got, ok := c.FindObject(nil, PublicSchema, "ORDERS", KindTable).(*Table)
	if !ok || len(got.Columns()) != 1 || !got.Columns()[0].Identity || len(got.OwnedSequences()) != 1 {
		t.Fatalf("table not reloaded correctly: %v", got)
	}
	reseq, ok := c.FindObject(nil, PublicSchema, "S", KindSequence).(*Sequence)
	if !ok || reseq.CacheSize() != 4 || reseq.Increment() != 5 {
		t.Fatalf("sequence not reloaded correctly")
	}
	if v, err := reseq.Next(); err != nil || v != 30 {
		t.Errorf("expected resume at 30, got %d (%v)", v, err)
	}
	if a, ok := c.FindObject(nil, PublicSchema, "MY_ABS", KindFunctionAlias).(*FunctionAlias); !ok || a.Target() != "abs" {
		t.Error("alias not reloaded")
	}
	if v, ok := c.FindObject(nil, PublicSchema, "V", KindView).(*View); !ok || len(v.DependsOn()) != 1 {
		t.Error("view not reloaded")
	}

	next, _ := c.NewSequence(public(t, c), "S2", sequence.DefaultOptions())
	if next.ID() <= alias.ID() {
		t.Error("IDs must not be reused after reopen")
	}
}

func TestRollbackDeletesCreatedSequenceState(t *testing.T) {
	store := storage.NewMemoryEngine()
	c, err := Open(store, Options{})
	if err != nil {
		t.Fatal(err)
	}
	seq, _ := c.NewSequence(public(t, c), "S", sequence.DefaultOptions())

	txn := c.Begin()
	if err := c.AddObject(txn, seq); err != nil {
		t.Fatal(err)
	}
	if _, err := seq.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(seqKey(seq.ID())); err != nil {
		t.Fatalf("reservation should be persisted: %v", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(seqKey(seq.ID())); err != storage.ErrNotFound {
		t.Errorf("rolled back sequence state should be deleted, got %v", err)
	}
}

func TestSequenceInfoIsLive(t *testing.T) {
	c := openMemory(t)
	seq, _ := c.NewSequence(public(t, c), "S", sequence.Options{Start: 1, Increment: 1, CacheSize: 8})
	txn := c.Begin()
	if err := c.AddObject(txn, seq); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}

	rows := c.SequenceInfo(nil)
	if len(rows) != 1 || rows[0].Value(1).String() != "S" || rows[0].Value(4).String() != "8" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[0].Value(2).String() != "1" {
		t.Errorf("base before use: %s", rows[0].Value(2))
	}

	if _, err := seq.Next(); err != nil {
		t.Fatal(err)
	}
	if got := c.SequenceInfo(nil)[0].Value(2).String(); got != "9" {
		t.Errorf("base after first batch = %s, want 9", got)
	}
}

func TestTablesInfo(t *testing.T) {
	c := openMemory(t)
	tbl := createTable(t, c, "T")
	if _, err := tbl.Insert([]value.Value{value.NewInt(1)}); err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, r := range c.TablesInfo(nil) {
		if r.Value(0).String() == PublicSchema && r.Value(1).String() == "T" {
			found = true
			if r.Value(2).String() != "TABLE" || r.Value(4).String() != "1" {
				t.Errorf("unexpected row %s", r)
			}
		}
	}
	if !found {
		t.Error("table T missing from TablesInfo")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"orders", "ORDERS"},
		{" straße ", "STRASSE"},
		{`"MixedCase"`, "MixedCase"},
		{`"a""b"`, `a"b`},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	s, n := SplitQualified(`app."x.y"`, PublicSchema)
	if s != "APP" || n != "x.y" {
		t.Errorf("SplitQualified = %q, %q", s, n)
	}
	s, n = SplitQualified("t", PublicSchema)
	if s != PublicSchema || n != "T" {
		t.Errorf("SplitQualified bare = %q, %q", s, n)
	}
}

func TestHooksAddedDuringCommitWaitForNextCommit(t *testing.T) {
	c := openMemory(t)
	a := createTable(t, c, "A")
	b := createTable(t, c, "B")

	var order []string
	c.OnRemove(func(o Object) {
		order = append(order, "first:"+o.Name())
		if o.Name() == "A" {
			c.OnRemove(func(o Object) { order = append(order, "late:"+o.Name()) })
		}
	})

	txn := c.Begin()
	lockExclusive(t, c, txn, a)
	lockExclusive(t, c, txn, b)
	if err := c.RemoveObject(txn, a); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveObject(txn, b); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0] != "first:A" || order[1] != "first:B" {
		t.Fatalf("hooks ran as %v", order)
	}

	order = nil
	c2 := createTable(t, c, "C")
	txn = c.Begin()
	lockExclusive(t, c, txn, c2)
	if err := c.RemoveObject(txn, c2); err != nil {
		t.Fatal(err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[1] != "late:C" {
		t.Errorf("hooks ran as %v", order)
	}
}

func TestObjectHeaders(t *testing.T) {
	c := openMemory(t)
	s := public(t, c)

	tbl, err := c.NewTable(s, "T", []Column{{Name: "ID", Type: value.TypeBigInt, Identity: true}})
	if err != nil {
		t.Fatal(err)
	}
	seq, err := c.NewSequence(s, "S", sequence.Options{Start: 1, Increment: 1})
	if err != nil {
		t.Fatal(err)
	}
	alias, err := c.NewFunctionAlias(s, "F", "java.lang.Math.abs", true)
	if err != nil {
		t.Fatal(err)
	}
	view := c.NewView(s, "V", "SELECT * FROM T", []string{"PUBLIC.T"})

	ids := map[int64]bool{}
	for _, obj := range []Object{tbl, seq, alias, view, tbl.OwnedSequences()[0]} {
		if obj.ID() <= 0 || ids[obj.ID()] {
			t.Errorf("%s: bad or duplicate ID %d", obj.QualifiedName(), obj.ID())
		}
		ids[obj.ID()] = true
		if obj.Schema() != s || obj.IsSystem() {
			t.Errorf("%s: unexpected header state", obj.QualifiedName())
		}
	}
	if view.QualifiedName() != "PUBLIC.V" || alias.Name() != "F" || seq.QualifiedName() != "PUBLIC.S" {
		t.Errorf("names: %s %s %s", view.QualifiedName(), alias.Name(), seq.QualifiedName())
	}

	info := c.FindObject(nil, InformationSchema, "TABLES", KindView)
	if info == nil || info.ID() >= 0 || !info.IsSystem() {
		t.Errorf("system view header: %+v", info)
	}
}
