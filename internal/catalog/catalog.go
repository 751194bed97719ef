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
Package catalog implements the schema directory.

Catalog Overview:
=================

The catalog maps (schema, namespace, name) to schema objects. Tables and
views share one namespace per schema; sequences and function aliases each
have their own.

Transactional Visibility:
=========================

Every change is made through a Txn and becomes visible to other
transactions only when it commits:

	                 own Txn          other Txns
	created          visible          invisible until commit
	removed          invisible        visible until commit
	renamed          new name         old name until commit

Committed objects live in the schema maps. A Txn keeps its uncommitted
creates, removals and renames as an overlay that FindObject consults
before the committed maps. Names claimed by uncommitted creates are
reserved so two transactions cannot create the same name.

Removing an object requires the caller to hold its exclusive lock. The
lock is released when the transaction ends. Removal never cascades;
callers remove dependents explicitly.

Persistence:
============

	schema:<name>   - schema definition (JSON)
	meta:<id>       - object definition (JSON)
	seq:<id>        - sequence durable base (decimal)

A commit writes all of its metadata changes as one storage batch.
*/
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	ferrors "strata/internal/errors"
	"strata/internal/lock"
	"strata/internal/logging"
	"strata/internal/row"
	"strata/internal/sequence"
	"strata/internal/storage"
	"strata/internal/value"
)

// Options configures a catalog.
type Options struct {
	// Locks is shared with other users of object locks. A new manager is
	// created when nil.
	Locks             *lock.Manager
	MaxColumns        int
	MaxRowsPerTable   int
	SequenceCacheSize int64
	StrictOverflow    bool
}

type nameKey struct {
	schema string
	ns     namespace
	name   string
}

// Catalog is the schema directory.
//
// Thread Safety: All methods are safe for concurrent use. A Txn must be
// used by one goroutine at a time.
type Catalog struct {
	mu      sync.RWMutex
	store   storage.Engine
	opts    Options
	locks   *lock.Manager
	schemas map[string]*Schema
	byID    map[int64]Object
	pending map[nameKey]string

	nextID   atomic.Int64
	modSeq   atomic.Int64
	onRemove []func(Object)
	log      *logging.Logger
}

// Open loads the catalog from store and creates the PUBLIC and
// INFORMATION_SCHEMA schemas if they are missing.
func Open(store storage.Engine, opts Options) (*Catalog, error) {
	if opts.Locks == nil {
		opts.Locks = lock.NewManager()
	}
	if opts.SequenceCacheSize <= 0 {
		opts.SequenceCacheSize = sequence.DefaultCacheSize
	}

	c := &Catalog{
		store:   store,
		opts:    opts,
		locks:   opts.Locks,
		schemas: make(map[string]*Schema),
		byID:    make(map[int64]Object),
		pending: make(map[nameKey]string),
		log:     logging.NewLogger("catalog"),
	}
	c.nextID.Store(1)

	if err := c.load(); err != nil {
		return nil, err
	}
	if _, ok := c.schemas[PublicSchema]; !ok {
		if _, err := c.CreateSchema(PublicSchema, ""); err != nil {
			return nil, err
		}
	}
	c.createInformationSchema()

	c.log.Info("Catalog opened", "schemas", len(c.schemas), "objects", len(c.byID))
	return c, nil
}

// createInformationSchema builds the system schema. It is not persisted;
// its objects get negative IDs so they never collide with stored ones.
func (c *Catalog) createInformationSchema() {
	s := newSchema(InformationSchema, "", true)
	for i, name := range []string{informationSequencesTbl, informationTablesTbl} {
		v := &View{}
		v.init(int64(-1-i), s, name, true)
		s.objects[nsRelation][name] = v
		c.byID[v.id] = v
	}
	c.schemas[InformationSchema] = s
}

// Locks returns the lock manager the catalog uses.
func (c *Catalog) Locks() *lock.Manager {
	return c.locks
}

// OnRemove registers fn to run after a removal commits.
func (c *Catalog) OnRemove(fn func(Object)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRemove = append(c.onRemove, fn)
}

// Begin starts a transaction.
func (c *Catalog) Begin() *Txn {
	return &Txn{
		id:      uuid.NewString(),
		cat:     c,
		removed: make(map[int64]Object),
		renamed: make(map[int64]string),
	}
}

// ============================================================================
// Schemas
// ============================================================================

// Schema returns the schema with the canonical name.
func (c *Catalog) Schema(name string) (*Schema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[name]
	return s, ok
}

// Schemas returns the sorted schema names.
func (c *Catalog) Schemas() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.schemas))
	for name := range c.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateSchema creates and persists a schema. Schema creation is not
// transactional.
func (c *Catalog) CreateSchema(name, owner string) (*Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.schemas[name]; ok {
		return nil, ferrors.ObjectAlreadyExists("schema", name)
	}
	data, err := encodeSchema(name, owner)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(schemaKey(name), data); err != nil {
		return nil, ferrors.NewStorageError("cannot persist schema " + name).WithCause(err)
	}
	s := newSchema(name, owner, false)
	c.schemas[name] = s
	return s, nil
}

// ============================================================================
// Object construction
// ============================================================================

func (c *Catalog) allocateID() int64 {
	return c.nextID.Add(1) - 1
}

// NewTable builds an unregistered table. Identity columns get an owned
// sequence each; AddObject registers them with the table.
func (c *Catalog) NewTable(schema *Schema, name string, columns []Column) (*Table, error) {
	if len(columns) == 0 {
		return nil, ferrors.InvalidValue(name, "a table needs at least one column")
	}
	if c.opts.MaxColumns > 0 && len(columns) > c.opts.MaxColumns {
		return nil, ferrors.OutOfMemory(int64(len(columns)))
	}

	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if seen[col.Name] {
			return nil, ferrors.InvalidValue(name, "duplicate column "+col.Name)
		}
		seen[col.Name] = true
		if col.Type == value.TypeNull {
			return nil, ferrors.InvalidValue(col.Name, "column type required")
		}
		if col.Identity && !col.Type.IsNumeric() {
			return nil, ferrors.InvalidValue(col.Name, "identity column must be numeric")
		}
	}

	t := c.buildTable(c.allocateID(), schema, name, columns)
	for i, col := range columns {
		if !col.Identity {
			continue
		}
		_, max := value.Range(col.Type)
		opts := sequence.Options{Start: 1, Increment: 1, CacheSize: c.opts.SequenceCacheSize, MaxValue: max}
		seqName := fmt.Sprintf("SYSTEM_SEQUENCE_%d_%d", t.id, i)
		seq, err := c.buildSequence(c.allocateID(), schema, seqName, opts, opts.Start, t.id)
		if err != nil {
			return nil, err
		}
		t.owned = append(t.owned, seq)
	}
	return t, nil
}

func (c *Catalog) buildTable(id int64, schema *Schema, name string, columns []Column) *Table {
	cols := make([]Column, len(columns))
	copy(cols, columns)
	t := &Table{
		columns: cols,
		rows:    row.NewStore(len(cols), c.opts.MaxRowsPerTable),
		arith:   value.Arithmetic{StrictOverflow: c.opts.StrictOverflow},
		maxCols: c.opts.MaxColumns,
	}
	t.init(id, schema, name, schema.system)
	return t
}

// NewView builds an unregistered view reading the given relations.
func (c *Catalog) NewView(schema *Schema, name, query string, dependsOn []string) *View {
	deps := make([]string, len(dependsOn))
	copy(deps, dependsOn)
	v := &View{query: query, dependsOn: deps}
	v.init(c.allocateID(), schema, name, schema.system)
	return v
}

// NewSequence builds an unregistered sequence. A zero cache size takes the
// catalog default.
func (c *Catalog) NewSequence(schema *Schema, name string, opts sequence.Options) (*Sequence, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = c.opts.SequenceCacheSize
	}
	return c.buildSequence(c.allocateID(), schema, name, opts, opts.Start, 0)
}

func (c *Catalog) buildSequence(id int64, schema *Schema, name string, opts sequence.Options, base, owner int64) (*Sequence, error) {
	s := &Sequence{ownerTable: owner}
	s.init(id, schema, name, schema.system)
	alloc, err := sequence.New(name, opts, base, sequence.PersisterFunc(func(_ *sequence.Sequence, base int64) error {
		if s.dropped.Load() {
			return nil
		}
		if err := c.store.Put(seqKey(id), []byte(strconv.FormatInt(base, 10))); err != nil {
			return ferrors.NewStorageError("cannot persist sequence " + name).WithCause(err)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	s.Sequence = alloc
	return s, nil
}

// NewFunctionAlias builds an unregistered function alias.
func (c *Catalog) NewFunctionAlias(schema *Schema, name, target string, deterministic bool) (*FunctionAlias, error) {
	if target == "" {
		return nil, ferrors.InvalidValue(name, "function alias needs a target")
	}
	f := &FunctionAlias{target: target, deterministic: deterministic}
	f.init(c.allocateID(), schema, name, schema.system)
	return f, nil
}

// ============================================================================
// Lookup
// ============================================================================

// FindObject returns the object of the given kind as seen by txn, or nil.
// A nil txn sees committed state only.
func (c *Catalog) FindObject(txn *Txn, schema, name string, kind Kind) Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj := c.findLocked(txn, schema, name, kind.namespace())
	if obj == nil || obj.Kind() != kind {
		return nil
	}
	return obj
}

// FindRelation returns the table or view named name as seen by txn.
func (c *Catalog) FindRelation(txn *Txn, schema, name string) Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findLocked(txn, schema, name, nsRelation)
}

func (c *Catalog) findLocked(txn *Txn, schema, name string, ns namespace) Object {
	if txn != nil {
		for _, obj := range txn.added {
			if obj.Schema().Name() == schema && obj.Kind().namespace() == ns && obj.Name() == name {
				return obj
			}
		}
		for id, newName := range txn.renamed {
			obj := c.byID[id]
			if newName == name && obj != nil && obj.Schema().Name() == schema && obj.Kind().namespace() == ns {
				if _, gone := txn.removed[id]; !gone {
					return obj
				}
			}
		}
	}

	s, ok := c.schemas[schema]
	if !ok {
		return nil
	}
	obj, ok := s.objects[ns][name]
	if !ok {
		return nil
	}
	if txn != nil {
		if _, gone := txn.removed[obj.ID()]; gone {
			return nil
		}
		if _, moved := txn.renamed[obj.ID()]; moved {
			return nil
		}
	}
	return obj
}

// nameTakenLocked reports whether key is in use from txn's point of view
// or claimed by another transaction's uncommitted create or rename.
func (c *Catalog) nameTakenLocked(txn *Txn, key nameKey) bool {
	if owner, ok := c.pending[key]; ok && owner != txn.id {
		return true
	}
	return c.findLocked(txn, key.schema, key.name, key.ns) != nil
}

// Objects returns the objects of a schema visible to txn, sorted by kind
// and name.
func (c *Catalog) Objects(txn *Txn, schema string) []Object {
	var out []Object
	c.visible(txn, func(obj Object) {
		if obj.Schema().Name() == schema {
			out = append(out, obj)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind() != out[j].Kind() {
			return out[i].Kind() < out[j].Kind()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// visible calls fn for every object txn can see.
func (c *Catalog) visible(txn *Txn, fn func(Object)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.schemas {
		for _, objs := range s.objects {
			for _, obj := range objs {
				if txn != nil {
					if _, gone := txn.removed[obj.ID()]; gone {
						continue
					}
				}
				fn(obj)
			}
		}
	}
	if txn != nil {
		for _, obj := range txn.added {
			fn(obj)
		}
	}
}

// Dependents returns the views visible to txn that read obj.
func (c *Catalog) Dependents(txn *Txn, obj Object) []*View {
	qualified := obj.QualifiedName()
	var out []*View
	c.visible(txn, func(o Object) {
		if v, ok := o.(*View); ok && o.ID() != obj.ID() && v.dependsOnName(qualified) {
			out = append(out, v)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// ObjectByID returns a committed object.
func (c *Catalog) ObjectByID(id int64) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.byID[id]
	return obj, ok
}

// ============================================================================
// Mutation
// ============================================================================

// Lock acquires a lock on obj for txn's lifetime.
func (c *Catalog) Lock(ctx context.Context, txn *Txn, obj Object, mode lock.Mode, timeout time.Duration) error {
	if err := txn.check(); err != nil {
		return err
	}
	return c.locks.Acquire(ctx, txn.id, obj.ID(), obj.QualifiedName(), mode, timeout)
}

// MarkModified gives obj a new modification ID.
func (c *Catalog) MarkModified(obj Object) {
	obj.header().modID.Store(c.modSeq.Add(1))
}

// AddObject registers obj in txn. A table's owned sequences are
// registered with it.
func (c *Catalog) AddObject(txn *Txn, obj Object) error {
	if err := txn.check(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	objs := []Object{obj}
	if t, ok := obj.(*Table); ok {
		for _, seq := range t.owned {
			objs = append(objs, seq)
		}
	}

	for _, o := range objs {
		if _, ok := c.schemas[o.Schema().Name()]; !ok {
			return ferrors.SchemaNotFound(o.Schema().Name())
		}
		if c.nameTakenLocked(txn, keyOf(o, o.Name())) {
			return ferrors.ObjectAlreadyExists(o.Kind().String(), o.QualifiedName())
		}
	}
	for _, o := range objs {
		key := keyOf(o, o.Name())
		c.pending[key] = txn.id
		txn.claims = append(txn.claims, key)
		txn.added = append(txn.added, o)
	}
	return nil
}

// RemoveObject removes obj in txn. The caller must hold obj's exclusive
// lock. Dependents are not touched.
func (c *Catalog) RemoveObject(txn *Txn, obj Object) error {
	if err := txn.check(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := txn.addedIndex(obj); i >= 0 {
		txn.added = append(txn.added[:i], txn.added[i+1:]...)
		delete(c.pending, keyOf(obj, obj.Name()))
		txn.discarded = append(txn.discarded, obj)
		return nil
	}

	if obj.IsSystem() {
		return ferrors.CannotDrop(obj.QualifiedName())
	}
	if c.byID[obj.ID()] != obj {
		return ferrors.ObjectNotFound(obj.Kind().String(), obj.QualifiedName())
	}
	if !c.locks.Holds(txn.id, obj.ID(), lock.Exclusive) {
		return ferrors.InternalError("exclusive lock required to remove " + obj.QualifiedName())
	}
	if _, ok := txn.removed[obj.ID()]; ok {
		return nil
	}
	txn.removed[obj.ID()] = obj
	txn.removedOrder = append(txn.removedOrder, obj)
	return nil
}

// Rename gives obj a new name in txn. The caller must hold obj's exclusive
// lock unless obj was created in txn.
func (c *Catalog) Rename(txn *Txn, obj Object, newName string) error {
	if err := txn.check(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if obj.IsSystem() {
		return ferrors.CannotDrop(obj.QualifiedName()).WithDetail("system objects cannot be renamed")
	}
	key := keyOf(obj, newName)
	if c.nameTakenLocked(txn, key) {
		return ferrors.ObjectAlreadyExists(obj.Kind().String(), obj.Schema().Name()+"."+newName)
	}

	if txn.addedIndex(obj) >= 0 {
		delete(c.pending, keyOf(obj, obj.Name()))
		obj.header().name.Store(&newName)
		c.pending[key] = txn.id
		txn.claims = append(txn.claims, key)
		return nil
	}

	if c.byID[obj.ID()] != obj {
		return ferrors.ObjectNotFound(obj.Kind().String(), obj.QualifiedName())
	}
	if !c.locks.Holds(txn.id, obj.ID(), lock.Exclusive) {
		return ferrors.InternalError("exclusive lock required to rename " + obj.QualifiedName())
	}
	c.pending[key] = txn.id
	txn.claims = append(txn.claims, key)
	txn.renamed[obj.ID()] = newName
	return nil
}

func keyOf(obj Object, name string) nameKey {
	return nameKey{schema: obj.Schema().Name(), ns: obj.Kind().namespace(), name: name}
}

// Close flushes every sequence's exact position.
func (c *Catalog) Close() error {
	c.mu.RLock()
	var seqs []*Sequence
	for _, obj := range c.byID {
		if s, ok := obj.(*Sequence); ok {
			seqs = append(seqs, s)
		}
	}
	c.mu.RUnlock()

	var firstErr error
	for _, s := range seqs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
