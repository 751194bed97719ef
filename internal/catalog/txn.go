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
	"slices"

	"golang.org/x/sync/errgroup"

	ferrors "strata/internal/errors"
	"strata/internal/storage"
)

// reclaimWorkers bounds concurrent table storage reclamation on commit.
const reclaimWorkers = 4

// Txn is a catalog transaction. Its changes are an overlay on the
// committed catalog until Commit.
type Txn struct {
	id  string
	cat *Catalog

	added        []Object
	removed      map[int64]Object
	removedOrder []Object
	renamed      map[int64]string
	// discarded holds objects created and removed inside this Txn.
	discarded []Object
	claims    []nameKey
	done      bool
}

// ID returns the transaction ID. It is also the lock owner ID.
func (t *Txn) ID() string { return t.id }

// Active reports whether the transaction can still be used.
func (t *Txn) Active() bool { return !t.done }

// Changes returns the number of uncommitted changes.
func (t *Txn) Changes() int {
	return len(t.added) + len(t.removed) + len(t.renamed)
}

func (t *Txn) check() error {
	if t == nil || t.done {
		return ferrors.TransactionNotActive()
	}
	return nil
}

func (t *Txn) addedIndex(obj Object) int {
	for i, o := range t.added {
		if o == obj {
			return i
		}
	}
	return -1
}

// Commit publishes the transaction's changes. Metadata is written as one
// storage batch; if that write fails nothing is published and the
// transaction stays active.
func (t *Txn) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	c := t.cat

	batch := &storage.Batch{}
	for _, obj := range t.removedOrder {
		batch.Delete(metaKey(obj.ID()))
		if obj.Kind() == KindSequence {
			batch.Delete(seqKey(obj.ID()))
		}
	}
	for id, newName := range t.renamed {
		if _, gone := t.removed[id]; gone {
			continue
		}
		obj, _ := c.ObjectByID(id)
		data, err := encodeObject(obj, newName)
		if err != nil {
			return err
		}
		batch.Put(metaKey(id), data)
	}
	for _, obj := range t.added {
		data, err := encodeObject(obj, obj.Name())
		if err != nil {
			return err
		}
		batch.Put(metaKey(obj.ID()), data)
	}

	c.mu.Lock()
	if batch.Len() > 0 {
		if err := c.store.Apply(batch); err != nil {
			c.mu.Unlock()
			return ferrors.NewStorageError("catalog commit failed").WithCause(err)
		}
	}

	for _, obj := range t.removedOrder {
		delete(obj.Schema().objects[obj.Kind().namespace()], obj.Name())
		delete(c.byID, obj.ID())
		if s, ok := obj.(*Sequence); ok {
			s.dropped.Store(true)
		}
	}
	for id, newName := range t.renamed {
		newName := newName // per-iteration copy (Go 1.22+ loop semantics)
		if _, gone := t.removed[id]; gone {
			continue
		}
		obj := c.byID[id]
		objs := obj.Schema().objects[obj.Kind().namespace()]
		delete(objs, obj.Name())
		obj.header().name.Store(&newName)
		objs[newName] = obj
	}
	for _, obj := range t.added {
		obj.Schema().objects[obj.Kind().namespace()][obj.Name()] = obj
		c.byID[obj.ID()] = obj
	}
	t.releaseClaims()
	hooks := slices.Clone(c.onRemove)
	c.mu.Unlock()

	for _, obj := range t.added {
		c.MarkModified(obj)
	}
	// Row storage of dropped tables is released in parallel; hooks run in
	// drop order.
	var g errgroup.Group
	g.SetLimit(reclaimWorkers)
	for _, obj := range t.removedOrder {
		if tbl, ok := obj.(*Table); ok {
			g.Go(func() error {
				n := tbl.rows.Reclaim()
				c.log.Debug("Reclaimed table storage", "table", tbl.QualifiedName(), "rows", n)
				return nil
			})
		}
		for _, fn := range hooks {
			fn(obj)
		}
	}
	_ = g.Wait()
	t.discard()
	t.finish()

	c.log.Debug("Catalog transaction committed",
		"txn", t.id, "added", len(t.added), "removed", len(t.removedOrder), "renamed", len(t.renamed))
	return nil
}

// Rollback abandons the transaction's changes.
func (t *Txn) Rollback() error {
	if err := t.check(); err != nil {
		return err
	}
	c := t.cat

	c.mu.Lock()
	t.releaseClaims()
	c.mu.Unlock()

	t.discarded = append(t.discarded, t.added...)
	t.discard()
	t.finish()

	c.log.Debug("Catalog transaction rolled back", "txn", t.id)
	return nil
}

// releaseClaims must be called with the catalog lock held.
func (t *Txn) releaseClaims() {
	for _, key := range t.claims {
		if t.cat.pending[key] == t.id {
			delete(t.cat.pending, key)
		}
	}
	t.claims = nil
}

// discard frees objects that never became visible.
func (t *Txn) discard() {
	for _, obj := range t.discarded {
		switch o := obj.(type) {
		case *Table:
			o.rows.Reclaim()
		case *Sequence:
			o.dropped.Store(true)
			if err := t.cat.store.Delete(seqKey(o.ID())); err != nil {
				t.cat.log.Warn("Failed to delete sequence state", "sequence", o.QualifiedName(), "error", err)
			}
		}
	}
	t.discarded = nil
}

func (t *Txn) finish() {
	t.cat.locks.ReleaseAll(t.id)
	t.done = true
}
