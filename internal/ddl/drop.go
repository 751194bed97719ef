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

package ddl

import (
	"context"
	"errors"
	"strings"

	"strata/internal/auth"
	"strata/internal/catalog"
	"strata/internal/engine"
	ferrors "strata/internal/errors"
	"strata/internal/lock"
)

// DropTable drops tables with their owned sequences.
type DropTable struct {
	IfExists bool
	Tables   []Name
	Action   DropAction
}

func (c *DropTable) Update(ctx context.Context, s *engine.Session) (int, error) {
	return runDrop(ctx, s, dropPlan{kind: catalog.KindTable, ifExists: c.IfExists, targets: c.Tables, action: c.Action})
}

// DropView drops views.
type DropView struct {
	IfExists bool
	Views    []Name
	Action   DropAction
}

func (c *DropView) Update(ctx context.Context, s *engine.Session) (int, error) {
	return runDrop(ctx, s, dropPlan{kind: catalog.KindView, ifExists: c.IfExists, targets: c.Views, action: c.Action})
}

// DropSequence drops sequences. A sequence owned by a table is dropped
// with its table, not on its own.
type DropSequence struct {
	IfExists  bool
	Sequences []Name
}

func (c *DropSequence) Update(ctx context.Context, s *engine.Session) (int, error) {
	return runDrop(ctx, s, dropPlan{kind: catalog.KindSequence, ifExists: c.IfExists, targets: c.Sequences})
}

// DropFunctionAlias drops function aliases. Only administrators may.
type DropFunctionAlias struct {
	IfExists bool
	Aliases  []Name
}

func (c *DropFunctionAlias) Update(ctx context.Context, s *engine.Session) (int, error) {
	return runDrop(ctx, s, dropPlan{kind: catalog.KindFunctionAlias, ifExists: c.IfExists, targets: c.Aliases})
}

type dropPlan struct {
	kind     catalog.Kind
	ifExists bool
	targets  []Name
	action   DropAction
}

// runDrop executes the two-pass drop protocol and returns 0 affected rows.
func runDrop(ctx context.Context, s *engine.Session, p dropPlan) (int, error) {
	if err := s.Commit(); err != nil {
		return 0, err
	}
	txn, err := s.Txn()
	if err != nil {
		return 0, err
	}
	cat := s.Catalog()

	targets := make([]Name, len(p.targets))
	named := make(map[string]bool, len(p.targets))
	for i, t := range p.targets {
		targets[i] = t.resolve(s)
		named[targets[i].String()] = true
	}

	for _, t := range targets {
		if err := prepareDrop(ctx, s, txn, p, t, named); err != nil {
			return 0, errors.Join(err, s.Rollback())
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, errors.Join(err, s.Rollback())
	}

	for _, t := range targets {
		obj := cat.FindObject(txn, t.Schema, t.Object, p.kind)
		if obj == nil {
			continue
		}
		if err := executeDrop(s, txn, obj, p.action); err != nil {
			return 0, err
		}
	}
	return 0, s.Commit()
}

func prepareDrop(ctx context.Context, s *engine.Session, txn *catalog.Txn, p dropPlan, t Name, named map[string]bool) error {
	cat := s.Catalog()
	obj := cat.FindObject(txn, t.Schema, t.Object, p.kind)
	if obj == nil {
		if p.ifExists {
			log.Debug("Skipping missing object", "kind", p.kind.String(), "name", t.String())
			return nil
		}
		return ferrors.ObjectNotFound(p.kind.String(), t.String())
	}

	if p.kind == catalog.KindFunctionAlias {
		if err := s.User().CheckAdmin(); err != nil {
			return err
		}
	} else if err := s.User().CheckRight(obj.QualifiedName(), auth.RightAlter); err != nil {
		return err
	}

	if obj.IsSystem() {
		return ferrors.CannotDrop(obj.QualifiedName()).WithDetail("system object")
	}
	if seq, ok := obj.(*catalog.Sequence); ok && seq.OwnerTable() != 0 {
		return ferrors.CannotDrop(obj.QualifiedName()).WithDetail("sequence belongs to a table")
	}

	locked := []catalog.Object{obj}
	if p.kind == catalog.KindTable || p.kind == catalog.KindView {
		deps := dependents(cat, txn, obj)
		if p.action == Restrict {
			var blocking []string
			for _, v := range deps {
				if !named[v.QualifiedName()] || p.kind != catalog.KindView {
					blocking = append(blocking, v.QualifiedName())
				}
			}
			if len(blocking) > 0 {
				return ferrors.CannotDrop(obj.QualifiedName()).
					WithDetail("dependent views: " + strings.Join(blocking, ", ")).
					WithHint("Drop the views first or use CASCADE")
			}
		}
		for _, v := range deps {
			locked = append(locked, v)
		}
	}
	if tbl, ok := obj.(*catalog.Table); ok {
		for _, seq := range tbl.OwnedSequences() {
			locked = append(locked, seq)
		}
	}

	for _, o := range locked {
		if err := s.Lock(ctx, o, lock.Exclusive); err != nil {
			return err
		}
	}
	return nil
}

// dependents returns every view reading obj, directly or through other
// views, deepest first.
func dependents(cat *catalog.Catalog, txn *catalog.Txn, obj catalog.Object) []*catalog.View {
	var out []*catalog.View
	seen := map[int64]bool{obj.ID(): true}
	var walk func(catalog.Object)
	walk = func(o catalog.Object) {
		for _, v := range cat.Dependents(txn, o) {
			if seen[v.ID()] {
				continue
			}
			seen[v.ID()] = true
			walk(v)
			out = append(out, v)
		}
	}
	walk(obj)
	return out
}

func executeDrop(s *engine.Session, txn *catalog.Txn, obj catalog.Object, action DropAction) error {
	cat := s.Catalog()
	cat.MarkModified(obj)

	if action == Cascade {
		for _, v := range dependents(cat, txn, obj) {
			cat.MarkModified(v)
			if err := cat.RemoveObject(txn, v); err != nil {
				return err
			}
			log.Info("Dropped dependent view", "view", v.QualifiedName(), "of", obj.QualifiedName())
		}
	}
	if tbl, ok := obj.(*catalog.Table); ok {
		for _, seq := range tbl.OwnedSequences() {
			if err := cat.RemoveObject(txn, seq); err != nil {
				return err
			}
		}
	}
	if err := cat.RemoveObject(txn, obj); err != nil {
		return err
	}
	s.Logger().Info("Dropped object", "kind", obj.Kind().String(), "name", obj.QualifiedName())
	return nil
}
