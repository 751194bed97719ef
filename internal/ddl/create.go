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

	"strata/internal/auth"
	"strata/internal/catalog"
	"strata/internal/engine"
	ferrors "strata/internal/errors"
	"strata/internal/metrics"
	"strata/internal/sequence"
)

// CreateTable creates a table. Identity columns get an owned sequence.
type CreateTable struct {
	IfNotExists bool
	Name        Name
	Columns     []catalog.Column
}

func (c *CreateTable) Update(ctx context.Context, s *engine.Session) (int, error) {
	return runCreate(ctx, s, c.Name, catalog.KindTable, c.IfNotExists, func(schema *catalog.Schema, name string) (catalog.Object, error) {
		return s.Catalog().NewTable(schema, name, c.Columns)
	})
}

// CreateView creates a view over existing tables or views.
type CreateView struct {
	IfNotExists bool
	Name        Name
	Query       string
	DependsOn   []Name
}

func (c *CreateView) Update(ctx context.Context, s *engine.Session) (int, error) {
	return runCreate(ctx, s, c.Name, catalog.KindView, c.IfNotExists, func(schema *catalog.Schema, name string) (catalog.Object, error) {
		txn, err := s.Txn()
		if err != nil {
			return nil, err
		}
		deps := make([]string, 0, len(c.DependsOn))
		for _, d := range c.DependsOn {
			d = d.resolve(s)
			rel := s.Catalog().FindRelation(txn, d.Schema, d.Object)
			if rel == nil {
				return nil, ferrors.ObjectNotFound("TABLE", d.String())
			}
			if err := s.User().CheckRight(rel.QualifiedName(), auth.RightSelect); err != nil {
				return nil, err
			}
			deps = append(deps, rel.QualifiedName())
		}
		return s.Catalog().NewView(schema, name, c.Query, deps), nil
	})
}

// CreateSequence creates a sequence. A zero CacheSize takes the
// configured default; a zero Increment means 1.
type CreateSequence struct {
	IfNotExists bool
	Name        Name
	Options     sequence.Options
}

func (c *CreateSequence) Update(ctx context.Context, s *engine.Session) (int, error) {
	return runCreate(ctx, s, c.Name, catalog.KindSequence, c.IfNotExists, func(schema *catalog.Schema, name string) (catalog.Object, error) {
		opts := c.Options
		if opts.Increment == 0 {
			opts.Increment = 1
		}
		return s.Catalog().NewSequence(schema, name, opts)
	})
}

// CreateFunctionAlias maps a function name to an implementation. Only
// administrators may.
type CreateFunctionAlias struct {
	IfNotExists   bool
	Name          Name
	Target        string
	Deterministic bool
}

func (c *CreateFunctionAlias) Update(ctx context.Context, s *engine.Session) (int, error) {
	if err := s.User().CheckAdmin(); err != nil {
		return 0, err
	}
	return runCreate(ctx, s, c.Name, catalog.KindFunctionAlias, c.IfNotExists, func(schema *catalog.Schema, name string) (catalog.Object, error) {
		return s.Catalog().NewFunctionAlias(schema, name, c.Target, c.Deterministic)
	})
}

// runCreate commits the open transaction, builds the object with build and
// commits its creation. Non-admin creators must own the schema and get all
// rights on what they create.
func runCreate(ctx context.Context, s *engine.Session, n Name, kind catalog.Kind, ifNotExists bool,
	build func(*catalog.Schema, string) (catalog.Object, error)) (int, error) {
	if err := s.Commit(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n = n.resolve(s)
	cat := s.Catalog()

	schema, ok := cat.Schema(n.Schema)
	if !ok {
		return 0, ferrors.SchemaNotFound(n.Schema)
	}
	if schema.IsSystem() {
		return 0, ferrors.PermissionDenied(n.String()).WithDetail("system schema is read-only")
	}
	user := s.User()
	if schema.Owner() != user.Name() {
		if err := user.CheckAdmin(); err != nil {
			return 0, err
		}
	}

	txn, err := s.Txn()
	if err != nil {
		return 0, err
	}
	var existing catalog.Object
	if kind == catalog.KindTable || kind == catalog.KindView {
		existing = cat.FindRelation(txn, n.Schema, n.Object)
	} else {
		existing = cat.FindObject(txn, n.Schema, n.Object, kind)
	}
	if existing != nil {
		if ifNotExists {
			return 0, nil
		}
		return 0, ferrors.ObjectAlreadyExists(existing.Kind().String(), existing.QualifiedName())
	}

	obj, err := build(schema, n.Object)
	if err != nil {
		return 0, err
	}
	if err := cat.AddObject(txn, obj); err != nil {
		return 0, errors.Join(err, s.Rollback())
	}
	if err := s.Commit(); err != nil {
		return 0, err
	}

	if !user.IsAdmin() {
		if err := s.Database().Auth().Grant(user.Name(), obj.QualifiedName(), auth.RightAll); err != nil {
			return 0, err
		}
	}
	metrics.Get().Kind(kind.String()).Created.Add(1)
	s.Logger().Info("Created object", "kind", kind.String(), "name", obj.QualifiedName())
	return 0, nil
}

// CreateSchema creates a schema owned by Owner, or by the session user
// when Owner is empty. Only administrators may.
type CreateSchema struct {
	IfNotExists bool
	Name        string
	Owner       string
}

func (c *CreateSchema) Update(ctx context.Context, s *engine.Session) (int, error) {
	if err := s.User().CheckAdmin(); err != nil {
		return 0, err
	}
	if _, ok := s.Catalog().Schema(c.Name); ok {
		if c.IfNotExists {
			return 0, nil
		}
		return 0, ferrors.ObjectAlreadyExists("SCHEMA", c.Name)
	}
	owner := c.Owner
	if owner == "" {
		owner = s.User().Name()
	}
	if _, err := s.Catalog().CreateSchema(c.Name, owner); err != nil {
		return 0, err
	}
	return 0, nil
}
