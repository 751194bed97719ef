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
	"strata/internal/lock"
)

// Rename gives an object a new name in its schema. Relations that views
// depend on cannot be renamed.
type Rename struct {
	Kind    catalog.Kind
	Name    Name
	NewName string
}

func (c *Rename) Update(ctx context.Context, s *engine.Session) (int, error) {
	if err := s.Commit(); err != nil {
		return 0, err
	}
	txn, err := s.Txn()
	if err != nil {
		return 0, err
	}
	cat := s.Catalog()
	n := c.Name.resolve(s)

	obj := cat.FindObject(txn, n.Schema, n.Object, c.Kind)
	if obj == nil {
		return 0, ferrors.ObjectNotFound(c.Kind.String(), n.String())
	}
	if c.Kind == catalog.KindFunctionAlias {
		err = s.User().CheckAdmin()
	} else {
		err = s.User().CheckRight(obj.QualifiedName(), auth.RightAlter)
	}
	if err != nil {
		return 0, err
	}
	if deps := cat.Dependents(txn, obj); len(deps) > 0 {
		return 0, ferrors.CannotDrop(obj.QualifiedName()).WithDetail("views depend on it")
	}

	if err := s.Lock(ctx, obj, lock.Exclusive); err != nil {
		return 0, errors.Join(err, s.Rollback())
	}
	old := obj.QualifiedName()
	if err := cat.Rename(txn, obj, c.NewName); err != nil {
		return 0, errors.Join(err, s.Rollback())
	}
	cat.MarkModified(obj)
	if err := s.Commit(); err != nil {
		return 0, err
	}
	if err := s.Database().Auth().RenameObject(old, obj.QualifiedName()); err != nil {
		return 0, err
	}
	s.Logger().Info("Renamed object", "from", old, "to", obj.QualifiedName())
	return 0, nil
}
