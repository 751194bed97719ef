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
	"context"
	"time"

	"github.com/google/uuid"

	"strata/internal/auth"
	"strata/internal/catalog"
	ferrors "strata/internal/errors"
	"strata/internal/lock"
	"strata/internal/logging"
	"strata/internal/row"
	"strata/internal/value"
)

// Command is a statement that changes the database. Update returns the
// number of affected rows.
type Command interface {
	Update(ctx context.Context, s *Session) (int, error)
}

// Session is one client's view of the database. A session is used by one
// goroutine at a time.
type Session struct {
	id     string
	db     *Database
	user   *auth.User
	schema string
	txn    *catalog.Txn
	// current holds the last value NextValue returned per sequence ID.
	current map[int64]int64
	closed  bool
	log     *logging.Logger
}

func newSession(db *Database, user *auth.User) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		db:      db,
		user:    user,
		schema:  catalog.PublicSchema,
		current: make(map[int64]int64),
		log:     logging.NewLogger("session").With("session", id, "user", user.Name()),
	}
}

func (s *Session) ID() string                { return s.id }
func (s *Session) User() *auth.User          { return s.user }
func (s *Session) Database() *Database       { return s.db }
func (s *Session) Catalog() *catalog.Catalog { return s.db.catalog }
func (s *Session) Logger() *logging.Logger   { return s.log }

// Schema returns the default schema for unqualified names.
func (s *Session) Schema() string { return s.schema }

// SetSchema changes the default schema.
func (s *Session) SetSchema(name string) error {
	if _, ok := s.db.catalog.Schema(name); !ok {
		return ferrors.SchemaNotFound(name)
	}
	s.schema = name
	return nil
}

// Txn returns the open catalog transaction, starting one if needed.
func (s *Session) Txn() (*catalog.Txn, error) {
	if s.closed {
		return nil, ferrors.SessionClosed()
	}
	if s.txn == nil || !s.txn.Active() {
		s.txn = s.db.catalog.Begin()
	}
	return s.txn, nil
}

// Commit commits the open transaction, if any.
func (s *Session) Commit() error {
	if s.closed {
		return ferrors.SessionClosed()
	}
	if s.txn == nil || !s.txn.Active() {
		return nil
	}
	if err := s.txn.Commit(); err != nil {
		return err
	}
	s.txn = nil
	s.db.metrics.TransactionsCommitted.Add(1)
	return nil
}

// Rollback abandons the open transaction, if any.
func (s *Session) Rollback() error {
	if s.closed {
		return ferrors.SessionClosed()
	}
	if s.txn == nil || !s.txn.Active() {
		return nil
	}
	if err := s.txn.Rollback(); err != nil {
		return err
	}
	s.txn = nil
	s.db.metrics.TransactionsRolledBack.Add(1)
	return nil
}

// Lock acquires a lock on obj in the open transaction, waiting up to the
// configured lock timeout.
func (s *Session) Lock(ctx context.Context, obj catalog.Object, mode lock.Mode) error {
	txn, err := s.Txn()
	if err != nil {
		return err
	}
	err = s.db.catalog.Lock(ctx, txn, obj, mode, s.db.LockTimeout())
	if ferrors.IsCode(err, ferrors.ErrCodeLockTimeout) {
		s.db.metrics.LockTimeouts.Add(1)
	}
	return err
}

// Update runs cmd and records it in the statement metrics.
func (s *Session) Update(ctx context.Context, cmd Command) (int, error) {
	if s.closed {
		return 0, ferrors.SessionClosed()
	}
	start := time.Now()
	n, err := cmd.Update(ctx, s)
	s.db.metrics.RecordStatement(time.Since(start), err)
	if err != nil {
		s.log.Debug("Statement failed", "error", err)
	}
	return n, err
}

// ============================================================================
// Sequences
// ============================================================================

func (s *Session) findSequence(schema, name string) (*catalog.Sequence, error) {
	txn, err := s.Txn()
	if err != nil {
		return nil, err
	}
	seq, ok := s.db.catalog.FindObject(txn, schema, name, catalog.KindSequence).(*catalog.Sequence)
	if !ok {
		return nil, ferrors.ObjectNotFound(catalog.KindSequence.String(), schema+"."+name)
	}
	return seq, nil
}

// NextValue returns the next value of a sequence and remembers it as the
// session's current value.
func (s *Session) NextValue(ctx context.Context, schema, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	seq, err := s.findSequence(schema, name)
	if err != nil {
		return 0, err
	}
	if err := s.user.CheckRight(seq.QualifiedName(), auth.RightSelect); err != nil {
		return 0, err
	}
	v, err := seq.Next()
	if err != nil {
		return 0, err
	}
	s.current[seq.ID()] = v
	s.db.metrics.SequenceValues.Add(1)
	return v, nil
}

// CurrentValue returns the value NextValue last returned in this session.
func (s *Session) CurrentValue(schema, name string) (int64, error) {
	seq, err := s.findSequence(schema, name)
	if err != nil {
		return 0, err
	}
	v, ok := s.current[seq.ID()]
	if !ok {
		return 0, ferrors.InvalidValue(seq.QualifiedName(), "current value is not yet defined in this session")
	}
	return v, nil
}

// ============================================================================
// Rows
// ============================================================================

func (s *Session) findTable(schema, name string) (*catalog.Table, error) {
	txn, err := s.Txn()
	if err != nil {
		return nil, err
	}
	tbl, ok := s.db.catalog.FindObject(txn, schema, name, catalog.KindTable).(*catalog.Table)
	if !ok {
		return nil, ferrors.ObjectNotFound(catalog.KindTable.String(), schema+"."+name)
	}
	return tbl, nil
}

// Insert adds one row to a table under a shared lock, which keeps the
// table from being dropped until the transaction ends.
func (s *Session) Insert(ctx context.Context, schema, table string, values []value.Value) (*row.Row, error) {
	tbl, err := s.findTable(schema, table)
	if err != nil {
		return nil, err
	}
	if err := s.user.CheckRight(tbl.QualifiedName(), auth.RightInsert); err != nil {
		return nil, err
	}
	// A drop may have committed while we waited; resolve again under the
	// lock until the name maps to the table we hold.
	for {
		if err := s.Lock(ctx, tbl, lock.Shared); err != nil {
			return nil, err
		}
		current, err := s.findTable(schema, table)
		if err != nil {
			return nil, err
		}
		if current == tbl {
			return tbl.Insert(values)
		}
		if err := s.user.CheckRight(current.QualifiedName(), auth.RightInsert); err != nil {
			return nil, err
		}
		tbl = current
	}
}

// Rows returns a table's rows in position order.
func (s *Session) Rows(schema, table string) ([]*row.Row, error) {
	tbl, err := s.findTable(schema, table)
	if err != nil {
		return nil, err
	}
	if err := s.user.CheckRight(tbl.QualifiedName(), auth.RightSelect); err != nil {
		return nil, err
	}
	var out []*row.Row
	tbl.Rows().Scan(func(r *row.Row) bool {
		out = append(out, r)
		return true
	})
	return out, nil
}

// Close rolls back the open transaction and ends the session.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	err := s.Rollback()
	s.closed = true
	s.db.removeSession(s)
	return err
}
