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
Package engine ties the Strata components into a running database.

Database Overview:
==================

A Database owns the storage engine, the user directory, the lock manager
and the catalog. Clients talk to it through Sessions:

	┌─────────────────────────────────────────────┐
	│                  Session                    │
	│   Update(cmd)   NextValue   Commit/Rollback │
	└───────────────┬─────────────────────────────┘
	                │
	┌───────────────▼─────────────────────────────┐
	│   Catalog (+Txn)   Auth   Lock Manager      │
	└───────────────┬─────────────────────────────┘
	                │
	┌───────────────▼─────────────────────────────┐
	│        Storage Engine (WAL or memory)       │
	└─────────────────────────────────────────────┘

Start-up order:
===============

 1. Configure logging and install the process-wide value cache
 2. Open storage (replays the WAL)
 3. Load users; create the admin on first start
 4. Open the catalog and hook object removal to grant cleanup
*/
package engine

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"strata/internal/auth"
	"strata/internal/catalog"
	"strata/internal/config"
	ferrors "strata/internal/errors"
	"strata/internal/lock"
	"strata/internal/logging"
	"strata/internal/metrics"
	"strata/internal/storage"
	"strata/internal/value"
)

// Database is an open Strata instance.
type Database struct {
	cfg     *config.Config
	store   storage.Engine
	auth    *auth.Manager
	locks   *lock.Manager
	catalog *catalog.Catalog
	metrics *metrics.Metrics
	log     *logging.Logger

	lockTimeout atomic.Int64

	// initialPassword is set when Open generated the admin password.
	initialPassword string

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// ConfigureLogging applies the logging keys of cfg.
func ConfigureLogging(cfg *config.Config) {
	logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetJSONMode(cfg.LogJSON)
}

// Open starts a database with cfg.
func Open(cfg *config.Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ConfigureLogging(cfg)
	value.SetDefaultCache(value.NewCache(cfg.ValueCacheSize, cfg.ValueCacheShards))

	db := &Database{
		cfg:      cfg,
		locks:    lock.NewManager(),
		metrics:  metrics.Get(),
		log:      logging.NewLogger("engine"),
		sessions: make(map[string]*Session),
	}
	db.lockTimeout.Store(int64(cfg.LockTimeout()))

	store, err := storage.NewStorageEngine(storage.StorageConfig{
		DataDir: cfg.DataDir,
		WALFile: cfg.WALFile,
		Encryption: storage.EncryptionConfig{
			Enabled:    cfg.EncryptionEnabled,
			Passphrase: cfg.EncryptionPassphrase,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	db.store = store

	if db.auth, err = auth.NewManager(store); err != nil {
		store.Close()
		return nil, err
	}
	if !db.auth.AdminExists() {
		pw, err := db.auth.InitializeAdmin(cfg.AdminPassword)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create admin user: %w", err)
		}
		if cfg.AdminPassword == "" {
			db.initialPassword = pw
		}
		db.log.Info("Created admin user", "user", auth.AdminUsername)
	}

	db.catalog, err = catalog.Open(store, catalog.Options{
		Locks:             db.locks,
		MaxColumns:        cfg.MaxColumns,
		MaxRowsPerTable:   cfg.MaxRowsPerTable,
		SequenceCacheSize: int64(cfg.SequenceCacheSize),
		StrictOverflow:    cfg.StrictOverflow,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	db.catalog.OnRemove(db.objectRemoved)

	db.log.Info("Database opened", "data_dir", cfg.DataDir, "strict_overflow", cfg.StrictOverflow)
	return db, nil
}

// objectRemoved runs after a removal commits.
func (db *Database) objectRemoved(obj catalog.Object) {
	db.metrics.Kind(obj.Kind().String()).Dropped.Add(1)
	if err := db.auth.RevokeObject(obj.QualifiedName()); err != nil {
		db.log.Warn("Failed to revoke grants of removed object", "object", obj.QualifiedName(), "error", err)
	}
}

// Apply updates the settings that can change while running: log level,
// value cache capacity and lock timeout. It is meant for
// config.Manager.OnReload.
func (db *Database) Apply(cfg *config.Config) {
	ConfigureLogging(cfg)
	value.DefaultCache().Resize(cfg.ValueCacheSize)
	db.lockTimeout.Store(int64(cfg.LockTimeout()))
	db.log.Info("Configuration applied", "value_cache_size", cfg.ValueCacheSize, "lock_timeout_ms", cfg.LockTimeoutMs)
}

// InitialAdminPassword returns the generated admin password if this Open
// created the admin without a configured password.
func (db *Database) InitialAdminPassword() string { return db.initialPassword }

func (db *Database) Catalog() *catalog.Catalog { return db.catalog }
func (db *Database) Auth() *auth.Manager       { return db.auth }
func (db *Database) Locks() *lock.Manager      { return db.locks }
func (db *Database) Config() *config.Config    { return db.cfg }

// LockTimeout returns how long DDL waits for an object lock.
func (db *Database) LockTimeout() time.Duration {
	return time.Duration(db.lockTimeout.Load())
}

// Connect authenticates a user and opens a session.
func (db *Database) Connect(username, password string) (*Session, error) {
	user, err := db.auth.Authenticate(username, password)
	if err != nil {
		return nil, err
	}
	return db.newSession(user)
}

// SystemSession opens a session with full rights for internal work.
func (db *Database) SystemSession() (*Session, error) {
	return db.newSession(auth.System())
}

func (db *Database) newSession(user *auth.User) (*Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ferrors.SessionClosed().WithDetail("database is closed")
	}
	s := newSession(db, user)
	db.sessions[s.id] = s
	db.metrics.SessionOpened()
	return s, nil
}

func (db *Database) removeSession(s *Session) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.sessions[s.id]; ok {
		delete(db.sessions, s.id)
		db.metrics.SessionClosed()
	}
}

// WriteMetrics writes the Prometheus text exposition.
func (db *Database) WriteMetrics(w io.Writer) {
	snap := metrics.Snapshot{Cache: value.DefaultCache().Stats()}
	for _, obj := range db.allSequences() {
		snap.Sequences++
		snap.SequenceReservations += obj.Reservations()
	}
	db.metrics.WritePrometheus(w, snap)
}

func (db *Database) allSequences() []*catalog.Sequence {
	var out []*catalog.Sequence
	for _, schema := range db.catalog.Schemas() {
		for _, obj := range db.catalog.Objects(nil, schema) {
			if s, ok := obj.(*catalog.Sequence); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// Close rolls back open sessions, flushes sequences and closes storage.
func (db *Database) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	sessions := make([]*Session, 0, len(db.sessions))
	for _, s := range db.sessions {
		sessions = append(sessions, s)
	}
	db.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}

	var firstErr error
	if err := db.catalog.Close(); err != nil {
		firstErr = err
	}
	if err := db.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	db.log.Info("Database closed")
	return firstErr
}
