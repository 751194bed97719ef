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

package storage

import (
	"strings"
	"sync"

	"strata/internal/logging"
)

// KVStore is an in-memory key-value store made durable by a WAL.
//
// Write path: lock, append to the WAL, update the map, unlock. Reads only
// touch the map.
//
// Thread Safety: All methods are safe for concurrent use.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
	wal  *WAL
	log  *logging.Logger
}

// Options configures a KVStore.
type Options struct {
	// Encryption configures at-rest encryption of WAL records.
	Encryption EncryptionConfig
	// SyncWrites forces an fsync after every record.
	SyncWrites bool
}

// NewKVStore opens the store at walPath without encryption.
func NewKVStore(walPath string) (*KVStore, error) {
	return OpenKVStore(walPath, Options{})
}

// OpenKVStore opens or creates the WAL at walPath and replays it.
func OpenKVStore(walPath string, opts Options) (*KVStore, error) {
	wal, err := OpenWAL(walPath, opts)
	if err != nil {
		return nil, err
	}

	store := &KVStore{
		data: make(map[string][]byte),
		wal:  wal,
		log:  logging.NewLogger("storage").With("wal", walPath),
	}

	records := 0
	err = wal.Replay(func(op byte, key string, value []byte) {
		records++
		switch op {
		case OpPut:
			store.data[key] = value
		case OpDelete:
			delete(store.data, key)
		}
	})
	if err != nil {
		wal.Close()
		return nil, err
	}

	store.log.Debug("WAL replayed", "records", records, "keys", len(store.data))
	return store, nil
}

// IsEncrypted reports whether the WAL is encrypted.
func (s *KVStore) IsEncrypted() bool {
	return s.wal.IsEncrypted()
}

func (s *KVStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(OpPut, key, value); err != nil {
		return err
	}
	s.data[key] = value
	return nil
}

func (s *KVStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return val, nil
}

func (s *KVStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.Write(OpDelete, key, nil); err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

// Scan returns all pairs whose key starts with prefix. It walks the whole
// map; the key space here is metadata, not row data.
func (s *KVStore) Scan(prefix string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte)
	for k, v := range s.data {
		if strings.HasPrefix(k, prefix) {
			result[k] = v
		}
	}
	return result, nil
}

// Apply writes the batch as a single WAL record and then applies it.
func (s *KVStore) Apply(b *Batch) error {
	if b.Len() == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.wal.WriteBatch(b); err != nil {
		return err
	}
	b.applyTo(s.data)
	return nil
}

func (s *KVStore) Close() error {
	if err := s.wal.Sync(); err != nil {
		s.wal.Close()
		return err
	}
	return s.wal.Close()
}
