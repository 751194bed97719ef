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

import "path/filepath"

// MemoryDir as a data directory selects the in-memory engine.
const MemoryDir = ":memory:"

// StorageConfig contains configuration for creating a storage engine.
type StorageConfig struct {
	DataDir    string
	WALFile    string
	SyncWrites bool
	Encryption EncryptionConfig
}

// NewStorageEngine creates the engine described by config.
func NewStorageEngine(config StorageConfig) (Engine, error) {
	if config.DataDir == MemoryDir {
		return NewMemoryEngine(), nil
	}
	walFile := config.WALFile
	if walFile == "" {
		walFile = "strata.wal"
	}
	return OpenKVStore(filepath.Join(config.DataDir, walFile), Options{
		Encryption: config.Encryption,
		SyncWrites: config.SyncWrites,
	})
}
