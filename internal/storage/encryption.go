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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// EncryptionConfig selects how WAL records are sealed. A raw Key wins over
// Passphrase.
type EncryptionConfig struct {
	Enabled    bool
	Key        []byte
	Passphrase string
	Salt       []byte
}

// DefaultSalt applies to passphrase keys when Salt is empty.
var DefaultSalt = []byte("strata-wal-salt-v1")

// KeyDerivationIterations is the PBKDF2 round count for passphrase keys.
const KeyDerivationIterations = 100000

const walKeySize = 32

var (
	errNoKeyMaterial = errors.New("WAL encryption needs a key or a passphrase")
	errShortRecord   = errors.New("sealed record shorter than its nonce")
)

// Encryptor seals WAL record payloads with AES-256-GCM. Every record gets a
// fresh nonce and is bound to the WAL format through its associated data,
// so a sealed payload from another file format fails authentication.
type Encryptor struct {
	aead cipher.AEAD
	ad   []byte
}

// NewEncryptor builds the record sealer for config, or nil when encryption
// is off.
func NewEncryptor(config EncryptionConfig) (*Encryptor, error) {
	if !config.Enabled {
		return nil, nil
	}
	key, err := walKey(config)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	ad := make([]byte, 5)
	binary.BigEndian.PutUint32(ad, WALMagic)
	ad[4] = WALVersion
	return &Encryptor{aead: aead, ad: ad}, nil
}

func walKey(config EncryptionConfig) ([]byte, error) {
	if len(config.Key) > 0 {
		if len(config.Key) != walKeySize {
			return nil, fmt.Errorf("WAL key is %d bytes, want %d", len(config.Key), walKeySize)
		}
		return config.Key, nil
	}
	if config.Passphrase == "" {
		return nil, errNoKeyMaterial
	}
	salt := config.Salt
	if len(salt) == 0 {
		salt = DefaultSalt
	}
	return pbkdf2.Key([]byte(config.Passphrase), salt, KeyDerivationIterations, walKeySize, sha256.New), nil
}

// Encrypt lays the record out as nonce followed by the sealed payload.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	out := make([]byte, n, n+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return e.aead.Seal(out, out, plaintext, e.ad), nil
}

// Decrypt opens a record produced by Encrypt.
func (e *Encryptor) Decrypt(record []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(record) < n {
		return nil, errShortRecord
	}
	return e.aead.Open(nil, record[:n], record[n:], e.ad)
}
