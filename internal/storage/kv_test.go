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
	"errors"
	"os"
	"path/filepath"
	"testing"

	ferrors "strata/internal/errors"
)

func setupTestKVStore(t *testing.T) (*KVStore, string) {
	t.Helper()
	walPath := filepath.Join(t.TempDir(), "test.wal")
	store, err := NewKVStore(walPath)
	if err != nil {
		t.Fatalf("Failed to create KVStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, walPath
}

func TestKVStorePutGetDelete(t *testing.T) {
	store, _ := setupTestKVStore(t)

	if err := store.Put("meta:1", []byte("one")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	val, err := store.Get("meta:1")
	if err != nil || string(val) != "one" {
		t.Fatalf("Get = %q, %v", val, err)
	}

	if err := store.Delete("meta:1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("meta:1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Delete("missing"); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestKVStoreScan(t *testing.T) {
	store, _ := setupTestKVStore(t)
	store.Put("meta:1", []byte("a"))
	store.Put("meta:2", []byte("b"))
	store.Put("seq:1", []byte("32"))

	got, err := store.Scan("meta:")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 2 || string(got["meta:2"]) != "b" {
		t.Errorf("unexpected scan result %v", got)
	}
}

func TestKVStoreSurvivesReopen(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "reopen.wal")
	store, err := NewKVStore(walPath)
	if err != nil {
		t.Fatal(err)
	}
	store.Put("a", []byte("1"))
	store.Put("b", []byte("2"))
	store.Delete("a")

	var b Batch
	b.Put("c", []byte("3"))
	b.Delete("b")
	if err := store.Apply(&b); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	store.Close()

	reopened, err := NewKVStore(walPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Error("deleted key came back")
	}
	if _, err := reopened.Get("b"); !errors.Is(err, ErrNotFound) {
		t.Error("key deleted in batch came back")
	}
	if v, _ := reopened.Get("c"); string(v) != "3" {
		t.Errorf("batch put lost, got %q", v)
	}
}

func TestKVStoreTruncatesTornTail(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "torn.wal")
	store, err := NewKVStore(walPath)
	if err != nil {
		t.Fatal(err)
	}
	store.Put("kept", []byte("yes"))
	store.Close()

	goodSize := fileSize(t, walPath)

	// Half a record header, as left by a crash mid-append.
	f, err := os.OpenFile(walPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte{0, 0, 0})
	f.Close()

	reopened, err := NewKVStore(walPath)
	if err != nil {
		t.Fatalf("reopen after torn write: %v", err)
	}
	if v, _ := reopened.Get("kept"); string(v) != "yes" {
		t.Errorf("lost record before torn tail, got %q", v)
	}
	if got := fileSize(t, walPath); got != goodSize {
		t.Errorf("expected WAL truncated to %d bytes, got %d", goodSize, got)
	}

	reopened.Put("after", []byte("ok"))
	reopened.Close()

	again, err := NewKVStore(walPath)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if v, _ := again.Get("after"); string(v) != "ok" {
		t.Error("write after truncation was not replayed")
	}
}

func TestKVStoreRejectsForeignFile(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "foreign.wal")
	os.WriteFile(walPath, []byte("definitely not a wal file"), 0o644)

	_, err := NewKVStore(walPath)
	if !ferrors.IsCode(err, ferrors.ErrCodeWALCorrupted) {
		t.Errorf("Expected WALCorrupted, got %v", err)
	}
}

func TestEncryptedStore(t *testing.T) {
	walPath := filepath.Join(t.TempDir(), "enc.wal")
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	opts := Options{Encryption: EncryptionConfig{Enabled: true, Key: key}}

	store, err := OpenKVStore(walPath, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !store.IsEncrypted() {
		t.Error("store should report encryption")
	}
	store.Put("user:ADMIN", []byte("secret-hash"))
	store.Close()

	raw, _ := os.ReadFile(walPath)
	if containsBytes(raw, []byte("secret-hash")) {
		t.Error("plaintext found in encrypted WAL")
	}

	reopened, err := OpenKVStore(walPath, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, _ := reopened.Get("user:ADMIN"); string(v) != "secret-hash" {
		t.Errorf("decrypted value %q", v)
	}
	reopened.Close()

	wrong := make([]byte, 32)
	_, err = OpenKVStore(walPath, Options{Encryption: EncryptionConfig{Enabled: true, Key: wrong}})
	if !ferrors.IsCode(err, ferrors.ErrCodeWALCorrupted) {
		t.Errorf("Expected WALCorrupted with the wrong key, got %v", err)
	}

	_, err = NewKVStore(walPath)
	if !errors.Is(err, ErrEncryptionMismatch) {
		t.Errorf("Expected encryption mismatch, got %v", err)
	}
}

func TestEncryptorFromPassphrase(t *testing.T) {
	a, err := NewEncryptor(EncryptionConfig{Enabled: true, Passphrase: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewEncryptor(EncryptionConfig{Enabled: true, Passphrase: "pw"})

	sealed, err := a.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	plain, err := b.Decrypt(sealed)
	if err != nil || string(plain) != "payload" {
		t.Errorf("Decrypt = %q, %v", plain, err)
	}

	if _, err := NewEncryptor(EncryptionConfig{Enabled: true}); err == nil {
		t.Error("Expected an error without key or passphrase")
	}
	if e, err := NewEncryptor(EncryptionConfig{}); e != nil || err != nil {
		t.Error("disabled config should yield no encryptor")
	}
}

func TestEncryptorRejectsForeignRecords(t *testing.T) {
	key := make([]byte, 32)
	e, err := NewEncryptor(EncryptionConfig{Enabled: true, Key: key})
	if err != nil {
		t.Fatal(err)
	}

	// Same key, sealed without the WAL associated data.
	block, _ := aes.NewCipher(key)
	aead, _ := cipher.NewGCM(block)
	nonce := make([]byte, aead.NonceSize())
	foreign := aead.Seal(nonce, nonce, []byte("payload"), nil)
	if _, err := e.Decrypt(foreign); err == nil {
		t.Error("record sealed outside the WAL should not open")
	}

	if _, err := e.Decrypt([]byte{1, 2}); !errors.Is(err, errShortRecord) {
		t.Errorf("short record: got %v", err)
	}
	if _, err := NewEncryptor(EncryptionConfig{Enabled: true, Key: make([]byte, 16)}); err == nil {
		t.Error("Expected an error for a 16-byte key")
	}
	if _, err := NewEncryptor(EncryptionConfig{Enabled: true}); !errors.Is(err, errNoKeyMaterial) {
		t.Errorf("missing key material: got %v", err)
	}
}

func TestMemoryEngine(t *testing.T) {
	e, err := NewStorageEngine(StorageConfig{DataDir: MemoryDir})
	if err != nil {
		t.Fatal(err)
	}
	e.Put("seq:1", []byte("10"))

	var b Batch
	b.Put("seq:2", []byte("20"))
	b.Delete("seq:1")
	e.Apply(&b)

	got, _ := e.Scan("seq:")
	if len(got) != 1 || string(got["seq:2"]) != "20" {
		t.Errorf("unexpected contents %v", got)
	}
	if _, err := e.Get("seq:1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStorageEngineOnDisk(t *testing.T) {
	dir := t.TempDir()
	e, err := NewStorageEngine(StorageConfig{DataDir: filepath.Join(dir, "nested")})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if _, ok := e.(*KVStore); !ok {
		t.Fatalf("Expected a KVStore, got %T", e)
	}
	if _, err := os.Stat(filepath.Join(dir, "nested", "strata.wal")); err != nil {
		t.Errorf("WAL file not created: %v", err)
	}
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info.Size()
}

func containsBytes(haystack, needle []byte) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if string(haystack[i:i+len(needle)]) == string(needle) {
			return true
		}
	}
	return false
}
