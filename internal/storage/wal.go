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
Write-Ahead Log (WAL) Implementation
=====================================

File Layout:
============

	┌──────────────────────┬──────────┬──────────┬─────
	│ Header (8B)          │ Record 1 │ Record 2 │ ...
	└──────────────────────┴──────────┴──────────┴─────

	Header: Magic "STRW" (4) + Version (1) + Flags (1) + Reserved (2)

Record Format:
==============

	┌────────────┬────────────┬──────────────────────────────┐
	│ Len (4B)   │ CRC32 (4B) │ Payload (Len bytes)          │
	└────────────┴────────────┴──────────────────────────────┘

The checksum covers the payload as stored. When encryption is enabled the
stored payload is nonce + ciphertext + tag of the plain payload:

	┌─────────┬───────────┬─────────────┬─────────────┬─────────────┐
	│ Op (1B) │ KeyLen(4B)│ Key (var)   │ ValLen (4B) │ Value (var) │
	└─────────┴───────────┴─────────────┴─────────────┴─────────────┘

A batch record has Op = OpBatch, an empty key, and a value made of
concatenated plain payloads, one per mutation.

Recovery:
=========

A crash can leave a partially written last record. Replay stops at the
first record that is short or fails its checksum and truncates the file
there, so the next append starts on a record boundary. A record that
passes its checksum but cannot be decrypted or decoded is corruption and
fails the open.
*/
package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	ferrors "strata/internal/errors"
	"strata/internal/logging"
)

// Operation type constants for WAL records.
const (
	OpPut    byte = 1
	OpDelete byte = 2
	OpBatch  byte = 3
)

// WAL file header constants.
const (
	// WALMagic is "STRW" in ASCII.
	WALMagic      uint32 = 0x53545257
	WALVersion    byte   = 1
	WALHeaderSize        = 8

	WALFlagEncrypted byte = 0x01
)

const recordHeaderSize = 8

// ErrEncryptionMismatch is returned when the WAL's encryption flag does not
// match the configuration it is opened with.
var ErrEncryptionMismatch = errors.New("encryption configuration mismatch")

// EncryptionMismatchError describes which side is encrypted.
type EncryptionMismatchError struct {
	FileEncrypted   bool
	ConfigEncrypted bool
}

func (e *EncryptionMismatchError) Error() string {
	if e.ConfigEncrypted {
		return "encryption mismatch: WAL was created without encryption but encryption is enabled"
	}
	return "encryption mismatch: WAL is encrypted but encryption is disabled; set STRATA_ENCRYPTION_PASSPHRASE"
}

func (e *EncryptionMismatchError) Unwrap() error {
	return ErrEncryptionMismatch
}

// WAL is an append-only log of mutations.
//
// Thread Safety: Write, WriteBatch and Sync are safe for concurrent use.
// Replay must run before the first write.
type WAL struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	encryptor *Encryptor
	sync      bool
	log       *logging.Logger
}

// OpenWAL opens or creates the WAL at path.
func OpenWAL(path string, opts Options) (*WAL, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ferrors.NewStorageError("cannot create data directory " + dir).WithCause(err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, ferrors.NewStorageError("cannot open WAL " + path).WithCause(err)
	}

	encryptor, err := NewEncryptor(opts.Encryption)
	if err != nil {
		f.Close()
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ferrors.NewStorageError("cannot stat WAL " + path).WithCause(err)
	}

	if stat.Size() == 0 {
		err = writeHeader(f, encryptor != nil)
	} else {
		err = checkHeader(f, encryptor != nil)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, ferrors.NewStorageError("cannot seek WAL").WithCause(err)
	}

	return &WAL{
		file:      f,
		path:      path,
		encryptor: encryptor,
		sync:      opts.SyncWrites,
		log:       logging.NewLogger("wal"),
	}, nil
}

func writeHeader(f *os.File, encrypted bool) error {
	header := make([]byte, WALHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], WALMagic)
	header[4] = WALVersion
	if encrypted {
		header[5] = WALFlagEncrypted
	}
	if _, err := f.WriteAt(header, 0); err != nil {
		return ferrors.NewStorageError("cannot write WAL header").WithCause(err)
	}
	return nil
}

func checkHeader(f *os.File, configEncrypted bool) error {
	header := make([]byte, WALHeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return ferrors.WALCorrupted("header is truncated").WithCause(err)
	}
	if binary.BigEndian.Uint32(header[0:4]) != WALMagic {
		return ferrors.WALCorrupted("not a Strata WAL file")
	}
	if header[4] > WALVersion {
		return ferrors.WALCorrupted(fmt.Sprintf("version %d is newer than supported version %d", header[4], WALVersion))
	}
	fileEncrypted := header[5]&WALFlagEncrypted != 0
	if fileEncrypted != configEncrypted {
		return &EncryptionMismatchError{FileEncrypted: fileEncrypted, ConfigEncrypted: configEncrypted}
	}
	return nil
}

// IsEncrypted reports whether records are encrypted.
func (w *WAL) IsEncrypted() bool {
	return w.encryptor != nil
}

// Write appends one put or delete record.
func (w *WAL) Write(op byte, key string, value []byte) error {
	return w.append(encodePayload(nil, op, key, value))
}

// WriteBatch appends the batch as one record.
func (w *WAL) WriteBatch(b *Batch) error {
	var inner []byte
	for _, m := range b.ops {
		inner = encodePayload(inner, m.Op, m.Key, m.Value)
	}
	return w.append(encodePayload(nil, OpBatch, "", inner))
}

func (w *WAL) append(payload []byte) error {
	if w.encryptor != nil {
		enc, err := w.encryptor.Encrypt(payload)
		if err != nil {
			return ferrors.NewStorageError("cannot encrypt WAL record").WithCause(err)
		}
		payload = enc
	}

	buf := make([]byte, recordHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(payload))
	copy(buf[recordHeaderSize:], payload)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Write(buf); err != nil {
		return ferrors.NewStorageError("cannot append to WAL").WithCause(err)
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			return ferrors.NewStorageError("cannot sync WAL").WithCause(err)
		}
	}
	return nil
}

// Sync flushes written records to stable storage.
func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	return w.file.Close()
}

// Size returns the current file size in bytes.
func (w *WAL) Size() (int64, error) {
	info, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Replay invokes fn for every put and delete in log order, expanding
// batches. A torn tail is truncated; the file is left positioned for
// appending.
func (w *WAL) Replay(fn func(op byte, key string, value []byte)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(WALHeaderSize, io.SeekStart); err != nil {
		return ferrors.NewStorageError("cannot seek WAL").WithCause(err)
	}
	reader := bufio.NewReader(w.file)
	good := int64(WALHeaderSize)

	for {
		var hdr [recordHeaderSize]byte
		n, err := io.ReadFull(reader, hdr[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			if n > 0 || errors.Is(err, io.ErrUnexpectedEOF) {
				return w.truncate(good, "short record header")
			}
			return ferrors.NewStorageError("cannot read WAL").WithCause(err)
		}

		length := binary.BigEndian.Uint32(hdr[0:4])
		sum := binary.BigEndian.Uint32(hdr[4:8])
		payload := make([]byte, length)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return w.truncate(good, "short record payload")
		}
		if crc32.ChecksumIEEE(payload) != sum {
			return w.truncate(good, "checksum mismatch")
		}

		if w.encryptor != nil {
			plain, err := w.encryptor.Decrypt(payload)
			if err != nil {
				return ferrors.WALCorrupted(fmt.Sprintf("cannot decrypt record at offset %d", good)).
					WithHint("check the encryption passphrase").WithCause(err)
			}
			payload = plain
		}

		if err := replayPayload(payload, fn); err != nil {
			return ferrors.WALCorrupted(fmt.Sprintf("record at offset %d: %v", good, err))
		}
		good += recordHeaderSize + int64(length)
	}

	_, err := w.file.Seek(good, io.SeekStart)
	return err
}

func (w *WAL) truncate(at int64, reason string) error {
	w.log.Warn("Truncating torn WAL tail", "path", w.path, "offset", at, "reason", reason)
	if err := w.file.Truncate(at); err != nil {
		return ferrors.NewStorageError("cannot truncate WAL").WithCause(err)
	}
	if _, err := w.file.Seek(at, io.SeekStart); err != nil {
		return ferrors.NewStorageError("cannot seek WAL").WithCause(err)
	}
	return nil
}

func replayPayload(payload []byte, fn func(op byte, key string, value []byte)) error {
	op, key, value, rest, err := decodePayload(payload)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return fmt.Errorf("%d trailing bytes", len(rest))
	}

	switch op {
	case OpPut, OpDelete:
		fn(op, key, value)
	case OpBatch:
		for len(value) > 0 {
			var innerOp byte
			var k string
			var v []byte
			innerOp, k, v, value, err = decodePayload(value)
			if err != nil {
				return err
			}
			if innerOp != OpPut && innerOp != OpDelete {
				return fmt.Errorf("unexpected op %d in batch", innerOp)
			}
			fn(innerOp, k, v)
		}
	default:
		return fmt.Errorf("unknown op %d", op)
	}
	return nil
}

// encodePayload appends Op + KeyLen + Key + ValLen + Value to dst.
func encodePayload(dst []byte, op byte, key string, value []byte) []byte {
	dst = append(dst, op)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(key)))
	dst = append(dst, key...)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(value)))
	return append(dst, value...)
}

func decodePayload(b []byte) (op byte, key string, value, rest []byte, err error) {
	if len(b) < 9 {
		return 0, "", nil, nil, io.ErrUnexpectedEOF
	}
	op = b[0]
	keyLen := int(binary.BigEndian.Uint32(b[1:5]))
	if len(b) < 5+keyLen+4 {
		return 0, "", nil, nil, io.ErrUnexpectedEOF
	}
	key = string(b[5 : 5+keyLen])
	valLen := int(binary.BigEndian.Uint32(b[5+keyLen : 9+keyLen]))
	end := 9 + keyLen + valLen
	if len(b) < end {
		return 0, "", nil, nil, io.ErrUnexpectedEOF
	}
	value = make([]byte, valLen)
	copy(value, b[9+keyLen:end])
	return op, key, value, b[end:], nil
}
