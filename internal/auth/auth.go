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
Package auth provides authentication and authorization for Strata.

Security Model:
===============

The model is "default deny":
  - Users must be created before they can authenticate
  - A non-admin user needs an explicit grant on each schema object
  - Admin users pass every right check and are the only users allowed to
    manage function aliases and other users

Storage Schema:
===============

Each user is one JSON record holding the bcrypt hash, the admin flag and
the grants, keyed by the qualified object name ("SCHEMA.NAME"):

	user:<name>

Passwords are hashed with bcrypt. A dummy comparison runs for unknown
users so response time does not reveal which names exist.
*/
package auth

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	ferrors "strata/internal/errors"
	"strata/internal/logging"
	"strata/internal/storage"
)

// AdminUsername is the reserved administrator created on first start.
const AdminUsername = "admin"

// PasswordLength is the default length for generated passwords.
const PasswordLength = 16

// passwordCharset excludes ambiguous characters (0, O, l, 1, I).
const passwordCharset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789!@#$%^&*"

// DefaultBcryptCost is the bcrypt cost factor for new hashes.
const DefaultBcryptCost = 10

// BcryptCost is the cost used when hashing. Tests lower it.
var BcryptCost = DefaultBcryptCost

const userKeyPrefix = "user:"

// dummyHash is compared against when a user does not exist.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z1Yv7y3Gx6R2p8T.bDA1vJ5e")

// GenerateSecurePassword returns a random password of the given length.
func GenerateSecurePassword(length int) (string, error) {
	if length <= 0 {
		length = PasswordLength
	}

	password := make([]byte, length)
	charsetLen := big.NewInt(int64(len(passwordCharset)))
	for i := range password {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", errors.New("failed to generate secure random number: " + err.Error())
		}
		password[i] = passwordCharset[idx.Int64()]
	}
	return string(password), nil
}

// userRecord is the persisted form of a User.
type userRecord struct {
	Name         string           `json:"name"`
	PasswordHash string           `json:"password_hash"`
	Admin        bool             `json:"admin"`
	Grants       map[string]Right `json:"grants,omitempty"`
}

// User is an authenticated principal. Grants may change while a session
// holds the user; checks always see the current grants.
type User struct {
	name  string
	admin bool

	mu     sync.RWMutex
	hash   string
	grants map[string]Right
}

// Name returns the user name.
func (u *User) Name() string { return u.name }

// IsAdmin reports whether the user has administrator rights.
func (u *User) IsAdmin() bool { return u.admin }

// HasRight reports whether the user holds want on object.
func (u *User) HasRight(object string, want Right) bool {
	if u.admin {
		return true
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.grants[object].Has(want)
}

// CheckRight fails with PermissionDenied unless the user holds want on
// object.
func (u *User) CheckRight(object string, want Right) error {
	if u.HasRight(object, want) {
		return nil
	}
	return ferrors.PermissionDenied(object).WithDetail(want.String() + " required for user " + u.name)
}

// CheckAdmin fails with AdminRequired unless the user is an administrator.
func (u *User) CheckAdmin() error {
	if u.admin {
		return nil
	}
	return ferrors.AdminRequired(u.name)
}

// Grants returns a copy of the user's grants.
func (u *User) Grants() map[string]Right {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make(map[string]Right, len(u.grants))
	for k, v := range u.grants {
		out[k] = v
	}
	return out
}

func (u *User) record() userRecord {
	u.mu.RLock()
	defer u.mu.RUnlock()
	grants := make(map[string]Right, len(u.grants))
	for k, v := range u.grants {
		grants[k] = v
	}
	return userRecord{Name: u.name, PasswordHash: u.hash, Admin: u.admin, Grants: grants}
}

// Manager owns the user directory.
//
// Thread Safety: All methods are safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	store storage.Engine
	users map[string]*User
	log   *logging.Logger
}

// NewManager loads every user from store.
func NewManager(store storage.Engine) (*Manager, error) {
	m := &Manager{
		store: store,
		users: make(map[string]*User),
		log:   logging.NewLogger("auth"),
	}

	records, err := store.Scan(userKeyPrefix)
	if err != nil {
		return nil, ferrors.NewStorageError("cannot load users").WithCause(err)
	}
	for key, data := range records {
		var rec userRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, ferrors.NewStorageError("corrupt user record " + key).WithCause(err)
		}
		if rec.Grants == nil {
			rec.Grants = make(map[string]Right)
		}
		m.users[rec.Name] = &User{name: rec.Name, admin: rec.Admin, hash: rec.PasswordHash, grants: rec.Grants}
	}
	m.log.Debug("Users loaded", "count", len(m.users))
	return m, nil
}

func (m *Manager) persist(u *User) error {
	data, err := json.Marshal(u.record())
	if err != nil {
		return err
	}
	return m.store.Put(userKeyPrefix+u.name, data)
}

// CreateUser adds a user with the given password.
func (m *Manager) CreateUser(name, password string, admin bool) (*User, error) {
	if name == "" {
		return nil, ferrors.InvalidValue("user name", "must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, ferrors.InternalError("failed to hash password").WithCause(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[name]; ok {
		return nil, ferrors.ObjectAlreadyExists("user", name)
	}
	u := &User{name: name, admin: admin, hash: string(hash), grants: make(map[string]Right)}
	if err := m.persist(u); err != nil {
		return nil, err
	}
	m.users[name] = u
	m.log.Info("User created", "user", name, "admin", admin)
	return u, nil
}

// DropUser removes a user. The last administrator cannot be dropped.
func (m *Manager) DropUser(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[name]
	if !ok {
		return ferrors.ObjectNotFound("user", name)
	}
	if u.admin && m.adminCountLocked() == 1 {
		return ferrors.CannotDrop(name).WithDetail("last administrator")
	}
	if err := m.store.Delete(userKeyPrefix + name); err != nil {
		return err
	}
	delete(m.users, name)
	m.log.Info("User dropped", "user", name)
	return nil
}

func (m *Manager) adminCountLocked() int {
	n := 0
	for _, u := range m.users {
		if u.admin {
			n++
		}
	}
	return n
}

// SetPassword replaces a user's password.
func (m *Manager) SetPassword(name, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return ferrors.InternalError("failed to hash password").WithCause(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return ferrors.ObjectNotFound("user", name)
	}
	u.mu.Lock()
	u.hash = string(hash)
	u.mu.Unlock()
	return m.persist(u)
}

// Authenticate returns the user when name and password match.
func (m *Manager) Authenticate(name, password string) (*User, error) {
	m.mu.RLock()
	u, ok := m.users[name]
	m.mu.RUnlock()

	if !ok {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ferrors.AuthenticationFailed()
	}

	u.mu.RLock()
	hash := u.hash
	u.mu.RUnlock()
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		m.log.Warn("Authentication failed", "user", name)
		return nil, ferrors.AuthenticationFailed()
	}
	return u, nil
}

// User looks a user up by name.
func (m *Manager) User(name string) (*User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[name]
	return u, ok
}

// Users returns the sorted user names.
func (m *Manager) Users() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.users))
	for name := range m.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Grant adds rights on object to a user.
func (m *Manager) Grant(name, object string, rights Right) error {
	return m.update(name, func(u *User) {
		u.grants[object] |= rights
	})
}

// Revoke removes rights on object from a user.
func (m *Manager) Revoke(name, object string, rights Right) error {
	return m.update(name, func(u *User) {
		left := u.grants[object] &^ rights
		if left == RightNone {
			delete(u.grants, object)
		} else {
			u.grants[object] = left
		}
	})
}

func (m *Manager) update(name string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return ferrors.ObjectNotFound("user", name)
	}
	u.mu.Lock()
	fn(u)
	u.mu.Unlock()
	return m.persist(u)
}

// RevokeObject removes every grant on object, for example after the object
// was dropped, so a later object with the same name starts without grants.
func (m *Manager) RevokeObject(object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, u := range m.users {
		u.mu.Lock()
		_, had := u.grants[object]
		delete(u.grants, object)
		u.mu.Unlock()
		if had {
			errs = append(errs, m.persist(u))
		}
	}
	return errors.Join(errs...)
}

// RenameObject moves every grant on from to to.
func (m *Manager) RenameObject(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, u := range m.users {
		u.mu.Lock()
		rights, had := u.grants[from]
		if had {
			delete(u.grants, from)
			u.grants[to] |= rights
		}
		u.mu.Unlock()
		if had {
			errs = append(errs, m.persist(u))
		}
	}
	return errors.Join(errs...)
}

// AdminExists reports whether the reserved administrator exists.
func (m *Manager) AdminExists() bool {
	_, ok := m.User(AdminUsername)
	return ok
}

// InitializeAdmin creates the reserved administrator. An empty password
// generates one, which is returned.
func (m *Manager) InitializeAdmin(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		generated, err := GenerateSecurePassword(PasswordLength)
		if err != nil {
			return "", err
		}
		password = generated
	}
	if _, err := m.CreateUser(AdminUsername, password, true); err != nil {
		return "", err
	}
	return password, nil
}

// System returns a detached administrator used by internal maintenance
// work that does not run on behalf of a client.
func System() *User {
	return &User{name: "SYSTEM", admin: true, grants: map[string]Right{}}
}
