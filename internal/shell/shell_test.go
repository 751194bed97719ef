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

package shell

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"strata/internal/auth"
	"strata/internal/config"
	"strata/internal/engine"
	ferrors "strata/internal/errors"
	"strata/internal/storage"
)

func init() {
	auth.BcryptCost = bcrypt.MinCost
}

func newShell(t *testing.T) (*Shell, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = storage.MemoryDir
	cfg.AdminPassword = "secret"
	cfg.LogLevel = "error"
	cfg.LockTimeoutMs = 20

	db, err := engine.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sess, err := db.Connect(auth.AdminUsername, "secret")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	var out bytes.Buffer
	return New(db, sess, &out), &out
}

func run(t *testing.T, sh *Shell, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := sh.Execute(context.Background(), line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
}

func TestLex(t *testing.T) {
	toks, err := lex(`INSERT INTO "My Table" VALUES (1, 'it''s', NULL);`)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, tok := range toks {
		got = append(got, tok.text)
	}
	want := []string{"INSERT", "INTO", `"My Table"`, "VALUES", "(", "1", ",", "it's", ",", "NULL", ")"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lex = %q, want %q", got, want)
	}
	if toks[7].kind != tokString {
		t.Error("expected a string token")
	}

	if _, err := lex("SELECT 'open"); err == nil {
		t.Error("expected unterminated string error")
	}
	if _, err := lex(`DROP TABLE "open`); err == nil {
		t.Error("expected unterminated identifier error")
	}
}

func TestRelationsRead(t *testing.T) {
	toks, _ := lex("SELECT * FROM A x, S.B JOIN C ON x.id = C.id WHERE 1 = 1")
	got := relationsRead(toks)
	want := []string{"A", "S.B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("relationsRead = %q, want %q", got, want)
	}
}

func TestSequenceCommands(t *testing.T) {
	sh, out := newShell(t)
	run(t, sh,
		"CREATE SEQUENCE S START WITH 10 INCREMENT BY 5 CACHE 4",
		"SELECT NEXT VALUE FOR S",
		"SELECT NEXT VALUE FOR public.s",
		"SELECT CURRENT VALUE FOR S",
	)
	if got := out.String(); got != "OK\n10\n15\n15\n" {
		t.Errorf("output = %q", got)
	}

	out.Reset()
	run(t, sh, "SELECT * FROM INFORMATION_SCHEMA.SEQUENCES")
	if !strings.Contains(out.String(), "SEQUENCE_NAME") || !strings.Contains(out.String(), "(1 rows)") {
		t.Errorf("unexpected SEQUENCES view:\n%s", out.String())
	}
}

func TestTableLifecycle(t *testing.T) {
	sh, out := newShell(t)
	run(t, sh,
		"CREATE TABLE T (ID BIGINT IDENTITY, NAME VARCHAR NOT NULL)",
		"INSERT INTO T VALUES (NULL, 'a')",
		"INSERT INTO T VALUES (NULL, 'b')",
		"CREATE VIEW V AS SELECT NAME FROM T",
	)
	out.Reset()
	run(t, sh, "SELECT * FROM T")
	if got := out.String(); !strings.Contains(got, "NAME") || !strings.Contains(got, "(2 rows)") {
		t.Errorf("unexpected rows:\n%s", got)
	}

	err := sh.Execute(context.Background(), "DROP TABLE T")
	if !ferrors.IsCode(err, ferrors.ErrCodeCannotDrop) {
		t.Fatalf("expected CannotDrop under RESTRICT, got %v", err)
	}
	run(t, sh, "DROP TABLE T CASCADE")

	out.Reset()
	run(t, sh, `\d`)
	if strings.Contains(out.String(), "PUBLIC.T") || strings.Contains(out.String(), "PUBLIC.V") {
		t.Errorf("dropped objects still listed:\n%s", out.String())
	}
	run(t, sh, "DROP TABLE IF EXISTS T")
}

func TestRenameAndTransactions(t *testing.T) {
	sh, out := newShell(t)
	run(t, sh,
		"CREATE SEQUENCE A",
		"ALTER SEQUENCE A RENAME TO B",
	)
	out.Reset()
	run(t, sh, `\d`)
	if !strings.Contains(out.String(), "PUBLIC.B") || strings.Contains(out.String(), "PUBLIC.A\n") {
		t.Errorf("rename not visible:\n%s", out.String())
	}
	run(t, sh, "COMMIT", "ROLLBACK")
}

func TestGrantAndUsers(t *testing.T) {
	sh, _ := newShell(t)
	run(t, sh,
		"CREATE USER bob PASSWORD 'pw'",
		"CREATE TABLE T (ID INT)",
	)

	db := sh.db
	bobSess, err := db.Connect("bob", "pw")
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	bob := New(db, bobSess, &out)

	if err := bob.Execute(context.Background(), "SELECT * FROM T"); !ferrors.IsCode(err, ferrors.ErrCodePermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if err := bob.Execute(context.Background(), "GRANT SELECT ON T TO bob"); !ferrors.IsCode(err, ferrors.ErrCodeAdminRequired) {
		t.Fatalf("expected AdminRequired, got %v", err)
	}

	run(t, sh, "GRANT SELECT, INSERT ON T TO bob")
	run(t, bob, "INSERT INTO T VALUES (7)", "SELECT * FROM T")
	if !strings.Contains(out.String(), "(1 rows)") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	run(t, sh, "REVOKE INSERT ON T FROM bob")
	if err := bob.Execute(context.Background(), "INSERT INTO T VALUES (8)"); !ferrors.IsCode(err, ferrors.ErrCodePermissionDenied) {
		t.Errorf("expected PermissionDenied after revoke, got %v", err)
	}
}

func TestMetaCommands(t *testing.T) {
	sh, out := newShell(t)
	if err := sh.Execute(context.Background(), `\q`); !errors.Is(err, ErrQuit) {
		t.Errorf("expected ErrQuit, got %v", err)
	}
	run(t, sh, `\metrics`, `\cache`, `\users`, `\h`)
	for _, want := range []string{"strata_", "hit_rate=", auth.AdminUsername, "CREATE TABLE"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q", want)
		}
	}
}

func TestErrors(t *testing.T) {
	sh, _ := newShell(t)
	for _, line := range []string{
		"FROBNICATE",
		`\nope`,
		"CREATE TABLE T (ID WIDGET)",
		"CREATE TABLE T ID INT",
		"DROP SEQUENCE S",
		"INSERT INTO T VALUES (1",
		"CREATE SEQUENCE S START WITH x",
	} {
		if err := sh.Execute(context.Background(), line); err == nil {
			t.Errorf("%s: expected an error", line)
		}
	}
	if err := sh.Execute(context.Background(), "   "); err != nil {
		t.Errorf("blank line: %v", err)
	}
}
