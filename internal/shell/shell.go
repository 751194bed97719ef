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
Package shell implements the administrative command language of the
strata binary.

The shell is not a SQL engine. It recognizes a fixed set of statement
shapes, builds the matching command objects and runs them through the
session:

	CREATE TABLE [IF NOT EXISTS] t (c TYPE [NOT NULL] [IDENTITY], ...)
	CREATE VIEW [IF NOT EXISTS] v AS SELECT ... FROM t
	CREATE SEQUENCE [IF NOT EXISTS] s [START WITH n] [INCREMENT BY n] [CACHE n] [MAXVALUE n]
	CREATE ALIAS [IF NOT EXISTS] f FOR 'target' [DETERMINISTIC]
	CREATE SCHEMA [IF NOT EXISTS] s [AUTHORIZATION user]
	CREATE USER u PASSWORD 'pw' [ADMIN]
	DROP TABLE|VIEW|SEQUENCE|ALIAS [IF EXISTS] a, b [RESTRICT|CASCADE]
	DROP USER u
	ALTER TABLE|VIEW|SEQUENCE|ALIAS x RENAME TO y
	GRANT rights ON x TO u / REVOKE rights ON x FROM u
	INSERT INTO t VALUES (v, ...)
	SELECT * FROM t
	SELECT NEXT VALUE FOR s / SELECT CURRENT VALUE FOR s
	SET SCHEMA s / COMMIT / ROLLBACK

Meta commands start with a backslash: \q \h \d \metrics \users \cache.
*/
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"strata/internal/auth"
	"strata/internal/catalog"
	"strata/internal/ddl"
	"strata/internal/engine"
	"strata/internal/row"
	"strata/internal/sequence"
	"strata/internal/value"
)

// ErrQuit is returned by Execute for \q.
var ErrQuit = errors.New("quit")

// Completions lists the words offered by tab completion.
var Completions = []string{
	"CREATE TABLE", "CREATE VIEW", "CREATE SEQUENCE", "CREATE ALIAS", "CREATE SCHEMA", "CREATE USER",
	"DROP TABLE", "DROP VIEW", "DROP SEQUENCE", "DROP ALIAS", "DROP USER",
	"ALTER TABLE", "ALTER VIEW", "ALTER SEQUENCE", "ALTER ALIAS",
	"GRANT", "REVOKE", "INSERT INTO", "SELECT * FROM", "SELECT NEXT VALUE FOR", "SELECT CURRENT VALUE FOR",
	"SET SCHEMA", "COMMIT", "ROLLBACK",
	`\q`, `\h`, `\d`, `\metrics`, `\users`, `\cache`,
}

// Shell executes command lines against one session.
type Shell struct {
	db   *engine.Database
	sess *engine.Session
	out  io.Writer
}

// New creates a shell writing results to out.
func New(db *engine.Database, sess *engine.Session, out io.Writer) *Shell {
	return &Shell{db: db, sess: sess, out: out}
}

// Session returns the shell's session.
func (sh *Shell) Session() *engine.Session { return sh.sess }

// Execute runs one command line.
func (sh *Shell) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, `\`) {
		return sh.meta(line)
	}

	toks, err := lex(line)
	if err != nil {
		return err
	}
	p := &parser{toks: toks}

	switch {
	case p.accept("CREATE"):
		return sh.create(ctx, p)
	case p.accept("DROP"):
		return sh.drop(ctx, p)
	case p.accept("ALTER"):
		return sh.alter(ctx, p)
	case p.accept("GRANT"):
		return sh.grant(p, true)
	case p.accept("REVOKE"):
		return sh.grant(p, false)
	case p.accept("INSERT", "INTO"):
		return sh.insert(ctx, p)
	case p.accept("SELECT"):
		return sh.query(ctx, p)
	case p.accept("SET", "SCHEMA"):
		name, err := p.word()
		if err != nil {
			return err
		}
		return sh.sess.SetSchema(catalog.Normalize(name))
	case p.accept("COMMIT"):
		return sh.ok(sh.sess.Commit())
	case p.accept("ROLLBACK"):
		return sh.ok(sh.sess.Rollback())
	default:
		return fmt.Errorf("unknown command %q (\\h for help)", p.peek().text)
	}
}

func (sh *Shell) ok(err error) error {
	if err == nil {
		fmt.Fprintln(sh.out, "OK")
	}
	return err
}

func (sh *Shell) run(ctx context.Context, cmd engine.Command) error {
	_, err := sh.sess.Update(ctx, cmd)
	return sh.ok(err)
}

// name resolves an identifier against the session's default schema.
func (sh *Shell) name(raw string) ddl.Name {
	n := ddl.ParseName(raw)
	if n.Schema == "" {
		n.Schema = sh.sess.Schema()
	}
	return n
}

func kindOf(p *parser) (catalog.Kind, bool) {
	switch {
	case p.accept("TABLE"):
		return catalog.KindTable, true
	case p.accept("VIEW"):
		return catalog.KindView, true
	case p.accept("SEQUENCE"):
		return catalog.KindSequence, true
	case p.accept("ALIAS"):
		return catalog.KindFunctionAlias, true
	}
	return 0, false
}

// ============================================================================
// CREATE
// ============================================================================

func (sh *Shell) create(ctx context.Context, p *parser) error {
	switch {
	case p.accept("USER"):
		return sh.createUser(p)
	case p.accept("SCHEMA"):
		return sh.createSchema(ctx, p)
	}

	kind, ok := kindOf(p)
	if !ok {
		return fmt.Errorf("cannot create %q", p.peek().text)
	}
	ifNotExists := p.accept("IF", "NOT", "EXISTS")
	raw, err := p.word()
	if err != nil {
		return err
	}
	name := sh.name(raw)

	var cmd engine.Command
	switch kind {
	case catalog.KindTable:
		cols, err := columns(p)
		if err != nil {
			return err
		}
		cmd = &ddl.CreateTable{IfNotExists: ifNotExists, Name: name, Columns: cols}
	case catalog.KindView:
		if err := p.expect("AS"); err != nil {
			return err
		}
		deps := relationsRead(p.toks[p.pos:])
		names := make([]ddl.Name, len(deps))
		for i, d := range deps {
			names[i] = sh.name(d)
		}
		cmd = &ddl.CreateView{IfNotExists: ifNotExists, Name: name, Query: p.rest(), DependsOn: names}
	case catalog.KindSequence:
		opts, err := sequenceOptions(p)
		if err != nil {
			return err
		}
		cmd = &ddl.CreateSequence{IfNotExists: ifNotExists, Name: name, Options: opts}
	case catalog.KindFunctionAlias:
		if err := p.expect("FOR"); err != nil {
			return err
		}
		target := p.next()
		if target.text == "" {
			return errors.New("expected alias target")
		}
		det := p.accept("DETERMINISTIC")
		cmd = &ddl.CreateFunctionAlias{IfNotExists: ifNotExists, Name: name, Target: target.text, Deterministic: det}
	}
	if err := p.end(); err != nil {
		return err
	}
	return sh.run(ctx, cmd)
}

func columns(p *parser) ([]catalog.Column, error) {
	if !p.punct("(") {
		return nil, errors.New("expected column list")
	}
	var cols []catalog.Column
	for {
		name, err := p.word()
		if err != nil {
			return nil, err
		}
		typeName, err := p.word()
		if err != nil {
			return nil, err
		}
		t, ok := value.ParseType(strings.ToUpper(typeName))
		if !ok {
			return nil, fmt.Errorf("unknown type %q", typeName)
		}
		col := catalog.Column{Name: catalog.Normalize(name), Type: t, Nullable: true}
		for {
			if p.accept("NOT", "NULL") {
				col.Nullable = false
			} else if p.accept("IDENTITY") {
				col.Identity = true
				col.Nullable = false
			} else {
				break
			}
		}
		cols = append(cols, col)
		if p.punct(")") {
			return cols, nil
		}
		if !p.punct(",") {
			return nil, fmt.Errorf("expected , or ) near %q", p.peek().text)
		}
	}
}

// relationsRead returns the names following FROM or JOIN in a query.
func relationsRead(toks []token) []string {
	var out []string
	for i := 0; i < len(toks); i++ {
		if !toks[i].is("FROM") && !toks[i].is("JOIN") {
			continue
		}
		for i+1 < len(toks) && toks[i+1].kind == tokWord {
			i++
			out = append(out, toks[i].text)
			if i+1 < len(toks) && toks[i+1].kind == tokWord && !isKeyword(toks[i+1]) {
				i++ // alias
			}
			if i+1 >= len(toks) || toks[i+1].text != "," {
				break
			}
			i++
		}
	}
	return out
}

func isKeyword(t token) bool {
	for _, kw := range []string{"WHERE", "JOIN", "ON", "GROUP", "ORDER", "LEFT", "RIGHT", "INNER", "OUTER", "UNION", "LIMIT"} {
		if t.is(kw) {
			return true
		}
	}
	return false
}

func sequenceOptions(p *parser) (sequence.Options, error) {
	var opts sequence.Options
	opts.Start = 1
	for !p.done() {
		var target *int64
		switch {
		case p.accept("START", "WITH"):
			target = &opts.Start
		case p.accept("INCREMENT", "BY"):
			target = &opts.Increment
		case p.accept("CACHE"):
			target = &opts.CacheSize
		case p.accept("MAXVALUE"):
			target = &opts.MaxValue
		default:
			return opts, fmt.Errorf("unexpected %q", p.peek().text)
		}
		n, err := strconv.ParseInt(p.next().text, 10, 64)
		if err != nil {
			return opts, err
		}
		*target = n
	}
	return opts, nil
}

func (sh *Shell) createSchema(ctx context.Context, p *parser) error {
	ifNotExists := p.accept("IF", "NOT", "EXISTS")
	name, err := p.word()
	if err != nil {
		return err
	}
	cmd := &ddl.CreateSchema{IfNotExists: ifNotExists, Name: catalog.Normalize(name)}
	if p.accept("AUTHORIZATION") {
		if cmd.Owner, err = p.word(); err != nil {
			return err
		}
	}
	if err := p.end(); err != nil {
		return err
	}
	return sh.run(ctx, cmd)
}

func (sh *Shell) createUser(p *parser) error {
	if err := sh.sess.User().CheckAdmin(); err != nil {
		return err
	}
	name, err := p.word()
	if err != nil {
		return err
	}
	if err := p.expect("PASSWORD"); err != nil {
		return err
	}
	pw := p.next()
	if pw.kind != tokString {
		return errors.New("password must be a quoted string")
	}
	admin := p.accept("ADMIN")
	if err := p.end(); err != nil {
		return err
	}
	_, err = sh.db.Auth().CreateUser(name, pw.text, admin)
	return sh.ok(err)
}

// ============================================================================
// DROP / ALTER / GRANT
// ============================================================================

func (sh *Shell) drop(ctx context.Context, p *parser) error {
	if p.accept("USER") {
		if err := sh.sess.User().CheckAdmin(); err != nil {
			return err
		}
		name, err := p.word()
		if err != nil {
			return err
		}
		return sh.ok(sh.db.Auth().DropUser(name))
	}

	kind, ok := kindOf(p)
	if !ok {
		return fmt.Errorf("cannot drop %q", p.peek().text)
	}
	ifExists := p.accept("IF", "EXISTS")
	raw, err := p.words()
	if err != nil {
		return err
	}
	action := ddl.Restrict
	if p.accept("CASCADE") {
		action = ddl.Cascade
	} else {
		p.accept("RESTRICT")
	}
	if err := p.end(); err != nil {
		return err
	}

	names := make([]ddl.Name, len(raw))
	for i, r := range raw {
		names[i] = sh.name(r)
	}

	var cmd engine.Command
	switch kind {
	case catalog.KindTable:
		cmd = &ddl.DropTable{IfExists: ifExists, Tables: names, Action: action}
	case catalog.KindView:
		cmd = &ddl.DropView{IfExists: ifExists, Views: names, Action: action}
	case catalog.KindSequence:
		cmd = &ddl.DropSequence{IfExists: ifExists, Sequences: names}
	case catalog.KindFunctionAlias:
		cmd = &ddl.DropFunctionAlias{IfExists: ifExists, Aliases: names}
	}
	return sh.run(ctx, cmd)
}

func (sh *Shell) alter(ctx context.Context, p *parser) error {
	kind, ok := kindOf(p)
	if !ok {
		return fmt.Errorf("cannot alter %q", p.peek().text)
	}
	raw, err := p.word()
	if err != nil {
		return err
	}
	if err := p.expect("RENAME", "TO"); err != nil {
		return err
	}
	newName, err := p.word()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	return sh.run(ctx, &ddl.Rename{Kind: kind, Name: sh.name(raw), NewName: catalog.Normalize(newName)})
}

func (sh *Shell) grant(p *parser, grant bool) error {
	if err := sh.sess.User().CheckAdmin(); err != nil {
		return err
	}
	var parts []string
	for !p.done() && !p.peek().is("ON") {
		if t := p.next(); t.kind == tokWord {
			parts = append(parts, t.text)
		}
	}
	rights, err := auth.ParseRight(strings.Join(parts, ","))
	if err != nil {
		return err
	}
	if err := p.expect("ON"); err != nil {
		return err
	}
	raw, err := p.word()
	if err != nil {
		return err
	}
	if grant {
		err = p.expect("TO")
	} else {
		err = p.expect("FROM")
	}
	if err != nil {
		return err
	}
	user, err := p.word()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}

	object := sh.name(raw).String()
	if grant {
		return sh.ok(sh.db.Auth().Grant(user, object, rights))
	}
	return sh.ok(sh.db.Auth().Revoke(user, object, rights))
}

// ============================================================================
// INSERT / SELECT
// ============================================================================

func (sh *Shell) insert(ctx context.Context, p *parser) error {
	raw, err := p.word()
	if err != nil {
		return err
	}
	if err := p.expect("VALUES"); err != nil {
		return err
	}
	if !p.punct("(") {
		return errors.New("expected (")
	}
	var values []value.Value
	for {
		v, err := literal(p.next())
		if err != nil {
			return err
		}
		values = append(values, v)
		if p.punct(")") {
			break
		}
		if !p.punct(",") {
			return fmt.Errorf("expected , or ) near %q", p.peek().text)
		}
	}
	if err := p.end(); err != nil {
		return err
	}

	n := sh.name(raw)
	r, err := sh.sess.Insert(ctx, n.Schema, n.Object, values)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "INSERT %s\n", r)
	return nil
}

func literal(t token) (value.Value, error) {
	switch {
	case t.kind == tokString:
		return value.NewVarchar(t.text), nil
	case t.is("NULL"):
		return value.Null, nil
	case t.kind == tokWord:
		return value.Parse(value.TypeBigInt, t.text)
	default:
		return nil, fmt.Errorf("expected a value near %q", t.text)
	}
}

func (sh *Shell) query(ctx context.Context, p *parser) error {
	switch {
	case p.accept("NEXT", "VALUE", "FOR"):
		raw, err := p.word()
		if err != nil {
			return err
		}
		n := sh.name(raw)
		v, err := sh.sess.NextValue(ctx, n.Schema, n.Object)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, v)
		return nil
	case p.accept("CURRENT", "VALUE", "FOR"):
		raw, err := p.word()
		if err != nil {
			return err
		}
		n := sh.name(raw)
		v, err := sh.sess.CurrentValue(n.Schema, n.Object)
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, v)
		return nil
	}

	if err := p.expect("*", "FROM"); err != nil {
		return err
	}
	raw, err := p.word()
	if err != nil {
		return err
	}
	if err := p.end(); err != nil {
		return err
	}
	n := sh.name(raw)

	txn, err := sh.sess.Txn()
	if err != nil {
		return err
	}
	if n.Schema == catalog.InformationSchema {
		switch n.Object {
		case "SEQUENCES":
			sh.printRows(catalog.SequenceColumns, sh.sess.Catalog().SequenceInfo(txn))
			return nil
		case "TABLES":
			sh.printRows(catalog.TableColumns, sh.sess.Catalog().TablesInfo(txn))
			return nil
		}
	}

	rows, err := sh.sess.Rows(n.Schema, n.Object)
	if err != nil {
		return err
	}
	var header []string
	if tbl, ok := sh.sess.Catalog().FindObject(txn, n.Schema, n.Object, catalog.KindTable).(*catalog.Table); ok {
		for _, c := range tbl.Columns() {
			header = append(header, c.Name)
		}
	}
	sh.printRows(header, rows)
	return nil
}

func (sh *Shell) printRows(header []string, rows []*row.Row) {
	w := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, r := range rows {
		cells := make([]string, r.ColumnCount())
		for i := range cells {
			cells[i] = r.Value(i).String()
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	fmt.Fprintf(sh.out, "(%d rows)\n", len(rows))
}

// ============================================================================
// Meta commands
// ============================================================================

func (sh *Shell) meta(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case `\q`:
		return ErrQuit
	case `\h`:
		fmt.Fprintln(sh.out, "Commands:")
		for _, c := range Completions {
			fmt.Fprintln(sh.out, "  "+c)
		}
		return nil
	case `\d`:
		schema := sh.sess.Schema()
		if len(fields) > 1 {
			schema = catalog.Normalize(fields[1])
		}
		txn, err := sh.sess.Txn()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tNAME")
		for _, obj := range sh.sess.Catalog().Objects(txn, schema) {
			fmt.Fprintf(w, "%s\t%s\n", obj.Kind(), obj.QualifiedName())
		}
		return w.Flush()
	case `\metrics`:
		sh.db.WriteMetrics(sh.out)
		return nil
	case `\users`:
		if err := sh.sess.User().CheckAdmin(); err != nil {
			return err
		}
		for _, name := range sh.db.Auth().Users() {
			fmt.Fprintln(sh.out, name)
		}
		return nil
	case `\cache`:
		st := value.DefaultCache().Stats()
		fmt.Fprintf(sh.out, "entries=%d capacity=%d hits=%d misses=%d evictions=%d hit_rate=%.2f\n",
			st.Entries, st.Capacity, st.Hits, st.Misses, st.Evictions, st.HitRate)
		return nil
	default:
		return fmt.Errorf("unknown meta command %s", fields[0])
	}
}
