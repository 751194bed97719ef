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

package catalog

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	ferrors "strata/internal/errors"
	"strata/internal/sequence"
	"strata/internal/value"
)

const (
	schemaPrefix = "schema:"
	metaPrefix   = "meta:"
	seqPrefix    = "seq:"
)

func schemaKey(name string) string { return schemaPrefix + name }
func metaKey(id int64) string      { return metaPrefix + strconv.FormatInt(id, 10) }
func seqKey(id int64) string       { return seqPrefix + strconv.FormatInt(id, 10) }

type schemaRecord struct {
	Name  string `json:"name"`
	Owner string `json:"owner,omitempty"`
}

type columnRecord struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
	Identity bool   `json:"identity,omitempty"`
}

type sequenceRecord struct {
	Start      int64 `json:"start"`
	Increment  int64 `json:"increment"`
	CacheSize  int64 `json:"cache_size"`
	MaxValue   int64 `json:"max_value"`
	OwnerTable int64 `json:"owner_table,omitempty"`
}

type objectRecord struct {
	ID     int64  `json:"id"`
	Kind   string `json:"kind"`
	Schema string `json:"schema"`
	Name   string `json:"name"`

	Columns []columnRecord `json:"columns,omitempty"`
	Owned   []int64        `json:"owned,omitempty"`

	Query     string   `json:"query,omitempty"`
	DependsOn []string `json:"depends_on,omitempty"`

	Sequence *sequenceRecord `json:"sequence,omitempty"`

	Target        string `json:"target,omitempty"`
	Deterministic bool   `json:"deterministic,omitempty"`
}

func encodeSchema(name, owner string) ([]byte, error) {
	data, err := json.Marshal(schemaRecord{Name: name, Owner: owner})
	if err != nil {
		return nil, ferrors.InternalError("cannot encode schema " + name).WithCause(err)
	}
	return data, nil
}

// encodeObject serializes obj under name, which may differ from its
// current name for a pending rename.
func encodeObject(obj Object, name string) ([]byte, error) {
	rec := objectRecord{
		ID:     obj.ID(),
		Kind:   obj.Kind().String(),
		Schema: obj.Schema().Name(),
		Name:   name,
	}

	switch o := obj.(type) {
	case *Table:
		for _, col := range o.columns {
			rec.Columns = append(rec.Columns, columnRecord{
				Name:     col.Name,
				Type:     col.Type.String(),
				Nullable: col.Nullable,
				Identity: col.Identity,
			})
		}
		for _, seq := range o.owned {
			rec.Owned = append(rec.Owned, seq.ID())
		}
	case *View:
		rec.Query = o.query
		rec.DependsOn = o.dependsOn
	case *Sequence:
		rec.Sequence = &sequenceRecord{
			Start:      o.Start(),
			Increment:  o.Increment(),
			CacheSize:  o.CacheSize(),
			MaxValue:   o.MaxValue(),
			OwnerTable: o.ownerTable,
		}
	case *FunctionAlias:
		rec.Target = o.target
		rec.Deterministic = o.deterministic
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, ferrors.InternalError("cannot encode " + obj.QualifiedName()).WithCause(err)
	}
	return data, nil
}

// load rebuilds the committed catalog from storage.
func (c *Catalog) load() error {
	schemas, err := c.store.Scan(schemaPrefix)
	if err != nil {
		return ferrors.NewStorageError("cannot read schemas").WithCause(err)
	}
	for key, data := range schemas {
		var rec schemaRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return ferrors.WALCorrupted("bad schema record " + key).WithCause(err)
		}
		c.schemas[rec.Name] = newSchema(rec.Name, rec.Owner, false)
	}

	metas, err := c.store.Scan(metaPrefix)
	if err != nil {
		return ferrors.NewStorageError("cannot read catalog").WithCause(err)
	}
	bases, err := c.store.Scan(seqPrefix)
	if err != nil {
		return ferrors.NewStorageError("cannot read sequences").WithCause(err)
	}

	records := make([]objectRecord, 0, len(metas))
	for key, data := range metas {
		var rec objectRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return ferrors.WALCorrupted("bad catalog record " + key).WithCause(err)
		}
		records = append(records, rec)
	}
	// Sequences first so tables can link their owned sequences.
	sort.Slice(records, func(i, j int) bool {
		si, sj := records[i].Kind == KindSequence.String(), records[j].Kind == KindSequence.String()
		if si != sj {
			return si
		}
		return records[i].ID < records[j].ID
	})

	maxID := int64(0)
	for _, rec := range records {
		obj, err := c.decodeObject(rec, bases)
		if err != nil {
			return err
		}
		obj.Schema().objects[obj.Kind().namespace()][obj.Name()] = obj
		c.byID[obj.ID()] = obj
		if rec.ID > maxID {
			maxID = rec.ID
		}
	}
	c.nextID.Store(maxID + 1)

	for key := range bases {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, seqPrefix), 10, 64)
		if err != nil {
			continue
		}
		if _, ok := c.byID[id]; !ok {
			c.log.Warn("Ignoring state of unknown sequence", "key", key)
		}
	}
	return nil
}

func (c *Catalog) decodeObject(rec objectRecord, bases map[string][]byte) (Object, error) {
	s, ok := c.schemas[rec.Schema]
	if !ok {
		return nil, ferrors.WALCorrupted("object " + rec.Name + " in unknown schema " + rec.Schema)
	}
	kind, err := ParseKind(rec.Kind)
	if err != nil {
		return nil, ferrors.WALCorrupted(rec.Name).WithCause(err)
	}

	switch kind {
	case KindTable:
		cols := make([]Column, 0, len(rec.Columns))
		for _, cr := range rec.Columns {
			t, ok := value.ParseType(cr.Type)
			if !ok {
				return nil, ferrors.WALCorrupted("unknown column type " + cr.Type)
			}
			cols = append(cols, Column{Name: cr.Name, Type: t, Nullable: cr.Nullable, Identity: cr.Identity})
		}
		t := c.buildTable(rec.ID, s, rec.Name, cols)
		for _, id := range rec.Owned {
			seq, ok := c.byID[id].(*Sequence)
			if !ok {
				return nil, ferrors.WALCorrupted("table " + rec.Name + " owns a missing sequence")
			}
			t.owned = append(t.owned, seq)
		}
		return t, nil

	case KindView:
		v := &View{query: rec.Query, dependsOn: rec.DependsOn}
		v.init(rec.ID, s, rec.Name, false)
		return v, nil

	case KindSequence:
		if rec.Sequence == nil {
			return nil, ferrors.WALCorrupted("sequence " + rec.Name + " has no options")
		}
		opts := sequence.Options{
			Start:     rec.Sequence.Start,
			Increment: rec.Sequence.Increment,
			CacheSize: rec.Sequence.CacheSize,
			MaxValue:  rec.Sequence.MaxValue,
		}
		base := opts.Start
		if raw, ok := bases[seqKey(rec.ID)]; ok {
			if base, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
				return nil, ferrors.WALCorrupted("bad base for sequence " + rec.Name).WithCause(err)
			}
		}
		return c.buildSequence(rec.ID, s, rec.Name, opts, base, rec.Sequence.OwnerTable)

	default:
		f := &FunctionAlias{target: rec.Target, deterministic: rec.Deterministic}
		f.init(rec.ID, s, rec.Name, false)
		return f, nil
	}
}
