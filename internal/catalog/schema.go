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
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Well-known schema names.
const (
	PublicSchema            = "PUBLIC"
	InformationSchema       = "INFORMATION_SCHEMA"
	informationSequencesTbl = "SEQUENCES"
	informationTablesTbl    = "TABLES"
)

// Schema is a namespace of objects. Its maps hold committed objects only
// and are guarded by the owning catalog's lock.
type Schema struct {
	name   string
	owner  string
	system bool

	objects map[namespace]map[string]Object
}

func newSchema(name, owner string, system bool) *Schema {
	return &Schema{
		name:   name,
		owner:  owner,
		system: system,
		objects: map[namespace]map[string]Object{
			nsRelation: {},
			nsSequence: {},
			nsAlias:    {},
		},
	}
}

// Name returns the canonical schema name.
func (s *Schema) Name() string { return s.name }

// Owner returns the name of the user that created the schema.
func (s *Schema) Owner() string { return s.owner }

// IsSystem reports whether the schema and its objects are protected.
func (s *Schema) IsSystem() bool { return s.system }

// Normalize returns the canonical form of an identifier. Unquoted names
// are upper-cased with Unicode rules; a name in double quotes keeps its
// case and loses the quotes, with "" standing for one quote character.
func Normalize(ident string) string {
	ident = strings.TrimSpace(ident)
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return strings.ReplaceAll(ident[1:len(ident)-1], `""`, `"`)
	}
	// A Caser is stateful and not safe to share between goroutines.
	return cases.Upper(language.Und).String(ident)
}

// SplitQualified splits "schema.name" into its normalized parts. Dots
// inside double quotes do not split. A bare name gets defaultSchema.
func SplitQualified(qualified, defaultSchema string) (schema, name string) {
	quoted := false
	for i := 0; i < len(qualified); i++ {
		switch qualified[i] {
		case '"':
			quoted = !quoted
		case '.':
			if !quoted {
				return Normalize(qualified[:i]), Normalize(qualified[i+1:])
			}
		}
	}
	return defaultSchema, Normalize(qualified)
}
