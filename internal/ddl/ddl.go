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
Package ddl implements the schema-changing commands.

Every command implements engine.Command and is run through
Session.Update. Commands are built directly by callers; there is no
parser in this package.

Drop Protocol:
==============

A drop names one or more targets. It runs in two passes inside a fresh
transaction:

	prepare   resolve every target, check rights, refuse system and
	          restricted objects, take exclusive locks
	execute   re-resolve every target, mark it modified, remove it
	          together with the objects it owns

A failure in prepare rolls back, so nothing is dropped and every lock is
released. After execute the transaction commits. A failure in execute is
returned with the transaction still open; the session decides whether to
commit or roll back.

Examples:

	DROP TABLE IF EXISTS a, b CASCADE   &DropTable{IfExists: true, Tables: ..., Action: Cascade}
	DROP SEQUENCE s                     &DropSequence{Sequences: []Name{{Object: "S"}}}
*/
package ddl

import (
	"strata/internal/catalog"
	"strata/internal/engine"
	"strata/internal/logging"
)

var log = logging.NewLogger("ddl")

// Name is a possibly schema-qualified object name in canonical form. An
// empty Schema means the session's default schema.
type Name struct {
	Schema string
	Object string
}

// ParseName splits and normalizes "schema.object" or "object".
func ParseName(s string) Name {
	schema, object := catalog.SplitQualified(s, "")
	return Name{Schema: schema, Object: object}
}

func (n Name) resolve(s *engine.Session) Name {
	if n.Schema == "" {
		n.Schema = s.Schema()
	}
	return n
}

func (n Name) String() string {
	if n.Schema == "" {
		return n.Object
	}
	return n.Schema + "." + n.Object
}

// DropAction decides what happens to views that read a dropped relation.
type DropAction int

const (
	// Restrict refuses the drop while other views depend on the target.
	Restrict DropAction = iota
	// Cascade drops the dependent views too.
	Cascade
)

func (a DropAction) String() string {
	if a == Cascade {
		return "CASCADE"
	}
	return "RESTRICT"
}
