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

package auth

import (
	"fmt"
	"strings"
)

// Right is a set of privileges on one schema object.
//
// Privilege hierarchy:
//
//	ALL > (SELECT, INSERT, UPDATE, DELETE, ALTER)
//
// ALTER covers structural changes including DROP.
type Right uint8

const (
	RightSelect Right = 1 << iota
	RightInsert
	RightUpdate
	RightDelete
	RightAlter

	RightNone Right = 0
	RightAll        = RightSelect | RightInsert | RightUpdate | RightDelete | RightAlter
)

var rightNames = []struct {
	right Right
	name  string
}{
	{RightSelect, "SELECT"},
	{RightInsert, "INSERT"},
	{RightUpdate, "UPDATE"},
	{RightDelete, "DELETE"},
	{RightAlter, "ALTER"},
}

// Has reports whether every privilege in want is present.
func (r Right) Has(want Right) bool {
	return r&want == want
}

func (r Right) String() string {
	if r == RightAll {
		return "ALL"
	}
	if r == RightNone {
		return "NONE"
	}
	var parts []string
	for _, rn := range rightNames {
		if r&rn.right != 0 {
			parts = append(parts, rn.name)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseRight parses a comma separated privilege list such as
// "SELECT, INSERT" or "ALL".
func ParseRight(s string) (Right, error) {
	var r Right
	for _, part := range strings.Split(s, ",") {
		name := strings.ToUpper(strings.TrimSpace(part))
		if name == "ALL" {
			r |= RightAll
			continue
		}
		found := false
		for _, rn := range rightNames {
			if rn.name == name {
				r |= rn.right
				found = true
				break
			}
		}
		if !found {
			return RightNone, fmt.Errorf("unknown privilege %q", part)
		}
	}
	return r, nil
}
