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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func withOutput(t *testing.T, cfg Config) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	cfg.Output = &buf
	Configure(cfg)
	t.Cleanup(func() { Configure(DefaultConfig()) })
	return &buf
}

func TestTextOutputIsOrdered(t *testing.T) {
	buf := withOutput(t, Config{Level: DEBUG})

	NewLogger("ddl").Info("Dropped object", "name", "ORDERS", "kind", "TABLE")

	line := buf.String()
	if !strings.Contains(line, "[INFO ] [ddl] Dropped object kind=TABLE name=ORDERS") {
		t.Errorf("unexpected line: %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := withOutput(t, Config{Level: WARN})

	logger := NewLogger("sequence")
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("messages below WARN should be dropped: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected WARN message")
	}
	if logger.Enabled(INFO) {
		t.Error("INFO should not be enabled")
	}
}

func TestJSONModeWithContextFields(t *testing.T) {
	buf := withOutput(t, Config{Level: DEBUG, JSONMode: true})

	NewLogger("engine").With("session", "s-1").Error("Statement failed", "error", errors.New("boom"))

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry.Component != "engine" || entry.Level != "ERROR" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["session"] != "s-1" || entry.Fields["error"] != "boom" {
		t.Errorf("unexpected fields: %+v", entry.Fields)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"debug": DEBUG, "WARNING": WARN, "error": ERROR, "bogus": INFO}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
