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

package banner

import (
	"bytes"
	"strings"
	"testing"

	"strata/internal/config"
)

func TestPrintWithConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ConfigFile = "/tmp/strata.conf"
	cfg.MaxRowsPerTable = 500

	var buf bytes.Buffer
	PrintWithConfigTo(&buf, cfg)
	out := buf.String()

	for _, want := range []string{"Strata", Version, "/tmp/strata.conf", "1000ms", "500", "Catalog"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner lacks %q", want)
		}
	}
}

func TestSummaryReflectsConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StrictOverflow = true
	cfg.MaxRowsPerTable = 0

	got := map[string]string{}
	for _, sec := range summary(cfg) {
		for _, s := range sec.settings {
			got[sec.title+"/"+s.name] = s.value
		}
	}
	if got["Catalog/Overflow"] != "strict" {
		t.Errorf("Overflow = %q", got["Catalog/Overflow"])
	}
	if got["Catalog/Max Rows"] != "unlimited" {
		t.Errorf("Max Rows = %q", got["Catalog/Max Rows"])
	}
	if !strings.Contains(got["Storage/Encryption"], "off") {
		t.Errorf("Encryption = %q", got["Storage/Encryption"])
	}
}

func TestPadCountsVisibleColumns(t *testing.T) {
	s := pad(cell(setting{"WAL", "x"}), 10)
	if !strings.HasSuffix(s, "     ") || strings.HasSuffix(s, "      ") {
		t.Errorf("pad(%q) has the wrong width", s)
	}
}
