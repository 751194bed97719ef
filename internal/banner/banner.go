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

// Package banner prints the strata shell greeting: the embedded logo, the
// version line and a table of the settings the catalog runs with.
package banner

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"strata/internal/config"
)

//go:embed banner.txt
var logo string

// Version is reported by the banner and by strata -version.
const (
	Version   = "01.26.14"
	Copyright = "(c)2026 Firefly Software Solutions Inc"
)

const (
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	reset  = "\033[0m"
)

const ruleWidth = 76

type setting struct {
	name, value string
}

type section struct {
	title    string
	settings []setting
}

// PrintWithConfig writes the greeting to stdout.
func PrintWithConfig(cfg *config.Config) {
	PrintWithConfigTo(os.Stdout, cfg)
}

// PrintWithConfigTo writes the logo, the version and the settings of cfg.
func PrintWithConfigTo(w io.Writer, cfg *config.Config) {
	var b strings.Builder
	b.WriteString("\n" + red + logo + reset + "\n")
	fmt.Fprintf(&b, "%s%s:: Strata ::%s v%s\n", red, bold, reset, Version)
	b.WriteString(dim + "  Schema Catalog and Sequence Engine" + reset + "\n\n")

	source := dim + "defaults + environment" + reset
	if cfg.ConfigFile != "" {
		source = yellow + cfg.ConfigFile + reset
	}
	fmt.Fprintf(&b, "  %sConfig:%s %s\n\n", dim, reset, source)

	for _, sec := range summary(cfg) {
		writeSection(&b, sec)
	}
	b.WriteString(dim + "  " + Copyright + reset + "\n\n")
	io.WriteString(w, b.String())
}

func summary(cfg *config.Config) []section {
	encryption := yellow + "off" + reset
	if cfg.EncryptionEnabled {
		encryption = green + "AES-256-GCM" + reset
	}
	maxRows := "unlimited"
	if cfg.MaxRowsPerTable > 0 {
		maxRows = strconv.Itoa(cfg.MaxRowsPerTable)
	}
	overflow := "wrap"
	if cfg.StrictOverflow {
		overflow = "strict"
	}

	return []section{
		{"Storage", []setting{
			{"Data", cfg.DataDir},
			{"WAL", cfg.WALFile},
			{"Log", cfg.LogLevel},
			{"Encryption", encryption},
		}},
		{"Catalog", []setting{
			{"Lock Timeout", strconv.Itoa(cfg.LockTimeoutMs) + "ms"},
			{"Seq Cache", strconv.Itoa(cfg.SequenceCacheSize)},
			{"Max Columns", strconv.Itoa(cfg.MaxColumns)},
			{"Max Rows", maxRows},
			{"Overflow", overflow},
		}},
		{"Runtime", []setting{
			{"Value Cache", fmt.Sprintf("%d in %d shards", cfg.ValueCacheSize, cfg.ValueCacheShards)},
			{"CPUs", strconv.Itoa(runtime.NumCPU())},
			{"GOMAXPROCS", strconv.Itoa(runtime.GOMAXPROCS(0))},
		}},
	}
}

// writeSection prints a titled rule and then the settings two per line.
func writeSection(b *strings.Builder, sec section) {
	rule := ruleWidth - len(sec.title) - 3
	if rule < 0 {
		rule = 0
	}
	fmt.Fprintf(b, "  %s%s%s %s%s\n", cyan+bold, sec.title, reset+dim, strings.Repeat("=", rule), reset)
	for i := 0; i < len(sec.settings); i += 2 {
		b.WriteString("  " + pad(cell(sec.settings[i]), 38))
		if i+1 < len(sec.settings) {
			b.WriteString(cell(sec.settings[i+1]))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func cell(s setting) string {
	return dim + s.name + reset + " " + s.value
}

// pad widens s to n visible columns, ignoring escape sequences.
func pad(s string, n int) string {
	visible := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\033':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			visible++
		}
	}
	if visible >= n {
		return s + " "
	}
	return s + strings.Repeat(" ", n-visible)
}
