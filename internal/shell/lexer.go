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
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokWord   tokenKind = iota // keyword or identifier, may contain "quoted" parts
	tokString                  // 'literal'
	tokPunct                   // ( ) ,
)

type token struct {
	kind tokenKind
	text string
}

// is reports whether t is the keyword kw, ignoring case.
func (t token) is(kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

// lex splits a command line into tokens. A trailing semicolon is dropped.
func lex(line string) ([]token, error) {
	line = strings.TrimSuffix(strings.TrimSpace(line), ";")

	var toks []token
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(' || c == ')' || c == ',':
			toks = append(toks, token{kind: tokPunct, text: string(c)})
			i++
		case c == '\'':
			var sb strings.Builder
			j := i + 1
			for {
				if j >= len(line) {
					return nil, fmt.Errorf("unterminated string literal at %d", i)
				}
				if line[j] == '\'' {
					if j+1 < len(line) && line[j+1] == '\'' {
						sb.WriteByte('\'')
						j += 2
						continue
					}
					break
				}
				sb.WriteByte(line[j])
				j++
			}
			toks = append(toks, token{kind: tokString, text: sb.String()})
			i = j + 1
		default:
			j := i
			quoted := false
			for j < len(line) {
				d := line[j]
				if d == '"' {
					quoted = !quoted
				} else if !quoted && strings.IndexByte(" \t\r\n(),'", d) >= 0 {
					break
				}
				j++
			}
			if quoted {
				return nil, fmt.Errorf("unterminated quoted identifier at %d", i)
			}
			toks = append(toks, token{kind: tokWord, text: line[i:j]})
			i = j
		}
	}
	return toks, nil
}

// parser walks a token list.
type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

// accept consumes the keyword sequence if it is next.
func (p *parser) accept(kws ...string) bool {
	if p.pos+len(kws) > len(p.toks) {
		return false
	}
	for i, kw := range kws {
		if !p.toks[p.pos+i].is(kw) {
			return false
		}
	}
	p.pos += len(kws)
	return true
}

func (p *parser) expect(kws ...string) error {
	if !p.accept(kws...) {
		return fmt.Errorf("expected %s near %q", strings.Join(kws, " "), p.peek().text)
	}
	return nil
}

func (p *parser) punct(s string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == s {
		p.pos++
		return true
	}
	return false
}

func (p *parser) word() (string, error) {
	t := p.next()
	if t.kind != tokWord || t.text == "" {
		return "", fmt.Errorf("expected a name near %q", t.text)
	}
	return t.text, nil
}

// words reads a comma separated list of names.
func (p *parser) words() ([]string, error) {
	var out []string
	for {
		w, err := p.word()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
		if !p.punct(",") {
			return out, nil
		}
	}
}

// rest returns the remaining tokens joined by spaces.
func (p *parser) rest() string {
	parts := make([]string, 0, len(p.toks)-p.pos)
	for ; !p.done(); p.pos++ {
		t := p.toks[p.pos]
		if t.kind == tokString {
			parts = append(parts, "'"+strings.ReplaceAll(t.text, "'", "''")+"'")
		} else {
			parts = append(parts, t.text)
		}
	}
	return strings.Join(parts, " ")
}

func (p *parser) end() error {
	if !p.done() {
		return fmt.Errorf("unexpected %q", p.peek().text)
	}
	return nil
}
