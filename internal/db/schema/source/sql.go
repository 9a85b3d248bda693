// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/strata/internal/db/schema/migration"
	"github.com/hashicorp/strata/internal/errors"
)

// header holds the directives read from the leading comment block of a .sql
// file:
//
//	-- depends: 0001.create-users 0002.create-groups
//	-- transactional: false
type header struct {
	depends       []string
	transactional bool
}

func parseHeader(body string) (header, error) {
	const op = "source.parseHeader"
	h := header{transactional: true}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		key, value, ok := directive(line)
		if !ok {
			continue
		}
		switch key {
		case "depends":
			h.depends = append(h.depends, strings.FieldsFunc(value, func(r rune) bool {
				return r == ',' || r == ' ' || r == '\t'
			})...)
		case "transactional":
			v, err := strconv.ParseBool(value)
			if err != nil {
				return h, errors.New(context.TODO(), errors.InvalidParameter, op, fmt.Sprintf("invalid transactional value %q", value))
			}
			h.transactional = v
		}
	}
	return h, nil
}

// directive returns the key and value of a "-- key: value" header line
// naming one of the known directives.
func directive(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "--")), ":")
	if !ok {
		return "", "", false
	}
	key = strings.ToLower(strings.TrimSpace(key))
	switch key {
	case "depends", "transactional":
		return key, strings.TrimSpace(value), true
	}
	return "", "", false
}

// stripHeader removes the directive lines from the leading comment block of
// body.  Other comments are kept.
func stripHeader(body string) string {
	lines := strings.SplitAfter(body, "\n")
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
			kept = append(kept, lines[i:]...)
			break
		}
		if _, _, ok := directive(trimmed); ok {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "")
}

// splitStatements splits body on semicolons that are not inside a string,
// a quoted identifier, a comment or a dollar quoted block.  Statements that
// hold nothing but whitespace and comments are dropped.
func splitStatements(body string) []string {
	var stmts []string
	var cur strings.Builder
	hasCode := false
	flush := func() {
		if hasCode {
			stmts = append(stmts, strings.TrimSpace(cur.String()))
		}
		cur.Reset()
		hasCode = false
	}

	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == '-' && strings.HasPrefix(body[i:], "--"):
			end := strings.IndexByte(body[i:], '\n')
			if end < 0 {
				end = len(body) - i
			} else {
				end++
			}
			cur.WriteString(body[i : i+end])
			i += end

		case c == '/' && strings.HasPrefix(body[i:], "/*"):
			end := strings.Index(body[i+2:], "*/")
			if end < 0 {
				end = len(body) - i
			} else {
				end += 4
			}
			cur.WriteString(body[i : i+end])
			i += end

		case c == '\'' || c == '"' || c == '`':
			end := quotedEnd(body, i, c)
			cur.WriteString(body[i:end])
			hasCode = true
			i = end

		case c == '$':
			if tag, ok := dollarTag(body[i:]); ok {
				end := strings.Index(body[i+len(tag):], tag)
				if end < 0 {
					end = len(body) - i
				} else {
					end += 2 * len(tag)
				}
				cur.WriteString(body[i : i+end])
				hasCode = true
				i += end
				continue
			}
			cur.WriteByte(c)
			hasCode = true
			i++

		case c == ';':
			flush()
			i++

		default:
			cur.WriteByte(c)
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				hasCode = true
			}
			i++
		}
	}
	flush()
	return stmts
}

// quotedEnd returns the index just past the quote that closes the one at
// start.  A doubled quote character is an escaped quote.
func quotedEnd(body string, start int, q byte) int {
	for i := start + 1; i < len(body); i++ {
		if body[i] != q {
			continue
		}
		if i+1 < len(body) && body[i+1] == q {
			i++
			continue
		}
		return i + 1
	}
	return len(body)
}

// dollarTag returns the opening tag of a dollar quoted string such as $$ or
// $body$ at the start of s.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			return s[:i+1], true
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 1 && c >= '0' && c <= '9':
		default:
			return "", false
		}
	}
	return "", false
}

// sqlLoader declares the statements of an apply file, and optionally its
// rollback file, on the builder.  A transactional migration puts every step
// in one transaction.
func sqlLoader(apply, rollback string) migration.LoadFunc {
	return func(b *migration.Builder) error {
		h, err := parseHeader(apply)
		if err != nil {
			return err
		}
		b.Depends(h.depends...)
		if !h.transactional {
			b.NonTransactional()
		}

		var steps []*migration.Transaction
		for _, s := range splitStatements(stripHeader(apply)) {
			steps = append(steps, b.Step(migration.Statement(s), nil))
		}
		// rollback statements are declared last and in reverse, so rolling
		// back runs them first and in file order
		rollbacks := splitStatements(rollback)
		for i := len(rollbacks) - 1; i >= 0; i-- {
			steps = append(steps, b.Step(nil, migration.Statement(rollbacks[i])))
		}
		if h.transactional && len(steps) > 0 {
			b.Transaction(steps)
		}
		return nil
	}
}
