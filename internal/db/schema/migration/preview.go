// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: BUSL-1.1

package migration

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// formatRows renders a result set as a table:
//
//	 id | name
//	----+------
//	 1  | a
//	(1 row)
//
// It returns an empty string when the statement produced no columns.
func formatRows(rows *sql.Rows) (string, int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return "", 0, err
	}
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = utf8.RuneCountInString(c)
	}

	var table [][]string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", 0, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
			if w := utf8.RuneCountInString(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
		table = append(table, row)
	}
	if err := rows.Err(); err != nil {
		return "", 0, err
	}
	if len(cols) == 0 {
		return "", 0, nil
	}

	var b strings.Builder
	writeRow := func(row []string) {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf(" %-*s ", widths[i], v)
		}
		b.WriteString(strings.Join(cells, "|"))
		b.WriteString("\n")
	}
	writeRow(cols)
	rules := make([]string, len(widths))
	for i, w := range widths {
		rules[i] = strings.Repeat("-", w+2)
	}
	b.WriteString(strings.Join(rules, "+"))
	b.WriteString("\n")
	for _, row := range table {
		writeRow(row)
	}
	if len(table) == 1 {
		b.WriteString("(1 row)")
	} else {
		fmt.Fprintf(&b, "(%d rows)", len(table))
	}
	return b.String(), len(table), nil
}

func formatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(tv)
	case time.Time:
		return tv.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(tv)
	}
}
