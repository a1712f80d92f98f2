package timepivot

import (
	"fmt"
	"sort"
	"strings"
)

// Small SQL clause helpers to keep query composition consistent. Each returns an empty
// string for empty input so clauses can be concatenated unconditionally.

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func groupByClause(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	return " GROUP BY " + strings.Join(columns, ", ")
}

func havingClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " HAVING " + strings.Join(conditions, " AND ")
}

func orderByClause(columns []string) string {
	if len(columns) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(columns, ", ")
}

// settingsClause builds a ClickHouse SETTINGS clause. Keys are emitted in sorted order so
// the generated SQL is deterministic. Booleans become 1/0, strings are quoted.
func settingsClause(settings map[string]interface{}) string {
	if len(settings) == 0 {
		return ""
	}
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var rendered string
		switch v := settings[k].(type) {
		case bool:
			if v {
				rendered = "1"
			} else {
				rendered = "0"
			}
		case string:
			rendered = quoteLiteral(v)
		default:
			rendered = fmt.Sprintf("%v", v)
		}
		parts = append(parts, k+"="+rendered)
	}
	return " SETTINGS " + strings.Join(parts, ", ")
}

// placeholder returns the bind-parameter token for the dialect; index is 1-based and
// only meaningful for Postgres.
func placeholder(dialect Dialect, index int) string {
	if dialect == DialectPostgres {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}
