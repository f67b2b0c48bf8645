package template

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// timestampLayouts are the accepted renderings of a timestamp cell, tried in
// order.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339,
}

func parseBoolCell(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func parseTimestampCell(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferColumnType picks the narrowest column type every non-empty value
// parses as, trying bool, integer, float8 and timestamp in that order before
// falling back to varchar. "1"/"0" count as integers, not booleans.
func InferColumnType(values []string) types.ColumnType {
	candidates := []struct {
		ct types.ColumnType
		ok func(string) bool
	}{
		{types.ColumnBool, func(s string) bool { _, ok := parseBoolCell(s); return ok }},
		{types.ColumnInteger, func(s string) bool { _, err := strconv.ParseInt(s, 10, 64); return err == nil }},
		{types.ColumnFloat, func(s string) bool { _, err := strconv.ParseFloat(s, 64); return err == nil }},
		{types.ColumnTimestamp, func(s string) bool { _, ok := parseTimestampCell(s); return ok }},
	}

	for _, c := range candidates {
		all := true
		seen := false
		for _, v := range values {
			if v == "" {
				continue
			}
			seen = true
			if !c.ok(v) {
				all = false
				break
			}
		}
		if seen && all {
			return c.ct
		}
	}
	return types.ColumnVarchar
}

// sqlType maps a registry column type to the DDL type used in dynamic
// tables. The names are valid on both engines; SQLite resolves them through
// type affinity.
func sqlType(ct types.ColumnType) string {
	switch ct {
	case types.ColumnBool:
		return "BOOLEAN"
	case types.ColumnInteger:
		return "INTEGER"
	case types.ColumnFloat:
		return "FLOAT8"
	case types.ColumnTimestamp:
		return "TIMESTAMP"
	}
	return "VARCHAR"
}

// convertCell turns a raw string cell into the bind value matching the
// column type. Empty cells store NULL.
func convertCell(ct types.ColumnType, s string) any {
	if s == "" {
		return nil
	}
	switch ct {
	case types.ColumnBool:
		if b, ok := parseBoolCell(s); ok {
			return b
		}
	case types.ColumnInteger:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case types.ColumnFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// Columns reads a template's registry entries in column-name order.
func Columns(ctx context.Context, db *store.DB, k Kind, id int64) ([]types.ColumnDescriptor, error) {
	q := fmt.Sprintf(`SELECT column_name, column_type FROM %s WHERE %s = ? ORDER BY column_name`,
		k.ColumnTable, k.IDColumn)
	rows, err := db.FetchAll(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("registry of %s template %d: %w", k.Name, id, err)
	}
	out := make([]types.ColumnDescriptor, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.ColumnDescriptor{
			TemplateID: id,
			Name:       store.AsString(r["column_name"]),
			Type:       types.ColumnType(store.AsString(r["column_type"])),
		})
	}
	return out, nil
}
