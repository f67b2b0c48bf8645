package template

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// Metadata is a parsed metadata table: sample ids, column headers and the
// string cells keyed by sample then column. Cells hold raw text; typing
// happens at load time through the column registry.
type Metadata struct {
	SampleIDs []string
	Columns   []string
	Cells     map[string]map[string]string
}

// Values collects a column's cells in SampleIDs order.
func (m Metadata) Values(column string) []string {
	out := make([]string, 0, len(m.SampleIDs))
	for _, sid := range m.SampleIDs {
		out = append(out, m.Cells[sid][column])
	}
	return out
}

// requiredSampleColumns are the shared columns every sample template must
// provide, with their fixed types.
var requiredSampleColumns = map[string]types.ColumnType{
	"collection_timestamp":        types.ColumnTimestamp,
	"physical_specimen_location":  types.ColumnVarchar,
	"physical_specimen_remaining": types.ColumnBool,
	"dna_extracted":               types.ColumnBool,
	"sample_type":                 types.ColumnVarchar,
	"description":                 types.ColumnVarchar,
	"latitude":                    types.ColumnFloat,
	"longitude":                   types.ColumnFloat,
	"host_subject_id":             types.ColumnVarchar,
}

// commonPrepColumns are the shared prep columns; they are optional in the
// input but always live in the shared table.
var commonPrepColumns = []string{"center_name", "center_project_name", "emp_status"}

// targetGeneDataTypes are the data types that demand amplicon-specific
// columns.
var targetGeneDataTypes = map[string]bool{"16S": true, "18S": true, "ITS": true}

// requiredTargetGeneColumns must be present in a prep template of a
// target-gene data type.
var requiredTargetGeneColumns = []string{
	"barcodesequence",
	"linkerprimersequence",
	"run_prefix",
	"library_construction_protocol",
	"experiment_design_description",
	"platform",
}

// prepRenames maps common header aliases onto the canonical prep column
// names before validation.
var prepRenames = map[string]string{
	"barcode": "barcodesequence",
	"primer":  "linkerprimersequence",
}

var sampleIDRe = regexp.MustCompile(`^[A-Za-z0-9.]+$`)

// Normalize lower-cases the headers, validates the sample id character set
// and prefixes ids with "<studyID>." where the prefix is absent. It returns
// a new Metadata and leaves the input untouched.
func Normalize(studyID int64, md Metadata) (Metadata, error) {
	lowered := make([]string, len(md.Columns))
	seen := map[string]bool{}
	var dups []string
	for i, h := range md.Columns {
		l := strings.ToLower(h)
		lowered[i] = l
		if seen[l] {
			dups = append(dups, l)
		}
		seen[l] = true
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return Metadata{}, &types.DuplicateHeaderError{Headers: dups}
	}

	var invalid []string
	for _, sid := range md.SampleIDs {
		if !sampleIDRe.MatchString(sid) {
			invalid = append(invalid, sid)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return Metadata{}, &types.InvalidSampleIDError{SampleIDs: invalid}
	}

	prefix := fmt.Sprintf("%d.", studyID)
	out := Metadata{
		SampleIDs: make([]string, len(md.SampleIDs)),
		Columns:   lowered,
		Cells:     make(map[string]map[string]string, len(md.SampleIDs)),
	}
	for i, sid := range md.SampleIDs {
		full := sid
		if !strings.HasPrefix(sid, prefix) {
			full = prefix + sid
		}
		out.SampleIDs[i] = full
		cells := make(map[string]string, len(lowered))
		for j, h := range md.Columns {
			cells[lowered[j]] = md.Cells[sid][h]
		}
		out.Cells[full] = cells
	}
	return out, nil
}

// applyRenames rewrites aliased headers to their canonical names.
func applyRenames(md Metadata, renames map[string]string) Metadata {
	out := Metadata{
		SampleIDs: md.SampleIDs,
		Columns:   make([]string, len(md.Columns)),
		Cells:     make(map[string]map[string]string, len(md.Cells)),
	}
	for i, c := range md.Columns {
		if canonical, ok := renames[c]; ok {
			c = canonical
		}
		out.Columns[i] = c
	}
	for sid, cells := range md.Cells {
		renamed := make(map[string]string, len(cells))
		for c, v := range cells {
			if canonical, ok := renames[c]; ok {
				c = canonical
			}
			renamed[c] = v
		}
		out.Cells[sid] = renamed
	}
	return out
}

// checkRequired verifies that every required column is present, returning
// MissingColumnsError listing the absentees in sorted order.
func checkRequired(md Metadata, required []string) error {
	have := map[string]bool{}
	for _, c := range md.Columns {
		have[c] = true
	}
	var missing []string
	for _, c := range required {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &types.MissingColumnsError{Columns: missing}
	}
	return nil
}

// splitColumns partitions the normalized columns into shared ones (fixed
// slots in the kind's shared table) and dynamic ones (per-template table),
// both sorted.
func splitColumns(md Metadata, shared map[string]bool) (sharedCols, dynamicCols []string) {
	for _, c := range md.Columns {
		if shared[c] {
			sharedCols = append(sharedCols, c)
		} else {
			dynamicCols = append(dynamicCols, c)
		}
	}
	sort.Strings(sharedCols)
	sort.Strings(dynamicCols)
	return sharedCols, dynamicCols
}

// logLoadFailure records a failed bulk load in the durable log table. The
// load error is already propagating; a failure to log it is only reported
// operationally.
func logLoadFailure(ctx context.Context, db *store.DB, msg string, info map[string]any) {
	if _, err := db.AddLogEntry(ctx, store.SeverityError, msg, info); err != nil {
		slog.Error("recording load failure", "msg", msg, "error", err)
	}
}

// buildStatements assembles the bulk-load transaction in its fixed order:
// shared-table rows, column registry rows, the dynamic CREATE TABLE, then
// the dynamic rows.
func buildStatements(k Kind, templateID int64, keyArgs []any, keyCols []string, md Metadata, shared map[string]bool) ([]store.Statement, error) {
	sharedCols, dynamicCols := splitColumns(md, shared)

	for _, c := range md.Columns {
		if err := store.CheckIdentifier(c); err != nil {
			return nil, fmt.Errorf("column header: %w", err)
		}
	}

	sharedTypes := make(map[string]types.ColumnType, len(sharedCols))
	for _, c := range sharedCols {
		if ct, ok := requiredSampleColumns[c]; ok {
			sharedTypes[c] = ct
		} else {
			sharedTypes[c] = types.ColumnVarchar
		}
	}
	dynamicTypes := make(map[string]types.ColumnType, len(dynamicCols))
	for _, c := range dynamicCols {
		dynamicTypes[c] = InferColumnType(md.Values(c))
	}

	var stmts []store.Statement

	insertCols := append(append([]string{}, keyCols...), "sample_id")
	insertCols = append(insertCols, sharedCols...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(insertCols)), ", ")
	sharedSQL := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		k.SharedTable, strings.Join(insertCols, ", "), placeholders)
	for _, sid := range md.SampleIDs {
		args := append(append([]any{}, keyArgs...), sid)
		for _, c := range sharedCols {
			args = append(args, convertCell(sharedTypes[c], md.Cells[sid][c]))
		}
		stmts = append(stmts, store.Statement{SQL: sharedSQL, Args: args})
	}

	registrySQL := fmt.Sprintf(`INSERT INTO %s (%s, column_name, column_type) VALUES (?, ?, ?)`,
		k.ColumnTable, k.IDColumn)
	for _, c := range dynamicCols {
		stmts = append(stmts, store.Statement{
			SQL:  registrySQL,
			Args: []any{templateID, c, string(dynamicTypes[c])},
		})
	}

	defs := make([]string, 0, len(dynamicCols)+1)
	defs = append(defs, "sample_id VARCHAR NOT NULL PRIMARY KEY")
	for _, c := range dynamicCols {
		defs = append(defs, fmt.Sprintf("%s %s", c, sqlType(dynamicTypes[c])))
	}
	stmts = append(stmts, store.Statement{
		SQL: fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", k.TableName(templateID), strings.Join(defs, ",\n    ")),
	})

	rowCols := append([]string{"sample_id"}, dynamicCols...)
	rowPlaceholders := strings.TrimSuffix(strings.Repeat("?, ", len(rowCols)), ", ")
	rowSQL := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		k.TableName(templateID), strings.Join(rowCols, ", "), rowPlaceholders)
	for _, sid := range md.SampleIDs {
		args := make([]any, 0, len(rowCols))
		args = append(args, sid)
		for _, c := range dynamicCols {
			args = append(args, convertCell(dynamicTypes[c], md.Cells[sid][c]))
		}
		stmts = append(stmts, store.Statement{SQL: rowSQL, Args: args})
	}

	return stmts, nil
}
