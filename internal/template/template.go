// Package template implements the metadata template engine: dynamic
// per-study and per-prep tables, the column registry that mirrors them, the
// transactional bulk loader and the snapshot/mapping file writers.
package template

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/omicsdb/metaprep/internal/data"
	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// Kind captures what differs between the two template families: where the
// shared columns live, which registry mirrors the dynamic table and which id
// column keys both.
type Kind struct {
	Name          string
	TablePrefix   string
	SharedTable   string
	ColumnTable   string
	IDColumn      string
	FilepathTable string
}

// The two template kinds.
var (
	SampleKind = Kind{
		Name:          "sample",
		TablePrefix:   "sample_",
		SharedTable:   "required_sample_info",
		ColumnTable:   "study_sample_columns",
		IDColumn:      "study_id",
		FilepathTable: "sample_template_filepath",
	}
	PrepKind = Kind{
		Name:          "prep",
		TablePrefix:   "prep_",
		SharedTable:   "common_prep_info",
		ColumnTable:   "prep_columns",
		IDColumn:      "prep_template_id",
		FilepathTable: "prep_template_filepath",
	}
)

// TableName builds the dynamic table name for a template id.
func (k Kind) TableName(id int64) string {
	return k.TablePrefix + strconv.FormatInt(id, 10)
}

// Exists reports whether the template's dynamic table is present.
func Exists(ctx context.Context, db *store.DB, k Kind, id int64) (bool, error) {
	return db.TableExists(ctx, k.TableName(id))
}

// SampleIDs lists the template's sample ids in lexical order.
func SampleIDs(ctx context.Context, db *store.DB, k Kind, id int64) ([]string, error) {
	q := fmt.Sprintf(`SELECT sample_id FROM %s WHERE %s = ? ORDER BY sample_id`,
		k.SharedTable, k.IDColumn)
	rows, err := db.FetchAll(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("sample ids of %s template %d: %w", k.Name, id, err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, store.AsString(r["sample_id"]))
	}
	return ids, nil
}

// Load materializes a template back into Metadata, merging the shared-table
// columns with the dynamic ones. The shared key columns themselves are not
// part of the metadata.
func Load(ctx context.Context, db *store.DB, k Kind, id int64) (Metadata, error) {
	ok, err := Exists(ctx, db, k, id)
	if err != nil {
		return Metadata{}, err
	}
	if !ok {
		return Metadata{}, &types.UnknownTemplateError{Kind: k.Name, ID: id}
	}

	table := k.TableName(id)
	shared, err := db.TableColumns(ctx, k.SharedTable)
	if err != nil {
		return Metadata{}, err
	}
	dynamic, err := db.TableColumns(ctx, table)
	if err != nil {
		return Metadata{}, err
	}

	md := Metadata{Cells: map[string]map[string]string{}}
	skip := map[string]bool{"sample_id": true, "study_id": true, "prep_template_id": true}
	for _, c := range shared {
		if !skip[c] {
			md.Columns = append(md.Columns, c)
		}
	}
	for _, c := range dynamic {
		if c != "sample_id" {
			md.Columns = append(md.Columns, c)
		}
	}
	sort.Strings(md.Columns)

	q := fmt.Sprintf(`SELECT s.*, d.* FROM %s s JOIN %s d ON d.sample_id = s.sample_id
		WHERE s.%s = ? ORDER BY s.sample_id`, k.SharedTable, table, k.IDColumn)
	rows, err := db.FetchAll(ctx, q, id)
	if err != nil {
		return Metadata{}, fmt.Errorf("load %s template %d: %w", k.Name, id, err)
	}
	for _, r := range rows {
		sid := store.AsString(r["sample_id"])
		md.SampleIDs = append(md.SampleIDs, sid)
		cells := make(map[string]string, len(md.Columns))
		for _, c := range md.Columns {
			if v, ok := r[c]; ok && v != nil {
				cells[c] = store.AsString(v)
			}
		}
		md.Cells[sid] = cells
	}
	return md, nil
}

// Delete drops the dynamic table and clears the registry and shared rows. A
// prep template with preprocessed products cannot be deleted.
func Delete(ctx context.Context, db *store.DB, k Kind, id int64) error {
	ok, err := Exists(ctx, db, k, id)
	if err != nil {
		return err
	}
	if !ok {
		return &types.UnknownTemplateError{Kind: k.Name, ID: id}
	}

	if k.Name == PrepKind.Name {
		has, err := data.PreprocessedExists(ctx, db, id)
		if err != nil {
			return err
		}
		if has {
			return &types.StateConflictError{
				Op:     "delete prep template",
				Reason: fmt.Sprintf("prep template %d has preprocessed data", id),
			}
		}
	}

	stmts := []store.Statement{
		{SQL: fmt.Sprintf(`DROP TABLE %s`, k.TableName(id))},
		{SQL: fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, k.ColumnTable, k.IDColumn), Args: []any{id}},
		{SQL: fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, k.SharedTable, k.IDColumn), Args: []any{id}},
		{SQL: fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, k.FilepathTable, k.IDColumn), Args: []any{id}},
	}
	if k.Name == PrepKind.Name {
		stmts = append(stmts, store.Statement{
			SQL: `DELETE FROM prep_template WHERE prep_template_id = ?`, Args: []any{id},
		})
	}
	name := fmt.Sprintf("DELETE_%s_TEMPLATE_%d", upper(k.Name), id)
	return db.RunAtomic(ctx, name, stmts)
}

// AddFilepath registers a snapshot file against the template.
func AddFilepath(ctx context.Context, db *store.DB, k Kind, id int64, path string) (int64, error) {
	fpType := data.FpSampleTemplate
	if k.Name == PrepKind.Name {
		fpType = data.FpPrepTemplate
	}
	fpID, err := data.RegisterFilepath(ctx, db, path, fpType)
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s, filepath_id) VALUES (?, ?)`, k.FilepathTable, k.IDColumn)
	if err := db.Execute(ctx, q, id, fpID); err != nil {
		return 0, fmt.Errorf("link snapshot to %s template %d: %w", k.Name, id, err)
	}
	return fpID, nil
}

// Filepaths lists the snapshots registered against the template, newest
// registration first.
func Filepaths(ctx context.Context, db *store.DB, k Kind, id int64) ([]data.Filepath, error) {
	q := fmt.Sprintf(
		`SELECT f.filepath_id, f.filepath, ft.filepath_type, f.checksum
		 FROM filepath f
		 JOIN filepath_type ft ON ft.filepath_type_id = f.filepath_type_id
		 JOIN %s l ON l.filepath_id = f.filepath_id
		 WHERE l.%s = ?
		 ORDER BY f.filepath_id DESC`, k.FilepathTable, k.IDColumn)
	rows, err := db.FetchAll(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("snapshots of %s template %d: %w", k.Name, id, err)
	}
	out := make([]data.Filepath, 0, len(rows))
	for _, r := range rows {
		out = append(out, data.Filepath{
			ID:       store.AsInt64(r["filepath_id"]),
			Path:     store.AsString(r["filepath"]),
			Type:     store.AsString(r["filepath_type"]),
			Checksum: store.AsString(r["checksum"]),
		})
	}
	return out, nil
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
