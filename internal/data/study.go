package data

import (
	"context"
	"fmt"

	"github.com/omicsdb/metaprep/internal/store"
)

// Study is the owning entity of a sample template and its raw data.
type Study struct {
	ID          int64
	Title       string
	Alias       string
	Description string
}

// CreateStudy inserts a study row and returns it with the generated id.
func CreateStudy(ctx context.Context, db *store.DB, title, alias, description string) (Study, error) {
	id, err := db.InsertReturningID(ctx,
		`INSERT INTO study (title, study_alias, description) VALUES (?, ?, ?) RETURNING study_id`,
		title, alias, description)
	if err != nil {
		return Study{}, fmt.Errorf("create study: %w", err)
	}
	return Study{ID: id, Title: title, Alias: alias, Description: description}, nil
}

// GetStudy loads a study by id.
func GetStudy(ctx context.Context, db *store.DB, id int64) (Study, error) {
	row, err := db.FetchOne(ctx,
		`SELECT study_id, title, study_alias, description FROM study WHERE study_id = ?`, id)
	if err != nil {
		return Study{}, fmt.Errorf("study %d: %w", id, err)
	}
	return Study{
		ID:          store.AsInt64(row["study_id"]),
		Title:       store.AsString(row["title"]),
		Alias:       store.AsString(row["study_alias"]),
		Description: store.AsString(row["description"]),
	}, nil
}

// StudyRawData lists the raw data ids attached to a study.
func StudyRawData(ctx context.Context, db *store.DB, studyID int64) ([]int64, error) {
	rows, err := db.FetchAll(ctx,
		`SELECT raw_data_id FROM study_raw_data WHERE study_id = ? ORDER BY raw_data_id`, studyID)
	if err != nil {
		return nil, fmt.Errorf("raw data of study %d: %w", studyID, err)
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, store.AsInt64(r["raw_data_id"]))
	}
	return ids, nil
}
