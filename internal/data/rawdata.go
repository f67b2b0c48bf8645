package data

import (
	"context"
	"fmt"

	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// RawDataFile pairs a sequence file with its registry type label.
type RawDataFile struct {
	Path string
	Type string
}

// RawData is a set of registered sequence files shared by one or more studies.
type RawData struct {
	ID       int64
	Filetype string
}

// CreateRawData registers the given files, inserts the raw_data row with the
// named filetype (FASTA, FASTQ or SFF) and links it to the studies.
func CreateRawData(ctx context.Context, db *store.DB, filetype string, studyIDs []int64, files []RawDataFile) (RawData, error) {
	if _, err := db.FetchOne(ctx, `SELECT filetype_id FROM filetype WHERE type = ?`, filetype); err != nil {
		if store.IsNoRows(err) {
			return RawData{}, &types.UnsupportedFiletypeError{Filetype: filetype}
		}
		return RawData{}, fmt.Errorf("filetype %q: %w", filetype, err)
	}

	id, err := db.InsertReturningID(ctx,
		`INSERT INTO raw_data (filetype_id)
		 SELECT filetype_id FROM filetype WHERE type = ? RETURNING raw_data_id`, filetype)
	if err != nil {
		return RawData{}, fmt.Errorf("create raw data: %w", err)
	}

	for _, studyID := range studyIDs {
		if err := db.Execute(ctx,
			`INSERT INTO study_raw_data (study_id, raw_data_id) VALUES (?, ?)`, studyID, id); err != nil {
			return RawData{}, fmt.Errorf("link raw data %d to study %d: %w", id, studyID, err)
		}
	}

	for _, f := range files {
		fpID, err := RegisterFilepath(ctx, db, f.Path, f.Type)
		if err != nil {
			return RawData{}, err
		}
		if err := db.Execute(ctx,
			`INSERT INTO raw_filepath (raw_data_id, filepath_id) VALUES (?, ?)`, id, fpID); err != nil {
			return RawData{}, fmt.Errorf("link filepath %d to raw data %d: %w", fpID, id, err)
		}
	}

	return RawData{ID: id, Filetype: filetype}, nil
}

// GetRawData loads a raw data entity by id.
func GetRawData(ctx context.Context, db *store.DB, id int64) (RawData, error) {
	row, err := db.FetchOne(ctx,
		`SELECT r.raw_data_id, f.type FROM raw_data r
		 JOIN filetype f ON f.filetype_id = r.filetype_id
		 WHERE r.raw_data_id = ?`, id)
	if err != nil {
		return RawData{}, fmt.Errorf("raw data %d: %w", id, err)
	}
	return RawData{
		ID:       store.AsInt64(row["raw_data_id"]),
		Filetype: store.AsString(row["type"]),
	}, nil
}

// RawFilepaths lists the registered files of a raw data entity.
func RawFilepaths(ctx context.Context, db *store.DB, id int64) ([]Filepath, error) {
	return fetchFilepaths(ctx, db, "raw_filepath", "raw_data_id", id)
}

// PreprocessingStatus reads the current preprocessing state of a raw data
// entity.
func PreprocessingStatus(ctx context.Context, db *store.DB, id int64) (string, error) {
	row, err := db.FetchOne(ctx,
		`SELECT preprocessing_status FROM raw_data WHERE raw_data_id = ?`, id)
	if err != nil {
		return "", fmt.Errorf("preprocessing status of raw data %d: %w", id, err)
	}
	return store.AsString(row["preprocessing_status"]), nil
}

// SetPreprocessingStatus writes a new preprocessing state, rejecting values
// outside the recognized machine.
func SetPreprocessingStatus(ctx context.Context, db *store.DB, id int64, status string) error {
	if !types.ValidPreprocessingStatus(status) {
		return fmt.Errorf("invalid preprocessing status %q", status)
	}
	if err := db.Execute(ctx,
		`UPDATE raw_data SET preprocessing_status = ? WHERE raw_data_id = ?`, status, id); err != nil {
		return fmt.Errorf("set preprocessing status of raw data %d: %w", id, err)
	}
	return nil
}
