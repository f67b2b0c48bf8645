package data

import (
	"context"
	"fmt"

	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// PreprocessedData is the product of one preprocessing run over a prep
// template's raw data.
type PreprocessedData struct {
	ID               int64
	DataType         string
	SubmittedToINSDC bool
}

// CreatePreprocessed registers the output files of a preprocessing run and
// links the product to its prep template.
func CreatePreprocessed(ctx context.Context, db *store.DB, prepTemplateID int64, dataType string, files []RawDataFile) (PreprocessedData, error) {
	id, err := db.InsertReturningID(ctx,
		`INSERT INTO preprocessed_data (data_type_id)
		 SELECT data_type_id FROM data_type WHERE data_type = ?
		 RETURNING preprocessed_data_id`, dataType)
	if err != nil {
		return PreprocessedData{}, fmt.Errorf("create preprocessed data: %w", err)
	}

	if err := db.Execute(ctx,
		`INSERT INTO prep_template_preprocessed_data (prep_template_id, preprocessed_data_id)
		 VALUES (?, ?)`, prepTemplateID, id); err != nil {
		return PreprocessedData{}, fmt.Errorf("link preprocessed data %d to prep template %d: %w",
			id, prepTemplateID, err)
	}

	for _, f := range files {
		fpID, err := RegisterFilepath(ctx, db, f.Path, f.Type)
		if err != nil {
			return PreprocessedData{}, err
		}
		if err := db.Execute(ctx,
			`INSERT INTO preprocessed_filepath (preprocessed_data_id, filepath_id) VALUES (?, ?)`,
			id, fpID); err != nil {
			return PreprocessedData{}, fmt.Errorf("link filepath %d to preprocessed data %d: %w", fpID, id, err)
		}
	}

	return PreprocessedData{ID: id, DataType: dataType}, nil
}

// PreprocessedExists reports whether a prep template already has a
// preprocessed product. Deletion and re-preprocessing are rejected while one
// exists.
func PreprocessedExists(ctx context.Context, db *store.DB, prepTemplateID int64) (bool, error) {
	rows, err := db.FetchAll(ctx,
		`SELECT preprocessed_data_id FROM prep_template_preprocessed_data WHERE prep_template_id = ?`,
		prepTemplateID)
	if err != nil {
		return false, fmt.Errorf("preprocessed data of prep template %d: %w", prepTemplateID, err)
	}
	return len(rows) > 0, nil
}

// PreprocessedFilepaths lists the registered output files of a preprocessed
// product.
func PreprocessedFilepaths(ctx context.Context, db *store.DB, id int64) ([]Filepath, error) {
	return fetchFilepaths(ctx, db, "preprocessed_filepath", "preprocessed_data_id", id)
}

// ProcessedStatuses collects the visibility statuses of all processed data
// downstream of a prep template, across its preprocessed products.
func ProcessedStatuses(ctx context.Context, db *store.DB, prepTemplateID int64) ([]string, error) {
	rows, err := db.FetchAll(ctx,
		`SELECT pd.processed_data_status
		 FROM processed_data pd
		 JOIN preprocessed_processed_data ppd ON ppd.processed_data_id = pd.processed_data_id
		 JOIN prep_template_preprocessed_data ptpd ON ptpd.preprocessed_data_id = ppd.preprocessed_data_id
		 WHERE ptpd.prep_template_id = ?`, prepTemplateID)
	if err != nil {
		return nil, fmt.Errorf("processed statuses of prep template %d: %w", prepTemplateID, err)
	}
	statuses := make([]string, 0, len(rows))
	for _, r := range rows {
		statuses = append(statuses, store.AsString(r["processed_data_status"]))
	}
	return statuses, nil
}

// PrepStatus derives the visibility of a prep template from its downstream
// processed data.
func PrepStatus(ctx context.Context, db *store.DB, prepTemplateID int64) (string, error) {
	statuses, err := ProcessedStatuses(ctx, db, prepTemplateID)
	if err != nil {
		return "", err
	}
	return types.InferProcessedStatus(statuses), nil
}
