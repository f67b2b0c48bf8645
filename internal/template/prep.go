package template

import (
	"context"
	"fmt"

	"github.com/omicsdb/metaprep/internal/data"
	"github.com/omicsdb/metaprep/internal/ontology"
	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// CreatePrepTemplate bulk-loads a prep template over the raw data. The root
// prep_template row is inserted first to mint the template id; the rest of
// the load runs in one transaction. When that transaction fails the root row
// is deleted again and, if the failure traces to samples missing from the
// study's sample template, the raw constraint error is replaced by an
// OrphanSamplesError naming them.
func CreatePrepTemplate(ctx context.Context, db *store.DB, rawDataID, studyID int64, dataType, investigationType string, md Metadata) (int64, error) {
	if _, err := data.GetRawData(ctx, db, rawDataID); err != nil {
		return 0, err
	}
	if _, err := data.GetStudy(ctx, db, studyID); err != nil {
		return 0, err
	}
	if investigationType != "" {
		if err := ontology.ValidateInvestigationType(ctx, db, investigationType); err != nil {
			return 0, err
		}
	}
	if _, err := db.FetchOne(ctx,
		`SELECT data_type_id FROM data_type WHERE data_type = ?`, dataType); err != nil {
		return 0, fmt.Errorf("data type %q: %w", dataType, err)
	}

	normalized, err := Normalize(studyID, md)
	if err != nil {
		return 0, err
	}
	normalized = applyRenames(normalized, prepRenames)
	if targetGeneDataTypes[dataType] {
		if err := checkRequired(normalized, requiredTargetGeneColumns); err != nil {
			return 0, err
		}
	}

	var investigation any
	if investigationType != "" {
		investigation = investigationType
	}
	prepID, err := db.InsertReturningID(ctx,
		`INSERT INTO prep_template (raw_data_id, data_type_id, investigation_type)
		 SELECT ?, data_type_id, ? FROM data_type WHERE data_type = ?
		 RETURNING prep_template_id`,
		rawDataID, investigation, dataType)
	if err != nil {
		return 0, fmt.Errorf("create prep template root: %w", err)
	}

	shared := make(map[string]bool, len(commonPrepColumns))
	for _, c := range commonPrepColumns {
		shared[c] = true
	}
	stmts, err := buildStatements(PrepKind, prepID,
		[]any{prepID, studyID}, []string{"prep_template_id", "study_id"}, normalized, shared)
	if err != nil {
		return 0, rollbackPrepRoot(ctx, db, prepID, err)
	}

	name := fmt.Sprintf("CREATE_PREP_TEMPLATE_%d", rawDataID)
	if err := db.RunAtomic(ctx, name, stmts); err != nil {
		loadErr := diagnoseOrphans(ctx, db, studyID, normalized.SampleIDs, err)
		logLoadFailure(ctx, db, "prep template load failed", map[string]any{
			"raw_data": rawDataID,
			"study":    studyID,
			"cause":    loadErr.Error(),
		})
		return 0, rollbackPrepRoot(ctx, db, prepID, loadErr)
	}
	return prepID, nil
}

// rollbackPrepRoot removes the pre-minted prep_template row after a failed
// load and returns loadErr unchanged.
func rollbackPrepRoot(ctx context.Context, db *store.DB, prepID int64, loadErr error) error {
	if err := db.Execute(ctx,
		`DELETE FROM prep_template WHERE prep_template_id = ?`, prepID); err != nil {
		return fmt.Errorf("%w (cleanup of prep template %d also failed: %v)", loadErr, prepID, err)
	}
	return loadErr
}

// diagnoseOrphans checks whether a failed prep load involved samples absent
// from the study's sample template. If so the raw error is replaced by an
// OrphanSamplesError listing them; otherwise the original error passes
// through verbatim.
func diagnoseOrphans(ctx context.Context, db *store.DB, studyID int64, sampleIDs []string, loadErr error) error {
	registered, err := SampleIDs(ctx, db, SampleKind, studyID)
	if err != nil {
		return loadErr
	}
	known := make(map[string]bool, len(registered))
	for _, sid := range registered {
		known[sid] = true
	}
	var orphans []string
	for _, sid := range sampleIDs {
		if !known[sid] {
			orphans = append(orphans, sid)
		}
	}
	if len(orphans) > 0 {
		return &types.OrphanSamplesError{SampleIDs: orphans}
	}
	return loadErr
}

// InvestigationType reads the prep template's investigation type; the empty
// string means none was set.
func InvestigationType(ctx context.Context, db *store.DB, prepID int64) (string, error) {
	row, err := db.FetchOne(ctx,
		`SELECT investigation_type FROM prep_template WHERE prep_template_id = ?`, prepID)
	if err != nil {
		if store.IsNoRows(err) {
			return "", &types.UnknownTemplateError{Kind: PrepKind.Name, ID: prepID}
		}
		return "", err
	}
	return store.AsString(row["investigation_type"]), nil
}

// SetInvestigationType updates the prep template's investigation type after
// validating it against the ENA vocabulary.
func SetInvestigationType(ctx context.Context, db *store.DB, prepID int64, value string) error {
	ok, err := Exists(ctx, db, PrepKind, prepID)
	if err != nil {
		return err
	}
	if !ok {
		return &types.UnknownTemplateError{Kind: PrepKind.Name, ID: prepID}
	}
	if err := ontology.ValidateInvestigationType(ctx, db, value); err != nil {
		return err
	}
	return db.Execute(ctx,
		`UPDATE prep_template SET investigation_type = ? WHERE prep_template_id = ?`, value, prepID)
}

// PrepRawData resolves the raw data a prep template was built over.
func PrepRawData(ctx context.Context, db *store.DB, prepID int64) (int64, error) {
	row, err := db.FetchOne(ctx,
		`SELECT raw_data_id FROM prep_template WHERE prep_template_id = ?`, prepID)
	if err != nil {
		if store.IsNoRows(err) {
			return 0, &types.UnknownTemplateError{Kind: PrepKind.Name, ID: prepID}
		}
		return 0, err
	}
	return store.AsInt64(row["raw_data_id"]), nil
}

// PrepDataType resolves a prep template's data type label.
func PrepDataType(ctx context.Context, db *store.DB, prepID int64) (string, error) {
	row, err := db.FetchOne(ctx,
		`SELECT dt.data_type FROM prep_template pt
		 JOIN data_type dt ON dt.data_type_id = pt.data_type_id
		 WHERE pt.prep_template_id = ?`, prepID)
	if err != nil {
		if store.IsNoRows(err) {
			return "", &types.UnknownTemplateError{Kind: PrepKind.Name, ID: prepID}
		}
		return "", err
	}
	return store.AsString(row["data_type"]), nil
}

// PrepStudy resolves the study a prep template belongs to through the raw
// data link.
func PrepStudy(ctx context.Context, db *store.DB, prepID int64) (int64, error) {
	row, err := db.FetchOne(ctx,
		`SELECT srd.study_id FROM study_raw_data srd
		 JOIN prep_template pt ON pt.raw_data_id = srd.raw_data_id
		 WHERE pt.prep_template_id = ?`, prepID)
	if err != nil {
		if store.IsNoRows(err) {
			return 0, &types.UnknownTemplateError{Kind: PrepKind.Name, ID: prepID}
		}
		return 0, err
	}
	return store.AsInt64(row["study_id"]), nil
}
