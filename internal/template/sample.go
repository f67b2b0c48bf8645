package template

import (
	"context"
	"fmt"
	"sort"

	"github.com/omicsdb/metaprep/internal/data"
	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// CreateSampleTemplate bulk-loads a sample template for the study. The whole
// load is one transaction: the shared rows, the column registry, the dynamic
// sample_<study> table and its rows either all land or none do.
func CreateSampleTemplate(ctx context.Context, db *store.DB, studyID int64, md Metadata) error {
	if _, err := data.GetStudy(ctx, db, studyID); err != nil {
		return err
	}

	exists, err := Exists(ctx, db, SampleKind, studyID)
	if err != nil {
		return err
	}
	if exists {
		return &types.StateConflictError{
			Op:     "create sample template",
			Reason: fmt.Sprintf("study %d already has a sample template", studyID),
		}
	}

	normalized, err := Normalize(studyID, md)
	if err != nil {
		return err
	}
	required := make([]string, 0, len(requiredSampleColumns))
	for c := range requiredSampleColumns {
		required = append(required, c)
	}
	sort.Strings(required)
	if err := checkRequired(normalized, required); err != nil {
		return err
	}

	shared := make(map[string]bool, len(requiredSampleColumns))
	for c := range requiredSampleColumns {
		shared[c] = true
	}
	stmts, err := buildStatements(SampleKind, studyID,
		[]any{studyID}, []string{"study_id"}, normalized, shared)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("CREATE_SAMPLE_TEMPLATE_%d", studyID)
	if err := db.RunAtomic(ctx, name, stmts); err != nil {
		logLoadFailure(ctx, db, "sample template load failed", map[string]any{
			"study": studyID,
			"cause": err.Error(),
		})
		return err
	}
	return nil
}
