// Package ontology reads the controlled vocabularies seeded into the store.
// Investigation types on prep templates must come from the ENA ontology.
package ontology

import (
	"context"
	"fmt"

	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// ENA is the ontology holding the valid investigation types.
const ENA = "ENA"

// Terms returns the terms of the named ontology in seed order.
func Terms(ctx context.Context, db *store.DB, name string) ([]string, error) {
	rows, err := db.FetchAll(ctx,
		`SELECT t.term FROM term t
		 JOIN ontology o ON o.ontology_id = t.ontology_id
		 WHERE o.ontology_name = ?
		 ORDER BY t.term_id`, name)
	if err != nil {
		return nil, fmt.Errorf("ontology terms: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("ontology %q: %w", name, types.ErrNotFound)
	}
	terms := make([]string, 0, len(rows))
	for _, r := range rows {
		terms = append(terms, store.AsString(r["term"]))
	}
	return terms, nil
}

// ValidateInvestigationType checks value against the ENA terms, returning
// InvalidInvestigationTypeError with the full vocabulary on a miss.
func ValidateInvestigationType(ctx context.Context, db *store.DB, value string) error {
	terms, err := Terms(ctx, db, ENA)
	if err != nil {
		return err
	}
	for _, t := range terms {
		if t == value {
			return nil
		}
	}
	return &types.InvalidInvestigationTypeError{Value: value, Valid: terms}
}
