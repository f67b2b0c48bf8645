package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for conditions that carry no payload.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// MissingColumnsError reports required template columns absent from the
// input after normalization and renaming.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Columns, ", "))
}

// DuplicateHeaderError reports column headers that collide after
// lower-casing.
type DuplicateHeaderError struct {
	Headers []string
}

func (e *DuplicateHeaderError) Error() string {
	return fmt.Sprintf("duplicate column headers: %s", strings.Join(e.Headers, ", "))
}

// InvalidSampleIDError reports sample ids containing characters outside
// [A-Za-z0-9.].
type InvalidSampleIDError struct {
	SampleIDs []string
}

func (e *InvalidSampleIDError) Error() string {
	return fmt.Sprintf("sample ids contain invalid characters (only alphanumeric characters or periods are allowed): %s",
		strings.Join(e.SampleIDs, ", "))
}

// InvalidInvestigationTypeError reports an investigation type outside the
// controlled vocabulary, listing the valid alternatives.
type InvalidInvestigationTypeError struct {
	Value string
	Valid []string
}

func (e *InvalidInvestigationTypeError) Error() string {
	return fmt.Sprintf("%q is not a valid investigation type, choose from: %s",
		e.Value, strings.Join(e.Valid, ", "))
}

// OrphanSamplesError reports prep template samples that are not registered
// in the owning study's sample template. Raised by the bulk-load rollback
// diagnostic in place of the raw constraint violation.
type OrphanSamplesError struct {
	SampleIDs []string
}

func (e *OrphanSamplesError) Error() string {
	return fmt.Sprintf("samples found in prep template but not in sample template: %s",
		strings.Join(e.SampleIDs, ", "))
}

// NotASubsetError reports prep sample ids missing from the sample template
// during mapping-file derivation.
type NotASubsetError struct {
	SampleIDs []string
}

func (e *NotASubsetError) Error() string {
	return fmt.Sprintf("prep template is not a subset of the sample template, offending samples: %s",
		strings.Join(e.SampleIDs, ", "))
}

// UnknownTemplateError reports an operation against a template id whose
// dynamic table does not exist.
type UnknownTemplateError struct {
	Kind string
	ID   int64
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("%s template %d does not exist", e.Kind, e.ID)
}

// StateConflictError reports an operation rejected because downstream
// artifacts depend on the target.
type StateConflictError struct {
	Op     string
	Reason string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason)
}

// UnsupportedFiletypeError reports a raw-data filetype the pipeline has no
// command builder for.
type UnsupportedFiletypeError struct {
	Filetype string
}

func (e *UnsupportedFiletypeError) Error() string {
	return fmt.Sprintf("raw data filetype %q cannot be preprocessed", e.Filetype)
}
