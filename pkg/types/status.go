package types

import "strings"

// Preprocessing status values for a raw-data entity. A failed run carries a
// diagnostic suffix: "failed: <message>".
const (
	StatusNotPreprocessed = "not_preprocessed"
	StatusPreprocessing   = "preprocessing"
	StatusSuccess         = "success"
	statusFailedPrefix    = "failed:"
)

// FailedStatus formats a failure status carrying the given message.
func FailedStatus(msg string) string {
	return statusFailedPrefix + " " + msg
}

// ValidPreprocessingStatus reports whether s is one of the recognized
// preprocessing states.
func ValidPreprocessingStatus(s string) bool {
	switch s {
	case StatusNotPreprocessed, StatusPreprocessing, StatusSuccess:
		return true
	}
	return strings.HasPrefix(s, statusFailedPrefix)
}

// Processed-data visibility statuses, from widest to narrowest.
const (
	ProcessedPublic   = "public"
	ProcessedPrivate  = "private"
	ProcessedAwaiting = "awaiting_approval"
	ProcessedSandbox  = "sandbox"
)

// statusPrecedence orders processed statuses; a template inherits the widest
// visibility among its downstream processed data.
var statusPrecedence = []string{
	ProcessedPublic,
	ProcessedPrivate,
	ProcessedAwaiting,
}

// InferProcessedStatus reduces the statuses of a template's downstream
// processed data to a single value. With no downstream data the template is
// in the sandbox.
func InferProcessedStatus(statuses []string) string {
	for _, want := range statusPrecedence {
		for _, s := range statuses {
			if s == want {
				return want
			}
		}
	}
	return ProcessedSandbox
}
