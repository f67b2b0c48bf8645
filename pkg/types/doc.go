// Package types defines the configuration, column typing, status values, and
// error taxonomy shared across the metaprep storage and pipeline packages.
package types
