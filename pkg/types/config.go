package types

import (
	"errors"
	"path/filepath"
)

// Config holds store selection and filesystem mount points.
type Config struct {
	Driver     string `json:"driver" yaml:"driver"`
	DSN        string `json:"dsn" yaml:"dsn"`
	DataDir    string `json:"data_dir" yaml:"data_dir"`
	WorkingDir string `json:"working_dir" yaml:"working_dir"`
}

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config validation errors.
var (
	ErrDriverEmpty   = errors.New("driver must not be empty")
	ErrDriverUnknown = errors.New("unknown driver")
	ErrDataDirEmpty  = errors.New("data_dir must not be empty")
)

// knownDrivers lists the drivers that Validate accepts.
var knownDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Driver == "" {
		return ErrDriverEmpty
	}
	if !knownDrivers[c.Driver] {
		return ErrDriverUnknown
	}
	if c.DataDir == "" {
		return ErrDataDirEmpty
	}
	return nil
}

// TemplatesDir is the mount point for committed template snapshots and
// mapping files.
func (c Config) TemplatesDir() string {
	return filepath.Join(c.DataDir, "templates")
}

// UploadsDir is the mount point for candidate template files awaiting load.
func (c Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// RunsDir is the scratch space for pipeline working directories. Falls back
// to a directory under DataDir when working_dir is not configured.
func (c Config) RunsDir() string {
	if c.WorkingDir != "" {
		return c.WorkingDir
	}
	return filepath.Join(c.DataDir, "working")
}
