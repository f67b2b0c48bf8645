// Shared helpers for metaprep CLI commands.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// buildConfig assembles the store configuration from flags, config.yaml and
// environment.
func buildConfig() (types.Config, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}

	driver := configDriver
	if driver == "" {
		driver = types.DriverSQLite
	}

	cfg := types.Config{
		Driver:     driver,
		DSN:        configDSN,
		DataDir:    dataDir,
		WorkingDir: configWorkingDir,
	}
	return cfg, cfg.Validate()
}

// openStore opens the configured store. The caller must defer db.Close().
func openStore() (*store.DB, types.Config, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, types.Config{}, err
	}
	db, err := store.Open(cfg)
	if err != nil {
		return nil, types.Config{}, fmt.Errorf("open store: %w", err)
	}
	return db, cfg, nil
}

// resolveUpload locates an input file: an existing path is used as given,
// otherwise the name is looked up in the uploads mount point.
func resolveUpload(cfg types.Config, path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	candidate := filepath.Join(cfg.UploadsDir(), path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("file %q not found (also tried %s)", path, cfg.UploadsDir())
}
