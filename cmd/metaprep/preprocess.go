// Preprocessing command for the metaprep CLI.
package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/data"
	"github.com/omicsdb/metaprep/internal/pipeline"
	"github.com/omicsdb/metaprep/internal/template"
)

var preprocessParams string

var preprocessCmd = &cobra.Command{
	Use:   "preprocess <prep-id>",
	Short: "Run the preprocessing pipeline for a prep template",
	Long: `Demultiplex the raw sequence data behind a prep template with the QIIME
split_libraries tools, pack the per-sample reads into a demux file and
register the products. A failing run flips the raw data status to
"failed: <reason>" and leaves a durable log entry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prepID, err := parseID(args[0])
		if err != nil {
			return err
		}

		db, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		p := &pipeline.Preprocessor{
			DB:          db,
			RunsDir:     cfg.RunsDir(),
			ProductsDir: filepath.Join(cfg.DataDir, "preprocessed"),
			Params:      preprocessParams,
			Runner:      pipeline.ExecRunner{},
			Logger:      slog.Default(),
		}
		if err := p.Run(cmd.Context(), prepID); err != nil {
			return err
		}

		rawDataID, err := template.PrepRawData(cmd.Context(), db, prepID)
		if err != nil {
			return err
		}
		status, err := data.PreprocessingStatus(cmd.Context(), db, rawDataID)
		if err != nil {
			return err
		}
		fmt.Printf("preprocessing of prep template %d finished: %s\n", prepID, status)
		return nil
	},
}

func init() {
	preprocessCmd.Flags().StringVar(&preprocessParams, "params", "",
		"extra arguments passed through to the demultiplexer")
}
