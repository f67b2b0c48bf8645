// Sample template loading command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/template"
)

var (
	sampleAddStudy int64
	sampleAddFile  string
)

var sampleAddCmd = &cobra.Command{
	Use:   "sample-add",
	Short: "Bulk-load a sample template from a tab-delimited metadata file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		file, err := resolveUpload(cfg, sampleAddFile)
		if err != nil {
			return err
		}
		md, err := template.ParseFile(file)
		if err != nil {
			return err
		}
		if err := template.CreateSampleTemplate(cmd.Context(), db, sampleAddStudy, md); err != nil {
			return err
		}
		path, err := template.Snapshot(cmd.Context(), db, template.SampleKind, sampleAddStudy, cfg.TemplatesDir())
		if err != nil {
			return err
		}

		fmt.Printf("loaded sample template for study %d (%d samples), snapshot %s\n",
			sampleAddStudy, len(md.SampleIDs), path)
		return nil
	},
}

func init() {
	sampleAddCmd.Flags().Int64Var(&sampleAddStudy, "study", 0, "study id (required)")
	sampleAddCmd.Flags().StringVar(&sampleAddFile, "file", "", "tab-delimited metadata file (required)")
	_ = sampleAddCmd.MarkFlagRequired("study")
	_ = sampleAddCmd.MarkFlagRequired("file")
}
