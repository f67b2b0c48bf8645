// Prep template loading command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/template"
)

var (
	prepAddRawData       int64
	prepAddStudy         int64
	prepAddDataType      string
	prepAddInvestigation string
	prepAddFile          string
)

var prepAddCmd = &cobra.Command{
	Use:   "prep-add",
	Short: "Bulk-load a prep template from a tab-delimited metadata file",
	Long: `Load a prep template over registered raw data. Target-gene data types
(16S, 18S, ITS) require the amplicon columns; every prep sample must already
exist in the study's sample template.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		file, err := resolveUpload(cfg, prepAddFile)
		if err != nil {
			return err
		}
		md, err := template.ParseFile(file)
		if err != nil {
			return err
		}
		prepID, err := template.CreatePrepTemplate(cmd.Context(), db,
			prepAddRawData, prepAddStudy, prepAddDataType, prepAddInvestigation, md)
		if err != nil {
			return err
		}
		path, err := template.Snapshot(cmd.Context(), db, template.PrepKind, prepID, cfg.TemplatesDir())
		if err != nil {
			return err
		}
		mapping, err := template.QIIMEMappingFile(cmd.Context(), db, prepID, cfg.TemplatesDir())
		if err != nil {
			return err
		}

		fmt.Printf("loaded prep template %d (%d samples), snapshot %s, mapping %s\n",
			prepID, len(md.SampleIDs), path, mapping)
		return nil
	},
}

func init() {
	prepAddCmd.Flags().Int64Var(&prepAddRawData, "raw-data", 0, "raw data id (required)")
	prepAddCmd.Flags().Int64Var(&prepAddStudy, "study", 0, "study id (required)")
	prepAddCmd.Flags().StringVar(&prepAddDataType, "data-type", "", "data type, e.g. 16S (required)")
	prepAddCmd.Flags().StringVar(&prepAddInvestigation, "investigation-type", "", "ENA investigation type")
	prepAddCmd.Flags().StringVar(&prepAddFile, "file", "", "tab-delimited metadata file (required)")
	_ = prepAddCmd.MarkFlagRequired("raw-data")
	_ = prepAddCmd.MarkFlagRequired("study")
	_ = prepAddCmd.MarkFlagRequired("data-type")
	_ = prepAddCmd.MarkFlagRequired("file")
}
