// Template export command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/template"
)

var (
	exportDir   string
	exportQIIME bool
	exportMMF   bool
)

var exportCmd = &cobra.Command{
	Use:   "export <sample|prep> <id>",
	Short: "Export a template to tab-delimited files",
	Long: `Write a template snapshot to disk and register it. For prep templates the
--qiime flag additionally derives the full QIIME mapping file and --mmf the
per-run-prefix minimal mapping files.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFromArg(args[0])
		if err != nil {
			return err
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		if (exportQIIME || exportMMF) && kind.Name != template.PrepKind.Name {
			return fmt.Errorf("--qiime and --mmf apply to prep templates only")
		}

		db, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		dir := exportDir
		if dir == "" {
			dir = cfg.TemplatesDir()
		}

		path, err := template.Snapshot(cmd.Context(), db, kind, id, dir)
		if err != nil {
			return err
		}
		fmt.Println(path)

		if exportQIIME {
			qiime, err := template.QIIMEMappingFile(cmd.Context(), db, id, dir)
			if err != nil {
				return err
			}
			fmt.Println(qiime)
		}
		if exportMMF {
			paths, err := template.MinimalMappingFiles(cmd.Context(), db, id, dir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default: <data_dir>/templates)")
	exportCmd.Flags().BoolVar(&exportQIIME, "qiime", false, "also write the QIIME mapping file (prep only)")
	exportCmd.Flags().BoolVar(&exportMMF, "mmf", false, "also write the minimal mapping files (prep only)")
}
