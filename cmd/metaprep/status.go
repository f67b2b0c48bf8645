// Status command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/data"
	"github.com/omicsdb/metaprep/internal/template"
)

var statusCmd = &cobra.Command{
	Use:   "status <prep-id>",
	Short: "Show a prep template's preprocessing and visibility status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prepID, err := parseID(args[0])
		if err != nil {
			return err
		}

		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		rawDataID, err := template.PrepRawData(cmd.Context(), db, prepID)
		if err != nil {
			return err
		}
		preprocessing, err := data.PreprocessingStatus(cmd.Context(), db, rawDataID)
		if err != nil {
			return err
		}
		visibility, err := data.PrepStatus(cmd.Context(), db, prepID)
		if err != nil {
			return err
		}

		fmt.Printf("preprocessing: %s\n", preprocessing)
		fmt.Printf("visibility:    %s\n", visibility)
		return nil
	},
}
