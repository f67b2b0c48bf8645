// Filepath listing command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/template"
)

var filepathsCmd = &cobra.Command{
	Use:   "filepaths <sample|prep> <id>",
	Short: "List the snapshots registered for a template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := kindFromArg(args[0])
		if err != nil {
			return err
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}

		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		fps, err := template.Filepaths(cmd.Context(), db, kind, id)
		if err != nil {
			return err
		}
		for _, fp := range fps {
			fmt.Printf("%d\t%s\t%s\t%s\n", fp.ID, fp.Type, fp.Checksum, fp.Path)
		}
		return nil
	},
}
