// Init command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the metadata store",
	Long:  `Create the data directory, apply the schema and seed the controlled vocabularies.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Printf("metaprep store initialized (%s, data dir %s)\n", db.Dialect(), cfg.DataDir)
		return nil
	},
}
