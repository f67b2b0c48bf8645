// Investigation type command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/ontology"
	"github.com/omicsdb/metaprep/internal/template"
)

var investigationTypeValue string

var investigationTypeCmd = &cobra.Command{
	Use:   "investigation-type <prep-id>",
	Short: "Show or set a prep template's ENA investigation type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if investigationTypeValue == "" {
			it, err := template.InvestigationType(cmd.Context(), db, id)
			if err != nil {
				return err
			}
			if it == "" {
				terms, err := ontology.Terms(cmd.Context(), db, ontology.ENA)
				if err != nil {
					return err
				}
				fmt.Printf("prep template %d has no investigation type; valid values:\n", id)
				for _, t := range terms {
					fmt.Println("  " + t)
				}
				return nil
			}
			fmt.Println(it)
			return nil
		}

		if err := template.SetInvestigationType(cmd.Context(), db, id, investigationTypeValue); err != nil {
			return err
		}
		fmt.Printf("prep template %d investigation type set to %q\n", id, investigationTypeValue)
		return nil
	},
}

func init() {
	investigationTypeCmd.Flags().StringVar(&investigationTypeValue, "set", "", "new investigation type")
}
