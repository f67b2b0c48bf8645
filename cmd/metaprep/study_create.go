// Study creation command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/data"
)

var (
	studyTitle       string
	studyAlias       string
	studyDescription string
)

var studyCreateCmd = &cobra.Command{
	Use:   "study-create",
	Short: "Create a study",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := data.CreateStudy(cmd.Context(), db, studyTitle, studyAlias, studyDescription)
		if err != nil {
			return err
		}
		fmt.Printf("created study %d\n", s.ID)
		return nil
	},
}

func init() {
	studyCreateCmd.Flags().StringVar(&studyTitle, "title", "", "study title (required)")
	studyCreateCmd.Flags().StringVar(&studyAlias, "alias", "", "short study alias")
	studyCreateCmd.Flags().StringVar(&studyDescription, "description", "", "study description")
	_ = studyCreateCmd.MarkFlagRequired("title")
}
