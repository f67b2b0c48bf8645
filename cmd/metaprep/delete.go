// Template deletion command for the metaprep CLI.
package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/template"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <sample|prep> <id>",
	Short: "Delete a template and its dynamic table",
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

		if err := template.Delete(cmd.Context(), db, kind, id); err != nil {
			return err
		}
		fmt.Printf("deleted %s template %d\n", kind.Name, id)
		return nil
	},
}

func kindFromArg(arg string) (template.Kind, error) {
	switch arg {
	case template.SampleKind.Name:
		return template.SampleKind, nil
	case template.PrepKind.Name:
		return template.PrepKind, nil
	}
	return template.Kind{}, fmt.Errorf("unknown template kind %q, choose sample or prep", arg)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid template id %q", arg)
	}
	return id, nil
}
