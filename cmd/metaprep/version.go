// Version command for the metaprep CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/pkg/metaprep"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the metaprep version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("metaprep", metaprep.Version)
	},
}
