// Raw data registration command for the metaprep CLI.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/data"
)

var (
	loadRawFiletype string
	loadRawStudy    int64
	loadRawSeqs     []string
	loadRawBarcodes []string
	loadRawQuals    []string
)

var loadRawCmd = &cobra.Command{
	Use:   "load-raw",
	Short: "Register raw sequence files for a study",
	Long: `Register raw sequence files under a study. FASTQ raw data takes forward
sequence files plus matching barcode files; FASTA takes sequence files and
optional quality files. Every file is checksummed on registration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		var files []data.RawDataFile
		seqType := data.FpRawSequences
		if strings.EqualFold(loadRawFiletype, "FASTQ") {
			seqType = data.FpRawForwardSeqs
		}
		for _, p := range loadRawSeqs {
			files = append(files, data.RawDataFile{Path: p, Type: seqType})
		}
		for _, p := range loadRawBarcodes {
			files = append(files, data.RawDataFile{Path: p, Type: data.FpRawBarcodes})
		}
		for _, p := range loadRawQuals {
			files = append(files, data.RawDataFile{Path: p, Type: data.FpRawQual})
		}

		rd, err := data.CreateRawData(cmd.Context(), db,
			strings.ToUpper(loadRawFiletype), []int64{loadRawStudy}, files)
		if err != nil {
			return err
		}
		fmt.Printf("registered raw data %d (%s, %d files)\n", rd.ID, rd.Filetype, len(files))
		return nil
	},
}

func init() {
	loadRawCmd.Flags().StringVar(&loadRawFiletype, "filetype", "", "raw data filetype: FASTA, FASTQ or SFF (required)")
	loadRawCmd.Flags().Int64Var(&loadRawStudy, "study", 0, "owning study id (required)")
	loadRawCmd.Flags().StringSliceVar(&loadRawSeqs, "seqs", nil, "sequence files")
	loadRawCmd.Flags().StringSliceVar(&loadRawBarcodes, "barcodes", nil, "barcode files (FASTQ)")
	loadRawCmd.Flags().StringSliceVar(&loadRawQuals, "quals", nil, "quality files (FASTA)")
	_ = loadRawCmd.MarkFlagRequired("filetype")
	_ = loadRawCmd.MarkFlagRequired("study")
}
