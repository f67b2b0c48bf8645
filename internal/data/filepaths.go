// Package data manages the concrete study artifacts around the template
// engine: studies, raw sequence data, registered filepaths and preprocessed
// products.
package data

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/omicsdb/metaprep/internal/store"
)

// Filepath type labels recognized by the registry.
const (
	FpRawForwardSeqs    = "raw_forward_seqs"
	FpRawReverseSeqs    = "raw_reverse_seqs"
	FpRawBarcodes       = "raw_barcodes"
	FpRawSequences      = "raw_sequences"
	FpRawQual           = "raw_qual"
	FpPreprocessedFasta = "preprocessed_fasta"
	FpPreprocessedFastq = "preprocessed_fastq"
	FpPreprocessedDemux = "preprocessed_demux"
	FpLog               = "log"
	FpSampleTemplate    = "sample_template"
	FpPrepTemplate      = "prep_template"
)

// Filepath is a registered file with its type label and CRC32 checksum.
type Filepath struct {
	ID       int64
	Path     string
	Type     string
	Checksum string
}

// ComputeChecksum returns the CRC32 (IEEE) checksum of the file at path,
// rendered as a decimal string.
func ComputeChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for checksum: %w", err)
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return fmt.Sprintf("%d", h.Sum32()), nil
}

// RegisterFilepath checksums the file and inserts it into the filepath
// registry under the given type label, returning the new filepath id.
func RegisterFilepath(ctx context.Context, db *store.DB, path, fpType string) (int64, error) {
	sum, err := ComputeChecksum(path)
	if err != nil {
		return 0, err
	}
	id, err := db.InsertReturningID(ctx,
		`INSERT INTO filepath (filepath, filepath_type_id, checksum)
		 SELECT ?, filepath_type_id, ? FROM filepath_type WHERE filepath_type = ?
		 RETURNING filepath_id`,
		path, sum, fpType)
	if err != nil {
		return 0, fmt.Errorf("register filepath %s: %w", path, err)
	}
	return id, nil
}

// fetchFilepaths loads filepath rows through a link table, newest
// registration first.
func fetchFilepaths(ctx context.Context, db *store.DB, linkTable, linkColumn string, id int64) ([]Filepath, error) {
	if err := store.CheckIdentifier(linkTable); err != nil {
		return nil, err
	}
	if err := store.CheckIdentifier(linkColumn); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(
		`SELECT f.filepath_id, f.filepath, ft.filepath_type, f.checksum
		 FROM filepath f
		 JOIN filepath_type ft ON ft.filepath_type_id = f.filepath_type_id
		 JOIN %s l ON l.filepath_id = f.filepath_id
		 WHERE l.%s = ?
		 ORDER BY f.filepath_id DESC`, linkTable, linkColumn)
	rows, err := db.FetchAll(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("filepaths of %s %d: %w", linkColumn, id, err)
	}
	out := make([]Filepath, 0, len(rows))
	for _, r := range rows {
		out = append(out, Filepath{
			ID:       store.AsInt64(r["filepath_id"]),
			Path:     store.AsString(r["filepath"]),
			Type:     store.AsString(r["filepath_type"]),
			Checksum: store.AsString(r["checksum"]),
		})
	}
	return out, nil
}
