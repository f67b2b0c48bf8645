package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/omicsdb/metaprep/internal/data"
	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/internal/template"
	"github.com/omicsdb/metaprep/pkg/types"
)

// Node ids of the preprocessing graph.
const (
	NodePreprocess         = "PREPROCESS"
	NodeGenDemuxFile       = "GEN_DEMUX_FILE"
	NodeInsertPreprocessed = "INSERT_PREPROCESSED"
)

// Expected demultiplexer outputs.
const (
	outSeqsFasta = "seqs.fna"
	outSeqsFastq = "seqs.fastq"
	outSeqsDemux = "seqs.demux"
	outSplitLog  = "split_library_log.txt"
)

// Preprocessor drives the preprocessing pipeline for a prep template: it
// demultiplexes the raw sequence files against the template's barcodes and
// registers the products.
type Preprocessor struct {
	DB          *store.DB
	RunsDir     string // scratch space, one subdirectory per run, removed afterwards
	ProductsDir string // persistent home of registered outputs
	Params      string // extra demultiplexer arguments, appended to the command line
	Runner      CommandRunner
	Logger      *slog.Logger
}

// Run preprocesses the raw data behind the prep template. The filetype is
// checked before any state changes, so an unsupported filetype leaves the
// status untouched. Once the status flips to "preprocessing" every failure
// is routed into a "failed: ..." status plus a durable log row, and the
// error is also returned.
func (p *Preprocessor) Run(ctx context.Context, prepID int64) error {
	rawDataID, err := template.PrepRawData(ctx, p.DB, prepID)
	if err != nil {
		return err
	}
	rd, err := data.GetRawData(ctx, p.DB, rawDataID)
	if err != nil {
		return err
	}
	if rd.Filetype != "FASTA" && rd.Filetype != "FASTQ" {
		return &types.UnsupportedFiletypeError{Filetype: rd.Filetype}
	}
	exists, err := data.PreprocessedExists(ctx, p.DB, prepID)
	if err != nil {
		return err
	}
	if exists {
		return &types.StateConflictError{
			Op:     "preprocess",
			Reason: fmt.Sprintf("prep template %d already has preprocessed data", prepID),
		}
	}

	dataType, err := template.PrepDataType(ctx, p.DB, prepID)
	if err != nil {
		return err
	}

	if err := data.SetPreprocessingStatus(ctx, p.DB, rawDataID, types.StatusPreprocessing); err != nil {
		return err
	}

	runDir := filepath.Join(p.RunsDir, uuid.NewString())
	mmfDir := filepath.Join(runDir, "mapping")
	outDir := filepath.Join(runDir, "out")
	for _, dir := range []string{mmfDir, outDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			failErr := fmt.Errorf("create run dir: %w", err)
			p.fail(ctx, rawDataID, prepID, "setup", failErr)
			return failErr
		}
	}

	g, err := p.buildGraph(ctx, prepID, rawDataID, rd.Filetype, dataType, mmfDir, outDir)
	if err != nil {
		p.fail(ctx, rawDataID, prepID, "setup", err)
		return err
	}

	exec := &Executor{
		Runner: p.Runner,
		Logger: p.logger(),
		OnFailure: func(ctx context.Context, nodeID string, err error) {
			p.fail(ctx, rawDataID, prepID, nodeID, err)
		},
		CleanupDirs: []string{runDir},
	}
	return exec.Run(ctx, g, runDir)
}

// fail records a pipeline failure both on the raw data status and as a
// durable log row.
func (p *Preprocessor) fail(ctx context.Context, rawDataID, prepID int64, nodeID string, cause error) {
	if err := data.SetPreprocessingStatus(ctx, p.DB, rawDataID, types.FailedStatus(cause.Error())); err != nil {
		p.logger().Error("recording failed status", "raw_data", rawDataID, "error", err)
	}
	if _, err := p.DB.AddLogEntry(ctx, store.SeverityError, "preprocessing failed", map[string]any{
		"raw_data":      rawDataID,
		"prep_template": prepID,
		"node":          nodeID,
		"cause":         cause.Error(),
	}); err != nil {
		p.logger().Error("recording failure log entry", "raw_data", rawDataID, "error", err)
	}
}

// buildGraph assembles PREPROCESS -> GEN_DEMUX_FILE -> INSERT_PREPROCESSED,
// dropping the demux node for FASTA input, which yields no per-base
// qualities to pack.
func (p *Preprocessor) buildGraph(ctx context.Context, prepID, rawDataID int64, filetype, dataType, mmfDir, outDir string) (*Graph, error) {
	mappingFiles, err := template.MinimalMappingFiles(ctx, p.DB, prepID, mmfDir)
	if err != nil {
		return nil, err
	}
	files, err := data.RawFilepaths(ctx, p.DB, rawDataID)
	if err != nil {
		return nil, err
	}

	var argv []string
	switch filetype {
	case "FASTQ":
		argv, err = fastqCommand(files, mappingFiles, outDir, p.Params)
	case "FASTA":
		argv, err = fastaCommand(files, mappingFiles, outDir, p.Params)
	}
	if err != nil {
		return nil, err
	}

	g := NewGraph()
	if err := g.AddNode(Node{ID: NodePreprocess, Command: argv}); err != nil {
		return nil, err
	}
	insertAfter := NodePreprocess
	if filetype == "FASTQ" {
		demuxNode := Node{
			ID:           NodeGenDemuxFile,
			RequiresDeps: true,
			Step: func(context.Context) error {
				return GenerateDemux(filepath.Join(outDir, outSeqsFastq), filepath.Join(outDir, outSeqsDemux))
			},
		}
		if err := g.AddNode(demuxNode); err != nil {
			return nil, err
		}
		if err := g.AddEdge(NodePreprocess, NodeGenDemuxFile); err != nil {
			return nil, err
		}
		insertAfter = NodeGenDemuxFile
	}
	insertNode := Node{
		ID:           NodeInsertPreprocessed,
		RequiresDeps: true,
		Step: func(ctx context.Context) error {
			return p.insertPreprocessed(ctx, prepID, rawDataID, filetype, dataType, outDir)
		},
	}
	if err := g.AddNode(insertNode); err != nil {
		return nil, err
	}
	if err := g.AddEdge(insertAfter, NodeInsertPreprocessed); err != nil {
		return nil, err
	}
	return g, nil
}

// pathsOfType collects the registered paths with the given type label,
// sorted.
func pathsOfType(files []data.Filepath, fpType string) []string {
	var out []string
	for _, f := range files {
		if f.Type == fpType {
			out = append(out, f.Path)
		}
	}
	sort.Strings(out)
	return out
}

// fastqCommand builds the split_libraries_fastq.py argv over the raw FASTQ
// and barcode files. File lists are sorted so forward reads and barcodes
// pair up by run. --store_demultiplexed_fastq makes the tool keep the
// seqs.fastq the demux step consumes; params carries caller-supplied extra
// arguments.
func fastqCommand(files []data.Filepath, mappingFiles []string, outDir, params string) ([]string, error) {
	seqs := pathsOfType(files, data.FpRawForwardSeqs)
	barcodes := pathsOfType(files, data.FpRawBarcodes)
	if len(seqs) == 0 {
		return nil, fmt.Errorf("no forward sequence files registered")
	}
	if len(barcodes) != len(seqs) {
		return nil, fmt.Errorf("%d barcode files for %d sequence files", len(barcodes), len(seqs))
	}
	argv := []string{
		"split_libraries_fastq.py",
		"-i", strings.Join(seqs, ","),
		"-b", strings.Join(barcodes, ","),
		"-m", strings.Join(mappingFiles, ","),
		"-o", outDir,
		"--store_demultiplexed_fastq",
	}
	return append(argv, strings.Fields(params)...), nil
}

// fastaCommand builds the split_libraries.py argv over the raw FASTA and
// optional quality files. -d records the full demultiplexing detail in the
// split library log.
func fastaCommand(files []data.Filepath, mappingFiles []string, outDir, params string) ([]string, error) {
	seqs := pathsOfType(files, data.FpRawSequences)
	if len(seqs) == 0 {
		return nil, fmt.Errorf("no sequence files registered")
	}
	argv := []string{
		"split_libraries.py",
		"-f", strings.Join(seqs, ","),
		"-m", strings.Join(mappingFiles, ","),
		"-o", outDir,
		"-d",
	}
	if quals := pathsOfType(files, data.FpRawQual); len(quals) > 0 {
		argv = append(argv, "-q", strings.Join(quals, ","))
	}
	return append(argv, strings.Fields(params)...), nil
}

// insertPreprocessed moves the demultiplexer outputs into the products
// directory, registers them and flips the status to success. Every expected
// output of the filetype's flow must be present; the FASTA flow yields no
// per-base qualities, so seqs.fastq and seqs.demux are expected only for
// FASTQ input.
func (p *Preprocessor) insertPreprocessed(ctx context.Context, prepID, rawDataID int64, filetype, dataType, outDir string) error {
	type output struct {
		base   string
		fpType string
	}
	expected := []output{
		{outSeqsFasta, data.FpPreprocessedFasta},
		{outSplitLog, data.FpLog},
	}
	if filetype == "FASTQ" {
		expected = append(expected,
			output{outSeqsFastq, data.FpPreprocessedFastq},
			output{outSeqsDemux, data.FpPreprocessedDemux})
	}

	destDir := filepath.Join(p.ProductsDir, fmt.Sprintf("prep_%d_%s", prepID, uuid.NewString()))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create products dir: %w", err)
	}

	var products []data.RawDataFile
	for _, e := range expected {
		src := filepath.Join(outDir, e.base)
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("demultiplexer output %s missing: %w", e.base, err)
		}
		dest := filepath.Join(destDir, e.base)
		if err := moveFile(src, dest); err != nil {
			return err
		}
		products = append(products, data.RawDataFile{Path: dest, Type: e.fpType})
	}

	if _, err := data.CreatePreprocessed(ctx, p.DB, prepID, dataType, products); err != nil {
		return err
	}
	return data.SetPreprocessingStatus(ctx, p.DB, rawDataID, types.StatusSuccess)
}

// moveFile renames src to dest, copying across filesystems when rename
// fails.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("move %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	return os.Remove(src)
}

func (p *Preprocessor) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
