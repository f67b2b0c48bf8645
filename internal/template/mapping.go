package template

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

// QIIME mapping file fixed headers.
const (
	mappingIndexLabel   = "#SampleID"
	mappingBarcodeCol   = "BarcodeSequence"
	mappingPrimerCol    = "LinkerPrimerSequence"
	mappingDescCol      = "Description"
	mappingMissingValue = "unknown"
	mmfDescription      = "metaprep MMF"
)

// qiimeRenames maps canonical metadata headers onto the QIIME mapping file
// spellings.
var qiimeRenames = map[string]string{
	"barcodesequence":      mappingBarcodeCol,
	"linkerprimersequence": mappingPrimerCol,
	"description":          mappingDescCol,
}

// mergeForMapping overlays prep metadata on sample metadata for the prep's
// samples. Prep values win on header collisions. Prep samples missing from
// the sample template make the merge fail with NotASubsetError.
func mergeForMapping(prep, sample Metadata) (Metadata, error) {
	var missing []string
	for _, sid := range prep.SampleIDs {
		if _, ok := sample.Cells[sid]; !ok {
			missing = append(missing, sid)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Metadata{}, &types.NotASubsetError{SampleIDs: missing}
	}

	colSet := map[string]bool{}
	for _, c := range sample.Columns {
		colSet[c] = true
	}
	for _, c := range prep.Columns {
		colSet[c] = true
	}
	merged := Metadata{Cells: make(map[string]map[string]string, len(prep.SampleIDs))}
	for c := range colSet {
		merged.Columns = append(merged.Columns, c)
	}
	sort.Strings(merged.Columns)

	merged.SampleIDs = append([]string{}, prep.SampleIDs...)
	for _, sid := range prep.SampleIDs {
		cells := make(map[string]string, len(merged.Columns))
		for c, v := range sample.Cells[sid] {
			cells[c] = v
		}
		for c, v := range prep.Cells[sid] {
			if v != "" || cells[c] == "" {
				cells[c] = v
			}
		}
		merged.Cells[sid] = cells
	}
	return merged, nil
}

// mappingColumns orders the renamed headers the way QIIME expects:
// BarcodeSequence and LinkerPrimerSequence first, Description last, the rest
// sorted in between.
func mappingColumns(cols []string) []string {
	var rest []string
	for _, c := range cols {
		switch c {
		case mappingBarcodeCol, mappingPrimerCol, mappingDescCol:
		default:
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	out := []string{mappingBarcodeCol, mappingPrimerCol}
	out = append(out, rest...)
	return append(out, mappingDescCol)
}

// writeMapping renders a mapping table with the #SampleID index, filling
// absent cells with "unknown".
func writeMapping(w io.Writer, md Metadata, cols []string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(mappingIndexLabel + "\t" + strings.Join(cols, "\t") + "\n"); err != nil {
		return err
	}
	for _, sid := range md.SampleIDs {
		fields := make([]string, 0, len(cols)+1)
		fields = append(fields, sid)
		for _, c := range cols {
			v := md.Cells[sid][c]
			if v == "" {
				v = mappingMissingValue
			}
			fields = append(fields, v)
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// QIIMEMappingFile derives the full QIIME mapping file for a prep template
// by overlaying it on the study's sample template, writes it under dir and
// registers it against the prep template.
func QIIMEMappingFile(ctx context.Context, db *store.DB, prepID int64, dir string) (string, error) {
	studyID, err := PrepStudy(ctx, db, prepID)
	if err != nil {
		return "", err
	}
	prep, err := Load(ctx, db, PrepKind, prepID)
	if err != nil {
		return "", err
	}
	sample, err := Load(ctx, db, SampleKind, studyID)
	if err != nil {
		return "", err
	}

	merged, err := mergeForMapping(prep, sample)
	if err != nil {
		return "", err
	}
	renamed := applyRenames(merged, qiimeRenames)
	cols := mappingColumns(renamed.Columns)

	path := filepath.Join(dir, fmt.Sprintf("%d_prep_%d_qiime_%s.txt",
		studyID, prepID, time.Now().Format("20060102-150405")))
	if err := writeFileAtomic(path, func(w io.Writer) error {
		return writeMapping(w, renamed, cols)
	}); err != nil {
		return "", fmt.Errorf("write qiime mapping file: %w", err)
	}
	if _, err := AddFilepath(ctx, db, PrepKind, prepID, path); err != nil {
		return "", err
	}
	return path, nil
}

// MinimalMappingFiles writes the per-run-prefix minimal mapping files demux
// needs: BarcodeSequence and LinkerPrimerSequence from the prep template and
// a fixed Description. Each run_prefix group lands in <prefix>_MMF.txt; a
// prep without run_prefix produces a single prep_<id>_MMF.txt. The returned
// paths are sorted.
func MinimalMappingFiles(ctx context.Context, db *store.DB, prepID int64, dir string) ([]string, error) {
	md, err := Load(ctx, db, PrepKind, prepID)
	if err != nil {
		return nil, err
	}

	hasRunPrefix := false
	for _, c := range md.Columns {
		if c == "run_prefix" {
			hasRunPrefix = true
			break
		}
	}

	groups := map[string][]string{}
	for _, sid := range md.SampleIDs {
		base := fmt.Sprintf("prep_%d_MMF.txt", prepID)
		if hasRunPrefix {
			base = md.Cells[sid]["run_prefix"] + "_MMF.txt"
		}
		groups[base] = append(groups[base], sid)
	}

	cols := []string{mappingBarcodeCol, mappingPrimerCol, mappingDescCol}
	var paths []string
	for base, sids := range groups {
		group := Metadata{
			SampleIDs: sids,
			Columns:   cols,
			Cells:     make(map[string]map[string]string, len(sids)),
		}
		for _, sid := range sids {
			group.Cells[sid] = map[string]string{
				mappingBarcodeCol: md.Cells[sid]["barcodesequence"],
				mappingPrimerCol:  md.Cells[sid]["linkerprimersequence"],
				mappingDescCol:    mmfDescription,
			}
		}
		path := filepath.Join(dir, base)
		if err := writeFileAtomic(path, func(w io.Writer) error {
			return writeMapping(w, group, cols)
		}); err != nil {
			return nil, fmt.Errorf("write minimal mapping file: %w", err)
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}
