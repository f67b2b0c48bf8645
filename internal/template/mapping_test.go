package template

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsdb/metaprep/pkg/types"
)

func TestMappingColumns_Order(t *testing.T) {
	got := mappingColumns([]string{
		"run_prefix", "Description", "BarcodeSequence", "platform", "LinkerPrimerSequence", "env_biome",
	})
	assert.Equal(t, []string{
		"BarcodeSequence", "LinkerPrimerSequence", "env_biome", "platform", "run_prefix", "Description",
	}, got)
}

func TestQIIMEMappingFile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	studyID := seedStudyWithSamples(t, db, "S1", "S2")
	rawDataID := seedRawData(t, db, studyID)
	prepID, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "", prepMetadata("S1", "S2"))
	require.NoError(t, err)

	path, err := QIIMEMappingFile(ctx, db, prepID, dir)
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join(dir, "1_prep_1_qiime_"))

	fps, err := Filepaths(ctx, db, PrepKind, prepID)
	require.NoError(t, err)
	require.Len(t, fps, 1)
	assert.Equal(t, path, fps[0].Path, "the mapping file is registered against the prep template")

	md, err := ParseFile(path)
	require.NoError(t, err)

	assert.Equal(t, "BarcodeSequence", md.Columns[0])
	assert.Equal(t, "LinkerPrimerSequence", md.Columns[1])
	assert.Equal(t, "Description", md.Columns[len(md.Columns)-1])
	assert.Contains(t, md.Columns, "env_biome", "sample template columns merge in")
	assert.Contains(t, md.Columns, "run_prefix")

	assert.Equal(t, []string{"1.S1", "1.S2"}, md.SampleIDs)
	assert.Equal(t, "AACCTT", md.Cells["1.S1"]["BarcodeSequence"])
	assert.Equal(t, "GGTTAA", md.Cells["1.S2"]["BarcodeSequence"])
	assert.Equal(t, "plot sample", md.Cells["1.S1"]["Description"], "description comes from the sample template")
	assert.Equal(t, "grassland", md.Cells["1.S1"]["env_biome"])
}

func TestQIIMEMappingFile_FillsUnknown(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	studyID := seedStudyWithSamples(t, db, "S1")
	rawDataID := seedRawData(t, db, studyID)

	// center_project_name is never provided; it must render as "unknown".
	prepID, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "", prepMetadata("S1"))
	require.NoError(t, err)

	path, err := QIIMEMappingFile(ctx, db, prepID, dir)
	require.NoError(t, err)

	md, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "unknown", md.Cells["1.S1"]["center_project_name"])
}

func TestMergeForMapping_NotASubset(t *testing.T) {
	prep := Metadata{
		SampleIDs: []string{"1.S1", "1.S9"},
		Columns:   []string{"barcodesequence"},
		Cells: map[string]map[string]string{
			"1.S1": {"barcodesequence": "AACCTT"},
			"1.S9": {"barcodesequence": "GGTTAA"},
		},
	}
	sample := Metadata{
		SampleIDs: []string{"1.S1"},
		Columns:   []string{"description"},
		Cells:     map[string]map[string]string{"1.S1": {"description": "x"}},
	}

	_, err := mergeForMapping(prep, sample)
	var notSubset *types.NotASubsetError
	require.ErrorAs(t, err, &notSubset)
	assert.Equal(t, []string{"1.S9"}, notSubset.SampleIDs)
}

func TestMinimalMappingFiles_GroupedByRunPrefix(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	studyID := seedStudyWithSamples(t, db, "S1", "S2", "S3")
	rawDataID := seedRawData(t, db, studyID)

	md := prepMetadata("S1", "S2", "S3")
	md.Cells["S1"]["run_prefix"] = "s_G1_L001_sequences"
	md.Cells["S2"]["run_prefix"] = "s_G1_L001_sequences"
	md.Cells["S3"]["run_prefix"] = "s_G1_L002_sequences"
	prepID, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "", md)
	require.NoError(t, err)

	paths, err := MinimalMappingFiles(ctx, db, prepID, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "s_G1_L001_sequences_MMF.txt"), paths[0])
	assert.Equal(t, filepath.Join(dir, "s_G1_L002_sequences_MMF.txt"), paths[1])

	first, err := ParseFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"BarcodeSequence", "LinkerPrimerSequence", "Description"}, first.Columns)
	assert.Len(t, first.SampleIDs, 2)
	for _, sid := range first.SampleIDs {
		assert.True(t, strings.HasPrefix(sid, "1."))
		assert.Equal(t, "metaprep MMF", first.Cells[sid]["Description"])
		assert.NotEmpty(t, first.Cells[sid]["BarcodeSequence"])
	}

	second, err := ParseFile(paths[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"1.S3"}, second.SampleIDs)
}
