package template

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsdb/metaprep/internal/data"
	"github.com/omicsdb/metaprep/internal/store"
	"github.com/omicsdb/metaprep/pkg/types"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(types.Config{Driver: types.DriverSQLite, DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

// sampleMetadata builds a metadata table with every required sample column
// plus two study-specific ones.
func sampleMetadata(sampleIDs ...string) Metadata {
	md := Metadata{
		SampleIDs: sampleIDs,
		Columns: []string{
			"collection_timestamp", "physical_specimen_location",
			"physical_specimen_remaining", "dna_extracted", "sample_type",
			"description", "latitude", "longitude", "host_subject_id",
			"env_biome", "depth_cm",
		},
		Cells: map[string]map[string]string{},
	}
	for i, sid := range sampleIDs {
		md.Cells[sid] = map[string]string{
			"collection_timestamp":        "2024-05-01 10:30:00",
			"physical_specimen_location":  "freezer A",
			"physical_specimen_remaining": "true",
			"dna_extracted":               "false",
			"sample_type":                 "soil",
			"description":                 "plot sample",
			"latitude":                    "41.32",
			"longitude":                   "-71.55",
			"host_subject_id":             "NA",
			"env_biome":                   "grassland",
			"depth_cm":                    map[bool]string{true: "10", false: "25"}[i%2 == 0],
		}
	}
	return md
}

func prepMetadata(sampleIDs ...string) Metadata {
	md := Metadata{
		SampleIDs: sampleIDs,
		Columns: []string{
			"BARCODE", "primer", "run_prefix", "library_construction_protocol",
			"experiment_design_description", "platform", "center_name", "emp_status",
		},
		Cells: map[string]map[string]string{},
	}
	for i, sid := range sampleIDs {
		md.Cells[sid] = map[string]string{
			"BARCODE":                       []string{"AACCTT", "GGTTAA", "CCAAGG"}[i%3],
			"primer":                        "GTGCCAGCMGCCGCGGTAA",
			"run_prefix":                    "s_G1_L001_sequences",
			"library_construction_protocol": "EMP 16S",
			"experiment_design_description": "time series",
			"platform":                      "Illumina",
			"center_name":                   "CGS",
			"emp_status":                    "EMP",
		}
	}
	return md
}

// seedStudyWithSamples creates a study and loads its sample template.
func seedStudyWithSamples(t *testing.T, db *store.DB, sampleIDs ...string) int64 {
	t.Helper()
	ctx := context.Background()
	s, err := data.CreateStudy(ctx, db, "test study", "", "")
	require.NoError(t, err)
	require.NoError(t, CreateSampleTemplate(ctx, db, s.ID, sampleMetadata(sampleIDs...)))
	return s.ID
}

func seedRawData(t *testing.T, db *store.DB, studyID int64) int64 {
	t.Helper()
	rd, err := data.CreateRawData(context.Background(), db, "FASTQ", []int64{studyID}, nil)
	require.NoError(t, err)
	return rd.ID
}

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   types.ColumnType
	}{
		{"booleans", []string{"true", "FALSE", "True"}, types.ColumnBool},
		{"ones and zeros are integers", []string{"1", "0", "1"}, types.ColumnInteger},
		{"integers", []string{"10", "-3", "0"}, types.ColumnInteger},
		{"floats", []string{"1.5", "2", "-0.25"}, types.ColumnFloat},
		{"timestamps", []string{"2024-05-01 10:30:00", "2024-05-02"}, types.ColumnTimestamp},
		{"mixed falls to varchar", []string{"1", "abc"}, types.ColumnVarchar},
		{"empty cells ignored", []string{"", "3", ""}, types.ColumnInteger},
		{"all empty is varchar", []string{"", ""}, types.ColumnVarchar},
		{"bool beats varchar only when all parse", []string{"true", "yes"}, types.ColumnVarchar},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumnType(tt.values))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("lowercases headers and prefixes sample ids", func(t *testing.T) {
		md := Metadata{
			SampleIDs: []string{"S1", "7.S2"},
			Columns:   []string{"Env_Biome", "DEPTH"},
			Cells: map[string]map[string]string{
				"S1":   {"Env_Biome": "soil", "DEPTH": "10"},
				"7.S2": {"Env_Biome": "sand", "DEPTH": "20"},
			},
		}
		got, err := Normalize(7, md)
		require.NoError(t, err)
		assert.Equal(t, []string{"env_biome", "depth"}, got.Columns)
		assert.Equal(t, []string{"7.S1", "7.S2"}, got.SampleIDs)
		assert.Equal(t, "soil", got.Cells["7.S1"]["env_biome"])
		assert.Equal(t, "20", got.Cells["7.S2"]["depth"])
	})

	t.Run("headers colliding after lowercasing", func(t *testing.T) {
		md := Metadata{
			SampleIDs: []string{"S1"},
			Columns:   []string{"Depth", "depth"},
			Cells:     map[string]map[string]string{"S1": {"Depth": "1", "depth": "2"}},
		}
		_, err := Normalize(1, md)
		var dup *types.DuplicateHeaderError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, []string{"depth"}, dup.Headers)
	})

	t.Run("invalid sample id characters", func(t *testing.T) {
		md := Metadata{
			SampleIDs: []string{"ok.1", "bad_id", "bad id"},
			Columns:   []string{"a"},
			Cells: map[string]map[string]string{
				"ok.1": {"a": ""}, "bad_id": {"a": ""}, "bad id": {"a": ""},
			},
		}
		_, err := Normalize(1, md)
		var invalid *types.InvalidSampleIDError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, []string{"bad id", "bad_id"}, invalid.SampleIDs)
	})
}

func TestCreateSampleTemplate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	studyID := seedStudyWithSamples(t, db, "S1", "S2")

	exists, err := Exists(ctx, db, SampleKind, studyID)
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := SampleIDs(ctx, db, SampleKind, studyID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.S1", "1.S2"}, ids)

	cols, err := Columns(ctx, db, SampleKind, studyID)
	require.NoError(t, err)
	require.Len(t, cols, 2, "only study-specific columns hit the registry")
	assert.Equal(t, "depth_cm", cols[0].Name)
	assert.Equal(t, types.ColumnInteger, cols[0].Type)
	assert.Equal(t, "env_biome", cols[1].Name)
	assert.Equal(t, types.ColumnVarchar, cols[1].Type)

	md, err := Load(ctx, db, SampleKind, studyID)
	require.NoError(t, err)
	assert.Equal(t, "grassland", md.Cells["1.S1"]["env_biome"])
	assert.Equal(t, "freezer A", md.Cells["1.S2"]["physical_specimen_location"])
}

func TestCreateSampleTemplate_Failures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t.Run("unknown study", func(t *testing.T) {
		err := CreateSampleTemplate(ctx, db, 999, sampleMetadata("S1"))
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("missing required columns", func(t *testing.T) {
		s, err := data.CreateStudy(ctx, db, "incomplete", "", "")
		require.NoError(t, err)

		md := sampleMetadata("S1")
		md.Columns = md.Columns[:len(md.Columns)-4] // drops longitude, host_subject_id, env_biome, depth_cm
		err = CreateSampleTemplate(ctx, db, s.ID, md)
		var missing *types.MissingColumnsError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{"host_subject_id", "longitude"}, missing.Columns)

		exists, err := Exists(ctx, db, SampleKind, s.ID)
		require.NoError(t, err)
		assert.False(t, exists, "failed load must leave nothing behind")
	})

	t.Run("second load rejected", func(t *testing.T) {
		studyID := seedStudyWithSamples(t, db, "S1")
		err := CreateSampleTemplate(ctx, db, studyID, sampleMetadata("S9"))
		var conflict *types.StateConflictError
		assert.ErrorAs(t, err, &conflict)
	})
}

func TestCreatePrepTemplate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	studyID := seedStudyWithSamples(t, db, "S1", "S2")
	rawDataID := seedRawData(t, db, studyID)

	prepID, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "Metagenomics",
		prepMetadata("S1", "S2"))
	require.NoError(t, err)

	exists, err := Exists(ctx, db, PrepKind, prepID)
	require.NoError(t, err)
	assert.True(t, exists)

	md, err := Load(ctx, db, PrepKind, prepID)
	require.NoError(t, err)
	assert.Contains(t, md.Columns, "barcodesequence", "barcode alias canonicalized")
	assert.Contains(t, md.Columns, "linkerprimersequence", "primer alias canonicalized")
	assert.Equal(t, "AACCTT", md.Cells[prefixed(studyID, "S1")]["barcodesequence"])
	assert.Equal(t, "CGS", md.Cells[prefixed(studyID, "S1")]["center_name"])

	it, err := InvestigationType(ctx, db, prepID)
	require.NoError(t, err)
	assert.Equal(t, "Metagenomics", it)

	dt, err := PrepDataType(ctx, db, prepID)
	require.NoError(t, err)
	assert.Equal(t, "16S", dt)

	gotStudy, err := PrepStudy(ctx, db, prepID)
	require.NoError(t, err)
	assert.Equal(t, studyID, gotStudy)
}

func prefixed(studyID int64, sid string) string {
	return fmt.Sprintf("%d.%s", studyID, sid)
}

func TestCreatePrepTemplate_Failures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	studyID := seedStudyWithSamples(t, db, "S1")
	rawDataID := seedRawData(t, db, studyID)

	t.Run("invalid investigation type", func(t *testing.T) {
		_, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "Cooking", prepMetadata("S1"))
		var invalid *types.InvalidInvestigationTypeError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("missing target gene columns", func(t *testing.T) {
		md := prepMetadata("S1")
		md.Columns = md.Columns[:2] // barcode and primer only
		_, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "", md)
		var missing *types.MissingColumnsError
		require.ErrorAs(t, err, &missing)
		assert.Contains(t, missing.Columns, "run_prefix")
		assert.Contains(t, missing.Columns, "platform")
	})

	t.Run("orphan samples replace the constraint error", func(t *testing.T) {
		_, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "",
			prepMetadata("S1", "GHOST"))
		var orphans *types.OrphanSamplesError
		require.ErrorAs(t, err, &orphans)
		assert.Equal(t, []string{"1.GHOST"}, orphans.SampleIDs)

		rows, err2 := db.FetchAll(ctx, `SELECT prep_template_id FROM prep_template`)
		require.NoError(t, err2)
		assert.Empty(t, rows, "failed load must remove the pre-minted root row")

		logs, err2 := db.FetchAll(ctx, `SELECT msg FROM logging`)
		require.NoError(t, err2)
		require.Len(t, logs, 1, "failed load leaves a durable log row")
	})

	t.Run("non target gene skips amplicon columns", func(t *testing.T) {
		md := Metadata{
			SampleIDs: []string{"S1"},
			Columns:   []string{"center_name", "extraction_kit"},
			Cells: map[string]map[string]string{
				"S1": {"center_name": "CGS", "extraction_kit": "MoBio"},
			},
		}
		prepID, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "Metagenomic", "", md)
		require.NoError(t, err)
		assert.Greater(t, prepID, int64(0))
	})
}

func TestDeleteTemplate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	studyID := seedStudyWithSamples(t, db, "S1")
	rawDataID := seedRawData(t, db, studyID)

	prepID, err := CreatePrepTemplate(ctx, db, rawDataID, studyID, "16S", "", prepMetadata("S1"))
	require.NoError(t, err)

	t.Run("prep with preprocessed data is protected", func(t *testing.T) {
		_, err := data.CreatePreprocessed(ctx, db, prepID, "16S", nil)
		require.NoError(t, err)

		err = Delete(ctx, db, PrepKind, prepID)
		var conflict *types.StateConflictError
		require.ErrorAs(t, err, &conflict)

		require.NoError(t, db.Execute(ctx,
			`DELETE FROM prep_template_preprocessed_data WHERE prep_template_id = ?`, prepID))
	})

	t.Run("delete prep then sample", func(t *testing.T) {
		require.NoError(t, Delete(ctx, db, PrepKind, prepID))
		exists, err := Exists(ctx, db, PrepKind, prepID)
		require.NoError(t, err)
		assert.False(t, exists)

		var unknown *types.UnknownTemplateError
		err = Delete(ctx, db, PrepKind, prepID)
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, "prep", unknown.Kind)

		require.NoError(t, Delete(ctx, db, SampleKind, studyID))
		err = Delete(ctx, db, SampleKind, studyID)
		assert.ErrorAs(t, err, &unknown)
	})
}
