package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestComputeChecksum(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "seqs.fna", ">seq1\nACGT\n")

	sum1, err := ComputeChecksum(path)
	require.NoError(t, err)
	assert.NotEmpty(t, sum1)

	sum2, err := ComputeChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2, "checksum must be deterministic")

	other := writeFile(t, dir, "other.fna", ">seq1\nTGCA\n")
	sum3, err := ComputeChecksum(other)
	require.NoError(t, err)
	assert.NotEqual(t, sum1, sum3)

	_, err = ComputeChecksum(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCreateStudyAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s, err := CreateStudy(ctx, db, "soil survey", "soil", "topsoil samples")
	require.NoError(t, err)
	assert.Greater(t, s.ID, int64(0))

	got, err := GetStudy(ctx, db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	_, err = GetStudy(ctx, db, 999)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCreateRawData(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()

	s, err := CreateStudy(ctx, db, "gut survey", "", "")
	require.NoError(t, err)

	fwd := writeFile(t, dir, "reads.fastq", "@r1\nACGT\n+\nIIII\n")
	bc := writeFile(t, dir, "barcodes.fastq", "@r1\nAAC\n+\nIII\n")

	rd, err := CreateRawData(ctx, db, "FASTQ", []int64{s.ID}, []RawDataFile{
		{Path: fwd, Type: FpRawForwardSeqs},
		{Path: bc, Type: FpRawBarcodes},
	})
	require.NoError(t, err)

	got, err := GetRawData(ctx, db, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, "FASTQ", got.Filetype)

	ids, err := StudyRawData(ctx, db, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{rd.ID}, ids)

	fps, err := RawFilepaths(ctx, db, rd.ID)
	require.NoError(t, err)
	require.Len(t, fps, 2)
	assert.Equal(t, FpRawBarcodes, fps[0].Type, "newest registration first")
	assert.Equal(t, bc, fps[0].Path)
	assert.Equal(t, FpRawForwardSeqs, fps[1].Type)
	assert.Equal(t, fwd, fps[1].Path)
	assert.NotEmpty(t, fps[1].Checksum)
}

func TestCreateRawData_UnknownFiletype(t *testing.T) {
	db := newTestDB(t)

	_, err := CreateRawData(context.Background(), db, "BAM", nil, nil)
	var unsupported *types.UnsupportedFiletypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "BAM", unsupported.Filetype)
}

func TestPreprocessingStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rd, err := CreateRawData(ctx, db, "FASTA", nil, nil)
	require.NoError(t, err)

	status, err := PreprocessingStatus(ctx, db, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotPreprocessed, status)

	require.NoError(t, SetPreprocessingStatus(ctx, db, rd.ID, types.StatusPreprocessing))
	require.NoError(t, SetPreprocessingStatus(ctx, db, rd.ID, types.FailedStatus("split_libraries.py exited 1")))

	status, err = PreprocessingStatus(ctx, db, rd.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed: split_libraries.py exited 1", status)

	err = SetPreprocessingStatus(ctx, db, rd.ID, "done")
	assert.Error(t, err, "unrecognized status must be rejected")
}

func seedPrepTemplate(t *testing.T, db *store.DB, ctx context.Context) (studyID, rawDataID, prepID int64) {
	t.Helper()
	s, err := CreateStudy(ctx, db, "study", "", "")
	require.NoError(t, err)
	rd, err := CreateRawData(ctx, db, "FASTQ", []int64{s.ID}, nil)
	require.NoError(t, err)
	prepID, err = db.InsertReturningID(ctx,
		`INSERT INTO prep_template (raw_data_id, data_type_id)
		 SELECT ?, data_type_id FROM data_type WHERE data_type = '16S'
		 RETURNING prep_template_id`, rd.ID)
	require.NoError(t, err)
	return s.ID, rd.ID, prepID
}

func TestPreprocessedLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dir := t.TempDir()
	_, _, prepID := seedPrepTemplate(t, db, ctx)

	exists, err := PreprocessedExists(ctx, db, prepID)
	require.NoError(t, err)
	assert.False(t, exists)

	fna := writeFile(t, dir, "seqs.fna", ">s1\nACGT\n")
	logf := writeFile(t, dir, "split_library_log.txt", "ok\n")

	pp, err := CreatePreprocessed(ctx, db, prepID, "16S", []RawDataFile{
		{Path: fna, Type: FpPreprocessedFasta},
		{Path: logf, Type: FpLog},
	})
	require.NoError(t, err)

	exists, err = PreprocessedExists(ctx, db, prepID)
	require.NoError(t, err)
	assert.True(t, exists)

	fps, err := PreprocessedFilepaths(ctx, db, pp.ID)
	require.NoError(t, err)
	require.Len(t, fps, 2)
	assert.Equal(t, FpLog, fps[0].Type, "newest registration first")
	assert.Equal(t, FpPreprocessedFasta, fps[1].Type)
}

func TestPrepStatus_Precedence(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, _, prepID := seedPrepTemplate(t, db, ctx)

	status, err := PrepStatus(ctx, db, prepID)
	require.NoError(t, err)
	assert.Equal(t, types.ProcessedSandbox, status, "no downstream data means sandbox")

	pp, err := CreatePreprocessed(ctx, db, prepID, "16S", nil)
	require.NoError(t, err)

	addProcessed := func(s string) {
		pdID, err := db.InsertReturningID(ctx,
			`INSERT INTO processed_data (processed_data_status) VALUES (?) RETURNING processed_data_id`, s)
		require.NoError(t, err)
		require.NoError(t, db.Execute(ctx,
			`INSERT INTO preprocessed_processed_data (preprocessed_data_id, processed_data_id) VALUES (?, ?)`,
			pp.ID, pdID))
	}

	addProcessed(types.ProcessedAwaiting)
	status, err = PrepStatus(ctx, db, prepID)
	require.NoError(t, err)
	assert.Equal(t, types.ProcessedAwaiting, status)

	addProcessed(types.ProcessedPrivate)
	status, err = PrepStatus(ctx, db, prepID)
	require.NoError(t, err)
	assert.Equal(t, types.ProcessedPrivate, status)

	addProcessed(types.ProcessedPublic)
	status, err = PrepStatus(ctx, db, prepID)
	require.NoError(t, err)
	assert.Equal(t, types.ProcessedPublic, status, "public wins over every other status")
}
