package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demuxedFastq = `@1.S1_0 orig_bc=AACCTT new_bc=AACCTT bc_diffs=0
ACGTACGT
+
IIIIIIII
@1.S2_1 orig_bc=GGTTAA new_bc=GGTTAA bc_diffs=0
TTGGCCAA
+
HHHHHHHH
@1.S1_2 orig_bc=AACCTT new_bc=AACCTT bc_diffs=0
ACGT
+
IIII
`

func TestGenerateDemux_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	fastq := filepath.Join(dir, "seqs.fastq")
	demux := filepath.Join(dir, "seqs.demux")
	require.NoError(t, os.WriteFile(fastq, []byte(demuxedFastq), 0o644))

	require.NoError(t, GenerateDemux(fastq, demux))

	got, err := ReadDemux(demux)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Len(t, got["1.S1"], 2)
	assert.Equal(t, Read{Seq: "ACGTACGT", Qual: "IIIIIIII"}, got["1.S1"][0])
	assert.Equal(t, Read{Seq: "ACGT", Qual: "IIII"}, got["1.S1"][1])
	assert.Equal(t, []Read{{Seq: "TTGGCCAA", Qual: "HHHHHHHH"}}, got["1.S2"])
}

func TestGenerateDemux_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty fastq", ""},
		{"truncated record", "@1.S1_0\nACGT\n+\n"},
		{"quality length mismatch", "@1.S1_0\nACGT\n+\nIII\n"},
		{"header without counter", "@sample\nACGT\n+\nIIII\n"},
		{"missing at sign", "1.S1_0\nACGT\n+\nIIII\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fastq := filepath.Join(dir, "seqs.fastq")
			demux := filepath.Join(dir, "seqs.demux")
			require.NoError(t, os.WriteFile(fastq, []byte(tt.content), 0o644))

			assert.Error(t, GenerateDemux(fastq, demux))
			assert.NoFileExists(t, demux)
		})
	}
}

func TestReadDemux_RejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.demux")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a demux file"), 0o644))

	_, err := ReadDemux(path)
	assert.ErrorContains(t, err, "magic")
}
