package template

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/omicsdb/metaprep/internal/store"
)

// WriteTo renders the metadata as a tab-delimited table. The index column is
// sample_name followed by the headers in sorted order; rows follow the
// SampleIDs order.
func WriteTo(w io.Writer, md Metadata) error {
	cols := append([]string{}, md.Columns...)
	sort.Strings(cols)

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("sample_name\t" + strings.Join(cols, "\t") + "\n"); err != nil {
		return err
	}
	for _, sid := range md.SampleIDs {
		fields := make([]string, 0, len(cols)+1)
		fields = append(fields, sid)
		for _, c := range cols {
			fields = append(fields, md.Cells[sid][c])
		}
		if _, err := bw.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Parse reads a tab-delimited metadata table back into Metadata. The first
// column is the sample id regardless of its header label.
func Parse(r io.Reader) (Metadata, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Metadata{}, fmt.Errorf("read header: %w", err)
		}
		return Metadata{}, fmt.Errorf("metadata file is empty")
	}
	header := strings.Split(strings.TrimRight(sc.Text(), "\r\n"), "\t")
	if len(header) < 2 {
		return Metadata{}, fmt.Errorf("metadata header needs the sample column plus at least one metadata column")
	}
	cols := header[1:]

	md := Metadata{Columns: cols, Cells: map[string]map[string]string{}}
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r\n")
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != len(header) {
			return Metadata{}, fmt.Errorf("line %d: got %d fields, want %d", line, len(fields), len(header))
		}
		sid := fields[0]
		md.SampleIDs = append(md.SampleIDs, sid)
		cells := make(map[string]string, len(cols))
		for i, c := range cols {
			cells[c] = fields[i+1]
		}
		md.Cells[sid] = cells
	}
	if err := sc.Err(); err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	return md, nil
}

// ParseFile reads a metadata table from disk.
func ParseFile(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// writeFileAtomic writes content through a temp file in the target directory
// and renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// snapshotBase builds the on-disk name of a snapshot.
func snapshotBase(k Kind, studyID, templateID int64, now time.Time) string {
	ts := now.Format("20060102-150405")
	if k.Name == PrepKind.Name {
		return fmt.Sprintf("%d_prep_%d_%s.txt", studyID, templateID, ts)
	}
	return fmt.Sprintf("%d_%s.txt", studyID, ts)
}

// Snapshot materializes the template to a tab-delimited file under dir and
// registers it in the filepath registry. It returns the written path.
func Snapshot(ctx context.Context, db *store.DB, k Kind, id int64, dir string) (string, error) {
	md, err := Load(ctx, db, k, id)
	if err != nil {
		return "", err
	}

	studyID := id
	if k.Name == PrepKind.Name {
		studyID, err = PrepStudy(ctx, db, id)
		if err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, snapshotBase(k, studyID, id, time.Now()))
	if err := writeFileAtomic(path, func(w io.Writer) error {
		return WriteTo(w, md)
	}); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	if _, err := AddFilepath(ctx, db, k, id, path); err != nil {
		return "", err
	}
	return path, nil
}
