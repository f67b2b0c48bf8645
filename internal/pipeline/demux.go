package pipeline

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// seqs.demux layout: a 4-byte magic and a version byte, then one block per
// sample in sample-id order. Each block is the id (uint16 length prefix),
// the read count (uint32) and the reads, each a uint32 length prefix
// followed by sequence and quality bytes of that length.
const (
	demuxMagic   = "MPDX"
	demuxVersion = 1
)

// Read is one demultiplexed sequence with its quality string.
type Read struct {
	Seq  string
	Qual string
}

// GenerateDemux compacts a demultiplexed seqs.fastq into the binary demux
// file. FASTQ headers follow the "<sampleid>_<counter>" labeling of the
// demultiplexer, so the sample id is everything before the last underscore
// of the first header token.
func GenerateDemux(fastqPath, demuxPath string) error {
	f, err := os.Open(fastqPath)
	if err != nil {
		return fmt.Errorf("open demultiplexed fastq: %w", err)
	}
	defer f.Close()

	bySample := map[string][]Read{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	var header, seq string
	for sc.Scan() {
		text := sc.Text()
		switch line % 4 {
		case 0:
			if !strings.HasPrefix(text, "@") {
				return fmt.Errorf("line %d: malformed fastq header %q", line+1, text)
			}
			header = text
		case 1:
			seq = text
		case 3:
			qual := text
			if len(qual) != len(seq) {
				return fmt.Errorf("line %d: quality length %d does not match sequence length %d",
					line+1, len(qual), len(seq))
			}
			sid, err := demuxSampleID(header)
			if err != nil {
				return err
			}
			bySample[sid] = append(bySample[sid], Read{Seq: seq, Qual: qual})
		}
		line++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read fastq: %w", err)
	}
	if line%4 != 0 {
		return fmt.Errorf("truncated fastq: %d lines", line)
	}
	if len(bySample) == 0 {
		return fmt.Errorf("no reads in %s", fastqPath)
	}
	return writeDemux(demuxPath, bySample)
}

func demuxSampleID(header string) (string, error) {
	label := strings.TrimPrefix(header, "@")
	if i := strings.IndexByte(label, ' '); i >= 0 {
		label = label[:i]
	}
	i := strings.LastIndexByte(label, '_')
	if i <= 0 {
		return "", fmt.Errorf("fastq label %q lacks the <sampleid>_<counter> form", label)
	}
	return label[:i], nil
}

func writeDemux(path string, bySample map[string][]Read) error {
	samples := make([]string, 0, len(bySample))
	for sid := range bySample {
		samples = append(samples, sid)
	}
	sort.Strings(samples)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create demux file: %w", err)
	}
	w := bufio.NewWriter(f)

	writeErr := func() error {
		if _, err := w.WriteString(demuxMagic); err != nil {
			return err
		}
		if err := w.WriteByte(demuxVersion); err != nil {
			return err
		}
		for _, sid := range samples {
			reads := bySample[sid]
			if err := binary.Write(w, binary.BigEndian, uint16(len(sid))); err != nil {
				return err
			}
			if _, err := w.WriteString(sid); err != nil {
				return err
			}
			if err := binary.Write(w, binary.BigEndian, uint32(len(reads))); err != nil {
				return err
			}
			for _, r := range reads {
				if err := binary.Write(w, binary.BigEndian, uint32(len(r.Seq))); err != nil {
					return err
				}
				if _, err := w.WriteString(r.Seq); err != nil {
					return err
				}
				if _, err := w.WriteString(r.Qual); err != nil {
					return err
				}
			}
		}
		return w.Flush()
	}()
	if writeErr != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write demux file: %w", writeErr)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close demux file: %w", err)
	}
	return nil
}

// ReadDemux loads a demux file back into per-sample reads.
func ReadDemux(path string) (map[string][]Read, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open demux file: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	magic := make([]byte, len(demuxMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read demux magic: %w", err)
	}
	if string(magic) != demuxMagic {
		return nil, fmt.Errorf("not a demux file (magic %q)", magic)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read demux version: %w", err)
	}
	if version != demuxVersion {
		return nil, fmt.Errorf("unsupported demux version %d", version)
	}

	out := map[string][]Read{}
	for {
		var idLen uint16
		if err := binary.Read(r, binary.BigEndian, &idLen); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read sample block: %w", err)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("read sample id: %w", err)
		}
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, fmt.Errorf("read read count: %w", err)
		}
		reads := make([]Read, 0, count)
		for i := uint32(0); i < count; i++ {
			var n uint32
			if err := binary.Read(r, binary.BigEndian, &n); err != nil {
				return nil, fmt.Errorf("read length prefix: %w", err)
			}
			buf := make([]byte, 2*n)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("read sequence block: %w", err)
			}
			reads = append(reads, Read{Seq: string(buf[:n]), Qual: string(buf[n:])})
		}
		out[string(id)] = reads
	}
	return out, nil
}
