// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
)

// Record is one row of an alignment: a taxon identifier and its aligned
// sequence. Sequences are stored lowercase; '-' is a gap and '?'/'n' are
// missing-data symbols.
type Record struct {
	Taxon string
	Seq   []byte
}

// Alignment is an ordered set of equal-length records read from one locus
// file. Name is the locus identifier (source basename minus extension).
type Alignment struct {
	Name    string
	Records []Record
}

// Len returns the alignment length (number of columns).
func (aln *Alignment) Len() int {
	if len(aln.Records) == 0 {
		return 0
	}
	return len(aln.Records[0].Seq)
}

// NumTaxa returns the number of rows.
func (aln *Alignment) NumTaxa() int {
	return len(aln.Records)
}

func (aln *Alignment) check() error {
	if len(aln.Records) == 0 {
		return fmt.Errorf("%s: empty alignment", aln.Name)
	}
	want := len(aln.Records[0].Seq)
	for _, rec := range aln.Records {
		if len(rec.Seq) != want {
			return fmt.Errorf("%s: sequence %s has length %d, expected %d", aln.Name, rec.Taxon, len(rec.Seq), want)
		}
	}
	return nil
}

var alignmentExtensions = map[string][]string{
	"fasta":  {".fasta", ".fa", ".fsa", ".aln"},
	"phylip": {".phylip", ".phy"},
}

// locusName derives the locus identifier from a filename.
func locusName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func listAlignmentFiles(dir, format string) ([]string, error) {
	exts, ok := alignmentExtensions[format]
	if !ok {
		return nil, fmt.Errorf("unsupported alignment format %q", format)
	}
	d, err := os.Open(dir)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	names, err := d.Readdirnames(0)
	if err != nil {
		return nil, fmt.Errorf("%s: readdir failed: %s", dir, err)
	}
	var files []string
	for _, name := range names {
		trimmed := strings.TrimSuffix(name, ".gz")
		for _, ext := range exts {
			if strings.HasSuffix(trimmed, ext) {
				files = append(files, filepath.Join(dir, name))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadAlignmentFile reads one alignment in the given format, transparently
// decompressing .gz inputs. The locus name is derived from the filename.
func ReadAlignmentFile(path, format string) (*Alignment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rdr io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(bufio.NewReader(f))
		if err != nil {
			return nil, fmt.Errorf("%s: gzip: %s", path, err)
		}
		defer gz.Close()
		rdr = gz
	}
	aln, err := ReadAlignment(rdr, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", path, err)
	}
	aln.Name = locusName(path)
	return aln, nil
}

// ReadAlignment parses an alignment from rdr in the given format ("fasta"
// or "phylip"). Sequences are lowercased.
func ReadAlignment(rdr io.Reader, format string) (*Alignment, error) {
	switch format {
	case "fasta":
		return readFasta(rdr)
	case "phylip":
		return readPhylip(rdr)
	default:
		return nil, fmt.Errorf("unsupported alignment format %q", format)
	}
}

func readFasta(rdr io.Reader) (*Alignment, error) {
	aln := &Alignment{}
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1<<20), 1<<24)
	var label string
	var seq []byte
	flush := func() {
		if label != "" {
			aln.Records = append(aln.Records, Record{Taxon: label, Seq: seq})
		}
		label, seq = "", nil
	}
	for scanner.Scan() {
		buf := scanner.Bytes()
		if len(buf) > 0 && buf[0] == '>' {
			flush()
			label = strings.SplitN(string(buf[1:]), " ", 2)[0]
			if label == "" {
				return nil, fmt.Errorf("fasta record with empty label")
			}
		} else {
			seq = append(seq, bytes.ToLower(bytes.TrimSpace(buf))...)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := aln.check(); err != nil {
		return nil, err
	}
	return aln, nil
}

// readPhylip reads sequential (non-interleaved) relaxed PHYLIP: a header
// line with taxon and site counts, then one "name sequence" line per taxon.
func readPhylip(rdr io.Reader) (*Alignment, error) {
	aln := &Alignment{}
	scanner := bufio.NewScanner(rdr)
	scanner.Buffer(make([]byte, 1<<20), 1<<24)
	if !scanner.Scan() {
		return nil, fmt.Errorf("missing phylip header")
	}
	header := strings.Fields(scanner.Text())
	if len(header) != 2 {
		return nil, fmt.Errorf("malformed phylip header %q", scanner.Text())
	}
	ntax, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, fmt.Errorf("malformed phylip header %q", scanner.Text())
	}
	nchar, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, fmt.Errorf("malformed phylip header %q", scanner.Text())
	}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed phylip line %q", line)
		}
		seq := []byte(strings.ToLower(strings.Join(fields[1:], "")))
		if len(seq) != nchar {
			return nil, fmt.Errorf("sequence %s has length %d, header says %d", fields[0], len(seq), nchar)
		}
		aln.Records = append(aln.Records, Record{Taxon: fields[0], Seq: seq})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(aln.Records) != ntax {
		return nil, fmt.Errorf("read %d sequences, header says %d", len(aln.Records), ntax)
	}
	return aln, aln.check()
}

// WriteAlignment writes aln to w in the given format.
func WriteAlignment(w io.Writer, aln *Alignment, format string) error {
	switch format {
	case "fasta":
		return writeFasta(w, aln)
	case "phylip":
		return writePhylip(w, aln)
	default:
		return fmt.Errorf("unsupported alignment format %q", format)
	}
}

func writeFasta(w io.Writer, aln *Alignment) error {
	bufw := bufio.NewWriter(w)
	for _, rec := range aln.Records {
		fmt.Fprintf(bufw, ">%s\n%s\n", rec.Taxon, rec.Seq)
	}
	return bufw.Flush()
}

func writePhylip(w io.Writer, aln *Alignment) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprintf(bufw, "%d %d\n", aln.NumTaxa(), aln.Len())
	for _, rec := range aln.Records {
		fmt.Fprintf(bufw, "%s  %s\n", rec.Taxon, rec.Seq)
	}
	return bufw.Flush()
}
