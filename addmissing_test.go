// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"
	"gopkg.in/check.v1"
)

type addMissingSuite struct{}

var _ = check.Suite(&addMissingSuite{})

func (s *addMissingSuite) TestPadAlignments(c *check.C) {
	tmpdir := c.MkDir()
	alndir := filepath.Join(tmpdir, "alignments")
	outdir := filepath.Join(tmpdir, "padded")
	c.Assert(os.Mkdir(alndir, 0777), check.IsNil)

	c.Assert(os.WriteFile(filepath.Join(alndir, "uce-1001.fasta"), []byte(
		">uce-1001_gallus_gallus\nACGT\n"+
			">uce-1001_taeniopygia_guttata\nACGA\n"+
			">uce-1001_anas_platyrhynchos\nAC-T\n"), 0666), check.IsNil)
	// too few taxa: dropped
	c.Assert(os.WriteFile(filepath.Join(alndir, "uce-1002.fasta"), []byte(
		">uce-1002_gallus_gallus\nACGT\n"+
			">uce-1002_anas_platyrhynchos\nACGT\n"), 0666), check.IsNil)

	roster := filepath.Join(tmpdir, "match-counts.conf")
	c.Assert(os.WriteFile(roster, []byte(
		"[Organisms]\ngallus_gallus\ntaeniopygia_guttata\nanas_platyrhynchos\nmeleagris_gallopavo*\n"), 0666), check.IsNil)
	incomplete := filepath.Join(tmpdir, "incomplete.conf")
	c.Assert(os.WriteFile(incomplete, []byte(
		"[meleagris_gallopavo]\nuce-1001\n"), 0666), check.IsNil)

	var stderr bytes.Buffer
	exited := (&addMissingCmd{}).RunCommand("add-missing", []string{
		"-alignments", alndir,
		"-output", outdir,
		"-match-count-output", roster,
		"-incomplete-matrix", incomplete,
		"-min-taxa", "3",
		"-cores", "1",
	}, &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Assert(exited, check.Equals, 0, check.Commentf("stderr: %s", stderr.String()))

	aln, err := ReadAlignmentFile(filepath.Join(outdir, "uce-1001.fasta"), "fasta")
	c.Assert(err, check.IsNil)
	c.Assert(aln.NumTaxa(), check.Equals, 4)
	byTaxon := map[string]string{}
	for _, rec := range aln.Records {
		byTaxon[rec.Taxon] = string(rec.Seq)
	}
	// locus prefixes stripped from present taxa
	c.Check(byTaxon["gallus_gallus"], check.Equals, "acgt")
	// the absent roster taxon gets an all-missing row of the right length
	c.Check(byTaxon["meleagris_gallopavo"], check.Equals, "????")

	_, err = os.Stat(filepath.Join(outdir, "uce-1002.fasta"))
	c.Check(os.IsNotExist(err), check.Equals, true)
}

func (s *addMissingSuite) TestVerbatimNames(c *check.C) {
	cmd := &addMissingCmd{verbatim: true}
	c.Check(cmd.taxonName("_R_Gallus_gallus"), check.Equals, "gallus_gallus")
	cmd.verbatim = false
	c.Check(cmd.taxonName("uce-1001_gallus_gallus"), check.Equals, "gallus_gallus")
	c.Check(cmd.taxonName("plain"), check.Equals, "plain")
}

func (s *addMissingSuite) TestFormatConversion(c *check.C) {
	tmpdir := c.MkDir()
	alndir := filepath.Join(tmpdir, "alignments")
	outdir := filepath.Join(tmpdir, "padded")
	c.Assert(os.Mkdir(alndir, 0777), check.IsNil)
	c.Assert(os.WriteFile(filepath.Join(alndir, "uce-9.fasta"), []byte(
		">a\nACGT\n>b\nACGT\n>c\nAC-T\n"), 0666), check.IsNil)
	roster := filepath.Join(tmpdir, "match-counts.conf")
	c.Assert(os.WriteFile(roster, []byte("[Organisms]\na\nb\nc\n"), 0666), check.IsNil)

	exited := (&addMissingCmd{}).RunCommand("add-missing", []string{
		"-alignments", alndir,
		"-output", outdir,
		"-match-count-output", roster,
		"-verbatim",
		"-output-format", "phylip",
		"-cores", "1",
	}, &bytes.Buffer{}, &bytes.Buffer{}, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	// converted output carries the output format's extension
	content, err := os.ReadFile(filepath.Join(outdir, "uce-9.phylip"))
	c.Assert(err, check.IsNil)
	c.Check(strings.HasPrefix(string(content), "3 4\n"), check.Equals, true)
	_, err = os.Stat(filepath.Join(outdir, "uce-9.fasta"))
	c.Check(os.IsNotExist(err), check.Equals, true)
}

func (s *addMissingSuite) TestGzipInputWrittenPlain(c *check.C) {
	tmpdir := c.MkDir()
	alndir := filepath.Join(tmpdir, "alignments")
	outdir := filepath.Join(tmpdir, "padded")
	c.Assert(os.Mkdir(alndir, 0777), check.IsNil)
	f, err := os.Create(filepath.Join(alndir, "uce-7.fasta.gz"))
	c.Assert(err, check.IsNil)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(">a\nACGT\n>b\nACGT\n>c\nAC-T\n"))
	c.Assert(err, check.IsNil)
	c.Assert(gz.Close(), check.IsNil)
	c.Assert(f.Close(), check.IsNil)
	roster := filepath.Join(tmpdir, "match-counts.conf")
	c.Assert(os.WriteFile(roster, []byte("[Organisms]\na\nb\nc\n"), 0666), check.IsNil)

	exited := (&addMissingCmd{}).RunCommand("add-missing", []string{
		"-alignments", alndir,
		"-output", outdir,
		"-match-count-output", roster,
		"-verbatim",
		"-cores", "1",
	}, &bytes.Buffer{}, &bytes.Buffer{}, os.Stderr)
	c.Assert(exited, check.Equals, 0)

	// the padded copy is plain text and must not keep the .gz suffix
	aln, err := ReadAlignmentFile(filepath.Join(outdir, "uce-7.fasta"), "fasta")
	c.Assert(err, check.IsNil)
	c.Check(aln.NumTaxa(), check.Equals, 3)
	_, err = os.Stat(filepath.Join(outdir, "uce-7.fasta.gz"))
	c.Check(os.IsNotExist(err), check.Equals, true)
}

func (s *addMissingSuite) TestMissingFlags(c *check.C) {
	var stderr bytes.Buffer
	exited := (&addMissingCmd{}).RunCommand("add-missing", nil, &bytes.Buffer{}, &bytes.Buffer{}, &stderr)
	c.Check(exited, check.Equals, 2)
	c.Check(strings.Contains(stderr.String(), "required"), check.Equals, true)
}
