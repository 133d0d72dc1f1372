// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"gopkg.in/check.v1"
)

type aggregateSuite struct{}

var _ = check.Suite(&aggregateSuite{})

func exampleAlignment() *Alignment {
	return &Alignment{
		Name: "uce-1001",
		Records: []Record{
			{Taxon: "taxon1", Seq: []byte("acgt")},
			{Taxon: "taxon2", Seq: []byte("acga")},
			{Taxon: "taxon3", Seq: []byte("ac-t")},
		},
	}
}

func (s *aggregateSuite) TestDistanceFromCenter(c *check.C) {
	res := &locusResult{Length: 10}
	c.Check(res.Center(), check.Equals, 5)
	c.Check(res.Distance(0), check.Equals, -5)
	c.Check(res.Distance(9), check.Equals, 4)

	odd := &locusResult{Length: 7}
	c.Check(odd.Center(), check.Equals, 3)
	c.Check(odd.Distance(0), check.Equals, -3)
	c.Check(odd.Distance(6), check.Equals, 3)
}

func (s *aggregateSuite) TestClassifyAlignment(c *check.C) {
	res, err := classifyAlignment(exampleAlignment(), stubSource(0))
	c.Assert(err, check.IsNil)
	c.Check(res.Locus, check.Equals, "uce-1001")
	c.Check(res.Length, check.Equals, 4)
	c.Check(res.NumTaxa, check.Equals, 3)
	c.Assert(res.Summary, check.HasLen, 4)

	// column 0 and 1 are invariant
	c.Check(res.Summary[0], check.Equals, positionSummary{MajAllele: 3, Bases: 3})
	c.Check(res.Summary[1], check.Equals, positionSummary{MajAllele: 3, Bases: 3})
	// column 2 is g,g,- : internal gap, so a deletion against major g
	c.Check(res.Summary[2], check.Equals, positionSummary{MajAllele: 2, Deletions: 1, Bases: 3})
	// column 3 is t,a,t : taxon2 substitutes against major t
	c.Check(res.Summary[3], check.Equals, positionSummary{MajAllele: 2, Substitutions: 1, Bases: 3})
}

func (s *aggregateSuite) TestEventsCoverEveryBase(c *check.C) {
	res, err := classifyAlignment(exampleAlignment(), stubSource(0))
	c.Assert(err, check.IsNil)
	perPosition := map[int]int{}
	for _, ev := range res.Events {
		perPosition[ev.Position]++
	}
	for pos := 0; pos < res.Length; pos++ {
		c.Check(perPosition[pos], check.Equals, res.NumTaxa, check.Commentf("position %d", pos))
	}
	c.Check(res.Events, check.HasLen, res.Length*res.NumTaxa)
}

func (s *aggregateSuite) TestTaxonOrderIrrelevant(c *check.C) {
	fwd, err := classifyAlignment(exampleAlignment(), stubSource(0))
	c.Assert(err, check.IsNil)
	rev := exampleAlignment()
	for i, j := 0, len(rev.Records)-1; i < j; i, j = i+1, j-1 {
		rev.Records[i], rev.Records[j] = rev.Records[j], rev.Records[i]
	}
	got, err := classifyAlignment(rev, stubSource(0))
	c.Assert(err, check.IsNil)
	c.Check(got.Summary, check.DeepEquals, fwd.Summary)
}

func (s *aggregateSuite) TestEndGapsBecomeMissing(c *check.C) {
	aln := &Alignment{
		Name: "uce-2",
		Records: []Record{
			{Taxon: "t1", Seq: []byte("--gt")},
			{Taxon: "t2", Seq: []byte("acgt")},
			{Taxon: "t3", Seq: []byte("acgt")},
		},
	}
	res, err := classifyAlignment(aln, stubSource(0))
	c.Assert(err, check.IsNil)
	// leading gaps of t1 are missing data, not deletions
	c.Check(res.Summary[0], check.Equals, positionSummary{MajAllele: 2, Missing: 1, Bases: 2})
	c.Check(res.Summary[1], check.Equals, positionSummary{MajAllele: 2, Missing: 1, Bases: 2})
	c.Check(res.Summary[2], check.Equals, positionSummary{MajAllele: 3, Bases: 3})
}

func (s *aggregateSuite) TestSubstitutionRate(c *check.C) {
	res, err := classifyAlignment(exampleAlignment(), stubSource(0))
	c.Assert(err, check.IsNil)
	rate, ok := res.substitutionRate()
	c.Check(ok, check.Equals, true)
	c.Check(rate, check.Equals, 1.0/12.0)

	empty := &locusResult{Length: 2, Summary: make([]positionSummary, 2)}
	_, ok = empty.substitutionRate()
	c.Check(ok, check.Equals, false)
}
