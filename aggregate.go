// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

// classifiedEvent records the classification of one taxon's base at one
// alignment position.
type classifiedEvent struct {
	Taxon    string
	Position int
	Kind     eventKind
}

// positionSummary collapses one locus's classifications at one position
// across taxa. Bases is the considered (non-missing) count used as the
// denominator downstream.
type positionSummary struct {
	MajAllele     int
	Substitutions int
	Deletions     int
	Insertions    int
	Missing       int
	Bases         int
}

func (s *positionSummary) add(kind eventKind) {
	switch kind {
	case kindMajAllele:
		s.MajAllele++
	case kindSubstitution:
		s.Substitutions++
	case kindDeletion:
		s.Deletions++
	case kindInsertion:
		s.Insertions++
	case kindMissing:
		s.Missing++
	}
}

// locusResult is the complete classification of one alignment: per-taxon
// events plus per-position summaries. It is produced by one worker and
// handed by value to the store; nothing here is shared across loci.
type locusResult struct {
	Locus   string
	Length  int
	NumTaxa int
	Events  []classifiedEvent
	Summary []positionSummary
}

// Center is the alignment midpoint, floor(L/2). For even lengths the
// distance range is asymmetric (L=10: positions 0..9 map to -5..4).
func (r *locusResult) Center() int {
	return r.Length / 2
}

// Distance is the signed offset of a position from the alignment center.
func (r *locusResult) Distance(pos int) int {
	return pos - r.Center()
}

// substitutionRate is the locus-wide substitution frequency over all
// considered bases, for the end-of-run summary. ok is false when the locus
// had no considered bases at all.
func (r *locusResult) substitutionRate() (float64, bool) {
	var subs, bases int
	for _, s := range r.Summary {
		subs += s.Substitutions
		bases += s.Bases
	}
	if bases == 0 {
		return 0, false
	}
	return float64(subs) / float64(bases), true
}

// classifyAlignment runs the full per-locus pipeline: end-gap
// normalization, column-by-column classification against the major allele,
// and the fold into per-position summaries. The result is identical
// regardless of taxon order because every taxon is classified against the
// same per-column major allele.
func classifyAlignment(aln *Alignment, src alleleSource) (*locusResult, error) {
	if err := aln.check(); err != nil {
		return nil, err
	}
	normalizeEndGaps(aln)
	length := aln.Len()
	res := &locusResult{
		Locus:   aln.Name,
		Length:  length,
		NumTaxa: aln.NumTaxa(),
		Summary: make([]positionSummary, length),
	}
	col := make([]byte, aln.NumTaxa())
	kinds := make([]eventKind, aln.NumTaxa())
	for pos := 0; pos < length; pos++ {
		for i, rec := range aln.Records {
			col[i] = rec.Seq[pos]
		}
		res.Summary[pos].Bases = classifyColumn(col, src, kinds)
		for i, kind := range kinds {
			res.Summary[pos].add(kind)
			res.Events = append(res.Events, classifiedEvent{
				Taxon:    aln.Records[i].Taxon,
				Position: pos,
				Kind:     kind,
			})
		}
	}
	return res, nil
}
