// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"math/rand"
	"sort"
)

// eventKind is the classification of one base against its column's major
// allele. The values are stored verbatim in the by_taxon "type" column.
type eventKind string

const (
	kindMajAllele    eventKind = "majallele"
	kindSubstitution eventKind = "substitution"
	kindInsertion    eventKind = "insertion"
	kindDeletion     eventKind = "deletion"
	kindMissing      eventKind = "missing"
)

// alleleSource supplies the index used to resolve major-allele ties. Ties
// are genuinely ambiguous and resolved at random in production, but tests
// need a fixed source, so the randomness is injected rather than ambient.
type alleleSource interface {
	Intn(n int) int
}

func newAlleleSource(seed int64) alleleSource {
	return rand.New(rand.NewSource(seed))
}

// validTieBases are the IUPAC single-letter and ambiguity codes eligible to
// win a tie. Gap and the missing codes are excluded.
var validTieBases = map[byte]bool{
	'a': true, 'c': true, 'g': true, 't': true,
	'r': true, 'y': true, 's': true, 'w': true,
	'k': true, 'm': true, 'b': true, 'd': true,
	'h': true, 'v': true,
}

// majorAllele determines the representative base of one column. Missing
// symbols do not vote. Returns false when every base in the column is
// missing. A tie for the maximum count is resolved by drawing uniformly
// from the tied bases, restricted to valid nucleotide codes; if the
// restriction removes every candidate the draw falls back to the full tie
// set.
func majorAllele(col []byte, src alleleSource) (byte, bool) {
	counts := map[byte]int{}
	considered := 0
	for _, b := range col {
		if isMissing(b) {
			continue
		}
		counts[b]++
		considered++
	}
	if considered == 0 {
		return 0, false
	}
	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}
	var tied []byte
	for b, n := range counts {
		if n == max {
			tied = append(tied, b)
		}
	}
	if len(tied) == 1 {
		return tied[0], true
	}
	var eligible []byte
	for _, b := range tied {
		if validTieBases[b] {
			eligible = append(eligible, b)
		}
	}
	if len(eligible) == 0 {
		eligible = tied
	}
	// sorted so an injected source picks reproducibly
	sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })
	return eligible[src.Intn(len(eligible))], true
}

// classifyBase classifies one base against the column's major allele.
func classifyBase(base, major byte) eventKind {
	switch {
	case isMissing(base):
		return kindMissing
	case base == major:
		return kindMajAllele
	case major == gapSymbol:
		return kindInsertion
	case base == gapSymbol:
		return kindDeletion
	default:
		return kindSubstitution
	}
}

// classifyColumn classifies every base of col and reports the number of
// considered (non-missing) bases. kinds is indexed like col. The major
// allele is computed once and applied to every row.
func classifyColumn(col []byte, src alleleSource, kinds []eventKind) (considered int) {
	major, ok := majorAllele(col, src)
	for i, b := range col {
		if !ok {
			kinds[i] = kindMissing
			continue
		}
		kinds[i] = classifyBase(b, major)
		if !isMissing(b) {
			considered++
		}
	}
	return considered
}
