// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

const (
	gapSymbol     = '-'
	missingSymbol = '?'
)

func isMissing(b byte) bool {
	return b == '?' || b == 'n'
}

// replaceEndGaps rewrites leading and trailing gap runs to the missing
// symbol, in place, and returns seq. Gaps touching either end of a sequence
// represent absent coverage, not indels; internal gaps are left alone.
func replaceEndGaps(seq []byte) []byte {
	for i := 0; i < len(seq) && seq[i] == gapSymbol; i++ {
		seq[i] = missingSymbol
	}
	for i := len(seq) - 1; i >= 0 && seq[i] == gapSymbol; i-- {
		seq[i] = missingSymbol
	}
	return seq
}

// normalizeEndGaps applies replaceEndGaps to every sequence of aln.
func normalizeEndGaps(aln *Alignment) {
	for i := range aln.Records {
		aln.Records[i].Seq = replaceEndGaps(aln.Records[i].Seq)
	}
}
