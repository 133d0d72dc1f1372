// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"bufio"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"
)

// smilogramPoint is one retained distance bucket of a cross-locus series.
// For the substitution series Count/Total are summed substitutions and
// considered bases; for the missing-data series they are summed present
// and absent counts.
type smilogramPoint struct {
	Count    float64
	Total    float64
	Freq     float64
	Distance int
}

// The header is what the original tool wrote for both files, including the
// missing-data one. Downstream plotting scripts key on it, so it stays.
const smilogramHeader = "substitutions,bp,freq,distance_from_center"

// substitutionSeries sums substitutions and considered bases by distance
// from center across all ingested loci. Distances where no substitution
// was observed anywhere are omitted: they contribute no plot point.
func (st *resultStore) substitutionSeries() ([]smilogramPoint, error) {
	rows, err := st.db.Query(`
		SELECT sum(substitutions), sum(bases), sum(substitutions)/sum(bases), position_from_center
		FROM by_locus
		GROUP BY position_from_center
		HAVING sum(substitutions) != 0
		ORDER BY position_from_center`)
	if err != nil {
		return nil, err
	}
	return scanSeries(rows)
}

// missingSeries reports the missing-data rate by distance from center:
// absent / (absent + present), where present is the considered-base count
// and absent is the per-locus taxon count minus it. Distances with no
// present bases at all are omitted.
func (st *resultStore) missingSeries() ([]smilogramPoint, error) {
	rows, err := st.db.Query(`
		SELECT sum(present), sum(absent), sum(absent)/(sum(absent) + sum(present)), position_from_center
		FROM by_locus_missing
		GROUP BY position_from_center
		HAVING sum(present) != 0
		ORDER BY position_from_center`)
	if err != nil {
		return nil, err
	}
	return scanSeries(rows)
}

func scanSeries(rows *sql.Rows) ([]smilogramPoint, error) {
	defer rows.Close()
	var series []smilogramPoint
	for rows.Next() {
		var p smilogramPoint
		if err := rows.Scan(&p.Count, &p.Total, &p.Freq, &p.Distance); err != nil {
			return nil, err
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// writeSeriesCSV writes one series as delimited text, one row per retained
// distance.
func writeSeriesCSV(path string, series []smilogramPoint) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	fmt.Fprintln(bufw, smilogramHeader)
	for _, p := range series {
		fmt.Fprintf(bufw, "%g,%g,%g,%d\n", p.Count, p.Total, p.Freq, p.Distance)
	}
	if err := bufw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// writeSeriesNpy writes one series as a rows x 4 float64 numpy matrix with
// the same column order as the CSV. gonpy closes its writer when the data
// is written, so it gets a nopCloser and the file is flushed and closed
// here.
func writeSeriesNpy(path string, series []smilogramPoint) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	bufw := bufio.NewWriter(f)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		f.Close()
		return err
	}
	npw.Shape = []int{len(series), 4}
	flat := make([]float64, 0, len(series)*4)
	for _, p := range series {
		flat = append(flat, p.Count, p.Total, p.Freq, float64(p.Distance))
	}
	if err := npw.WriteFloat64(flat); err != nil {
		f.Close()
		return err
	}
	if err := bufw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
