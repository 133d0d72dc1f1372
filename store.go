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
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// resultStore is the relational store for classification results. It keeps
// the original phyluce schema: loci, by_taxon, by_locus, by_locus_missing.
// One goroutine owns a store; workers never touch it directly.
type resultStore struct {
	db *sql.DB
}

const storeSchema = `
CREATE TABLE loci (
	locus text PRIMARY KEY,
	length int
);
CREATE TABLE by_taxon (
	idx INTEGER PRIMARY KEY AUTOINCREMENT,
	taxon text,
	locus text,
	position int,
	position_from_center int,
	type text,
	FOREIGN KEY (locus) REFERENCES loci(locus)
);
CREATE TABLE by_locus (
	idx INTEGER PRIMARY KEY AUTOINCREMENT,
	locus text,
	majallele real,
	substitutions real,
	deletions real,
	insertions real,
	missing real,
	bases real,
	position int,
	position_from_center int,
	type text,
	FOREIGN KEY (locus) REFERENCES loci(locus)
);
CREATE TABLE by_locus_missing (
	idx INTEGER PRIMARY KEY AUTOINCREMENT,
	locus text,
	present real,
	absent real,
	position int,
	position_from_center int,
	type text,
	FOREIGN KEY (locus) REFERENCES loci(locus)
);
`

// openStore creates the result database at path. If the file already
// exists the caller is asked, on stdin, whether to overwrite it; any
// answer other than y/yes aborts rather than clobbering existing results.
func openStore(path string, stdin io.Reader, stderr io.Writer) (*resultStore, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stderr, "Database already exists.  Overwrite [Y/n]? ")
		answer, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && answer == "" {
			return nil, fmt.Errorf("%s exists and no overwrite confirmation given", path)
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			if err := os.Remove(path); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("refusing to overwrite %s", path)
		}
	}
	// _foreign_keys in the DSN so every pooled connection enforces the
	// schema's references, not just the one that ran a PRAGMA
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %s", err)
	}
	return &resultStore{db: db}, nil
}

func (st *resultStore) Close() error {
	return st.db.Close()
}

// Ingest records one locus's results as a single transaction, so a locus
// is either fully visible to the reducer or not at all. Events and
// summaries referencing an unrecorded locus violate the schema's foreign
// keys; such an error means a bug in the pipeline, not bad user input.
func (st *resultStore) Ingest(res *locusResult) error {
	tx, err := st.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := recordLocus(tx, res); err != nil {
		return err
	}
	if err := recordEvents(tx, res); err != nil {
		return err
	}
	if err := recordLocusSummary(tx, res); err != nil {
		return err
	}
	return tx.Commit()
}

func recordLocus(tx *sql.Tx, res *locusResult) error {
	_, err := tx.Exec("INSERT INTO loci VALUES (?,?)", res.Locus, res.Length)
	return err
}

func recordEvents(tx *sql.Tx, res *locusResult) error {
	stmt, err := tx.Prepare(`INSERT INTO by_taxon
		(taxon, locus, position, position_from_center, type)
		VALUES (?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ev := range res.Events {
		_, err = stmt.Exec(ev.Taxon, res.Locus, ev.Position, res.Distance(ev.Position), string(ev.Kind))
		if err != nil {
			return err
		}
	}
	return nil
}

func recordLocusSummary(tx *sql.Tx, res *locusResult) error {
	byLocus, err := tx.Prepare(`INSERT INTO by_locus
		(locus, majallele, substitutions, deletions, insertions, missing, bases, position, position_from_center, type)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer byLocus.Close()
	byLocusMissing, err := tx.Prepare(`INSERT INTO by_locus_missing
		(locus, present, absent, position, position_from_center, type)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer byLocusMissing.Close()
	for pos, s := range res.Summary {
		dist := res.Distance(pos)
		_, err = byLocus.Exec(res.Locus, s.MajAllele, s.Substitutions, s.Deletions, s.Insertions, s.Missing, s.Bases, pos, dist, "substitutions")
		if err != nil {
			return err
		}
		_, err = byLocusMissing.Exec(res.Locus, s.Bases, res.NumTaxa-s.Bases, pos, dist, "missing")
		if err != nil {
			return err
		}
	}
	return nil
}
