// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// addMissingCmd pads incomplete alignments with missing-data designators:
// every taxon from the roster that has no row in an alignment gets an
// all-'?' row of the alignment's length, so downstream tools see a
// complete matrix.
type addMissingCmd struct {
	alignmentsDir  string
	outputDir      string
	matchCountPath string
	incompletePath string
	minTaxa        int
	verbatim       bool
	inputFormat    string
	outputFormat   string
	cores          int
}

func (cmd *addMissingCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.alignmentsDir, "alignments", "", "`directory` of alignments to process")
	flags.StringVar(&cmd.outputDir, "output", "", "output `directory` for padded alignments")
	flags.StringVar(&cmd.matchCountPath, "match-count-output", "", "config `file` holding the taxon roster ([Organisms] section)")
	flags.StringVar(&cmd.incompletePath, "incomplete-matrix", "", "config `file` listing expected missing loci per organism")
	flags.IntVar(&cmd.minTaxa, "min-taxa", 3, "drop alignments with fewer than `n` taxa")
	flags.BoolVar(&cmd.verbatim, "verbatim", false, "use taxon names verbatim instead of stripping the locus prefix")
	flags.StringVar(&cmd.inputFormat, "input-format", "fasta", "input alignment `format` (fasta or phylip)")
	flags.StringVar(&cmd.outputFormat, "output-format", "fasta", "output alignment `format` (fasta or phylip)")
	flags.IntVar(&cmd.cores, "cores", runtime.NumCPU(), "number of alignments to process concurrently")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if cmd.alignmentsDir == "" || cmd.outputDir == "" || cmd.matchCountPath == "" {
		err = errors.New("-alignments, -output, and -match-count-output are required")
		return 2
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	err = cmd.run()
	if err != nil {
		return 1
	}
	return 0
}

// iniViper builds a viper that accepts phyluce-style configs listing bare
// taxon names without key=value delimiters.
func iniViper() *viper.Viper {
	return viper.NewWithOptions(viper.IniLoadOptions(ini.LoadOptions{AllowBooleanKeys: true}))
}

// readRoster returns the taxon names under [Organisms], lowercased, with
// any trailing '*' (phyluce's incomplete marker) stripped.
func readRoster(path string) ([]string, error) {
	v := iniViper()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%s: %s", path, err)
	}
	section := v.GetStringMapString("organisms")
	if len(section) == 0 {
		return nil, fmt.Errorf("%s: no [Organisms] section", path)
	}
	var roster []string
	for name := range section {
		roster = append(roster, strings.TrimRight(name, "*"))
	}
	sort.Strings(roster)
	return roster, nil
}

// readIncompleteMatrix returns organism -> set of loci the organism is
// known to be missing from.
func readIncompleteMatrix(path string) (map[string]map[string]bool, error) {
	v := iniViper()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%s: %s", path, err)
	}
	missing := map[string]map[string]bool{}
	for _, key := range v.AllKeys() {
		parts := strings.SplitN(key, ".", 2)
		if len(parts) != 2 {
			continue
		}
		org := strings.TrimRight(parts[0], "*")
		if missing[org] == nil {
			missing[org] = map[string]bool{}
		}
		missing[org][parts[1]] = true
	}
	return missing, nil
}

func (cmd *addMissingCmd) run() error {
	roster, err := readRoster(cmd.matchCountPath)
	if err != nil {
		return err
	}
	var missing map[string]map[string]bool
	if cmd.incompletePath != "" {
		missing, err = readIncompleteMatrix(cmd.incompletePath)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(cmd.outputDir, 0777); err != nil {
		return err
	}
	infiles, err := listAlignmentFiles(cmd.alignmentsDir, cmd.inputFormat)
	if err != nil {
		return err
	}
	if len(infiles) == 0 {
		return fmt.Errorf("no %s alignments found in %s", cmd.inputFormat, cmd.alignmentsDir)
	}
	log.Infof("adding missing data designators to %d alignments using %d cores", len(infiles), cmd.cores)
	th := throttle{Max: cmd.cores}
	for _, path := range infiles {
		th.Acquire()
		go func(path string) {
			defer th.Release()
			th.Report(locusName(path), cmd.padAlignment(path, roster, missing))
		}(path)
	}
	failed := th.Wait()
	if failed > 0 {
		log.Warnf("%d alignments skipped", failed)
	}
	return nil
}

var errTooFewTaxa = errors.New("too few taxa")

func (cmd *addMissingCmd) padAlignment(path string, roster []string, missing map[string]map[string]bool) error {
	aln, err := ReadAlignmentFile(path, cmd.inputFormat)
	if err != nil {
		return err
	}
	if aln.NumTaxa() < cmd.minTaxa {
		return fmt.Errorf("%w (N < %d)", errTooFewTaxa, cmd.minTaxa)
	}
	present := map[string]bool{}
	for i := range aln.Records {
		name := cmd.taxonName(aln.Records[i].Taxon)
		aln.Records[i].Taxon = name
		present[name] = true
	}
	for _, org := range roster {
		if present[org] {
			continue
		}
		if missing != nil && !missing[org][aln.Name] {
			log.Warnf("%s: %s absent but not flagged missing in the incomplete matrix", aln.Name, org)
		}
		aln.Records = append(aln.Records, Record{
			Taxon: org,
			Seq:   bytes.Repeat([]byte{missingSymbol}, aln.Len()),
		})
	}
	// named for the locus and the output format, so a .fasta.gz input
	// converted to phylip does not come out as uce-1.fasta.gz
	exts, ok := alignmentExtensions[cmd.outputFormat]
	if !ok {
		return fmt.Errorf("unsupported alignment format %q", cmd.outputFormat)
	}
	outf, err := os.OpenFile(filepath.Join(cmd.outputDir, aln.Name+exts[0]), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return err
	}
	if err := WriteAlignment(outf, aln, cmd.outputFormat); err != nil {
		outf.Close()
		return err
	}
	return outf.Close()
}

// taxonName maps an input sequence label to a roster name. Aligners like
// mafft prefix reversed sequences with _R_; phyluce labels rows as
// locus_genus_species, so the default strips the leading locus component.
func (cmd *addMissingCmd) taxonName(label string) string {
	label = strings.TrimPrefix(label, "_R_")
	if !cmd.verbatim {
		if parts := strings.SplitN(label, "_", 2); len(parts) == 2 {
			label = parts[1]
		}
	}
	return strings.ToLower(label)
}
