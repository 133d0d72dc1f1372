// Copyright (C) The Smilogram Authors. All rights reserved.
//
// SPDX-License-Identifier: BSD-3-Clause

package smilogram

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

type smilogramCmd struct {
	outputStem  string
	inputFormat string
	cores       int
	emitSeries  bool
	emitNpy     bool
	seed        int64
}

func (cmd *smilogramCmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&cmd.outputStem, "o", "output", "output `name` stem (database is written to stem.sqlite)")
	flags.StringVar(&cmd.inputFormat, "input-format", "fasta", "alignment `format` (fasta or phylip)")
	flags.IntVar(&cmd.cores, "cores", runtime.NumCPU(), "number of alignments to classify concurrently")
	flags.BoolVar(&cmd.emitSeries, "smilogram", false, "also write the two frequency-by-distance csv files")
	flags.BoolVar(&cmd.emitNpy, "npy", false, "with -smilogram, also write the series as .npy matrices")
	flags.Int64Var(&cmd.seed, "seed", 0, "random `seed` for major-allele tie-breaking (0 = time-based)")
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", "info", "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() != 1 {
		err = errors.New("usage: smilogram [options] alignment-directory")
		return 2
	}

	lvl, err := log.ParseLevel(*loglevel)
	if err != nil {
		return 2
	}
	log.SetLevel(lvl)

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	if cmd.seed == 0 {
		cmd.seed = time.Now().UnixNano()
	}
	log.Debugf("tie-break seed %d", cmd.seed)

	err = cmd.run(flags.Arg(0), stdin, stderr)
	if err != nil {
		return 1
	}
	return 0
}

func (cmd *smilogramCmd) run(inputDir string, stdin io.Reader, stderr io.Writer) error {
	infiles, err := listAlignmentFiles(inputDir, cmd.inputFormat)
	if err != nil {
		return err
	}
	if len(infiles) == 0 {
		return fmt.Errorf("no %s alignments found in %s", cmd.inputFormat, inputDir)
	}
	store, err := openStore(cmd.outputStem+".sqlite", stdin, stderr)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Infof("classifying %d alignments on %d cores", len(infiles), cmd.cores)
	results := make(chan *locusResult)
	var ingestErr error
	var rates []float64
	ingested := 0
	collected := make(chan struct{})
	go func() {
		// single writer: only this goroutine touches the store
		defer close(collected)
		for res := range results {
			if ingestErr != nil {
				continue
			}
			if ingestErr = store.Ingest(res); ingestErr != nil {
				continue
			}
			ingested++
			if rate, ok := res.substitutionRate(); ok {
				rates = append(rates, rate)
			}
		}
	}()

	th := throttle{Max: cmd.cores}
	for i, path := range infiles {
		th.Acquire()
		go func(i int, path string) {
			defer th.Release()
			aln, err := ReadAlignmentFile(path, cmd.inputFormat)
			if err != nil {
				th.Report(locusName(path), err)
				return
			}
			log.Debugf("%s: classifying %d taxa x %d sites", aln.Name, aln.NumTaxa(), aln.Len())
			res, err := classifyAlignment(aln, newAlleleSource(cmd.seed+int64(i)))
			if err != nil {
				th.Report(aln.Name, err)
				return
			}
			results <- res
		}(i, path)
	}
	failed := th.Wait()
	close(results)
	<-collected
	if ingestErr != nil {
		return fmt.Errorf("ingest: %s", ingestErr)
	}
	log.Infof("ingested %d loci (%d failed)", ingested, failed)
	if ingested == 0 {
		return errors.New("no alignments could be classified")
	}
	if len(rates) > 0 {
		mean := stat.Mean(rates, nil)
		log.Infof("per-locus substitution rate: mean %.6f, stddev %.6f", mean, stat.StdDev(rates, nil))
	}

	if !cmd.emitSeries {
		return nil
	}
	subs, err := store.substitutionSeries()
	if err != nil {
		return err
	}
	if err := writeSeriesCSV(cmd.outputStem+"-smilogram.csv", subs); err != nil {
		return err
	}
	missing, err := store.missingSeries()
	if err != nil {
		return err
	}
	if err := writeSeriesCSV(cmd.outputStem+"-missing.csv", missing); err != nil {
		return err
	}
	if cmd.emitNpy {
		if err := writeSeriesNpy(cmd.outputStem+"-smilogram.npy", subs); err != nil {
			return err
		}
		if err := writeSeriesNpy(cmd.outputStem+"-missing.npy", missing); err != nil {
			return err
		}
	}
	log.Infof("wrote %d substitution and %d missing-data points", len(subs), len(missing))
	return nil
}
