/*

Histalign builds guide alignments and computes posterior
reconstructions and expected substitution counts for alignments with
ancestral rows.

Build a guide alignment for unaligned sequences:

	histalign guide seqs.fa model.yaml

Compute expected counts for an alignment and a tree (internal node
rows are imputed if the alignment has only leaves):

	histalign counts alignment.fa tree.nwk model.yaml

To see all the options run:

	histalign --help

*/
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/mrrlab/histalign/bio"
	"github.com/mrrlab/histalign/rmodel"
	"github.com/mrrlab/histalign/tree"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("histalign")
var formatter = logging.MustStringFormatter(`%{message}`)

// packages with loggers
var loggers = []string{"histalign", "rmodel", "eigen", "sumprod", "align", "span", "checkpoint"}

// command-line options
var (
	// application
	app = kingpin.New("histalign", "guide alignments, ancestral reconstruction and substitution counts").Version(version)

	// technical
	outLogF  = app.Flag("log", "write log to a file").String()
	outF     = app.Flag("out", "write output to a file").Short('o').String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

// readFasta reads sequences from a file.
func readFasta(fn string) bio.Sequences {
	f, err := os.Open(fn)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	seqs, err := bio.ParseFasta(f)
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Read %d sequences from %s", len(seqs), fn)
	return seqs
}

// readTree reads a newick tree from a file.
func readTree(fn string) *tree.Tree {
	f, err := os.Open(fn)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	t, err := tree.ParseNewick(f)
	if err != nil {
		log.Fatal(err)
	}
	log.Debugf("intree=%s", t)
	return t
}

// readModel reads a rate model from a YAML or JSON file.
func readModel(fn string) *rmodel.RateModel {
	f, err := os.Open(fn)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	m, err := rmodel.Read(f)
	if err != nil {
		log.Fatal("Error reading model:", err)
	}
	log.Infof("Model with alphabet %q", m.Alphabet)
	return m
}

// output returns the output file (stdout by default) and a function
// closing it.
func output() (*os.File, func()) {
	if *outF == "" {
		return os.Stdout, func() {}
	}
	f, err := os.Create(*outF)
	if err != nil {
		log.Fatal("Error creating output file:", err)
	}
	return f, func() { f.Close() }
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, l := range loggers {
		logging.SetLevel(level, l)
	}

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	startTime := time.Now()

	switch cmd {
	case guideCmd.FullCommand():
		runGuide()
	case countsCmd.FullCommand():
		runCounts()
	case totalCmd.FullCommand():
		runTotal()
	case reconstructCmd.FullCommand():
		runReconstruct()
	case plotCmd.FullCommand():
		runPlot()
	}

	log.Noticef("Running time: %v", time.Since(startTime))
}
