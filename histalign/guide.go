package main

import (
	"math/rand"
	"time"

	"github.com/mrrlab/histalign/align"
	"github.com/mrrlab/histalign/bio"
	"github.com/mrrlab/histalign/eigen"
	"github.com/mrrlab/histalign/span"
)

var (
	guideCmd       = app.Command("guide", "build a guide alignment of unaligned sequences")
	guideSeqsF     = guideCmd.Arg("sequences", "unaligned sequences (fasta)").Required().ExistingFile()
	guideModelF    = guideCmd.Arg("model", "rate model (yaml or json)").Required().ExistingFile()
	guideTime      = guideCmd.Flag("time", "branch time between sequence pairs").Default("0.1").Float64()
	guideSeed      = guideCmd.Flag("seed", "random generator seed, default time based").Default("-1").Int64()
	guideGapOpen   = guideCmd.Flag("gapopen", "gap open probability").Default("0.05").Float64()
	guideGapExtend = guideCmd.Flag("gapextend", "gap extension probability").Default("0.5").Float64()
)

func runGuide() {
	seqs := readFasta(*guideSeqsF)
	m := readModel(*guideModelF)
	log.Debugf("Sequences: %v", seqs.Names())

	if *guideSeed == -1 {
		*guideSeed = time.Now().UnixNano()
		log.Debug("Random seed from time")
	}
	log.Infof("Random seed=%v", *guideSeed)
	rng := rand.New(rand.NewSource(*guideSeed))

	aligner := align.NewQuickAligner(eigen.New(m))
	aligner.GapOpen = *guideGapOpen
	aligner.GapExtend = *guideGapExtend

	g, err := span.NewAlignGraph(seqs, m, aligner, *guideTime, rng)
	if err != nil {
		log.Fatal(err)
	}
	log.Noticef("Computed %d pairwise alignments", g.NEdges())

	gapped, err := g.GuideAlignment()
	if err != nil {
		log.Fatal(err)
	}

	f, closeF := output()
	defer closeF()
	f.WriteString(bio.Sequences(gapped).String() + "\n")
}
