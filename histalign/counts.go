package main

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mrrlab/histalign/bio"
	"github.com/mrrlab/histalign/checkpoint"
	"github.com/mrrlab/histalign/sumprod"
)

var (
	countsCmd    = app.Command("counts", "compute expected substitution counts")
	countsAliF   = countsCmd.Arg("alignment", "alignment with leaf or all node rows (fasta)").Required().ExistingFile()
	countsTreeF  = countsCmd.Arg("tree", "phylogenetic tree (newick)").Required().ExistingFile()
	countsModelF = countsCmd.Arg("model", "rate model (yaml or json)").Required().ExistingFile()
	countsDBF    = countsCmd.Flag("db", "store counts in a bolt database").String()
	countsKey    = countsCmd.Flag("key", "database key, alignment file name by default").String()

	totalCmd = app.Command("total", "sum all the counts stored in a database")
	totalDBF = totalCmd.Arg("db", "bolt database").Required().ExistingFile()

	reconstructCmd    = app.Command("reconstruct", "replace wildcards by maximum posterior states")
	reconstructAliF   = reconstructCmd.Arg("alignment", "alignment with leaf or all node rows (fasta)").Required().ExistingFile()
	reconstructTreeF  = reconstructCmd.Arg("tree", "phylogenetic tree (newick)").Required().ExistingFile()
	reconstructModelF = reconstructCmd.Arg("model", "rate model (yaml or json)").Required().ExistingFile()
)

// openDB opens bolt database, nil file name gives nil database.
func openDB(fn string) *bolt.DB {
	if fn == "" {
		return nil
	}
	db, err := bolt.Open(fn, 0666, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		log.Fatal("Error opening database:", err)
	}
	return db
}

// writeJSON writes indented json to the output.
func writeJSON(v interface{}) {
	j, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	f, closeF := output()
	defer closeF()
	f.Write(j)
	f.WriteString("\n")
}

func runCounts() {
	ali := readFasta(*countsAliF)
	t := readTree(*countsTreeF)
	m := readModel(*countsModelF)

	rows, err := sumprod.RowsByNode(t, ali)
	if err != nil {
		log.Fatal(err)
	}

	counts, err := sumprod.CollectCounts(m, t, rows)
	if err != nil {
		log.Fatal(err)
	}
	log.Noticef("lnL=%v", counts.LogLikelihood)

	if db := openDB(*countsDBF); db != nil {
		defer db.Close()
		key := *countsKey
		if key == "" {
			key = *countsAliF
		}
		if err := checkpoint.NewCountsIO(db).Save(key, counts); err != nil {
			log.Fatal(err)
		}
		log.Infof("Saved counts as %s", key)
	}

	writeJSON(counts)
}

func runTotal() {
	db := openDB(*totalDBF)
	defer db.Close()

	cio := checkpoint.NewCountsIO(db)
	keys, err := cio.Keys()
	if err != nil {
		log.Fatal(err)
	}
	log.Infof("Database contains %d count sets", len(keys))

	total, err := cio.Total()
	if err != nil {
		log.Fatal(err)
	}
	if total == nil {
		log.Fatal("No counts in the database")
	}
	writeJSON(total)
}

func runReconstruct() {
	ali := readFasta(*reconstructAliF)
	t := readTree(*reconstructTreeF)
	m := readModel(*reconstructModelF)

	rows, err := sumprod.RowsByNode(t, ali)
	if err != nil {
		log.Fatal(err)
	}

	rec, lnL, err := sumprod.Reconstruct(m, t, rows)
	if err != nil {
		log.Fatal(err)
	}
	log.Noticef("lnL=%v", lnL)

	f, closeF := output()
	defer closeF()
	f.WriteString(bio.Sequences(rec).String() + "\n")
}
