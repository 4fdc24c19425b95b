package bio

import (
	"bytes"
	"testing"
)

const fasta1 = `>a
AC-GT
A
>b desc
 ..ACG T
`

func TestParseFasta(tst *testing.T) {
	seqs, err := ParseFasta(bytes.NewBufferString(fasta1))
	if err != nil {
		tst.Fatal("Error parsing fasta:", err)
	}
	if len(seqs) != 2 {
		tst.Fatal("Expected 2 sequences, got", len(seqs))
	}
	if seqs[0].Name != "a" || seqs[0].Sequence != "AC-GTA" {
		tst.Error("Wrong first sequence:", seqs[0])
	}
	if seqs[1].Name != "b desc" || seqs[1].Sequence != "..ACGT" {
		tst.Error("Wrong second sequence:", seqs[1])
	}
}

func TestParseFastaNoHeader(tst *testing.T) {
	_, err := ParseFasta(bytes.NewBufferString("ACGT\n>a\nAC\n"))
	if err != ErrNoHeader {
		tst.Error("Expected ErrNoHeader, got", err)
	}
}

func TestUngapped(tst *testing.T) {
	s := Sequence{Name: "x", Sequence: "-A.C--G*"}
	u := s.Ungapped()
	if u.Sequence != "ACG*" || u.Name != "x" {
		tst.Error("Wrong ungapped sequence:", u)
	}
}

func TestString(tst *testing.T) {
	seqs := Sequences{{"a", "AC"}, {"b", "GT"}}
	if seqs.String() != ">a\nAC\n>b\nGT" {
		tst.Errorf("Wrong FASTA output: %q", seqs.String())
	}
	if Sequences(nil).String() != "" {
		tst.Error("Empty sequences should produce empty string")
	}
}
