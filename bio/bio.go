// Package bio provides sequence types, FASTA input/output and
// alignment character conventions.
package bio

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const (
	// GapChar is the canonical gap character of gapped rows.
	GapChar = '-'
	// WildcardChar marks an unobserved (ancestral) residue.
	WildcardChar = '*'
)

// ErrNoHeader is returned when sequence data precedes the first
// FASTA header.
var ErrNoHeader = errors.New("sequence w/o prefix")

// IsGap tests if the character is a gap. Both '-' and '.' are
// accepted.
func IsGap(c byte) bool {
	return c == GapChar || c == '.'
}

// IsWildcard tests if the character is a wildcard.
func IsWildcard(c byte) bool {
	return c == WildcardChar
}

// Sequence is a type which is intended for storing nucleotide or
// protein sequence with it's name.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences. E.g. a sequence alignment.
type Sequences []Sequence

// ParseFasta parses FASTA sequences from a reader. Sequence letters
// are kept as is, only spaces are removed.
func ParseFasta(rd io.Reader) (seqs Sequences, err error) {
	seqs = make(Sequences, 0, 10)
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			seq := Sequence{Name: strings.TrimSpace(line[1:])}
			seqs = append(seqs, seq)
		} else {
			if len(seqs) == 0 {
				return nil, ErrNoHeader
			}
			line = strings.Replace(line, " ", "", -1)
			seqs[len(seqs)-1].Sequence += line
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return
}

// Ungapped returns a copy of the sequence with all the gap
// characters removed.
func (seq Sequence) Ungapped() Sequence {
	var b strings.Builder
	b.Grow(len(seq.Sequence))
	for i := 0; i < len(seq.Sequence); i++ {
		if !IsGap(seq.Sequence[i]) {
			b.WriteByte(seq.Sequence[i])
		}
	}
	return Sequence{Name: seq.Name, Sequence: b.String()}
}

// Wrap inputs a string and wraps it so string length is n characters
// or less.
func Wrap(seq string, n int) (s string) {
	for i := 0; i < len(seq); i += n {
		end := i + n
		if end > len(seq) {
			end = len(seq)
		}
		s += seq[i:end] + "\n"
	}
	return
}

// String returns a sequence in FASTA format.
func (seq Sequence) String() (s string) {
	s = ">" + seq.Name + "\n" + Wrap(seq.Sequence, 80)
	return
}

// String returns sequences in FASTA format.
func (seqs Sequences) String() (s string) {
	for _, seq := range seqs {
		s += seq.String()
	}
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}

// Names returns the sequence names.
func (seqs Sequences) Names() []string {
	names := make([]string, len(seqs))
	for i, seq := range seqs {
		names[i] = seq.Name
	}
	return names
}
