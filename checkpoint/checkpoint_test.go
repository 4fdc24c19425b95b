package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/mrrlab/histalign/sumprod"
)

func init() {
	logging.SetLevel(logging.WARNING, "checkpoint")
}

func openDB(tst *testing.T) *bolt.DB {
	db, err := bolt.Open(filepath.Join(tst.TempDir(), "test.db"), 0600, nil)
	require.NoError(tst, err)
	tst.Cleanup(func() { db.Close() })
	return db
}

func testCounts(scale float64) *sumprod.Counts {
	return &sumprod.Counts{
		Alphabet:      "ab",
		RootCount:     []float64{1 * scale, 2 * scale},
		SubCount:      [][]float64{{0.5 * scale, 0.1 * scale}, {0.2 * scale, 0.7 * scale}},
		LogLikelihood: -10 * scale,
		Columns:       3,
	}
}

func TestSaveLoad(tst *testing.T) {
	cio := NewCountsIO(openDB(tst))
	c, err := cio.Load("missing")
	require.NoError(tst, err)
	assert.Nil(tst, c)

	require.NoError(tst, cio.Save("aln1", testCounts(1)))
	require.NoError(tst, cio.Save("aln2", testCounts(2)))

	c, err = cio.Load("aln1")
	require.NoError(tst, err)
	assert.Equal(tst, testCounts(1), c)

	keys, err := cio.Keys()
	require.NoError(tst, err)
	assert.Equal(tst, []string{"aln1", "aln2"}, keys)

	total, err := cio.Total()
	require.NoError(tst, err)
	assert.Equal(tst, 6, total.Columns)
	assert.InDelta(tst, -30, total.LogLikelihood, 1e-12)
	assert.InDelta(tst, 6, total.RootCount[1], 1e-12)
	assert.InDelta(tst, 2.1, total.SubCount[1][1], 1e-12)
}

func TestLoadDataCopies(tst *testing.T) {
	db := openDB(tst)
	require.NoError(tst, SaveData(db, []byte("k"), []byte("value")))
	b, err := LoadData(db, []byte("k"))
	require.NoError(tst, err)
	assert.Equal(tst, "value", string(b))
}

func TestLoadNull(tst *testing.T) {
	db := openDB(tst)
	require.NoError(tst, SaveData(db, []byte("empty"), []byte("null")))
	cio := NewCountsIO(db)
	c, err := cio.Load("empty")
	assert.NoError(tst, err)
	assert.Nil(tst, c)

	require.NoError(tst, cio.Save("aln", testCounts(1)))
	total, err := cio.Total()
	require.NoError(tst, err)
	assert.Equal(tst, testCounts(1), total)
}

func TestNilDB(tst *testing.T) {
	cio := NewCountsIO(nil)
	assert.NoError(tst, cio.Save("k", testCounts(1)))
	c, err := cio.Load("k")
	assert.NoError(tst, err)
	assert.Nil(tst, c)
	keys, err := cio.Keys()
	assert.NoError(tst, err)
	assert.Empty(tst, keys)
}
