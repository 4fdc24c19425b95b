// checkpoint creates CountsIO which stores sufficient statistics in a
// bolt database.
package checkpoint

import (
	"encoding/json"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"

	"github.com/mrrlab/histalign/sumprod"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// COUNTS is the bucket name for all the counts.
var COUNTS = []byte("counts")

// CountsIO saves and loads counts.
type CountsIO struct {
	db *bolt.DB
}

// NewCountsIO creates a new CountsIO. If db is nil, all the
// operations are no-ops.
func NewCountsIO(db *bolt.DB) *CountsIO {
	return &CountsIO{db: db}
}

// Save saves counts under the key.
func (s *CountsIO) Save(key string, counts *sumprod.Counts) error {
	dataB, err := json.Marshal(counts)
	if err != nil {
		log.Error("Error serializing counts", err)
		return err
	}
	err = SaveData(s.db, []byte(key), dataB)
	if err != nil {
		log.Error("Error saving counts", err)
	}
	return err
}

// Load returns counts stored under the key or nil if there are none.
func (s *CountsIO) Load(key string) (*sumprod.Counts, error) {
	var counts *sumprod.Counts

	b, err := LoadData(s.db, []byte(key))

	if err != nil || b == nil {
		return nil, err
	}

	err = json.Unmarshal(b, &counts)

	if err != nil {
		return nil, err
	}

	if counts == nil {
		return nil, nil
	}

	log.Noticef("Found counts %s (columns=%v, lnL=%v)", key, counts.Columns, counts.LogLikelihood)

	return counts, nil
}

// Keys returns all the stored keys in the sorted order.
func (s *CountsIO) Keys() ([]string, error) {
	var keys []string
	if s.db == nil {
		return nil, nil
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(COUNTS)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Total sums all the stored counts.
func (s *CountsIO) Total() (*sumprod.Counts, error) {
	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	var total *sumprod.Counts
	for _, key := range keys {
		c, err := s.Load(key)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		if total == nil {
			total = c
			continue
		}
		if err := total.Add(c); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(COUNTS)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(COUNTS)
		if b == nil {
			return nil
		}

		v := b.Get(key)
		if v != nil {
			// v is only valid during the transaction
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
