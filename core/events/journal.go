package events

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRecords = []byte("records")

// Journal persists emitted events so indexers can resume from a cursor after
// a disconnect or restart.
type Journal struct {
	db *bolt.DB
}

// OpenJournal initialises (and migrates) the BoltDB-backed event journal.
func OpenJournal(path string, options *bolt.Options) (*Journal, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores the record keyed by its sequence number.
func (j *Journal) Append(record Record) error {
	if j == nil || j.db == nil {
		return nil
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).Put(sequenceKey(record.Sequence), payload)
	})
}

// LastSequence reports the highest journaled sequence number, zero when the
// journal is empty.
func (j *Journal) LastSequence() (uint64, error) {
	if j == nil || j.db == nil {
		return 0, nil
	}
	var last uint64
	err := j.db.View(func(tx *bolt.Tx) error {
		key, _ := tx.Bucket(bucketRecords).Cursor().Last()
		if len(key) == 8 {
			last = binary.BigEndian.Uint64(key)
		}
		return nil
	})
	return last, err
}

// ReadFrom returns all records with a sequence strictly greater than the
// supplied cursor, in order.
func (j *Journal) ReadFrom(cursor uint64) ([]Record, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	if cursor == math.MaxUint64 {
		// cursor+1 would wrap to zero and replay the whole journal.
		return nil, nil
	}
	var records []Record
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for key, value := c.Seek(sequenceKey(cursor + 1)); key != nil; key, value = c.Next() {
			var record Record
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
