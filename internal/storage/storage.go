package storage

import (
	"encoding/binary"
	"encoding/json"
	"strconv"
	"time"

	bolt "github.com/boltdb/bolt"

	"telegram-cipher-bot/internal/memory"
)

const bucketHistory = "history" // parent bucket, one child bucket per user id

// DB is a bolt backed memory.Store.
type DB struct {
	db *bolt.DB
}

var _ memory.Store = (*DB)(nil)

// Open opens the database file and creates buckets if needed.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketHistory))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

// Close releases the database file.
func (s *DB) Close() error {
	return s.db.Close()
}

func userKey(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}

// Append stores a message at the end of the user's history.
func (s *DB) Append(userID int64, msg memory.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket([]byte(bucketHistory))
		ub, err := hb.CreateBucketIfNotExists(userKey(userID))
		if err != nil {
			return err
		}
		id, err := ub.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return ub.Put(key, data)
	})
}

// Get returns the user's history, oldest first.
func (s *DB) Get(userID int64) ([]memory.Message, error) {
	var items []memory.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		ub := tx.Bucket([]byte(bucketHistory)).Bucket(userKey(userID))
		if ub == nil {
			return nil
		}
		return ub.ForEach(func(_, v []byte) error {
			var m memory.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			items = append(items, m)
			return nil
		})
	})
	return items, err
}

// count returns the number of stored messages for a user.
func (s *DB) count(userID int64) (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		ub := tx.Bucket([]byte(bucketHistory)).Bucket(userKey(userID))
		if ub == nil {
			return nil
		}
		count = ub.Stats().KeyN
		return nil
	})
	return count, err
}

// Trim ensures the stored messages do not exceed maxLen.
func (s *DB) Trim(userID int64, maxLen int) error {
	if maxLen <= 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		ub := tx.Bucket([]byte(bucketHistory)).Bucket(userKey(userID))
		if ub == nil {
			return nil
		}
		excess := ub.Stats().KeyN - maxLen
		c := ub.Cursor()
		for i := 0; i < excess; i++ {
			k, _ := c.First()
			if k == nil {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear deletes the user's history and returns the number of messages removed.
func (s *DB) Clear(userID int64) (int, error) {
	var count int
	err := s.db.Update(func(tx *bolt.Tx) error {
		hb := tx.Bucket([]byte(bucketHistory))
		ub := hb.Bucket(userKey(userID))
		if ub == nil {
			return nil
		}
		count = ub.Stats().KeyN
		return hb.DeleteBucket(userKey(userID))
	})
	return count, err
}
