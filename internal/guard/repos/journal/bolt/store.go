package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/repos/journal"
)

var (
	bucketJournal  = []byte("journal")  // time(8) + id -> JSON JournalEntry
	bucketMessages = []byte("messages") // normalized number -> count(8) + last seen unix nanos(8)
)

type boltStore struct {
	db *bbolt.DB
}

type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketJournal, bucketMessages} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return nil
}

// ensureBucketsFn is a seam for tests.
var ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }

// New opens (or creates) the journal database at path.
func New(path string) (journal.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// RecordBlocked appends entry. Keys sort by entry time so List can walk the
// bucket backwards.
func (s *boltStore) RecordBlocked(entry domain.JournalEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("journal entry requires an id")
	}
	v, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		if b == nil {
			return fmt.Errorf("journal bucket missing")
		}
		return b.Put(journalKey(entry), v)
	})
}

func (s *boltStore) List(limit int) ([]domain.JournalEntry, error) {
	var out []domain.JournalEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketJournal)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e domain.JournalEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode journal entry %x: %w", k, err)
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (s *boltStore) Clear() (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketJournal); b != nil {
			n = b.Stats().KeyN
			if err := tx.DeleteBucket(bucketJournal); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket(bucketJournal)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RecordMessage counts a delivered message from number.
func (s *boltStore) RecordMessage(number string, at time.Time) error {
	if number == "" {
		return fmt.Errorf("message history requires a number")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		if b == nil {
			return fmt.Errorf("messages bucket missing")
		}
		var count uint64
		if v := b.Get([]byte(number)); len(v) == 16 {
			count = binary.BigEndian.Uint64(v[:8])
		}
		v := make([]byte, 16)
		binary.BigEndian.PutUint64(v[:8], count+1)
		binary.BigEndian.PutUint64(v[8:], uint64(at.UnixNano()))
		return b.Put([]byte(number), v)
	})
}

// ContainsNumber reports whether number has delivered a message before. Any
// failure, including a cancelled ctx, answers PresenceUnknown.
func (s *boltStore) ContainsNumber(ctx context.Context, number string) domain.Presence {
	if ctx.Err() != nil || number == "" {
		return domain.PresenceUnknown
	}
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		if b == nil {
			return fmt.Errorf("messages bucket missing")
		}
		found = b.Get([]byte(number)) != nil
		return nil
	})
	if err != nil {
		return domain.PresenceUnknown
	}
	return domain.PresenceOf(found)
}

func (s *boltStore) Stats() journal.Stats {
	var st journal.Stats
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketJournal); b != nil {
			st.Entries = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMessages); b != nil {
			st.Senders = uint64(b.Stats().KeyN)
		}
		return nil
	})
	return st
}

func journalKey(e domain.JournalEntry) []byte {
	var ts int64
	if !e.Time.IsZero() {
		ts = e.Time.UnixNano()
	}
	k := make([]byte, 8, 8+len(e.ID))
	binary.BigEndian.PutUint64(k, uint64(ts))
	return append(k, e.ID...)
}

var _ journal.Store = (*boltStore)(nil)
