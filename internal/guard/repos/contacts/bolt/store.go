package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/repos/contacts"
)

var (
	bucketContacts = []byte("contacts") // id -> encoded contact row
	bucketNumbers  = []byte("numbers")  // normalized number -> list, mode, owner id
	bucketMeta     = []byte("meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

var errCorrupt = errors.New("corrupt contact record")

// boltStore implements contacts.Store using bbolt. The numbers bucket is the
// store-wide unique index: a number key exists at most once, whatever its list.
type boltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// bucketCreator is the subset of *bbolt.Tx used to create buckets.
type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

// ensureBuckets creates every bucket the store needs.
func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketContacts, bucketNumbers, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return nil
}

// ensureBucketsFn is a seam for tests.
var ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (contacts.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error { return ensureBucketsFn(tx) }); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db, now: time.Now}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Get(id string) (domain.ContactEntry, bool, error) {
	var (
		e  domain.ContactEntry
		ok bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketContacts)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}
		var err error
		e, err = decodeContact(id, v)
		ok = err == nil
		return err
	})
	return e, ok, err
}

// FindByNumber walks the suffixes of the normalized query, longest first, and
// keeps the indexed numbers whose mode matches the query.
func (s *boltStore) FindByNumber(number string) ([]domain.ContactEntry, error) {
	var out []domain.ContactEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		nb := tx.Bucket(bucketNumbers)
		cb := tx.Bucket(bucketContacts)
		if nb == nil || cb == nil {
			return nil
		}
		seen := make(map[string]struct{})
		for _, suffix := range phone.Suffixes(number) {
			v := nb.Get([]byte(suffix))
			if v == nil {
				continue
			}
			o, err := decodeOwner(v)
			if err != nil {
				return fmt.Errorf("number %s: %w", suffix, err)
			}
			if !(domain.ContactNumber{Number: suffix, Mode: o.Mode}).Matches(number) {
				continue
			}
			if _, dup := seen[o.ContactID]; dup {
				continue
			}
			seen[o.ContactID] = struct{}{}
			cv := cb.Get([]byte(o.ContactID))
			if cv == nil {
				return fmt.Errorf("number %s: owner %s: %w", suffix, o.ContactID, errCorrupt)
			}
			e, err := decodeContact(o.ContactID, cv)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

func (s *boltStore) List(list domain.ListType) ([]domain.ContactEntry, error) {
	var out []domain.ContactEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketContacts)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			e, err := decodeContact(string(k), v)
			if err != nil {
				return err
			}
			if e.List == list {
				out = append(out, e)
			}
			return nil
		})
	})
	return out, err
}

func (s *boltStore) Owners(numbers []string) (map[string]contacts.Owner, error) {
	out := make(map[string]contacts.Owner)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNumbers)
		if b == nil {
			return nil
		}
		for _, n := range numbers {
			v := b.Get([]byte(n))
			if v == nil {
				continue
			}
			o, err := decodeOwner(v)
			if err != nil {
				return fmt.Errorf("number %s: %w", n, err)
			}
			out[n] = o
		}
		return nil
	})
	return out, err
}

// Put inserts or replaces the entry and rewrites its number index in one
// transaction. A number held by another contact fails the whole write with
// *domain.DuplicateNumberError.
func (s *boltStore) Put(e domain.ContactEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		cb, nb, err := writeBuckets(tx)
		if err != nil {
			return err
		}
		if old := cb.Get([]byte(e.ID)); old != nil {
			prev, err := decodeContact(e.ID, old)
			if err != nil {
				return err
			}
			for _, n := range prev.Numbers {
				if err := nb.Delete([]byte(n.Number)); err != nil {
					return err
				}
			}
		}
		for _, n := range e.Numbers {
			if v := nb.Get([]byte(n.Number)); v != nil {
				o, err := decodeOwner(v)
				if err != nil {
					return fmt.Errorf("number %s: %w", n.Number, err)
				}
				return &domain.DuplicateNumberError{Number: n.Number, ExistingID: o.ContactID, ExistingList: o.List}
			}
			owner := contacts.Owner{ContactID: e.ID, List: e.List, Mode: n.Mode}
			if err := nb.Put([]byte(n.Number), encodeOwner(owner)); err != nil {
				return err
			}
		}
		if err := cb.Put([]byte(e.ID), encodeContact(e)); err != nil {
			return err
		}
		return writeMeta(tx, s.now())
	})
}

func (s *boltStore) Delete(id string) (bool, error) {
	var deleted bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		cb, nb, err := writeBuckets(tx)
		if err != nil {
			return err
		}
		v := cb.Get([]byte(id))
		if v == nil {
			return nil
		}
		e, err := decodeContact(id, v)
		if err != nil {
			return err
		}
		for _, n := range e.Numbers {
			if err := nb.Delete([]byte(n.Number)); err != nil {
				return err
			}
		}
		if err := cb.Delete([]byte(id)); err != nil {
			return err
		}
		deleted = true
		return writeMeta(tx, s.now())
	})
	return deleted, err
}

func (s *boltStore) Numbers() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNumbers)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out, err
}

func (s *boltStore) Stats() contacts.StoreStats {
	st := contacts.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketContacts); b != nil {
			st.Contacts = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketNumbers); b != nil {
			st.Numbers = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return st
}

func writeBuckets(tx *bbolt.Tx) (*bbolt.Bucket, *bbolt.Bucket, error) {
	cb := tx.Bucket(bucketContacts)
	nb := tx.Bucket(bucketNumbers)
	if cb == nil || nb == nil {
		return nil, nil, fmt.Errorf("contact buckets missing")
	}
	return cb, nb, nil
}

// writeMeta bumps the version counter and records the write time.
func writeMeta(tx *bbolt.Tx, now time.Time) error {
	b := tx.Bucket(bucketMeta)
	if b == nil {
		return fmt.Errorf("meta bucket missing")
	}
	var version uint64
	if v := b.Get(keyVersion); len(v) == 8 {
		version = binary.BigEndian.Uint64(v)
	}
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version+1)
	binary.BigEndian.PutUint64(ubuf, uint64(now.Unix()))
	if err := b.Put(keyVersion, vbuf); err != nil {
		return err
	}
	return b.Put(keyUpdated, ubuf)
}

var _ contacts.Store = (*boltStore)(nil)
