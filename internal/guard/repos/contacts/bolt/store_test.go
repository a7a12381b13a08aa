package bolt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/callguard/internal/guard/domain"
)

func tempDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "contacts.db")
}

func openStore(t *testing.T) *boltStore {
	t.Helper()
	dbPath := tempDB(t)
	st, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(); _ = os.Remove(dbPath) })
	return st.(*boltStore)
}

func entry(id string, list domain.ListType, name string, nums ...domain.ContactNumber) domain.ContactEntry {
	return domain.ContactEntry{
		ID:        id,
		Name:      name,
		List:      list,
		Numbers:   nums,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestBoltStore_PutGetRoundTrip(t *testing.T) {
	st := openStore(t)

	// empty DB -> miss
	if _, ok, err := st.Get("nope"); err != nil || ok {
		t.Fatalf("expected empty miss, got ok=%v err=%v", ok, err)
	}

	want := entry("c1", domain.ListBlack, "Spammer", domain.Exact("+15551111"), domain.Partial("2222"))
	if err := st.Put(want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := st.Get("c1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Name != want.Name || got.List != want.List || !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if len(got.Numbers) != 2 || got.Numbers[0] != want.Numbers[0] || got.Numbers[1] != want.Numbers[1] {
		t.Fatalf("unexpected numbers: %+v", got.Numbers)
	}
}

func TestBoltStore_PutRejectsInvalid(t *testing.T) {
	st := openStore(t)
	err := st.Put(domain.ContactEntry{ID: "x", List: domain.ListBlack})
	if !errors.Is(err, domain.ErrInvalidContact) {
		t.Fatalf("expected ErrInvalidContact, got %v", err)
	}
}

func TestBoltStore_FindByNumber_ExactAndPartial(t *testing.T) {
	st := openStore(t)
	if err := st.Put(entry("p", domain.ListBlack, "Partial", domain.Partial("1234"))); err != nil {
		t.Fatalf("Put partial: %v", err)
	}
	if err := st.Put(entry("e", domain.ListWhite, "Exact", domain.Exact("+15559999"))); err != nil {
		t.Fatalf("Put exact: %v", err)
	}

	cases := []struct {
		query string
		want  []string
	}{
		{query: "+155551234", want: []string{"p"}},
		{query: "1234", want: []string{"p"}},
		{query: "+15555432", want: nil},
		{query: "+15559999", want: []string{"e"}},
		{query: "15559999", want: nil}, // exact numbers never match by suffix
		{query: "", want: nil},
	}
	for _, tc := range cases {
		got, err := st.FindByNumber(tc.query)
		if err != nil {
			t.Fatalf("FindByNumber(%q): %v", tc.query, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("FindByNumber(%q) = %d entries; want %d", tc.query, len(got), len(tc.want))
		}
		for i := range got {
			if got[i].ID != tc.want[i] {
				t.Fatalf("FindByNumber(%q)[%d] = %s; want %s", tc.query, i, got[i].ID, tc.want[i])
			}
		}
	}
}

func TestBoltStore_FindByNumber_DedupesOwner(t *testing.T) {
	st := openStore(t)
	// both numbers are suffixes of the query and belong to one contact
	if err := st.Put(entry("c", domain.ListBlack, "", domain.Partial("1234"), domain.Partial("51234"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := st.FindByNumber("+155551234")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected one entry, got %d err=%v", len(got), err)
	}
}

func TestBoltStore_PutDuplicateAcrossContacts(t *testing.T) {
	st := openStore(t)
	if err := st.Put(entry("a", domain.ListBlack, "A", domain.Exact("+1555"))); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	err := st.Put(entry("b", domain.ListWhite, "B", domain.Exact("+1666"), domain.Exact("+1555")))
	var dup *domain.DuplicateNumberError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNumberError, got %v", err)
	}
	if dup.Number != "+1555" || dup.ExistingID != "a" || dup.ExistingList != domain.ListBlack {
		t.Fatalf("unexpected duplicate detail: %+v", dup)
	}
	// the failed transaction wrote nothing
	if _, ok, _ := st.Get("b"); ok {
		t.Fatalf("b must not exist after failed put")
	}
	owners, err := st.Owners([]string{"+1666"})
	if err != nil || len(owners) != 0 {
		t.Fatalf("expected +1666 unowned, got %v err=%v", owners, err)
	}
}

func TestBoltStore_PutReplaceRewritesIndex(t *testing.T) {
	st := openStore(t)
	e := entry("c", domain.ListBlack, "C", domain.Exact("+1111"), domain.Exact("+2222"))
	if err := st.Put(e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e.List = domain.ListWhite
	e.Numbers = []domain.ContactNumber{domain.Exact("+2222")}
	if err := st.Put(e); err != nil {
		t.Fatalf("replace: %v", err)
	}
	owners, err := st.Owners([]string{"+1111", "+2222"})
	if err != nil {
		t.Fatalf("Owners: %v", err)
	}
	if _, ok := owners["+1111"]; ok {
		t.Fatalf("stale number +1111 still indexed")
	}
	if o := owners["+2222"]; o.ContactID != "c" || o.List != domain.ListWhite {
		t.Fatalf("unexpected owner: %+v", o)
	}
}

func TestBoltStore_ListAndDelete(t *testing.T) {
	st := openStore(t)
	_ = st.Put(entry("b1", domain.ListBlack, "B1", domain.Exact("+1")))
	_ = st.Put(entry("b2", domain.ListBlack, "B2", domain.Exact("+2")))
	_ = st.Put(entry("w1", domain.ListWhite, "W1", domain.Exact("+3")))

	blacks, err := st.List(domain.ListBlack)
	if err != nil || len(blacks) != 2 {
		t.Fatalf("List black: %d err=%v", len(blacks), err)
	}
	ok, err := st.Delete("b1")
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	ok, err = st.Delete("b1")
	if err != nil || ok {
		t.Fatalf("second Delete: ok=%v err=%v", ok, err)
	}
	nums, err := st.Numbers()
	if err != nil || len(nums) != 2 {
		t.Fatalf("Numbers after delete = %v err=%v", nums, err)
	}
	if found, _ := st.FindByNumber("+1"); len(found) != 0 {
		t.Fatalf("deleted number still found: %+v", found)
	}
}

func TestBoltStore_StatsVersion(t *testing.T) {
	st := openStore(t)
	fixed := time.Unix(1700000123, 0)
	st.now = func() time.Time { return fixed }

	if s := st.Stats(); s.Version != 0 || s.Contacts != 0 {
		t.Fatalf("unexpected empty stats: %+v", s)
	}
	_ = st.Put(entry("a", domain.ListBlack, "A", domain.Exact("+1"), domain.Exact("+2")))
	_, _ = st.Delete("a")
	_ = st.Put(entry("b", domain.ListWhite, "B", domain.Exact("+3")))
	s := st.Stats()
	if s.Version != 3 || s.Contacts != 1 || s.Numbers != 1 || s.UpdatedUnix != fixed.Unix() {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

type fakeBucketCreator struct{ errs map[string]error }

func (f fakeBucketCreator) CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error) {
	if err := f.errs[string(name)]; err != nil {
		return nil, err
	}
	return nil, nil
}

// Test the error paths for bucket creation by temporarily replacing ensureBucketsFn.
func TestNew_EnsureBucketsErrors(t *testing.T) {
	for _, fail := range []string{string(bucketContacts), string(bucketNumbers), string(bucketMeta)} {
		t.Run(fail, func(t *testing.T) {
			old := ensureBucketsFn
			ensureBucketsFn = func(tx bucketCreator) error {
				return ensureBuckets(fakeBucketCreator{errs: map[string]error{fail: assertErr{}}})
			}
			defer func() { ensureBucketsFn = old }()

			dbPath := tempDB(t)
			st, err := New(dbPath)
			if err == nil || st != nil {
				t.Fatalf("expected error from New when %s fails", fail)
			}
		})
	}
}

// Ensure New returns an error when the DB file cannot be opened (non-existent parent dir).
func TestNew_OpenError(t *testing.T) {
	badPath := filepath.Join(t.TempDir(), "no-such-dir", "contacts.db")
	st, err := New(badPath)
	if err == nil || st != nil {
		t.Fatalf("expected New to fail when parent directory does not exist")
	}
}

func TestMissingBuckets(t *testing.T) {
	st := openStore(t)
	if err := st.db.Update(func(tx *bbolt.Tx) error { return tx.DeleteBucket(bucketNumbers) }); err != nil {
		t.Fatalf("delete numbers bucket: %v", err)
	}
	if got, err := st.FindByNumber("+1"); err != nil || got != nil {
		t.Fatalf("expected empty find, got %v err=%v", got, err)
	}
	if err := st.Put(entry("a", domain.ListBlack, "A", domain.Exact("+1"))); err == nil {
		t.Fatalf("expected Put to fail without buckets")
	}
}

func TestDecodeContact_Corrupt(t *testing.T) {
	good := encodeContact(entry("x", domain.ListBlack, "X", domain.Exact("+1")))
	for _, v := range [][]byte{nil, good[:5], good[:len(good)-1], append(append([]byte{}, good...), 0)} {
		if _, err := decodeContact("x", v); !errors.Is(err, errCorrupt) {
			t.Fatalf("expected errCorrupt for %v, got %v", v, err)
		}
	}
	if _, err := decodeOwner([]byte{1}); !errors.Is(err, errCorrupt) {
		t.Fatalf("expected errCorrupt for short owner, got %v", err)
	}
}

func TestEncodeContact_ZeroTime(t *testing.T) {
	e := entry("z", domain.ListWhite, "", domain.Exact("+1"))
	e.CreatedAt = time.Time{}
	got, err := decodeContact("z", encodeContact(e))
	if err != nil || !got.CreatedAt.IsZero() {
		t.Fatalf("expected zero CreatedAt, got %v err=%v", got.CreatedAt, err)
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "assert error" }
