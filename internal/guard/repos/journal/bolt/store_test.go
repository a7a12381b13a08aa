package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/callguard/internal/guard/domain"
)

func openStore(t *testing.T) *boltStore {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st.(*boltStore)
}

func entryAt(id string, at time.Time) domain.JournalEntry {
	return domain.JournalEntry{ID: id, Kind: "sms", Number: "+15551111", Name: "Spammer", Reason: "BLACK_LIST", Body: "win!", Time: at}
}

func TestJournal_RecordAndListNewestFirst(t *testing.T) {
	st := openStore(t)
	base := time.Unix(1700000000, 0).UTC()
	// inserted out of order
	for _, i := range []int{2, 0, 1} {
		if err := st.RecordBlocked(entryAt(fmt.Sprintf("e%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("RecordBlocked: %v", err)
		}
	}

	all, err := st.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "e2" || all[1].ID != "e1" || all[2].ID != "e0" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if !all[0].Time.Equal(base.Add(2*time.Minute)) || all[0].Body != "win!" || all[0].Reason != "BLACK_LIST" {
		t.Fatalf("unexpected decoded entry: %+v", all[0])
	}

	two, err := st.List(2)
	if err != nil || len(two) != 2 || two[0].ID != "e2" {
		t.Fatalf("List(2) = %+v err=%v", two, err)
	}
}

func TestJournal_RecordRequiresID(t *testing.T) {
	st := openStore(t)
	if err := st.RecordBlocked(domain.JournalEntry{}); err == nil {
		t.Fatalf("expected error for entry without id")
	}
}

func TestJournal_SameInstantKeepsBoth(t *testing.T) {
	st := openStore(t)
	at := time.Unix(1700000000, 0)
	_ = st.RecordBlocked(entryAt("a", at))
	_ = st.RecordBlocked(entryAt("b", at))
	if got := st.Stats().Entries; got != 2 {
		t.Fatalf("entries=%d want=2", got)
	}
}

func TestJournal_Clear(t *testing.T) {
	st := openStore(t)
	_ = st.RecordBlocked(entryAt("a", time.Unix(1, 0)))
	_ = st.RecordBlocked(entryAt("b", time.Unix(2, 0)))
	n, err := st.Clear()
	if err != nil || n != 2 {
		t.Fatalf("Clear = %d err=%v", n, err)
	}
	all, err := st.List(0)
	if err != nil || len(all) != 0 {
		t.Fatalf("expected empty journal after clear, got %+v err=%v", all, err)
	}
	// the journal stays writable
	if err := st.RecordBlocked(entryAt("c", time.Unix(3, 0))); err != nil {
		t.Fatalf("RecordBlocked after clear: %v", err)
	}
}

func TestHistory_RecordAndContains(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	if got := st.ContainsNumber(ctx, "+15552222"); got != domain.PresenceAbsent {
		t.Fatalf("empty history = %v; want absent", got)
	}
	if err := st.RecordMessage("+15552222", time.Unix(10, 0)); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if err := st.RecordMessage("+15552222", time.Unix(20, 0)); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if got := st.ContainsNumber(ctx, "+15552222"); got != domain.PresencePresent {
		t.Fatalf("after record = %v; want present", got)
	}
	if got := st.Stats().Senders; got != 1 {
		t.Fatalf("senders=%d want=1", got)
	}
	if err := st.RecordMessage("", time.Unix(0, 0)); err == nil {
		t.Fatalf("expected error for empty number")
	}
}

func TestHistory_UnknownPaths(t *testing.T) {
	st := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := st.ContainsNumber(ctx, "+1"); got != domain.PresenceUnknown {
		t.Fatalf("cancelled ctx = %v; want unknown", got)
	}
	if got := st.ContainsNumber(context.Background(), ""); got != domain.PresenceUnknown {
		t.Fatalf("empty number = %v; want unknown", got)
	}
	if err := st.db.Update(func(tx *bbolt.Tx) error { return tx.DeleteBucket(bucketMessages) }); err != nil {
		t.Fatalf("delete bucket: %v", err)
	}
	if got := st.ContainsNumber(context.Background(), "+1"); got != domain.PresenceUnknown {
		t.Fatalf("missing bucket = %v; want unknown", got)
	}
}

type fakeBucketCreator struct{ fail string }

func (f fakeBucketCreator) CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error) {
	if string(name) == f.fail {
		return nil, fmt.Errorf("cannot create %s", name)
	}
	return nil, nil
}

func TestNew_EnsureBucketsError(t *testing.T) {
	old := ensureBucketsFn
	ensureBucketsFn = func(bucketCreator) error { return ensureBuckets(fakeBucketCreator{fail: string(bucketMessages)}) }
	defer func() { ensureBucketsFn = old }()

	st, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err == nil || st != nil {
		t.Fatalf("expected New to fail")
	}
}
