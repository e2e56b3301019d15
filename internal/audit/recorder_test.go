package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tallo.app/internal/obs"
)

func init() {
	obs.Init()
}

type fakeStore struct {
	mu      sync.Mutex
	entries []*Entry
	block   chan struct{} // when non-nil, Append waits on it
	err     error
}

func (f *fakeStore) Append(ctx context.Context, entry *Entry) error {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeStore) all() []*Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Entry(nil), f.entries...)
}

func TestRecorderPersistsEntries(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, zerolog.Nop(), 8)

	rec.Record(&Entry{UserID: "u1", OrganizationID: "o1", Action: ActionCreate, ResourceType: "documents"})
	rec.Record(&Entry{UserID: "u2", OrganizationID: "o1", Action: ActionDelete, ResourceType: "documents"})
	rec.Close()

	got := store.all()
	if len(got) != 2 {
		t.Fatalf("persisted %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.ID == "" {
			t.Error("entry missing generated id")
		}
		if e.CreatedAt.IsZero() {
			t.Error("entry missing created_at")
		}
	}
}

func TestRecorderDropsUnderBackpressure(t *testing.T) {
	release := make(chan struct{})
	store := &fakeStore{block: release}
	rec := NewRecorder(store, zerolog.Nop(), 1)

	// First entry is picked up by the worker and parks in Append, second
	// fills the backlog. Any further Record must return immediately.
	rec.Record(&Entry{UserID: "u", OrganizationID: "o", Action: ActionCreate})
	waitForPickup(t, rec)
	rec.Record(&Entry{UserID: "u", OrganizationID: "o", Action: ActionCreate})

	done := make(chan struct{})
	go func() {
		rec.Record(&Entry{UserID: "u", OrganizationID: "o", Action: ActionCreate})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a full backlog")
	}

	close(release)
	rec.Close()

	if got := len(store.all()); got != 2 {
		t.Fatalf("persisted %d entries, want 2 (one dropped)", got)
	}
}

// waitForPickup spins until the worker has taken the queued entry.
func waitForPickup(t *testing.T, rec *Recorder) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.queue) == 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("worker never picked up the first entry")
}

func TestRecorderIgnoresNilAndAfterClose(t *testing.T) {
	store := &fakeStore{}
	rec := NewRecorder(store, zerolog.Nop(), 8)

	rec.Record(nil)
	rec.Close()
	rec.Record(&Entry{UserID: "u", OrganizationID: "o", Action: ActionCreate})
	rec.Close() // second close is a no-op

	if got := len(store.all()); got != 0 {
		t.Fatalf("persisted %d entries, want 0", got)
	}
}
