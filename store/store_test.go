package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "state.toml"))
}

func TestInit_CreatesFile(t *testing.T) {
	s := newTestStore(t)

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if _, err := os.Stat(s.path); err != nil {
		t.Errorf("state file was not created: %v", err)
	}

	// Second Init must be a no-op
	if err := s.Init(); err != nil {
		t.Errorf("repeated Init failed: %v", err)
	}
}

func TestInit_KeepsExistingContent(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveFeedHeaders("W/\"abc\"", ""); err != nil {
		t.Fatalf("SaveFeedHeaders failed: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	etag, _, err := s.FeedHeaders()
	if err != nil {
		t.Fatalf("FeedHeaders failed: %v", err)
	}
	if etag != "W/\"abc\"" {
		t.Errorf("Init disturbed existing state: etag = %q", etag)
	}
}

func TestFeedHeaders_MissingStore(t *testing.T) {
	s := newTestStore(t)

	etag, modified, err := s.FeedHeaders()
	if err != nil {
		t.Fatalf("FeedHeaders on missing store failed: %v", err)
	}
	if etag != "" || modified != "" {
		t.Errorf("expected empty headers, got etag=%q modified=%q", etag, modified)
	}
}

func TestSeenIDs_MissingStore(t *testing.T) {
	s := newTestStore(t)

	seen, err := s.SeenIDs()
	if err != nil {
		t.Fatalf("SeenIDs on missing store failed: %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("expected empty set, got %d ids", len(seen))
	}
}

func TestSaveFeedHeaders_PartialUpdate(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveFeedHeaders("etag-1", "mod-1"); err != nil {
		t.Fatalf("SaveFeedHeaders failed: %v", err)
	}
	// Empty etag must not clear the stored one
	if err := s.SaveFeedHeaders("", "mod-2"); err != nil {
		t.Fatalf("SaveFeedHeaders failed: %v", err)
	}

	etag, modified, err := s.FeedHeaders()
	if err != nil {
		t.Fatalf("FeedHeaders failed: %v", err)
	}
	if etag != "etag-1" {
		t.Errorf("etag = %q, want etag-1", etag)
	}
	if modified != "mod-2" {
		t.Errorf("modified = %q, want mod-2", modified)
	}
}

func TestPartialUpdateIsolation(t *testing.T) {
	s := newTestStore(t)

	if err := s.AppendSeenIDs([]string{"a", "b"}); err != nil {
		t.Fatalf("AppendSeenIDs failed: %v", err)
	}
	if err := s.SaveFeedHeaders("etag-x", "mod-x"); err != nil {
		t.Fatalf("SaveFeedHeaders failed: %v", err)
	}
	if err := s.AppendSeenIDs([]string{"c"}); err != nil {
		t.Fatalf("AppendSeenIDs failed: %v", err)
	}

	etag, modified, err := s.FeedHeaders()
	if err != nil {
		t.Fatalf("FeedHeaders failed: %v", err)
	}
	if etag != "etag-x" || modified != "mod-x" {
		t.Errorf("headers disturbed by seen-id writes: etag=%q modified=%q", etag, modified)
	}

	seen, err := s.SeenIDs()
	if err != nil {
		t.Fatalf("SeenIDs failed: %v", err)
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, ok := seen[id]; !ok {
			t.Errorf("id %q lost after header write", id)
		}
	}
}

func TestAppendSeenIDs_Idempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.AppendSeenIDs([]string{"a", "b"}); err != nil {
		t.Fatalf("AppendSeenIDs failed: %v", err)
	}
	if err := s.AppendSeenIDs([]string{"b", "c"}); err != nil {
		t.Fatalf("AppendSeenIDs failed: %v", err)
	}

	seen, err := s.SeenIDs()
	if err != nil {
		t.Fatalf("SeenIDs failed: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("got %d ids, want 3: %v", len(seen), seen)
	}
}

func TestCorruptState(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(s.path, []byte("feed = [not valid toml"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	if _, _, err := s.FeedHeaders(); !errors.Is(err, ErrCorruptState) {
		t.Errorf("FeedHeaders error = %v, want ErrCorruptState", err)
	}
	if _, err := s.SeenIDs(); !errors.Is(err, ErrCorruptState) {
		t.Errorf("SeenIDs error = %v, want ErrCorruptState", err)
	}
	if err := s.AppendSeenIDs([]string{"x"}); !errors.Is(err, ErrCorruptState) {
		t.Errorf("AppendSeenIDs error = %v, want ErrCorruptState", err)
	}
}

func TestConcurrentAppends_NoLostUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")

	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		// Separate Store values share only the file, like two
		// processes would.
		go func(s *Store, prefix string) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := s.AppendSeenIDs([]string{fmt.Sprintf("%s-%d", prefix, i)}); err != nil {
					t.Errorf("AppendSeenIDs failed: %v", err)
					return
				}
			}
		}(New(path), fmt.Sprintf("w%d", w))
	}
	wg.Wait()

	seen, err := New(path).SeenIDs()
	if err != nil {
		t.Fatalf("SeenIDs failed: %v", err)
	}
	if len(seen) != 2*perWriter {
		t.Errorf("got %d ids, want %d (lost update)", len(seen), 2*perWriter)
	}
	for w := 0; w < 2; w++ {
		for i := 0; i < perWriter; i++ {
			id := fmt.Sprintf("w%d-%d", w, i)
			if _, ok := seen[id]; !ok {
				t.Errorf("id %q missing from final set", id)
			}
		}
	}
}
