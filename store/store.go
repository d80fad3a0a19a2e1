// Package store persists the feed relay state: the conditional-fetch
// validators (ETag / Last-Modified) and the set of entry ids already
// delivered. State lives in a single TOML file guarded by an advisory
// file lock, so several processes sharing one state file never
// interleave a read-modify-write cycle.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gofrs/flock"
)

// ErrCorruptState reports an unparseable state file. This is
// deliberately not recovered from: silently resetting the file would
// replay every entry the feed still carries.
var ErrCorruptState = errors.New("corrupt state file")

const lockSuffix = ".lock"

// Store is a handle to a TOML state file. The zero value is not
// usable; construct with New.
type Store struct {
	path string
	lock *flock.Flock
}

func New(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + lockSuffix),
	}
}

// state mirrors the on-disk layout:
//
//	[feed]
//	etag = "..."
//	modified = "..."
//	entries_seen = ["id1", "id2"]
type state struct {
	Feed feedState `toml:"feed"`
}

type feedState struct {
	ETag        string   `toml:"etag,omitempty"`
	Modified    string   `toml:"modified,omitempty"`
	EntriesSeen []string `toml:"entries_seen,omitempty"`
}

// Init creates an empty state file if none exists. Idempotent.
func (s *Store) Init() error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create state file at '%s': %w", s.path, err)
	}
	return f.Close()
}

// FeedHeaders returns the stored conditional-fetch validators. Both
// are empty when the file or the keys are absent; absence is a valid
// state, not an error.
func (s *Store) FeedHeaders() (etag, modified string, err error) {
	if err := s.lock.Lock(); err != nil {
		return "", "", fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Unlock()

	st, err := s.read()
	if err != nil {
		return "", "", err
	}
	return st.Feed.ETag, st.Feed.Modified, nil
}

// SaveFeedHeaders stores new validators. Empty arguments leave the
// corresponding stored value untouched, and the seen-id list is
// carried over unchanged.
func (s *Store) SaveFeedHeaders(etag, modified string) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	if etag != "" {
		st.Feed.ETag = etag
	}
	if modified != "" {
		st.Feed.Modified = modified
	}
	return s.write(st)
}

// SeenIDs returns the set of entry ids already delivered, empty when
// the store is missing.
func (s *Store) SeenIDs() (map[string]struct{}, error) {
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Unlock()

	st, err := s.read()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(st.Feed.EntriesSeen))
	for _, id := range st.Feed.EntriesSeen {
		seen[id] = struct{}{}
	}
	return seen, nil
}

// AppendSeenIDs merges ids into the stored seen set and persists the
// result. Ids already present are skipped, so re-appending is a no-op.
func (s *Store) AppendSeenIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock state file: %w", err)
	}
	defer s.lock.Unlock()

	st, err := s.read()
	if err != nil {
		return err
	}
	present := make(map[string]struct{}, len(st.Feed.EntriesSeen))
	for _, id := range st.Feed.EntriesSeen {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		st.Feed.EntriesSeen = append(st.Feed.EntriesSeen, id)
	}
	return s.write(st)
}

// read loads the current snapshot. Caller must hold the lock.
func (s *Store) read() (state, error) {
	var st state
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("failed to read state file at '%s': %w", s.path, err)
	}
	if err := toml.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("%w at '%s': %v", ErrCorruptState, s.path, err)
	}
	return st, nil
}

// write replaces the state file with a new snapshot in one rename, so
// readers observe either the previous state or the new one, never a
// torn mix. Caller must hold the lock.
func (s *Store) write(st state) error {
	blob, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
