// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists the manifest of downloaded papers and the
// hierarchical record of papers found but withheld.
//
// Store is the only component touching manifest.json and unavailable.json.
// Every Record call takes an in-process mutex and an exclusive file lock,
// loads both files, merges in memory, and replaces each changed file
// atomically.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/pdiddy/oafetch/pkg/types"
)

// File names inside the ledger directory.
const (
	ManifestFile    = "manifest.json"
	UnavailableFile = "unavailable.json"
	lockFile        = ".ledger.lock"
)

// DefaultLockTimeout bounds the wait for another process's lock.
const DefaultLockTimeout = 30 * time.Second

const lockRetryDelay = 50 * time.Millisecond

// Options configures a Store.
type Options struct {
	LockTimeout time.Duration
	Hierarchy   []Dimension
	Logger      *slog.Logger
}

// Store manages the ledger files of one directory.
type Store struct {
	dir       string
	timeout   time.Duration
	hierarchy []Dimension
	logger    *slog.Logger

	mu   sync.Mutex
	lock *flock.Flock
}

// Open prepares a store rooted at dir, creating the directory if needed.
func Open(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistenceError{Op: "open", Path: dir, Err: err}
	}
	s := &Store{
		dir:       dir,
		timeout:   opts.LockTimeout,
		hierarchy: opts.Hierarchy,
		logger:    opts.Logger,
		lock:      flock.New(filepath.Join(dir, lockFile)),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultLockTimeout
	}
	if len(s.hierarchy) == 0 {
		s.hierarchy = DefaultHierarchy
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Dir returns the ledger directory.
func (s *Store) Dir() string { return s.dir }

// Downloaded pairs a downloadable match with the directory it was saved to.
type Downloaded struct {
	Match types.MatchResult
	Path  string
}

// Summary counts what one Record call changed.
type Summary struct {
	Added           int // new manifest entries
	AlreadyPresent  int // downloads whose keys were already in the manifest
	WithheldAdded   int
	WithheldUpdated int
}

// Manifest is a read-only snapshot of manifest.json.
type Manifest struct {
	Entries []types.ManifestEntry
	index   map[string]int
}

func newManifest(entries []types.ManifestEntry) *Manifest {
	m := &Manifest{index: make(map[string]int)}
	for _, e := range entries {
		m.add(e)
	}
	return m
}

func (m *Manifest) add(e types.ManifestEntry) {
	i := len(m.Entries)
	m.Entries = append(m.Entries, e)
	for _, k := range entryKeys(e) {
		if _, ok := m.index[k]; !ok {
			m.index[k] = i
		}
	}
}

// Has reports whether any of keys is already recorded.
func (m *Manifest) Has(keys []string) bool {
	_, ok := m.find(keys)
	return ok
}

func (m *Manifest) find(keys []string) (int, bool) {
	for _, k := range keys {
		if i, ok := m.index[k]; ok {
			return i, true
		}
	}
	return 0, false
}

// Len returns the number of entries.
func (m *Manifest) Len() int { return len(m.Entries) }

func entryKeys(e types.ManifestEntry) []string {
	keys := make([]string, 0, len(e.Keys)+1)
	if e.ID != "" {
		keys = append(keys, e.ID)
	}
	return append(keys, e.Keys...)
}

// NewManifestEntry summarizes a downloaded paper.
func NewManifestEntry(p types.PaperMetadata, path string) types.ManifestEntry {
	return types.ManifestEntry{
		ID:     p.PrimaryKey().String(),
		Keys:   p.KeyStrings(),
		Title:  p.Title,
		Author: strings.Join(p.Authors, ", "),
		Year:   p.Year,
		Path:   path,
	}
}

// NewUnavailableEntry summarizes a withheld paper.
func NewUnavailableEntry(w types.Withheld) types.UnavailableEntry {
	p := w.Match.Paper
	authors := p.Authors
	if authors == nil {
		authors = []string{}
	}
	return types.UnavailableEntry{
		Title:   p.Title,
		Authors: authors,
		Year:    p.Year,
		Reason:  w.Reason,
	}
}

// Manifest loads the current manifest. A missing file is an empty manifest.
func (s *Store) Manifest(ctx context.Context) (*Manifest, error) {
	var entries []types.ManifestEntry
	if err := s.load(ManifestFile, &entries); err != nil {
		return nil, err
	}
	return newManifest(entries), nil
}

// Unavailable loads the current unavailability tree.
func (s *Store) Unavailable(ctx context.Context) (*Node, error) {
	root := NewTree()
	if err := s.load(UnavailableFile, root); err != nil {
		return nil, err
	}
	return root, nil
}

// Record merges downloaded papers into the manifest and withheld papers
// into the unavailability tree under the path built from q. Entries that
// share any identifier with an existing manifest entry are skipped;
// withheld leaves are keyed by title and replaced on rerun. Nothing is
// written if either file cannot be loaded.
func (s *Store) Record(ctx context.Context, downloaded []Downloaded, withheld []types.Withheld, q types.Query) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire(ctx)
	if err != nil {
		return Summary{}, err
	}
	defer unlock()

	manifest, err := s.Manifest(ctx)
	if err != nil {
		return Summary{}, err
	}
	tree, err := s.Unavailable(ctx)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, d := range downloaded {
		entry := NewManifestEntry(d.Match.Paper, d.Path)
		if manifest.Has(entryKeys(entry)) {
			sum.AlreadyPresent++
			continue
		}
		manifest.add(entry)
		sum.Added++
	}

	path := PathFor(q, s.hierarchy)
	for _, w := range withheld {
		if tree.Upsert(path, NewUnavailableEntry(w)) {
			sum.WithheldUpdated++
		} else {
			sum.WithheldAdded++
		}
	}

	if sum.Added > 0 || !s.exists(ManifestFile) {
		if err := s.save(ManifestFile, manifest.entriesOrEmpty()); err != nil {
			return Summary{}, err
		}
	}
	if len(withheld) > 0 || !s.exists(UnavailableFile) {
		if err := s.save(UnavailableFile, tree); err != nil {
			return Summary{}, err
		}
	}

	s.logger.Debug("ledger recorded",
		slog.String("dir", s.dir),
		slog.Int("added", sum.Added),
		slog.Int("already_present", sum.AlreadyPresent),
		slog.Int("withheld_added", sum.WithheldAdded),
		slog.Int("withheld_updated", sum.WithheldUpdated))
	return sum, nil
}

func (m *Manifest) entriesOrEmpty() []types.ManifestEntry {
	if m.Entries == nil {
		return []types.ManifestEntry{}
	}
	return m.Entries
}

// acquire takes the cross-process lock, waiting up to the lock timeout.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err == nil && !ok {
		err = errors.New("lock held by another process")
	}
	if err != nil {
		return nil, &PersistenceError{Op: "lock", Path: s.lock.Path(), Err: err}
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("releasing ledger lock", slog.Any("error", err))
		}
	}, nil
}

func (s *Store) exists(name string) bool {
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// load decodes the named file into v. A missing file leaves v untouched.
func (s *Store) load(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "load", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &PersistenceError{Op: "load", Path: path, Err: fmt.Errorf("decoding: %w", err)}
	}
	return nil
}

// save writes v to a temp file in the ledger directory, syncs it, and
// renames it over the named file.
func (s *Store) save(name string, v any) error {
	path := filepath.Join(s.dir, name)
	fail := func(err error) error {
		return &PersistenceError{Op: "save", Path: path, Err: err}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fail(err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fail(err)
	}
	return nil
}
