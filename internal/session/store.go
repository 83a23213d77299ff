package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// ErrSessionStore wraps I/O or corruption failures (spec §7 SessionStoreError).
// Callers log it, reset the affected session, and continue — it never
// terminates the process.
var ErrSessionStore = errors.New("session: store error")

// Store is a Key→Context map with durable, one-file-per-session backing.
// Each key has its own lock; cross-session operations never contend.
type Store struct {
	root string

	mu    sync.Mutex // guards locks map only
	locks map[Key]*sync.Mutex
}

// NewStore opens a file-backed store rooted at dir (typically
// config.Config.SessionsDir()). The directory is created lazily on write.
func NewStore(dir string) *Store {
	return &Store{root: dir, locks: make(map[Key]*sync.Mutex)}
}

func (s *Store) lockFor(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) pathFor(key Key) string {
	return filepath.Join(s.root, string(key.Platform), key.String()+".json")
}

// LoadOrCreate returns the persisted context for key, or a freshly minted
// one (persisted immediately) if none exists or the file is corrupt.
func (s *Store) LoadOrCreate(key Key, source Source, now time.Time) (*Context, error) {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	ctx, err := s.read(key)
	if err == nil {
		return ctx, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		// Corrupt file: log-and-reset per spec §7, don't propagate as fatal.
		ctx = fresh(key, source, now)
		if werr := s.write(key, ctx); werr != nil {
			return nil, fmt.Errorf("%w: recreate after corrupt read: %v", ErrSessionStore, werr)
		}
		return ctx, nil
	}

	ctx = fresh(key, source, now)
	if werr := s.write(key, ctx); werr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStore, werr)
	}
	return ctx, nil
}

// Append adds entries to key's history and bumps turn_count and
// last_activity_at atomically with respect to other mutators of the same
// key.
func (s *Store) Append(key Key, now time.Time, entries ...Entry) (*Context, error) {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	ctx, err := s.read(key)
	if err != nil {
		return nil, fmt.Errorf("%w: append to missing session %v: %v", ErrSessionStore, key, err)
	}
	ctx.History = append(ctx.History, entries...)
	ctx.TurnCount++
	if now.After(ctx.LastActivityAt) {
		ctx.LastActivityAt = now
	}
	if err := s.write(key, ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStore, err)
	}
	return ctx, nil
}

// Touch bumps last_activity_at without appending history.
func (s *Store) Touch(key Key, now time.Time) error {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	ctx, err := s.read(key)
	if err != nil {
		return fmt.Errorf("%w: touch missing session %v: %v", ErrSessionStore, key, err)
	}
	if now.After(ctx.LastActivityAt) {
		ctx.LastActivityAt = now
	}
	return s.write(key, ctx)
}

// Reset atomically replaces key's context with an empty-history context,
// preserving Source and CreatedAt.
func (s *Store) Reset(key Key, now time.Time) (*Context, error) {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()

	ctx, err := s.read(key)
	if err != nil {
		return nil, fmt.Errorf("%w: reset missing session %v: %v", ErrSessionStore, key, err)
	}
	reset := fresh(key, ctx.Source, now)
	reset.CreatedAt = ctx.CreatedAt
	if err := s.write(key, reset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionStore, err)
	}
	return reset, nil
}

func (s *Store) read(key Key) (*Context, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		return nil, err
	}
	var ctx Context
	if err := json.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("corrupt session blob: %w", err)
	}
	ctx.Key = key
	return &ctx, nil
}

// write persists ctx via write-temp-then-rename, the crash-safe strategy
// for a one-file-per-key store: a reader never observes a half-written
// file, and an interrupted write leaves the previous version intact.
func (s *Store) write(key Key, ctx *Context) error {
	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-session-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ApplyResetIfDue runs the Reset Policy Engine against ctx and, if it fires,
// replaces the persisted context; it returns the context that should drive
// the current turn (possibly the freshly reset one).
func ApplyResetIfDue(s *Store, policy config.ResetPolicy, ctx *Context, now time.Time) (*Context, bool, error) {
	if !ShouldReset(policy, ctx, now) {
		return ctx, false, nil
	}
	reset, err := s.Reset(ctx.Key, now)
	if err != nil {
		return nil, false, err
	}
	return reset, true, nil
}
