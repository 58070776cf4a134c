// Package session binds a file window and its line index under a path key,
// and provides the facade the host UI calls. Sessions live until an
// explicit close, a re-open, a cleanup, a replace, or a change to the file
// on disk.
package session

import (
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/ltv/internal/debug"
	"github.com/standardbeagle/ltv/internal/encoding"
	"github.com/standardbeagle/ltv/internal/lineindex"
	"github.com/standardbeagle/ltv/internal/window"
)

// fingerprintSize is how much of the file feeds the change fingerprint.
const fingerprintSize = 64 * 1024

// Session is one open file: a shared window plus its line index. The index
// sits behind the session mutex; the window is immutable and freely shared.
type Session struct {
	mu          sync.Mutex
	win         *window.Window
	index       *lineindex.Index
	fingerprint uint64
}

// Window returns the session's file window.
func (s *Session) Window() *window.Window {
	return s.win
}

// Index runs fn with the line index while holding the session lock.
func (s *Session) Index(fn func(ix *lineindex.Index)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.index)
}

// Fingerprint returns the content fingerprint taken at session creation.
func (s *Session) Fingerprint() uint64 {
	return s.fingerprint
}

func newSession(path string, enc *encoding.Encoding) (*Session, error) {
	w, err := window.Open(path, enc)
	if err != nil {
		return nil, err
	}

	return &Session{
		win:         w,
		index:       lineindex.Build(w),
		fingerprint: fingerprintBytes(w.ByteRange(0, fingerprintSize)),
	}, nil
}

// Fingerprint hashes the head of the file at path, for cheap change checks
// against a live session.
func Fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, fingerprintSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, err
	}
	return fingerprintBytes(buf[:n]), nil
}

func fingerprintBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// Cache is the process-wide map of path to session. Eviction releases the
// session's window reference; the memory map unmaps once search workers
// holding their own references finish.
//
// The cache watches every cached file and evicts a session when its file is
// written, renamed or removed, so stale indexes never serve reads.
type Cache struct {
	mu       sync.Mutex
	sessions map[string]*Session
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewCache creates a session cache. File watching is best-effort: when the
// platform watcher cannot start, the cache still works without it.
func NewCache() *Cache {
	c := &Cache{
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		debug.Logf("session watcher unavailable: %v", err)
		return c
	}
	c.watcher = watcher
	go c.processEvents()
	return c
}

// processEvents evicts sessions whose files changed on disk.
func (c *Cache) processEvents() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				debug.Logf("file changed on disk, evicting session: %s", event.Name)
				c.Evict(event.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			debug.Logf("session watcher error: %v", err)
		case <-c.done:
			return
		}
	}
}

// Get returns the cached session for path, if any.
func (c *Cache) Get(path string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[path]
	return s, ok
}

// GetOrCreate returns the session for path, building one on miss.
func (c *Cache) GetOrCreate(path string, enc *encoding.Encoding) (*Session, error) {
	c.mu.Lock()
	if s, ok := c.sessions[path]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	// Build outside the lock; indexing a large file takes a while.
	s, err := newSession(path, enc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.sessions[path]; ok {
		// Lost the race; keep the existing session.
		s.win.Release()
		return existing, nil
	}
	c.insertLocked(path, s)
	return s, nil
}

// Replace evicts any prior session for path and installs a fresh one.
func (c *Cache) Replace(path string, enc *encoding.Encoding) (*Session, error) {
	c.Evict(path)

	s, err := newSession(path, enc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.sessions[path]; ok {
		old.win.Release()
	}
	c.insertLocked(path, s)
	return s, nil
}

func (c *Cache) insertLocked(path string, s *Session) {
	c.sessions[path] = s
	if c.watcher != nil {
		if err := c.watcher.Add(path); err != nil {
			debug.Logf("failed to watch %s: %v", path, err)
		}
	}
}

// Evict drops the session for path, releasing its window reference.
func (c *Cache) Evict(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[path]
	if !ok {
		return false
	}
	delete(c.sessions, path)
	if c.watcher != nil {
		c.watcher.Remove(path)
	}
	s.win.Release()
	return true
}

// EvictAll drops every session and returns how many were released.
func (c *Cache) EvictAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.sessions)
	for path, s := range c.sessions {
		if c.watcher != nil {
			c.watcher.Remove(path)
		}
		s.win.Release()
		delete(c.sessions, path)
	}
	return count
}

// Len returns the number of live sessions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Close evicts everything and stops the watcher.
func (c *Cache) Close() error {
	c.EvictAll()
	close(c.done)
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
