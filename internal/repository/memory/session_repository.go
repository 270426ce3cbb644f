package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"doc-assembler-be/internal/entity"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNoActiveSession = errors.New("no active document for session")
	ErrSessionBusy     = errors.New("session is busy")
)

// Naming derives artifact filenames for new documents.
type Naming struct {
	Prefix    string
	Extension string
	// Exists reports whether a filename is already taken on disk. Optional.
	Exists func(filename string) bool
}

// EvictFunc is called when an idle Building session expires from memory.
type EvictFunc func(key string, doc *entity.Document)

type sessionEntry struct {
	sem *semaphore.Weighted

	mu  sync.RWMutex
	doc *entity.Document
	// retired is set when the entry expired while held and the key was
	// already given a new entry. Its document is orphaned on release.
	retired bool
}

// SessionRepository maps session keys to their in-progress document.
// Documents are only changed through a Lease obtained from Acquire, so that
// each chunk is applied as one unit against one entry.
type SessionRepository struct {
	mu       sync.Mutex
	cache    *cache.Cache
	naming   Naming
	reserved map[string]string // filename -> session key
	onEvict  EvictFunc
}

func NewSessionRepository(ttl time.Duration, naming Naming, onEvict EvictFunc) *SessionRepository {
	// Idle sessions expire after ttl; expired items are purged every ttl/6.
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &SessionRepository{
		cache:    cache.New(ttl, cleanup),
		naming:   naming,
		reserved: make(map[string]string),
		onEvict:  onEvict,
	}
	r.cache.OnEvicted(r.evicted)
	return r
}

// Lease is exclusive hold of one session entry. All of its operations act on
// the entry resolved at Acquire, never on whatever the cache holds for the
// key later.
type Lease struct {
	repo *SessionRepository
	key  string
	e    *sessionEntry
	once sync.Once
}

// Acquire blocks until the caller exclusively holds key or ctx is done.
// Different keys never contend. An entry that was replaced in the cache while
// the caller waited on it is given up and the current one is acquired.
func (r *SessionRepository) Acquire(ctx context.Context, key string) (*Lease, error) {
	for {
		e := r.entry(key)
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionBusy, err)
		}
		if r.current(key, e) {
			return &Lease{repo: r, key: key, e: e}, nil
		}
		e.sem.Release(1)
	}
}

// Release gives the session back. Calling it more than once is a no-op.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.e.mu.Lock()
		var orphan *entity.Document
		if l.e.retired {
			orphan, l.e.doc = l.e.doc, nil
		}
		l.e.mu.Unlock()

		l.e.sem.Release(1)
		if orphan != nil {
			l.repo.orphan(l.key, orphan)
		}
	})
}

// GetOrCreate returns the Building document, creating one named after now
// when the session is Empty. The boolean reports creation.
func (l *Lease) GetOrCreate(now time.Time) (*entity.Document, bool) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if l.e.doc != nil {
		return l.e.doc.Snapshot(), false
	}

	l.e.doc = &entity.Document{
		Filename:  l.repo.reserve(l.key, now),
		Blocks:    make([]entity.Block, 0),
		CreatedAt: now,
	}
	return l.e.doc.Snapshot(), true
}

// Append adds blocks in order to the Building document and returns the
// updated document.
func (l *Lease) Append(blocks []entity.Block) (*entity.Document, error) {
	l.e.mu.Lock()
	defer l.e.mu.Unlock()
	if l.e.doc == nil {
		return nil, ErrNoActiveSession
	}
	l.e.doc.Blocks = append(l.e.doc.Blocks, blocks...)
	return l.e.doc.Snapshot(), nil
}

// Finalize returns the Building document and resets the session to Empty.
// Nothing of the finalized document is retained.
func (l *Lease) Finalize() (*entity.Document, error) {
	l.e.mu.Lock()
	doc := l.e.doc
	l.e.doc = nil
	l.e.mu.Unlock()

	if doc == nil {
		return nil, ErrNoActiveSession
	}
	l.repo.release(doc.Filename)
	return doc, nil
}

// Discard drops the Building document, if any.
func (l *Lease) Discard() (*entity.Document, bool) {
	doc, err := l.Finalize()
	return doc, err == nil
}

// Peek returns a copy of the Building document of key without locking the
// session for writing.
func (r *SessionRepository) Peek(key string) (*entity.Document, bool) {
	e, ok := r.lookup(key)
	if !ok {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.doc == nil {
		return nil, false
	}
	return e.doc.Snapshot(), true
}

// entry returns the entry of key, creating it atomically, and refreshes its
// expiration.
func (r *SessionRepository) entry(key string) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(key); found {
		e := x.(*sessionEntry)
		r.cache.Set(key, e, cache.DefaultExpiration)
		return e
	}
	e := &sessionEntry{sem: semaphore.NewWeighted(1)}
	r.cache.Set(key, e, cache.DefaultExpiration)
	return e
}

// current reports whether e is still the live entry of key.
func (r *SessionRepository) current(key string, e *sessionEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	x, found := r.cache.Get(key)
	return found && x.(*sessionEntry) == e
}

func (r *SessionRepository) lookup(key string) (*sessionEntry, bool) {
	if x, found := r.cache.Get(key); found {
		return x.(*sessionEntry), true
	}
	return nil, false
}

func (r *SessionRepository) reserve(key string, now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := now.Format("20060102_150405")
	name := fmt.Sprintf("%s_%s%s", r.naming.Prefix, stamp, r.naming.Extension)
	for n := 2; r.taken(name); n++ {
		name = fmt.Sprintf("%s_%s_%d%s", r.naming.Prefix, stamp, n, r.naming.Extension)
	}
	r.reserved[name] = key
	return name
}

func (r *SessionRepository) taken(name string) bool {
	if _, ok := r.reserved[name]; ok {
		return true
	}
	return r.naming.Exists != nil && r.naming.Exists(name)
}

func (r *SessionRepository) release(filename string) {
	r.mu.Lock()
	delete(r.reserved, filename)
	r.mu.Unlock()
}

// evicted runs after go-cache drops an expired entry. An entry that is
// still held is put back; if the key already has a new entry by then, the
// held one is retired and its document reported when the holder releases.
// An idle Building document is orphaned (its file stays on disk) and
// reported.
func (r *SessionRepository) evicted(key string, value interface{}) {
	e := value.(*sessionEntry)
	if !e.sem.TryAcquire(1) {
		r.mu.Lock()
		err := r.cache.Add(key, e, cache.DefaultExpiration)
		r.mu.Unlock()
		if err != nil {
			e.mu.Lock()
			e.retired = true
			e.mu.Unlock()
		}
		return
	}
	defer e.sem.Release(1)

	e.mu.Lock()
	doc := e.doc
	e.doc = nil
	e.mu.Unlock()

	if doc != nil {
		r.orphan(key, doc)
	}
}

func (r *SessionRepository) orphan(key string, doc *entity.Document) {
	r.release(doc.Filename)
	if r.onEvict != nil {
		r.onEvict(key, doc)
	}
}
