package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Quint4n4/MenuInteractivo/internal/kiosk"
)

type lockKind uint8

// Kinds sort in acquisition order: an order row is always taken before
// the stock rows it touches.
const (
	kindOrder lockKind = iota
	kindStock
)

type LockKey struct {
	kind lockKind
	id   int64
}

func OrderKey(id int64) LockKey { return LockKey{kind: kindOrder, id: id} }
func StockKey(id int64) LockKey { return LockKey{kind: kindStock, id: id} }

func StockKeys(ids []int64) []LockKey {
	keys := make([]LockKey, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, StockKey(id))
	}
	return keys
}

func (k LockKey) String() string {
	if k.kind == kindOrder {
		return fmt.Sprintf("order:%d", k.id)
	}
	return fmt.Sprintf("stock:%d", k.id)
}

func (k LockKey) less(o LockKey) bool {
	if k.kind != o.kind {
		return k.kind < o.kind
	}
	return k.id < o.id
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Locker hands out exclusive per-key locks with a bounded wait. Keys of
// one Acquire call are taken in a single global order so two callers can
// never wait on each other in a cycle.
type Locker struct {
	mu      sync.Mutex
	entries map[LockKey]*lockEntry
	wait    time.Duration
}

func NewLocker(wait time.Duration) *Locker {
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &Locker{entries: make(map[LockKey]*lockEntry), wait: wait}
}

// Acquire blocks until every key is held or the wait budget runs out. On
// timeout nothing stays held and a *kiosk.ContentionError is returned.
func (l *Locker) Acquire(ctx context.Context, keys ...LockKey) (func(), error) {
	keys = sortKeys(keys)

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	held := make([]LockKey, 0, len(keys))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, k := range keys {
		e := l.ref(k)
		select {
		case e.sem <- struct{}{}:
			held = append(held, k)
		case <-waitCtx.Done():
			l.unref(k)
			releaseAll()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return nil, &kiosk.ContentionError{Resource: k.String()}
			}
			return nil, waitCtx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func (l *Locker) ref(k LockKey) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[k]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[k] = e
	}
	e.refs++
	return e
}

func (l *Locker) unref(k LockKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[k]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, k)
	}
}

func (l *Locker) unlock(k LockKey) {
	l.mu.Lock()
	e := l.entries[k]
	l.mu.Unlock()
	<-e.sem
	l.unref(k)
}

// held reports how many keys currently have holders or waiters.
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func sortKeys(keys []LockKey) []LockKey {
	out := make([]LockKey, 0, len(keys))
	seen := make(map[LockKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
