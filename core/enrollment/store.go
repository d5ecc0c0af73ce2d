package enrollment

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrSessionNotFound = errors.New("enrollment session not found")

// DefaultSessionTTL is how long an idle wizard session is kept.
const DefaultSessionTTL = 24 * time.Hour

// Store persists wizard sessions. Get returns ErrSessionNotFound for unknown or expired sessions.
type Store interface {
	Create(ctx context.Context, st State) error
	Get(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, st State) error
	Delete(ctx context.Context, id string) error
}

// keyedMutex serializes the operations on a same session within the process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sync.Mutex
	refs int
}

func (km *keyedMutex) lock(key string) (unlock func()) {
	km.mu.Lock()
	if km.locks == nil {
		km.locks = make(map[string]*keyedLock)
	}
	l, ok := km.locks[key]
	if !ok {
		l = new(keyedLock)
		km.locks[key] = l
	}
	l.refs++
	km.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		km.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(km.locks, key)
		}
		km.mu.Unlock()
	}
}
