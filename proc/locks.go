package proc

import (
	"context"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

type chatLock struct {
	mu     sync.Mutex
	refs   int
	ctx    context.Context
	cancel context.CancelFunc
}

// LockArena hands out one mutex per chat. An entry exists only while someone
// holds or waits for it, so the arena never outgrows the set of chats with
// work in flight.
type LockArena struct {
	mu      sync.Mutex
	entries map[snowflake.ID]*chatLock
}

func NewLockArena() *LockArena {
	return &LockArena{entries: make(map[snowflake.ID]*chatLock)}
}

func newChatLock() *chatLock {
	ctx, cancel := context.WithCancel(context.Background())
	return &chatLock{ctx: ctx, cancel: cancel}
}

// Lock blocks until the chat's mutex is held. The returned context is
// canceled by Interrupt; release must be called exactly once.
func (a *LockArena) Lock(ctx context.Context, chat snowflake.ID) (context.Context, func()) {
	a.mu.Lock()
	e, ok := a.entries[chat]
	if !ok {
		e = newChatLock()
		a.entries[chat] = e
	}
	e.refs++
	a.mu.Unlock()

	e.mu.Lock()

	a.mu.Lock()
	work := e.ctx
	a.mu.Unlock()

	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(work, cancel)

	var once sync.Once
	return opCtx, func() {
		once.Do(func() {
			stop()
			cancel()
			e.mu.Unlock()
			a.release(chat, e)
		})
	}
}

func (a *LockArena) release(chat snowflake.ID, e *chatLock) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		if a.entries[chat] == e {
			delete(a.entries, chat)
		}
		e.cancel()
	}
}

// Interrupt cancels the context of whoever holds the chat's lock now.
// Later holders get a fresh context.
func (a *LockArena) Interrupt(chat snowflake.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.entries[chat]; ok {
		e.cancel()
		e.ctx, e.cancel = context.WithCancel(context.Background())
	}
}

func (a *LockArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
