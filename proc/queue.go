package proc

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/leeineian/resonance/media"
)

// Queue holds each chat's items in order. The head is the current item.
type Queue struct {
	mu    sync.Mutex
	items map[snowflake.ID][]media.Descriptor
}

func NewQueue() *Queue {
	return &Queue{items: make(map[snowflake.ID][]media.Descriptor)}
}

// Add appends d and returns its position; 0 means it is now current.
func (q *Queue) Add(chat snowflake.ID, d media.Descriptor) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items[chat] = append(q.items[chat], d)
	return len(q.items[chat]) - 1
}

func (q *Queue) Current(chat snowflake.ID) media.Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if items := q.items[chat]; len(items) > 0 {
		return items[0]
	}
	return nil
}

// Next pops the current item and returns the new one, or nil.
func (q *Queue) Next(chat snowflake.ID) media.Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[chat]
	if len(items) <= 1 {
		delete(q.items, chat)
		return nil
	}
	items[0] = nil
	items = items[1:]
	q.items[chat] = items
	return items[0]
}

// Remove drops the item at pos. The current item cannot be removed this way.
func (q *Queue) Remove(chat snowflake.ID, pos int) (media.Descriptor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[chat]
	if pos < 1 || pos >= len(items) {
		return nil, false
	}
	d := items[pos]
	q.items[chat] = append(items[:pos], items[pos+1:]...)
	return d, true
}

func (q *Queue) Clear(chat snowflake.ID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, chat)
}

func (q *Queue) Len(chat snowflake.ID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items[chat])
}

// Items returns a copy of the chat's queue.
func (q *Queue) Items(chat snowflake.ID) []media.Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]media.Descriptor(nil), q.items[chat]...)
}
