// Package transcript keeps the bounded chat log shown to the user.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is used when a buffer is created with a non-positive cap.
const DefaultCapacity = 10

// Message is a single chat turn. Messages are never mutated after creation.
type Message struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	IsUser      bool      `json:"is_user"`
	Timestamp   time.Time `json:"timestamp"`
	IsError     bool      `json:"is_error,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
}

// NewUserMessage builds a user turn stamped with at.
func NewUserMessage(text string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Text: text, IsUser: true, Timestamp: at}
}

// NewAssistantMessage builds an assistant turn stamped with at.
func NewAssistantMessage(text string, suggestions []string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Text: text, Timestamp: at, Suggestions: suggestions}
}

// NewErrorMessage builds a synthetic assistant turn flagged as an error.
func NewErrorMessage(text string, at time.Time) Message {
	return Message{ID: uuid.NewString(), Text: text, Timestamp: at, IsError: true}
}

// Role reports "user" or "assistant".
func (m Message) Role() string {
	if m.IsUser {
		return "user"
	}
	return "assistant"
}

// Buffer is a fixed-capacity FIFO of messages. When full, appending drops the
// oldest entry. It is safe for concurrent use.
type Buffer struct {
	mu    sync.Mutex
	items []Message
	head  int // index of the oldest message
	size  int
}

// New returns an empty buffer holding at most capacity messages.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{items: make([]Message, capacity)}
}

// Append adds m as the newest message and reports whether an older message
// was evicted to make room.
func (b *Buffer) Append(m Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := len(b.items)
	if b.size < c {
		b.items[(b.head+b.size)%c] = m
		b.size++
		return false
	}
	b.items[b.head] = m
	b.head = (b.head + 1) % c
	return true
}

// Clear drops every message.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.items)
	b.head = 0
	b.size = 0
}

// Len returns the number of stored messages.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the maximum number of stored messages.
func (b *Buffer) Cap() int {
	return len(b.items)
}

// Messages returns a copy of the stored messages, oldest first.
func (b *Buffer) Messages() []Message {
	return b.Last(b.Cap())
}

// Last returns up to n of the most recent messages, oldest first.
func (b *Buffer) Last(n int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []Message{}
	}
	c := len(b.items)
	out := make([]Message, n)
	start := b.head + b.size - n
	for i := range n {
		out[i] = b.items[(start+i)%c]
	}
	return out
}
