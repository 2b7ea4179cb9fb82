// Package pagecontext tracks which screen a chat session is attached to and
// turns that screen's payload into prompt text.
package pagecontext

import (
	"encoding/json"
	"sync"
	"time"
)

// Context is the current screen and its payload.
type Context struct {
	PageName  string          `json:"page_name"`
	PageData  json.RawMessage `json:"page_data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store holds one session's page context. Updates replace the context as a
// whole.
type Store struct {
	mu    sync.RWMutex
	cur   Context
	pages Pages
	now   func() time.Time
}

// NewStore returns a store with an empty context.
func NewStore(pages Pages) *Store {
	return &Store{
		pages: pages,
		now:   time.Now,
		cur:   Context{PageData: json.RawMessage("{}")},
	}
}

// SetPageContext overwrites the context. Nothing of the previous page
// survives.
func (s *Store) SetPageContext(name string, data json.RawMessage) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	cp := make(json.RawMessage, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Context{PageName: name, PageData: cp, Timestamp: s.now()}
}

// Context returns the current context.
func (s *Store) Context() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Known reports whether the current page has a prompt template.
func (s *Store) Known() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pages[s.cur.PageName]
	return ok
}

// Pages returns the names of the pages with a prompt template.
func (s *Store) Pages() []string { return s.pages.Names() }

// Prompt composes the prompt for the current page, or "" for an unknown one.
func (s *Store) Prompt() string {
	c := s.Context()
	return s.pages.Compose(c.PageName, c.PageData)
}

// Suggestions returns the chips of the current page.
func (s *Store) Suggestions() []string {
	c := s.Context()
	return s.pages.Suggestions(c.PageName)
}
