package graphql

import (
	"context"
	"net/http"
	"sync"

	"github.com/MrEthical07/lireddit"
)

type requestStateKey struct{}

// requestState collects per-request side effects of resolvers. graph-gophers
// resolves fields concurrently, so every access is locked.
type requestState struct {
	mu      sync.Mutex
	cookies []*http.Cookie
	authors map[int64]*authorEntry
}

type authorEntry struct {
	once sync.Once
	user *lireddit.User
	err  error
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	st := &requestState{authors: make(map[int64]*authorEntry)}
	return context.WithValue(ctx, requestStateKey{}, st), st
}

// requestStateFrom never returns nil; outside a Handler request it returns a
// throwaway state.
func requestStateFrom(ctx context.Context) *requestState {
	if st, ok := ctx.Value(requestStateKey{}).(*requestState); ok {
		return st
	}
	_, st := withRequestState(ctx)
	return st
}

// setCookie queues c, replacing an earlier cookie with the same name.
func (s *requestState) setCookie(c *http.Cookie) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.cookies {
		if existing.Name == c.Name {
			s.cookies[i] = c
			return
		}
	}
	s.cookies = append(s.cookies, c)
}

func (s *requestState) pendingCookies() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Cookie(nil), s.cookies...)
}

func (s *requestState) author(id int64, load func() (*lireddit.User, error)) (*lireddit.User, error) {
	s.mu.Lock()
	entry, ok := s.authors[id]
	if !ok {
		entry = &authorEntry{}
		s.authors[id] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		entry.user, entry.err = load()
	})
	return entry.user, entry.err
}
