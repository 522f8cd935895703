// Package memstore implements lireddit.UserStore and lireddit.PostStore in
// process memory. It backs tests, the load generator and `serve
// --store=memory`; data does not survive a restart.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/lireddit"
)

// Users is safe for concurrent use.
type Users struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]lireddit.UserRecord
	err    error
}

func NewUsers() *Users {
	return &Users{byID: make(map[int64]lireddit.UserRecord)}
}

// FailWith makes every later call return err. A nil err restores normal
// behavior.
func (s *Users) FailWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Users) find(match func(lireddit.UserRecord) bool) (lireddit.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return lireddit.UserRecord{}, s.err
	}
	for _, u := range s.byID {
		if match(u) {
			return u, nil
		}
	}
	return lireddit.UserRecord{}, fmt.Errorf("memstore: user: %w", lireddit.ErrNotFound)
}

func (s *Users) GetUserByID(_ context.Context, id int64) (lireddit.UserRecord, error) {
	return s.find(func(u lireddit.UserRecord) bool { return u.ID == id })
}

func (s *Users) GetUserByUsername(_ context.Context, username string) (lireddit.UserRecord, error) {
	return s.find(func(u lireddit.UserRecord) bool { return u.Username == username })
}

func (s *Users) GetUserByEmail(_ context.Context, email string) (lireddit.UserRecord, error) {
	return s.find(func(u lireddit.UserRecord) bool { return u.Email == email })
}

// CreateUser enforces the same uniqueness as the user table.
func (s *Users) CreateUser(_ context.Context, username, email, passwordHash string) (lireddit.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return lireddit.UserRecord{}, s.err
	}
	for _, u := range s.byID {
		if u.Username == username || u.Email == email {
			return lireddit.UserRecord{}, fmt.Errorf("memstore: user: %w", lireddit.ErrDuplicate)
		}
	}

	s.nextID++
	now := time.Now().UTC()
	rec := lireddit.UserRecord{
		User: lireddit.User{
			ID:        s.nextID,
			Username:  username,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: passwordHash,
	}
	s.byID[rec.ID] = rec
	return rec, nil
}

func (s *Users) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("memstore: user: %w", lireddit.ErrNotFound)
	}
	rec.PasswordHash = passwordHash
	rec.UpdatedAt = time.Now().UTC()
	s.byID[id] = rec
	return nil
}

// Delete removes a user. Posts keep their author id.
func (s *Users) Delete(id int64) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

func (s *Users) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Users) Ping(context.Context) (time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return 0, s.err
}

// Posts is safe for concurrent use.
type Posts struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]lireddit.Post
}

func NewPosts() *Posts {
	return &Posts{byID: make(map[int64]lireddit.Post)}
}

func (s *Posts) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ListPosts returns posts newest first.
func (s *Posts) ListPosts(context.Context) ([]lireddit.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]lireddit.Post, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Posts) GetPost(_ context.Context, id int64) (lireddit.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return lireddit.Post{}, fmt.Errorf("memstore: post: %w", lireddit.ErrNotFound)
	}
	return p, nil
}

func (s *Posts) CreatePost(_ context.Context, title, text string, authorID int64) (lireddit.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	p := lireddit.Post{
		ID:        s.nextID,
		Title:     title,
		Text:      text,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[p.ID] = p
	return p, nil
}

func (s *Posts) UpdatePostTitle(_ context.Context, id int64, title string) (lireddit.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return lireddit.Post{}, fmt.Errorf("memstore: post: %w", lireddit.ErrNotFound)
	}
	p.Title = title
	p.UpdatedAt = time.Now().UTC()
	s.byID[id] = p
	return p, nil
}

func (s *Posts) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("memstore: post: %w", lireddit.ErrNotFound)
	}
	delete(s.byID, id)
	return nil
}

var (
	_ lireddit.UserStore = (*Users)(nil)
	_ lireddit.PostStore = (*Posts)(nil)
)
