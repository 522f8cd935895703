package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/lireddit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()

	u, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)

	_, err = s.CreateUser(ctx, "alice", "other@example.com", "hash")
	require.ErrorIs(t, err, lireddit.ErrDuplicate)
	_, err = s.CreateUser(ctx, "bob", "alice@example.com", "hash")
	require.ErrorIs(t, err, lireddit.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, s.UpdatePasswordHash(ctx, u.ID, "new-hash"))
	got, err = s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	_, err = s.GetUserByID(ctx, 99)
	require.ErrorIs(t, err, lireddit.ErrNotFound)
	require.ErrorIs(t, s.UpdatePasswordHash(ctx, 99, "x"), lireddit.ErrNotFound)

	boom := errors.New("boom")
	s.FailWith(boom)
	_, err = s.GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, boom)
	_, err = s.Ping(ctx)
	require.ErrorIs(t, err, boom)
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	s := NewPosts()

	first, err := s.CreatePost(ctx, "first", "a", 1)
	require.NoError(t, err)
	second, err := s.CreatePost(ctx, "second", "b", 0)
	require.NoError(t, err)

	list, err := s.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	updated, err := s.UpdatePostTitle(ctx, first.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.False(t, updated.UpdatedAt.Before(first.UpdatedAt))

	require.NoError(t, s.DeletePost(ctx, first.ID))
	require.ErrorIs(t, s.DeletePost(ctx, first.ID), lireddit.ErrNotFound)
	_, err = s.GetPost(ctx, first.ID)
	require.ErrorIs(t, err, lireddit.ErrNotFound)
}
