package repository

import (
	"context"
	"testing"

	"socialnet/internal/models"
	"socialnet/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRepository_Requests(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFriendRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	req := &models.FriendRequest{SenderID: alice.ID, ReceiverID: bob.ID}
	require.NoError(t, repo.CreateRequest(ctx, req))
	assert.Equal(t, models.FriendRequestPending, req.Status)

	t.Run("duplicate direction is a conflict", func(t *testing.T) {
		err := repo.CreateRequest(ctx, &models.FriendRequest{SenderID: alice.ID, ReceiverID: bob.ID})
		assert.True(t, models.IsCode(err, models.CodeConflict))
	})

	t.Run("pending is found from either side", func(t *testing.T) {
		found, err := repo.FindPendingBetween(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, req.ID, found.ID)

		found, err = repo.FindPendingBetween(ctx, bob.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, req.ID, found.ID)
	})

	t.Run("incoming and outgoing lists", func(t *testing.T) {
		incoming, err := repo.ListIncoming(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, incoming, 1)
		assert.Equal(t, "alice", incoming[0].Sender.Username)

		outgoing, err := repo.ListOutgoing(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, outgoing, 1)
		assert.Equal(t, "bob", outgoing[0].Receiver.Username)

		empty, err := repo.ListIncoming(ctx, alice.ID)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("transition only from pending", func(t *testing.T) {
		require.NoError(t, repo.TransitionRequest(ctx, req.ID, models.FriendRequestRejected))

		err := repo.TransitionRequest(ctx, req.ID, models.FriendRequestAccepted)
		assert.True(t, models.IsCode(err, models.CodeConflict))

		stored, err := repo.GetRequestByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.FriendRequestRejected, stored.Status)

		found, err := repo.FindPendingBetween(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("resolved rows are cleared before a re-request", func(t *testing.T) {
		require.NoError(t, repo.DeleteResolvedRequests(ctx, alice.ID, bob.ID))

		again := &models.FriendRequest{SenderID: alice.ID, ReceiverID: bob.ID}
		require.NoError(t, repo.CreateRequest(ctx, again))
		assert.NotEqual(t, req.ID, again.ID)

		_, err := repo.GetRequestByID(ctx, req.ID)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}

func TestFriendRepository_CanonicalFriendships(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewFriendRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	// Pass the higher id first; storage must still be canonical.
	f, err := repo.CreateFriendship(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Less(t, f.User1ID, f.User2ID)

	_, err = repo.CreateFriendship(ctx, alice.ID, bob.ID)
	assert.True(t, models.IsCode(err, models.CodeConflict))

	ab, err := repo.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	ba, err := repo.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ab)
	assert.True(t, ba)

	ac, err := repo.AreFriends(ctx, alice.ID, carol.ID)
	require.NoError(t, err)
	assert.False(t, ac)

	held, err := repo.HoldFriendship(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, held)
	held, err = repo.HoldFriendship(ctx, carol.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, held)

	_, err = repo.CreateFriendship(ctx, carol.ID, alice.ID)
	require.NoError(t, err)

	friends, err := repo.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, friends, 2)
	assert.Equal(t, "bob", friends[0].Username)
	assert.Equal(t, "carol", friends[1].Username)

	bobFriends, err := repo.ListFriends(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, alice.ID, bobFriends[0].ID)

	between, err := repo.GetFriendshipBetween(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, between)
	assert.Equal(t, f.ID, between.ID)

	require.NoError(t, repo.DeleteFriendship(ctx, f.ID))
	between, err = repo.GetFriendshipBetween(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, between)

	_, err = repo.GetFriendshipByID(ctx, f.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
