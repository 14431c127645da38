package service

import (
	"context"
	"testing"

	"socialnet/internal/models"
	"socialnet/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendService_SendFriendRequest_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.friendService()
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")

	_, err := svc.SendFriendRequest(ctx, alice.ID, alice.ID)
	assertCode(t, err, models.CodeValidation)

	_, err = svc.SendFriendRequest(ctx, alice.ID, 9999)
	assertCode(t, err, models.CodeNotFound)

	assert.Zero(t, env.count(t, &models.FriendRequest{}, ""))
}

func TestFriendService_PendingBlocksBothDirections(t *testing.T) {
	env := newTestEnv(t)
	svc := env.friendService()
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	req, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, req.Status)

	_, err = svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	assertCode(t, err, models.CodeConflict)

	_, err = svc.SendFriendRequest(ctx, bob.ID, alice.ID)
	assertCode(t, err, models.CodeConflict)

	assert.Equal(t, int64(1), env.count(t, &models.FriendRequest{}, ""))

	notes := env.sink.delivered()
	require.Len(t, notes, 1)
	assert.Equal(t, bob.ID, notes[0].RecipientID)
	assert.Equal(t, "alice sent you a friend request!", notes[0].Message)
	assert.Equal(t, "/friends/requests", notes[0].Link)
}

func TestFriendService_AcceptCreatesOneFriendship(t *testing.T) {
	env := newTestEnv(t)
	svc := env.friendService()
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	req, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	t.Run("only the receiver may accept", func(t *testing.T) {
		_, err := svc.AcceptFriendRequest(ctx, alice.ID, req.ID)
		assertCode(t, err, models.CodeForbidden)
	})

	friendship, err := svc.AcceptFriendRequest(ctx, bob.ID, req.ID)
	require.NoError(t, err)
	assert.Less(t, friendship.User1ID, friendship.User2ID)

	assert.Equal(t, int64(1), env.count(t, &models.Friendship{}, ""))

	ab, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	ba, err := svc.AreFriends(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ab)
	assert.True(t, ba)

	toAlice := env.count(t, &models.Notification{}, "recipient_id = ? AND notification_type = ?",
		alice.ID, models.NotificationFriendRequestAccepted)
	assert.Equal(t, int64(1), toAlice)

	var accepted models.Notification
	require.NoError(t, env.db.Where("recipient_id = ?", alice.ID).First(&accepted).Error)
	assert.Equal(t, "bob accepted your friend request!", accepted.Message)

	t.Run("accepting twice conflicts", func(t *testing.T) {
		_, err := svc.AcceptFriendRequest(ctx, bob.ID, req.ID)
		assertCode(t, err, models.CodeConflict)
		assert.Equal(t, int64(1), env.count(t, &models.Friendship{}, ""))
	})

	t.Run("friends cannot re-request", func(t *testing.T) {
		_, err := svc.SendFriendRequest(ctx, bob.ID, alice.ID)
		assertCode(t, err, models.CodeConflict)
	})

	t.Run("friend list holds each friend once", func(t *testing.T) {
		friends, err := svc.ListFriends(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, friends, 1)
		assert.Equal(t, "bob", friends[0].Username)
	})

	_, err = svc.AcceptFriendRequest(ctx, bob.ID, 9999)
	assertCode(t, err, models.CodeNotFound)
}

func TestFriendService_RejectAndCancelNeverCreateFriendship(t *testing.T) {
	env := newTestEnv(t)
	svc := env.friendService()
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	carol := testutil.CreateUser(t, env.db, "carol")

	toBob, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.RejectFriendRequest(ctx, alice.ID, toBob.ID)
	assertCode(t, err, models.CodeForbidden)

	rejected, err := svc.RejectFriendRequest(ctx, bob.ID, toBob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestRejected, rejected.Status)

	_, err = svc.RejectFriendRequest(ctx, bob.ID, toBob.ID)
	assertCode(t, err, models.CodeConflict)

	toCarol, err := svc.SendFriendRequest(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	_, err = svc.CancelFriendRequest(ctx, carol.ID, toCarol.ID)
	assertCode(t, err, models.CodeForbidden)

	_, err = svc.CancelFriendRequest(ctx, alice.ID, toCarol.ID)
	require.NoError(t, err)
	assert.Zero(t, env.count(t, &models.FriendRequest{}, "id = ?", toCarol.ID))

	assert.Zero(t, env.count(t, &models.Friendship{}, ""))

	// Only the two sends produced notifications.
	assert.Equal(t, int64(2), env.count(t, &models.Notification{}, ""))

	t.Run("re-request after rejection creates a new row", func(t *testing.T) {
		again, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
		require.NoError(t, err)
		assert.NotEqual(t, toBob.ID, again.ID)
		assert.Equal(t, models.FriendRequestPending, again.Status)
		assert.Equal(t, int64(1), env.count(t, &models.FriendRequest{}, "sender_id = ? AND receiver_id = ?", alice.ID, bob.ID))
	})
}

func TestFriendService_OnlyMembersRemove(t *testing.T) {
	env := newTestEnv(t)
	svc := env.friendService()
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	mallory := testutil.CreateUser(t, env.db, "mallory")
	f := testutil.MakeFriends(t, env.db, alice.ID, bob.ID)

	_, err := svc.RemoveFriend(ctx, mallory.ID, f.ID)
	assertCode(t, err, models.CodeForbidden)
	assert.Equal(t, int64(1), env.count(t, &models.Friendship{}, ""))

	_, err = svc.RemoveFriend(ctx, bob.ID, f.ID)
	require.NoError(t, err)
	assert.Zero(t, env.count(t, &models.Friendship{}, ""))

	_, err = svc.RemoveFriend(ctx, bob.ID, f.ID)
	assertCode(t, err, models.CodeNotFound)

	testutil.MakeFriends(t, env.db, alice.ID, mallory.ID)
	_, err = svc.RemoveFriendByUser(ctx, mallory.ID, alice.ID)
	require.NoError(t, err)

	_, err = svc.RemoveFriendByUser(ctx, mallory.ID, alice.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestFriendService_FriendshipStatus(t *testing.T) {
	env := newTestEnv(t)
	svc := env.friendService()
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	status, err := svc.FriendshipStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, RelationNone, status.Status)

	req, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	status, err = svc.FriendshipStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, RelationPendingSent, status.Status)
	assert.Equal(t, req.ID, status.RequestID)

	status, err = svc.FriendshipStatus(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, RelationPendingReceived, status.Status)

	incoming, err := svc.ListIncomingRequests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	outgoing, err := svc.ListOutgoingRequests(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	_, err = svc.AcceptFriendRequest(ctx, bob.ID, req.ID)
	require.NoError(t, err)

	status, err = svc.FriendshipStatus(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, RelationFriends, status.Status)
	assert.Zero(t, status.RequestID)

	incoming, err = svc.ListIncomingRequests(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestFriendService_NotificationFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFriendService(env.repos.Friends, env.repos.Users, brokenNotificationsTx{inner: env.tx}, env.sink)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	_, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	require.ErrorIs(t, err, errNotificationStore)
	assert.Zero(t, env.count(t, &models.FriendRequest{}, ""))

	req := &models.FriendRequest{SenderID: alice.ID, ReceiverID: bob.ID}
	require.NoError(t, env.repos.Friends.CreateRequest(ctx, req))

	_, err = svc.AcceptFriendRequest(ctx, bob.ID, req.ID)
	require.ErrorIs(t, err, errNotificationStore)
	assert.Zero(t, env.count(t, &models.Friendship{}, ""))

	stored, err := env.repos.Friends.GetRequestByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestPending, stored.Status)
	assert.Empty(t, env.sink.delivered())
}
