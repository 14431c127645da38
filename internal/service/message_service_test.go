package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/models"
	"socialnet/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageService_SendRequiresFriendship(t *testing.T) {
	env := newTestEnv(t)
	svc := env.messageService(true)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi"})
	assertCode(t, err, models.CodeForbidden)
	assert.Zero(t, env.count(t, &models.Message{}, ""))
	assert.Zero(t, env.count(t, &models.Notification{}, ""))

	testutil.MakeFriends(t, env.db, bob.ID, alice.ID)

	msg, err := svc.SendMessage(ctx, SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "  hi <b>bob</b> "})
	require.NoError(t, err)
	assert.Equal(t, "hi bob", msg.Content)
	assert.False(t, msg.IsRead)

	var note models.Notification
	require.NoError(t, env.db.Where("recipient_id = ?", bob.ID).First(&note).Error)
	assert.Equal(t, models.NotificationMessage, note.Type)
	assert.Equal(t, "New message from alice", note.Message)
	assert.Equal(t, "/messages/"+itoa(alice.ID), note.Link)

	delivered := env.sink.delivered()
	require.Len(t, delivered, 1)
	assert.Equal(t, note.ID, delivered[0].ID)
}

func TestMessageService_FriendshipCheckedInsideTransaction(t *testing.T) {
	env := newTestEnv(t)
	svc := NewMessageService(
		env.repos.Messages, env.repos.Users,
		unfriendingTx{inner: env.tx, db: env.db}, env.sink,
		MessagingPolicy{RequireFriendship: true},
	)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	testutil.MakeFriends(t, env.db, alice.ID, bob.ID)

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "still there?"})
	assertCode(t, err, models.CodeForbidden)
	assert.Zero(t, env.count(t, &models.Message{}, ""))
	assert.Zero(t, env.count(t, &models.Notification{}, ""))
	assert.Empty(t, env.sink.delivered())
}

func TestMessageService_OpenMessagingPolicy(t *testing.T) {
	env := newTestEnv(t)
	svc := env.messageService(false)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "hello stranger"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), env.count(t, &models.Message{}, ""))
}

func TestMessageService_SendValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.messageService(false)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	tests := []struct {
		name string
		in   SendMessageInput
		code string
	}{
		{"blank", SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "   "}, models.CodeValidation},
		{"markup only", SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "<script></script>"}, models.CodeValidation},
		{"too long", SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: strings.Repeat("x", models.MaxMessageLength+1)}, models.CodeValidation},
		{"self", SendMessageInput{SenderID: alice.ID, ReceiverID: alice.ID, Content: "me"}, models.CodeValidation},
		{"unknown receiver", SendMessageInput{SenderID: alice.ID, ReceiverID: 9999, Content: "hello"}, models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendMessage(ctx, tt.in)
			assertCode(t, err, tt.code)
		})
	}

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: strings.Repeat("é", models.MaxMessageLength)})
	require.NoError(t, err)
}

func TestMessageService_ViewConversationMarksOnlyIncoming(t *testing.T) {
	env := newTestEnv(t)
	svc := env.messageService(true)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	testutil.MakeFriends(t, env.db, alice.ID, bob.ID)

	for _, in := range []SendMessageInput{
		{SenderID: bob.ID, ReceiverID: alice.ID, Content: "one"},
		{SenderID: alice.ID, ReceiverID: bob.ID, Content: "two"},
		{SenderID: bob.ID, ReceiverID: alice.ID, Content: "three"},
	} {
		_, err := svc.SendMessage(ctx, in)
		require.NoError(t, err)
	}

	view, err := svc.ViewConversation(ctx, alice.ID, bob.ID, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), view.MarkedRead)
	assert.Equal(t, "bob", view.OtherUser.Username)
	require.Len(t, view.Messages, 3)
	assert.Equal(t, "one", view.Messages[0].Content)

	assert.Zero(t, env.count(t, &models.Message{}, "sender_id = ? AND receiver_id = ? AND is_read = ?", bob.ID, alice.ID, false))
	assert.Equal(t, int64(1), env.count(t, &models.Message{}, "sender_id = ? AND receiver_id = ? AND is_read = ?", alice.ID, bob.ID, false))

	unread, err := svc.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	conversations, err := svc.ListConversations(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, int64(1), conversations[0].UnreadCount)

	_, err = svc.ViewConversation(ctx, alice.ID, 9999, 50, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestMessageService_InboxMarksAllRead(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	env := newTestEnv(t)
	svc := env.messageService(false)
	svc.now = func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: bob.ID, ReceiverID: alice.ID, Content: "first"})
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
	assert.True(t, mr.Exists(cache.UnreadKey(alice.ID)))

	// A new message drops the cached count.
	_, err = svc.SendMessage(ctx, SendMessageInput{SenderID: bob.ID, ReceiverID: alice.ID, Content: "second"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.UnreadKey(alice.ID)))

	inbox, err := svc.Inbox(ctx, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "second", inbox[0].Content)
	assert.False(t, inbox[0].IsRead, "the page shows what was new")

	unread, err = svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	sent, err := svc.Sent(ctx, bob.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, sent, 2)
	require.NotNil(t, sent[0].ReadAt)
	assert.True(t, sent[0].ReadAt.Equal(svc.now()))
}

func TestMessageService_NotificationFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	svc := NewMessageService(
		env.repos.Messages, env.repos.Users,
		brokenNotificationsTx{inner: env.tx}, env.sink, MessagingPolicy{},
	)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	_, err := svc.SendMessage(ctx, SendMessageInput{SenderID: alice.ID, ReceiverID: bob.ID, Content: "lost"})
	require.ErrorIs(t, err, errNotificationStore)
	assert.Zero(t, env.count(t, &models.Message{}, ""))
	assert.Empty(t, env.sink.delivered())
}
