package service

import (
	"context"
	"testing"

	"socialnet/internal/models"
	"socialnet/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_ListMarksPageRead(t *testing.T) {
	env := newTestEnv(t)
	svc := NewNotificationService(env.repos.Notifications)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	for i := 0; i < 3; i++ {
		n := models.NewNotification(alice.ID, &bob.ID, models.NotificationMessage, "New message from bob", "/messages/2")
		require.NoError(t, env.repos.Notifications.Create(ctx, n))
	}

	page, err := svc.List(ctx, alice.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.False(t, page[0].IsRead)

	unread, err := svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread, "only the listed page is marked read")

	marked, err := svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	err = svc.MarkRead(ctx, bob.ID, page[0].ID)
	assertCode(t, err, models.CodeNotFound)
}
