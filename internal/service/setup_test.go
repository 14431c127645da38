package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"socialnet/internal/models"
	"socialnet/internal/repository"
	"socialnet/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []*models.Notification
}

func (s *recordingSink) Deliver(_ context.Context, n *models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

func (s *recordingSink) delivered() []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Notification(nil), s.sent...)
}

type testEnv struct {
	db    *gorm.DB
	repos repository.Repos
	tx    repository.TxManager
	sink  *recordingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &testEnv{
		db:    db,
		repos: repository.NewRepos(db),
		tx:    repository.NewTxManager(db),
		sink:  &recordingSink{},
	}
}

func (e *testEnv) friendService() *FriendService {
	return NewFriendService(e.repos.Friends, e.repos.Users, e.tx, e.sink)
}

func (e *testEnv) messageService(requireFriendship bool) *MessageService {
	return NewMessageService(
		e.repos.Messages, e.repos.Users, e.tx, e.sink,
		MessagingPolicy{RequireFriendship: requireFriendship},
	)
}

func (e *testEnv) count(t *testing.T, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

var errNotificationStore = errors.New("notification store unavailable")

type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *models.Notification) error {
	return errNotificationStore
}

// brokenNotificationsTx runs the real transaction but fails every notification write.
type brokenNotificationsTx struct {
	inner repository.TxManager
}

func (b brokenNotificationsTx) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	return b.inner.WithinTx(ctx, func(r repository.Repos) error {
		r.Notifications = failingNotifications{r.Notifications}
		return fn(r)
	})
}

// unfriendingTx removes every friendship just before the transaction starts,
// as a concurrent unfriend would.
type unfriendingTx struct {
	inner repository.TxManager
	db    *gorm.DB
}

func (u unfriendingTx) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := u.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Friendship{}).Error; err != nil {
		return err
	}
	return u.inner.WithinTx(ctx, fn)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, models.IsCode(err, code), "expected %s, got %v", code, err)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
