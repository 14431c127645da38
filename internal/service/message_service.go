package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"socialnet/internal/cache"
	"socialnet/internal/models"
	"socialnet/internal/observability"
	"socialnet/internal/repository"
	"socialnet/internal/validation"
)

var errNotFriends = errors.New("sender and receiver are not friends")

// MessagingPolicy controls who may message whom.
type MessagingPolicy struct {
	RequireFriendship bool
}

// MessageService implements direct messaging over the single message store.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	tx          repository.TxManager
	sink        NotificationSink
	policy      MessagingPolicy
	now         func() time.Time
}

type SendMessageInput struct {
	SenderID   uint
	ReceiverID uint
	Content    string
}

// ConversationView is one side's view of a two-party thread.
type ConversationView struct {
	OtherUser  models.User      `json:"other_user"`
	Messages   []models.Message `json:"messages"`
	MarkedRead int64            `json:"marked_read"`
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	tx repository.TxManager,
	sink NotificationSink,
	policy MessagingPolicy,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		tx:          tx,
		sink:        sinkOrDiscard(sink),
		policy:      policy,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SendMessage stores a message and its notification in one transaction.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	ctx, span := observability.StartServiceSpan(ctx, "message", "SendMessage")
	out, err := s.sendMessage(ctx, in)
	observability.EndSpan(span, err)
	return out, err
}

func (s *MessageService) sendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	content := validation.SanitizeText(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Message cannot be empty.")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, models.NewValidationError(fmt.Sprintf("Message too long (max %d characters)", models.MaxMessageLength))
	}
	if in.SenderID == in.ReceiverID {
		return nil, models.NewValidationError("You cannot message yourself")
	}

	receiver, err := s.userRepo.GetByID(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	sender, err := s.userRepo.GetByID(ctx, in.SenderID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    content,
	}
	var notification *models.Notification
	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		if s.policy.RequireFriendship {
			friends, err := r.Friends.HoldFriendship(ctx, in.SenderID, in.ReceiverID)
			if err != nil {
				return err
			}
			if !friends {
				return errNotFriends
			}
		}
		if err := r.Messages.Create(ctx, msg); err != nil {
			return err
		}
		notification = models.NewNotification(
			in.ReceiverID,
			&in.SenderID,
			models.NotificationMessage,
			fmt.Sprintf("New message from %s", sender.Username),
			fmt.Sprintf("/messages/%d", in.SenderID),
		)
		return r.Notifications.Create(ctx, notification)
	})
	if errors.Is(err, errNotFriends) {
		observability.MessagesTotal.WithLabelValues("blocked").Inc()
		return nil, models.NewForbiddenError("You can only message your friends.")
	}
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, cache.UnreadKey(in.ReceiverID))
	observability.MessagesTotal.WithLabelValues("sent").Inc()
	observability.NotificationsCreated.WithLabelValues(string(notification.Type)).Inc()
	deliverAll(ctx, s.sink, notification)

	msg.Sender = *sender
	msg.Receiver = *receiver
	return msg, nil
}

// ViewConversation marks everything otherID sent to viewerID as read and
// returns the thread oldest first.
func (s *MessageService) ViewConversation(ctx context.Context, viewerID, otherID uint, limit, offset int) (*ConversationView, error) {
	other, err := s.userRepo.GetByID(ctx, otherID)
	if err != nil {
		return nil, err
	}

	marked, err := s.messageRepo.MarkConversationRead(ctx, viewerID, otherID, s.now())
	if err != nil {
		return nil, err
	}
	if marked > 0 {
		cache.Invalidate(ctx, cache.UnreadKey(viewerID))
	}

	msgs, err := s.messageRepo.ListConversation(ctx, viewerID, otherID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ConversationView{OtherUser: *other, Messages: msgs, MarkedRead: marked}, nil
}

func (s *MessageService) ListConversations(ctx context.Context, viewerID uint) ([]models.ConversationSummary, error) {
	return s.messageRepo.ListConversations(ctx, viewerID)
}

// Inbox returns received messages newest first, then marks all of them read.
// The returned rows keep their read state from before the call.
func (s *MessageService) Inbox(ctx context.Context, viewerID uint, limit, offset int) ([]models.Message, error) {
	msgs, err := s.messageRepo.ListInbox(ctx, viewerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if _, err := s.messageRepo.MarkAllRead(ctx, viewerID, s.now()); err != nil {
		return nil, err
	}
	cache.Invalidate(ctx, cache.UnreadKey(viewerID))
	return msgs, nil
}

func (s *MessageService) Sent(ctx context.Context, viewerID uint, limit, offset int) ([]models.Message, error) {
	return s.messageRepo.ListSent(ctx, viewerID, limit, offset)
}

// UnreadCount is cached briefly; every read or send for the user drops the entry.
func (s *MessageService) UnreadCount(ctx context.Context, viewerID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.UnreadKey(viewerID), &count, cache.UnreadTTL, func() error {
		var err error
		count, err = s.messageRepo.UnreadCount(ctx, viewerID)
		return err
	})
	return count, err
}
