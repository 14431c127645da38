package repository

import (
	"context"
	"sort"
	"time"

	"socialnet/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines data operations for direct messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	ListConversation(ctx context.Context, userA, userB uint, limit, offset int) ([]models.Message, error)
	MarkConversationRead(ctx context.Context, readerID, senderID uint, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, receiverID uint, at time.Time) (int64, error)
	ListInbox(ctx context.Context, receiverID uint, limit, offset int) ([]models.Message, error)
	ListSent(ctx context.Context, senderID uint, limit, offset int) ([]models.Message, error)
	UnreadCount(ctx context.Context, receiverID uint) (int64, error)
	ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListConversation returns one page of the conversation, newest page first,
// with the messages inside the page in chronological order.
func (r *messageRepository) ListConversation(ctx context.Context, userA, userB uint, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userA, userB, userB, userA).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkConversationRead flips unread messages sent by senderID to readerID. The
// opposite direction is untouched.
func (r *messageRepository) MarkConversationRead(ctx context.Context, readerID, senderID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", senderID, readerID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *messageRepository) MarkAllRead(ctx context.Context, receiverID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

func (r *messageRepository) ListInbox(ctx context.Context, receiverID uint, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	if err := readDB(r.db).WithContext(ctx).
		Preload("Sender").
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

func (r *messageRepository) ListSent(ctx context.Context, senderID uint, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	if err := readDB(r.db).WithContext(ctx).
		Preload("Receiver").
		Where("sender_id = ?", senderID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(offset).
		Find(&msgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return msgs, nil
}

func (r *messageRepository) UnreadCount(ctx context.Context, receiverID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

type conversationHead struct {
	OtherID uint
	LastID  uint
}

type unreadBySender struct {
	SenderID uint
	Unread   int64
}

// ListConversations returns one summary per counterpart ordered by the most recent message.
func (r *messageRepository) ListConversations(ctx context.Context, userID uint) ([]models.ConversationSummary, error) {
	db := readDB(r.db).WithContext(ctx)

	var heads []conversationHead
	if err := db.Raw(`
SELECT other_id, MAX(id) AS last_id FROM (
	SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS other_id, id
	FROM messages
	WHERE sender_id = ? OR receiver_id = ?
) AS m
GROUP BY other_id`, userID, userID, userID).Scan(&heads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(heads) == 0 {
		return []models.ConversationSummary{}, nil
	}

	lastIDs := make([]uint, 0, len(heads))
	otherIDs := make([]uint, 0, len(heads))
	for _, h := range heads {
		lastIDs = append(lastIDs, h.LastID)
		otherIDs = append(otherIDs, h.OtherID)
	}

	var lastMsgs []models.Message
	if err := db.Where("id IN ?", lastIDs).Find(&lastMsgs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	msgByID := make(map[uint]*models.Message, len(lastMsgs))
	for i := range lastMsgs {
		msgByID[lastMsgs[i].ID] = &lastMsgs[i]
	}

	var users []models.User
	if err := db.Where("id IN ?", otherIDs).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	userByID := make(map[uint]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	var unread []unreadBySender
	if err := db.Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS unread").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("sender_id").
		Scan(&unread).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	unreadByUser := make(map[uint]int64, len(unread))
	for _, u := range unread {
		unreadByUser[u.SenderID] = u.Unread
	}

	summaries := make([]models.ConversationSummary, 0, len(heads))
	for _, h := range heads {
		other, ok := userByID[h.OtherID]
		if !ok {
			// counterpart was soft-deleted
			continue
		}
		summaries = append(summaries, models.ConversationSummary{
			OtherUser:   other,
			LastMessage: msgByID[h.LastID],
			UnreadCount: unreadByUser[h.OtherID],
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LastMessage, summaries[j].LastMessage
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return summaries, nil
}
