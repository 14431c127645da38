package service

import (
	"context"

	"socialnet/internal/models"
	"socialnet/internal/repository"
)

type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// List returns a page of notifications newest first and marks the unread ones
// on that page as read. The returned items still show their prior state.
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	items, err := s.notificationRepo.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	unread := make([]uint, 0, len(items))
	for _, n := range items {
		if !n.IsRead {
			unread = append(unread, n.ID)
		}
	}
	if err := s.notificationRepo.MarkIDsRead(ctx, userID, unread); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.notificationRepo.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.notificationRepo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.notificationRepo.UnreadCount(ctx, userID)
}
