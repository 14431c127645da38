package repository

import (
	"context"
	"errors"

	"socialnet/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FriendRepository defines data operations for friend requests and canonical friendships.
type FriendRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error)
	FindPendingBetween(ctx context.Context, userA, userB uint) (*models.FriendRequest, error)
	DeleteResolvedRequests(ctx context.Context, senderID, receiverID uint) error
	TransitionRequest(ctx context.Context, id uint, to models.FriendRequestStatus) error
	DeleteRequest(ctx context.Context, id uint) error
	ListIncoming(ctx context.Context, userID uint) ([]models.FriendRequest, error)
	ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRequest, error)

	CreateFriendship(ctx context.Context, userA, userB uint) (*models.Friendship, error)
	GetFriendshipByID(ctx context.Context, id uint) (*models.Friendship, error)
	GetFriendshipBetween(ctx context.Context, userA, userB uint) (*models.Friendship, error)
	AreFriends(ctx context.Context, userA, userB uint) (bool, error)
	// HoldFriendship is AreFriends with a share lock on the row, so the
	// friendship cannot be removed before the caller's transaction ends.
	HoldFriendship(ctx context.Context, userA, userB uint) (bool, error)
	DeleteFriendship(ctx context.Context, id uint) error
	ListFriends(ctx context.Context, userID uint) ([]models.User, error)
}

// friendRepository implements FriendRepository
type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	if req.Status == "" {
		req.Status = models.FriendRequestPending
	}
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Friend request already sent")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetRequestByID(ctx context.Context, id uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).Preload("Sender").Preload("Receiver").First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "Friend request", id)
	}
	return &req, nil
}

// FindPendingBetween returns the pending request in either direction, or nil.
func (r *friendRepository) FindPendingBetween(ctx context.Context, userA, userB uint) (*models.FriendRequest, error) {
	var req models.FriendRequest
	if err := r.db.WithContext(ctx).
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)) AND status = ?",
			userA, userB, userB, userA, models.FriendRequestPending).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &req, nil
}

// DeleteResolvedRequests clears accepted or rejected rows in one direction so a new
// request can take the (sender, receiver) slot. Resolved rows are never reopened.
func (r *friendRepository) DeleteResolvedRequests(ctx context.Context, senderID, receiverID uint) error {
	if err := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND status <> ?", senderID, receiverID, models.FriendRequestPending).
		Delete(&models.FriendRequest{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// TransitionRequest moves a pending request to a terminal status.
// A request that is no longer pending yields a Conflict.
func (r *friendRepository) TransitionRequest(ctx context.Context, id uint, to models.FriendRequestStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.FriendRequest{}).
		Where("id = ? AND status = ?", id, models.FriendRequestPending).
		Update("status", to)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewConflictError("Friend request is not pending")
	}
	return nil
}

func (r *friendRepository) DeleteRequest(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.FriendRequest{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) ListIncoming(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := readDB(r.db).WithContext(ctx).
		Where("receiver_id = ? AND status = ?", userID, models.FriendRequestPending).
		Preload("Sender").
		Order("created_at DESC, id DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

func (r *friendRepository) ListOutgoing(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	if err := readDB(r.db).WithContext(ctx).
		Where("sender_id = ? AND status = ?", userID, models.FriendRequestPending).
		Preload("Receiver").
		Order("created_at DESC, id DESC").
		Find(&reqs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return reqs, nil
}

// CreateFriendship stores the pair in canonical order. A duplicate pair is a Conflict.
func (r *friendRepository) CreateFriendship(ctx context.Context, userA, userB uint) (*models.Friendship, error) {
	user1, user2 := models.CanonicalPair(userA, userB)
	friendship := &models.Friendship{User1ID: user1, User2ID: user2}
	if err := r.db.WithContext(ctx).Create(friendship).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.NewConflictError("You are already friends")
		}
		return nil, models.NewInternalError(err)
	}
	return friendship, nil
}

func (r *friendRepository) GetFriendshipByID(ctx context.Context, id uint) (*models.Friendship, error) {
	var friendship models.Friendship
	if err := r.db.WithContext(ctx).First(&friendship, id).Error; err != nil {
		return nil, notFoundOr(err, "Friendship", id)
	}
	return &friendship, nil
}

// GetFriendshipBetween looks up the canonical pair; it returns nil when the users are not friends.
func (r *friendRepository) GetFriendshipBetween(ctx context.Context, userA, userB uint) (*models.Friendship, error) {
	user1, user2 := models.CanonicalPair(userA, userB)
	var friendship models.Friendship
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", user1, user2).
		First(&friendship).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &friendship, nil
}

func (r *friendRepository) AreFriends(ctx context.Context, userA, userB uint) (bool, error) {
	user1, user2 := models.CanonicalPair(userA, userB)
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("user1_id = ? AND user2_id = ? AND status = ?", user1, user2, models.FriendshipStatusAccepted).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *friendRepository) HoldFriendship(ctx context.Context, userA, userB uint) (bool, error) {
	user1, user2 := models.CanonicalPair(userA, userB)
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("user1_id = ? AND user2_id = ? AND status = ?", user1, user2, models.FriendshipStatusAccepted).
		Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return len(ids) > 0, nil
}

func (r *friendRepository) DeleteFriendship(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Friendship{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User

	// Each canonical row contributes exactly the member that is not userID.
	if err := readDB(r.db).WithContext(ctx).
		Joins("JOIN friendships f ON (f.user1_id = ? AND f.user2_id = users.id) OR (f.user2_id = ? AND f.user1_id = users.id)",
			userID, userID).
		Where("f.status = ?", models.FriendshipStatusAccepted).
		Order("users.username ASC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	return users, nil
}
