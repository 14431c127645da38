package service

import (
	"context"
	"fmt"

	"socialnet/internal/models"
	"socialnet/internal/observability"
	"socialnet/internal/repository"
)

// Friendship status values returned by FriendService.FriendshipStatus.
const (
	RelationNone            = "none"
	RelationFriends         = "friends"
	RelationPendingSent     = "pending_sent"
	RelationPendingReceived = "pending_received"
)

const friendRequestsLink = "/friends/requests"

// FriendService provides friend-request and friendship business logic.
type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	tx         repository.TxManager
	sink       NotificationSink
}

// RelationStatus describes how the actor relates to another user.
type RelationStatus struct {
	Status    string `json:"status"`
	RequestID uint   `json:"request_id,omitempty"`
}

// NewFriendService returns a new FriendService.
func NewFriendService(
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	tx repository.TxManager,
	sink NotificationSink,
) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		tx:         tx,
		sink:       sinkOrDiscard(sink),
	}
}

// SendFriendRequest creates a pending request from actorID to receiverID and
// notifies the receiver.
func (s *FriendService) SendFriendRequest(ctx context.Context, actorID, receiverID uint) (*models.FriendRequest, error) {
	ctx, span := observability.StartServiceSpan(ctx, "friend", "SendFriendRequest")
	out, err := s.sendFriendRequest(ctx, actorID, receiverID)
	observability.EndSpan(span, err)
	return out, err
}

func (s *FriendService) sendFriendRequest(ctx context.Context, actorID, receiverID uint) (*models.FriendRequest, error) {
	if actorID == receiverID {
		return nil, models.NewValidationError("You cannot send a friend request to yourself")
	}

	receiver, err := s.userRepo.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	sender, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var (
		req          *models.FriendRequest
		notification *models.Notification
	)
	err = s.tx.WithinTx(ctx, func(r repository.Repos) error {
		friends, err := r.Friends.AreFriends(ctx, actorID, receiverID)
		if err != nil {
			return err
		}
		if friends {
			return models.NewConflictError("You are already friends")
		}

		pending, err := r.Friends.FindPendingBetween(ctx, actorID, receiverID)
		if err != nil {
			return err
		}
		if pending != nil {
			if pending.SenderID == actorID {
				return models.NewConflictError("Friend request already sent")
			}
			return models.NewConflictError("This user has already sent you a friend request")
		}

		if err := r.Friends.DeleteResolvedRequests(ctx, actorID, receiverID); err != nil {
			return err
		}

		req = &models.FriendRequest{SenderID: actorID, ReceiverID: receiverID, Status: models.FriendRequestPending}
		if err := r.Friends.CreateRequest(ctx, req); err != nil {
			return err
		}

		notification = models.NewNotification(
			receiverID,
			&actorID,
			models.NotificationFriendRequest,
			fmt.Sprintf("%s sent you a friend request!", sender.Username),
			friendRequestsLink,
		)
		return r.Notifications.Create(ctx, notification)
	})
	if err != nil {
		return nil, err
	}

	observability.FriendRequestsTotal.WithLabelValues("sent").Inc()
	observability.NotificationsCreated.WithLabelValues(string(notification.Type)).Inc()
	deliverAll(ctx, s.sink, notification)

	req.Sender = *sender
	req.Receiver = *receiver
	return req, nil
}

// AcceptFriendRequest turns a pending request addressed to actorID into a friendship.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, actorID, requestID uint) (*models.Friendship, error) {
	ctx, span := observability.StartServiceSpan(ctx, "friend", "AcceptFriendRequest")
	out, err := s.acceptFriendRequest(ctx, actorID, requestID)
	observability.EndSpan(span, err)
	return out, err
}

func (s *FriendService) acceptFriendRequest(ctx context.Context, actorID, requestID uint) (*models.Friendship, error) {
	var (
		friendship   *models.Friendship
		notification *models.Notification
	)
	err := s.tx.WithinTx(ctx, func(r repository.Repos) error {
		req, err := r.Friends.GetRequestByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.ReceiverID != actorID {
			return models.NewForbiddenError("You can only accept friend requests sent to you")
		}
		if !req.IsPending() {
			return models.NewConflictError("Friend request is not pending")
		}

		friendship, err = r.Friends.CreateFriendship(ctx, req.SenderID, req.ReceiverID)
		if err != nil {
			return err
		}
		if err := r.Friends.TransitionRequest(ctx, req.ID, models.FriendRequestAccepted); err != nil {
			return err
		}

		notification = models.NewNotification(
			req.SenderID,
			&actorID,
			models.NotificationFriendRequestAccepted,
			fmt.Sprintf("%s accepted your friend request!", req.Receiver.Username),
			"/friends",
		)
		return r.Notifications.Create(ctx, notification)
	})
	if err != nil {
		return nil, err
	}

	observability.FriendRequestsTotal.WithLabelValues("accepted").Inc()
	observability.NotificationsCreated.WithLabelValues(string(notification.Type)).Inc()
	deliverAll(ctx, s.sink, notification)
	return friendship, nil
}

// RejectFriendRequest marks a pending request addressed to actorID as rejected.
func (s *FriendService) RejectFriendRequest(ctx context.Context, actorID, requestID uint) (*models.FriendRequest, error) {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ReceiverID != actorID {
		return nil, models.NewForbiddenError("You can only reject friend requests sent to you")
	}
	if !req.IsPending() {
		return nil, models.NewConflictError("Friend request is not pending")
	}

	if err := s.friendRepo.TransitionRequest(ctx, req.ID, models.FriendRequestRejected); err != nil {
		return nil, err
	}
	req.Status = models.FriendRequestRejected

	observability.FriendRequestsTotal.WithLabelValues("rejected").Inc()
	return req, nil
}

// CancelFriendRequest withdraws a pending request sent by actorID.
func (s *FriendService) CancelFriendRequest(ctx context.Context, actorID, requestID uint) (*models.FriendRequest, error) {
	req, err := s.friendRepo.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.SenderID != actorID {
		return nil, models.NewForbiddenError("You can only cancel friend requests you sent")
	}
	if !req.IsPending() {
		return nil, models.NewConflictError("Friend request is not pending")
	}

	if err := s.friendRepo.DeleteRequest(ctx, req.ID); err != nil {
		return nil, err
	}

	observability.FriendRequestsTotal.WithLabelValues("cancelled").Inc()
	return req, nil
}

// ListIncomingRequests returns pending requests addressed to userID.
func (s *FriendService) ListIncomingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.ListIncoming(ctx, userID)
}

// ListOutgoingRequests returns pending requests sent by userID.
func (s *FriendService) ListOutgoingRequests(ctx context.Context, userID uint) ([]models.FriendRequest, error) {
	return s.friendRepo.ListOutgoing(ctx, userID)
}

// RemoveFriend deletes a friendship the actor is a member of.
func (s *FriendService) RemoveFriend(ctx context.Context, actorID, friendshipID uint) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetFriendshipByID(ctx, friendshipID)
	if err != nil {
		return nil, err
	}
	if !friendship.Includes(actorID) {
		return nil, models.NewForbiddenError("You can only remove your own friends")
	}

	if err := s.friendRepo.DeleteFriendship(ctx, friendship.ID); err != nil {
		return nil, err
	}
	return friendship, nil
}

// RemoveFriendByUser deletes the friendship between actorID and otherID.
func (s *FriendService) RemoveFriendByUser(ctx context.Context, actorID, otherID uint) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetFriendshipBetween(ctx, actorID, otherID)
	if err != nil {
		return nil, err
	}
	if friendship == nil {
		return nil, models.NewNotFoundError("Friendship", otherID)
	}
	return s.RemoveFriend(ctx, actorID, friendship.ID)
}

// ListFriends returns each friend of userID once.
func (s *FriendService) ListFriends(ctx context.Context, userID uint) ([]models.User, error) {
	return s.friendRepo.ListFriends(ctx, userID)
}

// AreFriends reports whether a and b are friends, in either order.
func (s *FriendService) AreFriends(ctx context.Context, a, b uint) (bool, error) {
	return s.friendRepo.AreFriends(ctx, a, b)
}

// FriendshipStatus describes the relation between actorID and otherID.
func (s *FriendService) FriendshipStatus(ctx context.Context, actorID, otherID uint) (*RelationStatus, error) {
	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		return nil, err
	}

	friends, err := s.friendRepo.AreFriends(ctx, actorID, otherID)
	if err != nil {
		return nil, err
	}
	if friends {
		return &RelationStatus{Status: RelationFriends}, nil
	}

	pending, err := s.friendRepo.FindPendingBetween(ctx, actorID, otherID)
	if err != nil {
		return nil, err
	}
	switch {
	case pending == nil:
		return &RelationStatus{Status: RelationNone}, nil
	case pending.SenderID == actorID:
		return &RelationStatus{Status: RelationPendingSent, RequestID: pending.ID}, nil
	default:
		return &RelationStatus{Status: RelationPendingReceived, RequestID: pending.ID}, nil
	}
}
