package server

import (
	"socialnet/internal/notifications"

	"github.com/gofiber/fiber/v2"
)

// SendFriendRequest handles POST /api/friends/requests/:userId
// @Summary Send a friend request
// @Description Fails with 409 when a pending request exists in either direction or the users are already friends
// @Tags friends
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Receiver user ID"
// @Success 201 {object} models.FriendRequest
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /friends/requests/{userId} [post]
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	receiverID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	req, err := s.friendService.SendFriendRequest(c.UserContext(), currentUserID(c), receiverID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// GetIncomingRequests handles GET /api/friends/requests
// @Summary Pending requests addressed to the caller
// @Tags friends
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.FriendRequest
// @Router /friends/requests [get]
func (s *Server) GetIncomingRequests(c *fiber.Ctx) error {
	requests, err := s.friendService.ListIncomingRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// GetSentRequests handles GET /api/friends/requests/sent
// @Summary Pending requests sent by the caller
// @Tags friends
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.FriendRequest
// @Router /friends/requests/sent [get]
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	requests, err := s.friendService.ListOutgoingRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(requests)
}

// AcceptFriendRequest handles POST /api/friends/requests/:requestId/accept
// @Summary Accept a friend request
// @Tags friends
// @Security BearerAuth
// @Produce json
// @Param requestId path int true "Request ID"
// @Success 200 {object} models.Friendship
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /friends/requests/{requestId}/accept [post]
func (s *Server) AcceptFriendRequest(c *fiber.Ctx) error {
	requestID, err := parseID(c, "requestId")
	if err != nil {
		return nil
	}

	friendship, err := s.friendService.AcceptFriendRequest(c.UserContext(), currentUserID(c), requestID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(friendship)
}

// RejectFriendRequest handles POST /api/friends/requests/:requestId/reject
// @Summary Reject a friend request
// @Tags friends
// @Security BearerAuth
// @Produce json
// @Param requestId path int true "Request ID"
// @Success 200 {object} models.FriendRequest
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /friends/requests/{requestId}/reject [post]
func (s *Server) RejectFriendRequest(c *fiber.Ctx) error {
	requestID, err := parseID(c, "requestId")
	if err != nil {
		return nil
	}

	req, err := s.friendService.RejectFriendRequest(c.UserContext(), currentUserID(c), requestID)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishUserEvent(c.UserContext(), req.SenderID, notifications.EventFriendRequestRejected, map[string]interface{}{
		"request_id": req.ID,
	})
	return c.JSON(req)
}

// CancelFriendRequest handles DELETE /api/friends/requests/:requestId
// @Summary Cancel a sent friend request
// @Tags friends
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /friends/requests/{requestId} [delete]
func (s *Server) CancelFriendRequest(c *fiber.Ctx) error {
	requestID, err := parseID(c, "requestId")
	if err != nil {
		return nil
	}

	req, err := s.friendService.CancelFriendRequest(c.UserContext(), currentUserID(c), requestID)
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishUserEvent(c.UserContext(), req.ReceiverID, notifications.EventFriendRequestCancelled, map[string]interface{}{
		"request_id": req.ID,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFriends handles GET /api/friends
// @Summary List the caller's friends
// @Tags friends
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.User
// @Router /friends [get]
func (s *Server) GetFriends(c *fiber.Ctx) error {
	friends, err := s.friendService.ListFriends(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(friends)
}

// GetFriendshipStatus handles GET /api/friends/status/:userId
// @Summary Relationship between the caller and another user
// @Tags friends
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Other user ID"
// @Success 200 {object} service.RelationStatus
// @Router /friends/status/{userId} [get]
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	otherID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	status, err := s.friendService.FriendshipStatus(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(status)
}

// RemoveFriend handles DELETE /api/friends/:friendshipId
// @Summary Remove a friendship
// @Description Only a member of the friendship may remove it
// @Tags friends
// @Security BearerAuth
// @Param friendshipId path int true "Friendship ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /friends/{friendshipId} [delete]
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	friendshipID, err := parseID(c, "friendshipId")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	friendship, err := s.friendService.RemoveFriend(c.UserContext(), userID, friendshipID)
	if err != nil {
		return respondServiceError(c, err)
	}
	s.announceFriendRemoved(c, userID, friendship.User1ID, friendship.User2ID, friendship.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveFriendByUser handles DELETE /api/friends/users/:userId
// @Summary Remove the friendship with a user
// @Tags friends
// @Security BearerAuth
// @Param userId path int true "Friend user ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /friends/users/{userId} [delete]
func (s *Server) RemoveFriendByUser(c *fiber.Ctx) error {
	otherID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	friendship, err := s.friendService.RemoveFriendByUser(c.UserContext(), userID, otherID)
	if err != nil {
		return respondServiceError(c, err)
	}
	s.announceFriendRemoved(c, userID, friendship.User1ID, friendship.User2ID, friendship.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) announceFriendRemoved(c *fiber.Ctx, actorID, user1ID, user2ID, friendshipID uint) {
	other := user1ID
	if other == actorID {
		other = user2ID
	}
	s.publishUserEvent(c.UserContext(), other, notifications.EventFriendRemoved, map[string]interface{}{
		"friendship_id": friendshipID,
		"user_id":       actorID,
	})
}
