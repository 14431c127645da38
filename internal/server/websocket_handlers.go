package server

import (
	"context"
	"strconv"

	"socialnet/internal/cache"
	"socialnet/internal/middleware"
	"socialnet/internal/models"
	"socialnet/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// IssueWSTicket handles POST /api/ws/ticket
// @Summary Issue a single-use websocket ticket
// @Description Browsers cannot set headers on the upgrade request; pass the ticket as ?ticket= on /api/ws
// @Tags realtime
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{ticket=string,expires_in=int}
// @Failure 503 {object} models.ErrorResponse
// @Router /ws/ticket [post]
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(errRedisUnavailable))
	}

	ticket := uuid.NewString()
	userID := currentUserID(c)
	if err := s.redis.Set(c.UserContext(), cache.WSTicketKey(ticket),
		strconv.FormatUint(uint64(userID), 10), cache.WSTicketTTL).Err(); err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL.Seconds()),
	})
}

// WebsocketHandler upgrades /api/ws to the caller's notification stream.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register failed", "user_id", userID, "error", err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		ctx := context.Background()
		s.notifyFriendsPresence(ctx, userID, "online")
		s.sendFriendsOnlineSnapshot(ctx, client)

		client.Serve()

		// Other tabs may still be open.
		if !s.hub.IsOnline(userID) {
			s.notifyFriendsPresence(ctx, userID, "offline")
		}
	})
}

// sendFriendsOnlineSnapshot queues the friends that are connected right now.
func (s *Server) sendFriendsOnlineSnapshot(ctx context.Context, client *notifications.Client) {
	friends, err := s.friendService.ListFriends(ctx, client.UserID)
	if err != nil {
		middleware.Logger.Warn("friends snapshot failed", "user_id", client.UserID, "error", err)
		return
	}

	online := make([]userSummary, 0, len(friends))
	for _, friend := range friends {
		if s.hub.IsOnline(friend.ID) {
			online = append(online, summarize(friend))
		}
	}

	msg, err := notifications.EncodeEvent(notifications.EventFriendsOnlineSnapshot, map[string]interface{}{
		"friends": online,
	})
	if err != nil {
		return
	}
	client.TrySend([]byte(msg))
}
