package server

import (
	"socialnet/internal/service"

	"github.com/gofiber/fiber/v2"
)

type sendMessageRequest struct {
	ReceiverID uint   `json:"receiver_id"`
	Content    string `json:"content"`
}

// SendMessage handles POST /api/messages
// @Summary Send a direct message
// @Description Requires an existing friendship unless MESSAGING_REQUIRE_FRIENDSHIP is off
// @Tags messages
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body sendMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	msg, err := s.messageService.SendMessage(c.UserContext(), service.SendMessageInput{
		SenderID:   currentUserID(c),
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// GetConversation handles GET /api/messages/:userId
// @Summary View a conversation
// @Description Marks the counterpart's unread messages read, then returns the thread oldest first
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Counterpart user ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset from the newest message"
// @Success 200 {object} service.ConversationView
// @Failure 404 {object} models.ErrorResponse
// @Router /messages/{userId} [get]
func (s *Server) GetConversation(c *fiber.Ctx) error {
	otherID, err := parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 50)

	view, err := s.messageService.ViewConversation(c.UserContext(), currentUserID(c), otherID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(view)
}

// GetConversations handles GET /api/messages/conversations
// @Summary One entry per counterpart with last message and unread count
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.ConversationSummary
// @Router /messages/conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	summaries, err := s.messageService.ListConversations(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(summaries)
}

// GetInbox handles GET /api/messages/inbox
// @Summary Received messages, newest first
// @Description Viewing the inbox marks every received message read
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Message
// @Router /messages/inbox [get]
func (s *Server) GetInbox(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	messages, err := s.messageService.Inbox(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(messages)
}

// GetSentMessages handles GET /api/messages/sent
// @Summary Sent messages, newest first
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Message
// @Router /messages/sent [get]
func (s *Server) GetSentMessages(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	messages, err := s.messageService.Sent(c.UserContext(), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(messages)
}

// GetUnreadMessageCount handles GET /api/messages/unread-count
// @Summary Unread message count
// @Tags messages
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{count=int}
// @Router /messages/unread-count [get]
func (s *Server) GetUnreadMessageCount(c *fiber.Ctx) error {
	count, err := s.messageService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}
