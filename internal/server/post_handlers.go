package server

import (
	"socialnet/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Hashtags in the content become the post's topics
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body postRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:   currentUserID(c),
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	s.publishPostCreated(c.UserContext(), post)
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts
// @Summary List posts, newest first
// @Tags posts
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Limit:         page.Limit,
		Offset:        page.Offset,
		CurrentUserID: s.optionalUserID(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// SearchPosts handles GET /api/posts/search?q=
// @Summary Search posts by content
// @Tags posts
// @Produce json
// @Param q query string true "Query"
// @Success 200 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.SearchPosts(c.UserContext(), c.Query("q"), page.Limit, page.Offset,
		s.optionalUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary A user's posts, newest first
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {array} models.Post
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page := parsePagination(c, 20)

	posts, err := s.postService.GetUserPosts(c.UserContext(), userID, page.Limit, page.Offset, currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit a post
// @Description Only the author may edit; topics are recomputed from the new content
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body postRequest true "Post"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:   currentUserID(c),
		PostID:   id,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Authors and admins may delete
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	err = s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.LikeToggleResult
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(result)
}

// GetTrendingTopics handles GET /api/topics/trending
// @Summary Most used hashtags over the last week
// @Tags topics
// @Produce json
// @Success 200 {array} models.TrendingTopic
// @Router /topics/trending [get]
func (s *Server) GetTrendingTopics(c *fiber.Ctx) error {
	topics, err := s.postService.TrendingTopics(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(topics)
}

// GetTopicPosts handles GET /api/topics/:name/posts
// @Summary Posts tagged with a topic
// @Tags topics
// @Produce json
// @Param name path string true "Topic name without the #"
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /topics/{name}/posts [get]
func (s *Server) GetTopicPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.TopicPosts(c.UserContext(), c.Params("name"), page.Limit, page.Offset,
		s.optionalUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}

// AdminSearchPosts handles GET /api/admin/posts/search
// @Summary Search posts by content and author
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param content query string false "Content substring"
// @Param author query string false "Author username substring"
// @Success 200 {array} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/posts/search [get]
func (s *Server) AdminSearchPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	posts, err := s.postService.AdminSearchPosts(c.UserContext(), c.Query("content"), c.Query("author"),
		page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(posts)
}
