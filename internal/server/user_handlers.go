package server

import (
	"time"

	"socialnet/internal/featureflags"
	"socialnet/internal/models"
	"socialnet/internal/service"

	"github.com/gofiber/fiber/v2"
)

const profilePostLimit = 10

// GetAllUsers handles GET /api/users
// @Summary List users
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} models.User
// @Router /users [get]
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// SearchUsers handles GET /api/users/search?q=
// @Summary Search users
// @Description Case-insensitive match on username, first or last name; excludes the caller
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param q query string true "Query"
// @Success 200 {array} models.User
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	users, err := s.userService.SearchUsers(c.UserContext(), c.Query("q"), currentUserID(c), page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:id
// @Summary Get a user's profile with recent posts
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetProfile(c.UserContext(), id, profilePostLimit)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetMyProfile handles GET /api/users/me
// @Summary Get the current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

type updateProfileRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Bio            *string `json:"bio"`
	Location       *string `json:"location"`
	Website        *string `json:"website"`
	ProfilePicture *string `json:"profile_picture"`
	MobileNumber   *string `json:"mobile_number"`
	// DateOfBirth is YYYY-MM-DD.
	DateOfBirth *string `json:"date_of_birth"`
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update the current user's profile
// @Description Only fields present in the body change
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body updateProfileRequest true "Profile fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	in := service.UpdateProfileInput{
		UserID:         currentUserID(c),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Bio:            req.Bio,
		Location:       req.Location,
		Website:        req.Website,
		ProfilePicture: req.ProfilePicture,
		MobileNumber:   req.MobileNumber,
	}
	if req.DateOfBirth != nil && *req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("date_of_birth must be YYYY-MM-DD"))
		}
		in.DateOfBirth = &dob
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// FollowUser handles POST /api/users/:id/follow
// @Summary Follow a user
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Router /users/{id}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.Follow(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UnfollowUser handles DELETE /api/users/:id/follow
// @Summary Unfollow a user
// @Tags users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Router /users/{id}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.userService.Unfollow(c.UserContext(), currentUserID(c), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFollowers handles GET /api/users/:id/followers
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.userService.Followers(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/users/:id/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	users, err := s.userService.Following(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(users)
}

// PromoteToAdmin handles POST /api/users/:id/promote-admin
// @Summary Grant admin
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 403 {object} models.ErrorResponse
// @Router /users/{id}/promote-admin [post]
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// DemoteFromAdmin handles POST /api/users/:id/demote-admin
// @Summary Revoke admin
// @Tags admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/{id}/demote-admin [post]
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

func (s *Server) setAdmin(c *fiber.Ctx, isAdmin bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	// Admins cannot lock themselves out.
	if !isAdmin && id == currentUserID(c) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("You cannot remove your own admin access"))
	}

	user, err := s.userService.SetAdmin(c.UserContext(), id, isAdmin)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(user)
}

// GetSearchToken handles GET /api/search/token
// @Summary Issue a tenant search token
// @Description Short-lived Meilisearch token scoped to the caller
// @Tags search
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{token=string,host=string}
// @Failure 403 {object} models.ErrorResponse
// @Router /search/token [get]
func (s *Server) GetSearchToken(c *fiber.Ctx) error {
	userID := currentUserID(c)
	if !s.featureFlags.Enabled(featureflags.SearchTokens, userID) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Search tokens are not enabled"))
	}
	token, err := s.userService.SearchToken(userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"token": token,
		"host":  s.config.MeilisearchHost,
	})
}
