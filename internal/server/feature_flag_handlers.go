package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns configured feature flags and evaluated state for current user.
// @Summary Feature flag configuration
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool}
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(currentUserID(c)),
	})
}

// GetMyFeatureFlags handles GET /api/feature-flags
// @Summary Evaluated feature flags for the caller
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /feature-flags [get]
func (s *Server) GetMyFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(currentUserID(c)))
}
