package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// GetAnalyticsDashboard handles GET /api/admin/analytics/dashboard
// @Summary Platform metrics over the last N days
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param days query int false "Days to cover (default 30, max 365)"
// @Success 200 {object} models.Dashboard
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/analytics/dashboard [get]
func (s *Server) GetAnalyticsDashboard(c *fiber.Ctx) error {
	dashboard, err := s.analyticsService.Dashboard(c.UserContext(), c.QueryInt("days", 0))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(dashboard)
}

// GetUserActivityReport handles GET /api/admin/analytics/users/:username
// @Summary Per-day activity for one user
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param username path string true "Username"
// @Param days query int false "Days to cover (default 30, max 365)"
// @Success 200 {object} models.UserActivityReport
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/analytics/users/{username} [get]
func (s *Server) GetUserActivityReport(c *fiber.Ctx) error {
	report, err := s.analyticsService.UserActivityReport(c.UserContext(), c.Params("username"), c.QueryInt("days", 0))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(report)
}

// RefreshAnalytics handles POST /api/admin/analytics/refresh
// @Summary Recompute today's platform and per-user rollups now
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.DailyMetrics
// @Router /admin/analytics/refresh [post]
func (s *Server) RefreshAnalytics(c *fiber.Ctx) error {
	metrics, err := s.analyticsService.RollupDay(c.UserContext(), time.Now().UTC())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(metrics)
}
