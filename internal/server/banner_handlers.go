package server

import (
	"socialnet/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetActiveBanners handles GET /api/banners
// @Summary Banners currently on display
// @Tags banners
// @Produce json
// @Success 200 {array} models.Banner
// @Router /banners [get]
func (s *Server) GetActiveBanners(c *fiber.Ctx) error {
	banners, err := s.bannerService.ActiveBanners(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(banners)
}

// ListBanners handles GET /api/admin/banners
// @Summary Every banner, including inactive and scheduled ones
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.Banner
// @Router /admin/banners [get]
func (s *Server) ListBanners(c *fiber.Ctx) error {
	banners, err := s.bannerService.ListBanners(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(banners)
}

// GetBanner handles GET /api/admin/banners/:id
func (s *Server) GetBanner(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	banner, err := s.bannerService.GetBanner(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(banner)
}

// CreateBanner handles POST /api/admin/banners
// @Summary Create a banner
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.BannerInput true "Banner"
// @Success 201 {object} models.Banner
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/banners [post]
func (s *Server) CreateBanner(c *fiber.Ctx) error {
	var in service.BannerInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	banner, err := s.bannerService.CreateBanner(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(banner)
}

// UpdateBanner handles PUT /api/admin/banners/:id
// @Summary Replace a banner's fields
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Banner ID"
// @Param request body service.BannerInput true "Banner"
// @Success 200 {object} models.Banner
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/banners/{id} [put]
func (s *Server) UpdateBanner(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var in service.BannerInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	banner, err := s.bannerService.UpdateBanner(c.UserContext(), id, in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(banner)
}

// DeleteBanner handles DELETE /api/admin/banners/:id
func (s *Server) DeleteBanner(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.bannerService.DeleteBanner(c.UserContext(), id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
