package service

import (
	"context"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/repository"
	"socialnet/internal/validation"
)

type BannerService struct {
	bannerRepo repository.BannerRepository
	now        func() time.Time
}

// BannerInput is the admin payload for creating or replacing a banner.
type BannerInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url" validate:"omitempty,url"`
	URL         string     `json:"url" validate:"omitempty,url"`
	IsActive    *bool      `json:"is_active"`
	SortOrder   int        `json:"sort_order"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func NewBannerService(bannerRepo repository.BannerRepository) *BannerService {
	return &BannerService{
		bannerRepo: bannerRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ActiveBanners returns the banners live right now, in display order.
func (s *BannerService) ActiveBanners(ctx context.Context) ([]models.Banner, error) {
	return s.bannerRepo.ListActive(ctx, s.now())
}

func (s *BannerService) ListBanners(ctx context.Context) ([]models.Banner, error) {
	return s.bannerRepo.List(ctx)
}

func (s *BannerService) GetBanner(ctx context.Context, id uint) (*models.Banner, error) {
	return s.bannerRepo.GetByID(ctx, id)
}

func (s *BannerService) CreateBanner(ctx context.Context, in BannerInput) (*models.Banner, error) {
	banner := &models.Banner{IsActive: true}
	if err := s.apply(banner, in); err != nil {
		return nil, err
	}
	if err := s.bannerRepo.Create(ctx, banner); err != nil {
		return nil, err
	}
	return banner, nil
}

func (s *BannerService) UpdateBanner(ctx context.Context, id uint, in BannerInput) (*models.Banner, error) {
	banner, err := s.bannerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(banner, in); err != nil {
		return nil, err
	}
	if err := s.bannerRepo.Update(ctx, banner); err != nil {
		return nil, err
	}
	return banner, nil
}

func (s *BannerService) DeleteBanner(ctx context.Context, id uint) error {
	return s.bannerRepo.Delete(ctx, id)
}

func (s *BannerService) apply(banner *models.Banner, in BannerInput) error {
	in.Title = validation.SanitizeText(in.Title)
	in.Description = validation.SanitizeText(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.URL = strings.TrimSpace(in.URL)
	if err := validation.Struct(in); err != nil {
		return err
	}

	start := banner.StartDate
	if in.StartDate != nil {
		start = in.StartDate.UTC()
	}
	if start.IsZero() {
		start = s.now()
	}
	if in.EndDate != nil && in.EndDate.Before(start) {
		return models.NewValidationError("end_date must not be before start_date")
	}

	banner.Title = in.Title
	banner.Description = in.Description
	banner.ImageURL = in.ImageURL
	banner.URL = in.URL
	banner.SortOrder = in.SortOrder
	banner.StartDate = start
	if in.EndDate != nil {
		end := in.EndDate.UTC()
		banner.EndDate = &end
	} else {
		banner.EndDate = nil
	}
	if in.IsActive != nil {
		banner.IsActive = *in.IsActive
	}
	return nil
}
