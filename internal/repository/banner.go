package repository

import (
	"context"
	"time"

	"socialnet/internal/cache"
	"socialnet/internal/models"

	"gorm.io/gorm"
)

// BannerRepository defines data operations for promotional banners.
type BannerRepository interface {
	ListActive(ctx context.Context, now time.Time) ([]models.Banner, error)
	List(ctx context.Context) ([]models.Banner, error)
	GetByID(ctx context.Context, id uint) (*models.Banner, error)
	Create(ctx context.Context, banner *models.Banner) error
	Update(ctx context.Context, banner *models.Banner) error
	Delete(ctx context.Context, id uint) error
}

type bannerRepository struct {
	db *gorm.DB
}

// NewBannerRepository creates a new banner repository
func NewBannerRepository(db *gorm.DB) BannerRepository {
	return &bannerRepository{db: db}
}

// ListActive caches every enabled banner and applies the schedule window on
// each call, so a cached list never outlives a start or end date.
func (r *bannerRepository) ListActive(ctx context.Context, now time.Time) ([]models.Banner, error) {
	var enabled []models.Banner
	err := cache.Aside(ctx, cache.ActiveBannersKey, &enabled, cache.BannerTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).
			Where("is_active = ?", true).
			Order("sort_order ASC, created_at DESC").
			Find(&enabled).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	live := enabled[:0]
	for _, b := range enabled {
		if b.IsLive(now) {
			live = append(live, b)
		}
	}
	return live, nil
}

func (r *bannerRepository) List(ctx context.Context) ([]models.Banner, error) {
	var banners []models.Banner
	if err := readDB(r.db).WithContext(ctx).
		Order("sort_order ASC, created_at DESC").
		Find(&banners).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return banners, nil
}

func (r *bannerRepository) GetByID(ctx context.Context, id uint) (*models.Banner, error) {
	var banner models.Banner
	if err := r.db.WithContext(ctx).First(&banner, id).Error; err != nil {
		return nil, notFoundOr(err, "Banner", id)
	}
	return &banner, nil
}

func (r *bannerRepository) Create(ctx context.Context, banner *models.Banner) error {
	if err := r.db.WithContext(ctx).Create(banner).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateBanners(ctx)
	return nil
}

func (r *bannerRepository) Update(ctx context.Context, banner *models.Banner) error {
	if err := r.db.WithContext(ctx).Save(banner).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateBanners(ctx)
	return nil
}

func (r *bannerRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Banner{}, id)
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Banner", id)
	}
	cache.InvalidateBanners(ctx)
	return nil
}
