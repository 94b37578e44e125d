package cars

import (
	"context"
	"time"

	"carbid-backend/internal/cache"
	"carbid-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const listCacheKey = "cars:list"
const listCacheTTL = 5 * time.Minute

type Service struct {
	DB    *gorm.DB
	Cache *cache.Cache
}

type CreateCarInput struct {
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	Year        int     `json:"year"`
	VIN         *string `json:"vin"`
	Mileage     int     `json:"mileage"`
	Color       *string `json:"color"`
	Description *string `json:"description"`
}

func (s *Service) Create(ctx context.Context, in CreateCarInput) (*domain.Car, error) {
	if in.Brand == "" || in.Model == "" || in.Year == 0 {
		return nil, &domain.InvalidStateError{Reason: "brand, model and year are required"}
	}
	car := &domain.Car{
		Brand:       in.Brand,
		Model:       in.Model,
		Year:        in.Year,
		VIN:         in.VIN,
		Mileage:     in.Mileage,
		Color:       in.Color,
		Description: in.Description,
		IsActive:    true,
	}
	if err := s.DB.WithContext(ctx).Create(car).Error; err != nil {
		return nil, err
	}
	s.Cache.Delete(ctx, listCacheKey)
	return car, nil
}

// List serves the active catalog read-through from the cache.
func (s *Service) List(ctx context.Context) ([]domain.Car, error) {
	var out []domain.Car
	if s.Cache.Get(ctx, listCacheKey, &out) {
		return out, nil
	}
	if err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, listCacheKey, out, listCacheTTL)
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Car, error) {
	var car domain.Car
	if err := s.DB.WithContext(ctx).Where("car_id = ?", id).First(&car).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &domain.NotFoundError{Entity: "Car", Key: id}
		}
		return nil, err
	}
	return &car, nil
}
