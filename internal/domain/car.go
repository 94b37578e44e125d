package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Car is the catalog entry an auction sells. Auctions reference cars by id;
// the car does not own its auction.
type Car struct {
	CarID       uuid.UUID      `gorm:"column:car_id;type:uuid;primaryKey" json:"car_id"`
	Brand       string         `gorm:"column:brand;not null" json:"brand"`
	Model       string         `gorm:"column:model;not null" json:"model"`
	Year        int            `gorm:"column:year;not null" json:"year"`
	VIN         *string        `gorm:"column:vin" json:"vin"`
	Mileage     int            `gorm:"column:mileage;not null;default:0" json:"mileage"`
	Color       *string        `gorm:"column:color" json:"color"`
	Description *string        `gorm:"column:description" json:"description"`
	IsActive    bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Car) TableName() string {
	return "Cars"
}

func (c *Car) BeforeCreate(tx *gorm.DB) error {
	if c.CarID == uuid.Nil {
		c.CarID = uuid.New()
	}
	return nil
}

// DisplayName is used in notification titles and emails.
func (c *Car) DisplayName() string {
	return c.Brand + " " + c.Model
}
