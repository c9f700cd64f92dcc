package repositories

import (
	"gorm.io/gorm"

	"tripwise_backend/internal/models"
)

// TripRepository persists finished trip plans.
type TripRepository struct{}

func NewTripRepository() *TripRepository {
	return &TripRepository{}
}

func (r *TripRepository) Create(db *gorm.DB, trip *models.Trip) error {
	return db.Create(trip).Error
}

func (r *TripRepository) FindByUser(db *gorm.DB, userID string) ([]models.Trip, error) {
	var trips []models.Trip
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&trips).Error
	return trips, err
}

func (r *TripRepository) FindByID(db *gorm.DB, id string) (*models.Trip, error) {
	var trip models.Trip
	if err := db.Where("id = ?", id).First(&trip).Error; err != nil {
		return nil, err
	}
	return &trip, nil
}
