package repositories

import (
	"gorm.io/gorm"

	"tripwise_backend/internal/models"
)

// ConversationRepository persists the per-user planning session.
type ConversationRepository struct{}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{}
}

// FindOrCreate returns the user's conversation, opening a fresh one at the
// welcome stage on first contact.
func (r *ConversationRepository) FindOrCreate(db *gorm.DB, userID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := db.Where("user_id = ?", userID).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	conv = models.Conversation{
		UserID:        userID,
		FurthestStage: models.StageWelcome,
	}
	if createErr := db.Create(&conv).Error; createErr != nil {
		// Concurrent first turn created it already.
		var existing models.Conversation
		if findErr := db.Where("user_id = ?", userID).First(&existing).Error; findErr != nil {
			return nil, createErr
		}
		return &existing, nil
	}
	return &conv, nil
}

// Save writes the updated watermark and draft back.
func (r *ConversationRepository) Save(db *gorm.DB, conv *models.Conversation) error {
	return db.Save(conv).Error
}

// Reset drops the session back to the welcome stage with an empty draft.
func (r *ConversationRepository) Reset(db *gorm.DB, userID string) error {
	return db.Model(&models.Conversation{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"furthest_stage": models.StageWelcome,
			"draft":          nil,
		}).Error
}
