package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Trip is a saved final plan. Created when the client persists the itinerary
// produced at the final-plan stage.
type Trip struct {
	BaseModel
	UserID       string         `gorm:"not null;index" json:"user_id"`
	Destination  string         `gorm:"not null" json:"destination"`
	Source       string         `json:"source"`
	BudgetBand   string         `json:"budget_band"`
	GroupBand    string         `json:"group_band"`
	DurationDays int            `json:"duration_days"`
	Interests    datatypes.JSON `json:"interests"`
	Plan         string         `gorm:"type:text" json:"plan"`
}

// SetInterests encodes the interest list into the JSON column.
func (t *Trip) SetInterests(interests []string) error {
	if len(interests) == 0 {
		t.Interests = nil
		return nil
	}
	raw, err := json.Marshal(interests)
	if err != nil {
		return err
	}
	t.Interests = datatypes.JSON(raw)
	return nil
}

// InterestList decodes the interest column, tolerating a missing value.
func (t *Trip) InterestList() []string {
	if len(t.Interests) == 0 {
		return nil
	}
	var interests []string
	_ = json.Unmarshal(t.Interests, &interests)
	return interests
}
