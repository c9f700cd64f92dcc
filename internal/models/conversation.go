package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Budget and group-size bands are small closed sets; anything else the
// model proposes is discarded rather than stored.
const (
	BudgetCheap    = "cheap"
	BudgetModerate = "moderate"
	BudgetLuxury   = "luxury"

	GroupSolo    = "solo"
	GroupCouple  = "couple"
	GroupFamily  = "family"
	GroupFriends = "friends"
)

func ValidBudgetBand(band string) bool {
	switch band {
	case BudgetCheap, BudgetModerate, BudgetLuxury:
		return true
	}
	return false
}

func ValidGroupBand(band string) bool {
	switch band {
	case GroupSolo, GroupCouple, GroupFamily, GroupFriends:
		return true
	}
	return false
}

// TripDraft is the accumulated side-channel state of a planning session.
// Fields are derived from assistant replies, not authoritative: merge is
// last-write-wins per field and a field is never cleared once set.
type TripDraft struct {
	Destination  string   `json:"destination,omitempty"`
	Source       string   `json:"source,omitempty"`
	BudgetBand   string   `json:"budget_band,omitempty"`
	GroupBand    string   `json:"group_band,omitempty"`
	DurationDays int      `json:"duration_days,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}

// Merge folds an update into the draft. Empty update fields leave the
// existing value alone; interests accumulate as a uniqued set preserving
// insertion order.
func (d *TripDraft) Merge(update TripDraft) {
	if update.Destination != "" {
		d.Destination = update.Destination
	}
	if update.Source != "" {
		d.Source = update.Source
	}
	if ValidBudgetBand(update.BudgetBand) {
		d.BudgetBand = update.BudgetBand
	}
	if ValidGroupBand(update.GroupBand) {
		d.GroupBand = update.GroupBand
	}
	if update.DurationDays > 0 {
		d.DurationDays = update.DurationDays
	}

	seen := make(map[string]bool, len(d.Interests))
	for _, interest := range d.Interests {
		seen[interest] = true
	}
	for _, interest := range update.Interests {
		if interest == "" || seen[interest] {
			continue
		}
		seen[interest] = true
		d.Interests = append(d.Interests, interest)
	}
}

// Conversation is the per-user planning session. FurthestStage is the high
// watermark used to clamp model-proposed stage tags; Draft holds the
// accumulated trip entities as a JSON document.
type Conversation struct {
	BaseModel
	UserID        string         `gorm:"not null;uniqueIndex" json:"user_id"`
	FurthestStage Stage          `gorm:"not null;default:'welcome'" json:"furthest_stage"`
	Draft         datatypes.JSON `json:"draft"`
}

// DraftValue decodes the stored draft. A missing or corrupt document yields
// an empty draft rather than an error: the draft is best-effort state.
func (c *Conversation) DraftValue() TripDraft {
	var draft TripDraft
	if len(c.Draft) == 0 {
		return draft
	}
	_ = json.Unmarshal(c.Draft, &draft)
	return draft
}

// SetDraft encodes and stores the draft.
func (c *Conversation) SetDraft(draft TripDraft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	c.Draft = datatypes.JSON(raw)
	return nil
}
