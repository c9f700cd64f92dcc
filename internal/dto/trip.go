package dto

type SaveTripRequest struct {
	Destination  string   `json:"destination" validate:"required,max=200"`
	Source       string   `json:"source" validate:"max=200"`
	BudgetBand   string   `json:"budget_band" validate:"omitempty,oneof=cheap moderate luxury"`
	GroupBand    string   `json:"group_band" validate:"omitempty,oneof=solo couple family friends"`
	DurationDays int      `json:"duration_days" validate:"min=0,max=365"`
	Interests    []string `json:"interests" validate:"max=30,dive,max=60"`
	Plan         string   `json:"plan" validate:"required"`
}
