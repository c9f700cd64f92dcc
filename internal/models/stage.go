package models

// Stage is one of the twelve canonical steps of the guided trip-planning
// conversation. The order below is the contract: the sequence of stages
// emitted to a client is non-decreasing, and a stage is never skipped.
type Stage string

const (
	StageWelcome        Stage = "welcome"
	StageAskSource      Stage = "ask-source"
	StageAskDestination Stage = "ask-destination"
	StageBudget         Stage = "budget"
	StageGroupSize      Stage = "group-size"
	StageDuration       Stage = "duration"
	StageInterests      Stage = "interests"
	StageHotels         Stage = "hotels"
	StageGallery        Stage = "gallery"
	StageMap            Stage = "map"
	StageVirtualTour    Stage = "virtual-tour"
	StageFinalPlan      Stage = "final-plan"
)

var stageOrder = []Stage{
	StageWelcome,
	StageAskSource,
	StageAskDestination,
	StageBudget,
	StageGroupSize,
	StageDuration,
	StageInterests,
	StageHotels,
	StageGallery,
	StageMap,
	StageVirtualTour,
	StageFinalPlan,
}

// Stages returns the canonical stage order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Index returns the position of s in the canonical order, or -1 for an
// unknown tag.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Terminal reports whether s is the final-plan stage. The terminal stage is
// idempotent: further turns keep re-rendering the final plan.
func (s Stage) Terminal() bool {
	return s == StageFinalPlan
}

// ClampStage validates a model-proposed stage against the furthest stage
// already reached. The proposal is advisory only:
//
//   - unknown tags and regressions resolve to furthest,
//   - a forward jump past the immediate next stage is cut to furthest+1,
//   - otherwise the proposal stands.
//
// This is what keeps the emitted stage sequence monotone with no skips even
// when the model misbehaves.
func ClampStage(furthest, proposed Stage) Stage {
	fi := furthest.Index()
	if fi < 0 {
		fi = 0
		furthest = StageWelcome
	}

	pi := proposed.Index()
	if pi < 0 || pi <= fi {
		return furthest
	}
	if pi > fi+1 {
		return stageOrder[fi+1]
	}
	return proposed
}

// Component identifies the client widget rendered for a stage.
type Component string

const (
	ComponentGreeting       Component = "greeting"
	ComponentSourceInput    Component = "source-input"
	ComponentDestInput      Component = "destination-input"
	ComponentBudgetCards    Component = "budget-cards"
	ComponentGroupCards     Component = "group-size-cards"
	ComponentDurationInput  Component = "duration-input"
	ComponentInterestPicker Component = "interest-picker"
	ComponentHotelList      Component = "hotel-list"
	ComponentImageGallery   Component = "image-gallery"
	ComponentRouteMap       Component = "route-map"
	ComponentStreetView     Component = "street-view"
	ComponentItinerary      Component = "itinerary"
)

// Component maps a stage to its renderer. The switch is exhaustive over the
// canonical stages; an unknown tag yields ok=false instead of a silent no-op.
func (s Stage) Component() (Component, bool) {
	switch s {
	case StageWelcome:
		return ComponentGreeting, true
	case StageAskSource:
		return ComponentSourceInput, true
	case StageAskDestination:
		return ComponentDestInput, true
	case StageBudget:
		return ComponentBudgetCards, true
	case StageGroupSize:
		return ComponentGroupCards, true
	case StageDuration:
		return ComponentDurationInput, true
	case StageInterests:
		return ComponentInterestPicker, true
	case StageHotels:
		return ComponentHotelList, true
	case StageGallery:
		return ComponentImageGallery, true
	case StageMap:
		return ComponentRouteMap, true
	case StageVirtualTour:
		return ComponentStreetView, true
	case StageFinalPlan:
		return ComponentItinerary, true
	}
	return "", false
}

// AutomationSummary is the fixed payload attached once the conversation
// reaches the final plan.
type AutomationSummary struct {
	Booking       bool `json:"booking"`
	Tracking      bool `json:"tracking"`
	SafetyAlerts  bool `json:"safety_alerts"`
	Notifications bool `json:"notifications"`
}

// FinalPlanAutomation returns the automation flags shipped with every
// final-plan response.
func FinalPlanAutomation() *AutomationSummary {
	return &AutomationSummary{
		Booking:       true,
		Tracking:      true,
		SafetyAlerts:  true,
		Notifications: true,
	}
}
