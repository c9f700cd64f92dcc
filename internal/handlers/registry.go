package handlers

// AppHandlers bundles every handler for route registration.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	ChatHandler         *ChatHandler
	SubscriptionHandler *SubscriptionHandler
	TripHandler         *TripHandler
}
