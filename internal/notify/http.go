package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPNotifier posts the event as JSON to a collaborator endpoint. Weather,
// safety and recommendation services all share this shape and differ only
// in name and URL.
type HTTPNotifier struct {
	name   string
	url    string
	client *http.Client
}

func NewHTTPNotifier(name, url string) *HTTPNotifier {
	return &HTTPNotifier{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func NewWeatherNotifier(url string) *HTTPNotifier {
	return NewHTTPNotifier("weather", url)
}

func NewSafetyNotifier(url string) *HTTPNotifier {
	return NewHTTPNotifier("safety", url)
}

func NewRecommendationsNotifier(url string) *HTTPNotifier {
	return NewHTTPNotifier("recommendations", url)
}

func (n *HTTPNotifier) Name() string {
	return n.name
}

func (n *HTTPNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", n.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("deliver to %s: status %d", n.name, resp.StatusCode)
	}
	return nil
}
