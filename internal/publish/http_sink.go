package publish

import (
	"context"
	"fmt"
	"time"

	"SolGate/internal/domain/models"
	xhttp "SolGate/pkg/http"
)

// HTTPSink posts signals as JSON to a downstream service, one request per
// signal batch.
type HTTPSink struct {
	name   string
	url    string
	client *xhttp.Client
}

// NewDecisionSink targets the decision engine's signal intake.
func NewDecisionSink(url string, timeout time.Duration) *HTTPSink {
	return newHTTPSink("decision", url, timeout)
}

// NewWorkflowSink targets the workflow trigger endpoint.
func NewWorkflowSink(url string, timeout time.Duration) *HTTPSink {
	return newHTTPSink("workflow", url, timeout)
}

func newHTTPSink(name, url string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		name:   name,
		url:    url,
		client: xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (s *HTTPSink) Name() string { return s.name }

func (s *HTTPSink) Deliver(ctx context.Context, signals []*models.TradingSignal) error {
	body := map[string]interface{}{
		"signals":   signals,
		"count":     len(signals),
		"timestamp": time.Now().UTC(),
	}
	if err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    s.url,
		Body:   body,
	}, nil); err != nil {
		return fmt.Errorf("post to %s sink: %w", s.name, err)
	}
	return nil
}
