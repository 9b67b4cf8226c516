package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/NordCoder/Gatehouse/internal/domain/sms"
)

// LogGateway writes deliveries to the log instead of a carrier. Dev default.
type LogGateway struct {
	log *zap.Logger
}

func NewLogGateway(log *zap.Logger) *LogGateway {
	return &LogGateway{log: log.With(zap.String("component", "sms.gateway.log"))}
}

var _ sms.Gateway = (*LogGateway)(nil)

func (g *LogGateway) Send(_ context.Context, phone, body string) error {
	g.log.Info("sms delivered (log gateway)", zap.String("phone", phone), zap.String("body", body))
	return nil
}

// HTTPGateway posts deliveries to a carrier webhook. Any non-2xx response is
// a delivery failure, which the consumer retries via redelivery.
type HTTPGateway struct {
	client *http.Client
	url    string
	apiKey string
	from   string
	log    *zap.Logger
}

var _ sms.Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(url, apiKey, from string, timeout time.Duration, log *zap.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		url:    url,
		apiKey: apiKey,
		from:   from,
		log:    log.With(zap.String("component", "sms.gateway.http")),
	}
}

type carrierRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

func (g *HTTPGateway) Send(ctx context.Context, phone, body string) error {
	payload, err := json.Marshal(carrierRequest{To: phone, From: g.from, Body: body})
	if err != nil {
		return fmt.Errorf("marshal carrier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build carrier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("carrier request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("carrier responded %d", resp.StatusCode)
	}
	g.log.Debug("sms delivered", zap.String("phone", phone))
	return nil
}
