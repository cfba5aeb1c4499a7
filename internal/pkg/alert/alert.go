package alert

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Alert is an operational notification that needs a human follow-up
type Alert struct {
	Severity string            `json:"severity"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	At       time.Time         `json:"at"`
}

// Service delivers alerts to a configured webhook. With no webhook URL the
// alert is only logged, so callers never need to branch on configuration.
type Service struct {
	webhookURL string
	http       *resty.Client
}

// NewService creates an alert service
func NewService(webhookURL string) *Service {
	return &Service{
		webhookURL: webhookURL,
		http:       resty.New().SetTimeout(5 * time.Second),
	}
}

// Send fires an alert. Delivery failures are logged, never returned: an alert
// must not break the flow that raised it.
func (s *Service) Send(ctx context.Context, a Alert) {
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	if a.Severity == "" {
		a.Severity = "critical"
	}

	event := log.Error().
		Str("alert_code", a.Code).
		Str("severity", a.Severity)
	for k, v := range a.Fields {
		event = event.Str(k, v)
	}
	event.Msg(a.Message)

	if s.webhookURL == "" {
		return
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(a).
		Post(s.webhookURL)
	if err != nil {
		log.Warn().Err(err).Str("alert_code", a.Code).Msg("Alert webhook delivery failed")
		return
	}
	if resp.IsError() {
		log.Warn().Int("status", resp.StatusCode()).Str("alert_code", a.Code).Msg("Alert webhook rejected")
	}
}
