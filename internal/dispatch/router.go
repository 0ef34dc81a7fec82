package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"

	"riskwatch/internal/alerts"
	"riskwatch/internal/config"
	"riskwatch/internal/model"
)

var ErrNoNotificationTopic = errors.New("notifications topic not configured")

// Router routes dispatch requests by action kind: internal alerts land in
// the in-memory store, webhook/chat actions POST the payload to the
// configured URL, and email/sms actions are handed off as jobs on a kafka
// topic for the gateway fleet. Every outbound call is bounded by the
// configured timeout.
type Router struct {
	logger  *slog.Logger
	client  *http.Client
	alerts  *alerts.Store
	writer  *kafka.Writer
	timeout time.Duration
}

func NewRouter(cfg config.DispatchConfig, alertsStore *alerts.Store, logger *slog.Logger) *Router {
	r := &Router{
		logger:  logger,
		client:  &http.Client{Timeout: cfg.Timeout},
		alerts:  alertsStore,
		timeout: cfg.Timeout,
	}
	if cfg.Kafka.Enabled {
		r.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	return r
}

func (r *Router) Dispatch(ctx context.Context, req Request) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	switch req.Kind {
	case model.ActionInternal:
		return r.dispatchInternal(req)
	case model.ActionWebhook, model.ActionChat:
		return r.dispatchHTTP(ctx, req)
	case model.ActionEmail, model.ActionSMS:
		return r.dispatchKafka(ctx, req)
	default:
		return fmt.Errorf("unknown action kind %q", req.Kind)
	}
}

func (r *Router) dispatchInternal(req Request) error {
	if r.alerts == nil {
		return errors.New("internal alert store not configured")
	}
	title := req.Config["title"]
	if title == "" {
		title = "Risk alert: " + req.Payload.RuleName
	}
	message := req.Config["message"]
	if message == "" {
		message = fmt.Sprintf("rule %s fired at total score %.1f", req.Payload.RuleName, req.Payload.TotalScore)
	}
	severity := req.Config["severity"]
	if severity == "" {
		severity = string(req.Payload.RiskLevel)
	}
	r.alerts.Add(model.Alert{
		Timestamp: req.Payload.Timestamp,
		RuleID:    req.Payload.RuleID,
		RuleName:  req.Payload.RuleName,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Total:     req.Payload.TotalScore,
		Level:     req.Payload.RiskLevel,
	})
	return nil
}

func (r *Router) dispatchHTTP(ctx context.Context, req Request) error {
	url := req.Config["url"]
	if url == "" {
		return errors.New("webhook action missing url")
	}
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", url, resp.StatusCode)
	}
	return nil
}

func (r *Router) dispatchKafka(ctx context.Context, req Request) error {
	if r.writer == nil {
		return ErrNoNotificationTopic
	}
	value, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.Payload.RuleID),
		Value: value,
	})
}

func (r *Router) Close() error {
	if r.writer != nil {
		return r.writer.Close()
	}
	return nil
}
