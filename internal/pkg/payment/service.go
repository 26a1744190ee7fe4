// Package payment is the boundary to the external payment processor. It
// verifies webhook signatures, stores raw deliveries idempotently and
// normalizes them into events the subscription layer understands.
package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/pixelmint/pixelmint/app/models"
)

// Event kinds emitted by the processor.
const (
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventPaymentSucceeded      = "payment.succeeded"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// Event is the normalized form of a processor webhook delivery.
type Event struct {
	Type                    string     `json:"type"`
	UserID                  uint       `json:"user_id"`
	PlanID                  uint       `json:"plan_id"`
	ExternalSubscriptionRef string     `json:"subscription_ref"`
	ExternalPaymentRef      string     `json:"payment_ref"`
	PeriodEnd               *time.Time `json:"period_end,omitempty"`
}

// ParseEvent decodes and validates a raw webhook payload.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.Type == "" || ev.UserID == 0 {
		return nil, fmt.Errorf("%w: missing type or user id", ErrMalformedEvent)
	}
	return &ev, nil
}

// WebhookEventInput carries one raw delivery into the event store.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RecordEvent persists webhook payloads idempotently. Deliveries without a
// provider event id are keyed by a hash of the payload so exact replays
// still deduplicate. The bool reports whether the event was newly created.
func (s *Service) RecordEvent(ctx context.Context, in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}

	err := s.db.WithContext(ctx).Create(event).Error
	if err == nil {
		return true, event, nil
	}
	if !isDuplicateKey(err) {
		return false, nil, fmt.Errorf("record webhook event: %w", err)
	}

	var existing models.WebhookEvent
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, eventID).
		First(&existing).Error; err != nil {
		return false, nil, fmt.Errorf("load duplicate webhook event: %w", err)
	}
	return false, &existing, nil
}

// MarkProcessed stamps an event as handled and stores an optional error.
func (s *Service) MarkProcessed(ctx context.Context, eventID uint, processingErr error) error {
	if eventID == 0 {
		return errors.New("event id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": errMsg,
		}).Error
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}
