package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pixelmint/pixelmint/app/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:payment_%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.WebhookEvent{}))
	return db
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"subscription.created","user_id":7}`)
	secret := "whsec_test"

	assert.True(t, VerifyWebhookSignature(payload, sign(payload, secret), secret))
	assert.True(t, VerifyWebhookSignature(payload, " "+sign(payload, secret)+" ", secret))
	assert.False(t, VerifyWebhookSignature(payload, sign(payload, "other"), secret))
	assert.False(t, VerifyWebhookSignature([]byte("tampered"), sign(payload, secret), secret))
	assert.False(t, VerifyWebhookSignature(payload, "", secret))
	assert.False(t, VerifyWebhookSignature(payload, "not-hex", secret))
	assert.False(t, VerifyWebhookSignature(payload, sign(payload, secret), ""))
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"subscription.renewed","user_id":3,"plan_id":2,"subscription_ref":"sub_1","payment_ref":"pay_9"}`))
	require.NoError(t, err)
	assert.Equal(t, EventSubscriptionRenewed, ev.Type)
	assert.Equal(t, uint(3), ev.UserID)
	assert.Equal(t, "pay_9", ev.ExternalPaymentRef)

	_, err = ParseEvent([]byte(`{"user_id":3}`))
	assert.ErrorIs(t, err, ErrMalformedEvent)

	_, err = ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestRecordEventDeduplicates(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:        "Stripeish",
		ProviderEventID: "evt_123",
		EventType:       EventSubscriptionCreated,
		PayloadJSON:     `{"type":"subscription.created","user_id":1}`,
		SignatureValid:  true,
	}

	created, first, err := svc.RecordEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "stripeish", first.Provider)

	created, second, err := svc.RecordEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&models.WebhookEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordEventHashFallback(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:    "legacy",
		EventType:   EventPaymentSucceeded,
		PayloadJSON: `{"type":"payment.succeeded","user_id":4}`,
	}

	created, ev, err := svc.RecordEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, ev.ProviderEventID, "hash:")

	// The exact same payload replays as a duplicate.
	created, _, err = svc.RecordEvent(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)

	// A different payload is a new event.
	in.PayloadJSON = `{"type":"payment.succeeded","user_id":5}`
	created, _, err = svc.RecordEvent(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRecordEventRequiresProvider(t *testing.T) {
	svc := NewService(newTestDB(t))
	_, _, err := svc.RecordEvent(context.Background(), WebhookEventInput{})
	assert.Error(t, err)
}

func TestMarkProcessed(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	_, ev, err := svc.RecordEvent(ctx, WebhookEventInput{
		Provider:        "stripeish",
		ProviderEventID: "evt_9",
		EventType:       EventSubscriptionCancelled,
		PayloadJSON:     `{}`,
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkProcessed(ctx, ev.ID, nil))

	var reloaded models.WebhookEvent
	require.NoError(t, db.First(&reloaded, ev.ID).Error)
	assert.NotNil(t, reloaded.ProcessedAt)
	assert.Empty(t, reloaded.ProcessingError)

	require.NoError(t, svc.MarkProcessed(ctx, ev.ID, assert.AnError))
	require.NoError(t, db.First(&reloaded, ev.ID).Error)
	assert.NotEmpty(t, reloaded.ProcessingError)
}
