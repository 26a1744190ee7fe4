package subscription

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pixelmint/pixelmint/app/models"
	"github.com/pixelmint/pixelmint/internal/pkg/credits"
)

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("active subscription not found")
)

// onceSentinel is the far-future period end used for one-time plans.
var onceSentinel = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// Service owns subscription state transitions and drives the credit ledger
// on every transition. All multi-step transitions (demote, expire, create,
// grant) run in a single database transaction with the user's subscriptions
// locked, so two concurrent activations for one user serialize.
type Service struct {
	db      *gorm.DB
	credits *credits.Service
}

func NewService(db *gorm.DB, creditSvc *credits.Service) *Service {
	return &Service{db: db, credits: creditSvc}
}

// ActivateInput describes a new purchase or tier change.
type ActivateInput struct {
	UserID      uint
	PlanID      uint
	ExternalRef string // external subscription reference, optional
	PaymentRef  string // external payment reference, used as idempotency key
}

// GetActiveSubscription resolves the single period-valid subscription for a
// user: status active or cancelled with the period end still ahead. If a
// race ever left more than one, the most recently created wins.
func (s *Service) GetActiveSubscription(ctx context.Context, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND status IN ? AND current_period_end >= ?",
			userID, []string{models.SubscriptionStatusActive, models.SubscriptionStatusCancelled}, time.Now()).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Activate performs a new purchase or tier change in one atomic unit:
// demote any active subscription, expire remaining credits of a period-valid
// paid subscription, insert the new row, record the payment, and grant the
// new plan's allotment with the payment reference as idempotency key.
func (s *Service) Activate(ctx context.Context, in ActivateInput) (*models.Subscription, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).First(&plan, in.PlanID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	now := time.Now()
	periodEnd := periodEndFor(plan.BillingInterval, now)

	var created models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the user's period-valid rows for the whole transition.
		var prior []models.Subscription
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Plan").
			Where("user_id = ? AND status IN ? AND current_period_end >= ?",
				in.UserID, []string{models.SubscriptionStatusActive, models.SubscriptionStatusCancelled}, now).
			Order("created_at DESC, id DESC").
			Find(&prior).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Subscription{}).
			Where("user_id = ? AND status = ?", in.UserID, models.SubscriptionStatusActive).
			Updates(map[string]interface{}{
				"status":       models.SubscriptionStatusCancelled,
				"cancelled_at": now,
			}).Error; err != nil {
			return err
		}

		// No carry-over windfall: a period-valid paid subscription loses its
		// remaining credits before the new allotment is granted.
		if len(prior) > 0 && prior[0].Plan.IsPaid() {
			if _, err := s.expireWithin(tx, in.UserID, prior[0].ID, prior[0].CurrentPeriodEnd); err != nil {
				return err
			}
		}

		created = models.Subscription{
			UserID:             in.UserID,
			PlanID:             plan.ID,
			Status:             models.SubscriptionStatusActive,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   periodEnd,
			CreditsRemaining:   plan.CreditsGranted,
		}
		if in.ExternalRef != "" {
			created.ExternalRef = &in.ExternalRef
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		paymentRef := in.PaymentRef
		if paymentRef == "" {
			paymentRef = fmt.Sprintf("SUB-%d", created.ID)
		}
		paidAt := now
		if err := tx.Create(&models.Payment{
			UserID:         in.UserID,
			SubscriptionID: created.ID,
			Amount:         plan.Price,
			Currency:       plan.Currency,
			Status:         models.PaymentStatusPaid,
			ExternalRef:    paymentRef,
			PaidAt:         &paidAt,
		}).Error; err != nil {
			return err
		}

		grantType := models.CreditTypeGrant
		if len(prior) > 0 {
			grantType = models.CreditTypeRenew
		}
		return s.grantWithin(tx, in.UserID, plan.CreditsGranted, grantType,
			fmt.Sprintf("%s subscription activated", plan.DisplayName), &paymentRef)
	})
	if err != nil {
		return nil, err
	}

	created.Plan = plan
	log.Info(fmt.Sprintf("[Subscription] Activated plan %s for user %d (period ends %s)",
		plan.Name, in.UserID, periodEnd.Format(time.RFC3339)))
	return &created, nil
}

// Cancel marks an active subscription cancelled. Entitlement persists until
// the current period end.
func (s *Service) Cancel(ctx context.Context, subscriptionID, userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", subscriptionID, userID, models.SubscriptionStatusActive).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sub.Status = models.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	if err := s.db.WithContext(ctx).Save(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Renew handles an external payment-processor confirmation of a recurring
// charge. An unknown external reference is treated as a first-time
// activation; a known one extends the period, re-asserts active, and grants
// credits with the payment reference as idempotency key. Duplicate renewal
// notifications for the same billing cycle therefore grant exactly once.
func (s *Service) Renew(ctx context.Context, externalRef string, userID, planID uint, paymentRef string, periodEnd time.Time) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).Preload("Plan").
		Where("external_ref = ?", externalRef).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.Activate(ctx, ActivateInput{
			UserID:      userID,
			PlanID:      planID,
			ExternalRef: externalRef,
			PaymentRef:  paymentRef,
		})
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if periodEnd.IsZero() {
		periodEnd = periodEndFor(sub.Plan.BillingInterval, now)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sub).Updates(map[string]interface{}{
			"status":               models.SubscriptionStatusActive,
			"current_period_start": now,
			"current_period_end":   periodEnd,
			"credits_remaining":    sub.Plan.CreditsGranted,
			"cancelled_at":         nil,
		}).Error; err != nil {
			return err
		}

		// Duplicate deliveries must not duplicate the history entry either.
		var paymentCount int64
		if err := tx.Model(&models.Payment{}).
			Where("external_ref = ? AND subscription_id = ?", paymentRef, sub.ID).
			Count(&paymentCount).Error; err != nil {
			return err
		}
		if paymentCount == 0 {
			paidAt := now
			if err := tx.Create(&models.Payment{
				UserID:         sub.UserID,
				SubscriptionID: sub.ID,
				Amount:         sub.Plan.Price,
				Currency:       sub.Plan.Currency,
				Status:         models.PaymentStatusPaid,
				ExternalRef:    paymentRef,
				PaidAt:         &paidAt,
			}).Error; err != nil {
				return err
			}
		}

		return s.grantWithin(tx, sub.UserID, sub.Plan.CreditsGranted, models.CreditTypeRenew,
			fmt.Sprintf("%s subscription renewed", sub.Plan.DisplayName), &paymentRef)
	})
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubscriptionStatusActive
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = periodEnd
	log.Info(fmt.Sprintf("[Subscription] Renewed subscription %d for user %d", sub.ID, sub.UserID))
	return &sub, nil
}

// SweepResult reports one ProcessExpired pass.
type SweepResult struct {
	Processed int
	Errors    []string
}

// ProcessExpired finds every active subscription whose period elapsed,
// expires its credits and marks it expired. A failure on one subscription is
// collected and does not abort processing of the others.
func (s *Service) ProcessExpired(ctx context.Context) (SweepResult, error) {
	now := time.Now()
	var result SweepResult

	var expired []models.Subscription
	err := s.db.WithContext(ctx).
		Where("status = ? AND current_period_end < ?", models.SubscriptionStatusActive, now).
		Find(&expired).Error
	if err != nil {
		return result, err
	}

	result.Processed = len(expired)
	for _, sub := range expired {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := s.expireWithin(tx, sub.UserID, sub.ID, sub.CurrentPeriodEnd); err != nil {
				return err
			}
			return tx.Model(&models.Subscription{}).
				Where("id = ?", sub.ID).
				Updates(map[string]interface{}{
					"status":            models.SubscriptionStatusExpired,
					"credits_remaining": 0,
				}).Error
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("subscription %d: %v", sub.ID, err))
			log.Error(fmt.Sprintf("[Subscription] Failed to expire subscription %d: %v", sub.ID, err))
		}
	}
	return result, nil
}

// GetHistory returns all of a user's subscriptions, newest first.
func (s *Service) GetHistory(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&subs).Error
	return subs, err
}

// DaysRemaining returns whole days until the period end of the user's
// period-valid subscription, zero when there is none.
func (s *Service) DaysRemaining(ctx context.Context, userID uint) (int, error) {
	sub, err := s.GetActiveSubscription(ctx, userID)
	if err != nil {
		return 0, err
	}
	if sub == nil {
		return 0, nil
	}
	days := int(math.Ceil(time.Until(sub.CurrentPeriodEnd).Hours() / 24))
	if days < 0 {
		return 0, nil
	}
	return days, nil
}

// ResolveTier returns the entitlement tier for a user, "free" without a
// period-valid subscription.
func (s *Service) ResolveTier(ctx context.Context, userID uint) (string, error) {
	sub, err := s.GetActiveSubscription(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "free", nil
	}
	return sub.Plan.Tier, nil
}

// grantWithin applies AddCredits semantics inside an enclosing transaction.
func (s *Service) grantWithin(tx *gorm.DB, userID uint, amount int64, creditType, description string, referenceID *string) error {
	if amount <= 0 {
		return nil
	}
	_, err := credits.NewService(tx).AddCredits(context.Background(), userID, amount, creditType, description, referenceID)
	return err
}

// expireWithin applies ExpireCredits semantics inside an enclosing
// transaction. The reference carries the billing period end so a
// subscription revived by a late renewal can expire again in a later
// period without colliding with the earlier expiry entry.
func (s *Service) expireWithin(tx *gorm.DB, userID, subscriptionID uint, periodEnd time.Time) (int64, error) {
	ref := fmt.Sprintf("%d:%s", subscriptionID, periodEnd.UTC().Format(time.RFC3339))
	return credits.NewService(tx).ExpireCredits(context.Background(), userID, ref)
}

func periodEndFor(interval string, from time.Time) time.Time {
	switch interval {
	case models.BillingIntervalMonth:
		return from.AddDate(0, 1, 0)
	case models.BillingIntervalYear:
		return from.AddDate(1, 0, 0)
	default:
		return onceSentinel
	}
}
