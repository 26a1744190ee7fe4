package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pixelmint/pixelmint/app/models"
)

var (
	// ErrInsufficientCredits is returned when a debit would drive the
	// balance negative. No ledger entry is written in that case.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrConcurrencyConflict marks an idempotency-key insert race that was
	// lost to a concurrent writer. Callers receive the winner's transaction
	// instead, so the error only surfaces when the winner cannot be read.
	ErrConcurrencyConflict = errors.New("concurrent ledger write conflict")

	ErrInvalidAmount = errors.New("credit amount must be positive")
)

// Service is the source of truth for spendable credit balances. Every
// balance mutation is a CreditTransaction row committed atomically with the
// denormalized User.Credits update; the user row is locked for the duration
// of the transaction so concurrent mutations for one user serialize.
type Service struct {
	db *gorm.DB
}

// NewService creates a credit ledger backed by the given database handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AddResult is returned by AddCredits. Replayed is true when the reference
// ID matched an already-committed transaction and no delta was applied.
type AddResult struct {
	NewBalance  int64
	Transaction models.CreditTransaction
	Replayed    bool
}

// Summary aggregates ledger activity over a date range by sign and type.
type Summary struct {
	Added   int64 `json:"added"`
	Used    int64 `json:"used"`
	Expired int64 `json:"expired"`
}

// GetBalance returns the user's current balance from the denormalized cache.
func (s *Service) GetBalance(ctx context.Context, userID uint) (int64, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("credits").First(&user, userID).Error; err != nil {
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user.Credits, nil
}

// AddCredits atomically increments the balance and appends a ledger entry.
// When referenceID is set and a transaction with the same (referenceID, type)
// pair already exists, the prior transaction is returned together with the
// current balance and no delta is applied.
func (s *Service) AddCredits(ctx context.Context, userID uint, amount int64, creditType, description string, referenceID *string) (*AddResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = fmt.Sprintf("Added %d credits", amount)
	}

	var result AddResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if referenceID != nil {
			prior, err := findByReference(tx, *referenceID, creditType)
			if err != nil {
				return err
			}
			if prior != nil {
				balance, err := currentBalance(tx, userID)
				if err != nil {
					return err
				}
				result = AddResult{NewBalance: balance, Transaction: *prior, Replayed: true}
				return nil
			}
		}

		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user %d: %w", userID, err)
		}

		entry := models.CreditTransaction{
			UserID:      userID,
			Amount:      amount,
			Type:        creditType,
			Description: description,
			ReferenceID: referenceID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isDuplicateKey(err) && referenceID != nil {
				// Lost the insert race: hand back the winner's entry.
				prior, lookupErr := findByReference(tx, *referenceID, creditType)
				if lookupErr != nil || prior == nil {
					return ErrConcurrencyConflict
				}
				result = AddResult{NewBalance: user.Credits, Transaction: *prior, Replayed: true}
				return nil
			}
			return err
		}

		if err := tx.Model(&user).Update("credits", gorm.Expr("credits + ?", amount)).Error; err != nil {
			return err
		}
		result = AddResult{NewBalance: user.Credits + amount, Transaction: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		log.Info(fmt.Sprintf("[CreditLedger] Replayed %s of %d credits for user %d (ref %v)", creditType, amount, userID, deref(referenceID)))
	}
	return &result, nil
}

// DeductCredits atomically checks and decrements the balance, appending a
// usage entry with a negative amount. A debit that would drive the balance
// negative fails with ErrInsufficientCredits and changes nothing.
func (s *Service) DeductCredits(ctx context.Context, userID uint, amount int64, description string, referenceID *string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if description == "" {
		description = fmt.Sprintf("Used %d credit(s)", amount)
	}

	var newBalance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user %d: %w", userID, err)
		}
		if user.Credits < amount {
			return ErrInsufficientCredits
		}

		entry := models.CreditTransaction{
			UserID:      userID,
			Amount:      -amount,
			Type:        models.CreditTypeUsage,
			Description: description,
			ReferenceID: referenceID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Update("credits", gorm.Expr("credits - ?", amount)).Error; err != nil {
			return err
		}
		newBalance = user.Credits - amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}

// ExpireCredits zeroes the balance and records an expired entry for exactly
// the amount that was zeroed. A zero balance succeeds without writing a row.
func (s *Service) ExpireCredits(ctx context.Context, userID uint, referenceID string) (int64, error) {
	var expired int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user %d: %w", userID, err)
		}

		expired = user.Credits
		if expired <= 0 {
			expired = 0
			return nil
		}

		entry := models.CreditTransaction{
			UserID:      userID,
			Amount:      -expired,
			Type:        models.CreditTypeExpired,
			Description: fmt.Sprintf("Expired %d unused credits", expired),
			ReferenceID: &referenceID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Model(&user).Update("credits", 0).Error
	})
	if err != nil {
		return 0, err
	}

	if expired > 0 {
		log.Info(fmt.Sprintf("[CreditLedger] Expired %d credits for user %d (ref %s)", expired, userID, referenceID))
	}
	return expired, nil
}

// GetTransactionSummary aggregates ledger entries whose creation time lies
// within [start, end], both bounds inclusive.
func (s *Service) GetTransactionSummary(ctx context.Context, userID uint, start, end time.Time) (Summary, error) {
	var entries []models.CreditTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ? AND created_at <= ?", userID, start, end).
		Find(&entries).Error
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, tx := range entries {
		switch {
		case tx.Type == models.CreditTypeExpired:
			sum.Expired += abs(tx.Amount)
		case tx.Amount > 0:
			sum.Added += tx.Amount
		default:
			sum.Used += abs(tx.Amount)
		}
	}
	return sum, nil
}

// ListTransactions returns the user's ledger entries, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []models.CreditTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error
	return entries, err
}

// LedgerSum recomputes the balance from the ledger. It exists for invariant
// checks; callers should normally read the denormalized balance.
func (s *Service) LedgerSum(ctx context.Context, userID uint) (int64, error) {
	var total *int64
	err := s.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("SUM(amount)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func findByReference(tx *gorm.DB, referenceID, creditType string) (*models.CreditTransaction, error) {
	var prior models.CreditTransaction
	err := tx.Where("reference_id = ? AND type = ?", referenceID, creditType).First(&prior).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prior, nil
}

func currentBalance(tx *gorm.DB, userID uint) (int64, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user.Credits, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint")
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
