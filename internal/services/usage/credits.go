package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrQuotaExceeded is returned when the conditional credit update matched no row.
	ErrQuotaExceeded = errors.New("credit limit reached")
	ErrUserNotFound  = errors.New("user not found")
)

// ConsumeResult reports the user's credit usage after a consume attempt.
// It is also returned alongside ErrQuotaExceeded.
type ConsumeResult struct {
	CreditsUsed int
	Limit       int
	Log         *models.UsageLog
}

func (r *ConsumeResult) Remaining() int {
	return r.Limit - r.CreditsUsed
}

type CreditsService struct {
	db *gorm.DB
}

func NewCreditsService(db *gorm.DB) *CreditsService {
	return &CreditsService{db: db}
}

// Consume atomically charges params.Amount credits and appends the usage log entry.
// The increment only applies while credits_used + amount stays within params.Limit,
// so concurrent callers can never push a user past the limit.
func (s *CreditsService) Consume(ctx context.Context, params models.ConsumeCreditsParams) (*ConsumeResult, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("consume amount must be positive, got %d", params.Amount)
	}

	result := &ConsumeResult{Limit: params.Limit}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND credits_used + ? <= ?", params.UserID, params.Amount, params.Limit).
			Updates(map[string]any{
				"credits_used": gorm.Expr("credits_used + ?", params.Amount),
				"updated_at":   time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to increment credits: %w", res.Error)
		}

		used, err := creditsUsed(tx, params.UserID)
		if err != nil {
			return err
		}
		result.CreditsUsed = used

		if res.RowsAffected == 0 {
			return ErrQuotaExceeded
		}

		entry := &models.UsageLog{
			UserID:      params.UserID,
			Action:      params.Action,
			CreditsUsed: params.Amount,
			Metadata:    params.Metadata,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to write usage log: %w", err)
		}
		result.Log = entry

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return result, err
		}
		return nil, err
	}

	return result, nil
}

// GetCreditsUsed returns the user's current cumulative usage.
func (s *CreditsService) GetCreditsUsed(ctx context.Context, userID string) (int, error) {
	return creditsUsed(s.db.WithContext(ctx), userID)
}

func creditsUsed(db *gorm.DB, userID string) (int, error) {
	var user models.User
	err := db.Select("credits_used").Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read credits: %w", err)
	}
	return user.CreditsUsed, nil
}
