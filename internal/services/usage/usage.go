package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/Egham-7/repurpose-api/internal/models"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.UsageLog{})
}

// RecordUsage appends a usage log entry without touching the user's credits.
// Charged entries go through CreditsService.Consume instead.
func (s *Service) RecordUsage(ctx context.Context, params models.RecordUsageParams) (*models.UsageLog, error) {
	entry := models.UsageLog{
		UserID:      params.UserID,
		Action:      params.Action,
		CreditsUsed: params.Credits,
		Metadata:    params.Metadata,
	}

	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	return &entry, nil
}

// CountActionSince counts the user's log entries for action created at or after since.
func (s *Service) CountActionSince(ctx context.Context, userID string, action models.UsageAction, since time.Time) (int64, error) {
	var count int64

	query := s.db.WithContext(ctx).
		Model(&models.UsageLog{}).
		Where("user_id = ? AND action = ?", userID, action)

	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}

	return count, nil
}

func (s *Service) GetUsageByUser(ctx context.Context, userID string, limit, offset int) ([]models.UsageLog, error) {
	var logs []models.UsageLog

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return logs, nil
}

// StartOfMonth returns midnight UTC on the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
