package generations

import (
	"context"
	"errors"
	"fmt"

	"github.com/Egham-7/repurpose-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// HistoryLimit caps GET /api/generations.
	HistoryLimit = 50

	defaultSourceTitle = "Generated Content"
)

var (
	ErrNotFound     = errors.New("generation not found")
	ErrNotClaimed   = errors.New("generation is not in a retryable state")
	ErrOutputExists = errors.New("output already stored")
)

// visibleStatuses are the states that belong to a user's history.
var visibleStatuses = []models.GenerationStatus{
	models.GenerationCompleted,
	models.GenerationPartial,
	models.GenerationRetrying,
}

type CreateParams struct {
	UserID      string
	SourceType  models.SourceType
	SourceURL   string
	Transcript  string
	OutputTypes []models.OutputType
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.Generation{}, &models.Output{})
}

// Create persists a pending generation before any backend call is made.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Generation, error) {
	generation := models.Generation{
		ID:          uuid.NewString(),
		UserID:      params.UserID,
		SourceType:  params.SourceType,
		SourceURL:   params.SourceURL,
		SourceTitle: defaultSourceTitle,
		Transcript:  params.Transcript,
		OutputTypes: models.OutputTypeList(params.OutputTypes),
		Status:      models.GenerationPending,
	}

	if err := s.db.WithContext(ctx).Omit("Outputs").Create(&generation).Error; err != nil {
		return nil, fmt.Errorf("failed to create generation: %w", err)
	}

	return &generation, nil
}

// SaveOutput stores one artifact. Outputs are write-once per (generation, type);
// a second write returns ErrOutputExists and leaves the stored content untouched.
func (s *Service) SaveOutput(ctx context.Context, generationID string, outputType models.OutputType, content string) (*models.Output, error) {
	output := models.Output{
		ID:           uuid.NewString(),
		GenerationID: generationID,
		OutputType:   outputType,
		Content:      content,
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&output)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to save %s output: %w", outputType, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrOutputExists
	}

	return &output, nil
}

// GetOutput loads the stored artifact for one type.
func (s *Service) GetOutput(ctx context.Context, generationID string, outputType models.OutputType) (*models.Output, error) {
	var output models.Output

	err := s.db.WithContext(ctx).
		Where("generation_id = ? AND output_type = ?", generationID, outputType).
		Take(&output).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s output: %w", outputType, err)
	}

	return &output, nil
}

// ClaimRetry moves a partial generation to retrying. Only one caller can hold the claim;
// the others get ErrNotClaimed.
func (s *Service) ClaimRetry(ctx context.Context, userID, generationID string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Where("id = ? AND user_id = ? AND status = ?", generationID, userID, models.GenerationPartial).
		Update("status", models.GenerationRetrying)
	if res.Error != nil {
		return fmt.Errorf("failed to claim generation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	return nil
}

func (s *Service) SetStatus(ctx context.Context, generationID string, status models.GenerationStatus) error {
	res := s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Where("id = ?", generationID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update generation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a generation owned by userID with its outputs.
func (s *Service) Get(ctx context.Context, userID, generationID string) (*models.Generation, error) {
	var generation models.Generation

	err := s.db.WithContext(ctx).
		Preload("Outputs", orderOutputs).
		Where("id = ? AND user_id = ?", generationID, userID).
		Take(&generation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	return &generation, nil
}

// ListRecent returns the user's newest visible generations with their outputs.
// Pending, failed and quota-rejected generations are not part of the history.
// A generation being retried stays listed.
func (s *Service) ListRecent(ctx context.Context, userID string, limit int) ([]models.Generation, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	generations := make([]models.Generation, 0)
	err := s.db.WithContext(ctx).
		Preload("Outputs", orderOutputs).
		Where("user_id = ? AND status IN ?", userID, visibleStatuses).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&generations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	return generations, nil
}

// CountByUser counts the user's generations that produced content.
func (s *Service) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&models.Generation{}).
		Where("user_id = ? AND status IN ?", userID, visibleStatuses).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}

	return count, nil
}

func orderOutputs(db *gorm.DB) *gorm.DB {
	return db.Order("output_type ASC")
}
