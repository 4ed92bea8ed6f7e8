package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type GenerationStatus string

const (
	GenerationPending       GenerationStatus = "pending"
	GenerationCompleted     GenerationStatus = "completed"
	GenerationPartial       GenerationStatus = "partial"
	GenerationRetrying      GenerationStatus = "retrying"
	GenerationFailed        GenerationStatus = "failed"
	GenerationQuotaExceeded GenerationStatus = "quota_exceeded"
)

// OutputTypeList is stored as a JSON array.
type OutputTypeList []OutputType

func (l OutputTypeList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]OutputType(l))
	return string(b), err
}

func (l *OutputTypeList) Scan(value any) error {
	if value == nil {
		*l = OutputTypeList{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for OutputTypeList: %T", value)
	}
	return json.Unmarshal(bytes, l)
}

func (OutputTypeList) GormDataType() string {
	return "json"
}

func (OutputTypeList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

// Generation is one accepted repurposing request. Outputs are its only mutable part.
type Generation struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	UserID      string           `gorm:"not null;index:idx_generations_user_created,priority:1;size:36" json:"-"`
	SourceType  SourceType       `gorm:"not null;size:16" json:"sourceType"`
	SourceURL   string           `gorm:"size:2048;default:''" json:"sourceUrl,omitempty"`
	SourceTitle string           `gorm:"size:255;default:''" json:"sourceTitle"`
	Transcript  string           `gorm:"type:text" json:"transcript"`
	OutputTypes OutputTypeList   `json:"outputTypes"`
	Status      GenerationStatus `gorm:"not null;index;size:20;default:'pending'" json:"status"`
	Outputs     []Output         `gorm:"foreignKey:GenerationID" json:"outputs"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime;index:idx_generations_user_created,priority:2" json:"createdAt"`
}

// MissingOutputTypes returns the requested types that have no stored output, in request order.
func (g *Generation) MissingOutputTypes() []OutputType {
	have := make(map[OutputType]bool, len(g.Outputs))
	for _, o := range g.Outputs {
		have[o.OutputType] = true
	}
	var missing []OutputType
	for _, t := range g.OutputTypes {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// Output is one generated artifact. Immutable once written.
type Output struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	GenerationID string     `gorm:"not null;uniqueIndex:idx_outputs_generation_type,priority:1;size:36" json:"-"`
	OutputType   OutputType `gorm:"not null;uniqueIndex:idx_outputs_generation_type,priority:2;size:32" json:"type"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime" json:"createdAt"`
}
