package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// UsageAction names a credit-consuming action in the usage log.
type UsageAction string

const (
	UsageActionGenerate      UsageAction = "generate"
	UsageActionGenerateRetry UsageAction = "generate_retry"
)

type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = make(Metadata)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Metadata: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

func (Metadata) GormDataType() string {
	return "json"
}

func (Metadata) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return jsonColumnType(db)
}

func jsonColumnType(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "JSONB"
	case "mysql":
		return "JSON"
	default:
		return "TEXT"
	}
}

// UsageLog is an append-only audit record of a credit-consuming action.
type UsageLog struct {
	ID          uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      string      `gorm:"not null;index;size:36" json:"user_id"`
	Action      UsageAction `gorm:"not null;index;size:32" json:"action"`
	CreditsUsed int         `gorm:"not null;default:0" json:"credits_used"`
	Metadata    Metadata    `json:"metadata"`
	CreatedAt   time.Time   `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (UsageLog) TableName() string {
	return "usage_logs"
}

type ConsumeCreditsParams struct {
	UserID   string
	Amount   int
	Limit    int
	Action   UsageAction
	Metadata Metadata
}

type RecordUsageParams struct {
	UserID   string
	Action   UsageAction
	Credits  int
	Metadata Metadata
}
