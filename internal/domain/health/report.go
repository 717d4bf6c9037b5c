package health

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	KindLight = "light"
	KindDeep  = "deep"

	StatusOK    = "ok"
	StatusError = "error"
)

// Report is one health check result for a named source connection. Deep
// reports carry the collected quality metrics in Payload.
type Report struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Connection string         `gorm:"column:connection;not null;index:idx_health_report_latest,priority:1" json:"connection"`
	Kind       string         `gorm:"column:kind;not null;index:idx_health_report_latest,priority:2" json:"kind"`
	Status     string         `gorm:"column:status;not null" json:"status"`
	LatencyMS  float64        `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`
	Error      string         `gorm:"column:error" json:"error,omitempty"`
	Payload    datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	CheckedAt  time.Time      `gorm:"column:checked_at;not null;index:idx_health_report_latest,priority:3" json:"checked_at"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (Report) TableName() string { return "health_report" }

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
