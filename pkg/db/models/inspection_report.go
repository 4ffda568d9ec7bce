package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// InspectionReport captures an agent's assessment of a delivered item and the
// admin review decision that follows it.
type InspectionReport struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	AgentID      uuid.UUID               `gorm:"column:agent_id;type:uuid;not null;index"`
	Verdict      enums.InspectionVerdict `gorm:"column:verdict;type:inspection_verdict;not null"`
	Notes        string                  `gorm:"column:notes;type:text;not null"`
	PhotoURLs    []string                `gorm:"column:photo_urls;type:jsonb;serializer:json"`
	ReviewStatus enums.AdminReviewStatus `gorm:"column:review_status;type:admin_review_status;not null;default:'pending'"`
	ReviewedBy   *uuid.UUID              `gorm:"column:reviewed_by;type:uuid"`
	ReviewNote   *string                 `gorm:"column:review_note;type:text"`
	ReviewedAt   *time.Time              `gorm:"column:reviewed_at"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
