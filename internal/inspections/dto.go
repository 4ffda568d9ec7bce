package inspections

import (
	"time"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
)

// FileReportRequest carries the agent's assessment of the item.
type FileReportRequest struct {
	Verdict   string   `json:"verdict" validate:"required,oneof=passed failed"`
	Notes     string   `json:"notes" validate:"required,min=10"`
	PhotoURLs []string `json:"photoUrls" validate:"omitempty,dive,url"`
}

// ReviewRequest records the admin ruling on a filed report.
type ReviewRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=approved rejected"`
	Note     *string `json:"note,omitempty"`
}

// ReportSummary is the public representation of an inspection report.
type ReportSummary struct {
	ID           uuid.UUID               `json:"id"`
	OrderID      uuid.UUID               `json:"orderId"`
	AgentID      uuid.UUID               `json:"agentId"`
	Verdict      enums.InspectionVerdict `json:"verdict"`
	Notes        string                  `json:"notes"`
	PhotoURLs    []string                `json:"photoUrls,omitempty"`
	ReviewStatus enums.AdminReviewStatus `json:"reviewStatus"`
	ReviewedBy   *uuid.UUID              `json:"reviewedBy,omitempty"`
	ReviewNote   *string                 `json:"reviewNote,omitempty"`
	ReviewedAt   *time.Time              `json:"reviewedAt,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
}

// FromModel maps a persistence row to its public summary.
func FromModel(report *models.InspectionReport) ReportSummary {
	if report == nil {
		return ReportSummary{}
	}
	return ReportSummary{
		ID:           report.ID,
		OrderID:      report.OrderID,
		AgentID:      report.AgentID,
		Verdict:      report.Verdict,
		Notes:        report.Notes,
		PhotoURLs:    report.PhotoURLs,
		ReviewStatus: report.ReviewStatus,
		ReviewedBy:   report.ReviewedBy,
		ReviewNote:   report.ReviewNote,
		ReviewedAt:   report.ReviewedAt,
		CreatedAt:    report.CreatedAt,
	}
}
