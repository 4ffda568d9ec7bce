package enums

import "fmt"

// InspectionVerdict is the agent's advisory pass/fail assessment.
type InspectionVerdict string

const (
	InspectionVerdictPassed InspectionVerdict = "passed"
	InspectionVerdictFailed InspectionVerdict = "failed"
)

// IsValid reports whether the value is a known InspectionVerdict.
func (v InspectionVerdict) IsValid() bool {
	return v == InspectionVerdictPassed || v == InspectionVerdictFailed
}

// ParseInspectionVerdict converts raw input into an InspectionVerdict.
func ParseInspectionVerdict(value string) (InspectionVerdict, error) {
	switch InspectionVerdict(value) {
	case InspectionVerdictPassed:
		return InspectionVerdictPassed, nil
	case InspectionVerdictFailed:
		return InspectionVerdictFailed, nil
	}
	return "", fmt.Errorf("invalid inspection verdict %q", value)
}

// AdminReviewStatus gates the consequence of an inspection report.
type AdminReviewStatus string

const (
	AdminReviewStatusPending  AdminReviewStatus = "pending"
	AdminReviewStatusApproved AdminReviewStatus = "approved"
	AdminReviewStatusRejected AdminReviewStatus = "rejected"
)

var validAdminReviewStatuses = []AdminReviewStatus{
	AdminReviewStatusPending,
	AdminReviewStatusApproved,
	AdminReviewStatusRejected,
}

// IsValid reports whether the value is a known AdminReviewStatus.
func (a AdminReviewStatus) IsValid() bool {
	for _, candidate := range validAdminReviewStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAdminReviewStatus converts raw input into an AdminReviewStatus.
func ParseAdminReviewStatus(value string) (AdminReviewStatus, error) {
	for _, candidate := range validAdminReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin review status %q", value)
}

// DisputeResolution is the admin's closing decision on a disputed order.
type DisputeResolution string

const (
	DisputeResolutionRefundBuyer DisputeResolution = "refund_buyer"
	DisputeResolutionPaySeller   DisputeResolution = "pay_seller"
)

// IsValid reports whether the value is a known DisputeResolution.
func (d DisputeResolution) IsValid() bool {
	return d == DisputeResolutionRefundBuyer || d == DisputeResolutionPaySeller
}

// ParseDisputeResolution converts raw input into a DisputeResolution.
func ParseDisputeResolution(value string) (DisputeResolution, error) {
	switch DisputeResolution(value) {
	case DisputeResolutionRefundBuyer:
		return DisputeResolutionRefundBuyer, nil
	case DisputeResolutionPaySeller:
		return DisputeResolutionPaySeller, nil
	}
	return "", fmt.Errorf("invalid dispute resolution %q", value)
}
