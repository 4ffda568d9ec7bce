package enums

import "fmt"

// ItemStatus tracks whether a listing can still be bought.
type ItemStatus string

const (
	ItemStatusAvailable      ItemStatus = "available"
	ItemStatusPendingPayment ItemStatus = "pending_payment"
	ItemStatusSold           ItemStatus = "sold"
)

var validItemStatuses = []ItemStatus{
	ItemStatusAvailable,
	ItemStatusPendingPayment,
	ItemStatusSold,
}

// String implements fmt.Stringer.
func (i ItemStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is a known ItemStatus.
func (i ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseItemStatus converts raw input into an ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}

// ItemCondition describes the declared physical condition of a listing.
type ItemCondition string

const (
	ItemConditionNew     ItemCondition = "new"
	ItemConditionLikeNew ItemCondition = "like_new"
	ItemConditionGood    ItemCondition = "good"
	ItemConditionFair    ItemCondition = "fair"
	ItemConditionPoor    ItemCondition = "poor"
)

var validItemConditions = []ItemCondition{
	ItemConditionNew,
	ItemConditionLikeNew,
	ItemConditionGood,
	ItemConditionFair,
	ItemConditionPoor,
}

// IsValid reports whether the value is a known ItemCondition.
func (i ItemCondition) IsValid() bool {
	for _, candidate := range validItemConditions {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseItemCondition converts raw input into an ItemCondition.
func ParseItemCondition(value string) (ItemCondition, error) {
	for _, candidate := range validItemConditions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item condition %q", value)
}
