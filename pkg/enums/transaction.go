package enums

import "fmt"

// TransactionType maps to the financial_transaction_type enum in Postgres.
type TransactionType string

const (
	TransactionTypeSale       TransactionType = "sale"
	TransactionTypeCommission TransactionType = "commission"
	TransactionTypePayout     TransactionType = "payout"
	TransactionTypeRefund     TransactionType = "refund"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeSale,
	TransactionTypeCommission,
	TransactionTypePayout,
	TransactionTypeRefund,
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

// TransactionStatus tracks settlement of a financial transaction row.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusCompleted,
	TransactionStatusFailed,
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// CreditTransactionType labels movements on a user's credit balance.
type CreditTransactionType string

const (
	CreditTransactionTypeListingFee   CreditTransactionType = "listing_fee"
	CreditTransactionTypePurchaseFee  CreditTransactionType = "purchase_fee"
	CreditTransactionTypeAdminGrant   CreditTransactionType = "admin_grant"
	CreditTransactionTypePayoutCredit CreditTransactionType = "payout_credit"
	CreditTransactionTypeRefundCredit CreditTransactionType = "refund_credit"
)

var validCreditTransactionTypes = []CreditTransactionType{
	CreditTransactionTypeListingFee,
	CreditTransactionTypePurchaseFee,
	CreditTransactionTypeAdminGrant,
	CreditTransactionTypePayoutCredit,
	CreditTransactionTypeRefundCredit,
}

// IsValid reports whether the value is a known CreditTransactionType.
func (c CreditTransactionType) IsValid() bool {
	for _, candidate := range validCreditTransactionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCreditTransactionType converts raw input into a CreditTransactionType.
func ParseCreditTransactionType(value string) (CreditTransactionType, error) {
	for _, candidate := range validCreditTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit transaction type %q", value)
}
