package domain

import "errors"

var (
	ErrInvalidAccount        = errors.New("invalid_account")
	ErrInvalidCredits        = errors.New("invalid_credits")
	ErrInvalidAction         = errors.New("invalid_action")
	ErrInvalidPaymentRef     = errors.New("invalid_payment_ref")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrAccountNotFound       = errors.New("account_not_found")
	ErrPurchaseNotFound      = errors.New("purchase_not_found")
	ErrInsufficientCredits   = errors.New("insufficient_credits")
	ErrPaymentAlreadyApplied = errors.New("payment_already_applied")
	ErrLedgerInconsistency   = errors.New("ledger_inconsistency")
)
