package txsendererrors

import "errors"

// Precondition failures. No transaction is signed or sent when one of these is returned.
var ErrWalletNotConnected = errors.New("wallet not connected")
var ErrInvalidAmount = errors.New("purchase amount must be greater than zero")
var ErrInsufficientBalance = errors.New("insufficient balance")
var ErrBalanceUnavailable = errors.New("unable to read wallet balance")

// Execution failures. The purchase must be treated as not having happened.
var ErrSubmissionFailed = errors.New("transaction submission failed")
var ErrTransactionReverted = errors.New("transaction reverted")
var ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
