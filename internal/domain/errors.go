package domain

import (
	"errors"
	"fmt"
)

// Payment and ledger error taxonomy, shared by the backend and the purchase client.
var (
	ErrNotConnected        = errors.New("wallet not connected")
	ErrWalletNotConnected  = errors.New("wallet connection lost")
	ErrUserRejected        = errors.New("user rejected the request")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrWrongNetwork        = errors.New("wrong network")
	ErrTransientConnection = errors.New("transient connection error")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrReverted            = errors.New("transaction reverted")
	ErrAlreadyProcessed    = errors.New("transaction already processed")
	ErrNotFound            = errors.New("transaction not found")
	ErrNotConfirmed        = errors.New("transaction not confirmed")
	ErrAmountMismatch      = errors.New("amount mismatch")
	ErrWrongReceiver       = errors.New("wrong receiver")
	ErrSenderMismatch      = errors.New("sender mismatch")
	ErrUnknownPackage      = errors.New("unknown package")
	ErrInvalidAddress      = errors.New("invalid wallet address")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidScore        = errors.New("invalid score")
	ErrDuplicateScore      = errors.New("score already submitted")
	ErrInvalidHash         = errors.New("invalid transaction hash")
)

// ConfirmationTimeoutError carries the hash that must be kept for a manual re-check.
type ConfirmationTimeoutError struct {
	Hash     string
	Attempts int
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed after %d checks", e.Hash, e.Attempts)
}

func (e *ConfirmationTimeoutError) Unwrap() error { return ErrConfirmationTimeout }

// InsufficientCreditsError reports the balance seen when a debit was refused.
type InsufficientCreditsError struct {
	Current  int64
	Required int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: have %d, need %d", e.Current, e.Required)
}

func (e *InsufficientCreditsError) Unwrap() error { return ErrInsufficientCredits }

// IsValidationError reports errors that mean the payment claim itself is bad.
// They map to HTTP 400 and are never credited.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrAlreadyProcessed, ErrNotFound, ErrNotConfirmed, ErrReverted,
		ErrAmountMismatch, ErrWrongReceiver, ErrSenderMismatch,
		ErrUnknownPackage, ErrInvalidAddress, ErrInvalidAmount,
		ErrInsufficientCredits, ErrInvalidScore, ErrDuplicateScore, ErrInvalidHash,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage returns the text shown to the player for a failure.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConnected):
		return "Connect your wallet to buy credits."
	case errors.Is(err, ErrWalletNotConnected):
		return "Lost connection to your wallet. Reconnect and try again."
	case errors.Is(err, ErrUserRejected):
		return "You cancelled the payment in your wallet."
	case errors.Is(err, ErrInsufficientFunds):
		return "Not enough balance to cover the price plus network fee."
	case errors.Is(err, ErrInsufficientCredits):
		return "You have no credits left. Buy a package to keep racing."
	case errors.Is(err, ErrWrongNetwork):
		return "Switch your wallet to the supported network to continue."
	case errors.Is(err, ErrConfirmationTimeout):
		return "Your payment is still being confirmed. Keep this page and check the status again in a moment."
	case errors.Is(err, ErrReverted):
		return "The payment failed on chain. No credits were added and nothing was charged beyond the network fee."
	case errors.Is(err, ErrAlreadyProcessed):
		return "This payment was already credited."
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotConfirmed):
		return "The payment is not visible on chain yet. Check the status again shortly."
	case errors.Is(err, ErrAmountMismatch):
		return "The amount paid does not match the selected package."
	case errors.Is(err, ErrWrongReceiver):
		return "The payment was not sent to the game's address."
	case errors.Is(err, ErrSenderMismatch):
		return "The payment was sent from a different wallet than the one connected."
	case errors.Is(err, ErrUnknownPackage):
		return "That package does not exist."
	case errors.Is(err, ErrInvalidHash):
		return "That does not look like a transaction hash."
	case errors.Is(err, ErrInvalidAddress):
		return "That does not look like a wallet address."
	case errors.Is(err, ErrInvalidAmount):
		return "You can spend between 1 and 10 credits at a time."
	case errors.Is(err, ErrInvalidScore):
		return "The score could not be accepted."
	case errors.Is(err, ErrDuplicateScore):
		return "This score was already submitted."
	case errors.Is(err, ErrTransientConnection):
		return "Network trouble while talking to your wallet. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// errorCodes are the stable codes carried in API error bodies.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAlreadyProcessed, "already_processed"},
	{ErrNotFound, "not_found"},
	{ErrNotConfirmed, "not_confirmed"},
	{ErrReverted, "reverted"},
	{ErrAmountMismatch, "amount_mismatch"},
	{ErrWrongReceiver, "wrong_receiver"},
	{ErrSenderMismatch, "sender_mismatch"},
	{ErrUnknownPackage, "unknown_package"},
	{ErrInvalidAddress, "invalid_address"},
	{ErrInvalidHash, "invalid_hash"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInsufficientCredits, "insufficient_credits"},
	{ErrInvalidScore, "invalid_score"},
	{ErrDuplicateScore, "duplicate_score"},
}

// ErrorCode returns the API code for err, or "internal".
func ErrorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// ErrorFromCode maps an API code back to its sentinel, or nil when unknown.
func ErrorFromCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
