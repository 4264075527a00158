package domain

import "fmt"

// Wire types shared by the HTTP handlers and the API client.

type VerifyPaymentRequest struct {
	TransactionHash string `json:"transactionHash" binding:"required"`
	UserAddress     string `json:"userAddress" binding:"required"`
	PackageAmount   int64  `json:"packageAmount" binding:"required"`
}

type VerifyPaymentResponse struct {
	Success         bool   `json:"success"`
	Credits         int64  `json:"credits"`
	TransactionHash string `json:"transactionHash"`
}

type UseCreditRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	// Amount defaults to 1 when omitted.
	Amount *int64 `json:"amount,omitempty"`
}

type UseCreditResponse struct {
	Success          bool   `json:"success"`
	SessionID        string `json:"sessionId"`
	CreditsUsed      int64  `json:"creditsUsed"`
	RemainingCredits int64  `json:"remainingCredits"`
	TotalGamesPlayed int64  `json:"totalGamesPlayed"`
}

type CreditsResponse struct {
	Success          bool   `json:"success"`
	WalletAddress    string `json:"walletAddress"`
	Credits          int64  `json:"credits"`
	TotalGamesPlayed int64  `json:"totalGamesPlayed"`
	TotalSpent       string `json:"totalSpent"`
}

type ScoreResponse struct {
	Success bool              `json:"success"`
	Entry   *LeaderboardEntry `json:"entry"`
}

// ErrorResponse is the body of every failed call. CurrentCredits and Required
// are set for insufficient-credit refusals.
type ErrorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	Code           string `json:"code"`
	CurrentCredits *int64 `json:"currentCredits,omitempty"`
	Required       *int64 `json:"required,omitempty"`
}

// WalletLoginRequest proves control of a wallet with a personal_sign signature
// over the sign-in message for IssuedAt (unix seconds).
type WalletLoginRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	IssuedAt      int64  `json:"issuedAt" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

type WalletLoginResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

// WalletLoginMessage is the text a wallet signs to sign in. wallet is the
// lowercase 0x address.
func WalletLoginMessage(wallet string, issuedAt int64) string {
	return fmt.Sprintf("Sign in to Race Arcade\nWallet: %s\nIssued: %d", wallet, issuedAt)
}
