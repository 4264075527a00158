// Package apiclient is the purchase client's view of the backend API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"race_arcade/internal/domain"
)

// Client talks to the race_arcade backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// SignFunc signs a text message the way personal_sign does.
type SignFunc func(msg string) (string, error)

// NewClient creates a backend client for baseURL (e.g. https://api.example.com)
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login proves control of wallet and keeps the player token for credit and score calls
func (c *Client) Login(ctx context.Context, wallet string, sign SignFunc) error {
	wallet, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return err
	}
	issuedAt := time.Now().Unix()
	sig, err := sign(domain.WalletLoginMessage(wallet, issuedAt))
	if err != nil {
		return fmt.Errorf("sign login message: %w", err)
	}

	var out domain.WalletLoginResponse
	err = c.do(ctx, http.MethodPost, "/api/v1/auth/wallet", domain.WalletLoginRequest{
		WalletAddress: wallet,
		IssuedAt:      issuedAt,
		Signature:     sig,
	}, &out)
	if err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// VerifyPayment asks the backend to credit a confirmed payment
func (c *Client) VerifyPayment(ctx context.Context, txHash, wallet string, packageCredits int64) (*domain.VerifyPaymentResponse, error) {
	var out domain.VerifyPaymentResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/payments/verify", domain.VerifyPaymentRequest{
		TransactionHash: txHash,
		UserAddress:     wallet,
		PackageAmount:   packageCredits,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UseCredit spends credits to start a session
func (c *Client) UseCredit(ctx context.Context, wallet string, amount int64) (*domain.UseCreditResponse, error) {
	var out domain.UseCreditResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/credits/use", domain.UseCreditRequest{
		WalletAddress: wallet,
		Amount:        &amount,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Credits returns the authoritative balance for wallet
func (c *Client) Credits(ctx context.Context, wallet string) (*domain.CreditsResponse, error) {
	var out domain.CreditsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/credits/"+url.PathEscape(wallet), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitScore posts a finished game
func (c *Client) SubmitScore(ctx context.Context, sub domain.ScoreSubmission) error {
	var out domain.ScoreResponse
	return c.do(ctx, http.MethodPost, "/api/v1/scores", sub, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.Status, data)
	}
	return json.Unmarshal(data, out)
}

// decodeError restores the domain error behind an API failure so callers can use errors.Is.
func decodeError(status string, body []byte) error {
	var apiErr domain.ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error == "" {
		return fmt.Errorf("API error: %s - %s", status, string(body))
	}

	if apiErr.Code == "insufficient_credits" && apiErr.CurrentCredits != nil && apiErr.Required != nil {
		return &domain.InsufficientCreditsError{Current: *apiErr.CurrentCredits, Required: *apiErr.Required}
	}
	if sentinel := domain.ErrorFromCode(apiErr.Code); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, apiErr.Error)
	}
	return fmt.Errorf("API error: %s - %s", status, apiErr.Error)
}
