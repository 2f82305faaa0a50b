package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bridge-backend/internal/apperrors"

	"github.com/shopspring/decimal"
)

// TradingClient is the boundary to the trading engine's account balances.
// The bridge credits wrapped tokens after mint and debits them on
// withdrawal acceptance.
type TradingClient interface {
	GetBalance(ctx context.Context, userID, symbol string) (decimal.Decimal, error)
	Credit(ctx context.Context, userID, symbol string, amount decimal.Decimal, ref string) error
	Debit(ctx context.Context, userID, symbol string, amount decimal.Decimal, ref string) error
}

// HTTPTradingClient talks to the trading engine over its internal HTTP API
type HTTPTradingClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPTradingClient creates a new trading engine client
func NewHTTPTradingClient(baseURL string, timeoutSeconds int) *HTTPTradingClient {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &HTTPTradingClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

type balanceResponse struct {
	Success bool   `json:"success"`
	Balance string `json:"balance"`
	Error   string `json:"error,omitempty"`
}

type transferRequest struct {
	UserID string `json:"userId"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
	Ref    string `json:"ref"`
}

type transferResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// GetBalance queries a user's available wrapped balance
func (c *HTTPTradingClient) GetBalance(ctx context.Context, userID, symbol string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/internal/balances?userId=%s&symbol=%s", c.baseURL, userID, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, apperrors.Transient("trading.get_balance", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, apperrors.Transient("trading.get_balance", err)
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, apperrors.Transient("trading.get_balance",
			fmt.Errorf("trading engine returned status %d: %s", resp.StatusCode, string(body)))
	}

	var result balanceResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.Success {
		return decimal.Zero, fmt.Errorf("trading engine returned error: %s", result.Error)
	}

	balance, err := decimal.NewFromString(result.Balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", result.Balance, err)
	}
	return balance, nil
}

// Credit adds wrapped balance to a user's trading account
func (c *HTTPTradingClient) Credit(ctx context.Context, userID, symbol string, amount decimal.Decimal, ref string) error {
	return c.transfer(ctx, "credit", userID, symbol, amount, ref)
}

// Debit removes wrapped balance from a user's trading account
func (c *HTTPTradingClient) Debit(ctx context.Context, userID, symbol string, amount decimal.Decimal, ref string) error {
	return c.transfer(ctx, "debit", userID, symbol, amount, ref)
}

func (c *HTTPTradingClient) transfer(ctx context.Context, op, userID, symbol string, amount decimal.Decimal, ref string) error {
	url := fmt.Sprintf("%s/internal/balances/%s", c.baseURL, op)

	jsonBody, err := json.Marshal(transferRequest{
		UserID: userID,
		Symbol: symbol,
		Amount: amount.String(),
		Ref:    ref,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Transient("trading."+op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Transient("trading."+op, err)
	}

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return apperrors.InsufficientBalance("trading."+op,
			fmt.Errorf("trading engine rejected %s: %s", op, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return apperrors.Transient("trading."+op,
			fmt.Errorf("trading engine returned status %d: %s", resp.StatusCode, string(body)))
	}

	var result transferResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("trading engine returned error: %s", result.Error)
	}
	return nil
}
