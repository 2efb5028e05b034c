package pluggy

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.pluggy.ai"

const transactionsPageSize = 100

type Client struct {
	BaseURL      string
	clientID     string
	clientSecret string

	mu           sync.Mutex
	apiKey       string
	apiKeyExpiry time.Time
}

func New() *Client {
	base := os.Getenv("PLUGGY_BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		BaseURL:      base,
		clientID:     os.Getenv("PLUGGY_CLIENT_ID"),
		clientSecret: os.Getenv("PLUGGY_CLIENT_SECRET"),
	}
}

func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	if err := c.doRequest(ctx, "GET", c.BaseURL+"/items/"+url.PathEscape(itemID), nil, &item); err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return &item, nil
}

func (c *Client) ListAccounts(ctx context.Context, itemID string) ([]Account, error) {
	var data struct {
		Results []Account `json:"results"`
	}
	u := c.BaseURL + "/accounts?itemId=" + url.QueryEscape(itemID)
	if err := c.doRequest(ctx, "GET", u, nil, &data); err != nil {
		return nil, fmt.Errorf("list accounts for item %s: %w", itemID, err)
	}
	return data.Results, nil
}

func (c *Client) ListTransactionsPage(ctx context.Context, accountID string, from time.Time, page int) (*TransactionPage, error) {
	q := url.Values{}
	q.Set("accountId", accountID)
	q.Set("from", from.UTC().Format("2006-01-02"))
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(transactionsPageSize))

	var res TransactionPage
	if err := c.doRequest(ctx, "GET", c.BaseURL+"/transactions?"+q.Encode(), nil, &res); err != nil {
		return nil, fmt.Errorf("list transactions page %d for account %s: %w", page, accountID, err)
	}
	return &res, nil
}

// CreateConnectToken issues a short-lived token the frontend widget uses to
// link or re-authenticate a bank login.
func (c *Client) CreateConnectToken(ctx context.Context, userRef string, itemID string) (string, error) {
	body := map[string]any{
		"clientUserId": userRef,
	}
	if itemID != "" {
		body["itemId"] = itemID
	}
	var res connectTokenResponse
	if err := c.doRequest(ctx, "POST", c.BaseURL+"/connect_token", body, &res); err != nil {
		return "", fmt.Errorf("create connect token: %w", err)
	}
	return res.AccessToken, nil
}
