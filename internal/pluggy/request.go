package pluggy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiKeyMargin keeps a refresh ahead of the key's real expiry so an in-flight
// request never races the cutoff.
const apiKeyMargin = 5 * time.Minute

const apiKeyLifetime = 2 * time.Hour

func (c *Client) doRequest(ctx context.Context, method, url string, body any, response any) error {
	key, err := c.ensureAPIKey(ctx)
	if err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Add("X-API-KEY", key)
	req.Header.Add("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("pluggy error (status %d): %s", res.StatusCode, string(b))
	}

	if response == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(response)
}

func (c *Client) ensureAPIKey(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.apiKey != "" && time.Now().Before(c.apiKeyExpiry.Add(-apiKeyMargin)) {
		return c.apiKey, nil
	}

	if c.clientID == "" || c.clientSecret == "" {
		return "", errors.New("PLUGGY_CLIENT_ID / PLUGGY_CLIENT_SECRET not set")
	}

	b, err := json.Marshal(map[string]string{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/auth", bytes.NewBuffer(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != 200 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("pluggy auth error (status %d): %s", res.StatusCode, string(body))
	}

	var r authResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("failed to parse auth response: %w", err)
	}
	if r.APIKey == "" {
		return "", errors.New("pluggy auth returned empty apiKey")
	}

	c.apiKey = r.APIKey
	c.apiKeyExpiry = time.Now().Add(apiKeyLifetime)
	return c.apiKey, nil
}
