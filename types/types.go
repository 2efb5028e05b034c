package types

type CreateConnectionRequest struct {
	ItemID   string `json:"item_id"`
	Provider string `json:"provider"`
}

type ConnectTokenRequest struct {
	// ItemID is set when re-authenticating an existing connection.
	ItemID string `json:"item_id"`
}

// WebhookPayload is the aggregator's notification body. The item id has
// moved between payload shapes across API versions, so it may arrive at the
// top level or nested under data.
type WebhookPayload struct {
	Event  string `json:"event"`
	ItemID string `json:"itemId"`
	Data   *struct {
		ID     string `json:"id"`
		ItemID string `json:"itemId"`
	} `json:"data"`
}

// ExtractItemID tries the known payload locations in priority order. An
// empty result is loggable but not an error.
func (p *WebhookPayload) ExtractItemID() string {
	if p.ItemID != "" {
		return p.ItemID
	}
	if p.Data != nil {
		if p.Data.ID != "" {
			return p.Data.ID
		}
		if p.Data.ItemID != "" {
			return p.Data.ItemID
		}
	}
	return ""
}
