package cli

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
)

type Client struct {
	BaseURL    string
	AdminToken string
	HTTP       *http.Client
}

func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: adminToken,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/healthz", false, nil, &out)
	return out, err
}

func (c *Client) Economy(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/economy", false, nil, &out)
	return out, err
}

func (c *Client) ListPlayers(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/players", false, nil, &out)
	return out, err
}

func (c *Client) PlayerState(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/players/"+url.PathEscape(playerID), false, nil, &out)
	return out, err
}

func (c *Client) PlayerInstruments(ctx context.Context, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/players/"+url.PathEscape(playerID)+"/instruments", false, nil, &out)
	return out, err
}

func (c *Client) AddPlayer(ctx context.Context, id, name string, cash int64, human bool) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/players", true, map[string]any{
		"id":    id,
		"name":  name,
		"cash":  cash,
		"human": human,
	}, &out)
	return out, err
}

func (c *Client) ListProperties(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/properties", false, nil, &out)
	return out, err
}

func (c *Client) BuyProperty(ctx context.Context, playerID, propertyID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/properties/"+url.PathEscape(propertyID)+"/buy", false, map[string]any{
		"player_id": playerID,
	}, &out)
	return out, err
}

func (c *Client) ListAuctions(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/auctions", false, nil, &out)
	return out, err
}

func (c *Client) StartAuction(ctx context.Context, propertyID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auctions", false, map[string]any{
		"property_id": propertyID,
	}, &out)
	return out, err
}

func (c *Client) PlaceBid(ctx context.Context, auctionID, playerID string, amount int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auctions/"+url.PathEscape(auctionID)+"/bids", false, map[string]any{
		"player_id": playerID,
		"amount":    amount,
	}, &out)
	return out, err
}

func (c *Client) PassAuction(ctx context.Context, auctionID, playerID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/auctions/"+url.PathEscape(auctionID)+"/pass", false, map[string]any{
		"player_id": playerID,
	}, &out)
	return out, err
}

func (c *Client) ListTrades(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/trades", false, nil, &out)
	return out, err
}

func (c *Client) RespondTrade(ctx context.Context, tradeID, playerID string, accept bool) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/trades/"+url.PathEscape(tradeID)+"/respond", false, map[string]any{
		"player_id": playerID,
		"accept":    accept,
	}, &out)
	return out, err
}

func (c *Client) ApproveTrade(ctx context.Context, tradeID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/trades/"+url.PathEscape(tradeID)+"/approve", true, map[string]any{}, &out)
	return out, err
}

func (c *Client) FundState(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/fund", false, nil, &out)
	return out, err
}

func (c *Client) ModifyFund(ctx context.Context, action string, amount int64, reason string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/fund", true, map[string]any{
		"action": action,
		"amount": amount,
		"reason": reason,
	}, &out)
	return out, err
}

func (c *Client) AdvanceLap(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/laps", true, map[string]any{}, &out)
	return out, err
}

func (c *Client) Snapshot(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/admin/snapshot", true, map[string]any{}, &out)
	return out, err
}

// Do issues an arbitrary request. The offline queue replays through this.
func (c *Client) Do(ctx context.Context, method, path string, admin bool, body map[string]any) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, method, path, admin, body, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, admin bool, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && c.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
