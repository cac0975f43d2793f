package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tycoon/internal/config"
	"tycoon/internal/game"
	"tycoon/internal/ledger"
)

func newTestServer(t *testing.T) (*game.Session, *httptest.Server) {
	t.Helper()
	session := game.NewSession(game.DefaultConfig(), nil)
	for _, id := range []string{"alice", "bob"} {
		if err := session.AddPlayer(id, id, 1_500, true); err != nil {
			t.Fatalf("AddPlayer(%s): %v", id, err)
		}
	}
	if err := session.Ledger.AddProperty(ledger.Property{ID: "boardwalk", Group: "darkblue", BasePrice: 400, BaseRent: 50}); err != nil {
		t.Fatalf("AddProperty: %v", err)
	}
	srv := New(config.APIConfig{AdminToken: "sekrit"}, nil, session, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return session, ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("status %d, body %v", resp.StatusCode, body)
	}
}

func TestEconomyEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/economy", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body["regime"] != "stable" || body["inflation_factor"] != 1.0 {
		t.Fatalf("body = %v", body)
	}
	if body["total_cash"] != float64(3_000) {
		t.Fatalf("total_cash = %v", body["total_cash"])
	}
}

func TestBuyPropertyFlow(t *testing.T) {
	session, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/properties/boardwalk/buy", "", map[string]any{"player_id": "alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	prop, _ := session.Ledger.PropertyView("boardwalk")
	if prop.OwnerID != "alice" {
		t.Fatalf("owner = %q", prop.OwnerID)
	}
	// Buying the same property again is a domain error, not a panic.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/properties/boardwalk/buy", "", map[string]any{"player_id": "bob"})
	if resp.StatusCode == http.StatusOK {
		t.Fatal("second purchase succeeded")
	}
}

func TestNotFoundTaxonomy(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/players/ghost", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing player status = %d, want 404", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/properties/ghost/buy", "", map[string]any{"player_id": "alice"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing property status = %d, want 404", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/auctions/ghost", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing auction status = %d, want 404", resp.StatusCode)
	}
}

func TestDebtCapReturns422(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/loans", "", map[string]any{"player_id": "alice", "amount": 10_000})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if body["cap"] != float64(3_000) || body["requested"] != float64(10_000) || body["outstanding"] != float64(0) {
		t.Fatalf("body = %v", body)
	}
}

func TestAuctionConflictTaxonomy(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/auctions", "", map[string]any{"property_id": "boardwalk"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	auctionID, _ := body["id"].(string)
	if auctionID == "" {
		t.Fatalf("start body = %v", body)
	}
	// A second auction on the same property conflicts.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auctions", "", map[string]any{"property_id": "boardwalk"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double start status = %d, want 409", resp.StatusCode)
	}
	// An opening bid under the minimum is a validation error.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auctions/"+auctionID+"/bids", "", map[string]any{"player_id": "alice", "amount": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("underbid status = %d, want 400", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auctions/"+auctionID+"/bids", "", map[string]any{"player_id": "alice", "amount": 300})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bid status = %d", resp.StatusCode)
	}
	// A lower competing bid is a conflict.
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/auctions/"+auctionID+"/bids", "", map[string]any{"player_id": "bob", "amount": 290})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("low bid status = %d, want 409", resp.StatusCode)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	session, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/players", "", map[string]any{"id": "carol", "cash": 1_500})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no-token status = %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/players", "wrong", map[string]any{"id": "carol", "cash": 1_500})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad-token status = %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/players", "sekrit", map[string]any{"id": "carol", "cash": 1_500, "human": true})
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status = %d", resp.StatusCode)
	}
	if _, err := session.Ledger.PlayerView("carol"); err != nil {
		t.Fatalf("carol missing after admin add: %v", err)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/properties/boardwalk/buy", "", map[string]any{"player_id": "alice", "bogus": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
