package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"expnet/core"
	"expnet/crypto"
	"expnet/state"
	"expnet/storage"
)

const testAuthToken = "test-rpc-token"

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func bech(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.XPPrefix, addr[:]).String()
}

func newTestServer(t *testing.T) (*Server, *core.Node) {
	t.Helper()
	t.Setenv("EXPNET_RPC_TOKEN", testAuthToken)
	manager := state.NewManager(storage.NewMemDB())
	node, err := core.NewNode(manager, testAddr(1), 500)
	if err != nil {
		t.Fatalf("node construction failed: %v", err)
	}
	node.SetNowFunc(func() int64 { return 1700000000 })
	return NewServer(node), node
}

func post(t *testing.T, server *Server, method string, params interface{}, authed bool) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request failed: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	if authed {
		httpReq.Header.Set("Authorization", "Bearer "+testAuthToken)
	}
	recorder := httptest.NewRecorder()
	server.handle(recorder, httpReq)

	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v (body %q)", err, recorder.Body.String())
	}
	return recorder, resp
}

func decodeResult(t *testing.T, resp RPCResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("re-marshal result failed: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result failed: %v", err)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	server, _ := newTestServer(t)
	recorder, resp := post(t, server, "bogus_method", nil, false)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("error = %+v, want method-not-found", resp.Error)
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	server, _ := newTestServer(t)
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	server.handle(recorder, httpReq)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestExperienceCreateRequiresAuth(t *testing.T) {
	server, _ := newTestServer(t)
	params := map[string]interface{}{
		"creator":           bech(testAddr(2)),
		"initialCid":        "bafyroot",
		"flowSyncAuthority": bech(testAddr(3)),
		"proposerFeeBps":    1000,
	}
	recorder, resp := post(t, server, "experience_create", params, false)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("error = %+v, want unauthorized", resp.Error)
	}
}

func TestPurchaseLifecycleOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	creator, authority, buyer := testAddr(2), testAddr(3), testAddr(5)

	createParams := map[string]interface{}{
		"creator":           bech(creator),
		"initialCid":        "bafyroot",
		"flowSyncAuthority": bech(authority),
		"proposerFeeBps":    1000,
	}
	recorder, resp := post(t, server, "experience_create", createParams, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("create status = %d: %+v", recorder.Code, resp.Error)
	}
	var created experienceResult
	decodeResult(t, resp, &created)
	if created.PriceWei != "0" {
		t.Fatalf("new experience price = %s, want 0", created.PriceWei)
	}

	if recorder, resp = post(t, server, "experience_setPrice", map[string]interface{}{
		"caller":     bech(creator),
		"experience": created.Address,
		"priceWei":   "10000",
	}, false); recorder.Code != http.StatusOK {
		t.Fatalf("set price status = %d: %+v", recorder.Code, resp.Error)
	}

	if recorder, resp = post(t, server, "account_fund", map[string]interface{}{
		"address": bech(buyer),
		"amount":  "30000",
	}, true); recorder.Code != http.StatusOK {
		t.Fatalf("fund status = %d: %+v", recorder.Code, resp.Error)
	}

	recorder, resp = post(t, server, "experience_buy", map[string]interface{}{
		"buyer":      bech(buyer),
		"experience": created.Address,
		"quantity":   2,
		"paymentWei": "20000",
	}, false)
	if recorder.Code != http.StatusOK {
		t.Fatalf("buy status = %d: %+v", recorder.Code, resp.Error)
	}
	var receipt receiptResult
	decodeResult(t, resp, &receipt)
	if receipt.TotalPaid != "20000" {
		t.Fatalf("total paid = %s, want 20000", receipt.TotalPaid)
	}
	total := new(big.Int)
	for _, leg := range []string{receipt.Platform, receipt.Proposer, receipt.Creator} {
		parsed, ok := new(big.Int).SetString(leg, 10)
		if !ok {
			t.Fatalf("leg %q does not parse", leg)
		}
		total.Add(total, parsed)
	}
	if total.Cmp(big.NewInt(20_000)) != 0 {
		t.Fatalf("legs sum to %s, want 20000", total)
	}

	recorder, resp = post(t, server, "experience_balanceOf", map[string]interface{}{
		"experience": created.Address,
		"holder":     bech(buyer),
	}, false)
	if recorder.Code != http.StatusOK {
		t.Fatalf("balance status = %d: %+v", recorder.Code, resp.Error)
	}
	var balance map[string]string
	decodeResult(t, resp, &balance)
	if balance["balance"] != "2" {
		t.Fatalf("pass balance = %s, want 2", balance["balance"])
	}
}

func TestPurchaseRejectionsOverRPC(t *testing.T) {
	server, _ := newTestServer(t)
	creator, authority, buyer := testAddr(2), testAddr(3), testAddr(5)

	_, resp := post(t, server, "experience_create", map[string]interface{}{
		"creator":           bech(creator),
		"initialCid":        "bafyroot",
		"flowSyncAuthority": bech(authority),
	}, true)
	var created experienceResult
	decodeResult(t, resp, &created)

	// Sales are paused until a price is set.
	recorder, resp := post(t, server, "experience_buy", map[string]interface{}{
		"buyer":      bech(buyer),
		"experience": created.Address,
		"quantity":   1,
		"paymentWei": "0",
	}, false)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("paused buy status = %d, want 400", recorder.Code)
	}
	if resp.Error == nil {
		t.Fatal("paused buy returned no error")
	}

	recorder, _ = post(t, server, "experience_get", map[string]interface{}{
		"experience": "not-an-address",
	}, false)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("malformed address status = %d, want 400", recorder.Code)
	}

	recorder, _ = post(t, server, "experience_get", map[string]interface{}{
		"experience": bech(testAddr(0xFF)),
	}, false)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing experience status = %d, want 404", recorder.Code)
	}
}

func TestSoulboundEndpointsAlwaysReject(t *testing.T) {
	server, _ := newTestServer(t)
	recorder, resp := post(t, server, "experience_transferPass", map[string]interface{}{
		"from":       bech(testAddr(1)),
		"to":         bech(testAddr(2)),
		"experience": bech(testAddr(3)),
		"passId":     1,
		"quantity":   1,
	}, false)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}
	if resp.Error == nil {
		t.Fatal("transfer returned no error")
	}

	recorder, _ = post(t, server, "experience_setApprovalForAll", map[string]interface{}{
		"holder":     bech(testAddr(1)),
		"operator":   bech(testAddr(2)),
		"experience": bech(testAddr(3)),
		"approved":   true,
	}, false)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}
}

func TestTokenEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	holder := testAddr(5)

	recorder, resp := post(t, server, "token_register", map[string]interface{}{
		"symbol":   "USDC",
		"name":     "USD Coin",
		"decimals": 6,
	}, true)
	if recorder.Code != http.StatusOK {
		t.Fatalf("register status = %d: %+v", recorder.Code, resp.Error)
	}

	if recorder, resp = post(t, server, "token_mint", map[string]interface{}{
		"symbol": "USDC",
		"to":     bech(holder),
		"amount": "1000",
	}, true); recorder.Code != http.StatusOK {
		t.Fatalf("mint status = %d: %+v", recorder.Code, resp.Error)
	}

	recorder, resp = post(t, server, "token_balanceOf", map[string]interface{}{
		"symbol": "USDC",
		"holder": bech(holder),
	}, false)
	if recorder.Code != http.StatusOK {
		t.Fatalf("balance status = %d: %+v", recorder.Code, resp.Error)
	}
	var balance map[string]string
	decodeResult(t, resp, &balance)
	if balance["balance"] != "1000" {
		t.Fatalf("token balance = %s, want 1000", balance["balance"])
	}

	// Mint without the platform token is rejected.
	recorder, _ = post(t, server, "token_mint", map[string]interface{}{
		"symbol": "USDC",
		"to":     bech(holder),
		"amount": "1",
	}, false)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated mint status = %d, want 401", recorder.Code)
	}
}
