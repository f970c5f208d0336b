// journal-payments/internal/gateway/server_test.go
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/journal-payments/internal/click"
	"github.com/example/journal-payments/internal/ledger"
	"github.com/example/journal-payments/internal/payme"
	"github.com/example/journal-payments/internal/secrets"
)

const (
	testServiceID = "82154"
	testSecret    = "XZC6u3JBBh"
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(ledger.NewMemStore(), nil)
	res := &secrets.Resolver{
		ServiceSecrets:   map[string]string{testServiceID: testSecret},
		DefaultServiceID: testServiceID,
		DefaultSecret:    testSecret,
	}
	cfg := click.Config{
		MerchantID:     "45730",
		MerchantUserID: "67040",
		ServiceID:      testServiceID,
	}
	inv := click.NewInvoiceClient(cfg, testSecret)
	ca := click.NewAdapter(cfg, res, l, inv)
	pa := payme.NewAdapter(payme.Config{
		MerchantID: "merchant-1",
		TestKey:    "test-key",
		Endpoint:   "https://checkout.paycom.uz",
		TestMode:   true,
	}, l)

	srv := httptest.NewServer(NewServer(l, ca, inv, pa).Handler())
	t.Cleanup(srv.Close)
	return srv, l
}

func postForm(t *testing.T, url string, form url.Values) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	return resp
}

func decodeClick(t *testing.T, resp *http.Response) click.Response {
	t.Helper()
	defer resp.Body.Close()
	var out click.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func prepareForm(txID, clickTransID, amount string) url.Values {
	signTime := time.Now().Format("2006-01-02 15:04:05")
	req := click.Request{
		ClickTransID:    clickTransID,
		ServiceID:       testServiceID,
		MerchantTransID: txID,
		Amount:          amount,
		Action:          "0",
		SignTime:        signTime,
	}
	return url.Values{
		"click_trans_id":    {clickTransID},
		"service_id":        {testServiceID},
		"merchant_trans_id": {txID},
		"amount":            {amount},
		"action":            {"0"},
		"sign_time":         {signTime},
		"sign_string":       {click.PrepareDigest(req, testSecret)},
	}
}

func completeForm(txID, clickTransID, prepareID, amount string) url.Values {
	signTime := time.Now().Format("2006-01-02 15:04:05")
	req := click.Request{
		ClickTransID:      clickTransID,
		MerchantTransID:   txID,
		MerchantPrepareID: prepareID,
		Error:             "0",
		SignTime:          signTime,
	}
	return url.Values{
		"click_trans_id":      {clickTransID},
		"service_id":          {testServiceID},
		"merchant_trans_id":   {txID},
		"merchant_prepare_id": {prepareID},
		"amount":              {amount},
		"action":              {"1"},
		"error":               {"0"},
		"sign_time":           {signTime},
		"sign_string":         {click.CompleteDigest(req, testSecret)},
	}
}

func TestClickProbe(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/payments/click/prepare", "/payments/click/complete"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestClickEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Post(srv.URL+"/payments/click/prepare", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	out := decodeClick(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "transport failures still answer in the envelope")
	assert.Equal(t, click.CodeInternal, out.Error)
}

func TestClickFormLifecycle(t *testing.T) {
	srv, l := newTestServer(t)
	tx, err := l.Create(context.Background(), decimal.RequireFromString("15000.00"), "UZS")
	require.NoError(t, err)

	prep := decodeClick(t, postForm(t, srv.URL+"/payments/click/prepare", prepareForm(tx.ID, "777123", "15000.00")))
	require.Equal(t, click.CodeSuccess, prep.Error, prep.ErrorNote)
	assert.Equal(t, tx.ID, prep.MerchantPrepareID)

	comp := decodeClick(t, postForm(t, srv.URL+"/payments/click/complete", completeForm(tx.ID, "777123", prep.MerchantPrepareID, "15000.00")))
	require.Equal(t, click.CodeSuccess, comp.Error, comp.ErrorNote)

	got, err := l.Find(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, got.Status)
}

func TestClickJSONBody(t *testing.T) {
	srv, l := newTestServer(t)
	tx, err := l.Create(context.Background(), decimal.RequireFromString("100.00"), "UZS")
	require.NoError(t, err)

	// Numeric JSON fields must round-trip into the same strings the signature
	// was computed over.
	form := prepareForm(tx.ID, "888001", "100")
	body := map[string]any{}
	for k, v := range form {
		body[k] = v[0]
	}
	body["click_trans_id"] = json.Number("888001")
	body["amount"] = json.Number("100")
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/payments/click/prepare", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	out := decodeClick(t, resp)
	assert.Equal(t, click.CodeSuccess, out.Error, out.ErrorNote)
}

func postRPC(t *testing.T, srv *httptest.Server, auth string, body string) payme.RPCResponse {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/payments/payme", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out payme.RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func paymeAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("merchant-1:test-key"))
}

func TestPaymeEnvelope(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("empty body is a parse error", func(t *testing.T) {
		out := postRPC(t, srv, paymeAuth(), "")
		require.NotNil(t, out.Error)
		assert.Equal(t, payme.CodeParseError, out.Error.Code)
	})

	t.Run("malformed json is a parse error", func(t *testing.T) {
		out := postRPC(t, srv, paymeAuth(), "{not json")
		require.NotNil(t, out.Error)
		assert.Equal(t, payme.CodeParseError, out.Error.Code)
	})

	t.Run("wrong version is an invalid request", func(t *testing.T) {
		out := postRPC(t, srv, paymeAuth(), `{"jsonrpc":"1.0","method":"CheckTransaction","id":1}`)
		require.NotNil(t, out.Error)
		assert.Equal(t, payme.CodeInvalidRequest, out.Error.Code)
	})

	t.Run("missing id is an invalid request", func(t *testing.T) {
		out := postRPC(t, srv, paymeAuth(), `{"jsonrpc":"2.0","method":"CheckTransaction"}`)
		require.NotNil(t, out.Error)
		assert.Equal(t, payme.CodeInvalidRequest, out.Error.Code)
	})

	t.Run("auth is checked before the method exists", func(t *testing.T) {
		out := postRPC(t, srv, "", `{"jsonrpc":"2.0","method":"NoSuchMethod","id":7}`)
		require.NotNil(t, out.Error)
		assert.Equal(t, payme.CodeUnauthorized, out.Error.Code)
		assert.EqualValues(t, 7, out.ID)
	})

	t.Run("authorized unknown method", func(t *testing.T) {
		out := postRPC(t, srv, paymeAuth(), `{"jsonrpc":"2.0","method":"NoSuchMethod","id":8}`)
		require.NotNil(t, out.Error)
		assert.Equal(t, payme.CodeMethodNotFound, out.Error.Code)
	})
}

func TestPaymeCreateOverHTTP(t *testing.T) {
	srv, l := newTestServer(t)
	tx, err := l.Create(context.Background(), decimal.RequireFromString("15000.00"), "UZS")
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "CreateTransaction",
		"id":      42,
		"params": map[string]any{
			"id":      "payme-http-1",
			"time":    time.Now().UnixMilli(),
			"amount":  1_500_000,
			"account": map[string]string{"transaction_id": tx.ID},
		},
	})
	require.NoError(t, err)

	out := postRPC(t, srv, paymeAuth(), string(body))
	require.Nil(t, out.Error)
	assert.EqualValues(t, 42, out.ID)

	result, ok := out.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, tx.ID, result["transaction"])
	assert.EqualValues(t, 1, result["state"])
}

func TestTransactionAPI(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/transactions", "application/json",
		strings.NewReader(`{"amount": 15000.00, "currency": "UZS"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created transactionOut
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "15000.00", created.Amount)
	assert.Equal(t, "created", created.Status)
	assert.NotEmpty(t, created.ID)

	resp, err = http.Get(srv.URL + "/api/transactions/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fetched transactionOut
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
	resp.Body.Close()
	assert.Equal(t, created, fetched)

	resp, err = http.Get(srv.URL + "/api/transactions/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	t.Run("bad amount", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/transactions", "application/json",
			strings.NewReader(`{"amount": "abc"}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("negative amount", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/transactions", "application/json",
			strings.NewReader(`{"amount": -5}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPayURL(t *testing.T) {
	srv, l := newTestServer(t)
	tx, err := l.Create(context.Background(), decimal.RequireFromString("15000.00"), "UZS")
	require.NoError(t, err)

	t.Run("payme link", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/transactions/"+tx.ID+"/pay-url?provider=payme", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out payURLOut
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "payme", out.Provider)
		assert.True(t, strings.HasPrefix(out.PayURL, "https://checkout.paycom.uz/"))
	})

	t.Run("click degrades to a direct pay link without a phone", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/transactions/"+tx.ID+"/pay-url?provider=click", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out payURLOut
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.True(t, out.Fallback)
		assert.Contains(t, out.PayURL, "transaction_param="+tx.ID)
	})

	t.Run("unknown provider", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/transactions/"+tx.ID+"/pay-url?provider=stripe", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not payable once bound", func(t *testing.T) {
		_, err := l.Attach(context.Background(), tx.ID, ledger.ProviderPayme, "ref-1", "", "merchant-1")
		require.NoError(t, err)
		resp, err := http.Post(srv.URL+"/api/transactions/"+tx.ID+"/pay-url?provider=payme", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/transactions/missing/pay-url?provider=payme", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestProviderLabel(t *testing.T) {
	assert.Equal(t, "click", providerLabel("/payments/click/prepare"))
	assert.Equal(t, "click", providerLabel("/payments/click/complete"))
	assert.Equal(t, "payme", providerLabel("/payments/payme"))
	assert.Equal(t, "api", providerLabel("/api/transactions"))
	assert.Equal(t, "api", providerLabel("/healthz"))
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["ok"])
}
