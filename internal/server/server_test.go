package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"transferledger/internal/ledger"
	"transferledger/internal/storage/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	l := ledger.NewLedger(memory.NewStore(), nil, nil, nil)
	return NewServer(l, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func createAccount(t *testing.T, s *Server, name, key string, balance int64) accountResponse {
	t.Helper()
	bal := decimal.NewFromInt(balance)
	rec := doJSON(t, s, http.MethodPost, "/accounts", createAccountRequest{
		DisplayName:    name,
		ExternalKey:    key,
		InitialBalance: &bal,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: status=%d body=%s", rec.Code, rec.Body.String())
	}
	return decode[accountResponse](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
}

func TestCreateAccountEndpoint(t *testing.T) {
	s := newTestServer(t)

	acct := createAccount(t, s, "Alice", "alice@example.com", 1000)
	if acct.ID == "" || !acct.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("unexpected response %+v", acct)
	}

	// Duplicate external key.
	bal := decimal.NewFromInt(5)
	rec := doJSON(t, s, http.MethodPost, "/accounts", createAccountRequest{
		DisplayName: "Impostor", ExternalKey: "alice@example.com", InitialBalance: &bal,
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate key: status=%d, want 409", rec.Code)
	}
}

func TestCreateAccountShapeValidation(t *testing.T) {
	s := newTestServer(t)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status=%d, want 400", rec.Code)
	}

	// Missing initial_balance.
	rec = doJSON(t, s, http.MethodPost, "/accounts", map[string]string{"display_name": "X", "external_key": "x@example.com"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing balance: status=%d, want 400", rec.Code)
	}

	// Non-numeric amount is a decode error, rejected before the core.
	rec = doJSON(t, s, http.MethodPost, "/accounts", map[string]any{
		"display_name": "X", "external_key": "x@example.com", "initial_balance": "not-a-number",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad amount: status=%d, want 400", rec.Code)
	}

	// Negative balance is the core's call.
	bal := decimal.NewFromInt(-10)
	rec = doJSON(t, s, http.MethodPost, "/accounts", createAccountRequest{
		DisplayName: "X", ExternalKey: "x@example.com", InitialBalance: &bal,
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative balance: status=%d, want 400", rec.Code)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	s := newTestServer(t)
	acct := createAccount(t, s, "Alice", "alice@example.com", 750)

	rec := doJSON(t, s, http.MethodGet, "/accounts/"+acct.ID+"/balance", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	got := decode[accountResponse](t, rec)
	if got.ID != acct.ID || !got.Balance.Equal(decimal.NewFromInt(750)) {
		t.Errorf("balance response = %+v", got)
	}

	rec = doJSON(t, s, http.MethodGet, "/accounts/no-such-id/balance", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown account: status=%d, want 404", rec.Code)
	}
}

func TestTransferEndpoint(t *testing.T) {
	s := newTestServer(t)
	a := createAccount(t, s, "A", "a@example.com", 1000)
	b := createAccount(t, s, "B", "b@example.com", 500)

	amount := decimal.NewFromInt(200)
	rec := doJSON(t, s, http.MethodPost, "/transfer", transferRequest{
		FromID: a.ID, ToID: b.ID, Amount: &amount,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s, want 201", rec.Code, rec.Body.String())
	}
	res := decode[transferResponse](t, rec)
	if res.TransactionID == "" {
		t.Error("missing transaction_id")
	}
	if !res.FromBalance.Equal(decimal.NewFromInt(800)) || !res.ToBalance.Equal(decimal.NewFromInt(700)) {
		t.Errorf("balances = %s/%s, want 800/700", res.FromBalance, res.ToBalance)
	}
}

func TestTransferEndpointErrors(t *testing.T) {
	s := newTestServer(t)
	a := createAccount(t, s, "A", "a@example.com", 100)
	b := createAccount(t, s, "B", "b@example.com", 0)

	cases := []struct {
		name string
		req  transferRequest
		want int
	}{
		{"insufficient funds", reqAmount(a.ID, b.ID, 900), http.StatusUnprocessableEntity},
		{"self transfer", reqAmount(a.ID, a.ID, 10), http.StatusBadRequest},
		{"unknown account", reqAmount("ghost", b.ID, 10), http.StatusNotFound},
		{"zero amount", reqAmount(a.ID, b.ID, 0), http.StatusBadRequest},
		{"missing endpoints", transferRequest{Amount: amountPtr(10)}, http.StatusBadRequest},
		{"missing amount", transferRequest{FromID: a.ID, ToID: b.ID}, http.StatusBadRequest},
	}
	for _, c := range cases {
		rec := doJSON(t, s, http.MethodPost, "/transfer", c.req, nil)
		if rec.Code != c.want {
			t.Errorf("%s: status=%d, want %d", c.name, rec.Code, c.want)
		}
	}

	// None of the failures moved value.
	rec := doJSON(t, s, http.MethodGet, "/accounts/"+a.ID+"/balance", nil, nil)
	if got := decode[accountResponse](t, rec); !got.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("A balance = %s after failed transfers, want 100", got.Balance)
	}
}

func reqAmount(from, to string, n int64) transferRequest {
	return transferRequest{FromID: from, ToID: to, Amount: amountPtr(n)}
}

func amountPtr(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

func TestTransferByExternalKey(t *testing.T) {
	s := newTestServer(t)
	createAccount(t, s, "A", "a@example.com", 300)
	createAccount(t, s, "B", "b@example.com", 0)

	rec := doJSON(t, s, http.MethodPost, "/transfer", transferRequest{
		FromKey: "a@example.com", ToKey: "b@example.com", Amount: amountPtr(120),
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s, want 201", rec.Code, rec.Body.String())
	}
	res := decode[transferResponse](t, rec)
	if !res.FromBalance.Equal(decimal.NewFromInt(180)) || !res.ToBalance.Equal(decimal.NewFromInt(120)) {
		t.Errorf("balances = %s/%s, want 180/120", res.FromBalance, res.ToBalance)
	}

	rec = doJSON(t, s, http.MethodPost, "/transfer", transferRequest{
		FromKey: "missing@example.com", ToKey: "b@example.com", Amount: amountPtr(1),
	}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown key: status=%d, want 404", rec.Code)
	}
}

func TestTransferIdempotencyReplay(t *testing.T) {
	s := newTestServer(t)
	a := createAccount(t, s, "A", "a@example.com", 1000)
	b := createAccount(t, s, "B", "b@example.com", 0)

	headers := map[string]string{"Idempotency-Key": "req-42"}
	first := doJSON(t, s, http.MethodPost, "/transfer", reqAmount(a.ID, b.ID, 250), headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("first: status=%d, want 201", first.Code)
	}
	replay := doJSON(t, s, http.MethodPost, "/transfer", reqAmount(a.ID, b.ID, 250), headers)
	if replay.Code != http.StatusOK {
		t.Fatalf("replay: status=%d, want 200", replay.Code)
	}

	firstRes := decode[transferResponse](t, first)
	replayRes := decode[transferResponse](t, replay)
	if firstRes.TransactionID != replayRes.TransactionID {
		t.Errorf("replay returned a different transaction id")
	}
	if !replayRes.FromBalance.Equal(decimal.NewFromInt(750)) {
		t.Errorf("from balance after replay = %s, want 750", replayRes.FromBalance)
	}
}

func TestTransactionListingEndpoints(t *testing.T) {
	s := newTestServer(t)
	a := createAccount(t, s, "A", "a@example.com", 1000)
	b := createAccount(t, s, "B", "b@example.com", 0)
	c := createAccount(t, s, "C", "c@example.com", 0)

	doJSON(t, s, http.MethodPost, "/transfer", reqAmount(a.ID, b.ID, 10), nil)
	doJSON(t, s, http.MethodPost, "/transfer", reqAmount(a.ID, c.ID, 20), nil)

	rec := doJSON(t, s, http.MethodGet, "/transactions", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list transactions: status=%d", rec.Code)
	}
	all := decode[[]map[string]any](t, rec)
	if len(all) != 2 {
		t.Fatalf("listed %d transactions, want 2", len(all))
	}

	id, _ := all[0]["id"].(string)
	rec = doJSON(t, s, http.MethodGet, "/transactions/"+id, nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get transaction: status=%d, want 200", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/transactions/no-such-tx", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown transaction: status=%d, want 404", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/accounts/"+b.ID+"/transactions", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("account transactions: status=%d", rec.Code)
	}
	if got := decode[[]map[string]any](t, rec); len(got) != 1 {
		t.Errorf("B has %d transactions, want 1", len(got))
	}

	rec = doJSON(t, s, http.MethodGet, "/accounts", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts: status=%d", rec.Code)
	}
	if got := decode[[]map[string]any](t, rec); len(got) != 3 {
		t.Errorf("listed %d accounts, want 3", len(got))
	}
}
