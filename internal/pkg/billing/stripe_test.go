package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fit9to5/billing-api/app/models"
)

type stripeRequest struct {
	Method         string
	Path           string
	Form           map[string]string
	IdempotencyKey string
}

type fakeStripeAPI struct {
	mu       sync.Mutex
	requests []stripeRequest
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeStripeAPI(t *testing.T) (*fakeStripeAPI, *StripeProcessor) {
	t.Helper()
	api := &fakeStripeAPI{handlers: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)

	proc, err := NewStripeProcessor(StripeConfig{
		SecretKey:  "sk_test_123",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return api, proc
}

func (a *fakeStripeAPI) handle(method, path string, h func(w http.ResponseWriter, r *http.Request)) {
	a.handlers[method+" "+path] = h
}

func (a *fakeStripeAPI) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	form := map[string]string{}
	for k, v := range r.Form {
		if len(v) > 0 {
			form[k] = v[0]
		}
	}
	a.mu.Lock()
	a.requests = append(a.requests, stripeRequest{
		Method:         r.Method,
		Path:           r.URL.Path,
		Form:           form,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	h, ok := a.handlers[r.Method+" "+r.URL.Path]
	a.mu.Unlock()

	if !ok {
		writeStripeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "message": "no such route"},
		})
		return
	}
	h(w, r)
}

func (a *fakeStripeAPI) last() stripeRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[len(a.requests)-1]
}

func writeStripeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func stripeList(url string, data ...map[string]any) map[string]any {
	if data == nil {
		data = []map[string]any{}
	}
	return map[string]any{"object": "list", "url": url, "has_more": false, "data": data}
}

func TestStripeProcessor_RequiresSecretKey(t *testing.T) {
	_, err := NewStripeProcessor(StripeConfig{SecretKey: "  "})
	assert.Error(t, err)
}

func TestStripeProcessor_FindCustomerByEmail(t *testing.T) {
	api, proc := newFakeStripeAPI(t)

	found := true
	api.handle(http.MethodGet, "/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		if !found {
			writeStripeJSON(w, http.StatusOK, stripeList("/v1/customers"))
			return
		}
		writeStripeJSON(w, http.StatusOK, stripeList("/v1/customers", map[string]any{
			"id": "cus_found", "object": "customer", "email": r.URL.Query().Get("email"),
		}))
	})

	id, ok, err := proc.FindCustomerByEmail(context.Background(), "coach@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cus_found", id)
	assert.Equal(t, "coach@example.com", api.last().Form["email"])
	assert.Equal(t, "1", api.last().Form["limit"])

	found = false
	id, ok, err = proc.FindCustomerByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestStripeProcessor_CreateCustomer(t *testing.T) {
	api, proc := newFakeStripeAPI(t)
	api.handle(http.MethodPost, "/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		writeStripeJSON(w, http.StatusOK, map[string]any{"id": "cus_created", "object": "customer"})
	})

	id, err := proc.CreateCustomer(context.Background(), "coach@example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_created", id)

	req := api.last()
	assert.Equal(t, "coach@example.com", req.Form["email"])
	assert.Equal(t, "user-1", req.Form["metadata[subject]"])
	assert.True(t, strings.HasPrefix(req.IdempotencyKey, "customer-"), req.IdempotencyKey)
}

func TestStripeProcessor_CreateCustomerRetryUsesFreshKey(t *testing.T) {
	api, proc := newFakeStripeAPI(t)
	calls := 0
	api.handle(http.MethodPost, "/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeStripeJSON(w, http.StatusInternalServerError, map[string]any{
				"error": map[string]any{"type": "api_error", "message": "boom"},
			})
			return
		}
		writeStripeJSON(w, http.StatusOK, map[string]any{"id": "cus_retry", "object": "customer"})
	})

	_, err := proc.CreateCustomer(context.Background(), "coach@example.com", "user-1")
	require.Error(t, err)
	first := api.last().IdempotencyKey

	id, err := proc.CreateCustomer(context.Background(), "coach@example.com", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_retry", id)
	assert.NotEqual(t, first, api.last().IdempotencyKey, "a failed create must not pin later attempts")
}

func TestStripeProcessor_CreateCheckoutSession(t *testing.T) {
	api, proc := newFakeStripeAPI(t)
	api.handle(http.MethodPost, "/v1/checkout/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeStripeJSON(w, http.StatusOK, map[string]any{"id": "cs_test_abc", "object": "checkout.session"})
	})

	id, err := proc.CreateCheckoutSession(context.Background(), CheckoutSessionInput{
		CustomerID: "cus_1",
		PriceID:    "price_monthly",
		Subject:    "user-1",
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_abc", id)

	form := api.last().Form
	assert.Equal(t, "subscription", form["mode"])
	assert.Equal(t, "cus_1", form["customer"])
	assert.Equal(t, "price_monthly", form["line_items[0][price]"])
	assert.Equal(t, "1", form["line_items[0][quantity]"])
	assert.Equal(t, "user-1", form["client_reference_id"])
	assert.Equal(t, "https://app.example.com/success", form["success_url"])
	assert.Equal(t, "https://app.example.com/", form["cancel_url"])
}

func TestStripeProcessor_FindActiveSubscription(t *testing.T) {
	api, proc := newFakeStripeAPI(t)

	var data []map[string]any
	api.handle(http.MethodGet, "/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeStripeJSON(w, http.StatusOK, stripeList("/v1/subscriptions", data...))
	})

	sub, err := proc.FindActiveSubscription(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Equal(t, "active", api.last().Form["status"])
	assert.Equal(t, "cus_1", api.last().Form["customer"])

	data = []map[string]any{{
		"id":                   "sub_1",
		"object":               "subscription",
		"customer":             "cus_1",
		"status":               "active",
		"cancel_at_period_end": true,
	}}
	sub, err = proc.FindActiveSubscription(context.Background(), "cus_1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, ProcessorSubscription{ID: "sub_1", CustomerID: "cus_1", Status: "active", CancelAtPeriodEnd: true}, *sub)
}

func TestStripeProcessor_SetCancelAtPeriodEnd(t *testing.T) {
	api, proc := newFakeStripeAPI(t)
	api.handle(http.MethodPost, "/v1/subscriptions/sub_1", func(w http.ResponseWriter, r *http.Request) {
		writeStripeJSON(w, http.StatusOK, map[string]any{
			"id":                   "sub_1",
			"object":               "subscription",
			"customer":             "cus_1",
			"status":               "active",
			"cancel_at_period_end": r.PostForm.Get("cancel_at_period_end") == "true",
		})
	})

	sub, err := proc.SetCancelAtPeriodEnd(context.Background(), "sub_1", true)
	require.NoError(t, err)
	assert.True(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, models.SubscriptionStatusPendingCancellation, sub.DerivedStatus())

	sub, err = proc.SetCancelAtPeriodEnd(context.Background(), "sub_1", false)
	require.NoError(t, err)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.Equal(t, "false", api.last().Form["cancel_at_period_end"])
}

func TestStripeProcessor_APIErrorIsReturned(t *testing.T) {
	api, proc := newFakeStripeAPI(t)
	api.handle(http.MethodPost, "/v1/subscriptions/sub_1", func(w http.ResponseWriter, r *http.Request) {
		writeStripeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"type": "api_error", "message": "boom"},
		})
	})

	_, err := proc.SetCancelAtPeriodEnd(context.Background(), "sub_1", true)
	require.Error(t, err)
	assert.Len(t, api.requests, 1, "network retries are disabled")
}

func TestCustomerIdempotencyKey(t *testing.T) {
	attempt := uuid.New()
	a := customerIdempotencyKey("user-1", "a@example.com", attempt)
	assert.Equal(t, a, customerIdempotencyKey("user-1", "a@example.com", attempt))
	assert.NotEqual(t, a, customerIdempotencyKey("user-1", "a@example.com", uuid.New()))
	assert.NotEqual(t, a, customerIdempotencyKey("user-1", "b@example.com", attempt))
	assert.NotEqual(t, a, customerIdempotencyKey("user-2", "a@example.com", attempt))
}
