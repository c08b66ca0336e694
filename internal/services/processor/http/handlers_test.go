package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"poshub/internal/core/authz"
	"poshub/internal/core/token"
	"poshub/internal/modkit/httpkit"
	phttp "poshub/internal/platform/net/http"
	"poshub/internal/services/processor/domain"
	"poshub/internal/services/processor/fulfill"
	prochttp "poshub/internal/services/processor/http"
	"poshub/internal/services/processor/repo"
	"poshub/internal/services/processor/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "batch-endpoint-secret-0123456789abcdef"

func setup(t *testing.T) (http.Handler, string) {
	t.Helper()
	cfg := token.Config{Algorithm: "HS256", Issuer: "https://auth.test", Audience: "poshub-api"}
	v, err := token.NewValidator(cfg, token.StaticFromSecret(secret))
	require.NoError(t, err)

	p := service.New(repo.NewMemory(time.Minute, nil), fulfill.Log{}, service.Options{})
	mux := chi.NewRouter()
	httpkit.MountAPIV1(phttp.AdaptChi(mux), httpkit.CommonStack(httpkit.StackOptions{}), func(api httpkit.Router) {
		api.Route("/internal", func(r httpkit.Router) { prochttp.Register(r, authz.NewGate(v), p) })
	})

	raw, err := token.Issuer{
		Algorithm: "HS256", Key: []byte(secret), Issuer: cfg.Issuer, Audience: cfg.Audience,
	}.Mint("sqs-bridge", []string{authz.ScopeQueueConsume}, time.Now())
	require.NoError(t, err)
	return mux, raw
}

func push(h http.Handler, bearer, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/batches", strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBatchEndpointReportsItemFailures(t *testing.T) {
	h, bearer := setup(t)
	body := `{"Records":[
		{"messageId":"m1","body":"{\"order\":{\"orderId\":\"A\",\"totalAmount\":5,\"currency\":\"EUR\",\"createdAt\":\"2026-03-01T12:00:00Z\"},\"source\":\"pos\",\"date\":\"2026-03-01T12:00:00Z\"}"},
		{"messageId":"m2","body":"{\"order\":{\"orderId\":\"B\",\"totalAmount\":-1,\"currency\":\"EUR\",\"createdAt\":\"2026-03-01T12:00:00Z\"}}"},
		{"messageId":"m3","body":"garbage","receiptHandle":"rh-3","attributes":{"ApproximateReceiveCount":"1"}}
	]}`
	rec := push(h, bearer, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []domain.ItemFailure{{ItemIdentifier: "m2"}, {ItemIdentifier: "m3"}}, resp.BatchItemFailures)
}

func TestBatchEndpointEmptyFailureList(t *testing.T) {
	h, bearer := setup(t)
	rec := push(h, bearer, `{"Records":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"batchItemFailures":[]}`, rec.Body.String())
}

func TestBatchEndpointRejectsBadRequest(t *testing.T) {
	h, bearer := setup(t)
	assert.Equal(t, http.StatusBadRequest, push(h, bearer, `{"Records":[{"body":"{}"}]}`).Code)
	assert.Equal(t, http.StatusBadRequest, push(h, bearer, `not json`).Code)
}

func TestBatchEndpointRequiresScope(t *testing.T) {
	h, _ := setup(t)
	assert.Equal(t, http.StatusUnauthorized, push(h, "", `{"Records":[]}`).Code)
	assert.Equal(t, http.StatusUnauthorized, push(h, "not-a-token", `{"Records":[]}`).Code)
}
