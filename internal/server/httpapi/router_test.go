package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/identity/internal/logging"
	"github.com/dmitrijs2005/identity/internal/server/config"
	"github.com/dmitrijs2005/identity/internal/server/repositories/memory"
	"github.com/dmitrijs2005/identity/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/identity/internal/server/services"
)

const (
	email    = "a@test.com"
	password = "Xx1!aaaa"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StorageDriver = config.StorageMemory
	cfg.LoginRateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}

	store := memory.NewStore()
	svc, _, err := services.Build(cfg, store, repomanager.NewMemoryRepositoryManager(store), logging.NewNopLogger())
	require.NoError(t, err)

	return NewRouter(svc, logging.NewNopLogger(), Options{
		LoginRateLimit: cfg.LoginRateLimit,
		LoginRateBurst: cfg.LoginRateBurst,
	})
}

// performRequest sends body as JSON with an optional Bearer token.
func performRequest(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func signUp(t *testing.T, r http.Handler) {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/signUp", gin.H{
		"email": email, "password": password, "passwordConfirmation": password,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func login(t *testing.T, r http.Handler) tokenResponse {
	t.Helper()
	rec := performRequest(r, http.MethodPost, "/login", gin.H{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[tokenResponse](t, rec)
}

func TestSignUp(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := performRequest(r, http.MethodPost, "/signUp", gin.H{
		"email": email, "password": password, "passwordConfirmation": password,
	}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	tests := []struct {
		name string
		body any
	}{
		{"duplicate", gin.H{"email": email, "password": password, "passwordConfirmation": password}},
		{"mismatch", gin.H{"email": "b@test.com", "password": password, "passwordConfirmation": "Xx1!aaab"}},
		{"weak", gin.H{"email": "b@test.com", "password": "abc", "passwordConfirmation": "abc"}},
		{"missing fields", gin.H{"email": "b@test.com"}},
		{"bad email", gin.H{"email": "nope", "password": password, "passwordConfirmation": password}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := performRequest(r, http.MethodPost, "/signUp", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[errorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Errors)
		})
	}
}

func TestSignUp_MalformedBody(t *testing.T) {
	r := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/signUp", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	r := newTestRouter(t, nil)
	signUp(t, r)

	resp := login(t, r)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	for _, body := range []gin.H{
		{"email": email, "password": "Xx1!aaab"},
		{"email": "ghost@test.com", "password": password},
	} {
		rec := performRequest(r, http.MethodPost, "/login", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"success":false,"errors":["invalid credentials"]}`, rec.Body.String())
	}
}

func TestRefreshAndLogout(t *testing.T) {
	r := newTestRouter(t, nil)
	signUp(t, r)
	first := login(t, r)

	rec := performRequest(r, http.MethodPost, "/refreshToken", gin.H{"refreshToken": first.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[tokenResponse](t, rec)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	rec = performRequest(r, http.MethodPost, "/refreshToken", gin.H{"refreshToken": first.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "replayed token")

	third := login(t, r)
	rec = performRequest(r, http.MethodPost, "/logout", gin.H{"refreshToken": third.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(r, http.MethodPost, "/refreshToken", gin.H{"refreshToken": third.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAddUserInClaim_AndGetUserClaims(t *testing.T) {
	r := newTestRouter(t, nil)
	signUp(t, r)
	tokens := login(t, r)

	claims := []gin.H{{"claimType": "Receipt", "claimValue": "Read"}}

	rec := performRequest(r, http.MethodPost, "/addUserInClaim", gin.H{"email": email, "claims": claims}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performRequest(r, http.MethodPost, "/addUserInClaim", gin.H{"email": email, "claims": claims}, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = performRequest(r, http.MethodPost, "/addUserInClaim", gin.H{"email": email, "claims": claims}, tokens.AccessToken)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = performRequest(r, http.MethodPost, "/addUserInClaim", gin.H{"email": "ghost@test.com", "claims": claims}, tokens.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = performRequest(r, http.MethodPost, "/addUserInClaim", gin.H{
		"email": email, "claims": []gin.H{{"claimType": "Receipt", "claimValue": "Teleport"}},
	}, tokens.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performRequest(r, http.MethodGet, "/getUserClaims?email=A@test.com", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"email":"a@test.com","claims":[{"claimType":"Receipt","claimValue":"Read"}]}`, rec.Body.String())

	rec = performRequest(r, http.MethodGet, "/getUserClaims?email=ghost@test.com", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = performRequest(r, http.MethodGet, "/getUserClaims", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserClaims_EmptySet(t *testing.T) {
	r := newTestRouter(t, nil)
	signUp(t, r)

	rec := performRequest(r, http.MethodGet, "/getUserClaims?email="+email, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"email":"a@test.com","claims":[]}`, rec.Body.String())
}

func TestAddUserInClaim_ClaimPolicy(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) {
		c.ClaimPolicy = config.ClaimPolicyClaim
		c.AdminEmails = []string{"root@test.com"}
	})
	signUp(t, r)
	tokens := login(t, r)

	rec := performRequest(r, http.MethodPost, "/addUserInClaim", gin.H{
		"email": email, "claims": []gin.H{{"claimType": "Receipt", "claimValue": "Read"}},
	}, tokens.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	r := newTestRouter(t, func(c *config.Config) {
		c.LoginRateLimit = 0.001
		c.LoginRateBurst = 2
	})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"email":"x@test.com","password":"p"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send("192.0.2.1"))
	assert.Equal(t, http.StatusUnauthorized, send("192.0.2.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.0.2.1"))
	assert.Equal(t, http.StatusUnauthorized, send("192.0.2.2"), "buckets are per client IP")
}

func TestIPLimiter_SweepsIdleBuckets(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(10 * time.Minute)
	assert.True(t, l.allow("b"))
	assert.Len(t, l.buckets, 1)
}

func TestHealthzAndMetrics(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := performRequest(r, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = performRequest(r, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "identity_http_requests_total")
}

func TestStatusFor_HidesInternalErrors(t *testing.T) {
	code, msg := statusFor(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", msg)
}
