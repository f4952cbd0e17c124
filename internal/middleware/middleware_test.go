package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error.Code
}

func TestServiceAuth_Middleware(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"role": ServiceRole, "exp": exp}), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"role": ServiceRole, "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"user token", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"role": "authenticated", "user_id": uuid.NewString(), "exp": exp}), http.StatusForbidden, "FORBIDDEN"},
		{"service role", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"role": ServiceRole, "exp": exp}), http.StatusOK, ""},
	}

	handler := NewServiceAuth(testSecret).Middleware(okHandler)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/functions/v1/send-study-reminders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if tc.code != "" && errorCode(t, rr) != tc.code {
				t.Fatalf("expected error code %s, got %s", tc.code, errorCode(t, rr))
			}
		})
	}
}

func TestServiceAuth_DisabledWithoutSecret(t *testing.T) {
	handler := NewServiceAuth("").Middleware(okHandler)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected request to pass with auth disabled, got %d", rr.Code)
	}
}

func TestServiceAuth_GenerateServiceToken(t *testing.T) {
	auth := NewServiceAuth(testSecret)
	token, err := auth.GenerateServiceToken(time.Minute)
	if err != nil {
		t.Fatalf("GenerateServiceToken returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	auth.Middleware(okHandler).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected generated token to be accepted, got %d", rr.Code)
	}

	if _, err := NewServiceAuth("").GenerateServiceToken(time.Minute); err == nil {
		t.Fatalf("expected error when auth is disabled")
	}
}

func TestUserIDFromToken(t *testing.T) {
	userID := uuid.New()
	exp := time.Now().Add(time.Hour).Unix()

	got, err := UserIDFromToken([]byte(testSecret), signToken(t, testSecret, jwt.MapClaims{"user_id": userID.String(), "exp": exp}))
	if err != nil || got != userID {
		t.Fatalf("expected %s from user_id claim, got %s (%v)", userID, got, err)
	}

	got, err = UserIDFromToken([]byte(testSecret), signToken(t, testSecret, jwt.MapClaims{"sub": userID.String(), "exp": exp}))
	if err != nil || got != userID {
		t.Fatalf("expected %s from sub claim, got %s (%v)", userID, got, err)
	}

	if _, err := UserIDFromToken([]byte(testSecret), signToken(t, testSecret, jwt.MapClaims{"role": ServiceRole, "exp": exp})); err == nil {
		t.Fatalf("expected error for token without a user id")
	}
}

func TestCORS(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/functions/v1/send-study-reminders", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty preflight body, got %q", rr.Body.String())
	}
	if called {
		t.Fatalf("expected preflight not to reach the handler")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "authorization, x-client-info, apikey, content-type" {
		t.Fatalf("unexpected allow-headers: %q", got)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/functions/v1/send-study-reminders", nil))
	if !called || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected POST to reach the handler with CORS headers")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	handler := rl.Middleware(okHandler)

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	// Different source ports of the same client share a budget.
	if send("10.0.0.1:1111") != http.StatusOK || send("10.0.0.1:2222") != http.StatusOK {
		t.Fatalf("expected first two requests to pass")
	}
	if code := send("10.0.0.1:3333"); code != http.StatusTooManyRequests {
		t.Fatalf("expected third request to be limited, got %d", code)
	}
	if code := send("10.0.0.2:1111"); code != http.StatusOK {
		t.Fatalf("expected other clients to be unaffected, got %d", code)
	}

	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_ZeroLimitDisables(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Stop()
	handler := rl.Middleware(okHandler)

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected unlimited requests, got %d on request %d", rr.Code, i+1)
		}
	}
}
