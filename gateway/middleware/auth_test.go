package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "gateway-test-secret"

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return signed
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/experiences/xp1abc", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newAuthedHandler(cfg AuthConfig) http.Handler {
	auth := NewAuthenticator(cfg, nil)
	return auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthenticatorAcceptsValidToken(t *testing.T) {
	handler := newAuthedHandler(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "expnet",
	})
	token := signToken(t, testSecret, jwt.RegisteredClaims{
		Issuer:    "expnet",
		Subject:   "reader",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(token))
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.Code)
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	handler := newAuthedHandler(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "expnet",
	})

	cases := map[string]string{
		"missing token": "",
		"wrong secret": signToken(t, "other-secret", jwt.RegisteredClaims{
			Issuer:    "expnet",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}),
		"wrong issuer": signToken(t, testSecret, jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}),
		"expired": signToken(t, testSecret, jwt.RegisteredClaims{
			Issuer:    "expnet",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}),
	}
	for name, token := range cases {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, authedRequest(token))
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status = %d, want 401", name, res.Code)
		}
	}
}

func TestAuthenticatorDisabledPassesThrough(t *testing.T) {
	handler := newAuthedHandler(AuthConfig{Enabled: false})
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, authedRequest(""))
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with auth disabled", res.Code)
	}
}
