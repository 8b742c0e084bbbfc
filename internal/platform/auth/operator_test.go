package auth

import (
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"

	"github.com/boutique-admin/api/internal/platform/requestctx"
)

const (
	testAudience = "boutique-admin"
	testIssuer   = "https://accounts.google.com"
)

var testNow = time.Unix(1_700_000_000, 0)

type operatorFixture struct {
	auth *Authenticator
	key  *rsa.PrivateKey
	keys *keyServer
}

func setupOperatorTest(t *testing.T, cfg Config) operatorFixture {
	t.Helper()
	key, jwk := newSigningKey(t, "ops-1")
	ks := newKeyServer(t, jwk)
	cache := NewJWKSCache(ks.server.URL, WithoutJWKSBackgroundRefresh())
	if cfg.Audience == "" {
		cfg.Audience = testAudience
	}
	authn, err := NewAuthenticator(cache, cfg, WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return operatorFixture{auth: authn, key: key, keys: ks}
}

func (f operatorFixture) sign(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   "operator-42",
		"email": "ana@boutique.example",
		"iss":   testIssuer,
		"aud":   []string{testAudience},
		"iat":   testNow.Unix(),
		"exp":   testNow.Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "ops-1"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func serve(a *Authenticator, req *http.Request, next http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Require(next).ServeHTTP(rec, req)
	return rec
}

func mustNotReach(t *testing.T) http.HandlerFunc {
	return func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestRequireAcceptsBearerToken(t *testing.T) {
	f := setupOperatorTest(t, Config{Issuers: []string{testIssuer}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+f.sign(t, nil))

	rec := serve(f.auth, req, func(w http.ResponseWriter, r *http.Request) {
		op, ok := OperatorFromContext(r.Context())
		if !ok {
			t.Fatalf("expected operator in context")
		}
		if op.Subject != "operator-42" || op.Issuer != testIssuer {
			t.Fatalf("unexpected operator %+v", op)
		}
		if got := requestctx.Actor(r.Context()); got != "ana@boutique.example" {
			t.Fatalf("expected email actor, got %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireAcceptsIAPAssertionAndCustomClaim(t *testing.T) {
	f := setupOperatorTest(t, Config{ActorClaim: "preferred_username"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(IAPAssertionHeader, f.sign(t, func(c jwt.MapClaims) {
		c["aud"] = testAudience
	}))

	rec := serve(f.auth, req, func(w http.ResponseWriter, r *http.Request) {
		// preferred_username is absent so the subject is used.
		if got := requestctx.Actor(r.Context()); got != "operator-42" {
			t.Fatalf("expected subject actor, got %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRequireRejectsInvalidTokens(t *testing.T) {
	f := setupOperatorTest(t, Config{Issuers: []string{testIssuer}})

	cases := []struct {
		name   string
		header string
		value  func() string
	}{
		{"missing", "", func() string { return "" }},
		{"basic scheme", "Authorization", func() string { return "Basic b3BzOnNlY3JldA==" }},
		{"garbage", "Authorization", func() string { return "Bearer not-a-jwt" }},
		{"expired", "Authorization", func() string {
			return "Bearer " + f.sign(t, func(c jwt.MapClaims) { c["exp"] = testNow.Add(-time.Minute).Unix() })
		}},
		{"no expiry", "Authorization", func() string {
			return "Bearer " + f.sign(t, func(c jwt.MapClaims) { delete(c, "exp") })
		}},
		{"wrong audience", "Authorization", func() string {
			return "Bearer " + f.sign(t, func(c jwt.MapClaims) { c["aud"] = "storefront" })
		}},
		{"wrong issuer", "Authorization", func() string {
			return "Bearer " + f.sign(t, func(c jwt.MapClaims) { c["iss"] = "https://evil.example" })
		}},
		{"no actor", "Authorization", func() string {
			return "Bearer " + f.sign(t, func(c jwt.MapClaims) {
				delete(c, "sub")
				delete(c, "email")
			})
		}},
		{"hs256", "Authorization", func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x", "aud": testAudience, "exp": testNow.Add(time.Hour).Unix()})
			token.Header["kid"] = "ops-1"
			signed, _ := token.SignedString([]byte("shared"))
			return "Bearer " + signed
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/brands", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value())
			}
			rec := serve(f.auth, req, mustNotReach(t))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != "unauthenticated" {
				t.Fatalf("expected unauthenticated, got %q", code)
			}
		})
	}
}

func TestRequireJWKSUnavailable(t *testing.T) {
	f := setupOperatorTest(t, Config{})
	token := f.sign(t, nil)

	f.keys.mu.Lock()
	f.keys.status = http.StatusBadGateway
	f.keys.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := serve(f.auth, req, mustNotReach(t))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "auth_unavailable" {
		t.Fatalf("expected auth_unavailable, got %q", code)
	}
}

func TestNewAuthenticatorRequiresAudience(t *testing.T) {
	if _, err := NewAuthenticator(NewJWKSCache("http://localhost"), Config{}); err == nil {
		t.Fatalf("expected error without audience")
	}
	if _, err := NewAuthenticator(nil, Config{Audience: testAudience}); err == nil {
		t.Fatalf("expected error without cache")
	}
}
