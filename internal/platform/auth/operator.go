package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/boutique-admin/api/internal/platform/httpx"
	"github.com/boutique-admin/api/internal/platform/requestctx"
)

const (
	meterName = "github.com/boutique-admin/api/internal/platform/auth"

	// IAPAssertionHeader carries the signed identity when the API sits behind Identity-Aware Proxy.
	IAPAssertionHeader = "X-Goog-Iap-Jwt-Assertion"

	defaultActorClaim = "email"
)

// Operator is the verified back-office user behind a request.
type Operator struct {
	Subject string
	Email   string
	Issuer  string
	Claims  map[string]any
}

type operatorContextKey struct{}

// WithOperator attaches the verified operator to ctx.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	if op == nil {
		return ctx
	}
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// OperatorFromContext returns the operator stored by Authenticator.Require.
func OperatorFromContext(ctx context.Context) (*Operator, bool) {
	op, ok := ctx.Value(operatorContextKey{}).(*Operator)
	if !ok || op == nil {
		return nil, false
	}
	return op, true
}

// Config describes which tokens the authenticator accepts.
type Config struct {
	Audience string
	Issuers  []string
	// ActorClaim names the claim recorded as the request actor. Defaults to
	// "email", falling back to "sub" when the claim is empty.
	ActorClaim string
}

// Authenticator validates RS256 operator tokens against a JWKS cache.
type Authenticator struct {
	keys       *JWKSCache
	audience   string
	issuers    map[string]struct{}
	actorClaim string
	now        func() time.Time

	verifications metric.Int64Counter
}

// Option customises the authenticator.
type Option func(*Authenticator)

// WithClock injects the time source used for exp/nbf checks.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(keys *JWKSCache, cfg Config, opts ...Option) (*Authenticator, error) {
	if keys == nil {
		return nil, errors.New("auth: jwks cache is required")
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errors.New("auth: audience is required")
	}
	issuers := make(map[string]struct{}, len(cfg.Issuers))
	for _, issuer := range cfg.Issuers {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			issuers[issuer] = struct{}{}
		}
	}
	claim := strings.TrimSpace(cfg.ActorClaim)
	if claim == "" {
		claim = defaultActorClaim
	}

	a := &Authenticator{
		keys:       keys,
		audience:   audience,
		issuers:    issuers,
		actorClaim: claim,
		now:        time.Now,
	}
	if c, err := otel.GetMeterProvider().Meter(meterName).Int64Counter(
		"auth.operator.verifications",
		metric.WithDescription("Operator token verification outcomes"),
	); err == nil {
		a.verifications = c
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Require rejects requests without a valid operator token. Accepted requests
// carry the operator in the context and its actor claim as the request actor.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		raw := extractToken(r)
		if raw == "" {
			a.reject(ctx, w, "token_missing", http.StatusUnauthorized, "authentication required", nil)
			return
		}

		claims := jwt.MapClaims{}
		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithoutClaimsValidation())
		if _, err := parser.ParseWithClaims(raw, claims, a.keys.Keyfunc(ctx)); err != nil {
			if errors.Is(err, ErrJWKSFetchFailed) {
				a.reject(ctx, w, "jwks_unavailable", http.StatusServiceUnavailable, "token verification unavailable", err)
				return
			}
			a.reject(ctx, w, "token_invalid", http.StatusUnauthorized, "invalid token", err)
			return
		}

		now := a.now().Unix()
		if !claims.VerifyExpiresAt(now, true) || !claims.VerifyNotBefore(now, false) || !claims.VerifyIssuedAt(now, false) {
			a.reject(ctx, w, "token_expired", http.StatusUnauthorized, "invalid token", nil)
			return
		}

		issuer, _ := claims["iss"].(string)
		if len(a.issuers) > 0 {
			if _, ok := a.issuers[issuer]; !ok {
				a.reject(ctx, w, "issuer_mismatch", http.StatusUnauthorized, "invalid token", nil)
				return
			}
		}
		if !claims.VerifyAudience(a.audience, true) {
			a.reject(ctx, w, "audience_mismatch", http.StatusUnauthorized, "invalid token", nil)
			return
		}

		op := &Operator{Issuer: issuer, Claims: make(map[string]any, len(claims))}
		op.Subject, _ = claims["sub"].(string)
		op.Email, _ = claims["email"].(string)
		for key, value := range claims {
			op.Claims[key] = value
		}

		actor, _ := claims[a.actorClaim].(string)
		if strings.TrimSpace(actor) == "" {
			actor = op.Subject
		}
		if strings.TrimSpace(actor) == "" {
			a.reject(ctx, w, "actor_missing", http.StatusUnauthorized, "invalid token", nil)
			return
		}

		a.record(ctx, "ok")
		ctx = requestctx.WithActor(WithOperator(ctx, op), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) reject(ctx context.Context, w http.ResponseWriter, reason string, status int, message string, err error) {
	a.record(ctx, reason)
	fields := []zap.Field{zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	requestctx.Logger(ctx).Warn("operator token rejected", fields...)

	code := "unauthenticated"
	if status == http.StatusServiceUnavailable {
		code = "auth_unavailable"
	}
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

func (a *Authenticator) record(ctx context.Context, result string) {
	if a.verifications == nil {
		return
	}
	a.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func extractToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(IAPAssertionHeader))
}
