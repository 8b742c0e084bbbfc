package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/boutique-admin/api/internal/platform/requestctx"
)

func TestActorMiddlewareStoresHeader(t *testing.T) {
	var seen string
	handler := ActorMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestctx.Actor(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DefaultActorHeader, "  ops-1 ")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "ops-1" {
		t.Fatalf("expected actor ops-1, got %q", seen)
	}
}

func TestRequestLoggerMiddlewareLogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	handler := InjectLoggerMiddleware(logger)(
		ActorMiddleware(DefaultActorHeader)(
			RequestLoggerMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
			})),
		),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
	req.Header.Set(DefaultActorHeader, "ops-2")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	completed := logs.FilterMessage("request completed").All()
	if len(completed) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(completed))
	}
	entry := completed[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for 409, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["actor_id"] != "ops-2" {
		t.Fatalf("expected actor_id ops-2, got %v", fields["actor_id"])
	}
	if fields["status"] != int64(http.StatusConflict) {
		t.Fatalf("expected status 409, got %v", fields["status"])
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	handler := RecoveryMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal_server_error" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)

	log := EventLogger(zap.New(baseCore))
	log(context.Background(), "order.created", map[string]any{"order": "ord_1"})
	log(requestctx.WithLogger(context.Background(), zap.New(reqCore)), "order.event.publish.failed", map[string]any{"error": "x"})

	if baseLogs.Len() != 1 || baseLogs.All()[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected one info entry on base logger, got %d", baseLogs.Len())
	}
	if reqLogs.Len() != 1 || reqLogs.All()[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry on request logger, got %d", reqLogs.Len())
	}
}

func TestParseCloudTraceContext(t *testing.T) {
	spanCtx, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatal("expected header to parse")
	}
	if spanCtx.TraceID().String() != "105445aa7843bc8bf206b12000100000" || !spanCtx.IsSampled() {
		t.Fatalf("unexpected span context %+v", spanCtx)
	}
	if spanCtx.SpanID().String() != "0000000000000001" {
		t.Fatalf("expected decimal span id 1, got %s", spanCtx.SpanID())
	}
	if !spanCtx.IsRemote() {
		t.Fatal("expected remote span context")
	}
	for _, header := range []string{"garbage", "105445aa7843bc8bf206b12000100000/0;o=1", "105445aa/1", "105445aa7843bc8bf206b12000100000/abc"} {
		if _, ok := parseCloudTraceContext(header); ok {
			t.Fatalf("expected %q to be rejected", header)
		}
	}
}

func TestTraceMiddlewareContinuesCallerTrace(t *testing.T) {
	cases := map[string]struct {
		header, value string
		traceID       string
		cloudHeader   string
	}{
		"traceparent": {
			header:      "traceparent",
			value:       "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
			traceID:     "4bf92f3577b34da6a3ce929d0e0e4736",
			cloudHeader: "4bf92f3577b34da6a3ce929d0e0e4736/67667974448284343;o=1",
		},
		"cloud trace": {
			header:      cloudTraceHeader,
			value:       "105445aa7843bc8bf206b12000100000/42;o=0",
			traceID:     "105445aa7843bc8bf206b12000100000",
			cloudHeader: "105445aa7843bc8bf206b12000100000/42;o=0",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var seen requestctx.TraceInfo
			handler := TraceMiddleware("boutique-prod")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = requestctx.Trace(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
			req.Header.Set(tc.header, tc.value)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if seen.TraceID != tc.traceID || seen.ProjectID != "boutique-prod" {
				t.Fatalf("unexpected trace info %+v", seen)
			}
			if got := rr.Header().Get(cloudTraceHeader); got != tc.cloudHeader {
				t.Fatalf("expected %s header %q, got %q", cloudTraceHeader, tc.cloudHeader, got)
			}
		})
	}

	var seen requestctx.TraceInfo
	handler := TraceMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.Trace(r.Context())
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if seen.TraceID != "" || rr.Header().Get(cloudTraceHeader) != "" {
		t.Fatalf("expected no trace without an incoming context, got %+v", seen)
	}
}
