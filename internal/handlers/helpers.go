package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/boutique-admin/api/internal/domain"
	"github.com/boutique-admin/api/internal/platform/httpx"
	"github.com/boutique-admin/api/internal/platform/observability"
	"github.com/boutique-admin/api/internal/platform/pagination"
	"github.com/boutique-admin/api/internal/services"
)

const (
	maxRequestBodySize = 256 * 1024
	maxOrderBodySize   = 64 * 1024
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeBody reads a JSON object into dst, rejecting unknown fields.
func decodeBody(r *http.Request, limit int64, dst any) error {
	data, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON payload: unexpected trailing data")
	}
	return nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type listResponse[T any] struct {
	Items         []T    `json:"items"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// pageParams validates pageSize and pageToken before they reach a service.
func pageParams(r *http.Request, defaultSize int) (services.Pagination, error) {
	page, err := pagination.FromQuery(r.URL.Query(), pagination.Limits{Default: defaultSize})
	if err != nil {
		return services.Pagination{}, err
	}
	return services.Pagination{PageSize: page.Size, PageToken: page.Token}, nil
}

func writePaginationError(ctx context.Context, w http.ResponseWriter, err error) {
	field := pagination.PageSizeParam
	var paramErr *pagination.ParamError
	if errors.As(err, &paramErr) {
		field = paramErr.Param
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest).
		WithFieldErrors([]httpx.FieldError{{Field: field, Rule: "format", Message: err.Error()}}))
}

// writeValidationError renders a service invalid-input error with its field detail.
func writeValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := httpx.NewError("invalid_request", "request validation failed", http.StatusBadRequest)
	violations := services.FieldViolations(err)
	if len(violations) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	fields := make([]httpx.FieldError, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, httpx.FieldError{Field: v.Field, Rule: v.Rule, Message: v.Message})
	}
	httpx.WriteError(ctx, w, apiErr.WithFieldErrors(fields))
}

// writeInternalError logs the full cause and returns a generic message.
func writeInternalError(ctx context.Context, w http.ResponseWriter, code, message string, err error) {
	observability.FromContext(ctx).Error("request failed", zap.String("code", code), zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError(code, message, http.StatusInternalServerError))
}

func serviceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToUpper(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

// parseTimeParam accepts RFC3339 timestamps and plain dates.
func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.DateOnly, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("must be an RFC3339 timestamp or YYYY-MM-DD date")
}

func parseBoolParam(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("must be true or false")
	}
	return &value, nil
}

func optionalQuery(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// money renders minor units as a JSON number with the currency's precision.
func money(cur domain.Currency, minor int64) json.Number {
	return json.Number(cur.Format(minor))
}

func optionalMoney(cur domain.Currency, minor *int64) *json.Number {
	if minor == nil {
		return nil
	}
	value := money(cur, *minor)
	return &value
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
