package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Query parameters read by list endpoints.
const (
	PageSizeParam  = "pageSize"
	PageTokenParam = "pageToken"
)

const (
	// DefaultPageSize applies when neither the request nor the endpoint names a size.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps every list query.
	DefaultMaxPageSize = 100
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid pageSize")
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Limits bounds the page size of one list endpoint. Zero fields fall back to
// DefaultPageSize and DefaultMaxPageSize.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) normalized() Limits {
	if l.Max <= 0 || l.Max > DefaultMaxPageSize {
		l.Max = DefaultMaxPageSize
	}
	if l.Default <= 0 {
		l.Default = DefaultPageSize
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// clamp maps size into [1, Max]; a non-positive size takes Default.
func (l Limits) clamp(size int) int {
	l = l.normalized()
	switch {
	case size <= 0:
		return l.Default
	case size > l.Max:
		return l.Max
	default:
		return size
	}
}

// Page is a validated page request; Offset is decoded from Token.
type Page struct {
	Size   int
	Token  string
	Offset int
}

// ParamError names the query parameter that failed to parse.
type ParamError struct {
	Param string
	Err   error
}

func (e *ParamError) Error() string { return e.Err.Error() }

func (e *ParamError) Unwrap() error { return e.Err }

// FromQuery reads pageSize and pageToken. An explicit pageSize must be a
// positive integer and is capped at limits.Max; the token must decode.
func FromQuery(values url.Values, limits Limits) (Page, error) {
	page := Page{Size: limits.clamp(0)}

	if raw := strings.TrimSpace(values.Get(PageSizeParam)); raw != "" {
		size, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			return Page{}, &ParamError{Param: PageSizeParam, Err: fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)}
		case size <= 0:
			return Page{}, &ParamError{Param: PageSizeParam, Err: fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)}
		}
		page.Size = limits.clamp(size)
	}

	if raw := strings.TrimSpace(values.Get(PageTokenParam)); raw != "" {
		cursor, err := DecodeToken(raw)
		if err != nil {
			return Page{}, &ParamError{Param: PageTokenParam, Err: err}
		}
		page.Token = raw
		page.Offset = cursor.Offset
	}
	return page, nil
}
