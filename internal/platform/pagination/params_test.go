package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestFromQueryDefaults(t *testing.T) {
	page, err := FromQuery(url.Values{}, Limits{})
	if err != nil {
		t.Fatalf("FromQuery returned error: %v", err)
	}
	if page != (Page{Size: DefaultPageSize}) {
		t.Fatalf("expected default page, got %+v", page)
	}

	page, err = FromQuery(url.Values{}, Limits{Default: 20})
	if err != nil || page.Size != 20 {
		t.Fatalf("expected endpoint default 20, got %+v err=%v", page, err)
	}

	page, err = FromQuery(url.Values{}, Limits{Default: 500, Max: 1000})
	if err != nil || page.Size != DefaultMaxPageSize {
		t.Fatalf("expected defaults capped at %d, got %+v err=%v", DefaultMaxPageSize, page, err)
	}
}

func TestFromQueryPageSize(t *testing.T) {
	limits := Limits{Default: 25, Max: 40}
	values := url.Values{PageSizeParam: {" 30 "}}

	page, err := FromQuery(values, limits)
	if err != nil {
		t.Fatalf("FromQuery returned error: %v", err)
	}
	if page.Size != 30 {
		t.Fatalf("expected page size 30 got %d", page.Size)
	}

	values.Set(PageSizeParam, "400")
	page, err = FromQuery(values, limits)
	if err != nil {
		t.Fatalf("FromQuery returned error: %v", err)
	}
	if page.Size != limits.Max {
		t.Fatalf("expected page size clamped to %d got %d", limits.Max, page.Size)
	}
}

func TestFromQueryRejectsBadPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3", "1.5"} {
		_, err := FromQuery(url.Values{PageSizeParam: {raw}}, Limits{})
		if !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize=%q: expected ErrInvalidPageSize got %v", raw, err)
		}
		var paramErr *ParamError
		if !errors.As(err, &paramErr) || paramErr.Param != PageSizeParam {
			t.Fatalf("pageSize=%q: expected a pageSize ParamError, got %#v", raw, err)
		}
	}
}

func TestFromQueryPageToken(t *testing.T) {
	token, err := EncodeToken(Cursor{Offset: 40})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}

	page, err := FromQuery(url.Values{PageTokenParam: {token}, PageSizeParam: {"20"}}, Limits{})
	if err != nil {
		t.Fatalf("FromQuery returned error: %v", err)
	}
	if page != (Page{Size: 20, Token: token, Offset: 40}) {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestFromQueryRejectsBadPageToken(t *testing.T) {
	_, err := FromQuery(url.Values{PageTokenParam: {"!!!invalid!!!"}}, Limits{})
	if !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken got %v", err)
	}
	var paramErr *ParamError
	if !errors.As(err, &paramErr) || paramErr.Param != PageTokenParam {
		t.Fatalf("expected a pageToken ParamError, got %#v", err)
	}
}

func TestEncodeDecodeToken(t *testing.T) {
	token, err := EncodeToken(Cursor{Offset: 7})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	decoded, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if decoded.Offset != 7 {
		t.Fatalf("expected offset 7 got %d", decoded.Offset)
	}

	emptyToken, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("EncodeToken for empty cursor returned error: %v", err)
	}
	if emptyToken != "" {
		t.Fatalf("expected empty token got %q", emptyToken)
	}
}

func TestDecodeTokenInvalid(t *testing.T) {
	if _, err := DecodeToken("not-base64"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken got %v", err)
	}
}

func TestWindowAndNextToken(t *testing.T) {
	offset, limit, err := Window(0, "")
	if err != nil {
		t.Fatalf("Window returned error: %v", err)
	}
	if offset != 0 || limit != DefaultPageSize {
		t.Fatalf("expected first page defaults, got offset=%d limit=%d", offset, limit)
	}

	offset, limit, err = Window(1000, "")
	if err != nil || limit != DefaultMaxPageSize || offset != 0 {
		t.Fatalf("expected clamped limit, got offset=%d limit=%d err=%v", offset, limit, err)
	}

	if next := NextToken(0, 10, 10); next != "" {
		t.Fatalf("expected no next token when the page is not over-filled, got %q", next)
	}
	next := NextToken(10, 10, 11)
	if next == "" {
		t.Fatal("expected a next token")
	}
	offset, limit, err = Window(10, next)
	if err != nil {
		t.Fatalf("Window returned error: %v", err)
	}
	if offset != 20 || limit != 10 {
		t.Fatalf("expected offset 20 limit 10, got offset=%d limit=%d", offset, limit)
	}
}
