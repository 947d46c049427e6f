package handler

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseListOptsDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/outcomes", nil)
	opts := parseListOpts(r)

	if opts.Limit != 50 || opts.Offset != 0 {
		t.Fatalf("defaults = limit %d offset %d, want 50/0", opts.Limit, opts.Offset)
	}
	if opts.Since != nil || opts.Until != nil {
		t.Fatal("time window must be unset by default")
	}
}

func TestParseListOptsClampsAndParses(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/outcomes?limit=9999&offset=20&since=2026-01-01T00:00:00Z", nil)
	opts := parseListOpts(r)

	if opts.Limit != 500 {
		t.Fatalf("limit = %d, want clamped to 500", opts.Limit)
	}
	if opts.Offset != 20 {
		t.Fatalf("offset = %d, want 20", opts.Offset)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if opts.Since == nil || !opts.Since.Equal(want) {
		t.Fatalf("since = %v, want %s", opts.Since, want)
	}
}

func TestParseListOptsIgnoresGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/outcomes?limit=-3&offset=abc&until=yesterday", nil)
	opts := parseListOpts(r)

	if opts.Limit != 50 || opts.Offset != 0 {
		t.Fatalf("garbage values leaked: limit %d offset %d", opts.Limit, opts.Offset)
	}
	if opts.Until != nil {
		t.Fatal("unparseable until must stay unset")
	}
}
