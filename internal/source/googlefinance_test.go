package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const quotePage = `<html><body>
<div class="zzDege">Infosys Ltd</div>
<div class="YMlKec fxKbKc">%s</div>
</body></html>`

func newTestSource(baseURL string) *GoogleFinance {
	return NewGoogleFinance(GoogleFinanceOptions{
		BaseURL:  baseURL,
		Exchange: "NSE",
		Timeout:  time.Second,
	}, zerolog.Nop())
}

func TestFetchParsesPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/INFY:NSE" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprintf(w, quotePage, "₹1,482.35")
	}))
	defer srv.Close()

	price, ok, err := newTestSource(srv.URL).Fetch(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a price")
	}
	if !price.Equal(decimal.NewFromFloat(1482.35)) {
		t.Fatalf("price = %s, want 1482.35", price)
	}
}

func TestFetchMissingNodeIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><div>no quote here</div></body></html>")
	}))
	defer srv.Close()

	_, ok, err := newTestSource(srv.URL).Fetch(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("missing node must not be an error: %v", err)
	}
	if ok {
		t.Fatal("missing node must yield absent")
	}
}

func TestFetchNon200IsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, ok, err := newTestSource(srv.URL).Fetch(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("non-200 must not be an error: %v", err)
	}
	if ok {
		t.Fatal("non-200 must yield absent")
	}
}

func TestFetchUnparseablePriceIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, quotePage, "N/A")
	}))
	defer srv.Close()

	_, ok, err := newTestSource(srv.URL).Fetch(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("unparseable text must not be an error: %v", err)
	}
	if ok {
		t.Fatal("unparseable text must yield absent")
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, ok, err := newTestSource(srv.URL).Fetch(context.Background(), "INFY")
	if err == nil {
		t.Fatal("transport failure should surface as an error")
	}
	if ok {
		t.Fatal("transport failure must not report a value")
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"₹1,482.35", "1482.35", true},
		{"$12.50", "12.5", true},
		{"  2,01,450.00 ", "201450", true},
		{"-3.25", "-3.25", true},
		{"N/A", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := parsePrice(tc.raw)
		if ok != tc.ok {
			t.Fatalf("parsePrice(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
		}
		if !ok {
			continue
		}
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) {
			t.Fatalf("parsePrice(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}
