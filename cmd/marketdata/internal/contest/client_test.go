package contest_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/contest"
)

func TestClient_ActiveSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`["RELIANCE.NS","TCS.NS","RELIANCE.NS","","tcs.ns"]`))
	}))
	defer server.Close()

	got, err := contest.NewClient(server.URL, time.Second).ActiveSymbols(context.Background())
	if err != nil {
		t.Fatalf("ActiveSymbols failed: %v", err)
	}

	want := []string{"RELIANCE.NS", "TCS.NS", "tcs.ns"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestClient_ActiveSymbols_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantHTTP bool
	}{
		{"server error", http.StatusInternalServerError, `oops`, true},
		{"not found", http.StatusNotFound, `[]`, true},
		{"not a list", http.StatusOK, `{"symbols":["A"]}`, false},
		{"garbage", http.StatusOK, `<html>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := contest.NewClient(server.URL, time.Second).ActiveSymbols(context.Background())
			if err == nil {
				t.Fatal("Expected an error")
			}
			var statusErr *contest.StatusError
			if errors.As(err, &statusErr) != tt.wantHTTP {
				t.Errorf("StatusError match = %v, want %v (err=%v)", !tt.wantHTTP, tt.wantHTTP, err)
			}
		})
	}
}

func TestClient_ActiveSymbols_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := contest.NewClient(url, time.Second).ActiveSymbols(context.Background()); err == nil {
		t.Error("Expected transport error")
	}
}
