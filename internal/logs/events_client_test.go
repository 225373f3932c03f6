package logs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"barscan/internal/api"
	"barscan/internal/logs"
)

func TestNewEventsClientEmptyBind(t *testing.T) {
	client, err := logs.NewEventsClient("", "")
	if err != nil {
		t.Fatalf("NewEventsClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Fetch(context.Background(), logs.EventsQuery{}); !errors.Is(err, logs.ErrAPIUnavailable) {
		t.Fatalf("expected unavailable error from nil client, got %v", err)
	}
}

func TestEventsClientFetchBuildsQueryAndDecodes(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.EventsResponse{
			Events: []api.Event{{Sequence: 42, Kind: "scan-enabled"}},
			Next:   42,
		})
	}))
	defer srv.Close()

	client, err := logs.NewEventsClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewEventsClient error: %v", err)
	}

	resp, err := client.Fetch(context.Background(), logs.EventsQuery{Since: 3, Limit: 50, Wait: true})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(resp.Events) != 1 || resp.Next != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	for key, want := range map[string]string{"since": "3", "limit": "50", "wait": "1"} {
		if got := gotQuery.Get(key); got != want {
			t.Fatalf("query[%s]: expected %q, got %q", key, want, got)
		}
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
}

func TestEventsClientReportsErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "no frame captured yet"})
	}))
	defer srv.Close()

	client, _ := logs.NewEventsClient(strings.TrimPrefix(srv.URL, "http://"), "")
	_, _, err := client.Frame(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no frame captured yet") {
		t.Fatalf("expected error body in message, got %v", err)
	}
}

func TestEventsClientFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("X-Frame-Seq", "7")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer srv.Close()

	client, _ := logs.NewEventsClient(srv.URL, "")
	data, seq, err := client.Frame(context.Background())
	if err != nil {
		t.Fatalf("Frame error: %v", err)
	}
	if seq != 7 || len(data) != 3 {
		t.Fatalf("unexpected frame %d bytes seq %d", len(data), seq)
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	if !logs.IsAPIUnavailable(logs.ErrAPIUnavailable) {
		t.Fatal("expected ErrAPIUnavailable to be unavailable")
	}
	if logs.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("did not expect generic error to be unavailable")
	}
}
