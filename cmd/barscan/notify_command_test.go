package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"barscan/internal/testsupport"
)

func TestTestNotifyCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var title, body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		title, body = r.Header.Get("Title"), string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = srv.URL + "/line-3"
	out, _, err := runCLI(t, []string{"test-notify"}, "", writeTestConfig(t, cfg))
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title != "barscan - Test" || body != "Notification system test" {
		t.Fatalf("unexpected notification %q / %q", title, body)
	}

	cfg.Notifications.NtfyTopic = ""
	out, _, err = runCLI(t, []string{"test-notify"}, "", writeTestConfig(t, cfg))
	if err != nil {
		t.Fatalf("test-notify disabled: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}
