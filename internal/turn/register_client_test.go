package turn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterClient_Register(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/agents/register" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["name"] != "herd-1" {
			t.Fatalf("unexpected agent name: %q", body["name"])
		}
		_, _ = w.Write([]byte(`{"agent_id":"a1","visit_url":"https://x/a/a1","agent_ws_url":"wss://x/ws/agent/a1"}`))
	}))
	defer srv.Close()

	c := NewRegisterClient(srv.URL, "tok-1")
	got, err := c.Register(context.Background(), "herd-1")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if got.AgentID != "a1" {
		t.Fatalf("unexpected agent id: %s", got.AgentID)
	}
	if got.AgentWSURL != "wss://x/ws/agent/a1" {
		t.Fatalf("unexpected ws url: %s", got.AgentWSURL)
	}
}

func TestRegisterClient_Register_NoTokenOmitsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		_, _ = w.Write([]byte(`{"agent_id":"a1","agent_ws_url":"wss://x/ws/agent/a1"}`))
	}))
	defer srv.Close()

	c := NewRegisterClient(srv.URL, "")
	if _, err := c.Register(context.Background(), "herd-1"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
}

func TestRegisterClient_Register_RejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewRegisterClient(srv.URL, "bad-token")
	if _, err := c.Register(context.Background(), "herd-1"); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestRegisterClient_Register_RejectsMissingWSURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"agent_id":"a1","visit_url":"https://x/a/a1"}`))
	}))
	defer srv.Close()

	c := NewRegisterClient(srv.URL, "")
	if _, err := c.Register(context.Background(), "herd-1"); err == nil {
		t.Fatal("expected error when agent_ws_url is absent")
	}
}
