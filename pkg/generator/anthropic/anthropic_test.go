package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete(t *testing.T) {
	var got struct {
		Model  string `json:"model"`
		System []struct {
			Text string `json:"text"`
		} `json:"system"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "sk-test" {
			t.Errorf("unexpected api key %q", r.Header.Get("X-Api-Key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5","content":[{"type":"text","text":"En caja."}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":3}}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "sk-test", Model: "claude-haiku-4-5"})
	out, err := c.Complete(context.Background(), "sistema", "¿Dónde pago?")
	if err != nil {
		t.Fatal(err)
	}
	if out != "En caja." {
		t.Errorf("expected %q, got %q", "En caja.", out)
	}
	if got.Model != "claude-haiku-4-5" {
		t.Errorf("unexpected model %q", got.Model)
	}
	if len(got.System) != 1 || got.System[0].Text != "sistema" {
		t.Errorf("unexpected system blocks: %+v", got.System)
	}
}

func TestCompleteNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, APIKey: "k", Model: "m"})
	if _, err := c.Complete(context.Background(), "s", "p"); err == nil {
		t.Fatal("expected error for empty content")
	}
}
