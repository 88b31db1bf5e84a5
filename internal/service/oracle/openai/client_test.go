package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eq-coach-service/internal/service/oracle"
)

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New("sk-test", "test-model", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "m"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("k", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestComplete_Success(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatReply(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	reply, err := c.Complete(context.Background(), oracle.Prompt{
		System:      "system",
		User:        "你好",
		Temperature: 0.8,
		MaxTokens:   500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != `{"ok":true}` {
		t.Errorf("expected raw reply, got %q", reply)
	}

	if body["model"] != "test-model" {
		t.Errorf("expected model test-model, got %v", body["model"])
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %v", body["messages"])
	}
	if body["temperature"] != 0.8 {
		t.Errorf("expected temperature 0.8, got %v", body["temperature"])
	}
	if _, ok := body["response_format"]; ok {
		t.Error("expected no response_format without a schema")
	}
}

func TestComplete_StructuredOutput(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatReply(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), oracle.Prompt{
		User:       "text",
		Schema:     map[string]any{"type": "object"},
		SchemaName: "analysis_result",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rf, ok := body["response_format"].(map[string]any)
	if !ok {
		t.Fatalf("expected response_format, got %v", body["response_format"])
	}
	if rf["type"] != "json_schema" {
		t.Errorf("expected json_schema format, got %v", rf["type"])
	}
}

func TestComplete_StatusError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), oracle.Prompt{User: "text"})

	var terr *oracle.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", terr.Status)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call without retries, got %d", calls)
	}
}

func TestComplete_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatReply("   "))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), oracle.Prompt{User: "text"})
	if !errors.Is(err, oracle.ErrEmptyReply) {
		t.Errorf("expected ErrEmptyReply, got %v", err)
	}
}

func TestComplete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, oracle.Prompt{User: "text"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
