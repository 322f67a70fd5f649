package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const okResponse = `{"id":"chatcmpl-1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Hello!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`

func textRequest() ChatRequest {
	return ChatRequest{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	}
}

func TestComplete(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, okResponse)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL+"/")
	resp, err := c.Complete(context.Background(), textRequest())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Text() != "Hello!" {
		t.Errorf("Text() = %q, want %q", resp.Text(), "Hello!")
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("TotalTokens = %d, want 7", resp.Usage.TotalTokens)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
}

func TestComplete_ImageRequestBody(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprint(w, okResponse)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	_, err := c.Complete(context.Background(), ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []Message{{
			Role:    RoleUser,
			Content: "what is this plant?",
			Images:  []Image{{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
		}},
		MaxTokens:      1000,
		Temperature:    0.3,
		ResponseFormat: JSONObject,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if body["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v, want 1000", body["max_tokens"])
	}
	if body["temperature"] != 0.3 {
		t.Errorf("temperature = %v, want 0.3", body["temperature"])
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", body["response_format"])
	}

	msgs := body["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("got %d content parts, want 2", len(parts))
	}
	if parts[0].(map[string]any)["text"] != "what is this plant?" {
		t.Errorf("text part = %v", parts[0])
	}
	img := parts[1].(map[string]any)["image_url"].(map[string]any)
	if url := img["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q, want data:image/png;base64 prefix", url)
	}
	if img["detail"] != "auto" {
		t.Errorf("detail = %v, want auto", img["detail"])
	}
}

func TestMessage_TextOnlyMarshalsAsString(t *testing.T) {
	b, err := json.Marshal(Message{Role: RoleSystem, Content: "be nice"})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"role":"system","content":"be nice"}` {
		t.Errorf("got %s", b)
	}
}

func TestComplete_RateLimit_Retry(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempt.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, okResponse)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.Complete(context.Background(), textRequest()); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if got := attempt.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestComplete_RateLimit_Exhausted(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL, WithMaxRetries(2))
	_, err := c.Complete(context.Background(), textRequest())
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error = %q, want it to contain %q", err.Error(), "rate limited")
	}
	if got := attempt.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestComplete_StatusErrorNotRetried(t *testing.T) {
	var attempt atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad-key", srv.URL)
	_, err := c.Complete(context.Background(), textRequest())

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusUnauthorized {
		t.Errorf("Code = %d, want 401", se.Code)
	}
	if se.Message != "Incorrect API key provided" {
		t.Errorf("Message = %q", se.Message)
	}
	if got := attempt.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x","choices":[]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	_, err := c.Complete(context.Background(), textRequest())
	if !errors.Is(err, ErrNoChoices) {
		t.Errorf("error = %v, want ErrNoChoices", err)
	}
}

func TestComplete_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-done:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(done)

	c := NewClientWithBaseURL("test-key", srv.URL, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Complete(context.Background(), textRequest())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Complete took %v, want prompt timeout", elapsed)
	}
}

func TestErrorMessage_TruncatesRawBody(t *testing.T) {
	long := strings.Repeat("x", maxErrorBody+100)
	got := errorMessage([]byte(long))
	if len(got) != maxErrorBody+3 {
		t.Errorf("len = %d, want %d", len(got), maxErrorBody+3)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(ModelList{
			Object: "list",
			Data: []Model{
				{ID: "gpt-4o-mini", Object: "model"},
				{ID: "gpt-4o", Object: "model"},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}

	want := []string{"gpt-4o-mini", "gpt-4o"}
	if len(models) != len(want) {
		t.Fatalf("got %d models, want %d", len(models), len(want))
	}
	for i, w := range want {
		if models[i].ID != w {
			t.Errorf("models[%d].ID = %q, want %q", i, models[i].ID, w)
		}
	}
}

func TestListModels_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"object":"list","data":null}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 0 {
		t.Errorf("got %d models, want 0", len(models))
	}
}
