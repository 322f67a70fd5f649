package invoker

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/sprout/internal/provider"
)

// fakeCompleter answers per model: an error if one is registered, the text otherwise.
type fakeCompleter struct {
	mu       sync.Mutex
	errs     map[string]error
	text     string
	calls    []string
	requests []provider.ChatRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Model)
	f.requests = append(f.requests, req)
	if err := f.errs[req.Model]; err != nil {
		return nil, err
	}
	return &provider.ChatResponse{
		Model:   req.Model,
		Choices: []provider.Choice{{Message: provider.ChoiceMessage{Role: "assistant", Content: f.text}}},
	}, nil
}

func TestTryInOrder_PrimarySucceeds(t *testing.T) {
	var calls []string
	out, model, err := TryInOrder(context.Background(), []string{"a", "b"}, func(_ context.Context, m string) (int, error) {
		calls = append(calls, m)
		return 7, nil
	})
	if err != nil {
		t.Fatalf("TryInOrder: %v", err)
	}
	if out != 7 || model != "a" {
		t.Errorf("got (%d, %q), want (7, a)", out, model)
	}
	if !reflect.DeepEqual(calls, []string{"a"}) {
		t.Errorf("calls = %v, want [a]", calls)
	}
}

func TestTryInOrder_FallbackOrder(t *testing.T) {
	var calls []string
	_, model, err := TryInOrder(context.Background(), []string{"a", "b", "a", "c", "d"}, func(_ context.Context, m string) (string, error) {
		calls = append(calls, m)
		if m == "c" {
			return "ok", nil
		}
		return "", errors.New(m + " failed")
	})
	if err != nil {
		t.Fatalf("TryInOrder: %v", err)
	}
	if model != "c" {
		t.Errorf("model = %q, want c", model)
	}
	if !reflect.DeepEqual(calls, []string{"a", "b", "c"}) {
		t.Errorf("calls = %v, want [a b c]", calls)
	}
}

func TestTryInOrder_AllFail(t *testing.T) {
	last := errors.New("b failed")
	_, _, err := TryInOrder(context.Background(), []string{"a", "b"}, func(_ context.Context, m string) (string, error) {
		if m == "b" {
			return "", last
		}
		return "", errors.New("a failed")
	})

	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("error does not wrap last error: %v", err)
	}
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("error = %T, want *UnavailableError", err)
	}
	if len(ue.Attempts) != 2 || ue.Attempts[0].Model != "a" || ue.Attempts[1].Model != "b" {
		t.Errorf("attempts = %+v", ue.Attempts)
	}
	if !strings.Contains(err.Error(), "a, b") {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestTryInOrder_NoCandidates(t *testing.T) {
	_, _, err := TryInOrder(context.Background(), nil, func(context.Context, string) (string, error) {
		t.Fatal("fn called with no candidates")
		return "", nil
	})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestTryInOrder_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, _, err := TryInOrder(ctx, []string{"a", "b"}, func(context.Context, string) (string, error) {
		calls++
		cancel()
		return "", errors.New("boom")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrProviderUnavailable) {
		t.Error("cancellation reported as provider unavailable")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func testInvoker(fc *fakeCompleter) *Invoker {
	return New(fc,
		Task{Name: "diagnosis", Models: []string{"vision-primary", "vision-fallback"}, MaxTokens: 1000, Temperature: 0.3, JSON: true},
		Task{Name: "chat", Models: []string{"chat-primary", "chat-fallback"}, MaxTokens: 500, Temperature: 0.7},
	)
}

func TestDiagnose_FallbackModelUsed(t *testing.T) {
	fc := &fakeCompleter{
		errs: map[string]error{"vision-primary": &provider.StatusError{Code: 500, Message: "boom"}},
		text: `{"status":"healthy"}`,
	}
	inv := testInvoker(fc)

	res, err := inv.Diagnose(context.Background(), provider.Image{MIMEType: "image/png", Data: []byte("img")}, "prompt")
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if res.ModelUsed != "vision-fallback" {
		t.Errorf("ModelUsed = %q, want vision-fallback", res.ModelUsed)
	}
	if res.RawOutput != `{"status":"healthy"}` {
		t.Errorf("RawOutput = %q", res.RawOutput)
	}

	req := fc.requests[1]
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Error("diagnosis request without json_object response format")
	}
	if req.MaxTokens != 1000 || req.Temperature != 0.3 {
		t.Errorf("generation settings = %d/%v", req.MaxTokens, req.Temperature)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 || req.Messages[0].Content != "prompt" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestChat_PrimaryUsed(t *testing.T) {
	fc := &fakeCompleter{text: "Water weekly."}
	inv := testInvoker(fc)

	res, err := inv.Chat(context.Background(), []provider.Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if res.ModelUsed != "chat-primary" {
		t.Errorf("ModelUsed = %q, want chat-primary", res.ModelUsed)
	}
	if !reflect.DeepEqual(fc.calls, []string{"chat-primary"}) {
		t.Errorf("calls = %v", fc.calls)
	}
	if fc.requests[0].ResponseFormat != nil {
		t.Error("chat request should not force JSON")
	}
}

func TestChat_AllModelsFail(t *testing.T) {
	fc := &fakeCompleter{errs: map[string]error{
		"chat-primary":  errors.New("timeout"),
		"chat-fallback": errors.New("rate limited"),
	}}
	inv := testInvoker(fc)

	_, err := inv.Chat(context.Background(), []provider.Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
	if !reflect.DeepEqual(fc.calls, []string{"chat-primary", "chat-fallback"}) {
		t.Errorf("calls = %v", fc.calls)
	}
}

func TestModelsAreCopies(t *testing.T) {
	inv := testInvoker(&fakeCompleter{})
	m := inv.ChatModels()
	m[0] = "changed"
	if inv.ChatModels()[0] != "chat-primary" {
		t.Error("ChatModels exposes internal slice")
	}
	if got := inv.DiagnosisModels(); !reflect.DeepEqual(got, []string{"vision-primary", "vision-fallback"}) {
		t.Errorf("DiagnosisModels() = %v", got)
	}
}
