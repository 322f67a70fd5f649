// Package invoker calls the model provider for a task, falling back through
// the task's candidate models until one of them answers.
package invoker

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalambet/sprout/internal/provider"
)

// Completer sends one chat completion request to one model.
type Completer interface {
	Complete(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error)
}

// Task describes how one kind of request is sent to the provider.
type Task struct {
	Name        string
	Models      []string // primary first, then fallbacks
	MaxTokens   int
	Temperature float64
	JSON        bool // ask for a JSON object response
}

// Result is the raw provider output and the model that produced it.
type Result struct {
	RawOutput string
	ModelUsed string
}

type Invoker struct {
	client    Completer
	diagnosis Task
	chat      Task
	tracer    trace.Tracer
}

func New(client Completer, diagnosis, chat Task) *Invoker {
	return &Invoker{
		client:    client,
		diagnosis: diagnosis,
		chat:      chat,
		tracer:    otel.Tracer("github.com/kalambet/sprout/internal/invoker"),
	}
}

// DiagnosisModels returns the diagnosis candidates in priority order.
func (inv *Invoker) DiagnosisModels() []string { return append([]string(nil), inv.diagnosis.Models...) }

// ChatModels returns the chat candidates in priority order.
func (inv *Invoker) ChatModels() []string { return append([]string(nil), inv.chat.Models...) }

// Diagnose sends the image with the instruction prompt as a single user message.
func (inv *Invoker) Diagnose(ctx context.Context, image provider.Image, prompt string) (Result, error) {
	msgs := []provider.Message{{
		Role:    provider.RoleUser,
		Content: prompt,
		Images:  []provider.Image{image},
	}}
	return inv.invoke(ctx, inv.diagnosis, msgs)
}

// Chat sends a prepared text conversation.
func (inv *Invoker) Chat(ctx context.Context, messages []provider.Message) (Result, error) {
	return inv.invoke(ctx, inv.chat, messages)
}

func (inv *Invoker) invoke(ctx context.Context, task Task, messages []provider.Message) (Result, error) {
	text, model, err := TryInOrder(ctx, task.Models, func(ctx context.Context, model string) (string, error) {
		ctx, span := inv.tracer.Start(ctx, "invoker."+task.Name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("sprout.task", task.Name),
				attribute.String("gen_ai.request.model", model),
			),
		)
		defer span.End()

		req := provider.ChatRequest{
			Model:       model,
			Messages:    messages,
			MaxTokens:   task.MaxTokens,
			Temperature: task.Temperature,
		}
		if task.JSON {
			req.ResponseFormat = provider.JSONObject
		}

		resp, err := inv.client.Complete(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "model call failed")
			return "", err
		}

		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
			attribute.Int("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
		)
		slog.Debug("model call succeeded",
			"task", task.Name,
			"model", model,
			"total_tokens", resp.Usage.TotalTokens,
		)
		return resp.Text(), nil
	})
	if err != nil {
		return Result{}, err
	}
	return Result{RawOutput: text, ModelUsed: model}, nil
}
