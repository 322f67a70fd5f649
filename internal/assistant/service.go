// Package assistant implements the two plant-care use cases, diagnosis and
// chat, on top of the model invoker and the response normalizers.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/sprout/internal/chat"
	"github.com/kalambet/sprout/internal/diagnosis"
	"github.com/kalambet/sprout/internal/invoker"
	"github.com/kalambet/sprout/internal/provider"
)

// Invoker calls the provider with fallback across candidate models.
type Invoker interface {
	Diagnose(ctx context.Context, image provider.Image, prompt string) (invoker.Result, error)
	Chat(ctx context.Context, messages []provider.Message) (invoker.Result, error)
}

type DiagnoseRequest struct {
	Image          []byte
	Filename       string
	AdditionalInfo string
	Label          string
}

type DiagnoseResult struct {
	Diagnosis      diagnosis.Record
	ModelUsed      string
	AdditionalInfo string
	Label          string
}

type ChatRequest struct {
	Message string
	History []chat.Turn
}

type ChatResult struct {
	Response  string
	History   []chat.Turn
	ModelUsed string
}

type Service struct {
	inv        Invoker
	maxHistory int
}

// New creates a Service. maxHistory bounds how many prior chat turns are
// sent to the provider; the returned history is never trimmed.
func New(inv Invoker, maxHistory int) *Service {
	return &Service{inv: inv, maxHistory: maxHistory}
}

// Diagnose validates the image, asks the provider for a diagnosis and
// normalizes it.
func (s *Service) Diagnose(ctx context.Context, req DiagnoseRequest) (DiagnoseResult, error) {
	mime, err := ValidateImage(req.Filename, req.Image)
	if err != nil {
		return DiagnoseResult{}, err
	}

	info := strings.TrimSpace(req.AdditionalInfo)
	label := strings.TrimSpace(req.Label)

	res, err := s.inv.Diagnose(ctx, provider.Image{MIMEType: mime, Data: req.Image}, diagnosis.BuildPrompt(info, label))
	if err != nil {
		return DiagnoseResult{}, fmt.Errorf("diagnosing plant: %w", err)
	}

	rec, err := diagnosis.Normalize(res.RawOutput)
	if err != nil {
		slog.Debug("unparseable diagnosis output", "model", res.ModelUsed, "output", res.RawOutput)
		return DiagnoseResult{}, fmt.Errorf("normalizing output of %s: %w", res.ModelUsed, err)
	}

	return DiagnoseResult{
		Diagnosis:      rec,
		ModelUsed:      res.ModelUsed,
		AdditionalInfo: info,
		Label:          label,
	}, nil
}

// Chat validates the message and history, gets a reply and returns the
// history extended by the new user and assistant turns.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return ChatResult{}, invalid("message", "message is required")
	}
	if err := chat.ValidateHistory(req.History); err != nil {
		return ChatResult{}, invalid("conversation_history", "%v", err)
	}

	res, err := s.inv.Chat(ctx, chat.BuildMessages(msg, req.History, s.maxHistory))
	if err != nil {
		return ChatResult{}, fmt.Errorf("chatting: %w", err)
	}

	reply := chat.Reply(res.RawOutput)
	return ChatResult{
		Response:  reply,
		History:   chat.AppendTurns(req.History, msg, reply),
		ModelUsed: res.ModelUsed,
	}, nil
}
