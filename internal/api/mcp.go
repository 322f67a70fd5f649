package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/sprout/internal/assistant"
	"github.com/kalambet/sprout/internal/chat"
	"github.com/kalambet/sprout/internal/diagnosis"
)

// NewMCPServer creates an MCP server exposing the plant assistant as tools.
func NewMCPServer(svc Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sprout",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("sprout diagnoses plant health from photos and answers plant-care questions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("diagnose_plant",
			mcp.WithDescription("Diagnose the health of a plant from a photo. Returns name, status, confidence, problem, cause, treatment and prevention."),
			mcp.WithString("image_base64", mcp.Description("Base64-encoded image (png, jpg, gif, bmp or webp); a data: URL is also accepted"), mcp.Required()),
			mcp.WithString("filename", mcp.Description("Original file name, used to check the extension")),
			mcp.WithString("additional_info", mcp.Description("Extra context, e.g. watering habits or symptoms")),
			mcp.WithString("label", mcp.Description("What the user calls this plant")),
		),
		mcpDiagnosePlant(svc),
	)

	s.AddTool(
		mcp.NewTool("plant_chat",
			mcp.WithDescription("Ask the plant-care assistant a question, optionally continuing a conversation."),
			mcp.WithString("message", mcp.Description("The question to ask"), mcp.Required()),
			mcp.WithString("conversation_history", mcp.Description("JSON array of prior {role, content} turns, oldest first")),
		),
		mcpPlantChat(svc),
	)

	return s
}

func mcpDiagnosePlant(svc Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		encoded, err := req.RequireString("image_base64")
		if err != nil {
			return mcpError("image_base64 is required"), nil
		}
		data, err := decodeImage(encoded)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid image_base64: %v", err)), nil
		}

		res, err := svc.Diagnose(ctx, assistant.DiagnoseRequest{
			Image:          data,
			Filename:       req.GetString("filename", ""),
			AdditionalInfo: req.GetString("additional_info", ""),
			Label:          req.GetString("label", ""),
		})
		if err != nil {
			return mcpServiceError(err), nil
		}

		b, err := json.Marshal(struct {
			Diagnosis diagnosis.Record `json:"diagnosis"`
			ModelUsed string           `json:"model_used"`
		}{res.Diagnosis, res.ModelUsed})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal diagnosis: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPlantChat(svc Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		history, err := parseHistory(json.RawMessage(req.GetString("conversation_history", "")))
		if err != nil {
			return mcpError(err.Error()), nil
		}

		res, err := svc.Chat(ctx, assistant.ChatRequest{Message: message, History: history})
		if err != nil {
			return mcpServiceError(err), nil
		}

		b, err := json.Marshal(struct {
			Response            string      `json:"response"`
			ConversationHistory []chat.Turn `json:"conversation_history"`
			ModelUsed           string      `json:"model_used"`
		}{res.Response, res.History, res.ModelUsed})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal chat result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

// decodeImage accepts raw standard base64 or a base64 data URL.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ";base64,")
		if i < 0 {
			return nil, fmt.Errorf("data URL is not base64 encoded")
		}
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}

func mcpServiceError(err error) *mcp.CallToolResult {
	code, errType, msg := classify(err)
	if code >= 500 {
		slog.Error("MCP tool call failed", "error_type", errType, "error", err)
	}
	return mcpError(errType + ": " + msg)
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
