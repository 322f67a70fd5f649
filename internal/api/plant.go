package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kalambet/sprout/internal/assistant"
	"github.com/kalambet/sprout/internal/chat"
	"github.com/kalambet/sprout/internal/diagnosis"
)

const multipartMemory = 1 << 20

type diagnoseResponse struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	Diagnosis      diagnosis.Record `json:"diagnosis"`
	ModelUsed      string           `json:"model_used"`
	AdditionalInfo string           `json:"additional_info,omitempty"`
	UserLabel      string           `json:"user_label,omitempty"`
}

func handleDiagnose(svc Service, maxUpload int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, errTypeTooLarge, "upload exceeds %d bytes", maxUpload)
				return
			}
			httpError(w, http.StatusBadRequest, errTypeInvalidRequest, "expected multipart/form-data with an image field: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("image")
		if err != nil {
			httpError(w, http.StatusBadRequest, errTypeInvalidRequest, "no image provided")
			return
		}
		defer file.Close()

		if header.Filename == "" {
			httpError(w, http.StatusBadRequest, errTypeInvalidRequest, "no image selected")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, errTypeInvalidRequest, "reading image: %v", err)
			return
		}

		res, err := svc.Diagnose(r.Context(), assistant.DiagnoseRequest{
			Image:          data,
			Filename:       header.Filename,
			AdditionalInfo: r.FormValue("additional_info"),
			Label:          r.FormValue("label"),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, diagnoseResponse{
			Success:        true,
			Message:        "Plant diagnosis completed",
			Diagnosis:      res.Diagnosis,
			ModelUsed:      res.ModelUsed,
			AdditionalInfo: res.AdditionalInfo,
			UserLabel:      res.Label,
		})
	}
}

type chatRequest struct {
	Message             string          `json:"message"`
	ConversationHistory json.RawMessage `json:"conversation_history"`
}

type chatResponse struct {
	Success             bool        `json:"success"`
	Message             string      `json:"message"`
	Response            string      `json:"response"`
	ConversationHistory []chat.Turn `json:"conversation_history"`
	ModelUsed           string      `json:"model_used"`
}

func handleChat(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, errTypeTooLarge, "request body exceeds %d bytes", maxRequestBodySize)
				return
			}
			httpError(w, http.StatusBadRequest, errTypeInvalidRequest, "invalid request body: %v", err)
			return
		}

		history, err := parseHistory(req.ConversationHistory)
		if err != nil {
			httpError(w, http.StatusBadRequest, errTypeInvalidRequest, "%v", err)
			return
		}

		res, err := svc.Chat(r.Context(), assistant.ChatRequest{Message: req.Message, History: history})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{
			Success:             true,
			Message:             "Chat response generated",
			Response:            res.Response,
			ConversationHistory: res.History,
			ModelUsed:           res.ModelUsed,
		})
	}
}

var errHistoryShape = errors.New("conversation_history must be a list of {role, content} objects")

// parseHistory accepts an absent or null history as empty.
func parseHistory(raw json.RawMessage) ([]chat.Turn, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		return nil, errHistoryShape
	}
	var turns []chat.Turn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, errHistoryShape
	}
	return turns, nil
}
