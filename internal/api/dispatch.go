package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/douletlabs/answerd/internal/answer"
	"github.com/douletlabs/answerd/internal/store"
)

// dispatchRequest is the action-tagged message contract used by extension
// surfaces. Unknown fields for an action are simply ignored.
type dispatchRequest struct {
	Action   string           `json:"action"`
	ClientID string           `json:"client_id"`
	Text     string           `json:"text"`
	Mode     string           `json:"mode"`
	APIKey   string           `json:"api_key"`
	Settings *settingsRequest `json:"settings"`
}

type dispatchResponse struct {
	Success    bool     `json:"success"`
	Dropped    bool     `json:"dropped,omitempty"`
	Answer     string   `json:"answer,omitempty"`
	Model      string   `json:"model,omitempty"`
	TokensUsed int      `json:"tokens_used,omitempty"`
	Enhanced   bool     `json:"enhanced,omitempty"`
	Fallback   bool     `json:"fallback,omitempty"`
	APIKey     *string  `json:"api_key,omitempty"`
	Models     []string `json:"models,omitempty"`
	AskID      string   `json:"ask_id,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("dispatch: recovered panic: %v", recovered)
			writeDispatch(w, dispatchResponse{Success: false, Error: "message handling failed"})
		}
	}()

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeDispatch(w, dispatchResponse{Success: false, Error: "invalid request"})
		return
	}

	switch req.Action {
	case "getAnswer":
		s.dispatchGetAnswer(w, r, req)
	case "testConnection":
		s.dispatchTestConnection(w, r, req)
	case "getApiKey":
		s.dispatchGetAPIKey(w, r)
	case "fetchFreeModels":
		writeDispatch(w, dispatchResponse{Success: true, Models: s.catalog.Refresh(r.Context())})
	case "updateSettings":
		s.dispatchUpdateSettings(w, r, req)
	case "handleContextMenuSelection":
		s.dispatchContextMenuSelection(w, r, req)
	default:
		// Unknown actions get an empty reply so stray messages from other
		// surfaces never see an error.
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) dispatchGetAnswer(w http.ResponseWriter, r *http.Request, req dispatchRequest) {
	client := req.ClientID
	if client == "" {
		client = "default"
	}
	// Concurrent requests from the same client are dropped, not queued.
	if _, inFlight := s.inFlight.LoadOrStore(client, struct{}{}); inFlight {
		writeDispatch(w, dispatchResponse{Success: false, Dropped: true})
		return
	}
	defer s.inFlight.Delete(client)

	settings, _, err := s.loadSettings(r.Context())
	if err != nil {
		writeDispatch(w, dispatchResponse{Success: false, Error: "message handling failed", ErrorKind: string(answer.KindInternal)})
		return
	}

	orchestrator := answer.New(s.orchestratorConfig(settings))
	result, err := orchestrator.GetAnswer(r.Context(), answer.Query{
		Text: req.Text,
		Mode: answer.Mode(req.Mode),
	})
	if err != nil {
		typed := answer.AsError(err)
		writeDispatch(w, dispatchResponse{Success: false, Error: typed.Message, ErrorKind: string(typed.Kind)})
		return
	}

	s.rememberAnswer(r, settings, result.Answer)
	writeDispatch(w, dispatchResponse{
		Success:    true,
		Answer:     result.Answer,
		Model:      result.Model,
		TokensUsed: result.TokensUsed,
		Enhanced:   result.Enhanced,
		Fallback:   result.Fallback,
	})
}

// rememberAnswer caches the latest answer for popup reopen. Best effort;
// a failed write never affects the response.
func (s *Server) rememberAnswer(r *http.Request, settings store.Settings, answerText string) {
	settings.LastAnswer = answerText
	settings.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if settings.CreatedAt == "" {
		settings.CreatedAt = settings.UpdatedAt
	}
	if err := s.store.UpsertSettings(r.Context(), settings); err != nil {
		log.Printf("dispatch: cache last answer: %v", err)
	}
}

func (s *Server) dispatchTestConnection(w http.ResponseWriter, r *http.Request, req dispatchRequest) {
	apiKey := req.APIKey
	if apiKey == "" {
		settings, _, err := s.loadSettings(r.Context())
		if err != nil {
			writeDispatch(w, dispatchResponse{Success: false, Error: "message handling failed"})
			return
		}
		apiKey = s.decryptSecret(settings.APIKeyEnc)
	}
	if ok, reason := validAPIKeyFormat(apiKey); !ok {
		writeDispatch(w, dispatchResponse{Success: false, Error: reason})
		return
	}
	writeDispatch(w, dispatchResponse{Success: true})
}

// dispatchGetAPIKey hands the decrypted key to trusted local surfaces.
// The daemon binds to loopback; this never crosses a machine boundary.
func (s *Server) dispatchGetAPIKey(w http.ResponseWriter, r *http.Request) {
	settings, _, err := s.loadSettings(r.Context())
	if err != nil {
		writeDispatch(w, dispatchResponse{Success: false, Error: "message handling failed"})
		return
	}
	apiKey := s.decryptSecret(settings.APIKeyEnc)
	writeDispatch(w, dispatchResponse{Success: true, APIKey: &apiKey})
}

func (s *Server) dispatchUpdateSettings(w http.ResponseWriter, r *http.Request, req dispatchRequest) {
	if req.Settings == nil {
		writeDispatch(w, dispatchResponse{Success: false, Error: "settings payload required"})
		return
	}
	if _, err := s.applySettings(r.Context(), *req.Settings); err != nil {
		writeDispatch(w, dispatchResponse{Success: false, Error: "message handling failed"})
		return
	}
	writeDispatch(w, dispatchResponse{Success: true})
}

func (s *Server) dispatchContextMenuSelection(w http.ResponseWriter, r *http.Request, req dispatchRequest) {
	if verr := answer.ValidateText(req.Text); verr != nil {
		writeDispatch(w, dispatchResponse{Success: false, Error: verr.Message, ErrorKind: string(verr.Kind)})
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = string(answer.ModeDetailed)
	}
	askID, err := s.startAsk(r, req.Text, mode)
	if err != nil {
		writeDispatch(w, dispatchResponse{Success: false, Error: "message handling failed"})
		return
	}
	writeDispatch(w, dispatchResponse{Success: true, AskID: askID})
}

func (s *Server) startAsk(r *http.Request, text string, mode string) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	ask := store.Ask{
		ID:        id,
		Text:      text,
		Mode:      mode,
		Status:    store.AskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateAsk(r.Context(), ask); err != nil {
		return "", err
	}
	s.appendAskEvent(r.Context(), id, "ask.created", map[string]any{
		"status": store.AskStatusPending,
		"mode":   mode,
	})
	if s.workflows != nil {
		if err := s.workflows.StartAsk(r.Context(), id); err != nil {
			log.Printf("dispatch: start ask %s: %v", id, err)
		}
	}
	return id, nil
}

func writeDispatch(w http.ResponseWriter, response dispatchResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("dispatch: write response: %v", err)
	}
}
