package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/douletlabs/answerd/internal/answer"
	"github.com/douletlabs/answerd/internal/events"
	"github.com/douletlabs/answerd/internal/store"
)

type createAskRequest struct {
	Text string `json:"text"`
	Mode string `json:"mode"`
}

func (s *Server) createAsk(w http.ResponseWriter, r *http.Request) {
	req := createAskRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	if verr := answer.ValidateText(req.Text); verr != nil {
		http.Error(w, verr.Message, http.StatusBadRequest)
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = string(answer.ModeStandard)
	}

	id, err := s.startAsk(r, req.Text, mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"ask_id": id,
		"status": store.AskStatusPending,
	})
}

func (s *Server) listAsks(w http.ResponseWriter, r *http.Request) {
	asks, err := s.store.ListAsks(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"asks": asks})
}

func (s *Server) getAsk(w http.ResponseWriter, r *http.Request) {
	ask, err := s.store.GetAsk(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ask == nil {
		http.Error(w, "ask not found", http.StatusNotFound)
		return
	}
	writeJSON(w, ask)
}

func (s *Server) cancelAsk(w http.ResponseWriter, r *http.Request) {
	askID := chi.URLParam(r, "id")
	if s.workflows != nil {
		_ = s.workflows.CancelAsk(r.Context(), askID)
	}
	s.appendAskEvent(r.Context(), askID, "ask.cancelled", map[string]any{
		"reason": "user_requested",
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) deleteAsk(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAsk(r.Context(), chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) streamAskEvents(w http.ResponseWriter, r *http.Request) {
	askID := chi.URLParam(r, "id")
	topic := events.AskTopic(askID)

	afterSeq := parseAfterSeq(topic, r)
	stored, err := s.store.ListEvents(r.Context(), askID, afterSeq)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	replay := make([]events.Event, 0, len(stored))
	for _, event := range stored {
		replay = append(replay, toEvent(event))
	}
	s.streamTopic(w, r, topic, replay)
}

func (s *Server) appendAskEvent(ctx context.Context, askID string, eventType string, payload map[string]any) {
	seq, _ := s.store.NextSeq(ctx, askID)
	event := store.AskEvent{
		AskID:     askID,
		Seq:       seq,
		Type:      events.NormalizeType(eventType),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Source:    "api",
		TraceID:   uuid.New().String(),
		Payload:   payload,
	}
	_ = s.store.AppendEvent(ctx, event)
	s.broker.Publish(toEvent(event))
}

func toEvent(event store.AskEvent) events.Event {
	return events.Event{
		Topic:   events.AskTopic(event.AskID),
		Seq:     event.Seq,
		Type:    events.NormalizeType(event.Type),
		Ts:      event.Timestamp,
		Source:  event.Source,
		TraceID: event.TraceID,
		Payload: event.Payload,
	}
}
