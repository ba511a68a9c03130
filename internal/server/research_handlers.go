package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/lookout/internal/research"
)

// ResearchHandlers exposes the research service over HTTP.
type ResearchHandlers struct {
	service *research.Service
	log     zerolog.Logger
}

// NewResearchHandlers creates the research handlers.
func NewResearchHandlers(service *research.Service, log zerolog.Logger) *ResearchHandlers {
	return &ResearchHandlers{
		service: service,
		log:     log.With().Str("handlers", "research").Logger(),
	}
}

type submitBatchRequest struct {
	Securities []string `json:"securities"`
}

type submitBatchResponse struct {
	BatchID string `json:"batch_id"`
}

type batchStatusResponse struct {
	research.ProgressSnapshot
	Scores research.ScoreStats `json:"scores"`
}

// HandleSubmitBatch handles POST /api/research/batches
func (h *ResearchHandlers) HandleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req submitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batchID, err := h.service.SubmitBatch(r.Context(), req.Securities)
	if err != nil {
		if errors.Is(err, research.ErrNoSecurities) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("batch submission failed")
		writeError(w, http.StatusInternalServerError, "failed to submit batch")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitBatchResponse{BatchID: batchID})
}

// HandleBatchStatus handles GET /api/research/batches/{batchID}
func (h *ResearchHandlers) HandleBatchStatus(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	snap, err := h.service.BatchStatus(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, research.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		h.log.Error().Err(err).Str("batch_id", batchID).Msg("batch status failed")
		writeError(w, http.StatusInternalServerError, "failed to load batch")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(batchStatusResponse{
		ProgressSnapshot: *snap,
		Scores:           research.BatchScoreStats(*snap),
	})
}

// HandleCancelBatch handles POST /api/research/batches/{batchID}/cancel
func (h *ResearchHandlers) HandleCancelBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	if err := h.service.CancelBatch(batchID); err != nil {
		if errors.Is(err, research.ErrBatchNotRunning) {
			writeError(w, http.StatusConflict, "batch is not running")
			return
		}
		h.log.Error().Err(err).Str("batch_id", batchID).Msg("batch cancel failed")
		writeError(w, http.StatusInternalServerError, "failed to cancel batch")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelling"})
}

// HandleResumeBatch handles POST /api/research/batches/{batchID}/resume
func (h *ResearchHandlers) HandleResumeBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	err := h.service.ResumeBatch(r.Context(), batchID)
	switch {
	case err == nil:
	case errors.Is(err, research.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "batch not found")
		return
	case errors.Is(err, research.ErrBatchRunning):
		writeError(w, http.StatusConflict, "batch is already running")
		return
	default:
		h.log.Error().Err(err).Str("batch_id", batchID).Msg("batch resume failed")
		writeError(w, http.StatusInternalServerError, "failed to resume batch")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "resuming"})
}

// HandleProgressSocket handles GET /api/research/batches/{batchID}/progress.
// It upgrades to a WebSocket and pushes one JSON frame per progress
// snapshot; the socket closes normally after the terminal frame.
func (h *ResearchHandlers) HandleProgressSocket(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	stream, err := h.service.SubscribeProgress(r.Context(), batchID)
	if err != nil {
		if errors.Is(err, research.ErrBatchNotFound) {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		h.log.Error().Err(err).Str("batch_id", batchID).Msg("progress subscription failed")
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	h.log.Info().Str("batch_id", batchID).Msg("progress subscriber connected")

	ctx := r.Context()
	for snap := range stream {
		if err := wsjson.Write(ctx, conn, snap); err != nil {
			h.log.Debug().Err(err).Str("batch_id", batchID).Msg("progress subscriber dropped")
			return
		}
	}

	conn.Close(websocket.StatusNormalClosure, "batch finished")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
