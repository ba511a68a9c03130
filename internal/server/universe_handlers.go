package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/universe"
)

// UniverseHandlers exposes the security catalogue over HTTP.
type UniverseHandlers struct {
	securities *universe.SecurityRepository
	resolver   *universe.Resolver
	events     *events.Manager
	log        zerolog.Logger
}

// NewUniverseHandlers creates the universe handlers.
func NewUniverseHandlers(securities *universe.SecurityRepository, resolver *universe.Resolver, eventManager *events.Manager, log zerolog.Logger) *UniverseHandlers {
	return &UniverseHandlers{
		securities: securities,
		resolver:   resolver,
		events:     eventManager,
		log:        log.With().Str("handlers", "universe").Logger(),
	}
}

// HandleList handles GET /api/universe
func (h *UniverseHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	securities, err := h.securities.ListActive(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("universe listing failed")
		writeError(w, http.StatusInternalServerError, "failed to list securities")
		return
	}
	if securities == nil {
		securities = []domain.SecurityIdentity{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"securities": securities,
		"count":      len(securities),
	})
}

type addSecurityRequest struct {
	Name string `json:"name"`
}

// HandleAdd handles POST /api/universe. The name goes through the resolver,
// so tickers and free-form company names both work.
func (h *UniverseHandlers) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addSecurityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	identity, err := h.resolver.Resolve(r.Context(), req.Name)
	if err != nil {
		var resErr *domain.ResolutionError
		if errors.As(err, &resErr) {
			writeError(w, http.StatusNotFound, "no security matches "+req.Name)
			return
		}
		h.log.Error().Err(err).Str("name", req.Name).Msg("security resolution failed")
		writeError(w, http.StatusBadGateway, "resolution failed")
		return
	}

	h.events.EmitTyped(events.SecurityAdded, "universe", &events.SecurityAddedData{
		Symbol: identity.Symbol,
		Name:   identity.Name,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(identity)
}

// HandleDeactivate handles DELETE /api/universe/{symbol}
func (h *UniverseHandlers) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if err := h.securities.SetActive(r.Context(), symbol, false); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deactivated", "symbol": symbol})
}
