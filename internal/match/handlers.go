package match

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calebgmahala/SaltyBets/internal/model"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

// EndRequest optionally names a fallback winner, used only when the
// bout feed has no result for the match.
type EndRequest struct {
	Winner string `json:"winner,omitempty"`
}

func parseManualWinner(r *http.Request) (*model.Side, bool) {
	if r.Body == nil || r.ContentLength == 0 {
		return nil, true
	}
	var req EndRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, false
	}
	if req.Winner == "" {
		return nil, true
	}
	side, ok := model.ParseSide(req.Winner)
	if !ok {
		return nil, false
	}
	return &side, true
}

// HandleCreate handles POST /api/v1/matches
func (c *Controller) HandleCreate(w http.ResponseWriter, r *http.Request) {
	manual, ok := parseManualWinner(r)
	if !ok {
		writeError(w, "winner must be red or blue", http.StatusBadRequest)
		return
	}

	m, err := c.CreateNextMatch(r.Context(), manual)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m)
}

// HandleEnd handles POST /api/v1/matches/{matchID}/end
func (c *Controller) HandleEnd(w http.ResponseWriter, r *http.Request) {
	manual, ok := parseManualWinner(r)
	if !ok {
		writeError(w, "winner must be red or blue", http.StatusBadRequest)
		return
	}

	m, err := c.EndMatch(r.Context(), chi.URLParam(r, "matchID"), manual)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// HandleCurrent handles GET /api/v1/matches/current
func (c *Controller) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	m, err := c.store.CurrentMatch(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no current match", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load match", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateMatch), errors.Is(err, ErrAlreadyConcluded):
		return http.StatusConflict
	case errors.Is(err, ErrUnresolvedWinner), errors.Is(err, ErrCorruptWinnerMapping):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
