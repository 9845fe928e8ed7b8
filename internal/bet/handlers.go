package bet

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/calebgmahala/SaltyBets/internal/model"
	"github.com/calebgmahala/SaltyBets/internal/store"
)

// userHeader carries the authenticated user id, resolved by the auth
// layer in front of this service.
const userHeader = "X-User-ID"

// StakeRequest is the JSON body for POST /api/v1/bets and
// DELETE /api/v1/bets.
type StakeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Side   string          `json:"side,omitempty"` // required for placement only
}

// StakeResponse is returned from successful place/cancel calls and
// from the "my bet" query while the match is open.
type StakeResponse struct {
	UserID string `json:"user_id"`
	Amount string `json:"amount"`
	Side   string `json:"side"`
}

// resolveUser loads the durable user record named by the request's
// identity header.
func (s *Service) resolveUser(w http.ResponseWriter, r *http.Request) *model.User {
	id := r.Header.Get(userHeader)
	if id == "" {
		writeError(w, "missing "+userHeader+" header", http.StatusUnauthorized)
		return nil
	}

	user, err := s.store.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "unknown user", http.StatusNotFound)
		return nil
	}
	if err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return nil
	}
	return user
}

// HandlePlace handles POST /api/v1/bets
func (s *Service) HandlePlace(w http.ResponseWriter, r *http.Request) {
	user := s.resolveUser(w, r)
	if user == nil {
		return
	}

	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	side, ok := model.ParseSide(req.Side)
	if !ok {
		writeError(w, "side must be red or blue", http.StatusBadRequest)
		return
	}

	if err := s.PlaceStake(r.Context(), user, req.Amount, side); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	entry, _ := s.ledger.EntryOf(r.Context(), user.ID)
	resp := StakeResponse{UserID: user.ID, Amount: req.Amount.String(), Side: string(side)}
	if entry != nil {
		resp.Amount = entry.Amount.String()
		resp.Side = string(entry.Side)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// HandleCancel handles DELETE /api/v1/bets
func (s *Service) HandleCancel(w http.ResponseWriter, r *http.Request) {
	user := s.resolveUser(w, r)
	if user == nil {
		return
	}

	var req StakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.CancelStake(r.Context(), user, req.Amount); err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleTotals handles GET /api/v1/bets/totals
func (s *Service) HandleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := s.CurrentTotals(r.Context())
	if err != nil {
		writeError(w, "failed to read totals", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(totals)
}

// HandleMyBet handles GET /api/v1/bets/me
//
// While the current match is open the answer comes from the ephemeral
// ledger; once it is locked or settled, from the durable stake row.
func (s *Service) HandleMyBet(w http.ResponseWriter, r *http.Request) {
	user := s.resolveUser(w, r)
	if user == nil {
		return
	}
	ctx := r.Context()

	current, err := s.store.CurrentMatch(ctx)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no current match", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load match", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if current.Status == model.MatchOpen {
		entry, err := s.ledger.EntryOf(ctx, user.ID)
		if err != nil {
			writeError(w, "failed to read stake", http.StatusInternalServerError)
			return
		}
		if entry == nil {
			writeError(w, "no active stake", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(StakeResponse{
			UserID: user.ID,
			Amount: entry.Amount.String(),
			Side:   string(entry.Side),
		})
		return
	}

	stake, err := s.ActiveStakeOf(ctx, user.ID)
	if err != nil {
		writeError(w, "failed to read stake", http.StatusInternalServerError)
		return
	}
	if stake == nil {
		writeError(w, "no stake on current match", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(stake)
}

// HandleGetUser handles GET /api/v1/users/{userID} — the durable record
// including the win/loss statistics maintained by settlement.
func (s *Service) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	user, err := s.store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "unknown user", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// statusFor maps business errors onto HTTP statuses: validation → 400,
// state conflicts → 409, anything else is an infrastructure failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidSide):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoOpenMatch),
		errors.Is(err, ErrMatchLocked),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrNoActiveStake),
		errors.Is(err, ErrStakeExceedsActive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
