package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/solana-scanner/internal/types"
)

// handleGetClassification handles GET /api/addresses/{address}/classification
func (s *Server) handleGetClassification(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	verdict, err := s.insights.Classify(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, verdict)
}

// handleGetSummary handles GET /api/wallets/{address}/summary
func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	summary, err := s.insights.Summary(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// handleGetProfile handles GET /api/wallets/{address}
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	profile, err := s.insights.Profile(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// savedWalletRequest is the body of PUT /api/wallets/{address}/saved
type savedWalletRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	XAccount    string   `json:"xAccount"`
}

// handleSaveWallet handles PUT /api/wallets/{address}/saved
func (s *Server) handleSaveWallet(w http.ResponseWriter, r *http.Request) {
	var req savedWalletRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	wallet, err := s.insights.SaveWallet(r.Context(), &types.SavedWallet{
		Address:     mux.Vars(r)["address"],
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		XAccount:    req.XAccount,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, wallet)
}

// handleDeleteSavedWallet handles DELETE /api/wallets/{address}/saved
func (s *Server) handleDeleteSavedWallet(w http.ResponseWriter, r *http.Request) {
	if err := s.insights.DeleteSavedWallet(r.Context(), mux.Vars(r)["address"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
